// Package client talks to the CMDB REST API: Types, categories, objects,
// groups and export destinations. Mutating calls are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

// DefaultTimeout bounds every request made without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values disable it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger sets the request logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// Client is a JSON client of the CMDB API.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	token   string
	logger  logging.Logger
}

var _ resolver.Source = (*Client)(nil)

// New returns a client rooted at baseURL, e.g. "http://localhost:8080/rest/".
func New(baseURL string, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("client: base url is required")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	c := &Client{
		base:    base,
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  logging.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	ref := &url.URL{Path: strings.Join(segments, "/")}
	if len(segments) == 1 {
		ref.Path += "/"
	}
	target := c.base.ResolveReference(ref)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	return target.String()
}

// do sends one request and decodes a 2xx body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, target, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debugf("client: %s %s -> %d", method, target, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read %s %s: %w", method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message, payload := decodeErrorBody(data)
		return &StatusError{
			Code:    resp.StatusCode,
			Method:  method,
			Path:    req.URL.Path,
			Message: message,
			Payload: payload,
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, target, err)
	}
	return nil
}

// ListTypes returns one page of Types.
func (c *Client) ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error) {
	var page model.Page[model.Type]
	err := c.do(ctx, http.MethodGet, c.endpoint(params.Query(), "type"), nil, &page)
	return page, err
}

// GetType returns Type id.
func (c *Client) GetType(ctx context.Context, id int) (model.Type, error) {
	var t model.Type
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "type", strconv.Itoa(id)), nil, &t)
	return t, err
}

// CreateType posts a new Type and returns it with its public id.
func (c *Client) CreateType(ctx context.Context, t model.Type) (model.Type, error) {
	var out model.Type
	err := c.do(ctx, http.MethodPost, c.endpoint(nil, "type"), t, &out)
	return out, err
}

// UpdateType replaces Type t.PublicID.
func (c *Client) UpdateType(ctx context.Context, t model.Type) (model.Type, error) {
	var out model.Type
	err := c.do(ctx, http.MethodPut, c.endpoint(nil, "type", strconv.Itoa(t.PublicID)), t, &out)
	return out, err
}

// DeleteType removes Type id together with its objects.
func (c *Client) DeleteType(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(nil, "type", strconv.Itoa(id)), nil, nil)
}

// ListCategories returns one page of categories.
func (c *Client) ListCategories(ctx context.Context, params model.ListParams) (model.Page[model.Category], error) {
	var page model.Page[model.Category]
	err := c.do(ctx, http.MethodGet, c.endpoint(params.Query(), "category"), nil, &page)
	return page, err
}

// GetCategory returns category id.
func (c *Client) GetCategory(ctx context.Context, id int) (model.Category, error) {
	var out model.Category
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "category", strconv.Itoa(id)), nil, &out)
	return out, err
}

// CreateCategory posts a new category.
func (c *Client) CreateCategory(ctx context.Context, category model.Category) (model.Category, error) {
	var out model.Category
	err := c.do(ctx, http.MethodPost, c.endpoint(nil, "category"), category, &out)
	return out, err
}

// UpdateCategory replaces category.PublicID.
func (c *Client) UpdateCategory(ctx context.Context, category model.Category) (model.Category, error) {
	var out model.Category
	err := c.do(ctx, http.MethodPut, c.endpoint(nil, "category", strconv.Itoa(category.PublicID)), category, &out)
	return out, err
}

// CategoryTree returns the category hierarchy.
func (c *Client) CategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	var out []model.CategoryNode
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "category", "tree"), nil, &out)
	return out, err
}

// ListObjects returns one page of objects of the queried Types.
func (c *Client) ListObjects(ctx context.Context, query resolver.ObjectQuery) (model.Page[model.Object], error) {
	values := query.Params.Query()
	if len(query.TypeIDs) > 0 {
		ids := make([]string, 0, len(query.TypeIDs))
		for _, id := range query.TypeIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		values.Set("type_ids", strings.Join(ids, ","))
	}
	var page model.Page[model.Object]
	err := c.do(ctx, http.MethodGet, c.endpoint(values, "object"), nil, &page)
	return page, err
}

// GetObject returns object id.
func (c *Client) GetObject(ctx context.Context, id int) (model.Object, error) {
	var out model.Object
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "object", strconv.Itoa(id)), nil, &out)
	return out, err
}

// ListGroups returns the user groups ACL entries may reference.
func (c *Client) ListGroups(ctx context.Context) ([]model.Group, error) {
	var out []model.Group
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "group"), nil, &out)
	return out, err
}

// ExternalSystems lists the export destinations.
func (c *Client) ExternalSystems(ctx context.Context) ([]model.ExternalSystem, error) {
	var out []model.ExternalSystem
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "externalsystem"), nil, &out)
	return out, err
}

// ExternalSystemParameters lists the parameters of destination name.
func (c *Client) ExternalSystemParameters(ctx context.Context, name string) ([]model.ExternalSystemParameter, error) {
	var out []model.ExternalSystemParameter
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "externalsystem", "parameters", name), nil, &out)
	return out, err
}

// ExternalSystemVariables lists the template variables of destination name.
func (c *Client) ExternalSystemVariables(ctx context.Context, name string) ([]model.ExternalSystemVariable, error) {
	var out []model.ExternalSystemVariable
	err := c.do(ctx, http.MethodGet, c.endpoint(nil, "externalsystem", "variables", name), nil, &out)
	return out, err
}
