package model

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrNotFound reports a Type, Section, or Object that no longer exists.
var ErrNotFound = errors.New("model: not found")

// ListParams are the paging/filter parameters accepted by every list
// endpoint of the backend API.
type ListParams struct {
	// Filter is a JSON-encoded query document, passed through verbatim.
	Filter string
	Limit  int
	Sort   string
	// Order is 1 for ascending and -1 for descending.
	Order int
	Page  int
	// Projection lists the object sub-fields to return.
	Projection []string
}

// DefaultPageLimit is used when ListParams.Limit is not set.
const DefaultPageLimit = 10

// Normalized returns a copy with defaults applied.
func (p ListParams) Normalized() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Order == 0 {
		p.Order = 1
	}
	if strings.TrimSpace(p.Sort) == "" {
		p.Sort = "public_id"
	}
	return p
}

// Query encodes the parameters as URL query values.
func (p ListParams) Query() url.Values {
	n := p.Normalized()
	values := url.Values{}
	if strings.TrimSpace(n.Filter) != "" {
		values.Set("filter", n.Filter)
	}
	values.Set("limit", strconv.Itoa(n.Limit))
	values.Set("sort", n.Sort)
	values.Set("order", strconv.Itoa(n.Order))
	values.Set("page", strconv.Itoa(n.Page))
	if len(n.Projection) > 0 {
		values.Set("projection", strings.Join(n.Projection, ","))
	}
	return values
}

// ParseListParams decodes query values produced by Query.
func ParseListParams(values url.Values) ListParams {
	p := ListParams{
		Filter: values.Get("filter"),
		Sort:   values.Get("sort"),
	}
	p.Limit, _ = strconv.Atoi(values.Get("limit"))
	p.Order, _ = strconv.Atoi(values.Get("order"))
	p.Page, _ = strconv.Atoi(values.Get("page"))
	if raw := strings.TrimSpace(values.Get("projection")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				p.Projection = append(p.Projection, trimmed)
			}
		}
	}
	return p.Normalized()
}

// Pager carries paging metadata of a list response.
type Pager struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// Page is one page of a list response.
type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int   `json:"total"`
	Pager   Pager `json:"pager"`
}

// NewPage slices items according to params and fills the pager.
func NewPage[T any](items []T, params ListParams) Page[T] {
	n := params.Normalized()
	total := len(items)
	totalPages := (total + n.Limit - 1) / n.Limit
	start := (n.Page - 1) * n.Limit
	page := Page[T]{
		Total: total,
		Pager: Pager{Page: n.Page, PageSize: n.Limit, TotalPages: totalPages},
	}
	if start >= total {
		page.Results = []T{}
		return page
	}
	end := start + n.Limit
	if end > total {
		end = total
	}
	page.Results = append([]T(nil), items[start:end]...)
	return page
}
