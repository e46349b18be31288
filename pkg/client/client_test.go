package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-cmdbform/internal/devserver"
	"github.com/goliatone/go-cmdbform/internal/store"
	"github.com/goliatone/go-cmdbform/pkg/builder"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

func newServer(t *testing.T) (*Client, store.Store) {
	t.Helper()
	st := store.NewMemory()
	srv := httptest.NewServer(devserver.New(st).Handler())
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + devserver.Prefix)
	require.NoError(t, err)
	return c, st
}

func hostType(name string) model.Type {
	return model.Type{
		Name:   name,
		Label:  "Host",
		Active: true,
		RenderMeta: model.RenderMeta{
			Sections: []model.Section{{Name: "section-main", Label: "Main", Type: model.SectionPlain, Fields: []string{"text-host"}}},
			Summary:  model.Summary{Fields: []string{"text-host"}},
		},
		Fields: []model.Field{{Name: "text-host", Label: "Host", Type: model.FieldText}},
	}
}

func counter() model.IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("c%d", n)
	}
}

func TestClient_TypeRoundTrip(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	created, err := c.CreateType(ctx, hostType("host"))
	require.NoError(t, err)
	assert.Equal(t, 1, created.PublicID)

	got, err := c.GetType(ctx, created.PublicID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got.Label = "Hosts"
	updated, err := c.UpdateType(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Hosts", updated.Label)

	page, err := c.ListTypes(ctx, model.ListParams{Filter: `{"name":"host"}`})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Hosts", page.Results[0].Label)

	require.NoError(t, c.DeleteType(ctx, created.PublicID))
	_, err = c.GetType(ctx, created.PublicID)
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
}

func TestClient_ConflictCarriesNamePayload(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	_, err := c.CreateType(ctx, hostType("host"))
	require.NoError(t, err)
	_, err = c.CreateType(ctx, hostType("host"))

	var status *StatusError
	require.True(t, errors.As(err, &status), "got %v", err)
	assert.Equal(t, http.StatusConflict, status.StatusCode())
	assert.Equal(t, map[string][]string{"name": {`type name "host" already exists`}}, status.FieldErrors())
	assert.False(t, errors.Is(err, model.ErrNotFound))
}

func TestClient_BuilderSaveMapsConflictToNameField(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()
	_, err := c.CreateType(ctx, hostType("switch"))
	require.NoError(t, err)

	s := builder.New(model.Type{}, builder.WithBackend(c), builder.WithIDSource(counter()))
	defer s.Close()
	_, err = s.UpdateBasic(builder.Basic{Name: "switch", Label: "Switch"})
	require.NoError(t, err)
	_, err = s.AddSection(model.SectionPlain, "Main", 0)
	require.NoError(t, err)
	_, err = s.AddField("section-c1", model.FieldText, 0)
	require.NoError(t, err)

	_, err = s.Save(ctx)
	var fieldErr *builder.FieldError
	require.True(t, errors.As(err, &fieldErr), "got %v", err)
	assert.Equal(t, "name", fieldErr.Field)
	assert.Equal(t, []string{`type name "switch" already exists`}, fieldErr.Messages)

	_, err = s.UpdateBasic(builder.Basic{Name: "switch-2", Label: "Switch"})
	require.NoError(t, err)
	saved, err := s.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.PublicID)
}

func TestClient_ObjectsThroughResolver(t *testing.T) {
	c, st := newServer(t)
	ctx := context.Background()

	host, err := c.CreateType(ctx, hostType("host"))
	require.NoError(t, err)
	for _, name := range []string{"db1", "db2", "web1"} {
		_, err := st.PutObject(ctx, model.Object{TypeID: host.PublicID, Fields: []model.FieldValue{{Name: "text-host", Value: name}}})
		require.NoError(t, err)
	}

	page, err := c.ListObjects(ctx, resolver.ObjectQuery{TypeIDs: []int{host.PublicID}, Params: model.ListParams{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pager.TotalPages)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "db1", page.Results[0].SummaryLine)

	obj, err := c.GetObject(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, obj.TypeInformation)
	assert.Equal(t, "host", obj.TypeInformation.TypeName)

	r := resolver.New(ctx, c, []int{host.PublicID})
	defer r.Close()
	snap, err := r.ResolveSection(ctx, model.SectionRef{TypeID: host.PublicID, SectionName: "section-main"}, 2)
	require.NoError(t, err)
	assert.Equal(t, "db2", snap.Summary)
}

func TestClient_CategoriesGroupsExternalSystems(t *testing.T) {
	c, st := newServer(t)
	ctx := context.Background()

	root, err := c.CreateCategory(ctx, model.Category{Name: "infra", Label: "Infra"})
	require.NoError(t, err)
	_, err = c.CreateCategory(ctx, model.Category{Name: "network", Label: "Network", Parent: root.PublicID})
	require.NoError(t, err)

	tree, err := c.CategoryTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "network", tree[0].Children[0].Category.Name)

	require.NoError(t, st.PutGroup(ctx, model.Group{PublicID: 2, Name: "user", Label: "User"}))
	groups, err := c.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Group{{PublicID: 2, Name: "user", Label: "User"}}, groups)

	systems, err := c.ExternalSystems(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, systems)
	params, err := c.ExternalSystemParameters(ctx, systems[0].Name)
	require.NoError(t, err)
	assert.NotEmpty(t, params)

	_, err = c.ExternalSystemVariables(ctx, "Missing")
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
}

func TestClient_TimeoutAndToken(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message": "missing token"}`)
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	_, err = c.ListGroups(context.Background())
	var status *StatusError
	require.True(t, errors.As(err, &status), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, status.Code)
	assert.Equal(t, "missing token", status.Message)

	c, err = New(srv.URL, WithTimeout(20*time.Millisecond), WithToken("secret"))
	require.NoError(t, err)
	_, err = c.ListGroups(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestDecodeErrorBody(t *testing.T) {
	cases := map[string]struct {
		body    string
		message string
		payload map[string][]string
	}{
		"keyed lists":   {body: `{"name": ["taken"]}`, payload: map[string][]string{"name": {"taken"}}},
		"nested errors": {body: `{"errors": {"render_meta": {"sections": "empty"}}, "message": "invalid"}`, message: "invalid", payload: map[string][]string{"render_meta.sections": {"empty"}}},
		"plain text":    {body: "bad gateway", message: "bad gateway"},
		"empty":         {},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			message, payload := decodeErrorBody([]byte(tc.body))
			assert.Equal(t, tc.message, message)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
