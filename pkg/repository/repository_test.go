package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func count(calls []string, want string) int {
	n := 0
	for _, call := range calls {
		if call == want {
			n++
		}
	}
	return n
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetType_ServesFromCache(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	repo := New(backend)
	ctx := context.Background()

	first, err := repo.GetType(ctx, testsupport.ServerID)
	require.NoError(t, err)
	first.Label = "mutated"

	second, err := repo.GetType(ctx, testsupport.ServerID)
	require.NoError(t, err)
	assert.Equal(t, "Server", second.Label, "cached copies are detached")
	assert.Equal(t, 1, count(backend.Calls(), "type 2"))
}

func TestGetType_TTLExpires(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo := New(backend, WithTTL(time.Minute), WithClock(c.Now))
	ctx := context.Background()

	_, err := repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	c.Advance(30 * time.Second)
	_, err = repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	assert.Equal(t, 1, count(backend.Calls(), "type 3"))

	c.Advance(time.Minute)
	assert.False(t, repo.Cached(testsupport.RackID))
	_, err = repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	assert.Equal(t, 2, count(backend.Calls(), "type 3"))
}

func TestWritesRefreshCache(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	repo := New(backend)
	ctx := context.Background()

	rack, err := repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)

	rack.Label = "Racks"
	_, err = repo.UpdateType(ctx, rack)
	require.NoError(t, err)
	got, err := repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	assert.Equal(t, "Racks", got.Label)
	assert.Equal(t, 1, count(backend.Calls(), "type 3"))

	outside := got.Clone()
	outside.Label = "Changed elsewhere"
	backend.PutType(outside)
	got, err = repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	assert.Equal(t, "Racks", got.Label)

	repo.Invalidate(testsupport.RackID)
	got, err = repo.GetType(ctx, testsupport.RackID)
	require.NoError(t, err)
	assert.Equal(t, "Changed elsewhere", got.Label)

	created, err := repo.CreateType(ctx, model.Type{Name: "switch", Label: "Switch"})
	require.NoError(t, err)
	assert.True(t, repo.Cached(created.PublicID))
}

func TestGetType_NotFound(t *testing.T) {
	repo := New(testsupport.NewSeededBackend())
	_, err := repo.GetType(context.Background(), 99)
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
	assert.False(t, repo.Cached(99))
}

func TestDeleteType_NeedsCapableBackend(t *testing.T) {
	repo := New(testsupport.NewSeededBackend())
	err := repo.DeleteType(context.Background(), testsupport.RackID)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestPrefetch(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	repo := New(backend, WithConcurrency(2))
	ctx := context.Background()

	require.NoError(t, repo.Prefetch(ctx, testsupport.T1ID, testsupport.ServerID, testsupport.RackID))
	for _, id := range []int{testsupport.T1ID, testsupport.ServerID, testsupport.RackID} {
		assert.True(t, repo.Cached(id), "type %d", id)
	}

	err := repo.Prefetch(ctx, testsupport.RackID, 42)
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
}

func TestListTypesPopulatesCache(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	repo := New(backend)
	ctx := context.Background()

	page, err := repo.ListTypes(ctx, model.ListParams{})
	require.NoError(t, err)
	require.NotEmpty(t, page.Results)
	for _, typ := range page.Results {
		assert.True(t, repo.Cached(typ.PublicID))
	}
}

func TestGroupsAndCategoriesCached(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	backend.SetGroups(model.Group{PublicID: 2, Name: "user", Label: "User"})
	backend.SetCategories(model.CategoryNode{Category: model.Category{PublicID: 1, Name: "infra", Label: "Infra"}})
	repo := New(backend)
	ctx := context.Background()

	for range 3 {
		groups, err := repo.ListGroups(ctx)
		require.NoError(t, err)
		assert.Len(t, groups, 1)
		tree, err := repo.CategoryTree(ctx)
		require.NoError(t, err)
		assert.Len(t, tree, 1)
	}
	assert.Equal(t, 1, count(backend.Calls(), "groups"))
	assert.Equal(t, 1, count(backend.Calls(), "categories"))

	repo.InvalidateAll()
	_, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count(backend.Calls(), "groups"))
}

func TestObjectsPassThrough(t *testing.T) {
	backend := testsupport.NewSeededBackend()
	repo := New(backend)
	_, err := repo.GetObject(context.Background(), 40)
	require.NoError(t, err)
	_, err = repo.GetObject(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, 2, count(backend.Calls(), "object 40"))
}
