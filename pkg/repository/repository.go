// Package repository caches Types, groups and the category tree in front of
// a backend. Writes made through the repository refresh the cache; writes
// made elsewhere need an explicit Invalidate.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-cmdbform/pkg/builder"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

// ErrUnsupported is returned when the backend lacks an optional operation.
var ErrUnsupported = errors.New("repository: operation not supported by backend")

// Backend is what the repository reads through to.
type Backend interface {
	GetType(ctx context.Context, id int) (model.Type, error)
	ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error)
	CreateType(ctx context.Context, t model.Type) (model.Type, error)
	UpdateType(ctx context.Context, t model.Type) (model.Type, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	CategoryTree(ctx context.Context) ([]model.CategoryNode, error)
	ListObjects(ctx context.Context, query resolver.ObjectQuery) (model.Page[model.Object], error)
	GetObject(ctx context.Context, id int) (model.Object, error)
}

var (
	_ resolver.Source = (*Repository)(nil)
	_ builder.Backend = (*Repository)(nil)
)

type typeDeleter interface {
	DeleteType(ctx context.Context, id int) error
}

// Option customises a Repository.
type Option func(*Repository)

// WithTTL expires cached entries after ttl. Zero keeps them until
// invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(r *Repository) {
		r.ttl = ttl
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithConcurrency bounds the parallel fetches of Prefetch.
func WithConcurrency(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(r *Repository) {
		r.logger = logging.OrNop(logger)
	}
}

type entry[T any] struct {
	value   T
	fetched time.Time
}

// Repository is safe for concurrent use.
type Repository struct {
	backend     Backend
	ttl         time.Duration
	now         func() time.Time
	concurrency int
	logger      logging.Logger

	flight singleflight.Group

	mu         sync.RWMutex
	types      map[int]entry[model.Type]
	groups     *entry[[]model.Group]
	categories *entry[[]model.CategoryNode]
}

// New wraps backend.
func New(backend Backend, options ...Option) *Repository {
	r := &Repository{
		backend:     backend,
		now:         time.Now,
		concurrency: 4,
		logger:      logging.Nop(),
		types:       make(map[int]entry[model.Type]),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) fresh(fetched time.Time) bool {
	return r.ttl <= 0 || r.now().Sub(fetched) < r.ttl
}

// GetType returns a cached copy of Type id, fetching it once for concurrent
// callers on a miss.
func (r *Repository) GetType(ctx context.Context, id int) (model.Type, error) {
	r.mu.RLock()
	cached, ok := r.types[id]
	r.mu.RUnlock()
	if ok && r.fresh(cached.fetched) {
		return cached.value.Clone(), nil
	}

	value, err, _ := r.flight.Do("type/"+strconv.Itoa(id), func() (any, error) {
		t, err := r.backend.GetType(ctx, id)
		if err != nil {
			return nil, err
		}
		r.storeType(t)
		r.logger.Debugf("repository: cached type %d", id)
		return t, nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.Invalidate(id)
		}
		return model.Type{}, fmt.Errorf("repository: type %d: %w", id, err)
	}
	return value.(model.Type).Clone(), nil
}

// Prefetch loads every id not already cached.
func (r *Repository) Prefetch(ctx context.Context, ids ...int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := r.GetType(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// ListTypes always reads through and refreshes the cached entries it returns.
func (r *Repository) ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error) {
	page, err := r.backend.ListTypes(ctx, params)
	if err != nil {
		return page, err
	}
	for _, t := range page.Results {
		r.storeType(t)
	}
	return page, nil
}

func (r *Repository) CreateType(ctx context.Context, t model.Type) (model.Type, error) {
	created, err := r.backend.CreateType(ctx, t)
	if err != nil {
		return created, err
	}
	r.storeType(created)
	return created, nil
}

func (r *Repository) UpdateType(ctx context.Context, t model.Type) (model.Type, error) {
	updated, err := r.backend.UpdateType(ctx, t)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.Invalidate(t.PublicID)
		}
		return updated, err
	}
	r.storeType(updated)
	return updated, nil
}

// DeleteType needs a backend that can delete; the client and stores can.
func (r *Repository) DeleteType(ctx context.Context, id int) error {
	deleter, ok := r.backend.(typeDeleter)
	if !ok {
		return ErrUnsupported
	}
	err := deleter.DeleteType(ctx, id)
	if err == nil || errors.Is(err, model.ErrNotFound) {
		r.Invalidate(id)
	}
	return err
}

func (r *Repository) storeType(t model.Type) {
	if t.PublicID == 0 {
		return
	}
	r.mu.Lock()
	r.types[t.PublicID] = entry[model.Type]{value: t.Clone(), fetched: r.now()}
	r.mu.Unlock()
}

// ListGroups caches the group list.
func (r *Repository) ListGroups(ctx context.Context) ([]model.Group, error) {
	r.mu.RLock()
	cached := r.groups
	r.mu.RUnlock()
	if cached != nil && r.fresh(cached.fetched) {
		return append([]model.Group(nil), cached.value...), nil
	}
	value, err, _ := r.flight.Do("groups", func() (any, error) {
		groups, err := r.backend.ListGroups(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.groups = &entry[[]model.Group]{value: groups, fetched: r.now()}
		r.mu.Unlock()
		return groups, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Group(nil), value.([]model.Group)...), nil
}

// CategoryTree caches the category hierarchy.
func (r *Repository) CategoryTree(ctx context.Context) ([]model.CategoryNode, error) {
	r.mu.RLock()
	cached := r.categories
	r.mu.RUnlock()
	if cached != nil && r.fresh(cached.fetched) {
		return cloneTree(cached.value), nil
	}
	value, err, _ := r.flight.Do("categories", func() (any, error) {
		tree, err := r.backend.CategoryTree(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.categories = &entry[[]model.CategoryNode]{value: cloneTree(tree), fetched: r.now()}
		r.mu.Unlock()
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneTree(value.([]model.CategoryNode)), nil
}

// ListObjects and GetObject are never cached.
func (r *Repository) ListObjects(ctx context.Context, query resolver.ObjectQuery) (model.Page[model.Object], error) {
	return r.backend.ListObjects(ctx, query)
}

func (r *Repository) GetObject(ctx context.Context, id int) (model.Object, error) {
	return r.backend.GetObject(ctx, id)
}

// Invalidate drops the cached Types with the given ids.
func (r *Repository) Invalidate(ids ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.types, id)
	}
}

// InvalidateAll empties every cache.
func (r *Repository) InvalidateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[int]entry[model.Type])
	r.groups = nil
	r.categories = nil
}

// Cached reports whether Type id is held and fresh.
func (r *Repository) Cached(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cached, ok := r.types[id]
	return ok && r.fresh(cached.fetched)
}

func cloneTree(nodes []model.CategoryNode) []model.CategoryNode {
	if nodes == nil {
		return nil
	}
	out := make([]model.CategoryNode, len(nodes))
	for i, node := range nodes {
		out[i] = model.CategoryNode{Category: node.Category, Children: cloneTree(node.Children)}
		out[i].Category.Types = append([]int(nil), node.Category.Types...)
	}
	return out
}
