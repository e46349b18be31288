package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Memory keeps every document in process. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu         sync.RWMutex
	types      map[int]model.Type
	categories map[int]model.Category
	objects    map[int]model.Object
	groups     map[int]model.Group
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		types:      make(map[int]model.Type),
		categories: make(map[int]model.Category),
		objects:    make(map[int]model.Object),
		groups:     make(map[int]model.Group),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) ListTypes(_ context.Context, params model.ListParams) (model.Page[model.Type], error) {
	m.mu.RLock()
	items := make([]model.Type, 0, len(m.types))
	for _, t := range m.types {
		items = append(items, t.Clone())
	}
	m.mu.RUnlock()
	return pageTypes(items, params)
}

func (m *Memory) GetType(_ context.Context, id int) (model.Type, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[id]
	if !ok {
		return model.Type{}, fmt.Errorf("store: type %d: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *Memory) CreateType(_ context.Context, t model.Type) (model.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.typeNameFree(t.Name, 0); err != nil {
		return model.Type{}, err
	}
	t = t.Clone()
	t.PublicID = nextID(m.types)
	m.types[t.PublicID] = t
	return t.Clone(), nil
}

func (m *Memory) UpdateType(_ context.Context, t model.Type) (model.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[t.PublicID]; !ok {
		return model.Type{}, fmt.Errorf("store: type %d: %w", t.PublicID, ErrNotFound)
	}
	if err := m.typeNameFree(t.Name, t.PublicID); err != nil {
		return model.Type{}, err
	}
	m.types[t.PublicID] = t.Clone()
	return t.Clone(), nil
}

func (m *Memory) DeleteType(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[id]; !ok {
		return fmt.Errorf("store: type %d: %w", id, ErrNotFound)
	}
	delete(m.types, id)
	maps.DeleteFunc(m.objects, func(_ int, obj model.Object) bool { return obj.TypeID == id })
	return nil
}

func (m *Memory) typeNameFree(name string, exclude int) error {
	for id, t := range m.types {
		if id != exclude && t.Name == name {
			return fmt.Errorf("%w: type name %q already exists", ErrConflict, name)
		}
	}
	return nil
}

func (m *Memory) ListCategories(_ context.Context, params model.ListParams) (model.Page[model.Category], error) {
	m.mu.RLock()
	items := slices.Collect(maps.Values(m.categories))
	m.mu.RUnlock()
	return pageCategories(items, params)
}

func (m *Memory) GetCategory(_ context.Context, id int) (model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	if !ok {
		return model.Category{}, fmt.Errorf("store: category %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *Memory) CreateCategory(_ context.Context, c model.Category) (model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.categoryNameFree(c.Name, 0); err != nil {
		return model.Category{}, err
	}
	c.PublicID = nextID(m.categories)
	c.Types = slices.Clone(c.Types)
	m.categories[c.PublicID] = c
	return c, nil
}

func (m *Memory) UpdateCategory(_ context.Context, c model.Category) (model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.PublicID]; !ok {
		return model.Category{}, fmt.Errorf("store: category %d: %w", c.PublicID, ErrNotFound)
	}
	if err := m.categoryNameFree(c.Name, c.PublicID); err != nil {
		return model.Category{}, err
	}
	c.Types = slices.Clone(c.Types)
	m.categories[c.PublicID] = c
	return c, nil
}

func (m *Memory) categoryNameFree(name string, exclude int) error {
	for id, c := range m.categories {
		if id != exclude && c.Name == name {
			return fmt.Errorf("%w: category name %q already exists", ErrConflict, name)
		}
	}
	return nil
}

func (m *Memory) CategoryTree(_ context.Context) ([]model.CategoryNode, error) {
	m.mu.RLock()
	items := slices.Collect(maps.Values(m.categories))
	m.mu.RUnlock()
	return buildTree(items), nil
}

func (m *Memory) ListObjects(_ context.Context, typeIDs []int, params model.ListParams) (model.Page[model.Object], error) {
	m.mu.RLock()
	items := make([]model.Object, 0, len(m.objects))
	for _, obj := range m.objects {
		items = append(items, obj.Clone())
	}
	m.mu.RUnlock()
	return pageObjects(items, typeIDs, params)
}

func (m *Memory) GetObject(_ context.Context, id int) (model.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return model.Object{}, fmt.Errorf("store: object %d: %w", id, ErrNotFound)
	}
	return obj.Clone(), nil
}

// PutObject inserts obj when its public id is zero and replaces it otherwise.
func (m *Memory) PutObject(_ context.Context, obj model.Object) (model.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.types[obj.TypeID]; !ok {
		return model.Object{}, fmt.Errorf("store: object type %d: %w", obj.TypeID, ErrNotFound)
	}
	obj = obj.Clone()
	if obj.PublicID == 0 {
		obj.PublicID = nextID(m.objects)
	}
	m.objects[obj.PublicID] = obj
	return obj.Clone(), nil
}

func (m *Memory) DeleteObject(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; !ok {
		return fmt.Errorf("store: object %d: %w", id, ErrNotFound)
	}
	delete(m.objects, id)
	return nil
}

func (m *Memory) ListGroups(_ context.Context) ([]model.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := slices.Collect(maps.Values(m.groups))
	slices.SortFunc(groups, func(a, b model.Group) int { return a.PublicID - b.PublicID })
	return groups, nil
}

func (m *Memory) PutGroup(_ context.Context, g model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.PublicID == 0 {
		g.PublicID = nextID(m.groups)
	}
	m.groups[g.PublicID] = g
	return nil
}

func nextID[V any](items map[int]V) int {
	next := 1
	for id := range items {
		if id >= next {
			next = id + 1
		}
	}
	return next
}
