package testsupport

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

// Backend is an in-memory resolver.Source that records the calls it serves.
type Backend struct {
	mu         sync.Mutex
	types      map[int]model.Type
	objects    map[int]model.Object
	groups     []model.Group
	groupErr   error
	categories []model.CategoryNode
	calls      []string
}

// StatusError mimics a transport error carrying an HTTP status and a field
// keyed payload.
type StatusError struct {
	Code    int
	Payload map[string][]string
}

func (e *StatusError) Error() string { return fmt.Sprintf("status %d", e.Code) }

func (e *StatusError) StatusCode() int { return e.Code }

func (e *StatusError) FieldErrors() map[string][]string { return e.Payload }

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{
		types:   make(map[int]model.Type),
		objects: make(map[int]model.Object),
	}
}

var _ resolver.Source = (*Backend)(nil)

// PutType stores t by public id.
func (b *Backend) PutType(t model.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types[t.PublicID] = t.Clone()
}

// PutObject stores obj by public id.
func (b *Backend) PutObject(obj model.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[obj.PublicID] = obj.Clone()
}

// DeleteType removes a Type and its objects.
func (b *Backend) DeleteType(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.types, id)
	for objectID, obj := range b.objects {
		if obj.TypeID == id {
			delete(b.objects, objectID)
		}
	}
}

// DeleteObject removes one object.
func (b *Backend) DeleteObject(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, id)
}

// SetGroups replaces the group list.
func (b *Backend) SetGroups(groups ...model.Group) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups = append([]model.Group(nil), groups...)
	b.groupErr = nil
}

// FailGroups makes ListGroups return err.
func (b *Backend) FailGroups(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groupErr = err
}

// SetCategories replaces the category tree.
func (b *Backend) SetCategories(nodes ...model.CategoryNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.categories = nodes
}

// Calls returns the served calls, e.g. "type 3" or "list [2] page 1".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) ListObjects(_ context.Context, query resolver.ObjectQuery) (model.Page[model.Object], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	params := query.Params.Normalized()
	b.calls = append(b.calls, fmt.Sprintf("list %v page %d", query.TypeIDs, params.Page))

	wanted := make(map[int]bool, len(query.TypeIDs))
	for _, id := range query.TypeIDs {
		wanted[id] = true
	}
	var matches []model.Object
	for _, obj := range b.objects {
		if len(wanted) == 0 || wanted[obj.TypeID] {
			matches = append(matches, obj.Clone())
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PublicID < matches[j].PublicID })
	return model.NewPage(matches, params), nil
}

func (b *Backend) GetObject(_ context.Context, id int) (model.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("object %d", id))
	obj, ok := b.objects[id]
	if !ok {
		return model.Object{}, fmt.Errorf("object %d: %w", id, model.ErrNotFound)
	}
	return obj.Clone(), nil
}

func (b *Backend) GetType(_ context.Context, id int) (model.Type, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("type %d", id))
	t, ok := b.types[id]
	if !ok {
		return model.Type{}, fmt.Errorf("type %d: %w", id, model.ErrNotFound)
	}
	return t.Clone(), nil
}

func (b *Backend) ListTypes(_ context.Context, params model.ListParams) (model.Page[model.Type], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	params = params.Normalized()
	b.calls = append(b.calls, fmt.Sprintf("types page %d", params.Page))
	filter, err := model.ParseFilter(params.Filter)
	if err != nil {
		return model.Page[model.Type]{}, err
	}
	var matches []model.Type
	for _, t := range b.types {
		if filter.MatchType(t) {
			matches = append(matches, t.Clone())
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PublicID < matches[j].PublicID })
	return model.NewPage(matches, params), nil
}

// CreateType assigns the next free id. Duplicate names fail with a 409
// StatusError keyed on "name".
func (b *Backend) CreateType(_ context.Context, t model.Type) (model.Type, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "create type "+t.Name)
	if err := b.nameTakenLocked(t); err != nil {
		return model.Type{}, err
	}
	next := 1
	for id := range b.types {
		if id >= next {
			next = id + 1
		}
	}
	t = t.Clone()
	t.PublicID = next
	b.types[next] = t
	return t.Clone(), nil
}

func (b *Backend) UpdateType(_ context.Context, t model.Type) (model.Type, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("update type %d", t.PublicID))
	if _, ok := b.types[t.PublicID]; !ok {
		return model.Type{}, fmt.Errorf("type %d: %w", t.PublicID, model.ErrNotFound)
	}
	if err := b.nameTakenLocked(t); err != nil {
		return model.Type{}, err
	}
	b.types[t.PublicID] = t.Clone()
	return t.Clone(), nil
}

func (b *Backend) nameTakenLocked(t model.Type) error {
	for _, existing := range b.types {
		if existing.Name == t.Name && existing.PublicID != t.PublicID {
			return &StatusError{
				Code:    http.StatusConflict,
				Payload: map[string][]string{"name": {fmt.Sprintf("type name %q already exists", t.Name)}},
			}
		}
	}
	return nil
}

func (b *Backend) ListGroups(context.Context) ([]model.Group, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "groups")
	if b.groupErr != nil {
		return nil, b.groupErr
	}
	return append([]model.Group(nil), b.groups...), nil
}

func (b *Backend) CategoryTree(context.Context) ([]model.CategoryNode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "categories")
	return b.categories, nil
}
