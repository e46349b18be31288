// Package resolver loads the objects a ref field or reference section points
// at. A Resolver pages through candidate objects for one referencing field,
// appending pages in strictly increasing order, and can short-circuit the scan
// for a preselected id or a client-side search.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/task"
)

var (
	// ErrNotFound is returned when a referenced Type, section or object no
	// longer exists.
	ErrNotFound = model.ErrNotFound
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("resolver: closed")
)

// ObjectQuery selects one page of candidate objects.
type ObjectQuery struct {
	TypeIDs []int
	Params  model.ListParams
}

// Source is the backend the resolver reads from.
type Source interface {
	ListObjects(ctx context.Context, query ObjectQuery) (model.Page[model.Object], error)
	GetObject(ctx context.Context, id int) (model.Object, error)
	GetType(ctx context.Context, id int) (model.Type, error)
}

// State is a point-in-time view of the paging state.
type State struct {
	CurrentPage int
	TotalPages  int
	Loaded      int
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithPageSize sets the number of objects requested per page.
func WithPageSize(size int) Option {
	return func(r *Resolver) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// WithLogger routes resolver diagnostics to logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) {
		r.logger = logging.OrNop(logger)
	}
}

// WithDebouncer replaces the debouncer used by SearchDebounced.
func WithDebouncer(d *task.Debouncer) Option {
	return func(r *Resolver) {
		if d != nil {
			r.debounce = d
		}
	}
}

// WithProjection limits the object sub-fields requested per page.
func WithProjection(fields ...string) Option {
	return func(r *Resolver) {
		r.projection = append([]string(nil), fields...)
	}
}

// Resolver pages through the objects one referencing field may point to.
// All methods are safe for concurrent use.
type Resolver struct {
	src        Source
	typeIDs    []int
	pageSize   int
	projection []string
	logger     logging.Logger
	scope      *task.Scope
	debounce   *task.Debouncer
	inflight   singleflight.Group

	mu         sync.Mutex
	current    int
	totalPages int
	known      bool
	buffer     []model.Object
	index      map[int]int
	pages      map[int][]int
}

// New returns a resolver over objects of typeIDs. The resolver owns a
// context derived from parent; Close cancels it.
func New(parent context.Context, src Source, typeIDs []int, opts ...Option) *Resolver {
	r := &Resolver{
		src:      src,
		typeIDs:  append([]int(nil), typeIDs...),
		pageSize: model.DefaultPageLimit,
		logger:   logging.Nop(),
		scope:    task.NewScope(parent),
		debounce: task.NewDebouncer(300 * time.Millisecond),
		index:    make(map[int]int),
		pages:    make(map[int][]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// TypeIDs returns the Types this resolver draws objects from.
func (r *Resolver) TypeIDs() []int {
	return append([]int(nil), r.typeIDs...)
}

// State returns the paging state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{CurrentPage: r.current, TotalPages: r.totalPages, Loaded: len(r.buffer)}
}

// HasMore reports whether another page may exist.
func (r *Resolver) HasMore() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasMoreLocked()
}

func (r *Resolver) hasMoreLocked() bool {
	return !r.known || r.current < r.totalPages
}

// Buffer returns a copy of every object loaded so far, in load order.
func (r *Resolver) Buffer() []model.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Object, len(r.buffer))
	for i, obj := range r.buffer {
		out[i] = obj.Clone()
	}
	return out
}

// Next loads the page after the last loaded one and returns the objects it
// appended. Concurrent callers share a single request for the same page.
// Once TotalPages is reached Next returns no objects and issues no request.
func (r *Resolver) Next(ctx context.Context) ([]model.Object, error) {
	if r.scope.Closed() {
		return nil, ErrClosed
	}
	r.mu.Lock()
	if !r.hasMoreLocked() {
		r.mu.Unlock()
		return nil, nil
	}
	page := r.current + 1
	r.mu.Unlock()

	ch := r.inflight.DoChan(strconv.Itoa(page), func() (any, error) {
		return r.load(page)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		added, _ := res.Val.([]model.Object)
		if res.Shared {
			return cloneAll(added), nil
		}
		return added, nil
	}
}

// load fetches page on the resolver context. It runs once per page at a
// time; a page that was appended meanwhile is not requested again.
func (r *Resolver) load(page int) ([]model.Object, error) {
	r.mu.Lock()
	if page != r.current+1 || !r.hasMoreLocked() {
		r.mu.Unlock()
		return nil, nil
	}
	r.mu.Unlock()

	ctx := r.scope.Context()
	params := model.ListParams{Limit: r.pageSize, Page: page, Projection: r.projection}
	result, err := r.src.ListObjects(ctx, ObjectQuery{TypeIDs: r.typeIDs, Params: params})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("resolver: load page %d: %w", page, err)
	}
	if ctx.Err() != nil {
		// late response after Close
		return nil, ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = page
	r.totalPages = result.Pager.TotalPages
	r.known = true
	added := make([]model.Object, 0, len(result.Results))
	ids := make([]int, 0, len(result.Results))
	for _, obj := range result.Results {
		ids = append(ids, obj.PublicID)
		if r.appendLocked(obj) {
			added = append(added, obj.Clone())
		}
	}
	r.pages[page] = ids
	r.logger.Debugf("resolver: types %v page %d/%d appended %d objects", r.typeIDs, page, r.totalPages, len(added))
	return added, nil
}

// Resolve loads pages up to and including page and returns the objects of
// that page as the backend reported them. Pages are always fetched in order,
// so asking for page 3 first loads 1 and 2.
func (r *Resolver) Resolve(ctx context.Context, page int) (model.Page[model.Object], error) {
	if page <= 0 {
		page = 1
	}
	for {
		state := r.State()
		if state.CurrentPage >= page || (state.TotalPages > 0 && state.CurrentPage >= state.TotalPages) {
			break
		}
		if _, err := r.Next(ctx); err != nil {
			return model.Page[model.Object]{}, err
		}
		if !r.HasMore() {
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	out := model.Page[model.Object]{
		Total: len(r.buffer),
		Pager: model.Pager{Page: page, PageSize: r.pageSize, TotalPages: r.totalPages},
	}
	ids := r.pages[page]
	out.Results = make([]model.Object, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out.Results = append(out.Results, r.buffer[r.index[id]].Clone())
	}
	return out, nil
}

// appendLocked adds obj unless an object with the same id is buffered.
func (r *Resolver) appendLocked(obj model.Object) bool {
	if _, dup := r.index[obj.PublicID]; dup {
		return false
	}
	r.index[obj.PublicID] = len(r.buffer)
	r.buffer = append(r.buffer, obj)
	return true
}

// ResolveOne returns the object with id. The loaded buffer is searched
// first; otherwise only that id is requested. Objects of a Type this
// resolver does not cover count as not found.
func (r *Resolver) ResolveOne(ctx context.Context, id int) (model.Object, error) {
	if obj, ok := r.lookup(id); ok {
		return obj, nil
	}
	if r.scope.Closed() {
		return model.Object{}, ErrClosed
	}
	obj, err := r.fetch(ctx, id)
	if err != nil {
		return model.Object{}, err
	}
	return obj, nil
}

func (r *Resolver) fetch(ctx context.Context, id int) (model.Object, error) {
	ctx, cancel := r.bind(ctx)
	defer cancel()
	obj, err := r.src.GetObject(ctx, id)
	if err != nil {
		if r.scope.Closed() {
			return model.Object{}, ErrClosed
		}
		return model.Object{}, fmt.Errorf("resolver: object %d: %w", id, err)
	}
	if r.scope.Closed() {
		return model.Object{}, ErrClosed
	}
	if !r.accepts(obj) {
		return model.Object{}, fmt.Errorf("resolver: object %d has type %d: %w", id, obj.TypeID, ErrNotFound)
	}
	return obj, nil
}

// Preselect resolves the value a form already holds. It searches the
// buffer, then fetches only that id, adds it to the buffer, and keeps
// loading the first page in the background so the picker has candidates.
func (r *Resolver) Preselect(ctx context.Context, id int) (model.Object, error) {
	if obj, ok := r.lookup(id); ok {
		return obj, nil
	}
	obj, err := r.ResolveOne(ctx, id)
	if err != nil {
		return model.Object{}, err
	}
	r.mu.Lock()
	r.appendLocked(obj.Clone())
	start := r.current == 0 && r.hasMoreLocked()
	r.mu.Unlock()

	if start {
		r.scope.Go(func(ctx context.Context) {
			if _, err := r.Next(ctx); err != nil && !errors.Is(err, ErrClosed) {
				r.logger.Warnf("resolver: background page load: %v", err)
			}
		})
	}
	return obj, nil
}

// Search returns buffered objects matching match. While nothing matches it
// keeps loading pages, stopping at TotalPages.
func (r *Resolver) Search(ctx context.Context, match func(model.Object) bool) ([]model.Object, error) {
	if match == nil {
		return nil, nil
	}
	for {
		if found := r.filter(match); len(found) > 0 {
			return found, nil
		}
		if !r.HasMore() {
			return nil, nil
		}
		if _, err := r.Next(ctx); err != nil {
			return nil, err
		}
	}
}

// SearchResult is delivered by SearchDebounced.
type SearchResult struct {
	Objects []model.Object
	Err     error
}

// SearchDebounced runs Search after the debounce window. A newer call
// cancels the pending one, which then reports context.Canceled.
func (r *Resolver) SearchDebounced(ctx context.Context, match func(model.Object) bool) <-chan SearchResult {
	out := make(chan SearchResult, 1)
	found := make(chan []model.Object, 1)
	done := r.debounce.Trigger(ctx, func(ctx context.Context) error {
		objects, err := r.Search(ctx, match)
		if err != nil {
			return err
		}
		found <- objects
		return nil
	})
	go func() {
		res := SearchResult{Err: <-done}
		if res.Err == nil {
			select {
			case res.Objects = <-found:
			default:
			}
		}
		out <- res
		close(out)
	}()
	return out
}

// Close cancels in-flight work. Responses arriving later are dropped.
func (r *Resolver) Close() {
	r.debounce.Stop()
	r.scope.Close()
}

func (r *Resolver) lookup(id int) (model.Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.index[id]
	if !ok {
		return model.Object{}, false
	}
	return r.buffer[idx].Clone(), true
}

func (r *Resolver) filter(match func(model.Object) bool) []model.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Object
	for _, obj := range r.buffer {
		if match(obj) {
			out = append(out, obj.Clone())
		}
	}
	return out
}

func (r *Resolver) accepts(obj model.Object) bool {
	if len(r.typeIDs) == 0 || obj.TypeID == 0 {
		return true
	}
	for _, id := range r.typeIDs {
		if id == obj.TypeID {
			return true
		}
	}
	return false
}

// bind returns a context cancelled by either ctx or the resolver scope.
func (r *Resolver) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.scope.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func cloneAll(objects []model.Object) []model.Object {
	out := make([]model.Object, len(objects))
	for i, obj := range objects {
		out[i] = obj.Clone()
	}
	return out
}
