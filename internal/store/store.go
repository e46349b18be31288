// Package store persists Types, categories, objects and groups for the
// development backend. Types and objects are stored as whole documents;
// deleting a Type deletes its objects.
package store

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

var (
	// ErrConflict reports a duplicate Type or category name.
	ErrConflict = errors.New("store: conflict")
	ErrNotFound = model.ErrNotFound
)

// Store is implemented by the memory and sqlite backends.
type Store interface {
	ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error)
	GetType(ctx context.Context, id int) (model.Type, error)
	CreateType(ctx context.Context, t model.Type) (model.Type, error)
	UpdateType(ctx context.Context, t model.Type) (model.Type, error)
	DeleteType(ctx context.Context, id int) error

	ListCategories(ctx context.Context, params model.ListParams) (model.Page[model.Category], error)
	GetCategory(ctx context.Context, id int) (model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) (model.Category, error)
	UpdateCategory(ctx context.Context, c model.Category) (model.Category, error)
	CategoryTree(ctx context.Context) ([]model.CategoryNode, error)

	ListObjects(ctx context.Context, typeIDs []int, params model.ListParams) (model.Page[model.Object], error)
	GetObject(ctx context.Context, id int) (model.Object, error)
	PutObject(ctx context.Context, obj model.Object) (model.Object, error)
	DeleteObject(ctx context.Context, id int) error

	ListGroups(ctx context.Context) ([]model.Group, error)
	PutGroup(ctx context.Context, g model.Group) error

	Close() error
}

// Open returns the backend named by kind: "memory" or "sqlite".
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, errors.New("store: unknown backend " + kind)
	}
}

func pageTypes(items []model.Type, params model.ListParams) (model.Page[model.Type], error) {
	params = params.Normalized()
	filter, err := model.ParseFilter(params.Filter)
	if err != nil {
		return model.Page[model.Type]{}, err
	}
	items = slices.DeleteFunc(items, func(t model.Type) bool { return !filter.MatchType(t) })
	sortBy(items, params, func(a, b model.Type) int {
		switch params.Sort {
		case "name":
			return cmp.Compare(a.Name, b.Name)
		case "label":
			return cmp.Compare(a.Label, b.Label)
		}
		return cmp.Compare(a.PublicID, b.PublicID)
	})
	return model.NewPage(items, params), nil
}

func pageCategories(items []model.Category, params model.ListParams) (model.Page[model.Category], error) {
	params = params.Normalized()
	filter, err := model.ParseFilter(params.Filter)
	if err != nil {
		return model.Page[model.Category]{}, err
	}
	items = slices.DeleteFunc(items, func(c model.Category) bool { return !filter.MatchCategory(c) })
	sortBy(items, params, func(a, b model.Category) int {
		if params.Sort == "name" {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.PublicID, b.PublicID)
	})
	return model.NewPage(items, params), nil
}

func pageObjects(items []model.Object, typeIDs []int, params model.ListParams) (model.Page[model.Object], error) {
	params = params.Normalized()
	filter, err := model.ParseFilter(params.Filter)
	if err != nil {
		return model.Page[model.Object]{}, err
	}
	items = slices.DeleteFunc(items, func(obj model.Object) bool {
		if len(typeIDs) > 0 && !slices.Contains(typeIDs, obj.TypeID) {
			return true
		}
		return !filter.MatchObject(obj)
	})
	sortBy(items, params, func(a, b model.Object) int {
		return cmp.Compare(a.PublicID, b.PublicID)
	})
	page := model.NewPage(items, params)
	if len(params.Projection) > 0 {
		for i := range page.Results {
			page.Results[i] = project(page.Results[i], params.Projection)
		}
	}
	return page, nil
}

// project keeps the listed field values; "fields", "multi_data_sections" and
// "type_information" select whole sub-documents.
func project(obj model.Object, projection []string) model.Object {
	out := model.Object{PublicID: obj.PublicID, TypeID: obj.TypeID, Active: obj.Active, Version: obj.Version, AuthorID: obj.AuthorID}
	for _, name := range projection {
		switch name {
		case "fields":
			out.Fields = obj.Fields
		case "multi_data_sections":
			out.MultiDataSections = obj.MultiDataSections
		case "references":
			out.References = obj.References
		case "type_information":
			out.TypeInformation = obj.TypeInformation
		case "summary_line":
			out.SummaryLine = obj.SummaryLine
		default:
			if value, ok := obj.ValueOf(name); ok {
				out.Fields = append(out.Fields, model.FieldValue{Name: name, Value: value})
			}
		}
	}
	return out
}

func sortBy[T any](items []T, params model.ListParams, compare func(a, b T) int) {
	slices.SortStableFunc(items, func(a, b T) int {
		if params.Order < 0 {
			return compare(b, a)
		}
		return compare(a, b)
	})
}

// buildTree nests categories under their parent. Categories whose parent is
// missing are roots.
func buildTree(categories []model.Category) []model.CategoryNode {
	slices.SortFunc(categories, func(a, b model.Category) int { return cmp.Compare(a.PublicID, b.PublicID) })
	known := make(map[int]bool, len(categories))
	for _, c := range categories {
		known[c.PublicID] = true
	}
	children := make(map[int][]model.Category)
	var roots []model.Category
	for _, c := range categories {
		if c.Parent != 0 && known[c.Parent] && c.Parent != c.PublicID {
			children[c.Parent] = append(children[c.Parent], c)
			continue
		}
		roots = append(roots, c)
	}
	var build func(c model.Category, depth int) model.CategoryNode
	build = func(c model.Category, depth int) model.CategoryNode {
		node := model.CategoryNode{Category: c}
		if depth > len(categories) {
			return node
		}
		for _, child := range children[c.PublicID] {
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}
	tree := make([]model.CategoryNode, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, build(root, 0))
	}
	return tree
}
