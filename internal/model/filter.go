package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Filter is a decoded ListParams.Filter document. Every key must equal the
// attribute of the same name; object filters also match field values.
type Filter map[string]any

// ParseFilter decodes a JSON filter document. An empty string matches
// everything.
func ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var f Filter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("model: filter: %w", err)
	}
	return f, nil
}

// MatchType reports whether t satisfies the filter.
func (f Filter) MatchType(t Type) bool {
	return f.match(func(key string) (any, bool) {
		switch key {
		case "public_id":
			return t.PublicID, true
		case "name":
			return t.Name, true
		case "label":
			return t.Label, true
		case "active":
			return t.Active, true
		case "author_id":
			return t.AuthorID, true
		case "category_id":
			return t.CategoryID, true
		}
		return nil, false
	})
}

// MatchCategory reports whether c satisfies the filter.
func (f Filter) MatchCategory(c Category) bool {
	return f.match(func(key string) (any, bool) {
		switch key {
		case "public_id":
			return c.PublicID, true
		case "name":
			return c.Name, true
		case "label":
			return c.Label, true
		case "parent":
			return c.Parent, true
		}
		return nil, false
	})
}

// MatchObject reports whether obj satisfies the filter. Keys that are not
// object attributes are looked up among the field values.
func (f Filter) MatchObject(obj Object) bool {
	return f.match(func(key string) (any, bool) {
		switch key {
		case "public_id":
			return obj.PublicID, true
		case "type_id":
			return obj.TypeID, true
		case "active":
			return obj.Active, true
		case "author_id":
			return obj.AuthorID, true
		}
		return obj.ValueOf(key)
	})
}

func (f Filter) match(lookup func(string) (any, bool)) bool {
	for key, want := range f {
		got, ok := lookup(key)
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
