package model

import "testing"

func TestFilter(t *testing.T) {
	f, err := ParseFilter(`{"name":"server","category_id":3}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.MatchType(Type{Name: "server", CategoryID: 3}) {
		t.Fatalf("expected match")
	}
	if f.MatchType(Type{Name: "server"}) {
		t.Fatalf("expected category mismatch")
	}

	objects, err := ParseFilter(`{"type_id":2,"text-host":"web-01"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	obj := Object{TypeID: 2, Fields: []FieldValue{{Name: "text-host", Value: "web-01"}}}
	if !objects.MatchObject(obj) {
		t.Fatalf("expected object match")
	}
	if objects.MatchObject(Object{TypeID: 2}) {
		t.Fatalf("expected missing field to fail")
	}

	empty, err := ParseFilter("  ")
	if err != nil || !empty.MatchType(Type{}) {
		t.Fatalf("expected empty filter to match everything, err=%v", err)
	}
	if _, err := ParseFilter("{"); err == nil {
		t.Fatalf("expected decode error")
	}
}
