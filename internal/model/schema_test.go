package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenameSection_PropagatesSentinel(t *testing.T) {
	typ := sampleType()
	if err := typ.RenameSection("ref-section-a", "rack"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	section, ok := typ.SectionByName("rack")
	if !ok {
		t.Fatalf("renamed section missing")
	}
	if diff := cmp.Diff([]string{"rack-field"}, section.Fields); diff != "" {
		t.Fatalf("section fields mismatch (-want +got):\n%s", diff)
	}
	if _, ok := typ.FieldByName("rack-field"); !ok {
		t.Fatalf("sentinel field not renamed")
	}
	if _, ok := typ.FieldByName("ref-section-a-field"); ok {
		t.Fatalf("old sentinel still present")
	}
	if diff := cmp.Diff([]string{"text-a", "rack-field"}, typ.RenderMeta.Summary.Fields); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestRenameSection_PlainSectionAndACL(t *testing.T) {
	typ := sampleType()
	if err := typ.RenameSection("multi-data-section-a", "disks"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok := typ.ACL.Restrictions["disks"]; !ok {
		t.Fatalf("restriction not renamed: %v", typ.ACL.Restrictions)
	}
	if _, ok := typ.ACL.Restrictions["multi-data-section-a"]; ok {
		t.Fatalf("stale restriction kept: %v", typ.ACL.Restrictions)
	}
}

func TestRenameSection_FailuresLeaveTypeUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Type)
		from   string
		to     string
	}{
		{name: "target in use", from: "section-a", to: "text-a"},
		{name: "unknown section", from: "nope", to: "other"},
		{name: "empty name", from: "section-a", to: "  "},
		{
			name: "broken schema",
			mutate: func(t *Type) {
				t.RenderMeta.Sections[0].Fields = append(t.RenderMeta.Sections[0].Fields, "ghost")
			},
			from: "section-a",
			to:   "general",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			typ := sampleType()
			if tc.mutate != nil {
				tc.mutate(&typ)
			}
			before := typ.Clone()
			err := typ.RenameSection(tc.from, tc.to)
			if !errors.Is(err, ErrInconsistentRename) {
				t.Fatalf("expected ErrInconsistentRename, got %v", err)
			}
			if diff := cmp.Diff(before, typ); diff != "" {
				t.Fatalf("type mutated on failure (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenameSection_StructuralErrorsAreReturned(t *testing.T) {
	typ := sampleType()
	typ.RenderMeta.Sections[0].Fields = append(typ.RenderMeta.Sections[0].Fields, "ghost")
	err := typ.RenameSection("section-a", "general")
	var errs ValidationErrors
	if !errors.As(err, &errs) || !errs.HasKind(ErrDanglingField) {
		t.Fatalf("expected dangling field detail, got %v", err)
	}
}

func TestSummaryLine(t *testing.T) {
	typ := sampleType()
	obj := Object{PublicID: 12, Fields: []FieldValue{
		{Name: "text-a", Value: "web-01"},
		{Name: "ref-section-a-field", Value: 4},
	}}
	if got := typ.SummaryLine(obj); got != "web-01 | 4" {
		t.Fatalf("unexpected summary %q", got)
	}
	if got := typ.SummaryLine(Object{PublicID: 12}); got != "#12" {
		t.Fatalf("unexpected fallback %q", got)
	}
}

func TestExternalLink_Resolve(t *testing.T) {
	link := sampleType().RenderMeta.External[0]
	obj := Object{Fields: []FieldValue{{Name: "text-a", Value: "web-01"}, {Name: "number-a", Value: 8}}}
	href, ok := link.Resolve(obj)
	if !ok || href != "https://mon.example/web-01/8" {
		t.Fatalf("unexpected href %q (ok=%v)", href, ok)
	}
	if _, ok := link.Resolve(Object{Fields: []FieldValue{{Name: "text-a", Value: "web-01"}}}); ok {
		t.Fatalf("expected missing value to fail")
	}
}

func TestRefTypes_UnmarshalJSON(t *testing.T) {
	cases := map[string]RefTypes{
		`{"ref_types": 4}`:      {4},
		`{"ref_types": [1, 2]}`: {1, 2},
		`{"ref_types": null}`:   nil,
		`{}`:                    nil,
	}
	for input, want := range cases {
		var field Field
		if err := json.Unmarshal([]byte(input), &field); err != nil {
			t.Fatalf("%s: %v", input, err)
		}
		if diff := cmp.Diff(want, field.RefTypes); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", input, diff)
		}
	}

	var field Field
	if err := json.Unmarshal([]byte(`{"ref_types": "x"}`), &field); err == nil {
		t.Fatalf("expected error for string ref_types")
	}
}

func TestObject_CloneIsIndependent(t *testing.T) {
	obj := Object{
		PublicID: 1,
		Fields:   []FieldValue{{Name: "text-a", Value: "a"}},
		MultiDataSections: []MultiDataSection{{
			SectionID: "multi-data-section-a",
			Values:    []MultiDataRow{{ID: 1, Data: []FieldValue{{Name: "text-b", Value: "sda"}}}},
		}},
	}
	clone := obj.Clone()
	clone.SetValue("text-a", "b")
	clone.SetValue("number-a", 3)
	clone.MultiDataSections[0].Values[0].Data[0].Value = "sdb"

	if v, _ := obj.ValueOf("text-a"); v != "a" {
		t.Fatalf("original mutated: %v", v)
	}
	if _, ok := obj.ValueOf("number-a"); ok {
		t.Fatalf("original gained a field")
	}
	rows, _ := obj.MultiData("multi-data-section-a")
	if v, _ := rows.Values[0].ValueOf("text-b"); v != "sda" {
		t.Fatalf("original row mutated: %v", v)
	}
	if v, _ := clone.ValueOf("number-a"); v != 3 {
		t.Fatalf("expected appended value, got %v", v)
	}
}

func TestReferencedTypes(t *testing.T) {
	typ := Type{
		PublicID: 2,
		RenderMeta: RenderMeta{Sections: []Section{
			{Name: "ref-section-rack", Type: SectionReference, Reference: &SectionRef{TypeID: 3, SectionName: "s"}},
		}},
		Fields: []Field{
			{Name: "ref-peer", Type: FieldRef, RefTypes: RefTypes{2, 7}},
			{Name: "ref-section-rack-field", Type: FieldRef, Reference: &SectionRef{TypeID: 3}},
			{Name: "text-a", Type: FieldText},
		},
	}
	if diff := cmp.Diff([]int{3, 7}, typ.ReferencedTypes()); diff != "" {
		t.Fatalf("referenced types mismatch (-want +got):\n%s", diff)
	}
}
