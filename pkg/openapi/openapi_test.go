package openapi

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func propertyNames(t *testing.T, names map[string]bool) []string {
	t.Helper()
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TestSchemaForType_Server(t *testing.T) {
	schema := SchemaForType(testsupport.Server())

	got := map[string]bool{}
	for name := range schema.Properties {
		got[name] = true
	}
	want := []string{"multi-data-section-disks", "number-cores", "ref-peer", "ref-section-rack-field", "select-os", "text-host"}
	if diff := cmp.Diff(want, propertyNames(t, got)); diff != "" {
		t.Fatalf("properties mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"text-host"}, schema.Required); diff != "" {
		t.Fatalf("required mismatch (-want +got):\n%s", diff)
	}

	disks := schema.Properties["multi-data-section-disks"].Value
	if diff := cmp.Diff([]string{"text-disk"}, disks.Items.Value.Required); diff != "" {
		t.Fatalf("row required mismatch (-want +got):\n%s", diff)
	}
	if got := disks.Extensions[ExtensionSectionKind]; got != string(model.SectionMultiData) {
		t.Fatalf("expected section extension, got %v", got)
	}

	os := schema.Properties["select-os"].Value
	if diff := cmp.Diff([]any{"linux", "bsd"}, os.Enum); diff != "" {
		t.Fatalf("enum mismatch (-want +got):\n%s", diff)
	}
	if !os.Nullable || os.Default != "linux" {
		t.Fatalf("expected nullable select with default, got nullable=%v default=%v", os.Nullable, os.Default)
	}
	cores := schema.Properties["number-cores"].Value
	if cores.Min == nil || *cores.Min != 1 {
		t.Fatalf("expected min 1, got %v", cores.Min)
	}
}

func TestValidateObject_Valid(t *testing.T) {
	if err := ValidateObject(testsupport.Server(), testsupport.ServerObject(100, "db1")); err != nil {
		t.Fatalf("expected valid object, got %v", err)
	}
}

func TestValidateObject_ReportsPaths(t *testing.T) {
	obj := testsupport.ServerObject(100, "db1")
	obj.Fields = []model.FieldValue{
		{Name: "select-os", Value: "windows"},
		{Name: "number-cores", Value: 0.5},
		{Name: "ref-section-rack-field", Value: "rack-40"},
	}
	obj.MultiDataSections[0].Values[0].Data = []model.FieldValue{{Name: "number-size", Value: 1.0}}

	err := ValidateObject(testsupport.Server(), obj)
	var verrs Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected Errors, got %v", err)
	}
	got := map[string]bool{}
	for path := range verrs {
		got[path] = true
	}
	want := []string{"multi-data-section-disks.0.text-disk", "number-cores", "ref-section-rack-field", "select-os", "text-host"}
	if diff := cmp.Diff(want, propertyNames(t, got)); diff != "" {
		t.Fatalf("error paths mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(verrs["text-host"][0], "missing") {
		t.Fatalf("unexpected required message %q", verrs["text-host"][0])
	}
	if !strings.Contains(err.Error(), "select-os") {
		t.Fatalf("error text should name paths: %v", err)
	}
}

func TestFieldSchema_Kinds(t *testing.T) {
	cases := map[string]struct {
		field model.Field
		good  any
		bad   any
	}{
		"checkbox bool":    {field: model.Field{Name: "c", Type: model.FieldCheckbox, Required: true}, good: true, bad: "yes"},
		"checkbox options": {field: model.Field{Name: "c", Type: model.FieldCheckbox, Required: true, Options: []model.Option{{Name: "a"}, {Name: "b"}}}, good: []any{"a", "b"}, bad: []any{"z"}},
		"date string":      {field: model.Field{Name: "d", Type: model.FieldDate, Required: true}, good: "2024-02-01", bad: 12.0},
		"date millis":      {field: model.Field{Name: "d", Type: model.FieldDate, Required: true}, good: map[string]any{"$date": 1700000000000.0}, bad: map[string]any{"day": 1.0}},
		"location":         {field: model.Field{Name: "l", Type: model.FieldLocation, Required: true}, good: map[string]any{"lat": 52.5, "lng": 13.4}, bad: map[string]any{"lat": 120.0, "lng": 0.0}},
		"ref":              {field: model.Field{Name: "r", Type: model.FieldRef, Required: true}, good: 7.0, bad: 0.0},
		"regex":            {field: model.Field{Name: "t", Type: model.FieldText, Required: true, Regex: "^[a-z]+$"}, good: "abc", bad: "ABC"},
		"phone":            {field: model.Field{Name: "p", Type: model.FieldPhone, Required: true}, good: "+49 30 1234", bad: "call me"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			schema := FieldSchema(tc.field)
			if err := schema.VisitJSON(tc.good); err != nil {
				t.Fatalf("expected %v to pass: %v", tc.good, err)
			}
			if err := schema.VisitJSON(tc.bad); err == nil {
				t.Fatalf("expected %v to fail", tc.bad)
			}
		})
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	ctx := context.Background()
	doc, err := Document(ctx, Info{Title: "Inventory"}, testsupport.Server(), testsupport.Rack())
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if doc.Paths.Value("/object/server") == nil || doc.Paths.Value("/object/rack") == nil {
		t.Fatalf("expected object paths, got %v", doc.Paths.Map())
	}

	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			raw, err := Marshal(doc, format)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			parsed, err := Parse(ctx, raw)
			if err != nil {
				t.Fatalf("parse: %v\n%s", err, raw)
			}
			if parsed.Info.Title != "Inventory" {
				t.Fatalf("unexpected title %q", parsed.Info.Title)
			}
			if _, ok := parsed.Components.Schemas["type_server"]; !ok {
				t.Fatalf("missing server component")
			}
		})
	}

	if _, err := Document(ctx, Info{}, testsupport.Rack(), testsupport.Rack()); err == nil {
		t.Fatal("expected duplicate type error")
	}
	if _, err := Marshal(doc, "xml"); err == nil {
		t.Fatal("expected unknown format error")
	}
}
