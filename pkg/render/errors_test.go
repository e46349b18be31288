package render_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func TestMapErrorPayload_PathVariants(t *testing.T) {
	obj := testsupport.ServerObject(100, "web-01")
	f, err := form.NewCompiler().Compile(context.Background(), testsupport.Server(), form.ModeEdit, &obj)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	payload := map[string][]string{
		"/body/text-host":                         {"Hostname taken"},
		"data.number-cores":                       {" Too many cores ", "Too many cores"},
		"$.multi-data-section-disks[0].text-disk": {"Disk unknown"},
		"request/payload/select-os/extra":         {"OS retired"},
		"non_field_errors":                        {"Form level error"},
		"request/body/unknown-field":              {"Should fall back to form errors"},
		"":                                        {"Unscoped form error"},
	}

	mapped := render.MapErrorPayload(render.FormPaths(f), payload)

	wantFields := map[string][]string{
		"text-host":                            {"Hostname taken"},
		"number-cores":                         {"Too many cores"},
		"multi-data-section-disks.0.text-disk": {"Disk unknown"},
		"select-os":                            {"OS retired"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}

	wantForm := []string{"Form level error", "Should fall back to form errors", "Unscoped form error"}
	if diff := cmp.Diff(wantForm, mapped.Form, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayload_TypeName(t *testing.T) {
	mapped := render.MapErrorPayload(render.TypePaths(testsupport.T1()), map[string][]string{
		"name": {"type name already exists"},
	})
	if diff := cmp.Diff([]string{"type name already exists"}, mapped.For("name")); diff != "" {
		t.Fatalf("name errors mismatch (-want +got):\n%s", diff)
	}
	if mapped.Form != nil {
		t.Fatalf("unexpected form errors %v", mapped.Form)
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	want := []string{"First", "Second", "third"}

	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged form errors mismatch (-want +got):\n%s", diff)
	}
}
