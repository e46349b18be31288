package render

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func serverResult(t *testing.T) form.RenderResult {
	t.Helper()
	obj := testsupport.ServerObject(100, "web-01")
	f, err := form.NewCompiler().Compile(context.Background(), testsupport.Server(), form.ModeView, &obj)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return f.Result()
}

func sectionNames(result form.RenderResult) []string {
	var out []string
	for _, section := range result.Sections {
		out = append(out, section.Name)
	}
	return out
}

func fieldNames(result form.RenderResult) []string {
	var out []string
	for _, field := range result.Fields {
		out = append(out, field.Name)
	}
	return out
}

func TestApplySubset_BySection(t *testing.T) {
	result := serverResult(t)
	ApplySubset(&result, ParseSubset("Multi-Data-Section-Disks, ref-section-rack", "", ""))

	if diff := cmp.Diff([]string{"multi-data-section-disks", "ref-section-rack"}, sectionNames(result)); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ref-section-rack"}, fieldNames(result)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ref-section-rack"}, result.Unavailable); diff != "" {
		t.Fatalf("unavailable mismatch (-want +got):\n%s", diff)
	}
}

func TestApplySubset_ByFieldAndKind(t *testing.T) {
	result := serverResult(t)
	ApplySubset(&result, ParseSubset("", `["text-host"]`, "number"))

	if diff := cmp.Diff([]string{"section-general", "multi-data-section-disks"}, sectionNames(result)); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"text-host", "number-cores"}, fieldNames(result)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	disks := result.Sections[1]
	if diff := cmp.Diff([]string{"number-size"}, disks.Fields); diff != "" {
		t.Fatalf("row fields mismatch (-want +got):\n%s", diff)
	}
	if len(disks.Rows) != 1 || len(disks.Rows[0]) != 1 || disks.Rows[0][0].Name != "number-size" {
		t.Fatalf("expected rows narrowed to number-size, got %+v", disks.Rows)
	}
	if result.Unavailable != nil {
		t.Fatalf("expected unavailable sections to be dropped, got %v", result.Unavailable)
	}
}

func TestApplySubset_EmptyKeepsEverything(t *testing.T) {
	result := serverResult(t)
	want := serverResult(t)
	ApplySubset(&result, FieldSubset{})
	if diff := cmp.Diff(want, result); diff != "" {
		t.Fatalf("result changed (-want +got):\n%s", diff)
	}
}
