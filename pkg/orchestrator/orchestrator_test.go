package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/orchestrator"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/renderers/jsonview"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

const t1YAML = `
public_id: 1
name: t1
label: T1
active: true
render_meta:
  sections:
    - name: section-main
      label: Main
      type: section
      fields: [name]
  summary:
    fields: [name]
fields:
  - name: name
    label: Name
    type: text
    required: true
`

func files() fstest.MapFS {
	return fstest.MapFS{
		"types/t1.yaml":     {Data: []byte(t1YAML)},
		"objects/five.json": {Data: []byte(`{"public_id":5,"type_id":1,"fields":[{"name":"name","value":"alpha"}]}`)},
		"presets/t1.yaml":   {Data: []byte("label: Things\nfields:\n  name: {label: Full name, placeholder: jane}\n")},
	}
}

func decode(t *testing.T, raw []byte) jsonview.Document {
	t.Helper()
	var doc jsonview.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, raw)
	}
	return doc
}

func TestOrchestrator_GenerateFromSources(t *testing.T) {
	orch := orchestrator.New(orchestrator.WithLoader(loader.New(loader.WithFileSystem(files()))))

	raw, err := orch.Generate(context.Background(), orchestrator.Request{
		Source:       loader.SourceFromFS("types/t1.yaml"),
		ObjectSource: loader.SourceFromFS("objects/five.json"),
		Mode:         form.ModeView,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	doc := decode(t, raw)

	type summary struct {
		PublicID int
		Mode     form.Mode
		Summary  string
		Value    any
		Sections int
	}
	want := summary{PublicID: 5, Mode: form.ModeView, Summary: "alpha", Value: "alpha", Sections: 1}
	got := summary{
		PublicID: doc.Result.PublicID,
		Mode:     doc.Result.Mode,
		Summary:  doc.Result.Summary,
		Sections: len(doc.Result.Sections),
	}
	if len(doc.Result.Fields) == 1 {
		got.Value = doc.Result.Fields[0].Value
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestOrchestrator_DefaultsToCreate(t *testing.T) {
	typ := testsupport.T1()
	f, err := orchestrator.New().Compile(context.Background(), orchestrator.Request{Type: &typ})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Mode() != form.ModeCreate {
		t.Fatalf("expected create mode, got %s", f.Mode())
	}
	if errs := f.Validate(); len(errs["name"]) == 0 {
		t.Fatalf("expected required error on name, got %v", errs)
	}
}

func TestOrchestrator_RequiresObjectForEdit(t *testing.T) {
	typ := testsupport.T1()
	_, err := orchestrator.New().Generate(context.Background(), orchestrator.Request{Type: &typ, Mode: form.ModeEdit})
	if !errors.Is(err, form.ErrObjectRequired) {
		t.Fatalf("expected ErrObjectRequired, got %v", err)
	}
}

func TestOrchestrator_AppliesTransformerAndDecorators(t *testing.T) {
	preset, err := orchestrator.NewPresetTransformerFromFS(files(), "presets/t1.yaml")
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	var decorated bool
	orch := orchestrator.New(
		orchestrator.WithSchemaTransformer(preset),
		orchestrator.WithDecorators(model.DecoratorFunc(func(t *model.Type) error {
			decorated = t.Label == "Things"
			return nil
		})),
	)

	typ := testsupport.T1()
	f, err := orch.Compile(context.Background(), orchestrator.Request{Type: &typ})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	control, ok := f.Control("name")
	if !ok {
		t.Fatal("expected name control")
	}
	if control.Label != "Full name" || control.Field.Placeholder != "jane" {
		t.Fatalf("preset not applied: %+v", control)
	}
	if !decorated {
		t.Fatal("decorator should see the transformed type")
	}
	if typ.Fields[0].Label != "Name" {
		t.Fatalf("request type must not be mutated, got %q", typ.Fields[0].Label)
	}
}

func TestOrchestrator_TransformerErrors(t *testing.T) {
	preset, err := orchestrator.NewPresetTransformer([]byte(`{"fields":{"missing":{"label":"x"}}}`))
	if err != nil {
		t.Fatalf("preset: %v", err)
	}
	typ := testsupport.T1()
	_, err = orchestrator.New(orchestrator.WithSchemaTransformer(preset)).Compile(context.Background(), orchestrator.Request{Type: &typ})
	if err == nil {
		t.Fatal("expected unknown field error")
	}
	if _, err := orchestrator.NewPresetTransformer([]byte("  ")); err == nil {
		t.Fatal("expected empty document error")
	}
}

func TestOrchestrator_RendererSelection(t *testing.T) {
	registry, err := render.NewRegistry(jsonview.New(jsonview.WithIndent("  ")))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	orch := orchestrator.New(orchestrator.WithRegistry(registry), orchestrator.WithDefaultRenderer("missing"))
	typ := testsupport.T1()

	if _, err := orch.Generate(context.Background(), orchestrator.Request{Type: &typ}); err != nil {
		t.Fatalf("fallback to first renderer: %v", err)
	}
	_, err = orch.Generate(context.Background(), orchestrator.Request{Type: &typ, Renderer: "html"})
	if !errors.Is(err, render.ErrRendererNotFound) {
		t.Fatalf("expected ErrRendererNotFound, got %v", err)
	}
	if _, err := orch.Generate(context.Background(), orchestrator.Request{}); err == nil {
		t.Fatal("expected missing source error")
	}
}
