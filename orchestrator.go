package cmdbform

import (
	"context"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/orchestrator"
	"github.com/goliatone/go-cmdbform/pkg/render"
)

// RenderOptions describes per-request overrides that renderers can use to
// surface server-side validation errors or narrow the output.
type RenderOptions = render.RenderOptions

// FieldSubset aliases render.FieldSubset for callers configuring partial
// rendering by section or field.
type FieldSubset = render.FieldSubset

// Mode aliases form.Mode.
type Mode = form.Mode

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewLoader exposes the schema document loader.
func NewLoader(options ...loader.Option) *loader.Loader {
	return loader.New(options...)
}

// Generate loads the Type behind location (a path or an http(s) URL),
// compiles it in create mode and renders it with the named renderer. It is
// the simplest entry point for callers that just want output.
func Generate(ctx context.Context, location, rendererName string, options ...orchestrator.Option) ([]byte, error) {
	src, err := loader.SourceFor(location)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(options...).Generate(ctx, orchestrator.Request{
		Source:   src,
		Renderer: rendererName,
	})
}

// GenerateFromType renders an already loaded Type, bypassing the loader
// stage while still delegating to the orchestrator. obj may be nil for
// create and bulk modes.
func GenerateFromType(ctx context.Context, t model.Type, obj *model.Object, mode Mode, rendererName string, options ...orchestrator.Option) ([]byte, error) {
	return orchestrator.New(options...).Generate(ctx, orchestrator.Request{
		Type:     &t,
		Object:   obj,
		Mode:     mode,
		Renderer: rendererName,
	})
}
