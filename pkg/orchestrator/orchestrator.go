package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/renderers/jsonview"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

const defaultRendererName = "json"

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects the loader used for Request sources.
func WithLoader(l *loader.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = l
	}
}

// WithCompilerOptions forwards options to every compiler the orchestrator
// builds, for example form.WithRegistry.
func WithCompilerOptions(options ...form.Option) Option {
	return func(o *Orchestrator) {
		o.compilerOptions = append(o.compilerOptions, options...)
	}
}

// WithSource enables reference resolution while compiling.
func WithSource(source resolver.Source) Option {
	return func(o *Orchestrator) {
		o.source = source
	}
}

// WithRegistry injects a renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer overrides the renderer used when a request omits an
// explicit Renderer field.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithSchemaTransformer registers a Transformer that can mutate a Type after
// loading but before decorators run.
func WithSchemaTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithDecorators registers decorators that should run against the Type
// before compilation.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(o *Orchestrator) {
		if len(decorators) == 0 {
			return
		}
		o.decorators = append(o.decorators, decorators...)
	}
}

// WithLogger sets the logger handed to the compiler.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logging.OrNop(logger)
	}
}

// Orchestrator coordinates the pipeline from Type document to rendered
// output. It applies sensible defaults (json renderer, built-in field types)
// while remaining open to dependency injection for advanced callers.
type Orchestrator struct {
	loader          *loader.Loader
	source          resolver.Source
	registry        *render.Registry
	compilerOptions []form.Option
	decorators      []model.Decorator
	transformer     Transformer
	defaultRenderer string
	logger          logging.Logger
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultRenderer: defaultRendererName,
		logger:          logging.Nop(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	if o.loader == nil {
		o.loader = loader.New(loader.WithLogger(o.logger))
	}
	if o.registry == nil {
		registry, err := render.NewRegistry(jsonview.New())
		if err != nil {
			panic(err)
		}
		o.registry = registry
	}
	if o.defaultRenderer == "" {
		o.defaultRenderer = defaultRendererName
	}
	return o
}

// Request describes the inputs required to render one form.
type Request struct {
	// Source identifies where the Type document lives. Optional when Type is
	// supplied.
	Source loader.Source

	// Type bypasses the loader when the caller already holds the schema.
	Type *model.Type

	// Object is the instance for edit, view and simple modes. ObjectSource
	// loads it instead when Object is nil.
	Object       *model.Object
	ObjectSource loader.Source

	// Mode defaults to create.
	Mode form.Mode

	// Group applies the Type ACL for that group when set.
	Group *int

	// Renderer names the renderer to use. If empty, the orchestrator falls
	// back to the configured default renderer.
	Renderer string

	// RenderOptions carries per-request errors and subsets.
	RenderOptions render.RenderOptions
}

// Generate runs load, transform, compile and render and returns the rendered
// bytes.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, error) {
	f, err := o.Compile(ctx, req)
	if err != nil {
		return nil, err
	}

	renderer, err := o.rendererFor(req.Renderer)
	if err != nil {
		return nil, err
	}

	output, err := renderer.Render(ctx, f, req.RenderOptions)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: render output: %w", err)
	}
	return output, nil
}

// Compile runs the pipeline up to the compiled form.
func (o *Orchestrator) Compile(ctx context.Context, req Request) (*form.Form, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := o.resolveType(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := o.applyTransformer(ctx, &t); err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = form.ModeCreate
	}
	obj, err := o.resolveObject(ctx, req, mode)
	if err != nil {
		return nil, err
	}

	options := append([]form.Option{form.WithLogger(o.logger)}, o.compilerOptions...)
	if o.source != nil {
		options = append(options, form.WithSource(o.source))
	}
	if len(o.decorators) > 0 {
		options = append(options, form.WithDecorators(o.decorators...))
	}
	if req.Group != nil {
		options = append(options, form.WithGroup(*req.Group))
	}

	f, err := form.NewCompiler(options...).Compile(ctx, t, mode, obj)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: compile form: %w", err)
	}
	return f, nil
}

func (o *Orchestrator) resolveType(ctx context.Context, req Request) (model.Type, error) {
	if req.Type != nil {
		return req.Type.Clone(), nil
	}
	if req.Source == nil {
		return model.Type{}, errors.New("orchestrator: source or type is required")
	}
	t, err := o.loader.LoadType(ctx, req.Source)
	if err != nil {
		return model.Type{}, fmt.Errorf("orchestrator: load type: %w", err)
	}
	return t, nil
}

func (o *Orchestrator) resolveObject(ctx context.Context, req Request, mode form.Mode) (*model.Object, error) {
	if req.Object != nil {
		obj := req.Object.Clone()
		return &obj, nil
	}
	if req.ObjectSource == nil {
		if mode.NeedsObject() {
			return nil, fmt.Errorf("orchestrator: %w for %s mode", form.ErrObjectRequired, mode)
		}
		return nil, nil
	}
	obj, err := o.loader.LoadObject(ctx, req.ObjectSource)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load object: %w", err)
	}
	return &obj, nil
}

func (o *Orchestrator) rendererFor(name string) (render.Renderer, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultRenderer
	}

	if target != "" {
		renderer, err := o.registry.Get(target)
		if err == nil {
			return renderer, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: renderer %q: %w", name, err)
		}
	}

	names := o.registry.List()
	if len(names) == 0 {
		return nil, errors.New("orchestrator: no renderers registered")
	}

	renderer, err := o.registry.Get(names[0])
	if err != nil {
		return nil, fmt.Errorf("orchestrator: renderer %q: %w", names[0], err)
	}
	return renderer, nil
}

func (o *Orchestrator) applyTransformer(ctx context.Context, t *model.Type) error {
	if o.transformer == nil {
		return nil
	}
	if err := o.transformer.Transform(ctx, t); err != nil {
		return fmt.Errorf("orchestrator: transform type: %w", err)
	}
	return nil
}
