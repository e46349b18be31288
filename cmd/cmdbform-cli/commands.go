package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/builder"
	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/openapi"
	"github.com/goliatone/go-cmdbform/pkg/orchestrator"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/renderers/jsonview"
	"github.com/goliatone/go-cmdbform/pkg/renderers/tui"
)

func newFlagSet(e *env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func sourceOf(path string) (loader.Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}
	return loader.SourceFor(path)
}

func loadType(ctx context.Context, e *env, path string) (model.Type, error) {
	src, err := sourceOf(path)
	if err != nil {
		return model.Type{}, err
	}
	return loader.New(loader.WithLogger(e.logger)).LoadType(ctx, src)
}

func runValidate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "validate")
	objectPath := fs.String("object", "", "object document validated against the single Type given")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one Type document is required")
	}

	registry := fieldtypes.NewRegistry()
	l := loader.New(loader.WithLogger(e.logger))
	var (
		types    []model.Type
		problems int
	)
	for _, path := range fs.Args() {
		src, err := sourceOf(path)
		if err != nil {
			return err
		}
		loaded, err := l.LoadTypes(ctx, src)
		if err != nil {
			return err
		}
		for _, t := range loaded {
			errs := t.Validate(registry.Checker())
			if len(errs) == 0 {
				fmt.Fprintf(e.stdout, "ok     %s: %s\n", path, t.Name)
				continue
			}
			problems += len(errs)
			for _, verr := range errs {
				fmt.Fprintf(e.stdout, "error  %s: %s: %s\n", path, t.Name, verr.Error())
			}
		}
		types = append(types, loaded...)
	}

	if *objectPath != "" {
		if len(types) != 1 {
			return fmt.Errorf("-object needs exactly one Type, got %d", len(types))
		}
		errs, err := validateObject(ctx, l, registry, types[0], *objectPath)
		if err != nil {
			return err
		}
		paths := make([]string, 0, len(errs))
		for path := range errs {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			problems++
			fmt.Fprintf(e.stdout, "error  %s: %s: %s\n", *objectPath, path, strings.Join(errs[path], "; "))
		}
		if len(errs) == 0 {
			fmt.Fprintf(e.stdout, "ok     %s\n", *objectPath)
		}
	}

	if problems > 0 {
		return fmt.Errorf("%d problem(s) found", problems)
	}
	return nil
}

// validateObject merges the form validators with the OpenAPI schema check.
func validateObject(ctx context.Context, l *loader.Loader, registry *fieldtypes.Registry, t model.Type, path string) (map[string][]string, error) {
	src, err := sourceOf(path)
	if err != nil {
		return nil, err
	}
	obj, err := l.LoadObject(ctx, src)
	if err != nil {
		return nil, err
	}
	f, err := form.NewCompiler(form.WithRegistry(registry)).Compile(ctx, t, form.ModeEdit, &obj)
	if err != nil {
		return nil, err
	}

	merged := make(map[string][]string)
	for path, messages := range f.Validate() {
		merged[path] = append(merged[path], messages...)
	}
	var schemaErrs openapi.Errors
	switch err := openapi.ValidateObject(t, obj); {
	case err == nil:
	case errors.As(err, &schemaErrs):
		for path, messages := range schemaErrs {
			merged[path] = append(merged[path], messages...)
		}
	default:
		return nil, err
	}
	for path, messages := range merged {
		merged[path] = render.MergeFormErrors(nil, messages...)
	}
	return merged, nil
}

func runDuplicate(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "duplicate")
	name := fs.String("name", "", "name of the copy")
	label := fs.String("label", "", "label of the copy (default: original label plus \"(copy)\")")
	save := fs.Bool("save", false, "create the copy through the REST API")
	out := fs.String("o", "", "output file (stdout if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	t, err := loadType(ctx, e, fs.Arg(0))
	if err != nil {
		return err
	}

	repo, err := e.repository()
	if err != nil {
		return err
	}
	options := []builder.Option{builder.WithLogger(e.logger)}
	if repo != nil {
		options = append(options, builder.WithBackend(repo))
	}
	session := builder.New(t, options...)
	defer session.Close()

	dup, err := session.Duplicate()
	if err != nil {
		return err
	}
	if *name != "" || *label != "" {
		basic := builder.Basic{
			Name:        dup.Name,
			Label:       dup.Label,
			Description: dup.Description,
			Icon:        dup.RenderMeta.Icon,
			Active:      dup.Active,
		}
		if *name != "" {
			basic.Name = *name
		}
		if *label != "" {
			basic.Label = *label
		}
		if dup, err = session.UpdateBasic(basic); err != nil {
			return err
		}
	}

	if *save {
		if repo == nil {
			return errors.New("-save needs api_url")
		}
		saved, err := session.Save(ctx)
		var fieldErr *builder.FieldError
		if errors.As(err, &fieldErr) {
			return fmt.Errorf("%s: %s", fieldErr.Field, strings.Join(fieldErr.Messages, "; "))
		}
		if err != nil {
			return err
		}
		dup = saved
	}
	for _, warning := range session.Warnings() {
		e.logger.Warnf("%s", warning.Message)
	}

	data, err := json.MarshalIndent(dup, "", "  ")
	if err != nil {
		return err
	}
	return e.output(*out, data)
}

type renderFlags struct {
	mode     *string
	renderer *string
	object   *string
	typeID   *int
	objectID *int
	sections *string
	fields   *string
	out      *string
}

func bindRenderFlags(fs *flag.FlagSet, mode, renderer string) renderFlags {
	return renderFlags{
		mode:     fs.String("mode", mode, "create, edit, view, bulk or simple"),
		renderer: fs.String("renderer", renderer, "json or tui"),
		object:   fs.String("object", "", "object document for edit, view and simple modes"),
		typeID:   fs.Int("type-id", 0, "load the Type from the REST API instead of a file"),
		objectID: fs.Int("object-id", 0, "load the object from the REST API"),
		sections: fs.String("sections", "", "comma separated sections to render"),
		fields:   fs.String("fields", "", "comma separated fields to render"),
		out:      fs.String("o", "", "output file (stdout if empty)"),
	}
}

func runRender(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "render")
	flags := bindRenderFlags(fs, string(form.ModeView), "json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := generate(ctx, e, flags, fs.Arg(0), tui.OutputFormatPrettyText)
	if err != nil {
		return err
	}
	return e.output(*flags.out, data)
}

func runFill(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "fill")
	flags := bindRenderFlags(fs, string(form.ModeCreate), "tui")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := generate(ctx, e, flags, fs.Arg(0), tui.OutputFormatJSON)
	if err != nil {
		return err
	}
	return e.output(*flags.out, data)
}

func generate(ctx context.Context, e *env, flags renderFlags, path string, format tui.OutputFormat) ([]byte, error) {
	mode, err := form.ParseMode(*flags.mode)
	if err != nil {
		return nil, err
	}
	terminal, err := tui.New(tui.WithOutput(e.stderr), tui.WithOutputFormat(format))
	if err != nil {
		return nil, err
	}
	registry, err := render.NewRegistry(jsonview.New(jsonview.WithIndent("  ")), terminal)
	if err != nil {
		return nil, err
	}

	repo, err := e.repository()
	if err != nil {
		return nil, err
	}
	options := []orchestrator.Option{
		orchestrator.WithRegistry(registry),
		orchestrator.WithLogger(e.logger),
		orchestrator.WithLoader(loader.New(loader.WithLogger(e.logger))),
	}
	if repo != nil {
		options = append(options, orchestrator.WithSource(repo))
	}

	req := orchestrator.Request{
		Mode:          mode,
		Renderer:      *flags.renderer,
		Group:         e.cfg.group,
		RenderOptions: render.RenderOptions{Subset: render.ParseSubset(*flags.sections, *flags.fields, "")},
	}
	if *flags.typeID > 0 || *flags.objectID > 0 {
		if repo == nil {
			return nil, errors.New("-type-id and -object-id need api_url")
		}
	}
	if *flags.typeID > 0 {
		t, err := repo.GetType(ctx, *flags.typeID)
		if err != nil {
			return nil, err
		}
		if err := repo.Prefetch(ctx, t.ReferencedTypes()...); err != nil {
			e.logger.Warnf("prefetch referenced types: %v", err)
		}
		req.Type = &t
	} else {
		src, err := sourceOf(path)
		if err != nil {
			return nil, err
		}
		req.Source = src
	}
	switch {
	case *flags.objectID > 0:
		obj, err := repo.GetObject(ctx, *flags.objectID)
		if err != nil {
			return nil, err
		}
		req.Object = &obj
	case *flags.object != "":
		src, err := sourceOf(*flags.object)
		if err != nil {
			return nil, err
		}
		req.ObjectSource = src
	}

	return orchestrator.New(options...).Generate(ctx, req)
}

func runOpenAPI(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "openapi")
	format := fs.String("format", "yaml", "json or yaml")
	title := fs.String("title", "", "document title")
	version := fs.String("version", "", "document version")
	out := fs.String("o", "", "output file (stdout if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one Type document is required")
	}

	l := loader.New(loader.WithLogger(e.logger), loader.WithChecker(fieldtypes.NewRegistry().Checker()))
	var types []model.Type
	for _, path := range fs.Args() {
		src, err := sourceOf(path)
		if err != nil {
			return err
		}
		loaded, err := l.LoadTypes(ctx, src)
		if err != nil {
			return err
		}
		types = append(types, loaded...)
	}

	doc, err := openapi.Document(ctx, openapi.Info{Title: *title, Version: *version}, types...)
	if err != nil {
		return err
	}
	data, err := openapi.Marshal(doc, *format)
	if err != nil {
		return err
	}
	return e.output(*out, data)
}

func runWatch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "watch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := fs.Arg(0)
	if path == "" {
		return errors.New("document path is required")
	}
	l := loader.New(loader.WithLogger(e.logger), loader.WithChecker(fieldtypes.NewRegistry().Checker()))
	return l.Watch(ctx, path, func(t model.Type, err error) {
		if err != nil {
			fmt.Fprintf(e.stdout, "error  %s: %v\n", path, err)
			return
		}
		fmt.Fprintf(e.stdout, "ok     %s: %s (%d sections, %d fields)\n", path, t.Name, len(t.RenderMeta.Sections), len(t.Fields))
	})
}
