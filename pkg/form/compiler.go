// Package form compiles a Type, a Mode and optional object data into a bound
// form: one control per field grouped by section, with mode-specific
// enablement, validation and prefill. Compilation is a pure function of its
// inputs; changing modes means compiling again.
package form

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
	"github.com/goliatone/go-cmdbform/pkg/visibility"
)

var (
	// ErrInvalidType is returned for Types with unknown field kinds or broken
	// section/field references.
	ErrInvalidType = errors.New("form: type cannot be compiled")
	// ErrObjectRequired is returned when edit, view or simple mode is
	// compiled without an object.
	ErrObjectRequired = errors.New("form: object required")
)

// Option configures a Compiler.
type Option func(*Compiler)

// WithRegistry sets the field type registry. Defaults to the built-ins.
func WithRegistry(registry *fieldtypes.Registry) Option {
	return func(c *Compiler) {
		if registry != nil {
			c.registry = registry
		}
	}
}

// WithSource enables reference resolution for ref fields and reference
// sections. Without a source every reference section compiles to an
// unavailable placeholder.
func WithSource(source resolver.Source) Option {
	return func(c *Compiler) {
		c.source = source
	}
}

// WithGroup applies the Type ACL for group: the group must hold the mode's
// permission and restricted sections and fields are left out.
func WithGroup(group int) Option {
	return func(c *Compiler) {
		c.group = group
		c.groupSet = true
	}
}

// WithDecorators appends Type decorators run before compilation.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(c *Compiler) {
		for _, decorator := range decorators {
			if decorator != nil {
				c.decorators = append(c.decorators, decorator)
			}
		}
	}
}

// WithLogger sets the compiler logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compiler) {
		c.logger = logging.OrNop(logger)
	}
}

// Compiler turns Types into forms. It holds no per-form state.
type Compiler struct {
	registry   *fieldtypes.Registry
	source     resolver.Source
	decorators []model.Decorator
	group      int
	groupSet   bool
	logger     logging.Logger
}

// NewCompiler constructs a compiler.
func NewCompiler(options ...Option) *Compiler {
	c := &Compiler{
		registry: fieldtypes.NewRegistry(),
		logger:   logging.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Registry returns the field type registry in use.
func (c *Compiler) Registry() *fieldtypes.Registry {
	return c.registry
}

// Compile builds a new form. Edit, view and simple modes need obj; create
// ignores it. Missing referenced Types or sections never fail compilation:
// the affected section becomes an unavailable placeholder.
func (c *Compiler) Compile(ctx context.Context, t model.Type, mode Mode, obj *model.Object) (*Form, error) {
	if c == nil {
		return nil, fmt.Errorf("form: compiler is nil")
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("form: unknown mode %q", mode)
	}
	if mode.NeedsObject() && obj == nil {
		return nil, fmt.Errorf("%w for %s mode", ErrObjectRequired, mode)
	}
	if obj != nil && mode.Prefilled() && obj.TypeID != 0 && t.PublicID != 0 && obj.TypeID != t.PublicID {
		return nil, fmt.Errorf("form: object %d has type %d, not %d", obj.PublicID, obj.TypeID, t.PublicID)
	}

	typ := t.Clone()
	if c.groupSet {
		if err := visibility.For(typ).Require(c.group, mode.Permission()); err != nil {
			return nil, fmt.Errorf("form: %w", err)
		}
		typ = visibility.Filter(typ, c.group)
	}
	for _, decorator := range c.decorators {
		if err := decorator.Decorate(&typ); err != nil {
			return nil, fmt.Errorf("form: decorate: %w", err)
		}
	}
	if errs := blocking(typ.Validate(c.registry.Checker())); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidType, errs)
	}

	f := &Form{
		mode:     mode,
		typ:      typ,
		index:    make(map[string]*Control),
		registry: c.registry,
		source:   c.source,
		logger:   c.logger,
	}
	if obj != nil && mode != ModeCreate {
		original := obj.Clone()
		f.original = &original
	}

	refs := newRefCache(c.source)
	for _, section := range typ.RenderMeta.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var inst *SectionInstance
		switch section.Type {
		case model.SectionMultiData:
			inst = c.compileMultiData(f, section)
		case model.SectionReference:
			inst = c.compileReference(ctx, f, section, refs)
		default:
			inst = c.compilePlain(ctx, f, section, refs)
		}
		f.sections = append(f.sections, inst)
		for _, control := range sectionControls(inst) {
			f.index[control.Path] = control
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

// blocking keeps the errors that make a Type impossible to compile.
func blocking(errs model.ValidationErrors) model.ValidationErrors {
	var out model.ValidationErrors
	for _, err := range errs {
		if err.Kind == model.ErrUnknownFieldKind || err.Kind == model.ErrUnknownSectionKind {
			out = append(out, err)
		}
	}
	for _, err := range errs.Structural() {
		if err.Kind != model.ErrDanglingMeta {
			out = append(out, err)
		}
	}
	return out
}

func (c *Compiler) initialValue(f *Form, field model.Field) any {
	if f.mode.Prefilled() && f.original != nil {
		value, _ := f.original.ValueOf(field.Name)
		return value
	}
	return defaultValue(field)
}

func (c *Compiler) compilePlain(ctx context.Context, f *Form, section model.Section, refs *refCache) *SectionInstance {
	inst := &SectionInstance{Name: section.Name, Label: section.Label, Kind: section.Type}
	for _, field := range f.typ.FieldsOf(section) {
		if field.Type == model.FieldRef && c.source != nil && len(field.RefTypes) > 0 {
			if err := refs.anyType(ctx, field.RefTypes); err != nil {
				c.logger.Warnf("form: field %q unavailable: %v", field.Name, err)
				placeholder := c.unavailableControl(field.Name, field.Name, field.Label, err)
				placeholder.Field = field
				inst.Controls = append(inst.Controls, placeholder)
				continue
			}
		}
		control := f.newControl(field, field.Name, c.initialValue(f, field))
		if field.Type == model.FieldRef && f.mode != ModeCreate {
			control.Reference = refs.display(ctx, control.Value)
		}
		inst.Controls = append(inst.Controls, control)
	}
	return inst
}

func (c *Compiler) compileMultiData(f *Form, section model.Section) *SectionInstance {
	inst := &SectionInstance{
		Name:     section.Name,
		Label:    section.Label,
		Kind:     section.Type,
		Template: f.typ.FieldsOf(section),
	}
	if !f.mode.Prefilled() || f.original == nil {
		return inst
	}
	data, ok := f.original.MultiData(section.Name)
	if !ok {
		return inst
	}
	for i, stored := range data.Values {
		row := &Row{ID: stored.ID}
		for _, field := range inst.Template {
			value, _ := stored.ValueOf(field.Name)
			row.Controls = append(row.Controls, f.newControl(field, RowPath(section.Name, i, field.Name), value))
		}
		inst.Rows = append(inst.Rows, row)
	}
	return inst
}

func (c *Compiler) compileReference(ctx context.Context, f *Form, section model.Section, refs *refCache) *SectionInstance {
	inst := &SectionInstance{Name: section.Name, Label: section.Label, Kind: section.Type}
	sentinel, _ := f.typ.ReferenceField(section)
	ref := *section.Reference

	if c.source == nil {
		return c.unavailable(inst, errors.New("no reference source configured"))
	}
	target, err := refs.typ(ctx, ref.TypeID)
	if err != nil {
		return c.unavailable(inst, fmt.Errorf("type %d: %w", ref.TypeID, err))
	}
	schema, err := resolver.SectionSnapshot(ctx, c.source, *target, ref, 0)
	if err != nil {
		return c.unavailable(inst, err)
	}

	selector := f.newControl(sentinel, sentinel.Name, c.initialValue(f, sentinel))
	reference := &ReferenceInstance{Ref: ref, TypeLabel: schema.TypeLabel, Selector: selector}
	snap := &schema
	if id, ok := fieldtypes.ID(selector.Value); ok && f.mode != ModeCreate {
		loaded, err := resolver.SectionSnapshot(ctx, c.source, *target, ref, id)
		if err != nil {
			c.logger.Warnf("form: reference section %q object %d: %v", section.Name, id, err)
			selector.Reference = &ReferenceDisplay{ObjectID: id, TypeID: ref.TypeID, TypeLabel: schema.TypeLabel, Missing: true}
		} else {
			snap = &loaded
			selector.Reference = &ReferenceDisplay{ObjectID: id, TypeID: loaded.TypeID, TypeLabel: loaded.TypeLabel, Summary: loaded.Summary}
		}
	}
	reference.Snapshot = snap

	for _, field := range snap.Fields {
		value, ok := snap.Value(field.Name)
		if !ok && f.mode == ModeBulk {
			value = defaultValue(field)
		}
		control := f.newControl(field, ReferencePath(section.Name, field.Name), value)
		control.Required = false
		control.Disabled = f.mode != ModeBulk
		reference.Controls = append(reference.Controls, control)
	}
	inst.Reference = reference
	return inst
}

func (c *Compiler) unavailable(inst *SectionInstance, cause error) *SectionInstance {
	c.logger.Warnf("form: section %q unavailable: %v", inst.Name, cause)
	inst.Placeholder = c.unavailableControl(inst.Name, inst.Name, inst.Label, cause)
	return inst
}

// unavailableControl is the terminal placeholder standing in for a section
// or field whose referenced Type or section is gone.
func (c *Compiler) unavailableControl(path, name, label string, cause error) *Control {
	if label == "" {
		label = model.DefaultLabeler(name)
	}
	return &Control{
		Path:        path,
		Name:        name,
		Label:       label,
		Kind:        model.FieldRef,
		Disabled:    true,
		Unavailable: true,
		Reason:      cause.Error(),
		Text:        "field unavailable",
	}
}

// refCache memoises Type lookups, failures included, while compiling one
// form.
type refCache struct {
	source resolver.Source
	types  map[int]*model.Type
	errs   map[int]error
}

func newRefCache(source resolver.Source) *refCache {
	return &refCache{source: source, types: map[int]*model.Type{}, errs: map[int]error{}}
}

func (r *refCache) typ(ctx context.Context, id int) (*model.Type, error) {
	if typ, ok := r.types[id]; ok {
		return typ, nil
	}
	if err, ok := r.errs[id]; ok {
		return nil, err
	}
	loaded, err := r.source.GetType(ctx, id)
	if err != nil {
		r.errs[id] = err
		return nil, err
	}
	r.types[id] = &loaded
	return &loaded, nil
}

// anyType fails only when none of ids resolves.
func (r *refCache) anyType(ctx context.Context, ids []int) error {
	var last error
	for _, id := range ids {
		_, err := r.typ(ctx, id)
		if err == nil {
			return nil
		}
		last = err
	}
	return fmt.Errorf("referenced types %v: %w", ids, last)
}

func (r *refCache) display(ctx context.Context, value any) *ReferenceDisplay {
	id, ok := fieldtypes.ID(value)
	if !ok || r.source == nil {
		return nil
	}
	obj, err := r.source.GetObject(ctx, id)
	if err != nil {
		return &ReferenceDisplay{ObjectID: id, Missing: true}
	}
	display := &ReferenceDisplay{ObjectID: id, TypeID: obj.TypeID}
	typ, err := r.typ(ctx, obj.TypeID)
	if err != nil {
		display.Summary = fmt.Sprintf("#%d", id)
		return display
	}
	display.TypeLabel = typ.Label
	display.Summary = typ.SummaryLine(obj)
	return display
}
