// Package builder edits a Type through named mutations that keep its
// sections, fields and meta configuration consistent, and walks the
// editing wizard that decides when the Type may be persisted.
package builder

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Backend is the repository a Session loads from and saves to.
type Backend interface {
	GetType(ctx context.Context, id int) (model.Type, error)
	ListTypes(ctx context.Context, params model.ListParams) (model.Page[model.Type], error)
	CreateType(ctx context.Context, t model.Type) (model.Type, error)
	UpdateType(ctx context.Context, t model.Type) (model.Type, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	CategoryTree(ctx context.Context) ([]model.CategoryNode, error)
}

// Option customises a Session.
type Option func(*Session)

// WithBackend sets the repository used by Load, Save and the name checker.
func WithBackend(backend Backend) Option {
	return func(s *Session) {
		s.backend = backend
	}
}

// WithRegistry sets the field type registry deciding which kinds can be
// added. Defaults to the built-in registry.
func WithRegistry(registry *fieldtypes.Registry) Option {
	return func(s *Session) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithIDSource overrides the suffix generator of new identifiers.
func WithIDSource(next model.IDSource) Option {
	return func(s *Session) {
		if next != nil {
			s.next = next
		}
	}
}

// WithLogger sets the logger; warnings found on load are written at WARN.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logging.OrNop(logger)
	}
}

// WithCategories seeds the category tree used by SetCategory.
func WithCategories(nodes []model.CategoryNode) Option {
	return func(s *Session) {
		s.categories = nodes
	}
}

// WithNameDelay sets the debounce window of CheckName.
func WithNameDelay(delay time.Duration) Option {
	return func(s *Session) {
		s.nameDelay = delay
	}
}

// Session owns the Type under construction. Every mutation is applied to a
// copy which replaces the current Type only when it introduces no
// structural validation error.
type Session struct {
	mu         sync.Mutex
	typ        model.Type
	registry   *fieldtypes.Registry
	backend    Backend
	next       model.IDSource
	logger     logging.Logger
	categories []model.CategoryNode
	nameDelay  time.Duration
	names      *NameChecker
	wizard     *Wizard[model.Type]
	warnings   []Warning
}

// New starts a session over a copy of t. Pass the zero Type to build a new
// one.
func New(t model.Type, options ...Option) *Session {
	s := &Session{
		typ:    t.Clone(),
		next:   model.RandomSuffix,
		logger: logging.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	if s.registry == nil {
		s.registry = fieldtypes.NewRegistry()
	}
	s.names = NewNameChecker(s.backend, s.nameDelay)
	s.wizard = NewTypeWizard(s.registry.Checker())
	if s.categories != nil {
		_ = s.wizard.Seed(StepBasic, StepState{Data: BasicData{Categories: s.categories}})
	}
	s.wizard.Evaluate(s.typ)
	return s
}

// Close cancels a pending name check.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.names.Stop()
}

// Type returns a copy of the current Type.
func (s *Session) Type() model.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typ.Clone()
}

// Warnings returns the warnings collected by the last Load.
func (s *Session) Warnings() []Warning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Warning(nil), s.warnings...)
}

// Steps returns the wizard step names.
func (s *Session) Steps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Steps()
}

// Current returns the active wizard step.
func (s *Session) Current() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Current()
}

// StepState returns the last state of the named step.
func (s *Session) StepState(name string) (StepState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.State(name)
}

// Advance moves to the next step when the current one is valid.
func (s *Session) Advance() (StepState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Advance(s.typ)
}

// Back moves to the previous step.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Back()
}

// Persistable reports whether every step is valid.
func (s *Session) Persistable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wizard.Persistable()
}

func (s *Session) mutate(op string, fn func(*model.Type) error) (model.Type, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.typ.Clone()
	if err := fn(&candidate); err != nil {
		return s.typ.Clone(), fmt.Errorf("builder: %s: %w", op, err)
	}
	checker := s.registry.Checker()
	if introduced := newStructural(s.typ.Validate(checker), candidate.Validate(checker)); len(introduced) > 0 {
		return s.typ.Clone(), fmt.Errorf("builder: %s: %w", op, introduced)
	}
	s.typ = candidate
	s.wizard.Evaluate(s.typ)
	return s.typ.Clone(), nil
}

// newStructural returns the structural errors of after that before did not
// already have. Types loaded in a broken state stay editable.
func newStructural(before, after model.ValidationErrors) model.ValidationErrors {
	key := func(err model.ValidationError) string {
		return string(err.Kind) + "\x00" + err.Name
	}
	seen := make(map[string]bool)
	for _, err := range before.Structural() {
		seen[key(err)] = true
	}
	var out model.ValidationErrors
	for _, err := range after.Structural() {
		if !seen[key(err)] {
			out = append(out, err)
		}
	}
	return out
}

// Basic holds the attributes edited by the Basic step.
type Basic struct {
	Name        string
	Label       string
	Description string
	Icon        string
	Active      bool
}

// UpdateBasic sets the Type header. The icon is sanitized.
func (s *Session) UpdateBasic(basic Basic) (model.Type, error) {
	return s.mutate("update basic", func(t *model.Type) error {
		t.Name = strings.TrimSpace(basic.Name)
		t.Label = strings.TrimSpace(basic.Label)
		t.Description = strings.TrimSpace(basic.Description)
		t.RenderMeta.Icon = fieldtypes.SanitizeIcon(basic.Icon)
		t.Active = basic.Active
		return nil
	})
}

// SetCategory assigns the Type to a category of the loaded category tree.
// Zero clears the category.
func (s *Session) SetCategory(id int) (model.Type, error) {
	return s.mutate("set category", func(t *model.Type) error {
		if id != 0 {
			state, _ := s.wizard.State(StepBasic)
			data, _ := state.Data.(BasicData)
			if _, ok := findCategory(data.Categories, id); !ok {
				return fmt.Errorf("%w: %d", ErrUnknownCategory, id)
			}
		}
		t.CategoryID = id
		return nil
	})
}

// AddSection inserts a new section at index; out of range indexes append.
// Reference sections get their sentinel field.
func (s *Session) AddSection(kind model.SectionKind, label string, index int) (model.Type, error) {
	return s.mutate("add section", func(t *model.Type) error {
		if !kind.Known() {
			return fmt.Errorf("%w: section type %q", ErrInvalidKind, kind)
		}
		section := t.NewSection(kind, s.next)
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			section.Label = trimmed
		}
		if kind == model.SectionReference {
			sentinel := model.Field{
				Name:      model.ReferenceFieldName(section.Name),
				Label:     section.Label,
				Type:      model.FieldRef,
				Reference: &model.SectionRef{},
			}
			t.Fields = append(t.Fields, sentinel)
			section.Fields = []string{sentinel.Name}
		}
		t.RenderMeta.Sections = insertAt(t.RenderMeta.Sections, index, section)
		return nil
	})
}

// AddField creates a field of kind inside section at index.
func (s *Session) AddField(section string, kind model.FieldKind, index int) (model.Type, error) {
	return s.mutate("add field", func(t *model.Type) error {
		return s.addField(t, section, kind, index)
	})
}

func (s *Session) addField(t *model.Type, sectionName string, kind model.FieldKind, index int) error {
	if !s.registry.Has(kind) {
		return fmt.Errorf("%w: field type %q", ErrInvalidKind, kind)
	}
	i := t.SectionIndex(sectionName)
	if i < 0 {
		return fmt.Errorf("section %q: %w", sectionName, ErrNotFound)
	}
	section := &t.RenderMeta.Sections[i]
	if err := accepts(*section, kind); err != nil {
		return err
	}
	field := t.NewField(kind, s.next)
	t.Fields = append(t.Fields, field)
	section.Fields = insertAt(section.Fields, index, field.Name)
	return nil
}

func accepts(section model.Section, kind model.FieldKind) error {
	if section.Type == model.SectionReference {
		return fmt.Errorf("%w: %s", ErrSectionLocked, section.Name)
	}
	if section.Type == model.SectionMultiData && kind == model.FieldLocation {
		return fmt.Errorf("%w: location fields cannot repeat", ErrInvalidKind)
	}
	return nil
}

// DropEffect is the effect of a drag and drop gesture.
type DropEffect string

const (
	DropCopy DropEffect = "copy"
	DropMove DropEffect = "move"
)

// DropEvent describes a control dropped into a section. An empty From is
// the field palette, whose drops create a field of Kind.
type DropEvent struct {
	Effect    DropEffect
	Kind      model.FieldKind
	From      string
	To        string
	FromIndex int
	ToIndex   int
}

// Drop applies a drag and drop gesture. Moving removes the field from its
// source list and inserts it at ToIndex of the target; copying inserts a
// renamed copy. Any other effect is rejected without mutation.
func (s *Session) Drop(ev DropEvent) (model.Type, error) {
	if ev.Effect != DropCopy && ev.Effect != DropMove {
		return s.Type(), fmt.Errorf("%w: effect %q", ErrDropRejected, ev.Effect)
	}
	return s.mutate("drop", func(t *model.Type) error {
		target := t.SectionIndex(ev.To)
		if target < 0 {
			return fmt.Errorf("%w: target %q: %w", ErrDropRejected, ev.To, ErrNotFound)
		}
		if ev.From == "" {
			if ev.Effect != DropCopy {
				return fmt.Errorf("%w: palette controls can only be copied", ErrDropRejected)
			}
			return s.addField(t, ev.To, ev.Kind, ev.ToIndex)
		}

		source := t.SectionIndex(ev.From)
		if source < 0 {
			return fmt.Errorf("%w: source %q: %w", ErrDropRejected, ev.From, ErrNotFound)
		}
		src := &t.RenderMeta.Sections[source]
		if src.Type == model.SectionReference {
			return fmt.Errorf("%w: %w: %s", ErrDropRejected, ErrSectionLocked, src.Name)
		}
		if ev.FromIndex < 0 || ev.FromIndex >= len(src.Fields) {
			return fmt.Errorf("%w: index %d out of range", ErrDropRejected, ev.FromIndex)
		}
		name := src.Fields[ev.FromIndex]
		field, ok := t.FieldByName(name)
		if !ok {
			return fmt.Errorf("%w: field %q: %w", ErrDropRejected, name, ErrNotFound)
		}
		if err := accepts(t.RenderMeta.Sections[target], field.Type); err != nil {
			return fmt.Errorf("%w: %w", ErrDropRejected, err)
		}

		switch ev.Effect {
		case DropMove:
			src.Fields = slices.Delete(src.Fields, ev.FromIndex, ev.FromIndex+1)
			dst := &t.RenderMeta.Sections[target]
			dst.Fields = insertAt(dst.Fields, ev.ToIndex, name)
		case DropCopy:
			if field.Type == model.FieldLocation {
				return fmt.Errorf("%w: the location field is unique", ErrDropRejected)
			}
			clone := deepcopy.Copy(field).(model.Field)
			clone.Name = t.NewFieldName(field.Type, s.next)
			t.Fields = append(t.Fields, clone)
			dst := &t.RenderMeta.Sections[target]
			dst.Fields = insertAt(dst.Fields, ev.ToIndex, clone.Name)
		}
		return nil
	})
}

// MoveSection reorders sections; to is clamped to the section list.
func (s *Session) MoveSection(from, to int) (model.Type, error) {
	return s.mutate("move section", func(t *model.Type) error {
		sections := t.RenderMeta.Sections
		if from < 0 || from >= len(sections) {
			return fmt.Errorf("section index %d: %w", from, ErrNotFound)
		}
		section := sections[from]
		sections = slices.Delete(sections, from, from+1)
		t.RenderMeta.Sections = insertAt(sections, to, section)
		return nil
	})
}

// RemoveField deletes a field and every reference to it: section lists,
// summary fields, external links using it and ACL restrictions. The
// sentinel field of a reference section goes with its section only.
func (s *Session) RemoveField(name string) (model.Type, error) {
	return s.mutate("remove field", func(t *model.Type) error {
		if t.FieldIndex(name) < 0 {
			return fmt.Errorf("field %q: %w", name, ErrNotFound)
		}
		if section, ok := t.SectionOf(name); ok && section.Type == model.SectionReference {
			return fmt.Errorf("%w: %s", ErrSectionLocked, section.Name)
		}
		removeField(t, name)
		return nil
	})
}

// RemoveSection deletes a section together with the fields it owns.
func (s *Session) RemoveSection(name string) (model.Type, error) {
	return s.mutate("remove section", func(t *model.Type) error {
		i := t.SectionIndex(name)
		if i < 0 {
			return fmt.Errorf("section %q: %w", name, ErrNotFound)
		}
		owned := append([]string(nil), t.RenderMeta.Sections[i].Fields...)
		t.RenderMeta.Sections = slices.Delete(t.RenderMeta.Sections, i, i+1)
		for _, field := range owned {
			removeField(t, field)
		}
		if t.ACL != nil {
			delete(t.ACL.Restrictions, name)
		}
		return nil
	})
}

func removeField(t *model.Type, name string) {
	matches := func(candidate string) bool { return candidate == name }
	t.Fields = slices.DeleteFunc(t.Fields, func(f model.Field) bool { return f.Name == name })
	for i := range t.RenderMeta.Sections {
		t.RenderMeta.Sections[i].Fields = slices.DeleteFunc(t.RenderMeta.Sections[i].Fields, matches)
	}
	t.RenderMeta.Summary.Fields = slices.DeleteFunc(t.RenderMeta.Summary.Fields, matches)
	t.RenderMeta.External = slices.DeleteFunc(t.RenderMeta.External, func(link model.ExternalLink) bool {
		return slices.Contains(link.Fields, name)
	})
	if t.ACL != nil {
		delete(t.ACL.Restrictions, name)
	}
}

// RenameSection renames a section and its reference sentinel.
func (s *Session) RenameSection(oldName, newName string) (model.Type, error) {
	return s.mutate("rename section", func(t *model.Type) error {
		newName = strings.TrimSpace(newName)
		if !model.ValidName(newName) {
			return fmt.Errorf("%w: %q", ErrInvalidName, newName)
		}
		return t.RenameSection(oldName, newName)
	})
}

// UpdateField replaces the attributes of field name. A changed name is
// rewritten everywhere the field is referenced. The sentinel of a reference
// section keeps its name, kind and target.
func (s *Session) UpdateField(name string, field model.Field) (model.Type, error) {
	return s.mutate("update field", func(t *model.Type) error {
		i := t.FieldIndex(name)
		if i < 0 {
			return fmt.Errorf("field %q: %w", name, ErrNotFound)
		}
		current := t.Fields[i]
		field.Name = strings.TrimSpace(field.Name)
		if field.Name == "" {
			field.Name = name
		}
		if section, ok := t.SectionOf(name); ok && section.Type == model.SectionReference {
			if field.Name != name || field.Type != current.Type {
				return fmt.Errorf("%w: %s", ErrSectionLocked, section.Name)
			}
			field.Reference = current.Reference
		}
		if !s.registry.Has(field.Type) {
			return fmt.Errorf("%w: field type %q", ErrInvalidKind, field.Type)
		}
		if field.Type != current.Type && (field.Type == model.FieldLocation || current.Type == model.FieldLocation) {
			return fmt.Errorf("%w: location fields cannot change type", ErrInvalidKind)
		}
		if field.Name != name {
			if !model.ValidName(field.Name) {
				return fmt.Errorf("%w: %q", ErrInvalidName, field.Name)
			}
			renameField(t, name, field.Name)
		}
		field.Label = strings.TrimSpace(field.Label)
		if field.Label == "" {
			field.Label = current.Label
		}
		t.Fields[i] = field
		return nil
	})
}

func renameField(t *model.Type, oldName, newName string) {
	rename := func(names []string) {
		for i, candidate := range names {
			if candidate == oldName {
				names[i] = newName
			}
		}
	}
	for i := range t.RenderMeta.Sections {
		rename(t.RenderMeta.Sections[i].Fields)
	}
	rename(t.RenderMeta.Summary.Fields)
	for i := range t.RenderMeta.External {
		rename(t.RenderMeta.External[i].Fields)
	}
	if t.ACL != nil {
		if groups, ok := t.ACL.Restrictions[oldName]; ok {
			delete(t.ACL.Restrictions, oldName)
			t.ACL.Restrictions[newName] = groups
		}
	}
}

// SetReferenceSection points a reference section at a section of another
// Type and wires its "<name>-field" sentinel to the same target.
func (s *Session) SetReferenceSection(name string, ref model.SectionRef) (model.Type, error) {
	return s.mutate("set reference section", func(t *model.Type) error {
		i := t.SectionIndex(name)
		if i < 0 {
			return fmt.Errorf("section %q: %w", name, ErrNotFound)
		}
		section := &t.RenderMeta.Sections[i]
		if section.Type != model.SectionReference {
			return fmt.Errorf("%w: section %q is not a reference section", ErrInvalidKind, name)
		}
		ref.SectionName = strings.TrimSpace(ref.SectionName)
		if ref.TypeID <= 0 || ref.SectionName == "" {
			return fmt.Errorf("%w: reference needs type_id and section_name", ErrInvalidReference)
		}

		sectionRef := ref
		sectionRef.SelectedFields = slices.Clone(ref.SelectedFields)
		fieldRef := ref
		fieldRef.SelectedFields = slices.Clone(ref.SelectedFields)

		sentinel := model.ReferenceFieldName(name)
		section.Reference = &sectionRef
		section.Fields = []string{sentinel}
		if j := t.FieldIndex(sentinel); j >= 0 {
			t.Fields[j].Type = model.FieldRef
			t.Fields[j].Reference = &fieldRef
		} else {
			t.Fields = append(t.Fields, model.Field{Name: sentinel, Label: section.Label, Type: model.FieldRef, Reference: &fieldRef})
		}
		return nil
	})
}

// SetSummary selects the fields of the summary line.
func (s *Session) SetSummary(fields []string) (model.Type, error) {
	return s.mutate("set summary", func(t *model.Type) error {
		out := make([]string, 0, len(fields))
		for _, name := range fields {
			if name = strings.TrimSpace(name); name != "" && !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
		t.RenderMeta.Summary.Fields = out
		return nil
	})
}

// AddExternalLink appends a link template. Every `{}` placeholder needs a
// field and link names are unique.
func (s *Session) AddExternalLink(link model.ExternalLink) (model.Type, error) {
	return s.mutate("add external link", func(t *model.Type) error {
		link.Name = strings.TrimSpace(link.Name)
		if !model.ValidName(link.Name) {
			return fmt.Errorf("%w: link %q", ErrInvalidName, link.Name)
		}
		for _, existing := range t.RenderMeta.External {
			if existing.Name == link.Name {
				return fmt.Errorf("%w: link %q already exists", ErrInvalidName, link.Name)
			}
		}
		link.Href = strings.TrimSpace(link.Href)
		if link.Href == "" || strings.Count(link.Href, "{}") != len(link.Fields) {
			return fmt.Errorf("%w: link %q has %d placeholders for %d fields", ErrInvalidReference, link.Name, strings.Count(link.Href, "{}"), len(link.Fields))
		}
		link.Icon = fieldtypes.SanitizeIcon(link.Icon)
		link.Fields = slices.Clone(link.Fields)
		if strings.TrimSpace(link.Label) == "" {
			link.Label = model.DefaultLabeler(link.Name)
		}
		t.RenderMeta.External = append(t.RenderMeta.External, link)
		return nil
	})
}

// RemoveExternalLink deletes the named link.
func (s *Session) RemoveExternalLink(name string) (model.Type, error) {
	return s.mutate("remove external link", func(t *model.Type) error {
		before := len(t.RenderMeta.External)
		t.RenderMeta.External = slices.DeleteFunc(t.RenderMeta.External, func(link model.ExternalLink) bool {
			return link.Name == name
		})
		if len(t.RenderMeta.External) == before {
			return fmt.Errorf("link %q: %w", name, ErrNotFound)
		}
		return nil
	})
}

// SetACL replaces the access control list; nil removes it. Group keys must
// be group ids and restrictions must name fields or sections of the Type.
func (s *Session) SetACL(acl *model.AccessControlList) (model.Type, error) {
	return s.mutate("set acl", func(t *model.Type) error {
		if acl == nil {
			t.ACL = nil
			return nil
		}
		t.ACL = deepcopy.Copy(acl).(*model.AccessControlList)
		var errs model.ValidationErrors
		for _, err := range validateACL(*t) {
			if err.Kind != model.ErrMissingAttribute {
				errs = append(errs, err)
			}
		}
		return errs.Err()
	})
}

// Duplicate replaces the Type with a copy whose identifiers are
// regenerated. The copy has no public id and is saved as a new Type.
func (s *Session) Duplicate() (model.Type, error) {
	return s.mutate("duplicate", func(t *model.Type) error {
		dup := model.Duplicate(*t, s.next)
		dup.Label = strings.TrimSpace(dup.Label + " (copy)")
		*t = dup
		return nil
	})
}

func insertAt[T any](items []T, index int, item T) []T {
	if index < 0 || index > len(items) {
		index = len(items)
	}
	return slices.Insert(items, index, item)
}
