// Package bulk applies the changed fields of a bulk form to a set of
// objects. Originals are deep-copied when the session starts, so neither
// previews nor Apply ever touch the caller's objects.
package bulk

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mohae/deepcopy"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// DefaultPageSize is the preview page size.
const DefaultPageSize = 10

var (
	// ErrNotBulk is returned when the form was not compiled in bulk mode.
	ErrNotBulk = errors.New("bulk: form is not in bulk mode")
	// ErrTypeMismatch is returned for objects of another Type.
	ErrTypeMismatch = errors.New("bulk: object type mismatch")
	// ErrNoChanges is returned by Apply when no field is marked changed.
	ErrNoChanges = errors.New("bulk: no changes")
)

// Option configures a Session.
type Option func(*Session)

// WithPageSize sets the preview page size. Non-positive sizes are ignored.
func WithPageSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logging.OrNop(logger)
	}
}

// ChangeSet is what a bulk apply writes: host fields plus reference-section
// values, each only when marked changed.
type ChangeSet struct {
	Fields     []model.FieldValue      `json:"fields"`
	References []model.ObjectReference `json:"references,omitempty"`
	Paths      []string                `json:"paths"`
}

// Empty reports whether nothing was marked changed.
func (c ChangeSet) Empty() bool {
	return len(c.Fields) == 0 && len(c.References) == 0
}

// Value returns the new value of a changed host field.
func (c ChangeSet) Value(name string) (any, bool) {
	for _, field := range c.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Session pairs a bulk form with the selected objects.
type Session struct {
	typ       model.Type
	originals []model.Object
	form      *form.Form
	pageSize  int
	logger    logging.Logger
}

// New starts a bulk session over objects. Every object must be of Type t.
func New(t model.Type, objects []model.Object, f *form.Form, options ...Option) (*Session, error) {
	if f == nil {
		return nil, fmt.Errorf("bulk: form is required")
	}
	if f.Mode() != form.ModeBulk {
		return nil, fmt.Errorf("%w: got %s", ErrNotBulk, f.Mode())
	}
	for _, obj := range objects {
		if obj.TypeID != t.PublicID {
			return nil, fmt.Errorf("%w: object %d has type %d, not %d", ErrTypeMismatch, obj.PublicID, obj.TypeID, t.PublicID)
		}
	}
	s := &Session{
		typ:       t.Clone(),
		originals: copyObjects(objects),
		form:      f,
		pageSize:  DefaultPageSize,
		logger:    logging.Nop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func copyObjects(objects []model.Object) []model.Object {
	if objects == nil {
		return []model.Object{}
	}
	return deepcopy.Copy(objects).([]model.Object)
}

// Len returns the number of selected objects.
func (s *Session) Len() int { return len(s.originals) }

// PageSize returns the preview page size.
func (s *Session) PageSize() int { return s.pageSize }

// Originals returns a copy of the objects as loaded.
func (s *Session) Originals() []model.Object {
	return copyObjects(s.originals)
}

// ChangeSet validates the changed controls and returns what Apply writes.
func (s *Session) ChangeSet() (ChangeSet, error) {
	sub, err := s.form.Submit()
	if err != nil {
		return ChangeSet{}, fmt.Errorf("bulk: %w", err)
	}
	return ChangeSet{
		Fields:     sub.Object.Fields,
		References: sub.References,
		Paths:      sub.Changed,
	}, nil
}

// Apply returns every selected object with the change set applied. Fields
// not marked changed keep their original per-object value. The originals
// held by the session are not modified, so Apply can be called again.
func (s *Session) Apply() ([]model.Object, ChangeSet, error) {
	changes, err := s.ChangeSet()
	if err != nil {
		return nil, ChangeSet{}, err
	}
	if changes.Empty() {
		return nil, changes, ErrNoChanges
	}
	s.logger.Infof("bulk: applying %d field(s) and %d reference(s) to %d object(s) of type %d",
		len(changes.Fields), len(changes.References), len(s.originals), s.typ.PublicID)

	out := make([]model.Object, 0, len(s.originals))
	for _, original := range s.originals {
		out = append(out, apply(original, changes))
	}
	return out, changes, nil
}

func apply(original model.Object, changes ChangeSet) model.Object {
	obj := original.Clone()
	for _, field := range changes.Fields {
		obj.SetValue(field.Name, deepcopy.Copy(field.Value))
	}
	for _, ref := range changes.References {
		obj.References = mergeReference(obj.References, ref)
	}
	return obj
}

func mergeReference(existing []model.ObjectReference, ref model.ObjectReference) []model.ObjectReference {
	for i := range existing {
		if existing[i].Section != ref.Section {
			continue
		}
		current := model.Object{Fields: existing[i].Fields}
		for _, field := range ref.Fields {
			current.SetValue(field.Name, deepcopy.Copy(field.Value))
		}
		existing[i].Fields = current.Fields
		existing[i].TypeID = ref.TypeID
		if ref.ObjectID > 0 {
			existing[i].ObjectID = ref.ObjectID
		}
		return existing
	}
	return append(existing, deepcopy.Copy(ref).(model.ObjectReference))
}

// PreviewField compares one field of one object before and after apply.
type PreviewField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Original any    `json:"original"`
	Proposed any    `json:"proposed"`
	Changed  bool   `json:"changed"`
	// Differs is false when a changed field already held the new value.
	Differs bool `json:"differs"`
}

// PreviewRow is one object of a preview page.
type PreviewRow struct {
	ObjectID int            `json:"object_id"`
	Summary  string         `json:"summary"`
	Fields   []PreviewField `json:"fields"`
}

// PreviewPage is one display page of the preview. Paging is for display
// only; Apply always covers every selected object.
type PreviewPage struct {
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
	Rows       []PreviewRow `json:"rows"`
}

// Preview renders page (1-based) of the selected objects with the current
// change set. Invalid changes are reported as errors.
func (s *Session) Preview(page int) (PreviewPage, error) {
	changes, err := s.ChangeSet()
	if err != nil {
		return PreviewPage{}, err
	}
	paged := model.NewPage(s.originals, model.ListParams{Page: page, Limit: s.pageSize})
	out := PreviewPage{
		Page:       paged.Pager.Page,
		PageSize:   paged.Pager.PageSize,
		TotalPages: paged.Pager.TotalPages,
		Total:      paged.Total,
		Rows:       make([]PreviewRow, 0, len(paged.Results)),
	}
	fields := s.previewFields()
	for _, original := range paged.Results {
		proposed := apply(original, changes)
		row := PreviewRow{ObjectID: original.PublicID, Summary: s.typ.SummaryLine(proposed)}
		for _, field := range fields {
			before, _ := original.ValueOf(field.Name)
			after, _ := proposed.ValueOf(field.Name)
			_, changed := changes.Value(field.Name)
			row.Fields = append(row.Fields, PreviewField{
				Name:     field.Name,
				Label:    field.Label,
				Original: before,
				Proposed: after,
				Changed:  changed,
				Differs:  changed && !reflect.DeepEqual(before, after),
			})
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// previewFields lists the host fields a bulk change can touch, in section
// order. Multi-data fields are row scoped and never bulk changed.
func (s *Session) previewFields() []model.Field {
	var out []model.Field
	for _, section := range s.typ.RenderMeta.Sections {
		if section.Type == model.SectionMultiData {
			continue
		}
		out = append(out, s.typ.FieldsOf(section)...)
	}
	return out
}
