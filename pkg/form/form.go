package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/resolver"
)

var (
	// ErrInvalid is matched by the Errors returned from Submit.
	ErrInvalid = errors.New("form: validation failed")
	// ErrUnknownControl is returned for paths the form does not hold.
	ErrUnknownControl = errors.New("form: unknown control")
	// ErrDisabled is returned when writing to a disabled control.
	ErrDisabled = errors.New("form: control is disabled")
	// ErrUnavailable is returned when writing to an unavailable placeholder.
	ErrUnavailable = errors.New("form: control is unavailable")
	// ErrReadOnly is returned by row and submit operations in modes that do
	// not support them.
	ErrReadOnly = errors.New("form: operation not allowed in this mode")
)

// ReferenceDisplay is the resolved display data of a referenced object.
type ReferenceDisplay struct {
	ObjectID  int    `json:"object_id"`
	TypeID    int    `json:"type_id,omitempty"`
	TypeLabel string `json:"type_label,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Missing   bool   `json:"missing,omitempty"`
}

// Control is one compiled field.
type Control struct {
	Path        string              `json:"path"`
	Name        string              `json:"name"`
	Label       string              `json:"label"`
	Kind        model.FieldKind     `json:"type"`
	Field       model.Field         `json:"-"`
	Value       any                 `json:"value,omitempty"`
	Text        string              `json:"text,omitempty"`
	View        *fieldtypes.Control `json:"control,omitempty"`
	Disabled    bool                `json:"disabled,omitempty"`
	Required    bool                `json:"required,omitempty"`
	Changed     bool                `json:"changed,omitempty"`
	Unavailable bool                `json:"unavailable,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Reference   *ReferenceDisplay   `json:"reference,omitempty"`
}

// Row is one row of a multi-data section.
type Row struct {
	ID       int        `json:"id"`
	Controls []*Control `json:"controls"`
}

// ReferenceInstance holds the compiled half of a reference section: the
// selector storing the referenced object id and the read-time controls of
// the referenced section.
type ReferenceInstance struct {
	Ref       model.SectionRef   `json:"ref"`
	TypeLabel string             `json:"type_label,omitempty"`
	Selector  *Control           `json:"selector"`
	Controls  []*Control         `json:"controls"`
	Snapshot  *resolver.Snapshot `json:"-"`
}

// SectionInstance is one compiled section.
type SectionInstance struct {
	Name        string             `json:"name"`
	Label       string             `json:"label"`
	Kind        model.SectionKind  `json:"type"`
	Controls    []*Control         `json:"controls,omitempty"`
	Rows        []*Row             `json:"rows,omitempty"`
	Template    []model.Field      `json:"-"`
	Reference   *ReferenceInstance `json:"reference,omitempty"`
	Placeholder *Control           `json:"placeholder,omitempty"`
}

// Unavailable reports whether the section compiled to a placeholder.
func (s *SectionInstance) Unavailable() bool {
	return s != nil && s.Placeholder != nil
}

// CanAddRow reports whether rows can be appended in the current mode.
func (s *SectionInstance) CanAddRow(mode Mode) bool {
	return s != nil && s.Kind == model.SectionMultiData && mode.EnforcesRequired()
}

// Errors maps control paths to validation messages.
type Errors map[string][]string

func (e Errors) Error() string {
	paths := make([]string, 0, len(e))
	for path := range e {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, path+": "+strings.Join(e[path], ", "))
	}
	return ErrInvalid.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInvalid) hold.
func (e Errors) Is(target error) bool {
	return target == ErrInvalid
}

func (e Errors) add(path string, messages ...string) {
	if len(messages) > 0 {
		e[path] = append(e[path], messages...)
	}
}

// ReferenceData carries the reference-section values a bulk edit changes.
// They are merged into the object payload under data.references.
type ReferenceData = model.ObjectReference

// Submission is the projection of a form back into object data.
type Submission struct {
	Object     model.Object    `json:"object"`
	References []ReferenceData `json:"references,omitempty"`
	// Changed lists the control paths marked changed in bulk mode.
	Changed []string `json:"changed,omitempty"`
}

// Form is a compiled, bound form. It is owned by a single writer.
type Form struct {
	mode     Mode
	typ      model.Type
	original *model.Object
	sections []*SectionInstance
	index    map[string]*Control
	registry *fieldtypes.Registry
	source   resolver.Source
	logger   logging.Logger
}

// Mode returns the compile mode.
func (f *Form) Mode() Mode { return f.mode }

// Type returns the Type the form was compiled from, after ACL filtering.
func (f *Form) Type() model.Type { return f.typ.Clone() }

// Sections returns the compiled sections in schema order.
func (f *Form) Sections() []*SectionInstance { return f.sections }

// Section returns the compiled section with name.
func (f *Form) Section(name string) (*SectionInstance, bool) {
	for _, section := range f.sections {
		if section.Name == name {
			return section, true
		}
	}
	return nil, false
}

// Control returns the control at path.
func (f *Form) Control(path string) (*Control, bool) {
	control, ok := f.index[path]
	return control, ok
}

// Controls returns every control in display order, placeholders included.
func (f *Form) Controls() []*Control {
	var out []*Control
	for _, section := range f.sections {
		out = append(out, sectionControls(section)...)
	}
	return out
}

func sectionControls(section *SectionInstance) []*Control {
	if section.Placeholder != nil {
		return []*Control{section.Placeholder}
	}
	var out []*Control
	out = append(out, section.Controls...)
	for _, row := range section.Rows {
		out = append(out, row.Controls...)
	}
	if section.Reference != nil {
		out = append(out, section.Reference.Selector)
		out = append(out, section.Reference.Controls...)
	}
	return out
}

// Set binds value to the control at path. Values are sanitised for the
// field kind. In bulk mode the control is marked changed.
func (f *Form) Set(path string, value any) error {
	control, ok := f.index[path]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, path)
	}
	if control.Unavailable {
		return fmt.Errorf("%w: %q", ErrUnavailable, path)
	}
	if control.Disabled {
		return fmt.Errorf("%w: %q", ErrDisabled, path)
	}
	clean, err := f.registry.Sanitize(control.Field, value)
	if err != nil {
		return fmt.Errorf("form: %s: %w", path, err)
	}
	control.Value = clean
	control.Changed = true
	f.refreshText(control)
	return nil
}

// MarkChanged sets or clears the bulk change flag of a control. Clearing it
// drops the field from the change set without touching its value.
func (f *Form) MarkChanged(path string, changed bool) error {
	if f.mode != ModeBulk {
		return fmt.Errorf("%w: mark changed in %s mode", ErrReadOnly, f.mode)
	}
	control, ok := f.index[path]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, path)
	}
	if control.Unavailable || control.Disabled {
		return fmt.Errorf("%w: %q", ErrDisabled, path)
	}
	control.Changed = changed
	return nil
}

// Changed returns the paths of controls marked changed, in display order.
func (f *Form) Changed() []string {
	var out []string
	for _, control := range f.Controls() {
		if control.Changed && !control.Unavailable {
			out = append(out, control.Path)
		}
	}
	return out
}

// RowPath returns the control path of a field inside a multi-data row.
func RowPath(section string, row int, field string) string {
	return fmt.Sprintf("%s.%d.%s", section, row, field)
}

// ReferencePath returns the control path of a referenced field inside a
// reference section.
func ReferencePath(section, field string) string {
	return section + "." + field
}

// SetRow binds value to a field of a multi-data row.
func (f *Form) SetRow(section string, row int, field string, value any) error {
	return f.Set(RowPath(section, row, field), value)
}

// AddRow appends a row of default values to a multi-data section and returns
// its index.
func (f *Form) AddRow(section string) (int, error) {
	inst, err := f.multiData(section)
	if err != nil {
		return -1, err
	}
	// ids of stored rows are never reused, even after a remove
	id := 1
	for _, row := range inst.Rows {
		if row.ID >= id {
			id = row.ID + 1
		}
	}
	if f.original != nil {
		stored, _ := f.original.MultiData(section)
		for _, row := range stored.Values {
			if row.ID >= id {
				id = row.ID + 1
			}
		}
	}
	index := len(inst.Rows)
	row := &Row{ID: id}
	for _, field := range inst.Template {
		control := f.newControl(field, RowPath(section, index, field.Name), defaultValue(field))
		row.Controls = append(row.Controls, control)
		f.index[control.Path] = control
	}
	inst.Rows = append(inst.Rows, row)
	return index, nil
}

// RemoveRow drops a multi-data row. Later rows shift down by one.
func (f *Form) RemoveRow(section string, index int) error {
	inst, err := f.multiData(section)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(inst.Rows) {
		return fmt.Errorf("%w: %q row %d", ErrUnknownControl, section, index)
	}
	for _, row := range inst.Rows {
		for _, control := range row.Controls {
			delete(f.index, control.Path)
		}
	}
	inst.Rows = append(inst.Rows[:index], inst.Rows[index+1:]...)
	for i, row := range inst.Rows {
		for _, control := range row.Controls {
			control.Path = RowPath(section, i, control.Name)
			f.index[control.Path] = control
		}
	}
	return nil
}

func (f *Form) multiData(section string) (*SectionInstance, error) {
	inst, ok := f.Section(section)
	if !ok || inst.Kind != model.SectionMultiData {
		return nil, fmt.Errorf("%w: multi-data section %q", ErrUnknownControl, section)
	}
	if !inst.CanAddRow(f.mode) {
		return nil, fmt.Errorf("%w: rows of %q in %s mode", ErrReadOnly, section, f.mode)
	}
	return inst, nil
}

// SelectReference points a reference section at objectID and reloads the
// read-time snapshot of the referenced section.
func (f *Form) SelectReference(ctx context.Context, section string, objectID int) error {
	inst, ok := f.Section(section)
	if !ok || inst.Reference == nil {
		return fmt.Errorf("%w: reference section %q", ErrUnknownControl, section)
	}
	if err := f.Set(inst.Reference.Selector.Path, objectID); err != nil {
		return err
	}
	if f.source == nil {
		return nil
	}
	snap, err := resolver.ResolveSection(ctx, f.source, inst.Reference.Ref, objectID)
	if err != nil {
		inst.Reference.Selector.Reference = &ReferenceDisplay{ObjectID: objectID, TypeID: inst.Reference.Ref.TypeID, Missing: true}
		return fmt.Errorf("form: reference section %q: %w", section, err)
	}
	inst.Reference.Snapshot = &snap
	inst.Reference.Selector.Reference = &ReferenceDisplay{ObjectID: snap.ObjectID, TypeID: snap.TypeID, TypeLabel: snap.TypeLabel, Summary: snap.Summary}
	for _, control := range inst.Reference.Controls {
		if f.mode == ModeBulk && control.Changed {
			continue
		}
		control.Value, _ = snap.Value(control.Name)
		f.refreshText(control)
	}
	return nil
}

// Validate runs presence (create/edit only) and kind validators over every
// enabled, available control. Bulk forms validate changed controls only.
func (f *Form) Validate() Errors {
	errs := Errors{}
	for _, control := range f.Controls() {
		if control.Unavailable || control.Disabled {
			continue
		}
		if f.mode == ModeBulk && !control.Changed {
			continue
		}
		if control.Required && fieldtypes.IsEmpty(control.Value) {
			errs.add(control.Path, "required")
			continue
		}
		messages, err := f.registry.Validate(control.Field, control.Value)
		if err != nil {
			errs.add(control.Path, err.Error())
			continue
		}
		errs.add(control.Path, messages...)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit validates the form and projects it into object data. View and
// simple forms cannot be submitted. Unavailable placeholders never reach
// the payload.
func (f *Form) Submit() (Submission, error) {
	if f.mode.ReadOnly() {
		return Submission{}, fmt.Errorf("%w: submit in %s mode", ErrReadOnly, f.mode)
	}
	if errs := f.Validate(); len(errs) > 0 {
		return Submission{}, errs
	}
	if f.mode == ModeBulk {
		return f.bulkSubmission(), nil
	}
	return Submission{Object: f.objectSubmission()}, nil
}

func (f *Form) objectSubmission() model.Object {
	var obj model.Object
	if f.original != nil {
		obj = f.original.Clone()
	}
	obj.TypeID = f.typ.PublicID
	if f.mode == ModeCreate {
		obj.PublicID = 0
		obj.Active = true
	}

	compiled := make(map[string]bool)
	excluded := make(map[string]bool)
	var fields []model.FieldValue
	rows := make(map[string]model.MultiDataSection)
	var added []string
	for _, section := range f.sections {
		switch {
		case section.Placeholder != nil:
			for _, name := range f.sectionFieldNames(section.Name) {
				excluded[name] = true
			}
		case section.Reference != nil:
			selector := section.Reference.Selector
			compiled[selector.Name] = true
			fields = append(fields, model.FieldValue{Name: selector.Name, Value: selector.Value})
		case section.Kind == model.SectionMultiData:
			stored, ok := obj.MultiData(section.Name)
			if !ok {
				added = append(added, section.Name)
			}
			rows[section.Name] = multiDataSubmission(section, stored)
			for _, field := range section.Template {
				compiled[field.Name] = true
			}
		default:
			for _, control := range section.Controls {
				if control.Unavailable {
					excluded[control.Name] = true
					continue
				}
				compiled[control.Name] = true
				fields = append(fields, model.FieldValue{Name: control.Name, Value: control.Value})
			}
		}
	}
	// values the form never showed (hidden by ACL) are carried over as is
	if f.original != nil {
		for _, value := range f.original.Fields {
			if !compiled[value.Name] && !excluded[value.Name] {
				fields = append(fields, value)
			}
		}
	}
	obj.Fields = fields

	// stored sections the form never showed keep their rows
	var multi []model.MultiDataSection
	for _, stored := range obj.MultiDataSections {
		if data, ok := rows[stored.SectionID]; ok {
			multi = append(multi, data)
			continue
		}
		multi = append(multi, stored)
	}
	for _, name := range added {
		multi = append(multi, rows[name])
	}
	obj.MultiDataSections = multi
	return obj
}

// multiDataSubmission projects the rows of a compiled section. Row values of
// fields hidden from the form are carried over from the stored row with the
// same id.
func multiDataSubmission(section *SectionInstance, stored model.MultiDataSection) model.MultiDataSection {
	byID := make(map[int]model.MultiDataRow, len(stored.Values))
	for _, row := range stored.Values {
		byID[row.ID] = row
	}
	data := model.MultiDataSection{SectionID: section.Name, Values: []model.MultiDataRow{}}
	for _, row := range section.Rows {
		shown := make(map[string]bool, len(row.Controls))
		values := make([]model.FieldValue, 0, len(row.Controls))
		for _, control := range row.Controls {
			shown[control.Name] = true
			values = append(values, model.FieldValue{Name: control.Name, Value: control.Value})
		}
		for _, value := range byID[row.ID].Data {
			if !shown[value.Name] {
				values = append(values, value)
			}
		}
		data.Values = append(data.Values, model.MultiDataRow{ID: row.ID, Data: values})
	}
	return data
}

func (f *Form) sectionFieldNames(section string) []string {
	def, ok := f.typ.SectionByName(section)
	if !ok {
		return nil
	}
	return def.Fields
}

func (f *Form) bulkSubmission() Submission {
	sub := Submission{Changed: f.Changed()}
	sub.Object.TypeID = f.typ.PublicID
	for _, section := range f.sections {
		if section.Placeholder != nil {
			continue
		}
		for _, control := range section.Controls {
			if control.Changed && !control.Unavailable {
				sub.Object.Fields = append(sub.Object.Fields, model.FieldValue{Name: control.Name, Value: control.Value})
			}
		}
		if section.Reference == nil {
			continue
		}
		if selector := section.Reference.Selector; selector.Changed {
			sub.Object.Fields = append(sub.Object.Fields, model.FieldValue{Name: selector.Name, Value: selector.Value})
		}
		data := ReferenceData{Section: section.Name, TypeID: section.Reference.Ref.TypeID}
		if id, ok := fieldtypes.ID(section.Reference.Selector.Value); ok {
			data.ObjectID = id
		}
		for _, control := range section.Reference.Controls {
			if control.Changed {
				data.Fields = append(data.Fields, model.FieldValue{Name: control.Name, Value: control.Value})
			}
		}
		if len(data.Fields) > 0 {
			sub.References = append(sub.References, data)
		}
	}
	return sub
}

func (f *Form) refreshText(control *Control) {
	if text, err := f.registry.RenderSimple(control.Field, control.Value); err == nil {
		control.Text = text
	}
	if control.View != nil {
		if view, err := f.registry.RenderFull(control.Field, control.Value); err == nil {
			control.View = &view
		}
	}
}

func (f *Form) newControl(field model.Field, path string, value any) *Control {
	control := &Control{
		Path:     path,
		Name:     field.Name,
		Label:    field.Label,
		Kind:     field.Type,
		Field:    field,
		Value:    value,
		Disabled: f.mode.ReadOnly(),
		Required: field.Required && f.mode.EnforcesRequired(),
	}
	if control.Label == "" {
		control.Label = model.DefaultLabeler(field.Name)
	}
	if f.mode != ModeSimple {
		if view, err := f.registry.RenderFull(field, value); err == nil {
			control.View = &view
		}
	}
	if text, err := f.registry.RenderSimple(field, value); err == nil {
		control.Text = text
	}
	return control
}

func defaultValue(field model.Field) any {
	if field.Default != nil {
		return field.Default
	}
	return field.Value
}
