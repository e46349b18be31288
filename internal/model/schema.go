package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInconsistentRename is returned when a section rename would leave a
// field or cross-reference pointing at the old name.
var ErrInconsistentRename = errors.New("model: inconsistent section rename")

// FieldByName returns the field with the given name.
func (t *Type) FieldByName(name string) (Field, bool) {
	if t == nil {
		return Field{}, false
	}
	for _, field := range t.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// FieldIndex returns the index of the named field or -1.
func (t *Type) FieldIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, field := range t.Fields {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// SectionByName returns the section with the given name.
func (t *Type) SectionByName(name string) (Section, bool) {
	idx := t.SectionIndex(name)
	if idx < 0 {
		return Section{}, false
	}
	return t.RenderMeta.Sections[idx], true
}

// SectionIndex returns the index of the named section or -1.
func (t *Type) SectionIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, section := range t.RenderMeta.Sections {
		if section.Name == name {
			return i
		}
	}
	return -1
}

// SectionOf returns the section owning the named field.
func (t *Type) SectionOf(field string) (Section, bool) {
	if t == nil {
		return Section{}, false
	}
	for _, section := range t.RenderMeta.Sections {
		for _, name := range section.Fields {
			if name == field {
				return section, true
			}
		}
	}
	return Section{}, false
}

// FieldsOf resolves the field definitions of a section in section order.
// Names without a definition are skipped; Validate reports them.
func (t *Type) FieldsOf(section Section) []Field {
	out := make([]Field, 0, len(section.Fields))
	for _, name := range section.Fields {
		if field, ok := t.FieldByName(name); ok {
			out = append(out, field)
		}
	}
	return out
}

// ReferenceField returns the sentinel field of a reference section.
func (t *Type) ReferenceField(section Section) (Field, bool) {
	return t.FieldByName(ReferenceFieldName(section.Name))
}

// RenameSection renames a section and rewrites its "<name>-field" sentinel
// plus every reference to that sentinel. The rename is all-or-nothing: when
// the result would not validate, t is left unchanged and an error wrapping
// ErrInconsistentRename is returned.
func (t *Type) RenameSection(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if t == nil {
		return fmt.Errorf("%w: type is nil", ErrInconsistentRename)
	}
	if newName == "" {
		return fmt.Errorf("%w: new name is empty", ErrInconsistentRename)
	}
	if oldName == newName {
		return nil
	}
	if t.SectionIndex(oldName) < 0 {
		return fmt.Errorf("%w: section %q: %w", ErrInconsistentRename, oldName, ErrNotFound)
	}
	if t.nameInUse(newName) {
		return fmt.Errorf("%w: name %q already in use", ErrInconsistentRename, newName)
	}

	candidate := t.Clone()
	sections := map[string]string{oldName: newName}
	fields := map[string]string{}
	if _, ok := candidate.FieldByName(ReferenceFieldName(oldName)); ok {
		fields[ReferenceFieldName(oldName)] = ReferenceFieldName(newName)
	}
	candidate.renameAll(sections, fields)

	if errs := candidate.Validate(nil); errs.HasStructural() {
		return fmt.Errorf("%w: %w", ErrInconsistentRename, errs)
	}
	*t = candidate
	return nil
}

// SummaryLine joins the summary field values of obj, falling back to the
// object's public id when no summary fields are configured.
func (t *Type) SummaryLine(obj Object) string {
	if t == nil || len(t.RenderMeta.Summary.Fields) == 0 {
		return fmt.Sprintf("#%d", obj.PublicID)
	}
	parts := make([]string, 0, len(t.RenderMeta.Summary.Fields))
	for _, name := range t.RenderMeta.Summary.Fields {
		value, ok := obj.ValueOf(name)
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprint(value))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("#%d", obj.PublicID)
	}
	return strings.Join(parts, " | ")
}

// ReferencedTypes lists the Type ids that ref fields and reference sections
// point at, sorted and without t itself.
func (t *Type) ReferencedTypes() []int {
	if t == nil {
		return nil
	}
	seen := make(map[int]bool)
	for _, field := range t.Fields {
		for _, id := range field.RefTypes {
			seen[id] = true
		}
		if field.Reference != nil {
			seen[field.Reference.TypeID] = true
		}
	}
	for _, section := range t.RenderMeta.Sections {
		if section.Reference != nil {
			seen[section.Reference.TypeID] = true
		}
	}
	delete(seen, 0)
	delete(seen, t.PublicID)
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Resolve interpolates the link template with obj's values. It returns false
// when a referenced value is missing.
func (l ExternalLink) Resolve(obj Object) (string, bool) {
	href := l.Href
	for _, name := range l.Fields {
		value, ok := obj.ValueOf(name)
		if !ok || value == nil || fmt.Sprint(value) == "" {
			return "", false
		}
		href = strings.Replace(href, "{}", fmt.Sprint(value), 1)
	}
	return href, true
}
