package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorKind classifies schema validation failures.
type ErrorKind string

const (
	ErrDuplicateField     ErrorKind = "duplicate_field"
	ErrDuplicateSection   ErrorKind = "duplicate_section"
	ErrDanglingField      ErrorKind = "dangling_field"
	ErrSharedField        ErrorKind = "shared_field"
	ErrOrphanField        ErrorKind = "orphan_field"
	ErrMissingAttribute   ErrorKind = "missing_attribute"
	ErrInvalidName        ErrorKind = "invalid_name"
	ErrUnknownFieldKind   ErrorKind = "unknown_field_kind"
	ErrUnknownSectionKind ErrorKind = "unknown_section_kind"
	ErrInvalidReference   ErrorKind = "invalid_reference"
	ErrDanglingMeta       ErrorKind = "dangling_meta"
)

// structural kinds break referential closure or identifier uniqueness.
var structural = map[ErrorKind]bool{
	ErrDuplicateField:   true,
	ErrDuplicateSection: true,
	ErrDanglingField:    true,
	ErrSharedField:      true,
	ErrOrphanField:      true,
	ErrDanglingMeta:     true,
}

// ValidationError reports one offending field, section, or attribute.
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// ValidationErrors is the full list of problems found in a Type.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "model: no validation errors"
	case 1:
		return "model: " + errs[0].Error()
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("model: %d validation errors: %s", len(errs), strings.Join(parts, "; "))
}

// Err returns nil for an empty list so callers can `return errs.Err()`.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// HasKind reports whether any error is of the given kind.
func (errs ValidationErrors) HasKind(kind ErrorKind) bool {
	for _, err := range errs {
		if err.Kind == kind {
			return true
		}
	}
	return false
}

// HasStructural reports referential-closure or uniqueness violations.
func (errs ValidationErrors) HasStructural() bool {
	for _, err := range errs {
		if structural[err.Kind] {
			return true
		}
	}
	return false
}

// Structural returns only the referential-closure and uniqueness errors.
func (errs ValidationErrors) Structural() ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if structural[err.Kind] {
			out = append(out, err)
		}
	}
	return out
}

// ForPath returns the errors whose path starts with prefix.
func (errs ValidationErrors) ForPath(prefix string) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if strings.HasPrefix(err.Path, prefix) {
			out = append(out, err)
		}
	}
	return out
}

// KindChecker decides whether a field kind has a registered implementation.
// A nil checker accepts exactly the built-in kinds.
type KindChecker func(FieldKind) bool

var urlSafeName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]*$`)

// ValidName reports whether name is non-empty and URL-safe.
func ValidName(name string) bool {
	return urlSafeName.MatchString(name)
}

// Validate checks the Type invariants: required attributes, identifier
// uniqueness, referential closure between sections and fields, section
// variants, and meta configuration. Every problem is reported; nothing is
// dropped silently.
func (t *Type) Validate(known KindChecker) ValidationErrors {
	if known == nil {
		known = FieldKind.Known
	}
	var errs ValidationErrors
	add := func(kind ErrorKind, path, name, format string, args ...any) {
		errs = append(errs, ValidationError{Kind: kind, Path: path, Name: name, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(t.Name) == "" {
		add(ErrMissingAttribute, "name", "", "name is required")
	} else if !ValidName(t.Name) {
		add(ErrInvalidName, "name", t.Name, "name %q must be URL-safe", t.Name)
	}
	if strings.TrimSpace(t.Label) == "" {
		add(ErrMissingAttribute, "label", "", "label is required")
	}

	fieldSeen := make(map[string]int, len(t.Fields))
	for i, field := range t.Fields {
		path := fmt.Sprintf("fields.%d", i)
		if strings.TrimSpace(field.Name) == "" {
			add(ErrMissingAttribute, path, "", "field name is required")
			continue
		}
		if _, dup := fieldSeen[field.Name]; dup {
			add(ErrDuplicateField, path, field.Name, "field %q is declared more than once", field.Name)
			continue
		}
		fieldSeen[field.Name] = 0
		if !known(field.Type) {
			add(ErrUnknownFieldKind, path, field.Name, "field %q has unregistered type %q", field.Name, field.Type)
		}
		if field.Type == FieldRef && field.Reference == nil && len(field.RefTypes) == 0 {
			add(ErrInvalidReference, path, field.Name, "ref field %q has no ref_types", field.Name)
		}
		if field.Type == FieldLocation && field.Name != LocationName {
			add(ErrInvalidName, path, field.Name, "location field must be named %q", LocationName)
		}
	}

	sectionSeen := make(map[string]struct{}, len(t.RenderMeta.Sections))
	for i, section := range t.RenderMeta.Sections {
		path := fmt.Sprintf("render_meta.sections.%d", i)
		if strings.TrimSpace(section.Name) == "" {
			add(ErrMissingAttribute, path, "", "section name is required")
		} else if _, dup := sectionSeen[section.Name]; dup {
			add(ErrDuplicateSection, path, section.Name, "section %q is declared more than once", section.Name)
		} else if _, clash := fieldSeen[section.Name]; clash && section.Name != LocationName {
			add(ErrDuplicateSection, path, section.Name, "section %q reuses a field name", section.Name)
		}
		sectionSeen[section.Name] = struct{}{}

		if !section.Type.Known() {
			add(ErrUnknownSectionKind, path, section.Name, "section %q has unknown type %q", section.Name, section.Type)
		}
		if section.Type == SectionReference {
			if section.Reference == nil || section.Reference.TypeID <= 0 || strings.TrimSpace(section.Reference.SectionName) == "" {
				add(ErrInvalidReference, path, section.Name, "reference section %q needs type_id and section_name", section.Name)
			}
			if len(section.Fields) != 1 || section.Fields[0] != ReferenceFieldName(section.Name) {
				add(ErrDanglingField, path, section.Name, "reference section %q must hold exactly field %q", section.Name, ReferenceFieldName(section.Name))
			}
		}

		for j, name := range section.Fields {
			fieldPath := fmt.Sprintf("%s.fields.%d", path, j)
			count, ok := fieldSeen[name]
			if !ok {
				add(ErrDanglingField, fieldPath, name, "section %q lists unknown field %q", section.Name, name)
				continue
			}
			if count > 0 {
				add(ErrSharedField, fieldPath, name, "field %q is owned by more than one section", name)
			}
			fieldSeen[name] = count + 1
		}
	}

	for i, field := range t.Fields {
		if field.Name == "" {
			continue
		}
		if fieldSeen[field.Name] == 0 {
			add(ErrOrphanField, fmt.Sprintf("fields.%d", i), field.Name, "field %q is not part of any section", field.Name)
		}
	}

	for i, name := range t.RenderMeta.Summary.Fields {
		if _, ok := fieldSeen[name]; !ok {
			add(ErrDanglingMeta, fmt.Sprintf("render_meta.summary.fields.%d", i), name, "summary references unknown field %q", name)
		}
	}
	for i, link := range t.RenderMeta.External {
		path := fmt.Sprintf("render_meta.externals.%d", i)
		if strings.TrimSpace(link.Href) == "" {
			add(ErrMissingAttribute, path, link.Name, "external link %q needs an href", link.Name)
		}
		for j, name := range link.Fields {
			if _, ok := fieldSeen[name]; !ok {
				add(ErrDanglingMeta, fmt.Sprintf("%s.fields.%d", path, j), name, "external link %q references unknown field %q", link.Name, name)
			}
		}
		if n := strings.Count(link.Href, "{}"); n != len(link.Fields) {
			add(ErrInvalidReference, path, link.Name, "external link %q has %d placeholders for %d fields", link.Name, n, len(link.Fields))
		}
	}

	return errs
}
