package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldKind is the closed set of field type tags a Type may declare.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldPassword FieldKind = "password"
	FieldEmail    FieldKind = "email"
	FieldPhone    FieldKind = "phone"
	FieldTextarea FieldKind = "textarea"
	FieldHref     FieldKind = "href"
	FieldCheckbox FieldKind = "checkbox"
	FieldRadio    FieldKind = "radio"
	FieldSelect   FieldKind = "select"
	FieldDate     FieldKind = "date"
	FieldNumber   FieldKind = "number"
	FieldLocation FieldKind = "location"
	FieldRef      FieldKind = "ref"
)

// FieldKinds lists every built-in field kind in declaration order.
var FieldKinds = []FieldKind{
	FieldText, FieldPassword, FieldEmail, FieldPhone, FieldTextarea, FieldHref,
	FieldCheckbox, FieldRadio, FieldSelect, FieldDate, FieldNumber, FieldLocation,
	FieldRef,
}

// Known reports whether k belongs to the built-in set.
func (k FieldKind) Known() bool {
	for _, candidate := range FieldKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// SectionKind tags the three section variants.
type SectionKind string

const (
	SectionPlain     SectionKind = "section"
	SectionReference SectionKind = "ref-section"
	SectionMultiData SectionKind = "multi-data-section"
)

// Known reports whether k is one of the three section variants.
func (k SectionKind) Known() bool {
	switch k {
	case SectionPlain, SectionReference, SectionMultiData:
		return true
	default:
		return false
	}
}

// Permission is an ACL verb granted to a group.
type Permission string

const (
	PermissionCreate Permission = "CREATE"
	PermissionRead   Permission = "READ"
	PermissionUpdate Permission = "UPDATE"
	PermissionDelete Permission = "DELETE"
)

// Type is a user-authored object schema.
type Type struct {
	PublicID    int                `json:"public_id"`
	Name        string             `json:"name"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Version     string             `json:"version,omitempty"`
	Active      bool               `json:"active"`
	AuthorID    int                `json:"author_id,omitempty"`
	CategoryID  int                `json:"category_id,omitempty"`
	RenderMeta  RenderMeta         `json:"render_meta"`
	Fields      []Field            `json:"fields"`
	ACL         *AccessControlList `json:"acl,omitempty"`
}

// RenderMeta carries the layout half of a Type: ordered sections plus the
// summary and external link configuration.
type RenderMeta struct {
	Icon     string         `json:"icon,omitempty"`
	Sections []Section      `json:"sections"`
	Summary  Summary        `json:"summary"`
	External []ExternalLink `json:"externals,omitempty"`
}

// Summary selects the fields shown in an object's summary line.
type Summary struct {
	Fields []string `json:"fields"`
}

// ExternalLink is a URL template interpolated from object field values.
// Placeholders use the `{}` positional form: the n-th `{}` receives the value
// of Fields[n].
type ExternalLink struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Icon   string   `json:"icon,omitempty"`
	Href   string   `json:"href"`
	Fields []string `json:"fields,omitempty"`
}

// Section groups field names. Reference sections point at a section of
// another Type; multi-data sections hold zero or more rows of values.
type Section struct {
	Name      string      `json:"name"`
	Label     string      `json:"label"`
	Type      SectionKind `json:"type"`
	Fields    []string    `json:"fields"`
	Reference *SectionRef `json:"reference,omitempty"`
}

// SectionRef narrows a reference to one section of the target Type and
// optionally to a subset of its fields.
type SectionRef struct {
	TypeID         int      `json:"type_id"`
	SectionName    string   `json:"section_name"`
	SelectedFields []string `json:"selected_fields,omitempty"`
}

// Option is a selectable value of a select/radio/checkbox field.
type Option struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Field is one typed slot of a Type. Kind-specific attributes are zero for
// kinds that do not use them.
type Field struct {
	Name        string      `json:"name"`
	Label       string      `json:"label"`
	Type        FieldKind   `json:"type"`
	Required    bool        `json:"required,omitempty"`
	Default     any         `json:"default,omitempty"`
	Value       any         `json:"value,omitempty"`
	Description string      `json:"description,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Helper      string      `json:"helperText,omitempty"`
	Regex       string      `json:"regex,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
	Options     []Option    `json:"options,omitempty"`
	RefTypes    RefTypes    `json:"ref_types,omitempty"`
	Summaries   []string    `json:"summaries,omitempty"`
	Reference   *SectionRef `json:"reference,omitempty"`
}

// RefTypes holds the Type ids a ref field may point to. The persisted form is
// either a single number or a list of numbers.
type RefTypes []int

// UnmarshalJSON accepts a bare number, a list of numbers, or null.
func (r *RefTypes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}
	if trimmed[0] == '[' {
		var ids []int
		if err := json.Unmarshal(trimmed, &ids); err != nil {
			return fmt.Errorf("model: ref_types: %w", err)
		}
		*r = ids
		return nil
	}
	var id int
	if err := json.Unmarshal(trimmed, &id); err != nil {
		return fmt.Errorf("model: ref_types: %w", err)
	}
	*r = RefTypes{id}
	return nil
}

// Contains reports whether id is one of the referenced Types.
func (r RefTypes) Contains(id int) bool {
	for _, candidate := range r {
		if candidate == id {
			return true
		}
	}
	return false
}

// AccessControlList gates a Type per user group. Restrictions narrow the
// visibility of individual sections or fields to the listed groups.
type AccessControlList struct {
	Activated    bool             `json:"activated"`
	Groups       ACLGroups        `json:"groups"`
	Restrictions map[string][]int `json:"restrictions,omitempty"`
}

// ACLGroups maps group ids (as JSON object keys) to granted permissions.
type ACLGroups struct {
	Includes map[string][]Permission `json:"includes"`
}

// Object is a Type instance returned by the backend.
type Object struct {
	PublicID          int                `json:"public_id"`
	TypeID            int                `json:"type_id"`
	Active            bool               `json:"active"`
	Version           string             `json:"version,omitempty"`
	AuthorID          int                `json:"author_id,omitempty"`
	Fields            []FieldValue       `json:"fields"`
	MultiDataSections []MultiDataSection `json:"multi_data_sections,omitempty"`
	References        []ObjectReference  `json:"references,omitempty"`
	SummaryLine       string             `json:"summary_line,omitempty"`
	TypeInformation   *TypeInformation   `json:"type_information,omitempty"`
}

// FieldValue is a single name/value pair of object data.
type FieldValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ObjectReference holds values written through a reference section during
// a bulk change. They travel with the object under data.references and are
// applied to the referenced object by the backend.
type ObjectReference struct {
	Section  string       `json:"section"`
	TypeID   int          `json:"type_id"`
	ObjectID int          `json:"object_id,omitempty"`
	Fields   []FieldValue `json:"fields"`
}

// MultiDataSection carries the rows of one multi-data section.
type MultiDataSection struct {
	SectionID string         `json:"section_id"`
	Values    []MultiDataRow `json:"values"`
}

// MultiDataRow is one row of a multi-data section.
type MultiDataRow struct {
	ID   int          `json:"multi_data_id"`
	Data []FieldValue `json:"data"`
}

// TypeInformation is the denormalised type header the backend attaches to
// objects returned for reference pickers.
type TypeInformation struct {
	TypeID    int    `json:"type_id"`
	TypeName  string `json:"type_name"`
	TypeLabel string `json:"type_label"`
	Icon      string `json:"icon,omitempty"`
}

// Category groups Types in a tree.
type Category struct {
	PublicID int    `json:"public_id"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Parent   int    `json:"parent,omitempty"`
	Types    []int  `json:"types,omitempty"`
}

// CategoryNode is one node of the category tree.
type CategoryNode struct {
	Category Category       `json:"category"`
	Children []CategoryNode `json:"children,omitempty"`
}

// Group is a user group referenced by ACL entries.
type Group struct {
	PublicID int    `json:"public_id"`
	Name     string `json:"name"`
	Label    string `json:"label"`
}

// ExternalSystem describes an export destination adapter.
type ExternalSystem struct {
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// ExternalSystemParameter is one configurable parameter of an export
// destination.
type ExternalSystemParameter struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ExternalSystemVariable is a value an export destination exposes to field
// templates.
type ExternalSystemVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
