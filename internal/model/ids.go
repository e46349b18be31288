package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
)

// LocationName is the fixed identifier of the per-Type location field and
// its section.
const LocationName = "dg_location"

// ReferenceFieldSuffix names the sentinel field that stores the referenced
// object id of a reference section: "<section>-field".
const ReferenceFieldSuffix = "-field"

var globalPrefixes = []string{"dg-", "dg_gst"}

// IDSource produces the random suffix of generated identifiers.
type IDSource func() string

// RandomSuffix is the default IDSource: the first group of a random UUID.
func RandomSuffix() string {
	id := uuid.NewString()
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}

// IsGlobalName reports whether name denotes a global or predefined template
// identifier that must survive duplication unchanged.
func IsGlobalName(name string) bool {
	if name == LocationName {
		return true
	}
	for _, prefix := range globalPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Preserved reports whether the field keeps its identifier on duplication.
func (f Field) Preserved() bool {
	return f.Type == FieldLocation || IsGlobalName(f.Name)
}

// Preserved reports whether the section keeps its identifier on duplication.
func (s Section) Preserved() bool {
	return IsGlobalName(s.Name)
}

// ReferenceFieldName returns the sentinel field name of a reference section.
func ReferenceFieldName(section string) string {
	return section + ReferenceFieldSuffix
}

// NewFieldName allocates a "<kind>-<suffix>" name not yet used by t.
func (t *Type) NewFieldName(kind FieldKind, next IDSource) string {
	if kind == FieldLocation {
		return LocationName
	}
	return t.uniqueName(string(kind), next)
}

// NewSectionName allocates a "<kind>-<suffix>" name not yet used by t.
func (t *Type) NewSectionName(kind SectionKind, next IDSource) string {
	return t.uniqueName(string(kind), next)
}

func (t *Type) uniqueName(tag string, next IDSource) string {
	if next == nil {
		next = RandomSuffix
	}
	for {
		candidate := tag + "-" + next()
		if t == nil {
			return candidate
		}
		if !t.nameInUse(candidate) {
			return candidate
		}
	}
}

func (t *Type) nameInUse(name string) bool {
	if _, ok := t.FieldByName(name); ok {
		return true
	}
	if _, ok := t.SectionByName(name); ok {
		return true
	}
	if _, ok := t.FieldByName(ReferenceFieldName(name)); ok {
		return true
	}
	return false
}

// NewField returns a field of the given kind with a fresh name scoped to t.
func (t *Type) NewField(kind FieldKind, next IDSource) Field {
	field := Field{
		Name:  t.NewFieldName(kind, next),
		Label: KindLabel(kind),
		Type:  kind,
	}
	if kind == FieldLocation {
		field.Label = "Location"
	}
	return field
}

// NewSection returns a section of the given kind with a fresh name scoped to
// t. Reference sections start without a target; see SetReference.
func (t *Type) NewSection(kind SectionKind, next IDSource) Section {
	section := Section{
		Name:   t.NewSectionName(kind, next),
		Label:  KindLabel(kind),
		Type:   kind,
		Fields: []string{},
	}
	if kind == SectionReference {
		section.Reference = &SectionRef{}
	}
	return section
}

// Clone returns a deep copy of t.
func (t Type) Clone() Type {
	return deepcopy.Copy(t).(Type)
}

// Duplicate returns a copy of t with every non-global section and field
// identifier regenerated. The public id is cleared so the copy persists as
// a new Type. The shape of render_meta.sections is preserved.
func Duplicate(t Type, next IDSource) Type {
	out := t.Clone()
	out.PublicID = 0

	sectionNames := make(map[string]string, len(out.RenderMeta.Sections))
	fieldNames := make(map[string]string, len(out.Fields))

	// reserve preserved names so generated ones never collide with them
	reserved := &Type{}
	for _, section := range out.RenderMeta.Sections {
		if section.Preserved() {
			sectionNames[section.Name] = section.Name
			reserved.RenderMeta.Sections = append(reserved.RenderMeta.Sections, Section{Name: section.Name})
		}
	}
	for _, field := range out.Fields {
		if field.Preserved() {
			fieldNames[field.Name] = field.Name
			reserved.Fields = append(reserved.Fields, Field{Name: field.Name})
		}
	}
	// also reserve the original names so the result is disjoint
	for _, section := range t.RenderMeta.Sections {
		reserved.RenderMeta.Sections = append(reserved.RenderMeta.Sections, Section{Name: section.Name})
	}
	for _, field := range t.Fields {
		reserved.Fields = append(reserved.Fields, Field{Name: field.Name})
	}

	for _, section := range out.RenderMeta.Sections {
		if section.Preserved() {
			continue
		}
		kind := section.Type
		if !kind.Known() {
			kind = SectionPlain
		}
		name := reserved.NewSectionName(kind, next)
		sectionNames[section.Name] = name
		reserved.RenderMeta.Sections = append(reserved.RenderMeta.Sections, Section{Name: name})
		if section.Type == SectionReference {
			fieldNames[ReferenceFieldName(section.Name)] = ReferenceFieldName(name)
			reserved.Fields = append(reserved.Fields, Field{Name: ReferenceFieldName(name)})
		}
	}
	for _, field := range out.Fields {
		if _, done := fieldNames[field.Name]; done {
			continue
		}
		name := reserved.NewFieldName(field.Type, next)
		fieldNames[field.Name] = name
		reserved.Fields = append(reserved.Fields, Field{Name: name})
	}

	out.renameAll(sectionNames, fieldNames)
	return out
}

// renameAll rewrites section and field identifiers, including every
// cross-reference, according to the supplied old -> new maps.
func (t *Type) renameAll(sections, fields map[string]string) {
	lookupField := func(name string) string {
		if renamed, ok := fields[name]; ok {
			return renamed
		}
		return name
	}
	for i := range t.Fields {
		t.Fields[i].Name = lookupField(t.Fields[i].Name)
	}
	for i := range t.RenderMeta.Sections {
		section := &t.RenderMeta.Sections[i]
		if renamed, ok := sections[section.Name]; ok {
			section.Name = renamed
		}
		for j, name := range section.Fields {
			section.Fields[j] = lookupField(name)
		}
	}
	for i, name := range t.RenderMeta.Summary.Fields {
		t.RenderMeta.Summary.Fields[i] = lookupField(name)
	}
	for i := range t.RenderMeta.External {
		for j, name := range t.RenderMeta.External[i].Fields {
			t.RenderMeta.External[i].Fields[j] = lookupField(name)
		}
	}
	if t.ACL != nil && len(t.ACL.Restrictions) > 0 {
		restrictions := make(map[string][]int, len(t.ACL.Restrictions))
		for name, groups := range t.ACL.Restrictions {
			key := lookupField(name)
			if renamed, ok := sections[name]; ok {
				key = renamed
			}
			restrictions[key] = groups
		}
		t.ACL.Restrictions = restrictions
	}
}
