// Package openapi exports Types as OpenAPI 3 schemas and validates object
// payloads against them.
//
// The validated document is the object's values keyed by field name. Fields
// of plain sections and the selector of reference sections are properties;
// a multi-data section is an array of row objects under the section name.
package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Extension keys attached to exported schemas.
const (
	ExtensionFieldKind   = "x-cmdb-kind"
	ExtensionSectionKind = "x-cmdb-section"
	ExtensionTypeID      = "x-cmdb-type-id"
)

// SchemaForType returns the values schema of t.
func SchemaForType(t model.Type) *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	root.Title = t.Label
	root.Description = t.Description
	root.Extensions = map[string]any{ExtensionTypeID: t.PublicID}

	var required []string
	for _, section := range t.RenderMeta.Sections {
		switch section.Type {
		case model.SectionMultiData:
			row := openapi3.NewObjectSchema()
			row.WithProperty("multi_data_id", openapi3.NewIntegerSchema())
			var rowRequired []string
			for _, field := range t.FieldsOf(section) {
				row.WithProperty(field.Name, FieldSchema(field))
				if field.Required {
					rowRequired = append(rowRequired, field.Name)
				}
			}
			row.Required = rowRequired
			items := openapi3.NewArraySchema().WithItems(row)
			items.Title = section.Label
			items.Extensions = map[string]any{ExtensionSectionKind: string(section.Type)}
			root.WithProperty(section.Name, items)
		case model.SectionReference:
			field, ok := t.ReferenceField(section)
			if !ok {
				continue
			}
			prop := FieldSchema(field)
			prop.Extensions[ExtensionSectionKind] = string(section.Type)
			root.WithProperty(field.Name, prop)
		default:
			for _, field := range t.FieldsOf(section) {
				root.WithProperty(field.Name, FieldSchema(field))
				if field.Required {
					required = append(required, field.Name)
				}
			}
		}
	}
	root.Required = required
	return root
}

// FieldSchema maps one field to the JSON shape its kind accepts.
func FieldSchema(field model.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch field.Type {
	case model.FieldText, model.FieldPassword, model.FieldTextarea:
		s = openapi3.NewStringSchema()
	case model.FieldEmail:
		s = openapi3.NewStringSchema().WithFormat("email")
	case model.FieldPhone:
		s = openapi3.NewStringSchema().WithPattern(`^\+?[0-9 ()\-./]{3,}$`)
	case model.FieldHref:
		s = openapi3.NewStringSchema().WithFormat("uri")
	case model.FieldCheckbox:
		if len(field.Options) == 0 {
			s = openapi3.NewBoolSchema()
			break
		}
		s = openapi3.NewArraySchema().WithItems(optionSchema(field.Options))
	case model.FieldRadio, model.FieldSelect:
		s = optionSchema(field.Options)
	case model.FieldDate:
		millis := openapi3.NewObjectSchema().WithProperty("$date", openapi3.NewFloat64Schema())
		millis.Required = []string{"$date"}
		s = openapi3.NewAnyOfSchema(openapi3.NewStringSchema(), millis)
	case model.FieldNumber:
		s = openapi3.NewFloat64Schema()
		if field.Min != nil {
			s = s.WithMin(*field.Min)
		}
		if field.Max != nil {
			s = s.WithMax(*field.Max)
		}
	case model.FieldLocation:
		s = openapi3.NewObjectSchema().
			WithProperty("lat", openapi3.NewFloat64Schema().WithMin(-90).WithMax(90)).
			WithProperty("lng", openapi3.NewFloat64Schema().WithMin(-180).WithMax(180))
		s.Required = []string{"lat", "lng"}
	case model.FieldRef:
		s = openapi3.NewIntegerSchema().WithMin(1)
	default:
		s = &openapi3.Schema{}
	}
	if field.Regex != "" && s.Type != nil && s.Type.Is(openapi3.TypeString) {
		s.Pattern = field.Regex
	}
	s.Title = field.Label
	s.Description = field.Description
	if field.Default != nil {
		s.Default = field.Default
	}
	if !field.Required {
		s.Nullable = true
	}
	s.Extensions = map[string]any{ExtensionFieldKind: string(field.Type)}
	return s
}

func optionSchema(options []model.Option) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	if len(options) == 0 {
		return s
	}
	values := make([]any, 0, len(options))
	for _, option := range options {
		values = append(values, option.Name)
	}
	return s.WithEnum(values...)
}

// ComponentName is the components/schemas key of t.
func ComponentName(t model.Type) string {
	if t.Name != "" {
		return "type_" + t.Name
	}
	return fmt.Sprintf("type_%d", t.PublicID)
}
