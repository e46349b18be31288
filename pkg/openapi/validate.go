package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Errors maps value paths ("text-host", "section-ports.0.number-port") to
// validation messages.
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
	return "openapi: invalid object: " + strings.Join(parts, "; ")
}

// Values projects obj onto the document SchemaForType describes.
func Values(t model.Type, obj model.Object) map[string]any {
	values := make(map[string]any)
	for _, section := range t.RenderMeta.Sections {
		switch section.Type {
		case model.SectionMultiData:
			data, ok := obj.MultiData(section.Name)
			if !ok {
				continue
			}
			rows := make([]any, 0, len(data.Values))
			for _, row := range data.Values {
				item := map[string]any{"multi_data_id": row.ID}
				for _, value := range row.Data {
					item[value.Name] = value.Value
				}
				rows = append(rows, item)
			}
			values[section.Name] = rows
		case model.SectionReference:
			if field, ok := t.ReferenceField(section); ok {
				if value, ok := obj.ValueOf(field.Name); ok {
					values[field.Name] = value
				}
			}
		default:
			for _, field := range t.FieldsOf(section) {
				if value, ok := obj.ValueOf(field.Name); ok {
					values[field.Name] = value
				}
			}
		}
	}
	return values
}

// ValidateObject checks obj against the values schema of t. It returns nil or
// Errors.
func ValidateObject(t model.Type, obj model.Object) error {
	return ValidateValues(SchemaForType(t), Values(t, obj))
}

// ValidateValues checks a values document against schema.
func ValidateValues(schema *openapi3.Schema, values map[string]any) error {
	doc, err := jsonValue(values)
	if err != nil {
		return fmt.Errorf("openapi: values: %w", err)
	}
	err = schema.VisitJSON(doc, openapi3.MultiErrors())
	if err == nil {
		return nil
	}
	out := Errors{}
	collect(out, err)
	if len(out) == 0 {
		return fmt.Errorf("openapi: %w", err)
	}
	return out
}

// jsonValue normalises Go values to the shapes VisitJSON expects.
func jsonValue(values map[string]any) (any, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	var doc any
	err = json.Unmarshal(raw, &doc)
	return doc, err
}

func collect(out Errors, err error) {
	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, item := range multi {
			collect(out, item)
		}
		return
	}
	var schemaErr *openapi3.SchemaError
	if !errors.As(err, &schemaErr) {
		out["form"] = append(out["form"], err.Error())
		return
	}
	path := strings.Join(schemaErr.JSONPointer(), ".")
	if path == "" {
		path = "form"
	}
	reason := schemaErr.Reason
	if reason == "" {
		reason = schemaErr.Error()
	}
	out[path] = append(out[path], reason)
}
