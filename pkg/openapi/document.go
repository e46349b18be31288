package openapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Info titles the exported document.
type Info struct {
	Title   string
	Version string
}

// Document describes the object endpoints of the given Types. Every Type
// becomes a component schema; POST /object/{type} accepts its values.
func Document(ctx context.Context, info Info, types ...model.Type) (*openapi3.T, error) {
	if info.Title == "" {
		info.Title = "CMDB objects"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}
	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: info.Title, Version: info.Version},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	for _, t := range types {
		name := ComponentName(t)
		if _, exists := doc.Components.Schemas[name]; exists {
			return nil, fmt.Errorf("openapi: duplicate type %q", t.Name)
		}
		schema := SchemaForType(t)
		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", schema)
		ref := openapi3.NewSchemaRef("#/components/schemas/"+name, schema)

		op := openapi3.NewOperation()
		op.OperationID = "create_" + name
		op.Summary = "Create " + t.Label
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref)}
		op.Responses = openapi3.NewResponses(
			openapi3.WithStatus(201, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Created").WithJSONSchemaRef(ref)}),
			openapi3.WithStatus(422, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Invalid values")}),
		)
		doc.Paths.Set("/object/"+t.Name, &openapi3.PathItem{Post: op})
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: document: %w", err)
	}
	return doc, nil
}

// Parse loads and validates a document produced by Document.
func Parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return doc, nil
}

// Marshal encodes doc as "json" or "yaml".
func Marshal(doc *openapi3.T, format string) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("openapi: marshal: %w", err)
	}
	switch format {
	case "", "json":
		return raw, nil
	case "yaml", "yml":
		var tree yaml.Node
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("openapi: marshal yaml: %w", err)
		}
		clearStyle(&tree)
		return yaml.Marshal(&tree)
	default:
		return nil, fmt.Errorf("openapi: unknown format %q", format)
	}
}

// clearStyle drops the flow style JSON input leaves on every node.
func clearStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		clearStyle(child)
	}
}
