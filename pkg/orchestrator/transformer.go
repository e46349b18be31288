package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/loader"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Transformer mutates a Type before decorators and compilation run.
// Implementations can relabel fields, tighten validation or perform
// arbitrary rewrites.
type Transformer interface {
	Transform(ctx context.Context, t *model.Type) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, t *model.Type) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, t *model.Type) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, t)
}

// PresetTransformer applies declarative overrides loaded from a JSON or YAML
// document:
//
//	label: Hosts
//	sections:
//	  section-general: {label: Basics}
//	fields:
//	  text-host: {label: Host, placeholder: web-01, required: true}
type PresetTransformer struct {
	document presetDocument
}

type presetDocument struct {
	Label       string                  `json:"label"`
	Description string                  `json:"description"`
	Sections    map[string]sectionPatch `json:"sections"`
	Fields      map[string]fieldPatch   `json:"fields"`
}

type sectionPatch struct {
	Label string `json:"label"`
}

type fieldPatch struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Placeholder string `json:"placeholder"`
	Helper      string `json:"helperText"`
	Regex       string `json:"regex"`
	Required    *bool  `json:"required"`
}

// NewPresetTransformer constructs a transformer from raw JSON or YAML bytes.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("preset transformer: document is empty")
	}
	var document presetDocument
	if err := loader.Decode(data, &document); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{document: document}, nil
}

// NewPresetTransformerFromFS loads a preset document from the provided
// filesystem path.
func NewPresetTransformerFromFS(fsys fs.FS, path string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", path, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the declarative patches onto t. Unknown section or
// field names are errors.
func (p *PresetTransformer) Transform(ctx context.Context, t *model.Type) error {
	if t == nil {
		return errors.New("preset transformer: type is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.document.Label != "" {
		t.Label = p.document.Label
	}
	if p.document.Description != "" {
		t.Description = p.document.Description
	}
	for name, patch := range p.document.Sections {
		section := findSection(t, name)
		if section == nil {
			return fmt.Errorf("preset transformer: section %q not found", name)
		}
		if patch.Label != "" {
			section.Label = patch.Label
		}
	}
	for name, patch := range p.document.Fields {
		field := findField(t, name)
		if field == nil {
			return fmt.Errorf("preset transformer: field %q not found", name)
		}
		applyFieldPatch(field, patch)
	}
	return nil
}

func applyFieldPatch(field *model.Field, patch fieldPatch) {
	if patch.Label != "" {
		field.Label = patch.Label
	}
	if patch.Description != "" {
		field.Description = patch.Description
	}
	if patch.Placeholder != "" {
		field.Placeholder = patch.Placeholder
	}
	if patch.Helper != "" {
		field.Helper = patch.Helper
	}
	if patch.Regex != "" {
		field.Regex = patch.Regex
	}
	if patch.Required != nil {
		field.Required = *patch.Required
	}
}

func findSection(t *model.Type, name string) *model.Section {
	for idx := range t.RenderMeta.Sections {
		if t.RenderMeta.Sections[idx].Name == name {
			return &t.RenderMeta.Sections[idx]
		}
	}
	return nil
}

func findField(t *model.Type, name string) *model.Field {
	for idx := range t.Fields {
		if t.Fields[idx].Name == name {
			return &t.Fields[idx]
		}
	}
	return nil
}
