// Package render defines the output side of the form pipeline: renderers
// turn a compiled form into bytes, and the registry looks them up by name.
package render

import (
	"context"

	"github.com/goliatone/go-cmdbform/pkg/form"
)

// Renderer converts a compiled form into a byte representation.
type Renderer interface {
	Name() string
	ContentType() string
	Render(ctx context.Context, f *form.Form, options RenderOptions) ([]byte, error)
}
