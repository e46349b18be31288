package render

// RenderOptions carry per-request data renderers use without recompiling
// the form.
type RenderOptions struct {
	// Errors surfaces server-side validation feedback keyed by control path,
	// usually the Fields half of MapErrorPayload.
	Errors map[string][]string
	// FormErrors are messages not bound to any control.
	FormErrors []string
	// Subset narrows the rendered sections and fields.
	Subset FieldSubset
}
