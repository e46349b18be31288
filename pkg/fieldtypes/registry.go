// Package fieldtypes is the dispatch table from a field kind to the code that
// renders, validates and sanitises values of that kind. Lookups fail closed:
// a kind nobody registered is an error, never a silent fallback.
package fieldtypes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// ErrUnknownFieldKind is returned for kinds without a registered capability.
var ErrUnknownFieldKind = errors.New("fieldtypes: unknown field kind")

// Control describes the editable control compiled for a field.
type Control struct {
	Widget      string         `json:"widget"`
	InputType   string         `json:"input_type,omitempty"`
	Options     []model.Option `json:"options,omitempty"`
	Multiple    bool           `json:"multiple,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Helper      string         `json:"helper,omitempty"`
	Pattern     string         `json:"pattern,omitempty"`
	Min         *float64       `json:"min,omitempty"`
	Max         *float64       `json:"max,omitempty"`
	RefTypes    []int          `json:"ref_types,omitempty"`
}

// Validator checks a non-empty value. The returned error message is shown to
// the user as is.
type Validator func(field model.Field, value any) error

// Capability is everything the engine knows about one field kind.
type Capability struct {
	Kind         model.FieldKind
	RenderFull   func(field model.Field, value any) Control
	RenderSimple func(field model.Field, value any) string
	Validators   []Validator
	// Sanitize cleans user input before it is bound. Nil keeps values as is.
	Sanitize func(value any) any
}

// Registry stores capabilities by kind.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[model.FieldKind]Capability
	widgets      *Widgets
}

// NewRegistry returns a registry with every built-in kind registered.
func NewRegistry() *Registry {
	reg := NewEmptyRegistry()
	for _, capability := range builtins() {
		reg.MustRegister(capability)
	}
	return reg
}

// NewEmptyRegistry returns a registry without capabilities. Every kind used
// by a Type must be registered before the Type validates.
func NewEmptyRegistry() *Registry {
	return &Registry{
		capabilities: make(map[model.FieldKind]Capability),
		widgets:      NewWidgets(),
	}
}

// Register adds a capability. Duplicate kinds return an error.
func (r *Registry) Register(capability Capability) error {
	kind := model.FieldKind(strings.TrimSpace(string(capability.Kind)))
	if kind == "" {
		return fmt.Errorf("fieldtypes: kind is required")
	}
	if capability.RenderFull == nil || capability.RenderSimple == nil {
		return fmt.Errorf("fieldtypes: kind %q needs both full and simple renderers", kind)
	}
	capability.Kind = kind

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[kind]; exists {
		return fmt.Errorf("fieldtypes: kind %q already registered", kind)
	}
	r.capabilities[kind] = capability
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(capability Capability) {
	if err := r.Register(capability); err != nil {
		panic(err)
	}
}

// Lookup returns the capability of kind or an error wrapping
// ErrUnknownFieldKind.
func (r *Registry) Lookup(kind model.FieldKind) (Capability, error) {
	if r == nil {
		return Capability{}, fmt.Errorf("%w: %q", ErrUnknownFieldKind, kind)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	capability, ok := r.capabilities[kind]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %q", ErrUnknownFieldKind, kind)
	}
	return capability, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind model.FieldKind) bool {
	_, err := r.Lookup(kind)
	return err == nil
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []model.FieldKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]model.FieldKind, 0, len(r.capabilities))
	for kind := range r.capabilities {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Checker adapts the registry to model.KindChecker.
func (r *Registry) Checker() model.KindChecker {
	return r.Has
}

// Widgets exposes the widget matcher table used by RenderFull.
func (r *Registry) Widgets() *Widgets {
	if r == nil {
		return nil
	}
	return r.widgets
}

// CheckType validates t against the registered kinds. Unknown kinds are
// reported together with any other schema problem.
func (r *Registry) CheckType(t model.Type) error {
	return t.Validate(r.Checker()).Err()
}

// RenderFull compiles the editable control of field. A widget resolved from
// the matcher table replaces an empty Control.Widget.
func (r *Registry) RenderFull(field model.Field, value any) (Control, error) {
	capability, err := r.Lookup(field.Type)
	if err != nil {
		return Control{}, err
	}
	control := capability.RenderFull(field, value)
	if control.Widget == "" {
		if widget, ok := r.widgets.Resolve(field); ok {
			control.Widget = widget
		} else {
			control.Widget = WidgetInput
		}
	}
	return control, nil
}

// RenderSimple returns the compact read-only text of value.
func (r *Registry) RenderSimple(field model.Field, value any) (string, error) {
	capability, err := r.Lookup(field.Type)
	if err != nil {
		return "", err
	}
	return capability.RenderSimple(field, value), nil
}

// Validate runs the kind validators plus the field regex. Empty values pass;
// presence is the caller's concern.
func (r *Registry) Validate(field model.Field, value any) ([]string, error) {
	capability, err := r.Lookup(field.Type)
	if err != nil {
		return nil, err
	}
	if IsEmpty(value) {
		return nil, nil
	}
	var messages []string
	for _, validate := range capability.Validators {
		if err := validate(field, value); err != nil {
			messages = append(messages, err.Error())
		}
	}
	if field.Regex != "" {
		if err := matchPattern(field, value); err != nil {
			messages = append(messages, err.Error())
		}
	}
	return messages, nil
}

// Sanitize applies the kind sanitiser to value.
func (r *Registry) Sanitize(field model.Field, value any) (any, error) {
	capability, err := r.Lookup(field.Type)
	if err != nil {
		return nil, err
	}
	if capability.Sanitize == nil {
		return value, nil
	}
	return capability.Sanitize(value), nil
}
