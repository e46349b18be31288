package fieldtypes

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Built-in widget identifiers.
const (
	WidgetInput       = "input"
	WidgetTextarea    = "textarea"
	WidgetToggle      = "toggle"
	WidgetSelect      = "select"
	WidgetRadio       = "radio"
	WidgetDate        = "date"
	WidgetRefPicker   = "ref-picker"
	WidgetLocationMap = "location-map"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field model.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Widgets selects widgets for fields from registered matchers. Higher
// priority wins; ties fall back to registration order.
type Widgets struct {
	mu    sync.RWMutex
	rules []rule
}

// NewWidgets returns a table with the built-in matchers registered.
func NewWidgets() *Widgets {
	w := &Widgets{}
	w.registerBuiltins()
	return w
}

// Register adds a matcher under name. Later registrations with the same
// priority lose to earlier ones.
func (w *Widgets) Register(name string, priority int, matcher Matcher) {
	if w == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rules = append(w.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(w.rules),
	})
}

// Resolve returns the widget for field.
func (w *Widgets) Resolve(field model.Field) (string, bool) {
	if w == nil {
		return "", false
	}
	w.mu.RLock()
	rules := append([]rule(nil), w.rules...)
	w.mu.RUnlock()
	if len(rules) == 0 {
		return "", false
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.name, true
		}
	}
	return "", false
}

func (w *Widgets) registerBuiltins() {
	w.Register(WidgetRefPicker, 100, func(field model.Field) bool {
		return field.Type == model.FieldRef
	})
	w.Register(WidgetLocationMap, 95, func(field model.Field) bool {
		return field.Type == model.FieldLocation
	})
	w.Register(WidgetToggle, 90, func(field model.Field) bool {
		return field.Type == model.FieldCheckbox && len(field.Options) == 0
	})
	w.Register(WidgetSelect, 70, func(field model.Field) bool {
		return field.Type == model.FieldSelect || (field.Type == model.FieldCheckbox && len(field.Options) > 0)
	})
	w.Register(WidgetRadio, 70, func(field model.Field) bool {
		return field.Type == model.FieldRadio
	})
	w.Register(WidgetTextarea, 60, func(field model.Field) bool {
		return field.Type == model.FieldTextarea
	})
	w.Register(WidgetDate, 50, func(field model.Field) bool {
		return field.Type == model.FieldDate
	})
}
