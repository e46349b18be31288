package fieldtypes

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	textPolicy *bluemonday.Policy
	richPolicy *bluemonday.Policy
	iconPolicy *bluemonday.Policy
)

func policies() {
	policyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
		richPolicy = bluemonday.UGCPolicy()

		icon := bluemonday.StrictPolicy()
		icon.AllowElements("svg", "g", "path", "circle", "rect", "line", "polyline", "polygon", "title")
		icon.AllowAttrs("xmlns", "viewBox", "width", "height", "fill", "stroke", "stroke-width", "aria-hidden", "class").OnElements("svg")
		for _, el := range []string{"path", "circle", "rect", "line", "polyline", "polygon"} {
			icon.AllowAttrs("d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2", "points", "fill", "stroke", "class").OnElements(el)
		}
		iconPolicy = icon
	})
}

// sanitizeString strips every tag and returns plain text.
func sanitizeString(raw string) string {
	policies()
	return html.UnescapeString(textPolicy.Sanitize(raw))
}

func sanitizeText(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	return strings.TrimSpace(sanitizeString(s))
}

func sanitizeRich(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	policies()
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// SanitizeIcon cleans a Type icon. Icons are either CSS class lists
// ("fas fa-server") or inline SVG markup restricted to drawing elements.
func SanitizeIcon(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "<") {
		return strings.Join(strings.Fields(sanitizeString(trimmed)), " ")
	}
	policies()
	return strings.TrimSpace(iconPolicy.Sanitize(trimmed))
}
