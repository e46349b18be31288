package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/form"
)

// FieldSubset narrows a render result. A section or field is kept when it
// matches any non-empty filter; an empty subset keeps everything.
type FieldSubset struct {
	Sections []string `json:"sections,omitempty"`
	Fields   []string `json:"fields,omitempty"`
	Kinds    []string `json:"kinds,omitempty"`
}

// ParseSubset reads comma separated or JSON array token lists, as accepted
// by command flags.
func ParseSubset(sections, fields, kinds string) FieldSubset {
	return FieldSubset{
		Sections: parseTokenList(sections),
		Fields:   parseTokenList(fields),
		Kinds:    parseTokenList(kinds),
	}
}

// ApplySubset removes the sections and fields of result that do not match
// subset. Sections left without fields are dropped so renderers never show
// empty sections.
func ApplySubset(result *form.RenderResult, subset FieldSubset) {
	if result == nil {
		return
	}
	matcher := newSubsetMatcher(subset)
	if matcher.empty() {
		return
	}

	keptFields := make(map[string]bool)
	keptSections := make(map[string]bool)
	sections := result.Sections[:0]
	for _, section := range result.Sections {
		if matcher.matchesSection(section.Name) {
			sections = append(sections, section)
			keptSections[section.Name] = true
			// placeholders are reported under the section name
			keptFields[section.Name] = true
			for _, name := range section.Fields {
				keptFields[name] = true
			}
			continue
		}
		names := section.Fields[:0]
		for _, name := range section.Fields {
			if matcher.matchesField(name, fieldKind(result, name)) {
				names = append(names, name)
				keptFields[name] = true
			}
		}
		if len(names) == 0 {
			continue
		}
		section.Fields = names
		section.Rows = filterRows(section.Rows, keptFields)
		sections = append(sections, section)
		keptSections[section.Name] = true
	}
	result.Sections = sections

	fields := result.Fields[:0]
	for _, field := range result.Fields {
		if keptFields[field.Name] {
			fields = append(fields, field)
		}
	}
	result.Fields = fields

	unavailable := result.Unavailable[:0]
	for _, name := range result.Unavailable {
		if keptSections[name] {
			unavailable = append(unavailable, name)
		}
	}
	if len(unavailable) == 0 {
		unavailable = nil
	}
	result.Unavailable = unavailable
}

func fieldKind(result *form.RenderResult, name string) string {
	for _, field := range result.Fields {
		if field.Name == name {
			return string(field.Type)
		}
	}
	for _, section := range result.Sections {
		for _, row := range section.Rows {
			for _, cell := range row {
				if cell.Name == name {
					return string(cell.Type)
				}
			}
		}
	}
	return ""
}

func filterRows(rows [][]form.ResultField, kept map[string]bool) [][]form.ResultField {
	if len(rows) == 0 {
		return rows
	}
	out := make([][]form.ResultField, 0, len(rows))
	for _, row := range rows {
		cells := make([]form.ResultField, 0, len(row))
		for _, cell := range row {
			if kept[cell.Name] {
				cells = append(cells, cell)
			}
		}
		out = append(out, cells)
	}
	return out
}

type subsetMatcher struct {
	sections map[string]struct{}
	fields   map[string]struct{}
	kinds    map[string]struct{}
}

func newSubsetMatcher(subset FieldSubset) subsetMatcher {
	return subsetMatcher{
		sections: normaliseTokens(subset.Sections),
		fields:   normaliseTokens(subset.Fields),
		kinds:    normaliseTokens(subset.Kinds),
	}
}

func (m subsetMatcher) empty() bool {
	return len(m.sections) == 0 && len(m.fields) == 0 && len(m.kinds) == 0
}

func (m subsetMatcher) matchesSection(name string) bool {
	_, ok := m.sections[normaliseToken(name)]
	return ok
}

func (m subsetMatcher) matchesField(name, kind string) bool {
	if _, ok := m.fields[normaliseToken(name)]; ok {
		return true
	}
	if kind == "" {
		return false
	}
	_, ok := m.kinds[normaliseToken(kind)]
	return ok
}

func normaliseTokens(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]struct{}, len(values))
	for _, value := range values {
		if token := normaliseToken(value); token != "" {
			result[token] = struct{}{}
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normaliseToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func parseTokenList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var parsed []any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			tokens := make([]string, 0, len(parsed))
			for _, entry := range parsed {
				if token := normaliseToken(fmt.Sprint(entry)); token != "" {
					tokens = append(tokens, token)
				}
			}
			return dedupe(tokens)
		}
	}

	var tokens []string
	for _, part := range strings.Split(raw, ",") {
		if token := normaliseToken(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return dedupe(tokens)
}
