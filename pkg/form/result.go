package form

import "github.com/goliatone/go-cmdbform/pkg/model"

// ResultField is one field of a RenderResult.
type ResultField struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Type        model.FieldKind   `json:"type"`
	Value       any               `json:"value"`
	Text        string            `json:"text,omitempty"`
	Reference   *ReferenceDisplay `json:"reference,omitempty"`
	Unavailable bool              `json:"unavailable,omitempty"`
}

// ResultReference is the resolved content of a reference section.
type ResultReference struct {
	TypeID    int           `json:"type_id"`
	TypeLabel string        `json:"type_label,omitempty"`
	ObjectID  int           `json:"object_id,omitempty"`
	Summary   string        `json:"summary,omitempty"`
	Fields    []ResultField `json:"fields"`
}

// ResultSection is one section of a RenderResult.
type ResultSection struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Type        model.SectionKind `json:"type"`
	Fields      []string          `json:"fields"`
	Rows        [][]ResultField   `json:"rows,omitempty"`
	Reference   *ResultReference  `json:"reference,omitempty"`
	Unavailable bool              `json:"unavailable,omitempty"`
}

// RenderResult is the compiled view of one object against its Type. It is
// rebuilt on every call and never persisted.
type RenderResult struct {
	PublicID    int             `json:"public_id"`
	TypeID      int             `json:"type_id"`
	TypeLabel   string          `json:"type_label"`
	Mode        Mode            `json:"mode"`
	Summary     string          `json:"summary,omitempty"`
	Fields      []ResultField   `json:"fields"`
	Sections    []ResultSection `json:"sections"`
	Unavailable []string        `json:"unavailable,omitempty"`
}

// Result projects the current form state into a RenderResult.
func (f *Form) Result() RenderResult {
	result := RenderResult{
		TypeID:    f.typ.PublicID,
		TypeLabel: f.typ.Label,
		Mode:      f.mode,
		Fields:    []ResultField{},
		Sections:  make([]ResultSection, 0, len(f.sections)),
	}
	if f.original != nil {
		result.PublicID = f.original.PublicID
	}
	current := model.Object{PublicID: result.PublicID}

	for _, section := range f.sections {
		out := ResultSection{Name: section.Name, Label: section.Label, Type: section.Kind, Fields: []string{}}
		switch {
		case section.Placeholder != nil:
			out.Unavailable = true
			result.Unavailable = append(result.Unavailable, section.Name)
			result.Fields = append(result.Fields, resultField(section.Placeholder))
		case section.Reference != nil:
			ref := section.Reference
			result.Fields = append(result.Fields, resultField(ref.Selector))
			current.Fields = append(current.Fields, model.FieldValue{Name: ref.Selector.Name, Value: ref.Selector.Value})
			out.Fields = append(out.Fields, ref.Selector.Name)
			out.Reference = &ResultReference{TypeID: ref.Ref.TypeID, TypeLabel: ref.TypeLabel, Fields: []ResultField{}}
			if display := ref.Selector.Reference; display != nil && !display.Missing {
				out.Reference.ObjectID = display.ObjectID
				out.Reference.Summary = display.Summary
			}
			for _, control := range ref.Controls {
				out.Reference.Fields = append(out.Reference.Fields, resultField(control))
			}
		case section.Kind == model.SectionMultiData:
			for _, field := range section.Template {
				out.Fields = append(out.Fields, field.Name)
			}
			for _, row := range section.Rows {
				cells := make([]ResultField, 0, len(row.Controls))
				for _, control := range row.Controls {
					cells = append(cells, resultField(control))
				}
				out.Rows = append(out.Rows, cells)
			}
		default:
			for _, control := range section.Controls {
				result.Fields = append(result.Fields, resultField(control))
				out.Fields = append(out.Fields, control.Name)
				if control.Unavailable {
					result.Unavailable = append(result.Unavailable, control.Name)
					continue
				}
				current.Fields = append(current.Fields, model.FieldValue{Name: control.Name, Value: control.Value})
			}
		}
		result.Sections = append(result.Sections, out)
	}
	result.Summary = f.typ.SummaryLine(current)
	return result
}

func resultField(control *Control) ResultField {
	return ResultField{
		Name:        control.Name,
		Label:       control.Label,
		Type:        control.Kind,
		Value:       control.Value,
		Text:        control.Text,
		Reference:   control.Reference,
		Unavailable: control.Unavailable,
	}
}
