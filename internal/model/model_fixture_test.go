package model

import "fmt"

func counterSource(prefix string) IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func sampleType() Type {
	return Type{
		PublicID: 7,
		Name:     "server",
		Label:    "Server",
		Active:   true,
		RenderMeta: RenderMeta{
			Sections: []Section{
				{Name: "section-a", Label: "General", Type: SectionPlain, Fields: []string{"text-a", "number-a"}},
				{Name: LocationName, Label: "Location", Type: SectionPlain, Fields: []string{LocationName}},
				{Name: "dg-global", Label: "Global", Type: SectionPlain, Fields: []string{"dg_gst_owner"}},
				{
					Name:      "ref-section-a",
					Label:     "Rack",
					Type:      SectionReference,
					Fields:    []string{"ref-section-a-field"},
					Reference: &SectionRef{TypeID: 3, SectionName: "section-rack"},
				},
				{Name: "multi-data-section-a", Label: "Disks", Type: SectionMultiData, Fields: []string{"text-b", "number-b"}},
			},
			Summary: Summary{Fields: []string{"text-a", "ref-section-a-field"}},
			External: []ExternalLink{
				{Name: "monitor", Label: "Monitor", Href: "https://mon.example/{}/{}", Fields: []string{"text-a", "number-a"}},
			},
		},
		Fields: []Field{
			{Name: "text-a", Label: "Hostname", Type: FieldText, Required: true},
			{Name: "number-a", Label: "Cores", Type: FieldNumber},
			{Name: LocationName, Label: "Location", Type: FieldLocation},
			{Name: "dg_gst_owner", Label: "Owner", Type: FieldText},
			{Name: "ref-section-a-field", Label: "Rack", Type: FieldRef, Reference: &SectionRef{TypeID: 3, SectionName: "section-rack"}},
			{Name: "text-b", Label: "Disk", Type: FieldText},
			{Name: "number-b", Label: "Size", Type: FieldNumber},
		},
		ACL: &AccessControlList{
			Activated:    true,
			Groups:       ACLGroups{Includes: map[string][]Permission{"1": {PermissionRead}}},
			Restrictions: map[string][]int{"multi-data-section-a": {1}, "number-a": {1}},
		},
	}
}
