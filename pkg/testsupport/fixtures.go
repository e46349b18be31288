package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Type ids used by the fixtures.
const (
	T1ID     = 1
	ServerID = 2
	RackID   = 3
)

// T1 is the minimal Type: one section holding one required text field
// named "name".
func T1() model.Type {
	return model.Type{
		PublicID: T1ID,
		Name:     "t1",
		Label:    "T1",
		Active:   true,
		RenderMeta: model.RenderMeta{
			Sections: []model.Section{{Name: "section-main", Label: "Main", Type: model.SectionPlain, Fields: []string{"name"}}},
			Summary:  model.Summary{Fields: []string{"name"}},
		},
		Fields: []model.Field{{Name: "name", Label: "Name", Type: model.FieldText, Required: true}},
	}
}

// Rack is referenced by Server through a reference section.
func Rack() model.Type {
	return model.Type{
		PublicID: RackID,
		Name:     "rack",
		Label:    "Rack",
		Active:   true,
		RenderMeta: model.RenderMeta{
			Sections: []model.Section{
				{Name: "section-rack", Label: "Rack", Type: model.SectionPlain, Fields: []string{"text-room", "number-units"}},
				{Name: "section-power", Label: "Power", Type: model.SectionPlain, Fields: []string{"number-watts"}},
			},
			Summary: model.Summary{Fields: []string{"text-room"}},
		},
		Fields: []model.Field{
			{Name: "text-room", Label: "Room", Type: model.FieldText},
			{Name: "number-units", Label: "Units", Type: model.FieldNumber},
			{Name: "number-watts", Label: "Watts", Type: model.FieldNumber},
		},
	}
}

// Server exercises every section variant: a plain section with a ref
// field, a multi-data section and a reference section onto Rack.
func Server() model.Type {
	cores := 1.0
	return model.Type{
		PublicID: ServerID,
		Name:     "server",
		Label:    "Server",
		Active:   true,
		RenderMeta: model.RenderMeta{
			Sections: []model.Section{
				{Name: "section-general", Label: "General", Type: model.SectionPlain, Fields: []string{"text-host", "select-os", "number-cores", "ref-peer"}},
				{Name: "multi-data-section-disks", Label: "Disks", Type: model.SectionMultiData, Fields: []string{"text-disk", "number-size"}},
				{
					Name:      "ref-section-rack",
					Label:     "Rack",
					Type:      model.SectionReference,
					Fields:    []string{"ref-section-rack-field"},
					Reference: &model.SectionRef{TypeID: RackID, SectionName: "section-rack"},
				},
			},
			Summary: model.Summary{Fields: []string{"text-host"}},
		},
		Fields: []model.Field{
			{Name: "text-host", Label: "Hostname", Type: model.FieldText, Required: true},
			{Name: "select-os", Label: "OS", Type: model.FieldSelect, Default: "linux", Options: []model.Option{{Name: "linux", Label: "Linux"}, {Name: "bsd", Label: "BSD"}}},
			{Name: "number-cores", Label: "Cores", Type: model.FieldNumber, Min: &cores},
			{Name: "ref-peer", Label: "Peer", Type: model.FieldRef, RefTypes: model.RefTypes{ServerID}},
			{Name: "text-disk", Label: "Disk", Type: model.FieldText, Required: true},
			{Name: "number-size", Label: "Size", Type: model.FieldNumber},
			{Name: "ref-section-rack-field", Label: "Rack", Type: model.FieldRef, Reference: &model.SectionRef{TypeID: RackID, SectionName: "section-rack"}},
		},
	}
}

// RackObject is rack 40 in room B1.
func RackObject() model.Object {
	return model.Object{
		PublicID: 40,
		TypeID:   RackID,
		Active:   true,
		Fields: []model.FieldValue{
			{Name: "text-room", Value: "B1"},
			{Name: "number-units", Value: 42.0},
			{Name: "number-watts", Value: 3000.0},
		},
	}
}

// ServerObject returns server id with hostname host, placed in rack 40.
func ServerObject(id int, host string) model.Object {
	return model.Object{
		PublicID: id,
		TypeID:   ServerID,
		Active:   true,
		Fields: []model.FieldValue{
			{Name: "text-host", Value: host},
			{Name: "select-os", Value: "bsd"},
			{Name: "number-cores", Value: 8.0},
			{Name: "ref-peer", Value: nil},
			{Name: "ref-section-rack-field", Value: 40.0},
		},
		MultiDataSections: []model.MultiDataSection{{
			SectionID: "multi-data-section-disks",
			Values: []model.MultiDataRow{
				{ID: 1, Data: []model.FieldValue{{Name: "text-disk", Value: "sda"}, {Name: "number-size", Value: 512.0}}},
			},
		}},
	}
}

// NewSeededBackend returns a Backend holding T1, Server, Rack, rack 40 and
// servers 100 and 101.
func NewSeededBackend() *Backend {
	b := NewBackend()
	b.PutType(T1())
	b.PutType(Server())
	b.PutType(Rack())
	b.PutObject(RackObject())
	b.PutObject(ServerObject(100, "web-01"))
	b.PutObject(ServerObject(101, "web-02"))
	return b
}

// LoadTypeFile reads a JSON Type fixture.
func LoadTypeFile(t *testing.T, path string) model.Type {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read type fixture: %v", err)
	}
	var out model.Type
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal type fixture: %v", err)
	}
	return out
}

// WriteGolden writes arbitrary data to a golden file when UPDATE_GOLDENS is set.
func WriteGolden(t *testing.T, path string, value any) {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
}

// CompareJSON returns a diff between want and the JSON encoding of got
// decoded back into a generic value.
func CompareJSON(want []byte, got any) (string, error) {
	var wantValue, gotValue any
	if err := json.Unmarshal(want, &wantValue); err != nil {
		return "", fmt.Errorf("testsupport: decode want: %w", err)
	}
	payload, err := json.Marshal(got)
	if err != nil {
		return "", fmt.Errorf("testsupport: encode got: %w", err)
	}
	if err := json.Unmarshal(payload, &gotValue); err != nil {
		return "", fmt.Errorf("testsupport: decode got: %w", err)
	}
	return cmp.Diff(wantValue, gotValue), nil
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
