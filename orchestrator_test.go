package cmdbform

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/renderers/jsonview"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func TestGenerate_FromFile(t *testing.T) {
	payload, err := json.Marshal(testsupport.T1())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "t1.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := Generate(context.Background(), path, "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var doc jsonview.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff("T1", doc.Result.TypeLabel); diff != "" {
		t.Fatalf("type label mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFromType_View(t *testing.T) {
	obj := testsupport.RackObject()
	raw, err := GenerateFromType(context.Background(), testsupport.Rack(), &obj, form.ModeView, "json")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var doc jsonview.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff("B1", doc.Result.Summary); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}
