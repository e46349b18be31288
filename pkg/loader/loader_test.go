package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

const rackYAML = `
name: rack
label: Rack
active: true
render_meta:
  sections:
    - name: section-rack
      label: Rack
      type: section
      fields: [text-room, number-units]
  summary:
    fields: [text-room]
fields:
  - name: text-room
    label: Room
    type: text
  - name: number-units
    label: Units
    type: number
    min: 1
acl:
  activated: true
  groups:
    includes:
      2: [READ, UPDATE]
`

const rackJSON = `{
	"name": "rack",
	"label": "Rack",
	"active": true,
	"render_meta": {
		"sections": [{"name": "section-rack", "label": "Rack", "type": "section", "fields": ["text-room", "number-units"]}],
		"summary": {"fields": ["text-room"]}
	},
	"fields": [
		{"name": "text-room", "label": "Room", "type": "text"},
		{"name": "number-units", "label": "Units", "type": "number", "min": 1}
	],
	"acl": {"activated": true, "groups": {"includes": {"2": ["READ", "UPDATE"]}}}
}`

func TestDecode_YAMLMatchesJSON(t *testing.T) {
	var fromYAML, fromJSON model.Type
	if err := Decode([]byte(rackYAML), &fromYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if err := Decode([]byte(rackJSON), &fromJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("yaml decode mismatch (-want +got):\n%s", diff)
	}
	if got := fromYAML.ACL.Groups.Includes["2"]; len(got) != 2 {
		t.Fatalf("expected integer group key to survive, got %v", fromYAML.ACL.Groups.Includes)
	}
}

func TestDecode_Empty(t *testing.T) {
	var out model.Type
	if err := Decode([]byte("  \n"), &out); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestLoadType_FromFSAndFile(t *testing.T) {
	ctx := context.Background()
	files := fstest.MapFS{"types/rack.yaml": {Data: []byte(rackYAML)}}
	l := New(WithFileSystem(files), WithChecker(model.FieldKind.Known))

	got, err := l.LoadType(ctx, SourceFromFS("types/rack.yaml"))
	if err != nil {
		t.Fatalf("load fs: %v", err)
	}
	if got.Name != "rack" || len(got.Fields) != 2 {
		t.Fatalf("unexpected type %+v", got)
	}

	path := filepath.Join(t.TempDir(), "rack.json")
	if err := os.WriteFile(path, []byte(rackJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	fromFile, err := l.LoadType(ctx, SourceFromFile(path))
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if diff := cmp.Diff(got, fromFile); diff != "" {
		t.Fatalf("file mismatch (-want +got):\n%s", diff)
	}

	if _, err := l.LoadType(ctx, SourceFromFS("types/missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestLoadType_CheckerRejectsInvalid(t *testing.T) {
	files := fstest.MapFS{"bad.json": {Data: []byte(`{"name": "bad", "label": "Bad", "render_meta": {"sections": [{"name": "s", "label": "S", "type": "section", "fields": ["gone"]}]}, "fields": []}`)}}
	l := New(WithFileSystem(files), WithChecker(model.FieldKind.Known))

	_, err := l.LoadType(context.Background(), SourceFromFS("bad.json"))
	var verrs model.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if !verrs.HasKind(model.ErrDanglingField) {
		t.Fatalf("expected dangling field, got %v", verrs)
	}
}

func TestLoadTypes_Shapes(t *testing.T) {
	files := fstest.MapFS{
		"list.json":    {Data: []byte(`[` + rackJSON + `,` + rackJSON + `]`)},
		"wrapped.yaml": {Data: []byte("types:\n  - name: a\n    label: A\n  - name: b\n    label: B\n")},
		"single.yaml":  {Data: []byte(rackYAML)},
	}
	l := New(WithFileSystem(files))
	cases := map[string][]string{
		"list.json":    {"rack", "rack"},
		"wrapped.yaml": {"a", "b"},
		"single.yaml":  {"rack"},
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			types, err := l.LoadTypes(context.Background(), SourceFromFS(name))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			var got []string
			for _, typ := range types {
				got = append(got, typ.Name)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("names mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadObject_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/objects/40" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("public_id: 40\ntype_id: 3\nfields:\n  - name: text-room\n    value: B1\n"))
	}))
	defer srv.Close()

	l := New(WithHTTPFallback(time.Second))
	src, err := SourceFor(srv.URL + "/objects/40")
	if err != nil {
		t.Fatal(err)
	}
	obj, err := l.LoadObject(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v, _ := obj.ValueOf("text-room"); v != "B1" || obj.TypeID != 3 {
		t.Fatalf("unexpected object %+v", obj)
	}

	missing, _ := SourceFor(srv.URL + "/objects/41")
	if _, err := l.LoadObject(context.Background(), missing); err == nil {
		t.Fatal("expected status error")
	}

	if _, err := New().Read(context.Background(), src); err == nil {
		t.Fatal("expected http to be disabled by default")
	}
}

func TestSourceFor(t *testing.T) {
	src, err := SourceFor("types/rack.yaml")
	if err != nil || src.Kind() != SourceKindFile {
		t.Fatalf("expected file source, got %v %v", src, err)
	}
	if _, err := SourceFromURL(""); err == nil {
		t.Fatal("expected empty url error")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rack.yaml")
	if err := os.WriteFile(path, []byte(rackYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan model.Type, 8)
	done := make(chan error, 1)
	l := New(WithWatchDelay(20 * time.Millisecond))
	go func() {
		done <- l.Watch(ctx, path, func(typ model.Type, err error) {
			if err == nil {
				results <- typ
			}
		})
	}()

	select {
	case typ := <-results:
		if typ.Label != "Rack" {
			t.Fatalf("unexpected initial label %q", typ.Label)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("initial load not delivered")
	}

	updated := []byte("name: rack\nlabel: Racks\nrender_meta:\n  sections: []\nfields: []\n")
	if err := os.WriteFile(path, updated, 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case typ := <-results:
			if typ.Label == "Racks" {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("change not delivered")
		}
	}
}
