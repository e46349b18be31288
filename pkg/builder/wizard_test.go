package builder

import (
	"errors"
	"testing"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

func catalog() SystemCatalog {
	return SystemCatalog{"csv": {{Name: "path", Required: true}, {Name: "delimiter"}}}
}

func TestJobWizard(t *testing.T) {
	w := NewJobWizard(catalog())
	job := ExportJob{Name: "nightly", Label: "Nightly"}

	if w.Persistable() {
		t.Fatalf("unevaluated wizard must not be persistable")
	}
	if _, err := w.Advance(job); err != nil {
		t.Fatalf("advance basic: %v", err)
	}
	state, err := w.Advance(job)
	if !errors.Is(err, ErrStepInvalid) {
		t.Fatalf("expected ErrStepInvalid, got %v", err)
	}
	if !state.Errors.HasKind(model.ErrMissingAttribute) {
		t.Fatalf("expected missing sources, got %v", state.Errors)
	}
	if idx, name := w.Current(); idx != 1 || name != StepJobSources {
		t.Fatalf("expected to stay on sources, got %d %q", idx, name)
	}
	if !w.Back() || w.Back() {
		t.Fatalf("expected exactly one step back")
	}

	job.Sources = []JobSource{{TypeID: 2}}
	job.Fields = []JobField{{Name: "host", Value: "{{text-host}}"}}
	job.Scheduling = JobScheduling{Cron: "0 3 * * 1-5"}
	job.Destinations = []JobDestination{{ExternalSystem: "csv", Parameters: []JobParameter{{Name: "path", Value: "/tmp/out.csv"}}}}
	w.Evaluate(job)
	if !w.Persistable() {
		t.Fatalf("expected persistable job, errors: %v", w.Errors())
	}

	broken := job
	broken.Sources = []JobSource{{TypeID: 2}, {TypeID: 2}}
	broken.Fields = []JobField{{Name: "host"}, {Name: "host"}}
	broken.Scheduling.Cron = "61x * *"
	broken.Destinations = []JobDestination{{ExternalSystem: "csv"}, {ExternalSystem: "ftp"}}
	states := w.Evaluate(broken)
	for i, state := range states[1:] {
		if state.Valid {
			t.Fatalf("step %d should be invalid", i+1)
		}
	}
	dest := states[3].Errors
	if len(dest) != 2 || dest[0].Path != "destination.0.parameter.path" || dest[1].Kind != model.ErrInvalidReference {
		t.Fatalf("unexpected destination errors %v", dest)
	}
}

func TestJobWizard_BadName(t *testing.T) {
	w := NewJobWizard(nil)
	state, err := w.Advance(ExportJob{Name: "night ly"})
	if !errors.Is(err, ErrStepInvalid) || len(state.Errors) != 2 {
		t.Fatalf("expected name and label errors, got %v", state.Errors)
	}
}

func TestTypeWizard_Steps(t *testing.T) {
	w := NewTypeWizard(nil)
	want := []string{StepBasic, StepFields, StepMeta, StepACL}
	got := w.Steps()
	if len(got) != len(want) {
		t.Fatalf("unexpected steps %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected steps %v", got)
		}
	}
	if err := w.Seed("ghost", StepState{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	typ := model.Type{Name: "t", Label: "T", CategoryID: 4,
		RenderMeta: model.RenderMeta{Sections: []model.Section{{Name: "s", Type: model.SectionPlain, Fields: []string{}}}}}
	_ = w.Seed(StepBasic, StepState{Data: BasicData{Categories: []model.CategoryNode{{Category: model.Category{PublicID: 1}}}}})
	states := w.Evaluate(typ)
	if states[0].Valid {
		t.Fatalf("expected unknown category to invalidate the basic step")
	}
	if _, ok := states[0].Data.(BasicData); !ok {
		t.Fatalf("expected step data carried over")
	}
}
