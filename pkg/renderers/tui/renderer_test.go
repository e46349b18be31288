package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

type stubDriver struct {
	inputs       []string
	selectIdx    []int
	multiIdx     [][]int
	confirm      []bool
	rows         []RowChoice
	infoMessages []string
	rowPrompts   []RowsConfig
	inputPos     int
	selectPos    int
	multiPos     int
	confirmPos   int
	rowsPos      int
}

func (s *stubDriver) Input(_ context.Context, _ InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, _ SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, _ SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) Rows(_ context.Context, cfg RowsConfig) (RowChoice, error) {
	s.rowPrompts = append(s.rowPrompts, cfg)
	if s.rowsPos >= len(s.rows) {
		return RowChoice{}, errors.New("no row choice scripted")
	}
	val := s.rows[s.rowsPos]
	s.rowsPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func (s *stubDriver) saw(fragment string) bool {
	for _, msg := range s.infoMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func compile(t *testing.T, typ model.Type, mode form.Mode, obj *model.Object) *form.Form {
	t.Helper()
	compiler := form.NewCompiler(form.WithSource(testsupport.NewSeededBackend()))
	f, err := compiler.Compile(context.Background(), typ, mode, obj)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return f
}

func decodeSubmission(t *testing.T, out []byte) form.Submission {
	t.Helper()
	var sub form.Submission
	if err := json.Unmarshal(out, &sub); err != nil {
		t.Fatalf("decode submission: %v\n%s", err, out)
	}
	return sub
}

func TestRender_RequiredReprompts(t *testing.T) {
	driver := &stubDriver{inputs: []string{"", "rack"}}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := r.Render(context.Background(), compile(t, testsupport.T1(), form.ModeCreate, nil), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if driver.inputPos != 2 {
		t.Fatalf("expected two prompts, got %d", driver.inputPos)
	}
	if !driver.saw("Invalid Name: required") {
		t.Fatalf("expected required message, got %v", driver.infoMessages)
	}
	sub := decodeSubmission(t, out)
	if diff := cmp.Diff([]model.FieldValue{{Name: "name", Value: "rack"}}, sub.Object.Fields); diff != "" {
		t.Fatalf("submission mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_CreateWithRowsAndReference(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"web-03", "abc", "4", "", "sda", "100", "40"},
		selectIdx: []int{0},
		rows:      []RowChoice{{Action: RowAdd}, {Action: RowsDone}},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := r.Render(context.Background(), compile(t, testsupport.Server(), form.ModeCreate, nil), render.RenderOptions{
		Errors: map[string][]string{"text-host": {"already used"}},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !driver.saw("Hostname: already used") {
		t.Fatalf("expected server error to be shown, got %v", driver.infoMessages)
	}
	if !driver.saw("Invalid Cores: must be a number") {
		t.Fatalf("expected number validation message, got %v", driver.infoMessages)
	}
	if !driver.saw("Room: B1") {
		t.Fatalf("expected referenced section values, got %v", driver.infoMessages)
	}

	sub := decodeSubmission(t, out)
	wantFields := []model.FieldValue{
		{Name: "text-host", Value: "web-03"},
		{Name: "select-os", Value: "linux"},
		{Name: "number-cores", Value: 4.0},
		{Name: "ref-peer", Value: nil},
		{Name: "ref-section-rack-field", Value: 40.0},
	}
	if diff := cmp.Diff(wantFields, sub.Object.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	wantRows := []model.MultiDataSection{{
		SectionID: "multi-data-section-disks",
		Values: []model.MultiDataRow{{ID: 1, Data: []model.FieldValue{
			{Name: "text-disk", Value: "sda"},
			{Name: "number-size", Value: 100.0},
		}}},
	}}
	if diff := cmp.Diff(wantRows, sub.Object.MultiDataSections); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_EditRemovesAndAddsRows(t *testing.T) {
	driver := &stubDriver{
		inputs:    []string{"web-09", "8", "", "sda", "512", "sdb", "64", ""},
		selectIdx: []int{1},
		rows:      []RowChoice{{Action: RowRemove, Index: 0}, {Action: RowAdd}, {Action: RowsDone}},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	obj := testsupport.ServerObject(100, "web-01")
	out, err := r.Render(context.Background(), compile(t, testsupport.Server(), form.ModeEdit, &obj), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	wantPrompts := []RowsConfig{
		{Section: "multi-data-section-disks", Label: "Disks", Rows: []string{"sda, 512"}},
		{Section: "multi-data-section-disks", Label: "Disks", Rows: []string{}},
		{Section: "multi-data-section-disks", Label: "Disks", Rows: []string{"sdb, 64"}},
	}
	if diff := cmp.Diff(wantPrompts, driver.rowPrompts); diff != "" {
		t.Fatalf("row prompts mismatch (-want +got):\n%s", diff)
	}

	sub := decodeSubmission(t, out)
	wantRows := []model.MultiDataSection{{
		SectionID: "multi-data-section-disks",
		Values: []model.MultiDataRow{{ID: 2, Data: []model.FieldValue{
			{Name: "text-disk", Value: "sdb"},
			{Name: "number-size", Value: 64.0},
		}}},
	}}
	if diff := cmp.Diff(wantRows, sub.Object.MultiDataSections); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if sub.Object.PublicID != 100 {
		t.Fatalf("expected public id 100, got %d", sub.Object.PublicID)
	}
}

func TestRender_BulkAsksBeforeChanging(t *testing.T) {
	driver := &stubDriver{
		inputs:  []string{"16", "C9"},
		confirm: []bool{false, false, true, false, false, true, false},
	}
	r, err := New(WithPromptDriver(driver))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	out, err := r.Render(context.Background(), compile(t, testsupport.Server(), form.ModeBulk, nil), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	sub := decodeSubmission(t, out)
	want := form.Submission{
		Object:     model.Object{TypeID: testsupport.ServerID, Fields: []model.FieldValue{{Name: "number-cores", Value: 16.0}}},
		References: []form.ReferenceData{{Section: "ref-section-rack", TypeID: testsupport.RackID, Fields: []model.FieldValue{{Name: "text-room", Value: "C9"}}}},
		Changed:    []string{"number-cores", "ref-section-rack.text-room"},
	}
	if diff := cmp.Diff(want, sub); diff != "" {
		t.Fatalf("bulk submission mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ViewPrintsWithoutPrompts(t *testing.T) {
	driver := &stubDriver{}
	r, err := New(WithPromptDriver(driver), WithOutputFormat(OutputFormatPrettyText))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if r.ContentType() != "text/plain" {
		t.Fatalf("unexpected content type %q", r.ContentType())
	}

	obj := testsupport.ServerObject(100, "web-01")
	out, err := r.Render(context.Background(), compile(t, testsupport.Server(), form.ModeView, &obj), render.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "Hostname: web-01\n") || !strings.Contains(string(out), "OS: BSD\n") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if driver.inputPos != 0 || driver.confirmPos != 0 {
		t.Fatalf("view mode must not prompt")
	}
}

func TestRender_TooManyAttempts(t *testing.T) {
	driver := &stubDriver{inputs: []string{"", "", ""}}
	r, err := New(WithPromptDriver(driver), WithMaxAttempts(2))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	_, err = r.Render(context.Background(), compile(t, testsupport.T1(), form.ModeCreate, nil), render.RenderOptions{})
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestRender_ContextCancelled(t *testing.T) {
	r, err := New(WithPromptDriver(&stubDriver{}))
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Render(ctx, compile(t, testsupport.T1(), form.ModeCreate, nil), render.RenderOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
