package builder

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/testsupport"
)

func sequence() model.IDSource {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func sectionFields(t *testing.T, typ model.Type, name string) []string {
	t.Helper()
	section, ok := typ.SectionByName(name)
	if !ok {
		t.Fatalf("section %q missing", name)
	}
	return section.Fields
}

func TestSession_BuildFromScratch(t *testing.T) {
	s := New(model.Type{}, WithIDSource(sequence()))
	defer s.Close()

	if s.Persistable() {
		t.Fatalf("empty type must not be persistable")
	}
	if _, err := s.UpdateBasic(Basic{Name: " server-x ", Label: "Server X", Icon: "fas  fa-server"}); err != nil {
		t.Fatalf("update basic: %v", err)
	}
	if _, err := s.AddSection(model.SectionPlain, "General", 0); err != nil {
		t.Fatalf("add section: %v", err)
	}
	if _, err := s.AddField("section-s1", model.FieldText, 0); err != nil {
		t.Fatalf("add text: %v", err)
	}
	typ, err := s.AddField("section-s1", model.FieldNumber, 0)
	if err != nil {
		t.Fatalf("add number: %v", err)
	}

	if typ.Name != "server-x" || typ.RenderMeta.Icon != "fas fa-server" {
		t.Fatalf("unexpected header %q %q", typ.Name, typ.RenderMeta.Icon)
	}
	if diff := cmp.Diff([]string{"number-s3", "text-s2"}, sectionFields(t, typ, "section-s1")); diff != "" {
		t.Fatalf("section fields mismatch (-want +got):\n%s", diff)
	}
	if !s.Persistable() {
		t.Fatalf("expected persistable type, errors: %v", s.wizard.Errors())
	}

	for i, want := range []string{StepFields, StepMeta, StepACL, StepACL} {
		if _, err := s.Advance(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if _, got := s.Current(); got != want {
			t.Fatalf("advance %d: want step %q, got %q", i, want, got)
		}
	}
	if !s.Back() {
		t.Fatalf("expected back to succeed")
	}
}

func TestSession_ReferenceSection(t *testing.T) {
	s := New(testsupport.T1(), WithIDSource(sequence()))
	typ, err := s.AddSection(model.SectionReference, "Rack", -1)
	if err != nil {
		t.Fatalf("add reference section: %v", err)
	}
	if diff := cmp.Diff([]string{"ref-section-s1-field"}, sectionFields(t, typ, "ref-section-s1")); diff != "" {
		t.Fatalf("sentinel mismatch (-want +got):\n%s", diff)
	}
	if s.Persistable() {
		t.Fatalf("reference section without target must not be persistable")
	}
	state, _ := s.StepState(StepFields)
	if !state.Errors.HasKind(model.ErrInvalidReference) {
		t.Fatalf("expected invalid reference on the fields step, got %v", state.Errors)
	}

	ref := model.SectionRef{TypeID: testsupport.RackID, SectionName: "section-rack"}
	typ, err = s.SetReferenceSection("ref-section-s1", ref)
	if err != nil {
		t.Fatalf("set reference: %v", err)
	}
	field, _ := typ.FieldByName("ref-section-s1-field")
	if diff := cmp.Diff(&ref, field.Reference); diff != "" {
		t.Fatalf("sentinel reference mismatch (-want +got):\n%s", diff)
	}
	if !s.Persistable() {
		t.Fatalf("expected persistable type")
	}

	if _, err := s.RemoveField("ref-section-s1-field"); !errors.Is(err, ErrSectionLocked) {
		t.Fatalf("expected ErrSectionLocked removing the sentinel, got %v", err)
	}
	if _, err := s.AddField("ref-section-s1", model.FieldText, 0); !errors.Is(err, ErrSectionLocked) {
		t.Fatalf("expected ErrSectionLocked adding to a reference section, got %v", err)
	}
	if _, err := s.SetReferenceSection("section-main", ref); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind on a plain section, got %v", err)
	}
	if _, err := s.SetReferenceSection("ref-section-s1", model.SectionRef{TypeID: 3}); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	typ, err = s.RenameSection("ref-section-s1", "ref-section-rack")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, ok := typ.FieldByName("ref-section-rack-field"); !ok {
		t.Fatalf("expected sentinel renamed with the section")
	}
	if _, err := s.RenameSection("ref-section-rack", "bad name"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestSession_Drop(t *testing.T) {
	s := New(testsupport.Server(), WithIDSource(sequence()))

	typ, err := s.Drop(DropEvent{Effect: "link", From: "section-general", To: "section-general"})
	if !errors.Is(err, ErrDropRejected) {
		t.Fatalf("expected ErrDropRejected, got %v", err)
	}
	if diff := cmp.Diff(testsupport.Server(), typ); diff != "" {
		t.Fatalf("rejected drop mutated the type (-want +got):\n%s", diff)
	}

	typ, err = s.Drop(DropEvent{Effect: DropMove, From: "section-general", FromIndex: 1, To: "multi-data-section-disks", ToIndex: 0})
	if err != nil {
		t.Fatalf("move across sections: %v", err)
	}
	if diff := cmp.Diff([]string{"text-host", "number-cores", "ref-peer"}, sectionFields(t, typ, "section-general")); diff != "" {
		t.Fatalf("source mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"select-os", "text-disk", "number-size"}, sectionFields(t, typ, "multi-data-section-disks")); diff != "" {
		t.Fatalf("target mismatch (-want +got):\n%s", diff)
	}

	typ, err = s.Drop(DropEvent{Effect: DropMove, From: "section-general", FromIndex: 0, To: "section-general", ToIndex: 2})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if diff := cmp.Diff([]string{"number-cores", "ref-peer", "text-host"}, sectionFields(t, typ, "section-general")); diff != "" {
		t.Fatalf("reorder mismatch (-want +got):\n%s", diff)
	}

	typ, err = s.Drop(DropEvent{Effect: DropCopy, From: "multi-data-section-disks", FromIndex: 1, To: "section-general", ToIndex: 0})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	copied, ok := typ.FieldByName("text-s1")
	if !ok || !copied.Required || copied.Label != "Disk" {
		t.Fatalf("expected renamed copy of text-disk, got %+v", copied)
	}
	if got := sectionFields(t, typ, "section-general")[0]; got != "text-s1" {
		t.Fatalf("expected copy at index 0, got %q", got)
	}

	typ, err = s.Drop(DropEvent{Effect: DropCopy, Kind: model.FieldDate, To: "section-general", ToIndex: -1})
	if err != nil {
		t.Fatalf("palette drop: %v", err)
	}
	if fields := sectionFields(t, typ, "section-general"); fields[len(fields)-1] != "date-s2" {
		t.Fatalf("expected palette field appended, got %v", fields)
	}

	rejected := []DropEvent{
		{Effect: DropMove, Kind: model.FieldDate, To: "section-general"},
		{Effect: DropMove, From: "section-general", FromIndex: 0, To: "ref-section-rack"},
		{Effect: DropMove, From: "section-general", FromIndex: 99, To: "section-general"},
		{Effect: DropMove, From: "section-gone", To: "section-general"},
	}
	before := s.Type()
	for i, ev := range rejected {
		if _, err := s.Drop(ev); !errors.Is(err, ErrDropRejected) {
			t.Fatalf("drop %d: expected ErrDropRejected, got %v", i, err)
		}
	}
	if diff := cmp.Diff(before, s.Type()); diff != "" {
		t.Fatalf("rejected drops mutated the type (-want +got):\n%s", diff)
	}
}

func TestSession_RemoveCascades(t *testing.T) {
	s := New(testsupport.Server(), WithIDSource(sequence()))
	if _, err := s.AddExternalLink(model.ExternalLink{Name: "wiki", Href: "https://wiki/{}", Fields: []string{"text-host"}}); err != nil {
		t.Fatalf("add link: %v", err)
	}
	acl := &model.AccessControlList{
		Activated:    true,
		Groups:       model.ACLGroups{Includes: map[string][]model.Permission{"1": {model.PermissionRead}}},
		Restrictions: map[string][]int{"text-host": {1}, "multi-data-section-disks": {1}},
	}
	if _, err := s.SetACL(acl); err != nil {
		t.Fatalf("set acl: %v", err)
	}

	typ, err := s.RemoveField("text-host")
	if err != nil {
		t.Fatalf("remove field: %v", err)
	}
	if _, ok := typ.FieldByName("text-host"); ok {
		t.Fatalf("field still declared")
	}
	if diff := cmp.Diff([]string{"select-os", "number-cores", "ref-peer"}, sectionFields(t, typ, "section-general")); diff != "" {
		t.Fatalf("section mismatch (-want +got):\n%s", diff)
	}
	if len(typ.RenderMeta.Summary.Fields) != 0 || len(typ.RenderMeta.External) != 0 {
		t.Fatalf("expected summary and link cleared, got %+v", typ.RenderMeta)
	}
	if _, ok := typ.ACL.Restrictions["text-host"]; ok {
		t.Fatalf("expected restriction removed")
	}

	typ, err = s.RemoveSection("multi-data-section-disks")
	if err != nil {
		t.Fatalf("remove section: %v", err)
	}
	for _, name := range []string{"text-disk", "number-size"} {
		if _, ok := typ.FieldByName(name); ok {
			t.Fatalf("owned field %q survived", name)
		}
	}
	if len(typ.ACL.Restrictions) != 0 {
		t.Fatalf("expected section restriction removed, got %v", typ.ACL.Restrictions)
	}

	typ, err = s.RemoveSection("ref-section-rack")
	if err != nil {
		t.Fatalf("remove reference section: %v", err)
	}
	if _, ok := typ.FieldByName("ref-section-rack-field"); ok {
		t.Fatalf("sentinel survived its section")
	}
	if errs := typ.Validate(nil); errs.HasStructural() {
		t.Fatalf("cascade left structural errors: %v", errs)
	}
	if _, err := s.RemoveSection("ref-section-rack"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_RollsBackStructuralErrors(t *testing.T) {
	s := New(testsupport.Server(), WithIDSource(sequence()))

	typ, err := s.SetSummary([]string{"ghost"})
	var verrs model.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.HasKind(model.ErrDanglingMeta) {
		t.Fatalf("expected dangling meta error, got %v", err)
	}
	if diff := cmp.Diff(testsupport.Server(), typ); diff != "" {
		t.Fatalf("rolled back type mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.AddField("section-general", model.FieldLocation, -1); err != nil {
		t.Fatalf("first location: %v", err)
	}
	if _, err := s.AddField("section-general", model.FieldLocation, -1); !errors.As(err, &verrs) || !verrs.HasKind(model.ErrDuplicateField) {
		t.Fatalf("expected duplicate location rejected, got %v", err)
	}
	if _, err := s.AddField("multi-data-section-disks", model.FieldLocation, -1); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind for repeated location, got %v", err)
	}
	if _, err := s.AddField("section-general", "widget", -1); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := s.AddSection("tabs", "", 0); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := s.AddExternalLink(model.ExternalLink{Name: "bad", Href: "https://x/{}/{}", Fields: []string{"text-host"}}); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected placeholder mismatch rejected, got %v", err)
	}
	if _, err := s.SetACL(&model.AccessControlList{Restrictions: map[string][]int{"ghost": {1}}}); err == nil {
		t.Fatalf("expected unknown restriction rejected")
	}
	if errs := s.Type().Validate(nil); errs.HasStructural() {
		t.Fatalf("session type has structural errors: %v", errs)
	}
}

func TestSession_UpdateField(t *testing.T) {
	s := New(testsupport.Server())

	field, _ := testsupport.Server().FieldByName("text-host")
	field.Name = "text-hostname"
	field.Label = "Host"
	typ, err := s.UpdateField("text-host", field)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if diff := cmp.Diff([]string{"text-hostname"}, typ.RenderMeta.Summary.Fields); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
	if got := sectionFields(t, typ, "section-general")[0]; got != "text-hostname" {
		t.Fatalf("expected section list renamed, got %q", got)
	}

	cores, _ := typ.FieldByName("number-cores")
	cores.Name = "select-os"
	if _, err := s.UpdateField("number-cores", cores); err == nil {
		t.Fatalf("expected rename onto an existing field rejected")
	}
	if _, ok := s.Type().FieldByName("number-cores"); !ok {
		t.Fatalf("expected rollback to keep number-cores")
	}

	sentinel, _ := typ.FieldByName("ref-section-rack-field")
	sentinel.Type = model.FieldText
	if _, err := s.UpdateField("ref-section-rack-field", sentinel); !errors.Is(err, ErrSectionLocked) {
		t.Fatalf("expected ErrSectionLocked, got %v", err)
	}
	if _, err := s.UpdateField("ghost", model.Field{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_MoveSection(t *testing.T) {
	s := New(testsupport.Server())
	typ, err := s.MoveSection(2, 0)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	var names []string
	for _, section := range typ.RenderMeta.Sections {
		names = append(names, section.Name)
	}
	if diff := cmp.Diff([]string{"ref-section-rack", "section-general", "multi-data-section-disks"}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.MoveSection(5, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_Duplicate(t *testing.T) {
	s := New(testsupport.Server(), WithIDSource(sequence()))
	typ, err := s.Duplicate()
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if typ.PublicID != 0 || typ.Label != "Server (copy)" {
		t.Fatalf("unexpected header %d %q", typ.PublicID, typ.Label)
	}
	original := testsupport.Server()
	for _, field := range typ.Fields {
		if _, clash := original.FieldByName(field.Name); clash {
			t.Fatalf("field %q kept its identifier", field.Name)
		}
	}
	if len(typ.RenderMeta.Sections) != len(original.RenderMeta.Sections) {
		t.Fatalf("section shape changed")
	}
}

func TestSession_SetCategory(t *testing.T) {
	s := New(testsupport.T1())
	if _, err := s.SetCategory(1); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory without a tree, got %v", err)
	}

	tree := []model.CategoryNode{{
		Category: model.Category{PublicID: 1, Name: "hardware"},
		Children: []model.CategoryNode{{Category: model.Category{PublicID: 5, Name: "servers", Parent: 1}}},
	}}
	s = New(testsupport.T1(), WithCategories(tree))
	typ, err := s.SetCategory(5)
	if err != nil {
		t.Fatalf("set category: %v", err)
	}
	if typ.CategoryID != 5 {
		t.Fatalf("expected category 5, got %d", typ.CategoryID)
	}
	if _, err := s.SetCategory(9); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if typ, _ := s.SetCategory(0); typ.CategoryID != 0 {
		t.Fatalf("expected category cleared")
	}
}
