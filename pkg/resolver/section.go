package resolver

import (
	"context"
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Snapshot is the read-time copy of one referenced section. Changing it
// never touches the referenced object.
type Snapshot struct {
	TypeID    int                `json:"type_id"`
	TypeLabel string             `json:"type_label"`
	Section   model.Section      `json:"section"`
	Fields    []model.Field      `json:"fields"`
	ObjectID  int                `json:"object_id,omitempty"`
	Values    []model.FieldValue `json:"values"`
	Summary   string             `json:"summary,omitempty"`
	ReadTime  bool               `json:"read_time"`
}

// Value returns the snapshot value of the named field.
func (s Snapshot) Value(name string) (any, bool) {
	for _, value := range s.Values {
		if value.Name == name {
			return value.Value, true
		}
	}
	return nil, false
}

// SectionFields returns the fields a reference shows: the target section's
// fields, narrowed to SelectedFields when those are set. Selected names the
// section does not own are ignored.
func SectionFields(target model.Type, ref model.SectionRef) (model.Section, []model.Field, error) {
	section, ok := target.SectionByName(ref.SectionName)
	if !ok {
		return model.Section{}, nil, fmt.Errorf("resolver: type %d section %q: %w", target.PublicID, ref.SectionName, ErrNotFound)
	}
	fields := target.FieldsOf(section)
	if len(ref.SelectedFields) == 0 {
		return section, fields, nil
	}
	selected := make(map[string]bool, len(ref.SelectedFields))
	for _, name := range ref.SelectedFields {
		selected[name] = true
	}
	narrowed := fields[:0]
	for _, field := range fields {
		if selected[field.Name] {
			narrowed = append(narrowed, field)
		}
	}
	return section, narrowed, nil
}

// ResolveSection loads the referenced Type and, when objectID is set, the
// referenced object, and extracts only the referenced section's fields. A
// deleted Type, section or object yields an error wrapping ErrNotFound.
func ResolveSection(ctx context.Context, src Source, ref model.SectionRef, objectID int) (Snapshot, error) {
	if src == nil {
		return Snapshot{}, fmt.Errorf("resolver: source is required")
	}
	target, err := src.GetType(ctx, ref.TypeID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolver: type %d: %w", ref.TypeID, err)
	}
	return SectionSnapshot(ctx, src, target, ref, objectID)
}

// SectionSnapshot is ResolveSection for a target Type the caller already
// holds. src is only consulted for the object and may be nil when objectID
// is zero.
func SectionSnapshot(ctx context.Context, src Source, target model.Type, ref model.SectionRef, objectID int) (Snapshot, error) {
	section, fields, err := SectionFields(target, ref)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		TypeID:    target.PublicID,
		TypeLabel: target.Label,
		Section:   section,
		Fields:    fields,
		ReadTime:  true,
	}
	if objectID <= 0 {
		return deepCopy(snap), nil
	}
	if src == nil {
		return Snapshot{}, fmt.Errorf("resolver: source is required")
	}

	obj, err := src.GetObject(ctx, objectID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resolver: object %d: %w", objectID, err)
	}
	if obj.TypeID != 0 && obj.TypeID != target.PublicID {
		return Snapshot{}, fmt.Errorf("resolver: object %d is not of type %d: %w", objectID, target.PublicID, ErrNotFound)
	}
	snap.ObjectID = obj.PublicID
	snap.Summary = target.SummaryLine(obj)
	snap.Values = make([]model.FieldValue, 0, len(fields))
	for _, field := range fields {
		value, _ := obj.ValueOf(field.Name)
		snap.Values = append(snap.Values, model.FieldValue{Name: field.Name, Value: value})
	}
	return deepCopy(snap), nil
}

// ResolveSection is ResolveSection bound to the resolver lifetime.
func (r *Resolver) ResolveSection(ctx context.Context, ref model.SectionRef, objectID int) (Snapshot, error) {
	if r.scope.Closed() {
		return Snapshot{}, ErrClosed
	}
	ctx, cancel := r.bind(ctx)
	defer cancel()
	snap, err := ResolveSection(ctx, r.src, ref, objectID)
	if r.scope.Closed() {
		return Snapshot{}, ErrClosed
	}
	return snap, err
}

func deepCopy(s Snapshot) Snapshot {
	return deepcopy.Copy(s).(Snapshot)
}
