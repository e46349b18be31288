package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

func rackType() model.Type {
	return model.Type{
		PublicID: 3,
		Name:     "rack",
		Label:    "Rack",
		RenderMeta: model.RenderMeta{
			Sections: []model.Section{
				{Name: "section-rack", Label: "Rack", Type: model.SectionPlain, Fields: []string{"text-room", "number-units", "text-notes"}},
				{Name: "section-power", Label: "Power", Type: model.SectionPlain, Fields: []string{"number-watts"}},
			},
			Summary: model.Summary{Fields: []string{"text-room"}},
		},
		Fields: []model.Field{
			{Name: "text-room", Label: "Room", Type: model.FieldText},
			{Name: "number-units", Label: "Units", Type: model.FieldNumber},
			{Name: "text-notes", Label: "Notes", Type: model.FieldText},
			{Name: "number-watts", Label: "Watts", Type: model.FieldNumber},
		},
	}
}

func rackSource() *fakeSource {
	src := &fakeSource{types: map[int]model.Type{3: rackType()}}
	src.objects = []model.Object{{
		PublicID: 40,
		TypeID:   3,
		Fields: []model.FieldValue{
			{Name: "text-room", Value: "B1"},
			{Name: "number-units", Value: 42.0},
			{Name: "text-notes", Value: "cold aisle"},
			{Name: "number-watts", Value: 3000.0},
		},
	}}
	return src
}

func TestResolveSection_ExtractsOnlySectionFields(t *testing.T) {
	src := rackSource()
	snap, err := ResolveSection(context.Background(), src, model.SectionRef{TypeID: 3, SectionName: "section-rack"}, 40)
	require.NoError(t, err)

	assert.True(t, snap.ReadTime)
	assert.Equal(t, "B1", snap.Summary)
	assert.Equal(t, []model.FieldValue{
		{Name: "text-room", Value: "B1"},
		{Name: "number-units", Value: 42.0},
		{Name: "text-notes", Value: "cold aisle"},
	}, snap.Values)
	_, ok := snap.Value("number-watts")
	assert.False(t, ok, "fields of other sections must not leak")
}

func TestResolveSection_SelectedFieldsOverride(t *testing.T) {
	src := rackSource()
	ref := model.SectionRef{TypeID: 3, SectionName: "section-rack", SelectedFields: []string{"text-notes", "number-watts"}}
	snap, err := ResolveSection(context.Background(), src, ref, 40)
	require.NoError(t, err)
	require.Len(t, snap.Fields, 1)
	assert.Equal(t, "text-notes", snap.Fields[0].Name)
	assert.Equal(t, []model.FieldValue{{Name: "text-notes", Value: "cold aisle"}}, snap.Values)
}

func TestResolveSection_SnapshotIsDetached(t *testing.T) {
	src := rackSource()
	snap, err := ResolveSection(context.Background(), src, model.SectionRef{TypeID: 3, SectionName: "section-rack"}, 40)
	require.NoError(t, err)

	snap.Values[0].Value = "changed"
	snap.Section.Fields[0] = "changed"

	obj, _ := src.GetObject(context.Background(), 40)
	v, _ := obj.ValueOf("text-room")
	assert.Equal(t, "B1", v)
	assert.Equal(t, "text-room", src.types[3].RenderMeta.Sections[0].Fields[0])
}

func TestResolveSection_MissingTargets(t *testing.T) {
	src := rackSource()
	cases := map[string]struct {
		ref      model.SectionRef
		objectID int
	}{
		"deleted type":    {ref: model.SectionRef{TypeID: 8, SectionName: "section-rack"}},
		"deleted section": {ref: model.SectionRef{TypeID: 3, SectionName: "section-gone"}},
		"deleted object":  {ref: model.SectionRef{TypeID: 3, SectionName: "section-rack"}, objectID: 41},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveSection(context.Background(), src, tc.ref, tc.objectID)
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestResolver_ResolveSectionAfterClose(t *testing.T) {
	r := New(context.Background(), rackSource(), []int{3})
	r.Close()
	_, err := r.ResolveSection(context.Background(), model.SectionRef{TypeID: 3, SectionName: "section-rack"}, 40)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSectionSnapshot_SchemaOnlyNeedsNoSource(t *testing.T) {
	snap, err := SectionSnapshot(context.Background(), nil, rackType(), model.SectionRef{TypeID: 3, SectionName: "section-power"}, 0)
	require.NoError(t, err)

	assert.Zero(t, snap.ObjectID)
	assert.Empty(t, snap.Values)
	require.Len(t, snap.Fields, 1)
	assert.Equal(t, "number-watts", snap.Fields[0].Name)

	_, err = SectionSnapshot(context.Background(), nil, rackType(), model.SectionRef{TypeID: 3, SectionName: "section-power"}, 40)
	assert.Error(t, err)
}
