package model

import "github.com/mohae/deepcopy"

// ValueOf returns the value stored for the named field.
func (o Object) ValueOf(name string) (any, bool) {
	for _, field := range o.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// SetValue replaces or appends the value for name.
func (o *Object) SetValue(name string, value any) {
	for i := range o.Fields {
		if o.Fields[i].Name == name {
			o.Fields[i].Value = value
			return
		}
	}
	o.Fields = append(o.Fields, FieldValue{Name: name, Value: value})
}

// MultiData returns the rows stored for a multi-data section.
func (o Object) MultiData(section string) (MultiDataSection, bool) {
	for _, data := range o.MultiDataSections {
		if data.SectionID == section {
			return data, true
		}
	}
	return MultiDataSection{}, false
}

// Clone returns a deep copy of o; mutating the copy never touches o.
func (o Object) Clone() Object {
	return deepcopy.Copy(o).(Object)
}

// ValueOf returns the value stored for name within the row.
func (r MultiDataRow) ValueOf(name string) (any, bool) {
	for _, field := range r.Data {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}
