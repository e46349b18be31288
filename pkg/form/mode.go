package form

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Mode is the rendering intent. The same Type compiles to a different form
// per mode, and nothing carries over between compilations.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeView   Mode = "view"
	ModeBulk   Mode = "bulk"
	ModeSimple Mode = "simple"
)

// Modes lists every mode.
var Modes = []Mode{ModeCreate, ModeEdit, ModeView, ModeBulk, ModeSimple}

// ParseMode reads a mode name case-insensitively.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	if !mode.Valid() {
		return "", fmt.Errorf("form: unknown mode %q", raw)
	}
	return mode, nil
}

// Valid reports whether m is one of the five modes.
func (m Mode) Valid() bool {
	for _, mode := range Modes {
		if mode == m {
			return true
		}
	}
	return false
}

// ReadOnly modes compile disabled controls.
func (m Mode) ReadOnly() bool {
	return m == ModeView || m == ModeSimple
}

// Prefilled modes take control values from the existing object.
func (m Mode) Prefilled() bool {
	return m == ModeEdit || m == ModeView || m == ModeSimple
}

// NeedsObject reports whether compiling requires an existing object.
func (m Mode) NeedsObject() bool {
	return m.Prefilled()
}

// EnforcesRequired reports whether the schema's required flag becomes a
// presence validator.
func (m Mode) EnforcesRequired() bool {
	return m == ModeCreate || m == ModeEdit
}

// Permission is the ACL verb a group needs to compile in m.
func (m Mode) Permission() model.Permission {
	switch m {
	case ModeCreate:
		return model.PermissionCreate
	case ModeEdit, ModeBulk:
		return model.PermissionUpdate
	default:
		return model.PermissionRead
	}
}
