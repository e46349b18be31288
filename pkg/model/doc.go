// Package model exposes the CMDB schema model: Types made of ordered Sections
// and a flat list of Fields, plus the Objects that instantiate them. The
// implementation lives in internal/model; this package re-exports it so
// callers never depend on internal paths.
//
// A Type holds three invariants. Every name in a section's field list exists
// exactly once in the field list, field and section names are unique, and a
// reference section owns exactly one sentinel field named "<section>-field"
// that stores the referenced object id. Validate reports every violation and
// the mutation helpers (Duplicate, RenameSection) keep them intact.
package model
