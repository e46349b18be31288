package model

import internalmodel "github.com/goliatone/go-cmdbform/internal/model"

type ErrorKind = internalmodel.ErrorKind

const (
	ErrDuplicateField     = internalmodel.ErrDuplicateField
	ErrDuplicateSection   = internalmodel.ErrDuplicateSection
	ErrDanglingField      = internalmodel.ErrDanglingField
	ErrSharedField        = internalmodel.ErrSharedField
	ErrOrphanField        = internalmodel.ErrOrphanField
	ErrMissingAttribute   = internalmodel.ErrMissingAttribute
	ErrInvalidName        = internalmodel.ErrInvalidName
	ErrUnknownFieldKind   = internalmodel.ErrUnknownFieldKind
	ErrUnknownSectionKind = internalmodel.ErrUnknownSectionKind
	ErrInvalidReference   = internalmodel.ErrInvalidReference
	ErrDanglingMeta       = internalmodel.ErrDanglingMeta
)

type ValidationError = internalmodel.ValidationError
type ValidationErrors = internalmodel.ValidationErrors
type KindChecker = internalmodel.KindChecker

const (
	LocationName         = internalmodel.LocationName
	ReferenceFieldSuffix = internalmodel.ReferenceFieldSuffix
)

type IDSource = internalmodel.IDSource

var (
	RandomSuffix       = internalmodel.RandomSuffix
	IsGlobalName       = internalmodel.IsGlobalName
	ReferenceFieldName = internalmodel.ReferenceFieldName
	ValidName          = internalmodel.ValidName
	DefaultLabeler     = internalmodel.DefaultLabeler
)

// Duplicate copies t regenerating every non-global identifier.
func Duplicate(t Type, next IDSource) Type {
	return internalmodel.Duplicate(t, next)
}

// KindLabel is the default label of a fresh field or section.
func KindLabel[K ~string](kind K) string {
	return internalmodel.KindLabel(kind)
}
