package model

import internalmodel "github.com/goliatone/go-cmdbform/internal/model"

// FieldKind re-exports the internal field kind enumeration.
type FieldKind = internalmodel.FieldKind

const (
	FieldText     = internalmodel.FieldText
	FieldPassword = internalmodel.FieldPassword
	FieldEmail    = internalmodel.FieldEmail
	FieldPhone    = internalmodel.FieldPhone
	FieldTextarea = internalmodel.FieldTextarea
	FieldHref     = internalmodel.FieldHref
	FieldCheckbox = internalmodel.FieldCheckbox
	FieldRadio    = internalmodel.FieldRadio
	FieldSelect   = internalmodel.FieldSelect
	FieldDate     = internalmodel.FieldDate
	FieldNumber   = internalmodel.FieldNumber
	FieldLocation = internalmodel.FieldLocation
	FieldRef      = internalmodel.FieldRef
)

// SectionKind re-exports the section variants.
type SectionKind = internalmodel.SectionKind

const (
	SectionPlain     = internalmodel.SectionPlain
	SectionReference = internalmodel.SectionReference
	SectionMultiData = internalmodel.SectionMultiData
)

type Permission = internalmodel.Permission

const (
	PermissionCreate = internalmodel.PermissionCreate
	PermissionRead   = internalmodel.PermissionRead
	PermissionUpdate = internalmodel.PermissionUpdate
	PermissionDelete = internalmodel.PermissionDelete
)

type Type = internalmodel.Type
type RenderMeta = internalmodel.RenderMeta
type Summary = internalmodel.Summary
type ExternalLink = internalmodel.ExternalLink
type Section = internalmodel.Section
type SectionRef = internalmodel.SectionRef
type Option = internalmodel.Option
type Field = internalmodel.Field
type RefTypes = internalmodel.RefTypes
type AccessControlList = internalmodel.AccessControlList
type ACLGroups = internalmodel.ACLGroups
type Object = internalmodel.Object
type FieldValue = internalmodel.FieldValue
type MultiDataSection = internalmodel.MultiDataSection
type ObjectReference = internalmodel.ObjectReference
type MultiDataRow = internalmodel.MultiDataRow
type TypeInformation = internalmodel.TypeInformation
type Category = internalmodel.Category
type CategoryNode = internalmodel.CategoryNode
type Group = internalmodel.Group
type ExternalSystem = internalmodel.ExternalSystem
type ExternalSystemParameter = internalmodel.ExternalSystemParameter
type ExternalSystemVariable = internalmodel.ExternalSystemVariable

type ListParams = internalmodel.ListParams
type Pager = internalmodel.Pager

// Page is one page of a list response.
type Page[T any] = internalmodel.Page[T]

// NewPage slices items according to params and fills the pager.
func NewPage[T any](items []T, params ListParams) Page[T] {
	return internalmodel.NewPage(items, params)
}

const DefaultPageLimit = internalmodel.DefaultPageLimit

var (
	ErrNotFound           = internalmodel.ErrNotFound
	ErrInconsistentRename = internalmodel.ErrInconsistentRename
)

// ParseListParams decodes list query parameters.
var ParseListParams = internalmodel.ParseListParams

// Filter is a decoded list filter document.
type Filter = internalmodel.Filter

// ParseFilter decodes a JSON list filter.
var ParseFilter = internalmodel.ParseFilter
