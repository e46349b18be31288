package builder

import (
	"fmt"
	"strconv"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Type wizard step names.
const (
	StepBasic  = "basic"
	StepFields = "fields"
	StepMeta   = "meta"
	StepACL    = "acl"
)

// ACLData is the Data of the ACL step: the groups available for
// assignment, or Degraded when they could not be loaded.
type ACLData struct {
	Groups   []model.Group
	Degraded bool
}

// BasicData is the Data of the Basic step.
type BasicData struct {
	Categories []model.CategoryNode
}

// TypeSteps returns the Basic, Fields, Meta and ACL steps. known decides
// which field kinds are registered; nil accepts the built-in kinds.
func TypeSteps(known model.KindChecker) []NamedStep[model.Type] {
	return []NamedStep[model.Type]{
		{Name: StepBasic, Run: basicStep(known)},
		{Name: StepFields, Run: fieldsStep(known)},
		{Name: StepMeta, Run: metaStep(known)},
		{Name: StepACL, Run: aclStep},
	}
}

// NewTypeWizard returns a wizard over TypeSteps.
func NewTypeWizard(known model.KindChecker) *Wizard[model.Type] {
	return NewWizard(TypeSteps(known)...)
}

func result(prior StepState, errs model.ValidationErrors) StepState {
	return StepState{Valid: len(errs) == 0, Data: prior.Data, Errors: errs}
}

func basicStep(known model.KindChecker) Step[model.Type] {
	return func(t model.Type, prior StepState) StepState {
		errs := t.Validate(known)
		var out model.ValidationErrors
		out = append(out, errs.ForPath("name")...)
		out = append(out, errs.ForPath("label")...)
		if data, ok := prior.Data.(BasicData); ok && t.CategoryID != 0 && len(data.Categories) > 0 {
			if _, found := findCategory(data.Categories, t.CategoryID); !found {
				out = append(out, model.ValidationError{
					Kind:    model.ErrInvalidReference,
					Path:    "category_id",
					Message: fmt.Sprintf("category %d does not exist", t.CategoryID),
				})
			}
		}
		return result(prior, out)
	}
}

func fieldsStep(known model.KindChecker) Step[model.Type] {
	return func(t model.Type, prior StepState) StepState {
		errs := t.Validate(known)
		var out model.ValidationErrors
		out = append(out, errs.ForPath("fields")...)
		out = append(out, errs.ForPath("render_meta.sections")...)
		if len(t.RenderMeta.Sections) == 0 {
			out = append(out, model.ValidationError{
				Kind:    model.ErrMissingAttribute,
				Path:    "render_meta.sections",
				Message: "at least one section is required",
			})
		}
		return result(prior, out)
	}
}

func metaStep(known model.KindChecker) Step[model.Type] {
	return func(t model.Type, prior StepState) StepState {
		errs := t.Validate(known)
		var out model.ValidationErrors
		out = append(out, errs.ForPath("render_meta.summary")...)
		out = append(out, errs.ForPath("render_meta.externals")...)
		return result(prior, out)
	}
}

func aclStep(t model.Type, prior StepState) StepState {
	return result(prior, validateACL(t))
}

// validateACL checks group keys and restriction targets. Groups unknown to
// the backend are warnings, not errors.
func validateACL(t model.Type) model.ValidationErrors {
	acl := t.ACL
	if acl == nil {
		return nil
	}
	var errs model.ValidationErrors
	if acl.Activated && len(acl.Groups.Includes) == 0 {
		errs = append(errs, model.ValidationError{
			Kind:    model.ErrMissingAttribute,
			Path:    "acl.groups",
			Message: "an activated ACL needs at least one group",
		})
	}
	for _, key := range sortedKeys(acl.Groups.Includes) {
		if id, err := strconv.Atoi(key); err != nil || id <= 0 {
			errs = append(errs, model.ValidationError{
				Kind:    model.ErrInvalidName,
				Path:    "acl.groups.includes." + key,
				Name:    key,
				Message: fmt.Sprintf("group key %q is not a group id", key),
			})
		}
	}
	for _, name := range sortedKeys(acl.Restrictions) {
		_, isField := t.FieldByName(name)
		_, isSection := t.SectionByName(name)
		if !isField && !isSection {
			errs = append(errs, model.ValidationError{
				Kind:    model.ErrDanglingMeta,
				Path:    "acl.restrictions." + name,
				Name:    name,
				Message: fmt.Sprintf("restriction references unknown field or section %q", name),
			})
		}
	}
	return errs
}

func findCategory(nodes []model.CategoryNode, id int) (model.Category, bool) {
	for _, node := range nodes {
		if node.Category.PublicID == id {
			return node.Category, true
		}
		if found, ok := findCategory(node.Children, id); ok {
			return found, true
		}
	}
	return model.Category{}, false
}
