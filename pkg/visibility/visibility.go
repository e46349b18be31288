// Package visibility applies a Type's access control list for one user
// group: which verbs the group holds and which sections and fields it may
// see. A Type without an activated ACL is open to everyone.
package visibility

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// ErrForbidden is returned when a group lacks the permission a mode needs.
var ErrForbidden = errors.New("visibility: permission denied")

// Policy evaluates an access control list.
type Policy struct {
	acl *model.AccessControlList
}

// For returns the policy of t.
func For(t model.Type) Policy {
	return Policy{acl: t.ACL}
}

// Active reports whether the ACL is switched on.
func (p Policy) Active() bool {
	return p.acl != nil && p.acl.Activated
}

// Permissions returns the verbs granted to group.
func (p Policy) Permissions(group int) []model.Permission {
	if !p.Active() {
		return []model.Permission{model.PermissionCreate, model.PermissionRead, model.PermissionUpdate, model.PermissionDelete}
	}
	return append([]model.Permission(nil), p.acl.Groups.Includes[strconv.Itoa(group)]...)
}

// Allows reports whether group holds perm.
func (p Policy) Allows(group int, perm model.Permission) bool {
	for _, granted := range p.Permissions(group) {
		if granted == perm {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless group holds perm.
func (p Policy) Require(group int, perm model.Permission) error {
	if p.Allows(group, perm) {
		return nil
	}
	return fmt.Errorf("%w: group %d lacks %s", ErrForbidden, group, perm)
}

// Visible reports whether group may see the named section or field. Names
// without a restriction are visible to every group.
func (p Policy) Visible(name string, group int) bool {
	if !p.Active() {
		return true
	}
	groups, restricted := p.acl.Restrictions[name]
	if !restricted {
		return true
	}
	for _, allowed := range groups {
		if allowed == group {
			return true
		}
	}
	return false
}

// Filter returns a copy of t without the sections and fields group may not
// see. Hiding a section hides the fields it owns; hiding a field removes it
// from its section and from the summary and link configuration.
func Filter(t model.Type, group int) model.Type {
	policy := For(t)
	if !policy.Active() {
		return t
	}
	out := t.Clone()
	hidden := make(map[string]bool)
	sections := out.RenderMeta.Sections[:0]
	for _, section := range out.RenderMeta.Sections {
		if !policy.Visible(section.Name, group) {
			for _, name := range section.Fields {
				hidden[name] = true
			}
			continue
		}
		kept := section.Fields[:0]
		for _, name := range section.Fields {
			// a reference section keeps its sentinel or it stops validating
			if section.Type != model.SectionReference && !policy.Visible(name, group) {
				hidden[name] = true
				continue
			}
			kept = append(kept, name)
		}
		section.Fields = kept
		sections = append(sections, section)
	}
	out.RenderMeta.Sections = sections

	fields := out.Fields[:0]
	for _, field := range out.Fields {
		if !hidden[field.Name] {
			fields = append(fields, field)
		}
	}
	out.Fields = fields
	out.RenderMeta.Summary.Fields = keep(out.RenderMeta.Summary.Fields, hidden)
	links := out.RenderMeta.External[:0]
	for _, link := range out.RenderMeta.External {
		if len(keep(link.Fields, hidden)) == len(link.Fields) {
			links = append(links, link)
		}
	}
	out.RenderMeta.External = links
	return out
}

func keep(names []string, hidden map[string]bool) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !hidden[name] {
			out = append(out, name)
		}
	}
	return out
}

// Decorator returns a model.Decorator that applies Filter for group.
func Decorator(group int) model.Decorator {
	return model.DecoratorFunc(func(t *model.Type) error {
		*t = Filter(*t, group)
		return nil
	})
}

// OrphanGroups returns the ACL group ids absent from known, sorted. Keys that
// are not numeric are reported as -1 once.
func OrphanGroups(acl *model.AccessControlList, known []model.Group) []int {
	if acl == nil || len(acl.Groups.Includes) == 0 {
		return nil
	}
	present := make(map[int]bool, len(known))
	for _, group := range known {
		present[group.PublicID] = true
	}
	seen := make(map[int]bool)
	var orphans []int
	note := func(id int) {
		if !present[id] && !seen[id] {
			seen[id] = true
			orphans = append(orphans, id)
		}
	}
	for key := range acl.Groups.Includes {
		id, err := strconv.Atoi(key)
		if err != nil {
			id = -1
		}
		note(id)
	}
	for _, groups := range acl.Restrictions {
		for _, id := range groups {
			note(id)
		}
	}
	sort.Ints(orphans)
	return orphans
}
