package builder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/render"
	"github.com/goliatone/go-cmdbform/pkg/visibility"
)

// Load replaces the session Type with Type id from the backend. ACL groups
// unknown to the backend become warnings; when the group list cannot be
// loaded only the ACL step is degraded.
func (s *Session) Load(ctx context.Context, id int) (model.Type, error) {
	if s.backend == nil {
		return model.Type{}, ErrNoBackend
	}
	t, err := s.backend.GetType(ctx, id)
	if err != nil {
		return model.Type{}, fmt.Errorf("builder: load type %d: %w", id, err)
	}
	groups, groupErr := s.backend.ListGroups(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.typ = t.Clone()
	s.warnings = nil

	data := ACLData{Groups: groups}
	switch {
	case groupErr != nil:
		data = ACLData{Degraded: true}
		s.warn(Warning{Step: StepACL, Message: fmt.Sprintf("groups unavailable: %v", groupErr)})
	default:
		if orphans := visibility.OrphanGroups(t.ACL, groups); len(orphans) > 0 {
			s.warn(Warning{Step: StepACL, Message: fmt.Sprintf("acl references unknown groups %v", orphans), Groups: orphans})
		}
	}
	state, _ := s.wizard.State(StepACL)
	state.Data = data
	_ = s.wizard.Seed(StepACL, state)
	s.wizard.Evaluate(s.typ)
	return s.typ.Clone(), nil
}

func (s *Session) warn(w Warning) {
	s.warnings = append(s.warnings, w)
	s.logger.Warnf("builder: type %d: %s step: %s", s.typ.PublicID, w.Step, w.Message)
}

// LoadCategories fetches the category tree used by SetCategory.
func (s *Session) LoadCategories(ctx context.Context) ([]model.CategoryNode, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	tree, err := s.backend.CategoryTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("builder: load categories: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, _ := s.wizard.State(StepBasic)
	state.Data = BasicData{Categories: tree}
	_ = s.wizard.Seed(StepBasic, state)
	s.wizard.Evaluate(s.typ)
	return tree, nil
}

// Save creates or updates the Type. A name conflict reported by the server
// is returned as a *FieldError on "name". Save does not retry.
func (s *Session) Save(ctx context.Context) (model.Type, error) {
	if s.backend == nil {
		return model.Type{}, ErrNoBackend
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wizard.Evaluate(s.typ)
	if !s.wizard.Persistable() {
		return model.Type{}, fmt.Errorf("%w: %w", ErrNotPersistable, s.wizard.Errors())
	}

	var (
		saved model.Type
		err   error
	)
	t := s.typ.Clone()
	if t.PublicID == 0 {
		saved, err = s.backend.CreateType(ctx, t)
	} else {
		saved, err = s.backend.UpdateType(ctx, t)
	}
	if err != nil {
		return model.Type{}, saveError(t, err)
	}
	s.typ = saved.Clone()
	s.wizard.Evaluate(s.typ)
	s.logger.Infof("builder: saved type %d %q", saved.PublicID, saved.Name)
	return saved, nil
}

func saveError(t model.Type, err error) error {
	var status StatusError
	if errors.As(err, &status) {
		mapping := render.MapErrorPayload(render.TypePaths(t), status.FieldErrors())
		messages := mapping.For("name")
		if len(messages) == 0 && status.StatusCode() == http.StatusConflict {
			messages = mapping.Form
			if len(messages) == 0 {
				messages = []string{fmt.Sprintf("a type named %q already exists", t.Name)}
			}
		}
		if len(messages) > 0 {
			return &FieldError{Field: "name", Messages: messages, Err: err}
		}
	}
	return fmt.Errorf("builder: save: %w", err)
}

// CheckName schedules a debounced availability check of the current Type
// name. A later call cancels the pending one.
func (s *Session) CheckName(ctx context.Context) <-chan NameStatus {
	t := s.Type()
	return s.names.Check(ctx, t.Name, t.PublicID)
}
