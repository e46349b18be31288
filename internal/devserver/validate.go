package devserver

import (
	"context"

	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// validateObject compiles an edit form over obj and returns the per-path
// messages. A Type that does not compile reports under "type_id".
func (s *Server) validateObject(t model.Type, obj model.Object) map[string][]string {
	compiler := form.NewCompiler(form.WithRegistry(s.registry))
	f, err := compiler.Compile(context.Background(), t, form.ModeEdit, &obj)
	if err != nil {
		return map[string][]string{"type_id": {err.Error()}}
	}
	errs := f.Validate()
	if len(errs) == 0 {
		return nil
	}
	return errs
}
