package builder

import (
	"errors"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

var (
	// ErrDropRejected is returned for drops whose effect is neither copy nor
	// move, or whose source or target cannot take part in the drop.
	ErrDropRejected = errors.New("builder: drop rejected")
	// ErrInvalidKind reports an unregistered field kind or unknown section kind.
	ErrInvalidKind = errors.New("builder: invalid kind")
	// ErrSectionLocked reports a change to the sentinel field of a reference
	// section made outside SetReferenceSection and RemoveSection.
	ErrSectionLocked = errors.New("builder: reference section is locked")
	// ErrUnknownCategory reports a category id missing from the category tree.
	ErrUnknownCategory = errors.New("builder: unknown category")
	// ErrNotPersistable is returned by Save while a wizard step is invalid.
	ErrNotPersistable = errors.New("builder: type is not persistable")
	// ErrNoBackend is returned by operations that need a Backend.
	ErrNoBackend = errors.New("builder: no backend configured")
	// ErrStepInvalid is returned by Advance when the current step is invalid.
	ErrStepInvalid = errors.New("builder: step is invalid")
	// ErrInvalidName reports an empty, unsafe or already used identifier.
	ErrInvalidName = errors.New("builder: invalid name")
	// ErrInvalidReference reports an incomplete reference target or a link
	// template whose placeholders do not match its fields.
	ErrInvalidReference = errors.New("builder: invalid reference")

	ErrNotFound = model.ErrNotFound
)

// FieldError is a persistence failure attributed to one Type attribute,
// typically a name conflict detected by the server.
type FieldError struct {
	Field    string
	Messages []string
	Err      error
}

func (e *FieldError) Error() string {
	if e == nil {
		return "builder: <nil>"
	}
	msg := "builder: " + e.Field
	if len(e.Messages) > 0 {
		msg += ": " + strings.Join(e.Messages, "; ")
	}
	return msg
}

func (e *FieldError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError is implemented by transport errors carrying the HTTP status
// and the decoded error payload of a failed request.
type StatusError interface {
	error
	StatusCode() int
	FieldErrors() map[string][]string
}

// Warning is a non-blocking problem found while loading a Type.
type Warning struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Groups  []int  `json:"groups,omitempty"`
}
