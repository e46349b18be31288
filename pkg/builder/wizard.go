package builder

import (
	"fmt"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// StepState is the value passed between wizard steps.
type StepState struct {
	Valid  bool                   `json:"valid"`
	Data   any                    `json:"data,omitempty"`
	Errors model.ValidationErrors `json:"errors,omitempty"`
}

// Step evaluates one editing step against the subject and the state it
// produced last time. Steps must not mutate the subject.
type Step[T any] func(T, StepState) StepState

// NamedStep pairs a step with its identifier.
type NamedStep[T any] struct {
	Name string
	Run  Step[T]
}

// Wizard walks an ordered list of steps. Only the current step is
// editable; the subject is persistable once every step reports valid.
type Wizard[T any] struct {
	steps     []NamedStep[T]
	states    []StepState
	evaluated []bool
	current   int
}

// NewWizard returns a wizard positioned on the first step.
func NewWizard[T any](steps ...NamedStep[T]) *Wizard[T] {
	return &Wizard[T]{
		steps:     append([]NamedStep[T](nil), steps...),
		states:    make([]StepState, len(steps)),
		evaluated: make([]bool, len(steps)),
	}
}

// Len returns the number of steps.
func (w *Wizard[T]) Len() int {
	if w == nil {
		return 0
	}
	return len(w.steps)
}

// Steps returns the step names in order.
func (w *Wizard[T]) Steps() []string {
	if w == nil {
		return nil
	}
	names := make([]string, 0, len(w.steps))
	for _, step := range w.steps {
		names = append(names, step.Name)
	}
	return names
}

// Current returns the index and name of the active step.
func (w *Wizard[T]) Current() (int, string) {
	if w == nil || len(w.steps) == 0 {
		return -1, ""
	}
	return w.current, w.steps[w.current].Name
}

// Evaluate runs every step against subject and stores the results.
func (w *Wizard[T]) Evaluate(subject T) []StepState {
	if w == nil {
		return nil
	}
	for i, step := range w.steps {
		w.states[i] = step.Run(subject, w.states[i])
		w.evaluated[i] = true
	}
	return append([]StepState(nil), w.states...)
}

// Seed replaces the stored state of the named step, typically to hand it
// data loaded outside the wizard.
func (w *Wizard[T]) Seed(name string, state StepState) error {
	i := w.index(name)
	if i < 0 {
		return fmt.Errorf("builder: step %q: %w", name, ErrNotFound)
	}
	w.states[i] = state
	return nil
}

// State returns the last state of the named step.
func (w *Wizard[T]) State(name string) (StepState, bool) {
	i := w.index(name)
	if i < 0 {
		return StepState{}, false
	}
	return w.states[i], true
}

// Advance evaluates the current step and moves to the next one when it is
// valid. On the last step it only evaluates.
func (w *Wizard[T]) Advance(subject T) (StepState, error) {
	if w == nil || len(w.steps) == 0 {
		return StepState{}, fmt.Errorf("builder: advance: %w", ErrNotFound)
	}
	step := w.steps[w.current]
	state := step.Run(subject, w.states[w.current])
	w.states[w.current] = state
	w.evaluated[w.current] = true
	if !state.Valid {
		return state, fmt.Errorf("%w: %s", ErrStepInvalid, step.Name)
	}
	if w.current < len(w.steps)-1 {
		w.current++
	}
	return state, nil
}

// Back moves to the previous step. It reports false on the first step.
func (w *Wizard[T]) Back() bool {
	if w == nil || w.current == 0 {
		return false
	}
	w.current--
	return true
}

// Persistable reports whether every step has been evaluated and is valid.
func (w *Wizard[T]) Persistable() bool {
	if w == nil || len(w.steps) == 0 {
		return false
	}
	for i, state := range w.states {
		if !w.evaluated[i] || !state.Valid {
			return false
		}
	}
	return true
}

// Errors collects the errors of every step in step order.
func (w *Wizard[T]) Errors() model.ValidationErrors {
	if w == nil {
		return nil
	}
	var errs model.ValidationErrors
	for _, state := range w.states {
		errs = append(errs, state.Errors...)
	}
	return errs
}

func (w *Wizard[T]) index(name string) int {
	if w == nil {
		return -1
	}
	for i, step := range w.steps {
		if step.Name == name {
			return i
		}
	}
	return -1
}
