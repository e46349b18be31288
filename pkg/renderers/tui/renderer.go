// Package tui fills compiled forms interactively in a terminal. Prompts go
// through a PromptDriver so flows can be scripted in tests.
package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/form"
	"github.com/goliatone/go-cmdbform/pkg/model"
	"github.com/goliatone/go-cmdbform/pkg/render"
)

// Renderer implements render.Renderer for terminal sessions. Create, edit
// and bulk forms are filled and submitted; view and simple forms are
// printed.
type Renderer struct {
	driver            PromptDriver
	out               io.Writer
	outputFormat      OutputFormat
	submitTransformer SubmitTransformer
	theme             Theme
	maxAttempts       int
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) (*Renderer, error) {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	if r.driver == nil {
		r.driver = newSurveyDriver(r.out)
	}
	return r, nil
}

// Name reports the renderer identifier.
func (r *Renderer) Name() string {
	return "tui"
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatPrettyText {
		return "text/plain"
	}
	return "application/json"
}

// Render prompts for every enabled control of f and returns the serialized
// submission. Server errors in opts are shown next to their control before
// it is prompted.
func (r *Renderer) Render(ctx context.Context, f *form.Form, opts render.RenderOptions) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("tui: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.New("tui: form is required")
	}
	if r.driver == nil {
		return nil, errors.New("tui: prompt driver is nil")
	}

	for _, message := range opts.FormErrors {
		r.errorf(ctx, "%s", message)
	}
	if f.Mode().ReadOnly() {
		return r.show(ctx, f, opts)
	}

	for _, section := range f.Sections() {
		if err := r.promptSection(ctx, f, section, opts); err != nil {
			return nil, err
		}
	}

	sub, err := f.Submit()
	if err != nil {
		return nil, fmt.Errorf("tui: submit: %w", err)
	}
	if r.submitTransformer != nil {
		sub, err = r.submitTransformer(sub)
		if err != nil {
			return nil, fmt.Errorf("tui: submit transformer: %w", err)
		}
	}
	if r.outputFormat == OutputFormatPrettyText {
		return prettyControls(f.Controls()), nil
	}
	return jsonBytes(sub)
}

func (r *Renderer) promptSection(ctx context.Context, f *form.Form, section *form.SectionInstance, opts render.RenderOptions) error {
	if section.Unavailable() {
		r.infof(ctx, "%s: %s", section.Label, section.Placeholder.Text)
		return nil
	}
	r.infof(ctx, "%s", section.Label)

	switch {
	case section.Reference != nil:
		return r.promptReference(ctx, f, section, opts)
	case section.Kind == model.SectionMultiData:
		return r.promptRows(ctx, f, section, opts)
	default:
		for _, control := range section.Controls {
			if err := r.promptControl(ctx, f, control, opts); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *Renderer) promptRows(ctx context.Context, f *form.Form, section *form.SectionInstance, opts render.RenderOptions) error {
	if !section.CanAddRow(f.Mode()) {
		return nil
	}
	for _, row := range section.Rows {
		if err := r.promptRow(ctx, f, row, opts); err != nil {
			return err
		}
	}
	for {
		choice, err := r.driver.Rows(ctx, RowsConfig{Section: section.Name, Label: section.Label, Rows: rowSummaries(section)})
		if err != nil {
			return err
		}
		switch choice.Action {
		case RowAdd:
			index, err := f.AddRow(section.Name)
			if err != nil {
				return err
			}
			if err := r.promptRow(ctx, f, section.Rows[index], opts); err != nil {
				return err
			}
		case RowRemove:
			if err := f.RemoveRow(section.Name, choice.Index); err != nil {
				r.errorf(ctx, "Invalid row of %s: %v", section.Label, err)
			}
		default:
			return nil
		}
	}
}

func (r *Renderer) promptRow(ctx context.Context, f *form.Form, row *form.Row, opts render.RenderOptions) error {
	for _, control := range row.Controls {
		if err := r.promptControl(ctx, f, control, opts); err != nil {
			return err
		}
	}
	return nil
}

func rowSummaries(section *form.SectionInstance) []string {
	out := make([]string, 0, len(section.Rows))
	for _, row := range section.Rows {
		parts := make([]string, 0, len(row.Controls))
		for _, control := range row.Controls {
			if control.Text != "" {
				parts = append(parts, control.Text)
			}
		}
		out = append(out, strings.Join(parts, ", "))
	}
	return out
}

func (r *Renderer) promptReference(ctx context.Context, f *form.Form, section *form.SectionInstance, opts render.RenderOptions) error {
	ref := section.Reference
	selector := ref.Selector
	if !selector.Disabled && r.wantsChange(ctx, f, selector) {
		if err := r.promptSelector(ctx, f, section.Name, selector, opts); err != nil {
			return err
		}
	}
	for _, control := range ref.Controls {
		if control.Disabled {
			r.infof(ctx, "  %s: %s", control.Label, control.Text)
			continue
		}
		if err := r.promptControl(ctx, f, control, opts); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) promptSelector(ctx context.Context, f *form.Form, section string, selector *form.Control, opts render.RenderOptions) error {
	r.showErrors(ctx, selector, opts)
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		answer, err := r.driver.Input(ctx, InputConfig{
			Path:    selector.Path,
			Message: message(selector) + " (object id)",
			Default: defaultText(selector),
			Help:    help(selector),
		})
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" && !selector.Required {
			return nil
		}
		id, err := strconv.Atoi(answer)
		if err != nil || id <= 0 {
			r.errorf(ctx, "Invalid %s: must reference an object id", selector.Label)
			continue
		}
		if err := f.SelectReference(ctx, section, id); err != nil {
			r.errorf(ctx, "Invalid %s: %v", selector.Label, err)
			continue
		}
		if display := selector.Reference; display != nil && display.Summary != "" {
			r.infof(ctx, "  %s", display.Summary)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTooManyAttempts, selector.Path)
}

func (r *Renderer) promptControl(ctx context.Context, f *form.Form, control *form.Control, opts render.RenderOptions) error {
	if control.Disabled || control.Unavailable {
		return nil
	}
	r.showErrors(ctx, control, opts)
	if !r.wantsChange(ctx, f, control) {
		return nil
	}
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		value, err := r.ask(ctx, control)
		if err != nil {
			return err
		}
		if err := f.Set(control.Path, value); err != nil {
			return err
		}
		messages := f.Validate()[control.Path]
		if len(messages) == 0 {
			return nil
		}
		r.errorf(ctx, "Invalid %s: %s", control.Label, strings.Join(messages, ", "))
	}
	return fmt.Errorf("%w: %s", ErrTooManyAttempts, control.Path)
}

// wantsChange asks bulk users whether a control enters the change set.
func (r *Renderer) wantsChange(ctx context.Context, f *form.Form, control *form.Control) bool {
	if f.Mode() != form.ModeBulk {
		return true
	}
	change, err := r.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Change %s for every selected object?", control.Label)})
	return err == nil && change
}

func (r *Renderer) ask(ctx context.Context, control *form.Control) (any, error) {
	cfg := InputConfig{
		Path:    control.Path,
		Message: message(control),
		Default: defaultText(control),
		Help:    help(control),
	}
	field := control.Field

	switch control.Kind {
	case model.FieldPassword:
		cfg.Default = ""
		cfg.Secret = true
		answer, err := r.driver.Input(ctx, cfg)
		return optionalString(answer), err
	case model.FieldTextarea:
		cfg.Multiline = true
		answer, err := r.driver.Input(ctx, cfg)
		return optionalString(answer), err
	case model.FieldCheckbox:
		if len(field.Options) == 0 {
			current, _ := fieldtypes.Bool(control.Value)
			answer, err := r.driver.Confirm(ctx, ConfirmConfig{Message: cfg.Message, Default: current, Help: cfg.Help})
			if err != nil {
				return nil, err
			}
			return answer, nil
		}
		selected, _ := fieldtypes.Strings(control.Value)
		indices, err := r.driver.MultiSelect(ctx, SelectConfig{
			Path:     control.Path,
			Message:  cfg.Message,
			Options:  optionLabels(field),
			Selected: optionIndices(field, selected),
			Help:     cfg.Help,
		})
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(field.Options) {
				names = append(names, field.Options[idx].Name)
			}
		}
		return names, nil
	case model.FieldSelect, model.FieldRadio:
		current, _ := fieldtypes.Strings(control.Value)
		idx, err := r.driver.Select(ctx, SelectConfig{
			Path:     control.Path,
			Message:  cfg.Message,
			Options:  optionLabels(field),
			Selected: optionIndices(field, current),
			Help:     cfg.Help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(field.Options) {
			return nil, nil
		}
		return field.Options[idx].Name, nil
	}

	answer, err := r.driver.Input(ctx, cfg)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, nil
	}
	switch control.Kind {
	case model.FieldNumber:
		if n, err := strconv.ParseFloat(answer, 64); err == nil {
			return n, nil
		}
	case model.FieldRef:
		if id, err := strconv.Atoi(answer); err == nil {
			return id, nil
		}
	case model.FieldLocation:
		if loc, ok := parseLocation(answer); ok {
			return loc, nil
		}
	}
	// unparsed answers are bound as typed so the kind validator reports them
	return answer, nil
}

func (r *Renderer) show(ctx context.Context, f *form.Form, opts render.RenderOptions) ([]byte, error) {
	result := f.Result()
	render.ApplySubset(&result, opts.Subset)
	for _, field := range result.Fields {
		r.infof(ctx, "%s: %s", field.Label, field.Text)
	}
	if r.outputFormat == OutputFormatPrettyText {
		var buf bytes.Buffer
		for _, field := range result.Fields {
			fmt.Fprintf(&buf, "%s: %s\n", field.Label, field.Text)
		}
		return buf.Bytes(), nil
	}
	return jsonBytes(result)
}

func (r *Renderer) showErrors(ctx context.Context, control *form.Control, opts render.RenderOptions) {
	for _, message := range opts.Errors[control.Path] {
		r.errorf(ctx, "%s: %s", control.Label, message)
	}
}

func (r *Renderer) infof(ctx context.Context, format string, args ...any) {
	_ = r.driver.Info(ctx, r.theme.InfoPrefix+fmt.Sprintf(format, args...))
}

func (r *Renderer) errorf(ctx context.Context, format string, args ...any) {
	_ = r.driver.Info(ctx, r.theme.ErrorPrefix+fmt.Sprintf(format, args...))
}

func message(control *form.Control) string {
	if control.Required {
		return control.Label + " *"
	}
	return control.Label
}

func help(control *form.Control) string {
	if control.Field.Helper != "" {
		return control.Field.Helper
	}
	return control.Field.Description
}

func defaultText(control *form.Control) string {
	if fieldtypes.IsEmpty(control.Value) {
		return ""
	}
	return fieldtypes.Text(control.Value)
}

func optionalString(answer string) any {
	if strings.TrimSpace(answer) == "" {
		return nil
	}
	return answer
}

func optionLabels(field model.Field) []string {
	out := make([]string, 0, len(field.Options))
	for _, option := range field.Options {
		if option.Label != "" {
			out = append(out, option.Label)
			continue
		}
		out = append(out, option.Name)
	}
	return out
}

func optionIndices(field model.Field, names []string) []int {
	var out []int
	for i, option := range field.Options {
		for _, name := range names {
			if option.Name == name {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

func parseLocation(answer string) (map[string]any, bool) {
	parts := strings.Split(answer, ",")
	if len(parts) != 2 {
		return nil, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return nil, false
	}
	return map[string]any{"lat": lat, "lng": lng}, true
}

func prettyControls(controls []*form.Control) []byte {
	var buf bytes.Buffer
	for _, control := range controls {
		if control.Unavailable {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\n", control.Label, control.Text)
	}
	return buf.Bytes()
}

func jsonBytes(value any) ([]byte, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("tui: encode: %w", err)
	}
	return data, nil
}
