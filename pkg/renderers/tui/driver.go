package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// InputConfig asks for the free-text value of one control.
type InputConfig struct {
	// Path is the control path the answer is bound to.
	Path      string
	Message   string
	Default   string
	Help      string
	Secret    bool
	Multiline bool
}

// ConfirmConfig asks a yes/no question.
type ConfirmConfig struct {
	Message string
	Default bool
	Help    string
}

// SelectConfig offers the options of a select, radio or checkbox control.
// Selected holds indices into Options; single selects use the first one as
// their default.
type SelectConfig struct {
	Path     string
	Message  string
	Options  []string
	Selected []int
	Help     string
	PageSize int
}

// RowAction is the next step on a multi-data section.
type RowAction int

const (
	RowsDone RowAction = iota
	RowAdd
	RowRemove
)

// RowChoice answers a RowsConfig prompt. Index is the row to remove.
type RowChoice struct {
	Action RowAction
	Index  int
}

// RowsConfig describes a multi-data section between row edits, one summary
// line per current row.
type RowsConfig struct {
	Section string
	Label   string
	Rows    []string
}

// PromptDriver asks the questions the renderer derives from a form. Scripted
// drivers replace the terminal in tests.
type PromptDriver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
	Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error)
	Select(ctx context.Context, cfg SelectConfig) (int, error)
	MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error)
	Rows(ctx context.Context, cfg RowsConfig) (RowChoice, error)
	Info(ctx context.Context, msg string) error
}

// surveyDriver prompts on the process terminal.
type surveyDriver struct {
	out io.Writer
}

func newSurveyDriver(out io.Writer) PromptDriver {
	if out == nil {
		out = os.Stdout
	}
	return &surveyDriver{out: out}
}

func (d *surveyDriver) ask(ctx context.Context, prompt survey.Prompt, answer any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := survey.AskOne(prompt, answer)
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}

func (d *surveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	var prompt survey.Prompt
	switch {
	case cfg.Secret:
		prompt = &survey.Password{Message: cfg.Message, Help: cfg.Help}
	case cfg.Multiline:
		prompt = &survey.Multiline{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}
	default:
		prompt = &survey.Input{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}
	}
	var answer string
	err := d.ask(ctx, prompt, &answer)
	return answer, err
}

func (d *surveyDriver) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	var answer bool
	err := d.ask(ctx, &survey.Confirm{Message: cfg.Message, Default: cfg.Default, Help: cfg.Help}, &answer)
	return answer, err
}

func (d *surveyDriver) Select(ctx context.Context, cfg SelectConfig) (int, error) {
	prompt := &survey.Select{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help, PageSize: cfg.PageSize}
	if len(cfg.Selected) > 0 && cfg.Selected[0] >= 0 && cfg.Selected[0] < len(cfg.Options) {
		prompt.Default = cfg.Options[cfg.Selected[0]]
	}
	index := -1
	err := d.ask(ctx, prompt, &index)
	return index, err
}

func (d *surveyDriver) MultiSelect(ctx context.Context, cfg SelectConfig) ([]int, error) {
	prompt := &survey.MultiSelect{Message: cfg.Message, Options: cfg.Options, Help: cfg.Help, PageSize: cfg.PageSize}
	if len(cfg.Selected) > 0 {
		var defaults []string
		for _, idx := range cfg.Selected {
			if idx >= 0 && idx < len(cfg.Options) {
				defaults = append(defaults, cfg.Options[idx])
			}
		}
		prompt.Default = defaults
	}
	var indices []int
	err := d.ask(ctx, prompt, &indices)
	return indices, err
}

// Rows offers "Done", "Add a row" and one removal entry per row.
func (d *surveyDriver) Rows(ctx context.Context, cfg RowsConfig) (RowChoice, error) {
	options := []string{"Done", "Add a row"}
	for i, row := range cfg.Rows {
		options = append(options, fmt.Sprintf("Remove row %d: %s", i+1, row))
	}
	index := 0
	if err := d.ask(ctx, &survey.Select{Message: cfg.Label, Options: options}, &index); err != nil {
		return RowChoice{}, err
	}
	switch {
	case index == 1:
		return RowChoice{Action: RowAdd}, nil
	case index >= 2:
		return RowChoice{Action: RowRemove, Index: index - 2}, nil
	default:
		return RowChoice{Action: RowsDone}, nil
	}
}

func (d *surveyDriver) Info(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.out, msg)
	return err
}
