package fieldtypes

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

func builtins() []Capability {
	return []Capability{
		{
			Kind:         model.FieldText,
			RenderFull:   inputControl("text"),
			RenderSimple: simpleText,
			Validators:   []Validator{validateString},
			Sanitize:     sanitizeText,
		},
		{
			Kind:         model.FieldPassword,
			RenderFull:   inputControl("password"),
			RenderSimple: simplePassword,
			Validators:   []Validator{validateString},
		},
		{
			Kind:         model.FieldEmail,
			RenderFull:   inputControl("email"),
			RenderSimple: simpleText,
			Validators:   []Validator{validateString, validateEmail},
			Sanitize:     sanitizeText,
		},
		{
			Kind:         model.FieldPhone,
			RenderFull:   inputControl("tel"),
			RenderSimple: simpleText,
			Validators:   []Validator{validateString, validatePhone},
			Sanitize:     sanitizeText,
		},
		{
			Kind:         model.FieldTextarea,
			RenderFull:   inputControl(""),
			RenderSimple: simpleTextarea,
			Validators:   []Validator{validateString},
			Sanitize:     sanitizeRich,
		},
		{
			Kind:         model.FieldHref,
			RenderFull:   inputControl("url"),
			RenderSimple: simpleText,
			Validators:   []Validator{validateString, validateHref},
			Sanitize:     sanitizeText,
		},
		{
			Kind:         model.FieldCheckbox,
			RenderFull:   optionControl,
			RenderSimple: simpleCheckbox,
			Validators:   []Validator{validateCheckbox},
		},
		{
			Kind:         model.FieldRadio,
			RenderFull:   optionControl,
			RenderSimple: simpleOption,
			Validators:   []Validator{validateOption},
		},
		{
			Kind:         model.FieldSelect,
			RenderFull:   optionControl,
			RenderSimple: simpleOption,
			Validators:   []Validator{validateOption},
		},
		{
			Kind:         model.FieldDate,
			RenderFull:   inputControl("date"),
			RenderSimple: simpleDate,
			Validators:   []Validator{validateDate},
		},
		{
			Kind:         model.FieldNumber,
			RenderFull:   inputControl("number"),
			RenderSimple: simpleNumber,
			Validators:   []Validator{validateNumber},
		},
		{
			Kind:         model.FieldLocation,
			RenderFull:   inputControl(""),
			RenderSimple: simpleLocation,
			Validators:   []Validator{validateLocation},
		},
		{
			Kind: model.FieldRef,
			RenderFull: func(field model.Field, value any) Control {
				control := inputControl("")(field, value)
				control.RefTypes = append([]int(nil), field.RefTypes...)
				if field.Reference != nil && field.Reference.TypeID > 0 && len(control.RefTypes) == 0 {
					control.RefTypes = []int{field.Reference.TypeID}
				}
				return control
			},
			RenderSimple: simpleRef,
			Validators:   []Validator{validateRef},
		},
	}
}

func inputControl(inputType string) func(model.Field, any) Control {
	return func(field model.Field, _ any) Control {
		return Control{
			InputType:   inputType,
			Placeholder: field.Placeholder,
			Helper:      field.Helper,
			Pattern:     field.Regex,
			Min:         field.Min,
			Max:         field.Max,
		}
	}
}

func optionControl(field model.Field, value any) Control {
	control := inputControl("")(field, value)
	control.Options = append([]model.Option(nil), field.Options...)
	control.Multiple = field.Type == model.FieldCheckbox && len(field.Options) > 0
	return control
}

func simpleText(_ model.Field, value any) string {
	return strings.TrimSpace(Text(value))
}

func simplePassword(_ model.Field, value any) string {
	if IsEmpty(value) {
		return ""
	}
	return "********"
}

const simpleTextareaLimit = 80

func simpleTextarea(field model.Field, value any) string {
	text := strings.Join(strings.Fields(sanitizeString(Text(value))), " ")
	if runes := []rune(text); len(runes) > simpleTextareaLimit {
		return string(runes[:simpleTextareaLimit-3]) + "..."
	}
	return text
}

func simpleCheckbox(field model.Field, value any) string {
	if len(field.Options) > 0 {
		return simpleOption(field, value)
	}
	if b, ok := Bool(value); ok {
		if b {
			return "yes"
		}
		return "no"
	}
	return ""
}

func simpleOption(field model.Field, value any) string {
	names, ok := Strings(value)
	if !ok {
		return Text(value)
	}
	labels := make([]string, 0, len(names))
	for _, name := range names {
		labels = append(labels, optionLabel(field, name))
	}
	return strings.Join(labels, ", ")
}

func optionLabel(field model.Field, name string) string {
	for _, option := range field.Options {
		if option.Name == name {
			if option.Label != "" {
				return option.Label
			}
			return option.Name
		}
	}
	return name
}

func simpleDate(_ model.Field, value any) string {
	if t, ok := Date(value); ok {
		return t.Format("2006-01-02")
	}
	return Text(value)
}

func simpleNumber(_ model.Field, value any) string {
	if f, ok := Number(value); ok {
		return Text(f)
	}
	return Text(value)
}

func simpleLocation(_ model.Field, value any) string {
	if loc, ok := ParseLocation(value); ok {
		return fmt.Sprintf("%s, %s", Text(loc.Lat), Text(loc.Lng))
	}
	return ""
}

func simpleRef(_ model.Field, value any) string {
	if id, ok := ID(value); ok {
		return fmt.Sprintf("#%d", id)
	}
	return ""
}

func validateString(_ model.Field, value any) error {
	if _, ok := value.(string); !ok {
		return errors.New("must be text")
	}
	return nil
}

func validateEmail(_ model.Field, value any) error {
	s, _ := value.(string)
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || addr.Name != "" {
		return errors.New("must be a valid email address")
	}
	return nil
}

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-./]{3,}$`)

func validatePhone(_ model.Field, value any) error {
	s, _ := value.(string)
	if !phonePattern.MatchString(strings.TrimSpace(s)) {
		return errors.New("must be a valid phone number")
	}
	return nil
}

func validateHref(_ model.Field, value any) error {
	s, _ := value.(string)
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	return nil
}

func validateCheckbox(field model.Field, value any) error {
	if len(field.Options) > 0 {
		return validateOption(field, value)
	}
	if _, ok := Bool(value); !ok {
		return errors.New("must be true or false")
	}
	return nil
}

func validateOption(field model.Field, value any) error {
	names, ok := Strings(value)
	if !ok {
		return errors.New("must be one of the listed options")
	}
	if len(names) > 1 && field.Type != model.FieldCheckbox {
		return errors.New("only one option may be chosen")
	}
	for _, name := range names {
		found := false
		for _, option := range field.Options {
			if option.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q is not one of the listed options", name)
		}
	}
	return nil
}

func validateDate(_ model.Field, value any) error {
	if _, ok := Date(value); !ok {
		return errors.New("must be a date (YYYY-MM-DD)")
	}
	return nil
}

func validateNumber(field model.Field, value any) error {
	f, ok := Number(value)
	if !ok {
		return errors.New("must be a number")
	}
	if field.Min != nil && f < *field.Min {
		return fmt.Errorf("must be at least %s", Text(*field.Min))
	}
	if field.Max != nil && f > *field.Max {
		return fmt.Errorf("must be at most %s", Text(*field.Max))
	}
	return nil
}

func validateLocation(_ model.Field, value any) error {
	loc, ok := ParseLocation(value)
	if !ok {
		return errors.New("must be a location with lat and lng")
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return errors.New("location is out of range")
	}
	return nil
}

func validateRef(_ model.Field, value any) error {
	if _, ok := ID(value); !ok {
		return errors.New("must reference an object id")
	}
	return nil
}

func matchPattern(field model.Field, value any) error {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	pattern, err := regexp.Compile(field.Regex)
	if err != nil {
		return fmt.Errorf("pattern %q is invalid", field.Regex)
	}
	if !pattern.MatchString(s) {
		return fmt.Errorf("must match %s", field.Regex)
	}
	return nil
}
