package builder

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Export job wizard step names.
const (
	StepJobBasic        = "basic"
	StepJobSources      = "sources"
	StepJobScheduling   = "scheduling"
	StepJobDestinations = "destinations"
)

// ExportJob is the schema of an export job: which Types to read, how to
// map their fields, when to run and where to send the result.
type ExportJob struct {
	PublicID     int              `json:"public_id"`
	Name         string           `json:"name"`
	Label        string           `json:"label"`
	Description  string           `json:"description,omitempty"`
	Active       bool             `json:"active"`
	Sources      []JobSource      `json:"sources"`
	Fields       []JobField       `json:"fields"`
	Scheduling   JobScheduling    `json:"scheduling"`
	Destinations []JobDestination `json:"destination"`
}

// JobSource selects the objects of one Type, optionally filtered.
type JobSource struct {
	TypeID    int    `json:"type_id"`
	Condition string `json:"condition,omitempty"`
}

// JobField maps an export column to an object value template.
type JobField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// JobScheduling triggers the job on object events, on a cron schedule or
// both.
type JobScheduling struct {
	Event bool   `json:"event"`
	Cron  string `json:"cron,omitempty"`
}

// JobDestination names an external system and its parameter values.
type JobDestination struct {
	ExternalSystem string         `json:"className"`
	Parameters     []JobParameter `json:"parameter,omitempty"`
}

// JobParameter is one parameter value of a destination.
type JobParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SystemCatalog lists the parameters of each known external system.
type SystemCatalog map[string][]model.ExternalSystemParameter

// JobSteps returns the Basic, Sources/Fields, Scheduling and Destinations
// steps. A nil catalog skips the external system checks.
func JobSteps(catalog SystemCatalog) []NamedStep[ExportJob] {
	return []NamedStep[ExportJob]{
		{Name: StepJobBasic, Run: jobBasicStep},
		{Name: StepJobSources, Run: jobSourcesStep},
		{Name: StepJobScheduling, Run: jobSchedulingStep},
		{Name: StepJobDestinations, Run: jobDestinationsStep(catalog)},
	}
}

// NewJobWizard returns a wizard over JobSteps.
func NewJobWizard(catalog SystemCatalog) *Wizard[ExportJob] {
	return NewWizard(JobSteps(catalog)...)
}

type errorList struct {
	errs model.ValidationErrors
}

func (l *errorList) add(kind model.ErrorKind, path, name, format string, args ...any) {
	l.errs = append(l.errs, model.ValidationError{Kind: kind, Path: path, Name: name, Message: fmt.Sprintf(format, args...)})
}

func jobBasicStep(job ExportJob, prior StepState) StepState {
	var l errorList
	switch {
	case strings.TrimSpace(job.Name) == "":
		l.add(model.ErrMissingAttribute, "name", "", "name is required")
	case !model.ValidName(job.Name):
		l.add(model.ErrInvalidName, "name", job.Name, "name %q must be URL-safe", job.Name)
	}
	if strings.TrimSpace(job.Label) == "" {
		l.add(model.ErrMissingAttribute, "label", "", "label is required")
	}
	return result(prior, l.errs)
}

func jobSourcesStep(job ExportJob, prior StepState) StepState {
	var l errorList
	if len(job.Sources) == 0 {
		l.add(model.ErrMissingAttribute, "sources", "", "at least one source type is required")
	}
	seenTypes := make(map[int]bool, len(job.Sources))
	for i, source := range job.Sources {
		path := fmt.Sprintf("sources.%d", i)
		if source.TypeID <= 0 {
			l.add(model.ErrInvalidReference, path, "", "source needs a type id")
			continue
		}
		if seenTypes[source.TypeID] {
			l.add(model.ErrDuplicateSection, path, "", "type %d is selected more than once", source.TypeID)
		}
		seenTypes[source.TypeID] = true
	}
	if len(job.Fields) == 0 {
		l.add(model.ErrMissingAttribute, "fields", "", "at least one field mapping is required")
	}
	seenFields := make(map[string]bool, len(job.Fields))
	for i, field := range job.Fields {
		path := fmt.Sprintf("fields.%d", i)
		name := strings.TrimSpace(field.Name)
		if name == "" {
			l.add(model.ErrMissingAttribute, path, "", "field name is required")
			continue
		}
		if seenFields[name] {
			l.add(model.ErrDuplicateField, path, name, "field %q is mapped more than once", name)
		}
		seenFields[name] = true
	}
	return result(prior, l.errs)
}

var cronToken = regexp.MustCompile(`^(\*|\d+(-\d+)?)(/\d+)?(,(\*|\d+(-\d+)?)(/\d+)?)*$`)

func jobSchedulingStep(job ExportJob, prior StepState) StepState {
	var l errorList
	cron := strings.TrimSpace(job.Scheduling.Cron)
	if cron != "" {
		tokens := strings.Fields(cron)
		if len(tokens) != 5 {
			l.add(model.ErrInvalidName, "scheduling.cron", cron, "cron expression needs 5 fields, got %d", len(tokens))
		} else {
			for _, token := range tokens {
				if !cronToken.MatchString(token) {
					l.add(model.ErrInvalidName, "scheduling.cron", cron, "invalid cron field %q", token)
				}
			}
		}
	}
	return result(prior, l.errs)
}

func jobDestinationsStep(catalog SystemCatalog) Step[ExportJob] {
	return func(job ExportJob, prior StepState) StepState {
		var l errorList
		if len(job.Destinations) == 0 {
			l.add(model.ErrMissingAttribute, "destination", "", "at least one destination is required")
		}
		for i, dest := range job.Destinations {
			path := fmt.Sprintf("destination.%d", i)
			if strings.TrimSpace(dest.ExternalSystem) == "" {
				l.add(model.ErrMissingAttribute, path, "", "destination needs an external system")
				continue
			}
			if catalog == nil {
				continue
			}
			params, ok := catalog[dest.ExternalSystem]
			if !ok {
				l.add(model.ErrInvalidReference, path, dest.ExternalSystem, "unknown external system %q", dest.ExternalSystem)
				continue
			}
			given := make(map[string]string, len(dest.Parameters))
			for _, p := range dest.Parameters {
				given[p.Name] = p.Value
			}
			for _, p := range params {
				if p.Required && strings.TrimSpace(given[p.Name]) == "" {
					l.add(model.ErrMissingAttribute, path+".parameter."+p.Name, p.Name, "parameter %q is required", p.Name)
				}
			}
		}
		return result(prior, l.errs)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
