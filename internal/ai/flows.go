// Package ai implements the two templated text flows offered to patients:
// a plain-language condition summary and exercise suggestions for a pain
// description.
package ai

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"clinic-backend-go/internal/models"
)

// UnavailableMessage is shown to users whenever a flow cannot produce a result.
const UnavailableMessage = "The AI service is unavailable right now, please try again later."

// ErrAIUnavailable is the only error a caller sees when the model call fails.
var ErrAIUnavailable = errors.New("ai service unavailable")

// Generator asks a language model for a JSON object with a single string
// field and returns that field's value.
type Generator interface {
	GenerateField(ctx context.Context, prompt string, field OutputField) (string, error)
}

// OutputField describes the single string field the model must return.
type OutputField struct {
	Name        string
	Description string
}

type ConditionSummaryInput struct {
	ConditionName string `json:"conditionName" validate:"required,min=3"`
}

type ConditionSummaryOutput struct {
	Summary string `json:"summary"`
}

type ExerciseSuggestionInput struct {
	PainDescription string `json:"painDescription" validate:"required,min=10"`
}

type ExerciseSuggestionOutput struct {
	SuggestedExercises string `json:"suggestedExercises"`
}

var (
	summaryField  = OutputField{Name: "summary", Description: "A concise, patient-friendly summary of the condition."}
	exerciseField = OutputField{Name: "suggestedExercises", Description: "Suggested exercises, one per line, with brief instructions."}
)

var validate = validator.New()

// Flows runs the AI flows against a Generator.
type Flows struct {
	gen    Generator
	logger *zap.Logger
}

// NewFlows creates the flows. A nil generator makes every call return ErrAIUnavailable.
func NewFlows(gen Generator, logger *zap.Logger) *Flows {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flows{gen: gen, logger: logger}
}

// SummarizeCondition explains a condition in plain language.
func (f *Flows) SummarizeCondition(ctx context.Context, in ConditionSummaryInput) (*ConditionSummaryOutput, error) {
	in.ConditionName = strings.TrimSpace(in.ConditionName)
	if err := checkInput("summarizeCondition", in); err != nil {
		return nil, err
	}
	text, err := f.run(ctx, "summarizeCondition", summarizeConditionPrompt, in, summaryField)
	if err != nil {
		return nil, err
	}
	return &ConditionSummaryOutput{Summary: text}, nil
}

// SuggestExercise proposes gentle exercises for a pain description.
func (f *Flows) SuggestExercise(ctx context.Context, in ExerciseSuggestionInput) (*ExerciseSuggestionOutput, error) {
	in.PainDescription = strings.TrimSpace(in.PainDescription)
	if err := checkInput("suggestExercise", in); err != nil {
		return nil, err
	}
	text, err := f.run(ctx, "suggestExercise", suggestExercisePrompt, in, exerciseField)
	if err != nil {
		return nil, err
	}
	return &ExerciseSuggestionOutput{SuggestedExercises: text}, nil
}

func (f *Flows) run(ctx context.Context, flow string, tmpl *template.Template, in interface{}, field OutputField) (string, error) {
	if f.gen == nil {
		f.logger.Warn("AI flow called without a configured model", zap.String("flow", flow))
		return "", ErrAIUnavailable
	}
	var prompt bytes.Buffer
	if err := tmpl.Execute(&prompt, in); err != nil {
		f.logger.Error("Failed to render AI prompt", zap.String("flow", flow), zap.Error(err))
		return "", ErrAIUnavailable
	}
	text, err := f.gen.GenerateField(ctx, prompt.String(), field)
	if err != nil {
		f.logger.Error("AI flow failed", zap.String("flow", flow), zap.Error(err))
		return "", ErrAIUnavailable
	}
	return text, nil
}

func checkInput(flow string, in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &models.ValidationError{Kind: models.Kind(flow), Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out.Fields[jsonName(fe.Field())] = msg
	}
	return out
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
