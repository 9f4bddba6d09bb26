// Package wizard models the preference intake flow as a declarative
// question list. Each question owns its JSON Schema and a visibility
// predicate over earlier answers; validation and label derivation only
// ever consider visible questions.
package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	apperrors "signup-gateway/internal/common/errors"
)

// Answers maps question ID to the raw answer payload.
type Answers map[string]json.RawMessage

// Question is one wizard step. Schema validates the answer payload;
// VisibleWhen gates the step on earlier answers (nil means always
// visible); Labels derives preference labels from a valid answer.
type Question struct {
	ID          string
	Prompt      string
	Required    bool
	Schema      string
	VisibleWhen func(Answers) bool
	Labels      func(json.RawMessage) []string

	compiled *gojsonschema.Schema
}

// Flow is an ordered, compiled question list.
type Flow struct {
	questions []*Question
}

// NewFlow compiles every question schema up front so schema errors surface
// at startup, not mid-session.
func NewFlow(questions []*Question) (*Flow, error) {
	for _, q := range questions {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(q.Schema))
		if err != nil {
			return nil, fmt.Errorf("compile schema for question %q: %w", q.ID, err)
		}
		q.compiled = schema
	}
	return &Flow{questions: questions}, nil
}

// Visible returns the questions currently shown given the answers so far,
// in flow order.
func (f *Flow) Visible(answers Answers) []*Question {
	visible := make([]*Question, 0, len(f.questions))
	for _, q := range f.questions {
		if q.VisibleWhen == nil || q.VisibleWhen(answers) {
			visible = append(visible, q)
		}
	}
	return visible
}

// Validate checks the answer set against the visible questions only: a
// hidden question never blocks completion, and answers to hidden questions
// are ignored rather than rejected.
func (f *Flow) Validate(answers Answers) error {
	problems := map[string]interface{}{}
	for _, q := range f.Visible(answers) {
		raw, ok := answers[q.ID]
		if !ok || len(raw) == 0 {
			if q.Required {
				problems[q.ID] = "answer required"
			}
			continue
		}
		result, err := q.compiled.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			problems[q.ID] = fmt.Sprintf("unreadable answer: %v", err)
			continue
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			problems[q.ID] = msgs
		}
	}
	if len(problems) > 0 {
		return apperrors.NewValidationFailedError(problems)
	}
	return nil
}

// DeriveLabels folds the visible, answered questions into the preference
// label set stored on the participant. Order follows the flow; duplicates
// are collapsed.
func (f *Flow) DeriveLabels(answers Answers) []string {
	seen := map[string]bool{}
	var labels []string
	for _, q := range f.Visible(answers) {
		if q.Labels == nil {
			continue
		}
		raw, ok := answers[q.ID]
		if !ok {
			continue
		}
		for _, label := range q.Labels(raw) {
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			labels = append(labels, label)
		}
	}
	return labels
}

func stringAnswer(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func stringSliceAnswer(raw json.RawMessage) []string {
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// DefaultFlow is the production intake flow. The music-genre question only
// appears when music was picked as an interest; the company-size question
// only for participants coming with a group.
func DefaultFlow() (*Flow, error) {
	return NewFlow([]*Question{
		{
			ID:       "interests",
			Prompt:   "Waar ga je voor naar het festival?",
			Required: true,
			Schema: `{
				"type": "array",
				"items": {"type": "string", "enum": ["music", "workshops", "sports", "food", "theater"]},
				"minItems": 1,
				"uniqueItems": true
			}`,
			Labels: func(raw json.RawMessage) []string {
				var labels []string
				for _, v := range stringSliceAnswer(raw) {
					labels = append(labels, "interest:"+v)
				}
				return labels
			},
		},
		{
			ID:       "music_genre",
			Prompt:   "Welke muziekstijl spreekt je het meest aan?",
			Required: true,
			Schema: `{
				"type": "string",
				"enum": ["pop", "rock", "electronic", "jazz", "classical"]
			}`,
			VisibleWhen: func(answers Answers) bool {
				raw, ok := answers["interests"]
				if !ok {
					return false
				}
				for _, v := range stringSliceAnswer(raw) {
					if v == "music" {
						return true
					}
				}
				return false
			},
			Labels: func(raw json.RawMessage) []string {
				if genre := stringAnswer(raw); genre != "" {
					return []string{"genre:" + genre}
				}
				return nil
			},
		},
		{
			ID:       "group",
			Prompt:   "Kom je alleen of met een groep?",
			Required: true,
			Schema: `{
				"type": "string",
				"enum": ["alone", "group"]
			}`,
			Labels: func(raw json.RawMessage) []string {
				if v := stringAnswer(raw); v != "" {
					return []string{"company:" + v}
				}
				return nil
			},
		},
		{
			ID:       "group_size",
			Prompt:   "Met hoeveel personen komen jullie?",
			Required: false,
			Schema: `{
				"type": "integer",
				"minimum": 2,
				"maximum": 50
			}`,
			VisibleWhen: func(answers Answers) bool {
				raw, ok := answers["group"]
				return ok && stringAnswer(raw) == "group"
			},
		},
		{
			ID:       "intensity",
			Prompt:   "Hoe vol wil je je dag plannen?",
			Required: true,
			Schema: `{
				"type": "string",
				"enum": ["relaxed", "balanced", "packed"]
			}`,
			Labels: func(raw json.RawMessage) []string {
				if v := stringAnswer(raw); v != "" {
					return []string{"pace:" + v}
				}
				return nil
			},
		},
	})
}
