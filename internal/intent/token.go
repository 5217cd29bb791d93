package intent

import (
	"maps"
	"math"

	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/schema"
)

// Generator builds intent tokens against a schema registry.
type Generator struct {
	registry *schema.Registry
}

// NewGenerator returns a Generator. A nil registry uses the defaults.
func NewGenerator(r *schema.Registry) *Generator {
	if r == nil {
		r = schema.Default()
	}
	return &Generator{registry: r}
}

// Registry returns the schema registry the generator checks against.
func (g *Generator) Registry() *schema.Registry {
	return g.registry
}

// Generate builds a token for a step under the given action.
func (g *Generator) Generate(step model.PlanStep, action model.ActionType) model.IntentToken {
	fields := make(map[string]string, len(step.ExtractedFields))
	for k, v := range step.ExtractedFields {
		if v != "" {
			fields[k] = v
		}
	}
	tok := model.IntentToken{
		Action:      action,
		StepNumber:  step.StepNumber,
		Description: step.Description,
		Budget:      g.registry.Lookup(action).Budget,
		Fields:      fields,
	}
	g.Score(&tok)
	return tok
}

// Score recomputes missing fields, completeness and confidence from the
// token's current fields.
func (g *Generator) Score(tok *model.IntentToken) {
	s := g.registry.Lookup(tok.Action)
	tok.MissingFields = nil
	for _, f := range s.Required {
		if tok.Fields[f] == "" {
			tok.MissingFields = append(tok.MissingFields, f)
		}
	}
	tok.DataComplete = len(tok.MissingFields) == 0
	tok.Confidence = Confidence(s, tok.Fields)
}

// Confidence scores field coverage. Without required fields the score is
// a neutral 0.5; partial coverage scales to at most 0.6; full coverage
// starts at 0.85 and optional fields add up to 0.15.
func Confidence(s schema.Schema, fields map[string]string) float64 {
	if len(s.Required) == 0 {
		return 0.5
	}
	ratio := float64(present(s.Required, fields)) / float64(len(s.Required))
	if ratio < 1 {
		return round2(ratio * 0.6)
	}
	optional := float64(present(s.Optional, fields)) / float64(max(len(s.Optional), 1))
	return round2(math.Min(0.85+optional*0.15, 1))
}

func present(names []string, fields map[string]string) int {
	n := 0
	for _, f := range names {
		if fields[f] != "" {
			n++
		}
	}
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func cloneFields(m map[string]string) map[string]string {
	if m == nil {
		return make(map[string]string)
	}
	return maps.Clone(m)
}
