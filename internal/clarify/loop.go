package clarify

import (
	"github.com/ppiankov/intentguard/internal/model"
	"github.com/ppiankov/intentguard/internal/schema"
)

// MaxRounds bounds the clarification rounds after the first evaluation.
const MaxRounds = 2

// State is the clarification loop state.
type State string

const (
	StateNeedInfo State = "NEED_INFO"
	StateReady    State = "READY"
)

// Loop tracks clarification rounds and collected answers for one request.
// Not safe for concurrent use.
type Loop struct {
	registry  *schema.Registry
	maxRounds int
	round     int
	answers   []model.UserAnswer
}

// NewLoop returns a loop that asks at most maxRounds rounds. Values
// outside [0, MaxRounds] are clamped.
func NewLoop(reg *schema.Registry, maxRounds int) *Loop {
	if maxRounds < 0 {
		maxRounds = 0
	}
	if maxRounds > MaxRounds {
		maxRounds = MaxRounds
	}
	return &Loop{registry: reg, maxRounds: maxRounds}
}

// Next inspects the latest tokens. It returns NEED_INFO with the questions
// to ask, or READY once every token is complete or the rounds are used up.
func (l *Loop) Next(tokens []model.IntentToken) (State, []Question) {
	if l.round >= l.maxRounds {
		return StateReady, nil
	}
	qs := Questions(tokens, l.registry)
	if len(qs) == 0 {
		return StateReady, nil
	}
	l.round++
	return StateNeedInfo, qs
}

// Answer records the user's reply to q.
func (l *Loop) Answer(q Question, answer string) {
	l.answers = append(l.answers, model.UserAnswer{
		ID:     q.ID,
		Field:  q.Field,
		Answer: NormalizeAnswer(answer),
		Step:   q.Step,
	})
}

// Answers returns every answer collected so far.
func (l *Loop) Answers() []model.UserAnswer {
	return l.answers
}

// Round returns the number of rounds asked.
func (l *Loop) Round() int {
	return l.round
}
