// Package plan splits model-generated plan text into numbered steps and
// pulls booking details out of structured plan sections.
package plan

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/intentguard/internal/extract"
	"github.com/ppiankov/intentguard/internal/model"
)

// MinStepLength is the shortest fragment kept as a step. Shorter fragments are noise.
const MinStepLength = 10

// stepMarker matches "Step N", "N." and "N:" markers. A bare number needs
// a trailing "." or ":" so that clock times and counts do not split steps.
var stepMarker = regexp.MustCompile(`(?i)(?:^|[\s*#(])(?:step\s+(\d+)[.:]?|(\d+)[.:])[\s*]+`)

// Segment splits plan text into steps in text order. Step numbers come
// from the markers and are never renumbered.
func Segment(text string) []model.PlanStep {
	locs := stepMarker.FindAllStringSubmatchIndex(text, -1)
	var steps []model.PlanStep
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		if utf8.RuneCountInString(content) < MinStepLength {
			continue
		}
		steps = append(steps, model.PlanStep{
			StepNumber:      markerNumber(text, loc),
			Description:     content,
			ExtractedFields: extract.Fields(content),
		})
	}
	return steps
}

// Placeholder builds the single step used when a plan cannot be segmented.
func Placeholder(text string) model.PlanStep {
	desc := strings.TrimSpace(text)
	return model.PlanStep{
		StepNumber:      1,
		Description:     desc,
		ExtractedFields: extract.Fields(desc),
	}
}

func markerNumber(text string, loc []int) int {
	for g := 1; g <= 2; g++ {
		start, end := loc[2*g], loc[2*g+1]
		if start < 0 {
			continue
		}
		n, err := strconv.Atoi(text[start:end])
		if err == nil {
			return n
		}
	}
	return 0
}
