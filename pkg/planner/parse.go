package planner

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoSteps is returned when a planning response holds no numbered steps
	ErrNoSteps = errors.New("no numbered steps in response")

	// ErrNoScore is returned when a scoring response holds no parseable number
	ErrNoScore = errors.New("no numeric score in response")
)

var (
	numberedLine = regexp.MustCompile(`^\d+\..*`)
	stepMarker   = regexp.MustCompile(`^\d+\.\s*`)
	nonNumeric   = regexp.MustCompile(`[^0-9.]`)
)

// ParsePlan extracts step descriptions from lines such as "1. Do the thing".
// Lines without a leading "number + period" marker are ignored.
func ParsePlan(response string) ([]string, error) {
	steps := []string{}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !numberedLine.MatchString(line) {
			continue
		}
		step := strings.TrimSpace(stepMarker.ReplaceAllString(line, ""))
		if step == "" {
			continue
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	return steps, nil
}

// ParseScore strips everything but digits and dots, parses the remainder
// and clamps it to [0.0, 1.0].
func ParseScore(response string) (float64, error) {
	digits := nonNumeric.ReplaceAllString(strings.TrimSpace(response), "")
	if digits == "" {
		return 0, ErrNoScore
	}
	score, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoScore, digits)
	}
	return clampScore(score), nil
}

// FallbackPlan is the deterministic plan used when generation is unavailable.
// It depends on the query text only.
func FallbackPlan(query string) []string {
	return []string{
		"Research and gather information about: " + query,
		"Analyze the gathered information and identify key points",
		"Synthesize findings into a comprehensive answer",
	}
}

// FallbackResult is recorded for a step whose generation call failed
func FallbackResult(step string) string {
	return fmt.Sprintf("Error executing step: %s. Using fallback.", step)
}

// FallbackSynthesis lists the query and every history entry
func FallbackSynthesis(query string, history []ExecutionStep) string {
	var b strings.Builder
	b.WriteString("Based on the query: '")
	b.WriteString(query)
	b.WriteString("'\n\nExecution Summary:\n")
	for _, step := range history {
		fmt.Fprintf(&b, "%d. %s\n", step.StepNumber, step.Description)
		fmt.Fprintf(&b, "   Result: %s\n", step.Result)
	}
	b.WriteString("\nThe agent completed the planned steps.")
	return b.String()
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
