package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"inkwell/internal/stage"
)

// Verdict is the gate's decision for one checkpoint evaluation.
type Verdict string

const (
	// VerdictPass lets the run continue past the checkpoint.
	VerdictPass Verdict = "pass"
	// VerdictRegenerate rewinds the run to the regeneration-start stage.
	VerdictRegenerate Verdict = "regenerate"
	// VerdictFail terminates the run.
	VerdictFail Verdict = "fail"
)

// Thresholds holds the quality criteria snapshotted into a run at start.
// TargetWords comes from the run input when the caller requests a length;
// zero disables the length check. SubScoreFloor applies only when the result
// carries a quality breakdown map.
type Thresholds struct {
	MinQuality         float64
	MaxAttempts        int
	SubScoreFloor      float64
	LengthTolerancePct float64
	TargetWords        int
	LengthKey          string
}

// BreakdownKey is the output field checked for per-dimension sub-scores.
const BreakdownKey = "quality_breakdown"

// DefaultLengthKey is the output field measured when no other is configured.
const DefaultLengthKey = "content"

// Decision reports the verdict plus the human-readable reason and the
// individual violations that produced it. Violations feed regeneration
// feedback downstream.
type Decision struct {
	Verdict    Verdict
	Reason     string
	Violations []string
}

// ExhaustionReason is the exact failure reason recorded when regeneration
// attempts run out. Callers match on this string; do not reword it.
func ExhaustionReason(attempts int) string {
	return fmt.Sprintf("quality threshold not met after %d attempts", attempts)
}

// Evaluate scores a checkpoint result. attempt is the 1-based count of
// checkpoint executions so far, including the one that produced result.
func Evaluate(result *stage.Result, attempt int, thresholds Thresholds) Decision {
	maxAttempts := thresholds.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if attempt < 1 {
		attempt = 1
	}

	if result == nil || !result.Status.Usable() {
		reason := "checkpoint result not usable"
		if result != nil && strings.TrimSpace(result.Message) != "" {
			reason = result.Message
		}
		return Decision{Verdict: VerdictFail, Reason: reason}
	}

	violations := collectViolations(result, thresholds)
	if len(violations) == 0 {
		return Decision{Verdict: VerdictPass}
	}

	if attempt >= maxAttempts {
		return Decision{
			Verdict:    VerdictFail,
			Reason:     ExhaustionReason(attempt),
			Violations: violations,
		}
	}
	return Decision{
		Verdict:    VerdictRegenerate,
		Reason:     strings.Join(violations, "; "),
		Violations: violations,
	}
}

func collectViolations(result *stage.Result, thresholds Thresholds) []string {
	var violations []string

	if result.Quality < thresholds.MinQuality {
		violations = append(violations, fmt.Sprintf(
			"quality score %.1f below minimum %.1f", result.Quality, thresholds.MinQuality))
	}

	violations = append(violations, subScoreViolations(result.Output, thresholds.SubScoreFloor)...)

	if v, ok := lengthViolation(result.Output, thresholds); ok {
		violations = append(violations, v)
	}

	return violations
}

func subScoreViolations(output map[string]any, floor float64) []string {
	if floor <= 0 || output == nil {
		return nil
	}
	breakdown, ok := output[BreakdownKey]
	if !ok {
		return nil
	}
	scores := make(map[string]float64)
	switch typed := breakdown.(type) {
	case map[string]float64:
		for name, score := range typed {
			scores[name] = score
		}
	case map[string]any:
		for name, raw := range typed {
			switch score := raw.(type) {
			case float64:
				scores[name] = score
			case int:
				scores[name] = float64(score)
			}
		}
	default:
		return nil
	}

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	var violations []string
	for _, name := range names {
		if scores[name] < floor {
			violations = append(violations, fmt.Sprintf(
				"%s sub-score %.1f below floor %.1f", name, scores[name], floor))
		}
	}
	return violations
}

func lengthViolation(output map[string]any, thresholds Thresholds) (string, bool) {
	if thresholds.TargetWords <= 0 || output == nil {
		return "", false
	}
	key := thresholds.LengthKey
	if key == "" {
		key = DefaultLengthKey
	}
	raw, ok := output[key]
	if !ok {
		return "", false
	}
	text, ok := raw.(string)
	if !ok {
		return "", false
	}

	words := len(strings.Fields(text))
	tolerance := thresholds.LengthTolerancePct
	if tolerance < 0 {
		tolerance = 0
	}
	target := float64(thresholds.TargetWords)
	lo := int(math.Floor(target * (1 - tolerance/100)))
	hi := int(math.Ceil(target * (1 + tolerance/100)))
	if words >= lo && words <= hi {
		return "", false
	}
	return fmt.Sprintf("word count %d outside %d-%d target window", words, lo, hi), true
}
