package progress

import "github.com/mind-engage/mindengage-progress/internal/assessment"

// DefaultPassThreshold applies when an exam does not set its own.
const DefaultPassThreshold = 70

// PassThreshold resolves the effective threshold for an exam, falling back to
// def (or DefaultPassThreshold when def is out of range).
func PassThreshold(e assessment.Exam, def int) int {
	if e.PassThreshold != nil {
		return clampPercent(*e.PassThreshold)
	}
	if def < 0 || def > 100 {
		return DefaultPassThreshold
	}
	return def
}

// Passed reports whether score meets the threshold, regardless of any prior
// completion.
func Passed(score, passThreshold int) bool {
	return score >= clampPercent(passThreshold)
}

// EvaluateChapterCompletion decides whether a scored attempt should mark the
// chapter completed. Completion is monotonic: once completed it is never
// re-marked, so re-passing an exam does not fire downstream events again.
func EvaluateChapterCompletion(score, passThreshold int, alreadyCompleted bool) bool {
	return !alreadyCompleted && Passed(score, passThreshold)
}

// EvaluateManualCompletion is the explicit "mark complete" transition for
// chapters without an exam.
func EvaluateManualCompletion(alreadyCompleted bool) bool {
	return !alreadyCompleted
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
