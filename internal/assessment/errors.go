package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSubmission rejects a submission outright; no attempt may be
	// persisted for it.
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrNotPresentable    = errors.New("exam has no questions")
)

// MalformedQuestionError is reported as a warning next to a partial score:
// the question's answer key is unusable and the question is never credited.
type MalformedQuestionError struct {
	QuestionID string
	Reason     string
}

func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("malformed question %q: %s", e.QuestionID, e.Reason)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidSubmission}, args...)...)
}
