package exam

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
)

var ErrNotFound = errors.New("not found")

// ScoreOverride is a grader's explicit correction of an attempt's score. The
// attempt's answers and computed score are kept as submitted.
type ScoreOverride struct {
	Score    int       `json:"score"`
	GradedBy string    `json:"graded_by"`
	Comment  string    `json:"comment,omitempty"`
	At       time.Time `json:"at"`
}

// Attempt is one submission of an exam. It is never mutated after creation,
// apart from attaching a ScoreOverride.
type Attempt struct {
	ID                string              `json:"id"`
	ExamID            string              `json:"exam_id"`
	UserID            string              `json:"user_id"`
	Score             *int                `json:"score"`
	Grade             assessment.Letter   `json:"grade"`
	EarnedPoints      int                 `json:"earned_points"`
	TotalPoints       int                 `json:"total_points"`
	NeedsManualReview bool                `json:"needs_manual_review"`
	Answers           []assessment.Answer `json:"answers"`
	SubmittedAt       time.Time           `json:"submitted_at"`
	Override          *ScoreOverride      `json:"override,omitempty"`
}

// EffectiveScore is the override score when present, else the computed one.
func (a Attempt) EffectiveScore() *int {
	if a.Override != nil {
		s := a.Override.Score
		return &s
	}
	return a.Score
}

func (a Attempt) EffectiveGrade() assessment.Letter {
	return assessment.LetterFor(a.EffectiveScore())
}

// MarshalJSON adds effective_score and effective_grade so readers see the
// grader's correction next to the computed values.
func (a Attempt) MarshalJSON() ([]byte, error) {
	type plain Attempt
	return json.Marshal(struct {
		plain
		EffectiveScore *int              `json:"effective_score"`
		EffectiveGrade assessment.Letter `json:"effective_grade"`
	}{plain(a), a.EffectiveScore(), a.EffectiveGrade()})
}

type AttemptListOpts struct {
	ExamID string
	UserID string
	Limit  int
	Offset int
}

func (o AttemptListOpts) window() (limit, offset int) {
	limit, offset = o.Limit, o.Offset
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
