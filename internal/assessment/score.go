package assessment

// Letter is the display grade for a percentage score.
type Letter string

const (
	GradeA Letter = "A"
	GradeB Letter = "B"
	GradeC Letter = "C"
	GradeD Letter = "D"
	GradeF Letter = "F"
)

// Outcome is the per-question scoring verdict.
type Outcome string

const (
	OutcomeCorrect    Outcome = "correct"
	OutcomeIncorrect  Outcome = "incorrect"
	OutcomeUnanswered Outcome = "unanswered"
	OutcomeManual     Outcome = "manual"    // text, left for a grader
	OutcomeMalformed  Outcome = "malformed" // unusable answer key, never credited
)

type QuestionResult struct {
	QuestionID string  `json:"question_id"`
	Outcome    Outcome `json:"outcome"`
	Earned     int     `json:"earned"`
	Max        int     `json:"max"`
}

// Result is the outcome of scoring one submission.
type Result struct {
	Score             int              `json:"score"` // 0..100
	Grade             Letter           `json:"grade"`
	EarnedPoints      int              `json:"earned_points"`
	TotalPoints       int              `json:"total_points"`
	NeedsManualReview bool             `json:"needs_manual_review"`
	Outcomes          []QuestionResult `json:"outcomes"`
	// Warnings holds *MalformedQuestionError values; the score is still valid
	// but those questions earned nothing.
	Warnings []error `json:"-"`
}

// ScoreExam grades answers against the exam. It is a pure function of its
// inputs and keeps no memory of earlier attempts.
func ScoreExam(e Exam, answers []Answer) (Result, error) {
	byQuestion := make(map[string]Answer, len(answers))
	for _, a := range answers {
		q, ok := e.question(a.QuestionID)
		if !ok {
			return Result{}, invalid("unknown question %q", a.QuestionID)
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			return Result{}, invalid("duplicate answer for question %q", a.QuestionID)
		}
		if err := checkSelection(q, a.SelectedOptionIDs); err != nil {
			return Result{}, err
		}
		byQuestion[a.QuestionID] = a
	}
	for _, q := range e.Questions {
		if q.Scored() && len(q.Options) == 0 {
			return Result{}, invalid("question %q has no options", q.ID)
		}
	}

	res := Result{Outcomes: make([]QuestionResult, 0, len(e.Questions))}
	for _, q := range e.Questions {
		a := byQuestion[q.ID]
		if !q.Scored() {
			if a.TextResponse != "" {
				res.NeedsManualReview = true
			}
			res.Outcomes = append(res.Outcomes, QuestionResult{QuestionID: q.ID, Outcome: OutcomeManual})
			continue
		}

		qr := QuestionResult{QuestionID: q.ID, Max: q.Weight()}
		res.TotalPoints += qr.Max
		keyErr := q.KeyError()
		switch {
		case keyErr != nil:
			qr.Outcome = OutcomeMalformed
			res.Warnings = append(res.Warnings, keyErr)
		case len(a.SelectedOptionIDs) == 0:
			qr.Outcome = OutcomeUnanswered
		case isCorrect(q, q.CorrectIDs(), a.SelectedOptionIDs):
			qr.Outcome = OutcomeCorrect
			qr.Earned = qr.Max
		default:
			qr.Outcome = OutcomeIncorrect
		}
		res.EarnedPoints += qr.Earned
		res.Outcomes = append(res.Outcomes, qr)
	}

	res.Score = Percent(res.EarnedPoints, res.TotalPoints)
	res.Grade = LetterFor(&res.Score)
	return res, nil
}

// checkSelection rejects selected ids that are not options of q.
func checkSelection(q Question, selected []string) error {
	if !q.Scored() {
		return nil
	}
	for _, id := range selected {
		if !q.HasOption(id) {
			return invalid("question %q has no option %q", q.ID, id)
		}
	}
	return nil
}

func isCorrect(q Question, correct, selected []string) bool {
	sel, key := toSet(selected), toSet(correct)
	if q.Kind == KindSingle {
		return len(sel) == 1 && len(key) == 1 && sel[0] == key[0]
	}
	return setEqual(key, sel)
}

// Percent returns part/total as a 0..100 integer rounded half up; a zero
// total yields 0.
func Percent(part, total int) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	if part >= total {
		return 100
	}
	return (part*200 + total) / (2 * total)
}

// LetterFor maps a score to its letter grade. A nil score displays as F.
func LetterFor(score *int) Letter {
	if score == nil {
		return GradeF
	}
	switch s := *score; {
	case s >= 90:
		return GradeA
	case s >= 80:
		return GradeB
	case s >= 70:
		return GradeC
	case s >= 60:
		return GradeD
	default:
		return GradeF
	}
}

func setEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]struct{}, len(a))
	for _, s := range a {
		m[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := m[s]; !ok {
			return false
		}
	}
	return true
}
