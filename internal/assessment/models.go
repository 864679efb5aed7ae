package assessment

import "fmt"

// Kind is the answer shape a question accepts.
type Kind string

const (
	KindSingle   Kind = "single"
	KindMultiple Kind = "multiple"
	KindText     Kind = "text" // never auto-scored
)

type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text,omitempty"`
	Kind    Kind     `json:"kind"`
	Options []Option `json:"options,omitempty"`
	// CorrectOptionIDs overrides the IsCorrect flags on Options when set.
	CorrectOptionIDs []string `json:"correct_option_ids,omitempty"`
	Points           int      `json:"points"`
}

// CorrectIDs returns the correct option ids, deriving them from the options
// when CorrectOptionIDs is empty.
func (q Question) CorrectIDs() []string {
	if len(q.CorrectOptionIDs) > 0 {
		return q.CorrectOptionIDs
	}
	var ids []string
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// KeyError reports why a scored question's answer key cannot be used, or
// nil when it can. Text questions never have a key problem.
func (q Question) KeyError() error {
	if !q.Scored() {
		return nil
	}
	correct := q.CorrectIDs()
	switch {
	case len(correct) == 0:
		return &MalformedQuestionError{QuestionID: q.ID, Reason: "no correct options"}
	case q.Kind == KindSingle && len(toSet(correct)) != 1:
		return &MalformedQuestionError{QuestionID: q.ID, Reason: "single choice needs exactly one correct option"}
	}
	for _, id := range correct {
		if !q.HasOption(id) {
			return &MalformedQuestionError{QuestionID: q.ID, Reason: fmt.Sprintf("correct id %q is not an option", id)}
		}
	}
	return nil
}

// Weight is the question's contribution to the max score. Missing or
// non-positive points count as 1.
func (q Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Scored reports whether the question takes part in automatic scoring.
func (q Question) Scored() bool { return q.Kind != KindText }

// StudentView strips everything that reveals the answer key.
func (q Question) StudentView() Question {
	out := q
	out.CorrectOptionIDs = nil
	out.Options = make([]Option, len(q.Options))
	for i, o := range q.Options {
		out.Options[i] = Option{ID: o.ID, Text: o.Text}
	}
	return out
}

type Exam struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapter_id"`
	Title     string `json:"title"`
	// PassThreshold is the minimum percentage to complete the chapter;
	// nil means DefaultPassThreshold.
	PassThreshold *int       `json:"pass_threshold,omitempty"`
	Questions     []Question `json:"questions"`
}

// Presentable reports whether the exam can be shown to a learner.
func (e Exam) Presentable() bool { return len(e.Questions) > 0 }

// CheckKeys returns the first question whose answer key is unusable.
func (e Exam) CheckKeys() error {
	for _, q := range e.Questions {
		if err := q.KeyError(); err != nil {
			return err
		}
	}
	return nil
}

func (e Exam) StudentView() Exam {
	out := e
	out.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		out.Questions[i] = q.StudentView()
	}
	return out
}

func (e Exam) question(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answer is the canonical form of one submitted answer.
type Answer struct {
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids"`
	TextResponse      string   `json:"text_response,omitempty"`
}

// Empty reports whether the learner gave no response at all.
func (a Answer) Empty() bool {
	return len(a.SelectedOptionIDs) == 0 && a.TextResponse == ""
}
