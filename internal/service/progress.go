// Package service runs the assessment and progression engine against the
// exam and course stores: it reads snapshots, asks the engine for decisions
// and persists them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/progress"
	syncx "github.com/mind-engage/mindengage-progress/internal/sync"
)

var (
	ErrExamRequired = errors.New("chapter is completed through its exam")
	ErrInvalidScore = errors.New("score must be between 0 and 100")
	// ErrNotChapterExam rejects an exam that shares a chapter with the
	// chapter's own exam (the first by id).
	ErrNotChapterExam = errors.New("exam is not the chapter's exam")
)

// LockedError is returned when the learner may not interact with a chapter.
type LockedError struct {
	ChapterID string
	Decision  progress.AccessDecision
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("chapter %s is locked: %s", e.ChapterID, e.Decision)
}

type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

type Option func(*Service)

// WithPassThreshold sets the threshold used for exams without their own.
func WithPassThreshold(n int) Option { return func(s *Service) { s.passThreshold = n } }
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	exams         exam.Store
	courses       course.Store
	events        EventSink
	passThreshold int
	now           func() time.Time
}

func New(exams exam.Store, courses course.Store, events EventSink, opts ...Option) *Service {
	s := &Service{
		exams:         exams,
		courses:       courses,
		events:        events,
		passThreshold: progress.DefaultPassThreshold,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Completion reports what a single action changed. ChapterCompleted and
// Certificate are only set for transitions this call performed;
// CourseCompleted is the course state after the call.
type Completion struct {
	ChapterCompleted bool                `json:"chapter_completed"`
	CourseCompleted  bool                `json:"course_completed"`
	Certificate      *course.Certificate `json:"certificate,omitempty"`
}

type Submission struct {
	Attempt       exam.Attempt      `json:"attempt"`
	Result        assessment.Result `json:"result"`
	PassThreshold int               `json:"pass_threshold"`
	Passed        bool              `json:"passed"`
	Completion
}

// SubmitExam scores a submission, persists the attempt and applies any
// chapter, course and certificate transitions. An invalid submission persists
// nothing.
func (s *Service) SubmitExam(ctx context.Context, userID, examID string, raw map[string]any) (Submission, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return Submission{}, err
	}
	if !e.Presentable() {
		return Submission{}, fmt.Errorf("exam %s: %w", examID, assessment.ErrNotPresentable)
	}
	if err := s.requireChapterExam(ctx, e); err != nil {
		return Submission{}, err
	}
	c, list, err := s.unlockedChapter(ctx, userID, e.ChapterID)
	if err != nil {
		return Submission{}, err
	}

	answers, err := assessment.NormalizeAnswers(e, raw)
	if err != nil {
		return Submission{}, err
	}
	res, err := assessment.ScoreExam(e, answers)
	if err != nil {
		return Submission{}, err
	}
	for _, w := range res.Warnings {
		log.Printf("exam %s: %v", e.ID, w)
	}

	score := res.Score
	a, err := s.exams.CreateAttempt(ctx, exam.Attempt{
		ExamID:            e.ID,
		UserID:            userID,
		Score:             &score,
		Grade:             res.Grade,
		EarnedPoints:      res.EarnedPoints,
		TotalPoints:       res.TotalPoints,
		NeedsManualReview: res.NeedsManualReview,
		Answers:           answers,
		SubmittedAt:       s.now().UTC(),
	})
	if err != nil {
		return Submission{}, fmt.Errorf("persist attempt: %w", err)
	}
	s.emit(ctx, syncx.TypeAttemptSubmitted, a.ID, map[string]any{
		"exam_id": e.ID, "user_id": userID, "score": score, "grade": res.Grade,
	})

	threshold := progress.PassThreshold(e, s.passThreshold)
	comp, err := s.applyScore(ctx, userID, c, e.ChapterID, score, threshold, list)
	if err != nil {
		return Submission{}, err
	}
	return Submission{
		Attempt:       a,
		Result:        res,
		PassThreshold: threshold,
		Passed:        progress.Passed(score, threshold),
		Completion:    comp,
	}, nil
}

// OverrideScore records a grader's score for an attempt and re-evaluates
// completion with it. The attempt's answers stay as submitted. Everything the
// re-evaluation needs is resolved before the override is persisted.
func (s *Service) OverrideScore(ctx context.Context, attemptID string, score int, gradedBy, comment string) (Submission, error) {
	if score < 0 || score > 100 {
		return Submission{}, ErrInvalidScore
	}
	a, err := s.exams.GetAttempt(ctx, attemptID)
	if err != nil {
		return Submission{}, err
	}
	e, err := s.exams.GetExam(ctx, a.ExamID)
	if err != nil {
		return Submission{}, err
	}
	if err := s.requireChapterExam(ctx, e); err != nil {
		return Submission{}, err
	}
	c, err := s.courses.CourseForChapter(ctx, e.ChapterID)
	if err != nil {
		return Submission{}, err
	}
	list, err := s.courses.ChapterProgress(ctx, a.UserID, c.ID)
	if err != nil {
		return Submission{}, err
	}

	a, err = s.exams.OverrideScore(ctx, attemptID, exam.ScoreOverride{
		Score: score, GradedBy: gradedBy, Comment: comment, At: s.now().UTC(),
	})
	if err != nil {
		return Submission{}, err
	}
	s.emit(ctx, syncx.TypeScoreOverridden, a.ID, map[string]any{
		"score": score, "graded_by": gradedBy,
	})

	threshold := progress.PassThreshold(e, s.passThreshold)
	comp, err := s.applyScore(ctx, a.UserID, c, e.ChapterID, score, threshold, list)
	if err != nil {
		return Submission{}, err
	}
	return Submission{
		Attempt:       a,
		PassThreshold: threshold,
		Passed:        progress.Passed(score, threshold),
		Completion:    comp,
	}, nil
}

// CompleteChapter is the explicit "mark complete" action for chapters that
// have no exam.
func (s *Service) CompleteChapter(ctx context.Context, userID, courseID, chapterID string) (Completion, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Completion{}, err
	}
	if _, ok := c.Chapter(chapterID); !ok {
		return Completion{}, fmt.Errorf("%w: %s", progress.ErrUnknownChapter, chapterID)
	}
	if _, err := s.exams.ExamForChapter(ctx, chapterID); err == nil {
		return Completion{}, ErrExamRequired
	} else if !errors.Is(err, exam.ErrNotFound) {
		return Completion{}, err
	}
	c, list, err := s.unlockedChapter(ctx, userID, chapterID)
	if err != nil {
		return Completion{}, err
	}
	if !progress.EvaluateManualCompletion(isCompleted(list, chapterID)) {
		return s.aggregate(ctx, userID, c, Completion{})
	}
	return s.complete(ctx, userID, c, chapterID)
}

func (s *Service) applyScore(ctx context.Context, userID string, c course.Course, chapterID string, score, threshold int, list []progress.ChapterProgress) (Completion, error) {
	already := isCompleted(list, chapterID)
	if progress.EvaluateChapterCompletion(score, threshold, already) {
		return s.complete(ctx, userID, c, chapterID)
	}
	if already {
		// nothing to mark; re-check the course so a missed certificate is repaired
		return s.aggregate(ctx, userID, c, Completion{})
	}
	return Completion{}, nil
}

func (s *Service) complete(ctx context.Context, userID string, c course.Course, chapterID string) (Completion, error) {
	created, err := s.courses.MarkChapterCompleted(ctx, userID, chapterID, s.now().UTC())
	if err != nil {
		return Completion{}, fmt.Errorf("mark chapter completed: %w", err)
	}
	comp := Completion{ChapterCompleted: created}
	if created {
		s.emit(ctx, syncx.TypeChapterCompleted, userID+"|"+chapterID, map[string]any{
			"user_id": userID, "chapter_id": chapterID, "course_id": c.ID,
		})
	}
	return s.aggregate(ctx, userID, c, comp)
}

// aggregate re-reads progress so concurrent completions are seen, then issues
// the certificate when the engine advises it. The store's uniqueness makes
// the issue itself exactly-once.
func (s *Service) aggregate(ctx context.Context, userID string, c course.Course, comp Completion) (Completion, error) {
	list, err := s.courses.ChapterProgress(ctx, userID, c.ID)
	if err != nil {
		return Completion{}, err
	}
	_, issued, err := s.courses.GetCertificate(ctx, userID, c.ID)
	if err != nil {
		return Completion{}, err
	}
	courseCompleted, shouldIssue := progress.AggregateCourseCompletion(list, c.ChapterIDs(), issued)
	comp.CourseCompleted = courseCompleted
	if !shouldIssue {
		return comp, nil
	}
	cert, created, err := s.courses.IssueCertificate(ctx, userID, c.ID, s.now().UTC())
	if err != nil {
		return Completion{}, fmt.Errorf("issue certificate: %w", err)
	}
	if created {
		comp.Certificate = &cert
		s.emit(ctx, syncx.TypeCertificateIssued, userID+"|"+c.ID, cert)
		log.Printf("certificate %s issued: user=%s course=%s", cert.ID, userID, c.ID)
	}
	return comp, nil
}

// unlockedChapter loads the chapter's course and the learner's progress and
// fails with *LockedError unless the gate lets the learner in.
func (s *Service) unlockedChapter(ctx context.Context, userID, chapterID string) (course.Course, []progress.ChapterProgress, error) {
	c, err := s.courses.CourseForChapter(ctx, chapterID)
	if err != nil {
		return course.Course{}, nil, err
	}
	list, err := s.courses.ChapterProgress(ctx, userID, c.ID)
	if err != nil {
		return course.Course{}, nil, err
	}
	d, err := s.resolve(ctx, userID, c, chapterID, list)
	if err != nil {
		return course.Course{}, nil, err
	}
	if !d.Unlocked() {
		return course.Course{}, nil, &LockedError{ChapterID: chapterID, Decision: d}
	}
	return c, list, nil
}

func (s *Service) resolve(ctx context.Context, userID string, c course.Course, chapterID string, list []progress.ChapterProgress) (progress.AccessDecision, error) {
	purchased, err := s.courses.HasPurchased(ctx, userID, c.ID)
	if err != nil {
		return 0, err
	}
	return progress.ResolveChapterAccess(c.GateChapters(), chapterID, list, purchased)
}

// requireChapterExam fails unless e is the exam that completes its chapter.
func (s *Service) requireChapterExam(ctx context.Context, e assessment.Exam) error {
	id, err := s.examID(ctx, e.ChapterID)
	if err != nil {
		return err
	}
	if id != e.ID {
		return fmt.Errorf("exam %s on chapter %s: %w", e.ID, e.ChapterID, ErrNotChapterExam)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	ev, err := syncx.NewEvent(typ, key, data)
	if err == nil {
		err = s.events.Append(ctx, ev)
	}
	if err != nil {
		log.Printf("event %s %s: %v", typ, key, err)
	}
}

func isCompleted(list []progress.ChapterProgress, chapterID string) bool {
	for _, p := range list {
		if p.ChapterID == chapterID && p.IsCompleted {
			return true
		}
	}
	return false
}
