package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
	"github.com/mind-engage/mindengage-progress/internal/course"
	"github.com/mind-engage/mindengage-progress/internal/exam"
	"github.com/mind-engage/mindengage-progress/internal/progress"
)

type ChapterView struct {
	CourseID  string                  `json:"course_id"`
	ChapterID string                  `json:"chapter_id"`
	Title     string                  `json:"title"`
	IsFree    bool                    `json:"is_free"`
	Access    progress.AccessDecision `json:"access"`
	Completed bool                    `json:"completed"`
	ExamID    string                  `json:"exam_id,omitempty"`
}

// ChapterAccess gates one chapter page load for the learner.
func (s *Service) ChapterAccess(ctx context.Context, userID, courseID, chapterID string) (ChapterView, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return ChapterView{}, err
	}
	list, err := s.courses.ChapterProgress(ctx, userID, c.ID)
	if err != nil {
		return ChapterView{}, err
	}
	purchased, err := s.courses.HasPurchased(ctx, userID, c.ID)
	if err != nil {
		return ChapterView{}, err
	}
	d, err := progress.ResolveChapterAccess(c.GateChapters(), chapterID, list, purchased)
	if err != nil {
		return ChapterView{}, err
	}
	ch, _ := c.Chapter(chapterID)
	v := ChapterView{
		CourseID:  c.ID,
		ChapterID: ch.ID,
		Title:     ch.Title,
		IsFree:    ch.IsFree,
		Access:    d,
		Completed: isCompleted(list, chapterID),
	}
	if v.ExamID, err = s.examID(ctx, chapterID); err != nil {
		return ChapterView{}, err
	}
	return v, nil
}

type CourseOverview struct {
	CourseID    string              `json:"course_id"`
	Title       string              `json:"title"`
	Purchased   bool                `json:"purchased"`
	Chapters    []ChapterView       `json:"chapters"`
	Progress    progress.Summary    `json:"progress"`
	Completed   bool                `json:"completed"`
	Certificate *course.Certificate `json:"certificate,omitempty"`
}

// CourseOverview lists every published chapter with its access decision and
// the learner's overall progress.
func (s *Service) CourseOverview(ctx context.Context, userID, courseID string) (CourseOverview, error) {
	c, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return CourseOverview{}, err
	}
	list, err := s.courses.ChapterProgress(ctx, userID, c.ID)
	if err != nil {
		return CourseOverview{}, err
	}
	purchased, err := s.courses.HasPurchased(ctx, userID, c.ID)
	if err != nil {
		return CourseOverview{}, err
	}
	cert, issued, err := s.courses.GetCertificate(ctx, userID, c.ID)
	if err != nil {
		return CourseOverview{}, err
	}

	ov := CourseOverview{CourseID: c.ID, Title: c.Title, Purchased: purchased, Chapters: []ChapterView{}}
	gate := c.GateChapters()
	for _, ch := range c.Published() {
		d, err := progress.ResolveChapterAccess(gate, ch.ID, list, purchased)
		if err != nil {
			return CourseOverview{}, err
		}
		examID, err := s.examID(ctx, ch.ID)
		if err != nil {
			return CourseOverview{}, err
		}
		ov.Chapters = append(ov.Chapters, ChapterView{
			CourseID:  c.ID,
			ChapterID: ch.ID,
			Title:     ch.Title,
			IsFree:    ch.IsFree,
			Access:    d,
			Completed: isCompleted(list, ch.ID),
			ExamID:    examID,
		})
	}
	ids := c.ChapterIDs()
	ov.Progress = progress.CourseProgress(list, ids)
	ov.Completed, _ = progress.AggregateCourseCompletion(list, ids, issued)
	if issued {
		ov.Certificate = &cert
	}
	return ov, nil
}

// ExamForLearner returns the exam with answer keys stripped, provided the
// chapter it belongs to is unlocked for the learner.
func (s *Service) ExamForLearner(ctx context.Context, userID, examID string) (assessment.Exam, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return assessment.Exam{}, err
	}
	if !e.Presentable() {
		return assessment.Exam{}, fmt.Errorf("exam %s: %w", examID, assessment.ErrNotPresentable)
	}
	if err := s.requireChapterExam(ctx, e); err != nil {
		return assessment.Exam{}, err
	}
	if _, _, err := s.unlockedChapter(ctx, userID, e.ChapterID); err != nil {
		return assessment.Exam{}, err
	}
	return e.StudentView(), nil
}

func (s *Service) examID(ctx context.Context, chapterID string) (string, error) {
	e, err := s.exams.ExamForChapter(ctx, chapterID)
	if errors.Is(err, exam.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return e.ID, nil
}
