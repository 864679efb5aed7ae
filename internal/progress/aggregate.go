package progress

import (
	"time"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
)

// ChapterProgress is one learner's completion record for one chapter.
type ChapterProgress struct {
	UserID      string     `json:"user_id"`
	ChapterID   string     `json:"chapter_id"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// completedSet indexes the chapters marked completed.
func completedSet(list []ChapterProgress) map[string]bool {
	done := make(map[string]bool, len(list))
	for _, p := range list {
		if p.IsCompleted {
			done[p.ChapterID] = true
		}
	}
	return done
}

// AggregateCourseCompletion decides whether every chapter of the course is
// completed and whether a certificate may now be issued. It is safe to call
// after every chapter completion: it never advises a certificate when one was
// already issued. The result is advisory; the store enforces one certificate
// per (user, course).
func AggregateCourseCompletion(list []ChapterProgress, courseChapterIDs []string, certificateAlreadyIssued bool) (courseCompleted, shouldIssueCertificate bool) {
	if len(courseChapterIDs) == 0 {
		return false, false
	}
	done := completedSet(list)
	for _, id := range courseChapterIDs {
		if !done[id] {
			return false, false
		}
	}
	return true, !certificateAlreadyIssued
}

type Summary struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// CourseProgress counts completed chapters of the course. Progress rows for
// chapters outside the course are ignored.
func CourseProgress(list []ChapterProgress, courseChapterIDs []string) Summary {
	done := completedSet(list)
	s := Summary{Total: len(courseChapterIDs)}
	for _, id := range courseChapterIDs {
		if done[id] {
			s.Completed++
		}
	}
	s.Percent = assessment.Percent(s.Completed, s.Total)
	return s
}
