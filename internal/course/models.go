package course

import (
	"errors"
	"sort"
	"time"

	"github.com/mind-engage/mindengage-progress/internal/progress"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrChapterTaken = errors.New("chapter belongs to another course")
)

type Chapter struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	IsFree      bool   `json:"is_free"`
	IsPublished bool   `json:"is_published"`
}

type Course struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Chapters []Chapter `json:"chapters"`
}

// Published returns the learner-visible chapters ordered by position.
func (c Course) Published() []Chapter {
	out := make([]Chapter, 0, len(c.Chapters))
	for _, ch := range c.Chapters {
		if ch.IsPublished {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ChapterIDs lists the published chapter ids in course order; these are the
// chapters that must be completed for the course to be completed.
func (c Course) ChapterIDs() []string {
	pub := c.Published()
	ids := make([]string, len(pub))
	for i, ch := range pub {
		ids[i] = ch.ID
	}
	return ids
}

// GateChapters adapts the published chapters for progress.ResolveChapterAccess.
func (c Course) GateChapters() []progress.Chapter {
	pub := c.Published()
	out := make([]progress.Chapter, len(pub))
	for i, ch := range pub {
		out[i] = progress.Chapter{ID: ch.ID, IsFree: ch.IsFree}
	}
	return out
}

func (c Course) Chapter(id string) (Chapter, bool) {
	for _, ch := range c.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

type Certificate struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	CourseID string    `json:"course_id"`
	IssuedAt time.Time `json:"issued_at"`
}
