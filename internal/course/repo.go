package course

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-progress/internal/progress"
)

type Store interface {
	PutCourse(ctx context.Context, c Course) error
	GetCourse(ctx context.Context, id string) (Course, error)
	CourseForChapter(ctx context.Context, chapterID string) (Course, error)

	// ChapterProgress lists the user's progress rows for the course's chapters.
	ChapterProgress(ctx context.Context, userID, courseID string) ([]progress.ChapterProgress, error)
	// MarkChapterCompleted is monotonic: it never clears a completion and
	// reports whether this call performed the transition.
	MarkChapterCompleted(ctx context.Context, userID, chapterID string, at time.Time) (bool, error)

	HasPurchased(ctx context.Context, userID, courseID string) (bool, error)
	GrantPurchase(ctx context.Context, userID, courseID string) error

	GetCertificate(ctx context.Context, userID, courseID string) (Certificate, bool, error)
	// IssueCertificate creates at most one certificate per (user, course).
	// created is false when a certificate already existed; the existing one
	// is returned.
	IssueCertificate(ctx context.Context, userID, courseID string, at time.Time) (cert Certificate, created bool, err error)
}

type memoryStore struct {
	mu        sync.RWMutex
	courses   map[string]Course
	chapterOf map[string]string                // chapterID -> courseID
	progress  map[string]map[string]*time.Time // userID -> chapterID -> completedAt
	purchases map[string]bool                  // user|course
	certs     map[string]Certificate           // user|course
}

func NewInMemoryStore() Store {
	return &memoryStore{
		courses:   map[string]Course{},
		chapterOf: map[string]string{},
		progress:  map[string]map[string]*time.Time{},
		purchases: map[string]bool{},
		certs:     map[string]Certificate{},
	}
}

func pairKey(userID, courseID string) string { return userID + "|" + courseID }

// PutCourse upserts the course and replaces its chapter list. Progress on
// dropped chapters is deleted.
func (m *memoryStore) PutCourse(_ context.Context, c Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chapters := make([]Chapter, len(c.Chapters))
	for i, ch := range c.Chapters {
		if owner, ok := m.chapterOf[ch.ID]; ok && owner != c.ID {
			return fmt.Errorf("chapter %s (course %s): %w", ch.ID, owner, ErrChapterTaken)
		}
		ch.CourseID = c.ID
		chapters[i] = ch
	}
	if old, ok := m.courses[c.ID]; ok {
		keep := make(map[string]bool, len(chapters))
		for _, ch := range chapters {
			keep[ch.ID] = true
		}
		for _, ch := range old.Chapters {
			delete(m.chapterOf, ch.ID)
			if keep[ch.ID] {
				continue
			}
			for _, byChapter := range m.progress {
				delete(byChapter, ch.ID)
			}
		}
	}
	c.Chapters = chapters
	for _, ch := range chapters {
		m.chapterOf[ch.ID] = c.ID
	}
	m.courses[c.ID] = c
	return nil
}

func (m *memoryStore) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (m *memoryStore) CourseForChapter(ctx context.Context, chapterID string) (Course, error) {
	m.mu.RLock()
	courseID, ok := m.chapterOf[chapterID]
	m.mu.RUnlock()
	if !ok {
		return Course{}, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	return m.GetCourse(ctx, courseID)
}

func (m *memoryStore) ChapterProgress(_ context.Context, userID, courseID string) ([]progress.ChapterProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	var out []progress.ChapterProgress
	for _, ch := range c.Chapters {
		at, ok := m.progress[userID][ch.ID]
		if !ok {
			continue
		}
		out = append(out, progress.ChapterProgress{UserID: userID, ChapterID: ch.ID, IsCompleted: true, CompletedAt: at})
	}
	return out, nil
}

func (m *memoryStore) MarkChapterCompleted(_ context.Context, userID, chapterID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chapterOf[chapterID]; !ok {
		return false, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	byChapter := m.progress[userID]
	if byChapter == nil {
		byChapter = map[string]*time.Time{}
		m.progress[userID] = byChapter
	}
	if _, done := byChapter[chapterID]; done {
		return false, nil
	}
	t := at.UTC()
	byChapter[chapterID] = &t
	return true, nil
}

func (m *memoryStore) HasPurchased(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.purchases[pairKey(userID, courseID)], nil
}

func (m *memoryStore) GrantPurchase(_ context.Context, userID, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[courseID]; !ok {
		return fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	m.purchases[pairKey(userID, courseID)] = true
	return nil
}

func (m *memoryStore) GetCertificate(_ context.Context, userID, courseID string) (Certificate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certs[pairKey(userID, courseID)]
	return c, ok, nil
}

func (m *memoryStore) IssueCertificate(_ context.Context, userID, courseID string, at time.Time) (Certificate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey(userID, courseID)
	if c, ok := m.certs[k]; ok {
		return c, false, nil
	}
	c := Certificate{ID: uuid.NewString(), UserID: userID, CourseID: courseID, IssuedAt: at.UTC()}
	m.certs[k] = c
	return c, true, nil
}
