package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
)

type Store interface {
	PutExam(ctx context.Context, e assessment.Exam) error
	// GetExam returns the full exam including answer keys; callers serving
	// learners use Exam.StudentView.
	GetExam(ctx context.Context, id string) (assessment.Exam, error)
	ExamForChapter(ctx context.Context, chapterID string) (assessment.Exam, error)

	CreateAttempt(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	OverrideScore(ctx context.Context, attemptID string, o ScoreOverride) (Attempt, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	exams    map[string]assessment.Exam
	attempts map[string]Attempt
	order    []string // attempt ids, newest last
}

func NewInMemoryStore() Store {
	return &memoryStore{
		exams:    map[string]assessment.Exam{},
		attempts: map[string]Attempt{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e assessment.Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (assessment.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return assessment.Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (m *memoryStore) ExamForChapter(_ context.Context, chapterID string) (assessment.Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.exams))
	for id, e := range m.exams {
		if e.ChapterID == chapterID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return assessment.Exam{}, fmt.Errorf("exam for chapter %s: %w", chapterID, ErrNotFound)
	}
	sort.Strings(ids)
	return m.exams[ids[0]], nil
}

func (m *memoryStore) CreateAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[a.ExamID]; !ok {
		return Attempt{}, fmt.Errorf("exam %s: %w", a.ExamID, ErrNotFound)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, dup := m.attempts[a.ID]; dup {
		return Attempt{}, fmt.Errorf("attempt %s already exists", a.ID)
	}
	a.Answers = append([]assessment.Answer(nil), a.Answers...)
	m.attempts[a.ID] = a
	m.order = append(m.order, a.ID)
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit, offset := opts.window()
	out := []Attempt{}
	skipped := 0
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		a := m.attempts[m.order[i]]
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryStore) OverrideScore(_ context.Context, attemptID string, o ScoreOverride) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	a.Override = &o
	m.attempts[attemptID] = a
	return a, nil
}
