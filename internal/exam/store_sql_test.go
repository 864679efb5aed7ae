package exam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
	"github.com/mind-engage/mindengage-progress/internal/db"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, db.MemoryDSN("exam_"+t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return map[string]Store{"memory": NewInMemoryStore(), "sql": NewSQLStore(h)}
}

func sampleExam() assessment.Exam {
	pass := 80
	return assessment.Exam{
		ID: "e1", ChapterID: "ch1", Title: "Quiz", PassThreshold: &pass,
		Questions: []assessment.Question{
			{ID: "q1", Kind: assessment.KindSingle, Points: 2, Options: []assessment.Option{{ID: "a", IsCorrect: true}, {ID: "b"}}},
			{ID: "q2", Kind: assessment.KindText},
		},
	}
}

func TestStoreExams(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.GetExam(ctx, "e1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.PutExam(ctx, sampleExam()))
			got, err := s.GetExam(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, sampleExam(), got)

			byChapter, err := s.ExamForChapter(ctx, "ch1")
			require.NoError(t, err)
			assert.Equal(t, "e1", byChapter.ID)
			_, err = s.ExamForChapter(ctx, "ch2")
			assert.ErrorIs(t, err, ErrNotFound)

			upd := sampleExam()
			upd.Title = "Quiz v2"
			upd.PassThreshold = nil
			require.NoError(t, s.PutExam(ctx, upd))
			got, err = s.GetExam(ctx, "e1")
			require.NoError(t, err)
			assert.Equal(t, "Quiz v2", got.Title)
			assert.Nil(t, got.PassThreshold)
		})
	}
}

func TestStoreAttempts(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.PutExam(ctx, sampleExam()))
			base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

			_, err := s.CreateAttempt(ctx, Attempt{ExamID: "ghost", UserID: "u1", SubmittedAt: base})
			assert.Error(t, err)

			var ids []string
			for i, user := range []string{"u1", "u2", "u1"} {
				score := 50 + i
				a, err := s.CreateAttempt(ctx, Attempt{
					ExamID: "e1", UserID: user, Score: &score, Grade: assessment.GradeF,
					EarnedPoints: 1, TotalPoints: 2, NeedsManualReview: true,
					Answers:     []assessment.Answer{{QuestionID: "q1", SelectedOptionIDs: []string{"a"}}},
					SubmittedAt: base.Add(time.Duration(i) * time.Minute),
				})
				require.NoError(t, err)
				require.NotEmpty(t, a.ID)
				ids = append(ids, a.ID)
			}

			got, err := s.GetAttempt(ctx, ids[0])
			require.NoError(t, err)
			assert.Equal(t, 50, *got.Score)
			assert.True(t, got.NeedsManualReview)
			assert.Equal(t, base, got.SubmittedAt)
			assert.Equal(t, []string{"a"}, got.Answers[0].SelectedOptionIDs)
			assert.Nil(t, got.Override)

			mine, err := s.ListAttempts(ctx, AttemptListOpts{UserID: "u1"})
			require.NoError(t, err)
			require.Len(t, mine, 2)
			assert.Equal(t, ids[2], mine[0].ID, "newest first")

			page, err := s.ListAttempts(ctx, AttemptListOpts{ExamID: "e1", Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, ids[1], page[0].ID)

			at := base.Add(time.Hour)
			ov, err := s.OverrideScore(ctx, ids[0], ScoreOverride{Score: 90, GradedBy: "t1", Comment: "ok", At: at})
			require.NoError(t, err)
			require.NotNil(t, ov.Override)
			assert.Equal(t, 90, *ov.EffectiveScore())
			assert.Equal(t, assessment.GradeA, ov.EffectiveGrade())
			assert.Equal(t, 50, *ov.Score)
			assert.Equal(t, at, ov.Override.At)

			_, err = s.OverrideScore(ctx, "missing", ScoreOverride{Score: 1, At: at})
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.GetAttempt(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestListWindow(t *testing.T) {
	cases := []struct {
		in                    AttemptListOpts
		wantLimit, wantOffset int
	}{
		{AttemptListOpts{}, 50, 0},
		{AttemptListOpts{Limit: 10, Offset: 5}, 10, 5},
		{AttemptListOpts{Limit: 500, Offset: -3}, 50, 0},
	}
	for _, tc := range cases {
		l, o := tc.in.window()
		assert.Equal(t, tc.wantLimit, l)
		assert.Equal(t, tc.wantOffset, o)
	}
}
