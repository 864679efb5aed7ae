package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutExam(ctx context.Context, e assessment.Exam) error {
	qj, err := json.Marshal(e.Questions)
	if err != nil {
		return err
	}
	var threshold sql.NullInt64
	if e.PassThreshold != nil {
		threshold = sql.NullInt64{Int64: int64(*e.PassThreshold), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exams (id,chapter_id,title,pass_threshold,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET chapter_id=EXCLUDED.chapter_id, title=EXCLUDED.title,
			pass_threshold=EXCLUDED.pass_threshold, questions_json=EXCLUDED.questions_json`,
		e.ID, e.ChapterID, e.Title, threshold, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (assessment.Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,chapter_id,title,pass_threshold,questions_json FROM exams WHERE id=$1`, id)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (s *SQLStore) ExamForChapter(ctx context.Context, chapterID string) (assessment.Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,chapter_id,title,pass_threshold,questions_json
		FROM exams WHERE chapter_id=$1 ORDER BY id LIMIT 1`, chapterID)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.Exam{}, fmt.Errorf("exam for chapter %s: %w", chapterID, ErrNotFound)
	}
	return e, err
}

func scanExam(row *sql.Row) (assessment.Exam, error) {
	var (
		e         assessment.Exam
		threshold sql.NullInt64
		qjson     string
	)
	if err := row.Scan(&e.ID, &e.ChapterID, &e.Title, &threshold, &qjson); err != nil {
		return assessment.Exam{}, err
	}
	if threshold.Valid {
		v := int(threshold.Int64)
		e.PassThreshold = &v
	}
	if err := json.Unmarshal([]byte(qjson), &e.Questions); err != nil {
		return assessment.Exam{}, fmt.Errorf("exam %s questions: %w", e.ID, err)
	}
	return e, nil
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Answers == nil {
		a.Answers = []assessment.Answer{}
	}
	aj, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, err
	}
	var score sql.NullInt64
	if a.Score != nil {
		score = sql.NullInt64{Int64: int64(*a.Score), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,user_id,score,grade,earned_points,total_points,needs_review,answers_json,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ExamID, a.UserID, score, string(a.Grade), a.EarnedPoints, a.TotalPoints,
		a.NeedsManualReview, string(aj), a.SubmittedAt.UnixMilli())
	if err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, a.ID)
}

const attemptCols = `id,exam_id,user_id,score,grade,earned_points,total_points,needs_review,answers_json,submitted_at,
	override_score,override_by,override_comment,override_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a             Attempt
		score         sql.NullInt64
		grade, ajson  string
		submittedAt   int64
		overrideScore sql.NullInt64
		overrideBy    sql.NullString
		overrideNote  sql.NullString
		overrideAt    sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.ExamID, &a.UserID, &score, &grade, &a.EarnedPoints, &a.TotalPoints,
		&a.NeedsManualReview, &ajson, &submittedAt,
		&overrideScore, &overrideBy, &overrideNote, &overrideAt); err != nil {
		return Attempt{}, err
	}
	if score.Valid {
		v := int(score.Int64)
		a.Score = &v
	}
	a.Grade = assessment.Letter(grade)
	a.SubmittedAt = time.UnixMilli(submittedAt).UTC()
	if err := json.Unmarshal([]byte(ajson), &a.Answers); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s answers: %w", a.ID, err)
	}
	if overrideScore.Valid {
		a.Override = &ScoreOverride{
			Score:    int(overrideScore.Int64),
			GradedBy: overrideBy.String,
			Comment:  overrideNote.String,
			At:       time.UnixMilli(overrideAt.Int64).UTC(),
		}
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	limit, offset := opts.window()
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE ($1 = '' OR exam_id = $1) AND ($2 = '' OR user_id = $2)
		ORDER BY submitted_at DESC, id DESC
		LIMIT $3 OFFSET $4`, opts.ExamID, opts.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) OverrideScore(ctx context.Context, attemptID string, o ScoreOverride) (Attempt, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts
		SET override_score=$1, override_by=$2, override_comment=$3, override_at=$4
		WHERE id=$5`, o.Score, o.GradedBy, o.Comment, o.At.UnixMilli(), attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return s.GetAttempt(ctx, attemptID)
}
