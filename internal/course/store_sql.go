package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-progress/internal/db"
	"github.com/mind-engage/mindengage-progress/internal/progress"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

// PutCourse upserts the course and replaces its chapter list. Chapters
// dropped from the list are deleted together with their progress rows.
func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO courses (id,title,created_at) VALUES ($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title`,
			c.ID, c.Title, time.Now().Unix()); err != nil {
			return err
		}

		keep := make(map[string]bool, len(c.Chapters))
		for _, ch := range c.Chapters {
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT course_id FROM chapters WHERE id=$1`, ch.ID).Scan(&owner)
			switch {
			case err == nil && owner != c.ID:
				return fmt.Errorf("chapter %s (course %s): %w", ch.ID, owner, ErrChapterTaken)
			case err != nil && !errors.Is(err, sql.ErrNoRows):
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO chapters (id,course_id,title,position,is_free,is_published)
				VALUES ($1,$2,$3,$4,$5,$6)
				ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, position=EXCLUDED.position,
					is_free=EXCLUDED.is_free, is_published=EXCLUDED.is_published`,
				ch.ID, c.ID, ch.Title, ch.Position, ch.IsFree, ch.IsPublished); err != nil {
				return err
			}
			keep[ch.ID] = true
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM chapters WHERE course_id=$1`, c.ID)
		if err != nil {
			return err
		}
		var stale []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if !keep[id] {
				stale = append(stale, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_progress WHERE chapter_id=$1`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id=$1`, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	var c Course
	err := s.db.QueryRowContext(ctx, `SELECT id,title FROM courses WHERE id=$1`, id).Scan(&c.ID, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Course{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id,course_id,title,position,is_free,is_published
		FROM chapters WHERE course_id=$1 ORDER BY position, id`, id)
	if err != nil {
		return Course{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position, &ch.IsFree, &ch.IsPublished); err != nil {
			return Course{}, err
		}
		c.Chapters = append(c.Chapters, ch)
	}
	return c, rows.Err()
}

func (s *SQLStore) CourseForChapter(ctx context.Context, chapterID string) (Course, error) {
	var courseID string
	err := s.db.QueryRowContext(ctx, `SELECT course_id FROM chapters WHERE id=$1`, chapterID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	if err != nil {
		return Course{}, err
	}
	return s.GetCourse(ctx, courseID)
}

func (s *SQLStore) ChapterProgress(ctx context.Context, userID, courseID string) ([]progress.ChapterProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.chapter_id, p.is_completed, p.completed_at
		FROM chapter_progress p JOIN chapters c ON c.id = p.chapter_id
		WHERE p.user_id=$1 AND c.course_id=$2
		ORDER BY c.position, c.id`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []progress.ChapterProgress
	for rows.Next() {
		p := progress.ChapterProgress{UserID: userID}
		var at sql.NullInt64
		if err := rows.Scan(&p.ChapterID, &p.IsCompleted, &at); err != nil {
			return nil, err
		}
		if at.Valid {
			t := time.UnixMilli(at.Int64).UTC()
			p.CompletedAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkChapterCompleted(ctx context.Context, userID, chapterID string, at time.Time) (bool, error) {
	var created bool
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM chapters WHERE id=$1`, chapterID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
			}
			return err
		}
		// the WHERE on the update keeps an existing completion untouched
		res, err := tx.ExecContext(ctx, `INSERT INTO chapter_progress (user_id,chapter_id,is_completed,completed_at)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (user_id,chapter_id) DO UPDATE SET is_completed=EXCLUDED.is_completed, completed_at=EXCLUDED.completed_at
			WHERE chapter_progress.is_completed = $5`,
			userID, chapterID, true, at.UnixMilli(), false)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n > 0
		return nil
	})
	return created, err
}

func (s *SQLStore) HasPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM purchases WHERE user_id=$1 AND course_id=$2`, userID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLStore) GrantPurchase(ctx context.Context, userID, courseID string) error {
	if _, err := s.GetCourse(ctx, courseID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO purchases (user_id,course_id,created_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id,course_id) DO NOTHING`, userID, courseID, time.Now().Unix())
	return err
}

func (s *SQLStore) GetCertificate(ctx context.Context, userID, courseID string) (Certificate, bool, error) {
	c := Certificate{UserID: userID, CourseID: courseID}
	var issued int64
	err := s.db.QueryRowContext(ctx, `SELECT id, issued_at FROM certificates WHERE user_id=$1 AND course_id=$2`,
		userID, courseID).Scan(&c.ID, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return Certificate{}, false, nil
	}
	if err != nil {
		return Certificate{}, false, err
	}
	c.IssuedAt = time.UnixMilli(issued).UTC()
	return c, true, nil
}

// IssueCertificate relies on UNIQUE(user_id, course_id): a concurrent second
// issuer inserts nothing and gets the winner's certificate back.
func (s *SQLStore) IssueCertificate(ctx context.Context, userID, courseID string, at time.Time) (Certificate, bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO certificates (id,user_id,course_id,issued_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id,course_id) DO NOTHING`, uuid.NewString(), userID, courseID, at.UnixMilli())
	if err != nil {
		return Certificate{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Certificate{}, false, err
	}
	c, ok, err := s.GetCertificate(ctx, userID, courseID)
	if err != nil {
		return Certificate{}, false, err
	}
	if !ok {
		return Certificate{}, false, fmt.Errorf("certificate for %s/%s vanished after insert", userID, courseID)
	}
	return c, n > 0, nil
}
