package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-progress/internal/rbac"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrPasswordMissing = errors.New("password required")
	ErrUnknownRole     = errors.New("unknown role")
)

const bcryptCost = 12

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}

// UserRepo reads and writes the users table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Find looks a user up by id or username (dev tokens often carry the username
// as subject).
func (r *UserRepo) Find(ctx context.Context, idOrName string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, role, password_hash FROM users WHERE id=$1 OR username=$1`,
		idOrName,
	).Scan(&u.ID, &u.Username, &u.Role, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("%s: %w", idOrName, ErrUserNotFound)
	}
	return u, err
}

// Upsert creates or updates a user keyed by username. An empty password keeps
// the stored hash of an existing user and is rejected for a new one. The role
// must exist in the default policy.
func (r *UserRepo) Upsert(ctx context.Context, username, role, password string) (User, error) {
	username = strings.TrimSpace(username)
	if !rbac.KnownRole(role) {
		return User{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	existing, err := r.Find(ctx, username)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound):
		if password == "" {
			return User{}, ErrPasswordMissing
		}
		existing = User{ID: uuid.NewString(), Username: username}
	default:
		return User{}, err
	}

	existing.Role = role
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return User{}, err
		}
		existing.PasswordHash = string(hash)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO users (id, username, role, password_hash) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET role=EXCLUDED.role, password_hash=EXCLUDED.password_hash`,
		existing.ID, existing.Username, existing.Role, existing.PasswordHash)
	if err != nil {
		return User{}, err
	}
	return existing, nil
}

// ChangePassword replaces the hash after verifying the old password.
func (r *UserRepo) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordMissing
	}
	u, err := r.Find(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), u.ID)
	return err
}
