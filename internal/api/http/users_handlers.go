package http

import (
	"net/http"
	"strings"

	auth "github.com/mind-engage/mindengage-progress/internal/auth/middleware"
)

type userRow struct {
	Username string `json:"username" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=student teacher admin"`
	Password string `json:"password,omitempty"` // required for new users
}

// POST /users  { "users": [ { "username": "...", "role": "...", "password": "..." } ] }
// Upserts by username; an omitted password keeps the existing one.
func UpsertUsersHandler(users *auth.UserRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Users []userRow `json:"users" validate:"required,min=1,max=1000,unique=Username,dive"`
		}
		if !decode(w, r, &req) {
			return
		}
		out := make([]auth.User, 0, len(req.Users))
		for _, row := range req.Users {
			u, err := users.Upsert(r.Context(), row.Username, strings.ToLower(row.Role), row.Password)
			if err != nil {
				writeError(w, r, err)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})
	}
}
