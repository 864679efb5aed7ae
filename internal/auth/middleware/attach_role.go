package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-progress/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the users table's, so a
// demoted user loses permissions before their token expires.
// allowClaimFallback=true in offline mode; false online.
func AttachRoleFromDB(users *UserRepo, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := rbac.SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			u, err := users.Find(ctx, sub)
			switch {
			case err == nil && u.Role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, u.Role)))

			case errors.Is(err, ErrUserNotFound) || isUsersTableMissing(err):
				// the config admin has no row
				if claimRole == rbac.RoleAdmin || (allowClaimFallback && claimRole != "") {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)

			default:
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}
