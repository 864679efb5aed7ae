package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-progress/internal/db"
	"github.com/mind-engage/mindengage-progress/internal/rbac"
)

func openDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	h, err := db.Open(context.Background(), db.DriverSQLite, db.MemoryDSN("auth_"+name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func newService(t *testing.T, name string) (*AuthService, *UserRepo) {
	t.Helper()
	users := NewUserRepo(openDB(t, name))
	hash, err := bcrypt.GenerateFromPassword([]byte("root-pw"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService("test-secret", users, "root", string(hash)), users
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("s3cret", nil, "", "")
	tok, err := a.IssueJWT("u1", rbac.RoleStudent)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Sub)
	assert.Equal(t, rbac.RoleStudent, c.Role)

	_, err = NewAuthService("other", nil, "", "").Parse(tok)
	assert.Error(t, err)

	a.now = func() time.Time { return time.Now().Add(-9 * time.Hour) }
	expired, err := a.IssueJWT("u1", rbac.RoleStudent)
	require.NoError(t, err)
	_, err = NewAuthService("s3cret", nil, "", "").Parse(expired)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Sub: "u1", Role: rbac.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.Parse(unsigned)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	a, users := newService(t, "authenticate")
	ctx := context.Background()
	_, err := users.Upsert(ctx, "alice", rbac.RoleStudent, "pw1")
	require.NoError(t, err)

	u, err := a.Authenticate(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleStudent, u.Role)
	assert.NotEmpty(t, u.ID)

	_, err = a.Authenticate(ctx, "alice", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = a.Authenticate(ctx, "bob", "pw1")
	assert.ErrorIs(t, err, ErrBadCredentials)

	admin, err := a.Authenticate(ctx, "root", "root-pw")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, admin.Role)
	_, err = a.Authenticate(ctx, "root", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUpsertAndChangePassword(t *testing.T) {
	_, users := newService(t, "upsert")
	ctx := context.Background()

	_, err := users.Upsert(ctx, "carol", rbac.RoleStudent, "")
	assert.ErrorIs(t, err, ErrPasswordMissing)
	_, err = users.Upsert(ctx, "carol", "wizard", "pw")
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = users.Find(ctx, "carol")
	assert.ErrorIs(t, err, ErrUserNotFound)

	first, err := users.Upsert(ctx, "carol", rbac.RoleStudent, "pw")
	require.NoError(t, err)
	second, err := users.Upsert(ctx, "carol", rbac.RoleTeacher, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PasswordHash, second.PasswordHash)

	got, err := users.Find(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleTeacher, got.Role)

	assert.ErrorIs(t, users.ChangePassword(ctx, first.ID, "bad", "new"), ErrBadCredentials)
	assert.ErrorIs(t, users.ChangePassword(ctx, first.ID, "pw", ""), ErrPasswordMissing)
	require.NoError(t, users.ChangePassword(ctx, first.ID, "pw", "new"))
	got, err = users.Find(ctx, "carol")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("new")))
	assert.ErrorIs(t, users.ChangePassword(ctx, "ghost", "x", "y"), ErrUserNotFound)
}

func TestLoginAndMiddleware(t *testing.T) {
	a, users := newService(t, "login")
	_, err := users.Upsert(context.Background(), "dave", rbac.RoleTeacher, "pw")
	require.NoError(t, err)

	login := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		LoginHandler(a)(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		return rec
	}
	assert.Equal(t, http.StatusBadRequest, login(`{`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(`{"username":"dave","password":"x"}`).Code)

	rec := login(`{"username":"dave","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, rbac.RoleTeacher, out["role"])

	var sub, role string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = rbac.SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+out["access_token"])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, sub)
	assert.Equal(t, rbac.RoleTeacher, role)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAttachRoleFromDB(t *testing.T) {
	_, users := newService(t, "attach")
	u, err := users.Upsert(context.Background(), "erin", rbac.RoleStudent, "pw")
	require.NoError(t, err)

	serve := func(sub, claimRole string, fallback bool) (int, string) {
		var seen string
		h := AttachRoleFromDB(users, fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = rbac.RoleFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := rbac.WithRole(rbac.WithSubject(req.Context(), sub), claimRole)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(ctx))
		return rec.Code, seen
	}

	code, role := serve(u.ID, rbac.RoleTeacher, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, rbac.RoleStudent, role, "table role wins over the claim")

	code, role = serve("root", rbac.RoleAdmin, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, rbac.RoleAdmin, role)

	code, _ = serve("stranger", rbac.RoleTeacher, false)
	assert.Equal(t, http.StatusForbidden, code)

	code, role = serve("stranger", rbac.RoleTeacher, true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, rbac.RoleTeacher, role)
}

func TestChangePasswordHandler(t *testing.T) {
	_, users := newService(t, "changepw")
	u, err := users.Upsert(context.Background(), "fay", rbac.RoleStudent, "old")
	require.NoError(t, err)

	call := func(sub, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/password", strings.NewReader(body))
		if sub != "" {
			req = req.WithContext(rbac.WithSubject(req.Context(), sub))
		}
		rec := httptest.NewRecorder()
		ChangePasswordHandler(users)(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, call("", `{}`))
	assert.Equal(t, http.StatusBadRequest, call(u.ID, `{"old_password":"old"}`))
	assert.Equal(t, http.StatusForbidden, call(u.ID, `{"old_password":"x","new_password":"n"}`))
	assert.Equal(t, http.StatusNoContent, call(u.ID, `{"old_password":"old","new_password":"n"}`))
}
