package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(map[string][]string{
		"grader": {"attempt:*"},
		"viewer": {"course:view"},
	})
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"grader", "attempt:grade", true},
		{"grader", "attempt:view-all", true},
		{"grader", "course:view", false},
		{"viewer", "course:view", true},
		{"viewer", "course:create", false},
		{"nobody", "course:view", false},
	}
	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.perm, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Has(tc.role, tc.perm))
		})
	}
	assert.True(t, c.Any("viewer", "course:create", "course:view"))
	assert.False(t, c.Any("viewer", "course:create", "attempt:grade"))
}

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has(RoleStudent, "attempt:submit"))
	assert.False(t, c.Has(RoleStudent, "attempt:grade"))
	assert.False(t, c.Has(RoleStudent, "purchase:grant"))
	assert.True(t, c.Has(RoleTeacher, "attempt:grade"))
	assert.False(t, c.Has(RoleTeacher, "purchase:grant"))
	assert.True(t, c.Has(RoleAdmin, "purchase:grant"))
	assert.True(t, KnownRole(RoleTeacher))
	assert.False(t, KnownRole("guest"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	serve := func(h http.Handler, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithRole(req.Context(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, serve(Require("attempt:submit")(ok), RoleStudent))
	assert.Equal(t, http.StatusForbidden, serve(Require("attempt:grade")(ok), RoleStudent))
	assert.Equal(t, http.StatusForbidden, serve(Require("attempt:submit")(ok), ""))
	assert.Equal(t, http.StatusNoContent, serve(RequireAny("attempt:view-own", "attempt:view-all")(ok), RoleTeacher))
	assert.Equal(t, http.StatusForbidden, serve(RequireAny("purchase:grant", "users:upsert")(ok), RoleTeacher))
	assert.Equal(t, http.StatusNoContent, serve(RequireAny("purchase:grant", "users:upsert")(ok), RoleAdmin))
}

func TestContextValues(t *testing.T) {
	ctx := WithSubject(WithRole(context.Background(), RoleStudent), "u1")
	assert.Equal(t, "u1", SubjectFromContext(ctx))
	assert.Equal(t, RoleStudent, RoleFromContext(ctx))
	assert.True(t, Allowed(ctx, "attempt:view-own"))
	assert.False(t, Allowed(ctx, "attempt:view-all"))
	assert.Equal(t, "", SubjectFromContext(context.Background()))
	assert.False(t, Allowed(context.Background(), "course:view"))
}
