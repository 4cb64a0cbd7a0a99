package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/store-rating-api/internal/config"
	"github.com/store-rating-api/internal/domain"
	jwtinfra "github.com/store-rating-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticUsers map[int64]*domain.User

func (s staticUsers) Get(_ context.Context, id int64) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func newTestRouter(t *testing.T) (http.Handler, *jwtinfra.Provider) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)
	log, _ := test.NewNullLogger()

	users := staticUsers{
		1: {ID: 1, Role: domain.RoleSuperAdmin},
		2: {ID: 2, Role: domain.RoleUser},
	}
	h, closeFn := NewRouter(&config.Config{AllowedOrigins: []string{"http://localhost:3000"}}, &Deps{
		Tokens: p,
		Lookup: users,
		Log:    log,
	})
	t.Cleanup(closeFn)
	return h, p
}

func bearer(t *testing.T, p *jwtinfra.Provider, id int64, role domain.Role) string {
	t.Helper()
	tok, err := p.Sign(id, role)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"OK"`)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	h, _ := newTestRouter(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/user-details"},
		{http.MethodPut, "/api/auth/update-password"},
		{http.MethodGet, "/api/users/profile"},
		{http.MethodGet, "/api/super-admin/users"},
		{http.MethodGet, "/api/stores/with-ratings"},
		{http.MethodPost, "/api/stores/1/rate"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestRouter_DeletedAccountTokenRejected(t *testing.T) {
	h, p := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	req.Header.Set("Authorization", bearer(t, p, 99, domain.RoleUser))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Token is not valid")
}

func TestRouter_RoleGuards(t *testing.T) {
	h, p := newTestRouter(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodDelete, "/api/users/1"},
		{http.MethodPost, "/api/super-admin/create-user"},
		{http.MethodPost, "/api/stores/create"},
		{http.MethodDelete, "/api/stores/1"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", bearer(t, p, 2, domain.RoleUser))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, route.path)
	}
}

func TestRouter_StoredRoleWinsOverTokenRole(t *testing.T) {
	h, p := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/super-admin/users", nil)
	// Token claims super_admin, but account 2 is a plain user.
	req.Header.Set("Authorization", bearer(t, p, 2, domain.RoleSuperAdmin))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouter_PublicValidationRunsBeforeServices(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"email":"bad"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
