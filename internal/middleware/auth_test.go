package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("test-secret")

type fakeSource struct {
	perms map[string][]string
	calls int
	err   error
}

func (f *fakeSource) GetPermissionsByRoleName(_ context.Context, role string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.perms[role], nil
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "6f1c2a84-0000-4000-8000-000000000001",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)
	return s
}

func router(auth *Auth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/vouchers", auth.RequirePermission("vouchers.read"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(ContextUserID), "role": c.GetString(ContextUserRole)})
	})
	return r
}

func do(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/vouchers", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequirePermission(t *testing.T) {
	src := &fakeSource{perms: map[string][]string{
		"accounting": {"vouchers.read", "vouchers.write"},
		"staff":      {"requests.read"},
	}}
	r := router(NewAuth(secret, src, NewMemoryCache(time.Minute), zap.NewNop()))

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer not-a-jwt").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+token(t, "staff")).Code)

	w := do(r, "Bearer "+token(t, "accounting"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"accounting"`)

	// admin bypasses the permission lookup entirely
	before := src.calls
	assert.Equal(t, http.StatusOK, do(r, "Bearer "+token(t, "admin")).Code)
	assert.Equal(t, before, src.calls)
}

func TestRequirePermission_SourceFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	r := router(NewAuth(secret, src, nil, zap.NewNop()))
	assert.Equal(t, http.StatusInternalServerError, do(r, "Bearer "+token(t, "accounting")).Code)
}

func TestRequireActionPermission(t *testing.T) {
	src := &fakeSource{perms: map[string][]string{
		"accounting": {"vouchers.write", "vouchers.audit"},
		"bursar":     {"vouchers.write"},
	}}
	auth := NewAuth(secret, src, NewMemoryCache(time.Minute), zap.NewNop())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/vouchers/:id/transitions",
		auth.RequirePermission("vouchers.write"),
		auth.RequireActionPermission(map[string]string{"audit": "vouchers.audit"}),
		func(c *gin.Context) {
			var req struct {
				Action string `json:"action" binding:"required"`
			}
			if err := c.ShouldBindBodyWithJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"action": req.Action})
		})

	post := func(role, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/vouchers/1/transitions", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token(t, role))
		r.ServeHTTP(w, req)
		return w
	}

	w := post("bursar", `{"action":"audit"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "vouchers.audit")

	// unmapped actions fall through to the route permission
	w = post("bursar", `{"action":"release"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"release"`)

	// the handler still sees the body after the middleware read it
	w = post("accounting", `{"action":"audit"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"action":"audit"`)

	assert.Equal(t, http.StatusOK, post("admin", `{"action":"audit"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post("accounting", `not json`).Code)
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set(ctx, "bursar", []string{"vouchers.read"})
	codes, ok := cache.Get(ctx, "bursar")
	require.True(t, ok)
	assert.Equal(t, []string{"vouchers.read"}, codes)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(ctx, "bursar")
	assert.False(t, ok)

	cache.Set(ctx, "a", nil)
	cache.Set(ctx, "b", nil)
	cache.Invalidate(ctx, "")
	_, ok = cache.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := NewRedisCache(client, time.Minute, zap.NewNop())

	_, ok := cache.Get(ctx, "accounting")
	assert.False(t, ok)

	cache.Set(ctx, "accounting", []string{"vouchers.read", "vouchers.write"})
	codes, ok := cache.Get(ctx, "accounting")
	require.True(t, ok)
	assert.Equal(t, []string{"vouchers.read", "vouchers.write"}, codes)
	assert.True(t, mr.Exists("perm:role:accounting"))

	mr.FastForward(2 * time.Minute)
	_, ok = cache.Get(ctx, "accounting")
	assert.False(t, ok)

	cache.Set(ctx, "bursar", []string{"x"})
	cache.Set(ctx, "staff", []string{"y"})
	cache.Invalidate(ctx, "")
	assert.False(t, mr.Exists("perm:role:bursar"))
	assert.False(t, mr.Exists("perm:role:staff"))
}

func TestAuth_UsesSharedCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeSource{perms: map[string][]string{"accounting": {"vouchers.read"}}}
	first := NewAuth(secret, src, NewRedisCache(client, time.Minute, zap.NewNop()), zap.NewNop())
	second := NewAuth(secret, src, NewRedisCache(client, time.Minute, zap.NewNop()), zap.NewNop())

	_, err := first.PermissionsForRole(context.Background(), "accounting")
	require.NoError(t, err)
	_, err = second.PermissionsForRole(context.Background(), "accounting")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	second.ClearPermissionCache(context.Background(), "accounting")
	_, err = first.PermissionsForRole(context.Background(), "accounting")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
