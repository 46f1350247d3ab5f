package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"procurement/internal/model"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Context keys set by the auth middleware
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// PermissionSource resolves the permission codes granted to a role
type PermissionSource interface {
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

// Auth validates access tokens and enforces permission codes per route
type Auth struct {
	secret []byte
	source PermissionSource
	cache  PermissionCache
	log    *zap.Logger
}

func NewAuth(secret []byte, source PermissionSource, cache PermissionCache, log *zap.Logger) *Auth {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	return &Auth{secret: secret, source: source, cache: cache, log: log}
}

// SetTokenCookie stores the access token as an HttpOnly cookie
func SetTokenCookie(c *gin.Context, token string, maxAge int, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie
func ClearTokenCookie(c *gin.Context, secure bool) {
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
}

// Authenticate only requires a valid token
func (a *Auth) Authenticate() gin.HandlerFunc {
	return a.RequirePermission()
}

// RequirePermission validates the JWT and checks that the user's role holds every listed
// permission code. The admin role passes every check.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Authorization is missing", nil))
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid authorization format. Expected 'Bearer <token>'", nil))
				return
			}
			tokenString = parts[1]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token", nil))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error("Invalid token claims", nil))
			return
		}

		userRole, ok := claims["role"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error("Role not found in token", nil))
			return
		}
		userID, _ := claims["sub"].(string)

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, userRole)

		if a.enforce(c, userRole, requiredPerms) {
			c.Next()
		}
	}
}

// RequireActionPermission gates a transition route on the permission mapped to the body's
// "action" field. It must follow RequirePermission, and handlers behind it must bind with
// ShouldBindBodyWithJSON since the body has been read here.
func (a *Auth) RequireActionPermission(perms map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Action string `json:"action"`
		}
		// a malformed body is reported by the handler's own binding
		_ = c.ShouldBindBodyWithJSON(&body)

		code, ok := perms[body.Action]
		if !ok {
			c.Next()
			return
		}
		if a.enforce(c, c.GetString(ContextUserRole), []string{code}) {
			c.Next()
		}
	}
}

// enforce aborts the request unless role holds every code. Admin holds everything.
func (a *Auth) enforce(c *gin.Context, role string, codes []string) bool {
	if len(codes) == 0 || role == model.RoleAdmin {
		return true
	}

	userPerms, err := a.PermissionsForRole(c.Request.Context(), role)
	if err != nil {
		a.log.Error("permission lookup failed", zap.String("role", role), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error("Failed to verify permissions", nil))
		return false
	}

	for _, required := range codes {
		if !slices.Contains(userPerms, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error("Access denied: missing permission '"+required+"'", nil))
			return false
		}
	}
	return true
}

// PermissionsForRole returns cached or freshly loaded permission codes for a role name
func (a *Auth) PermissionsForRole(ctx context.Context, roleName string) ([]string, error) {
	if codes, ok := a.cache.Get(ctx, roleName); ok {
		return codes, nil
	}

	codes, err := a.source.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	a.cache.Set(ctx, roleName, codes)
	return codes, nil
}

// ClearPermissionCache drops cached permissions for one role, or all roles when empty
func (a *Auth) ClearPermissionCache(ctx context.Context, roleName string) {
	a.cache.Invalidate(ctx, roleName)
}
