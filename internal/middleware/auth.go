package middleware

import (
	"net/http"
	"strings"

	"requisiciones/internal/model"
	"requisiciones/internal/service"
	"requisiciones/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ActorKey        = "actor"
	accessTokenName = "access_token"
)

// Claims are embedded in every access token issued at login.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, token string, maxAge int) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite, secure := http.SameSiteLaxMode, false
	if gin.Mode() == gin.ReleaseMode {
		sameSite, secure = http.SameSiteNoneMode, true
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenName, token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie.
func ClearTokenCookie(c *gin.Context) {
	SetTokenCookie(c, "", -1)
}

func tokenFromRequest(c *gin.Context) (string, bool) {
	// Try cookie first, fallback to Authorization header
	if token, err := c.Cookie(accessTokenName); err == nil && token != "" {
		return token, true
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// ParseToken validates a signed access token and returns the actor it names.
func ParseToken(tokenString string, secret []byte) (service.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return service.Actor{}, err
	}
	if !token.Valid {
		return service.Actor{}, jwt.ErrTokenInvalidClaims
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return service.Actor{}, jwt.ErrTokenInvalidSubject
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{ID: id, Name: claims.Name, Role: role}, nil
}

// Auth validates the access token and stores the actor in the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := tokenFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		actor, err := ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token: "+err.Error()))
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// RequireRole rejects actors whose role is not listed. Must run after Auth.
func RequireRole(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// ActorFrom returns the authenticated actor stored by Auth.
func ActorFrom(c *gin.Context) (service.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}
