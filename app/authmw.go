package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CtxUserID = "userID"
	ctxActor  = "actor"
	ctxEmail  = "email"
	ctxToken  = "token"
)

// Claims is the identity token issued by the external identity provider.
// The subject is the user id.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Revocations answers whether a token was revoked before it expired.
type Revocations interface {
	IsRevoked(ctx context.Context, jti, userID string, issuedAt time.Time) (bool, error)
}

var errNoToken = errors.New("missing bearer token")

func bearer(c *gin.Context) (string, error) {
	h := c.GetHeader("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok && tok != "" {
		return strings.TrimSpace(tok), nil
	}
	// 浏览器的 WebSocket 无法带 Authorization 头
	if tok := c.Query("access_token"); tok != "" && c.IsWebsocket() {
		return tok, nil
	}
	return "", errNoToken
}

// ParseToken verifies an HS256 identity token and its required claims.
func ParseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, errors.New("subject is not a user id")
	}
	return claims, nil
}

// AuthRequired verifies the bearer token, checks revocation (rev may be
// nil) and puts the caller into the context.
func AuthRequired(secret []byte, rev Revocations) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		claims, err := ParseToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid token"})
			return
		}
		role, ok := models.ParseRole(claims.Role)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "unknown role", "kind": workflow.KindForbidden})
			return
		}
		if rev != nil {
			var iat time.Time
			if claims.IssuedAt != nil {
				iat = claims.IssuedAt.Time
			}
			revoked, err := rev.IsRevoked(c.Request.Context(), claims.ID, claims.Subject, iat)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, H{"error": "session check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "token revoked"})
				return
			}
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxToken, claims)
		c.Set(ctxActor, workflow.Actor{UserID: claims.Subject, Name: claims.Name, Role: role})
		c.Next()
	}
}

// ActorFrom returns the caller AuthRequired stored.
func ActorFrom(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(ctxActor)
	if !ok {
		return workflow.Actor{}, false
	}
	a, ok := v.(workflow.Actor)
	return a, ok
}

// SetActor stores a caller directly; tests and internal routes use it in
// place of AuthRequired.
func SetActor(c *gin.Context, a workflow.Actor) {
	c.Set(CtxUserID, a.UserID)
	c.Set(ctxActor, a)
}

// TokenFrom returns the verified claims of the current request.
func TokenFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ctxToken)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*Claims)
	return cl, ok
}

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if a.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden", "kind": workflow.KindForbidden})
	}
}

// Staff is the coarse gate for technician-side operations.
func Staff() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleTechnician, models.RoleTechnicalManager)
}
