package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store/memstore"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var secret = []byte("test-secret")

const uid = "7d8f9c1e-2b3a-4c5d-8e9f-0a1b2c3d4e5f"

func sign(t *testing.T, key []byte, method jwt.SigningMethod, mutate func(*Claims)) string {
	t.Helper()
	now := time.Now()
	c := &Claims{
		Name: "Tom Tech", Email: "Tom@Example.com", Role: "technicien",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ID:        "jti-1",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(c)
	}
	s, err := jwt.NewWithClaims(method, c).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, jti, _ string, _ time.Time) (bool, error) {
	return r[jti], nil
}

func whoami(c *gin.Context) {
	a, _ := ActorFrom(c)
	c.JSON(http.StatusOK, H{"id": a.UserID, "role": a.Role, "name": a.Name})
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthRequired(secret, revokedSet{"jti-revoked": true}), whoami)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign(t, []byte("other"), jwt.SigningMethodHS256, nil), http.StatusUnauthorized},
		{"wrong alg", "Bearer " + sign(t, secret, jwt.SigningMethodHS384, nil), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		}), http.StatusUnauthorized},
		{"no expiry", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, func(c *Claims) { c.ExpiresAt = nil }), http.StatusUnauthorized},
		{"subject not uuid", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, func(c *Claims) { c.Subject = "tom" }), http.StatusUnauthorized},
		{"unknown role", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, func(c *Claims) { c.Role = "root" }), http.StatusForbidden},
		{"revoked", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, func(c *Claims) { c.ID = "jti-revoked" }), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, secret, jwt.SigningMethodHS256, nil), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
			if tt.want != http.StatusOK {
				return
			}
			var body map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &body)
			if body["id"] != uid || body["role"] != string(models.RoleTechnician) || body["name"] != "Tom Tech" {
				t.Errorf("actor = %v", body)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		role models.Role
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleTechnicalManager, http.StatusOK},
		{models.RoleTechnician, http.StatusForbidden},
		{models.RoleEmployee, http.StatusForbidden},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { SetActor(c, workflow.Actor{UserID: uid, Role: tt.role}) },
			RequireRoles(models.RoleAdmin, models.RoleTechnicalManager),
			func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != tt.want {
			t.Errorf("%s: status %d, want %d", tt.role, w.Code, tt.want)
		}
	}
}

func TestSyncUserProvisionsOncePerWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := workflow.NewUsers(workflow.Deps{Store: memstore.New(), Log: zerolog.Nop()})
	calls := 0
	allow := func(context.Context, string, time.Duration) bool {
		calls++
		return calls == 1
	}
	r := gin.New()
	r.GET("/me", AuthRequired(secret, nil), SyncUser(users, allow, time.Minute, zerolog.Nop()), whoami)

	tok := "Bearer " + sign(t, secret, jwt.SigningMethodHS256, nil)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d", w.Code)
		}
	}
	if calls != 2 {
		t.Errorf("throttle consulted %d times", calls)
	}
	u, err := users.Get(context.Background(), uid)
	if err != nil {
		t.Fatalf("user not provisioned: %v", err)
	}
	if u.Email != "tom@example.com" || u.Role != models.RoleTechnician || u.LastSeenAt == nil {
		t.Errorf("user = %+v", u)
	}
}
