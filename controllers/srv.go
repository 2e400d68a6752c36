// controllers/srv.go
package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/labels"
	"Gin_postgres_redis_equipment_tool/session"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Srv struct {
	app.Services
	Log     zerolog.Logger
	Labels  labels.Layout
	Revoked *session.RevocationStore // nil disables logout revocation
}

func GetSrv(a *app.App) *Srv {
	layout := labels.DefaultLayout
	layout.Prefix = a.Config.LabelPrefix
	return &Srv{Services: a.Services, Log: a.Log, Labels: layout, Revoked: a.Revocations()}
}

// --- helpers ---

// caller returns the verified actor or aborts with 401.
func caller(c *gin.Context) (workflow.Actor, bool) {
	a, ok := app.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
	}
	return a, ok
}

func bind(c *gin.Context, in any) bool {
	if err := c.ShouldBindJSON(in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid request: " + err.Error(), "kind": workflow.KindValidation})
		return false
	}
	return true
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, in any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bind(c, in)
}

func pageParams(c *gin.Context) store.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	return store.Page{Page: page, Size: size}.Normalize()
}

// timeQuery parses an RFC 3339 timestamp or a plain date.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, true
		}
	}
	c.JSON(http.StatusBadRequest, app.H{"error": key + " must be a date", "kind": workflow.KindValidation})
	return nil, false
}

func boolQuery(c *gin.Context, key string) bool {
	b, _ := strconv.ParseBool(c.Query(key))
	return b
}
