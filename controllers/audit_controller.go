package controllers

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/store"

	"github.com/gin-gonic/gin"
)

type AuditController struct{ *Srv }

func NewAuditController(s *Srv) *AuditController { return &AuditController{Srv: s} }

// GET /api/audit?entity=&entityId=
func (ac *AuditController) List(c *gin.Context) {
	res, err := ac.Audit.List(c.Request.Context(), store.TransitionQuery{
		Entity:   c.Query("entity"),
		EntityID: c.Query("entityId"),
		Page:     pageParams(c),
	})
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/auth/whoami
func (ac *AuditController) WhoAmI(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	u, err := ac.Users.Get(c.Request.Context(), a.UserID)
	if err != nil {
		// 首次请求时用户可能尚未同步
		c.JSON(http.StatusOK, app.H{"userID": a.UserID, "name": a.Name, "role": a.Role})
		return
	}
	c.JSON(http.StatusOK, app.H{"userID": u.ID, "name": u.Name, "email": u.Email, "role": a.Role, "lastSeenAt": u.LastSeenAt})
}

// POST /api/auth/logout revokes the presented token until it expires.
func (ac *AuditController) Logout(c *gin.Context) {
	cl, ok := app.TokenFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	if ac.Revoked != nil && cl.ID != "" && cl.ExpiresAt != nil {
		if err := ac.Revoked.Revoke(c.Request.Context(), cl.ID, cl.ExpiresAt.Time); err != nil {
			ac.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
