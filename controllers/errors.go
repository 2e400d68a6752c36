package controllers

import (
	"errors"
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
)

func statusOf(k workflow.Kind) int {
	switch k {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindInvalidState, workflow.KindConflict:
		return http.StatusConflict
	case workflow.KindForbidden:
		return http.StatusForbidden
	case workflow.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes the error response for a workflow failure. Anything that is
// not a typed workflow error is reported as a bare 500.
func (s *Srv) fail(c *gin.Context, err error) {
	var we *workflow.Error
	if errors.As(err, &we) {
		c.JSON(statusOf(we.Kind), app.H{"error": we.Msg, "kind": we.Kind})
		return
	}
	_ = c.Error(err)
	s.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, app.H{"error": "internal error"})
}
