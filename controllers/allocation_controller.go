package controllers

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
)

type AllocationController struct{ *Srv }

func NewAllocationController(s *Srv) *AllocationController { return &AllocationController{Srv: s} }

func allocationQuery(c *gin.Context) store.AllocationQuery {
	return store.AllocationQuery{
		Status:         models.AllocationStatus(c.Query("status")),
		ApprovalStatus: models.ApprovalStatus(c.Query("approvalStatus")),
		UserID:         c.Query("userId"),
		MaterielID:     c.Query("materielId"),
		Page:           pageParams(c),
	}
}

// GET /api/allocations?status=&approvalStatus=&userId=&materielId=&overdue=true
func (ac *AllocationController) List(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	res, err := ac.Allocations.List(c.Request.Context(), a, allocationQuery(c), boolQuery(c, "overdue"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/allocations/user/:userId
func (ac *AllocationController) ListForUser(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	res, err := ac.Allocations.ListForUser(c.Request.Context(), a, c.Param("userId"), allocationQuery(c))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ac *AllocationController) Create(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.AllocationInput
	if !bind(c, &in) {
		return
	}
	al, err := ac.Allocations.Create(c.Request.Context(), a, in)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, al)
}

func (ac *AllocationController) Get(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	al, err := ac.Allocations.Get(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}

func (ac *AllocationController) Update(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var p workflow.AllocationPatch
	if !bind(c, &p) {
		return
	}
	al, err := ac.Allocations.Update(c.Request.Context(), a, c.Param("id"), p)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}

func (ac *AllocationController) Approve(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	al, err := ac.Allocations.Approve(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}

func (ac *AllocationController) Reject(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if !bindOptional(c, &in) {
		return
	}
	al, err := ac.Allocations.Reject(c.Request.Context(), a, c.Param("id"), in.Reason)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}

func (ac *AllocationController) Return(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.ReturnInput
	if !bindOptional(c, &in) {
		return
	}
	al, err := ac.Allocations.Return(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}

func (ac *AllocationController) Cancel(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	al, err := ac.Allocations.Cancel(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, al)
}
