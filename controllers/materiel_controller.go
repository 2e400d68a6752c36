package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/labels"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
)

type MaterielController struct{ *Srv }

func NewMaterielController(s *Srv) *MaterielController { return &MaterielController{Srv: s} }

// GET /api/materiel?q=&status=&type=&location=&category=&condition=&page=&size=
func (mc *MaterielController) List(c *gin.Context) {
	res, err := mc.Registry.List(c.Request.Context(), store.MaterielQuery{
		Q:         c.Query("q"),
		Status:    models.MaterielStatus(c.Query("status")),
		Type:      c.Query("type"),
		Location:  c.Query("location"),
		Category:  c.Query("category"),
		Condition: models.Condition(c.Query("condition")),
		Page:      pageParams(c),
	})
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/materiel/available?type=
func (mc *MaterielController) Available(c *gin.Context) {
	res, err := mc.Registry.Available(c.Request.Context(), c.Query("type"), pageParams(c))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (mc *MaterielController) Create(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.MaterielInput
	if !bind(c, &in) {
		return
	}
	m, err := mc.Registry.Create(c.Request.Context(), a, in)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (mc *MaterielController) Get(c *gin.Context) {
	d, err := mc.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (mc *MaterielController) Update(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var p workflow.MaterielPatch
	if !bind(c, &p) {
		return
	}
	m, err := mc.Registry.Update(c.Request.Context(), a, c.Param("id"), p)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaterielController) Delete(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	if err := mc.Registry.Delete(c.Request.Context(), a, c.Param("id")); err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /api/materiel/:id/status
func (mc *MaterielController) SetStatus(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in struct {
		Status     string  `json:"status" binding:"required"`
		AssignedTo *string `json:"assignedTo"`
		Reason     string  `json:"reason"`
	}
	if !bind(c, &in) {
		return
	}
	m, err := mc.Registry.SetStatus(c.Request.Context(), a, c.Param("id"), models.MaterielStatus(in.Status), in.AssignedTo, in.Reason)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/materiel/:id/assign
func (mc *MaterielController) Assign(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in struct {
		UserID             string     `json:"userId" binding:"required"`
		Purpose            string     `json:"purpose"`
		Location           string     `json:"location"`
		ExpectedReturnDate *time.Time `json:"expectedReturnDate"`
	}
	if !bind(c, &in) {
		return
	}
	al, err := mc.Allocations.Assign(c.Request.Context(), a, c.Param("id"), in.UserID, in.Purpose, in.Location, in.ExpectedReturnDate)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, al)
}

// POST /api/materiel/:id/return
func (mc *MaterielController) Return(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.ReturnInput
	if !bindOptional(c, &in) {
		return
	}
	m, err := mc.Allocations.ReturnByAsset(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// POST /api/materiel/:id/mark-irreparable
func (mc *MaterielController) MarkIrreparable(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.IrreparableInput
	if !bind(c, &in) {
		return
	}
	m, err := mc.Maintenance.MarkIrreparable(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /api/materiel/labels?ids=a,b,c
func (mc *MaterielController) Labels(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "ids is required", "kind": workflow.KindValidation})
		return
	}
	assets, err := mc.Registry.Lookup(c.Request.Context(), ids)
	if err != nil {
		mc.fail(c, err)
		return
	}
	pdf, err := labels.Render(assets, mc.Srv.Labels)
	if errors.Is(err, labels.ErrNoAssets) {
		c.JSON(http.StatusNotFound, app.H{"error": "no matching materiel", "kind": workflow.KindNotFound})
		return
	}
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="labels.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
