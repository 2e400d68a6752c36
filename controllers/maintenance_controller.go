package controllers

import (
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
)

type MaintenanceController struct{ *Srv }

func NewMaintenanceController(s *Srv) *MaintenanceController {
	return &MaintenanceController{Srv: s}
}

func maintenanceQuery(c *gin.Context) store.MaintenanceQuery {
	return store.MaintenanceQuery{
		Status:       models.MaintenanceStatus(c.Query("status")),
		Type:         models.MaintenanceType(c.Query("type")),
		Priority:     models.Priority(c.Query("priority")),
		TechnicianID: c.Query("technicianId"),
		MaterielID:   c.Query("materielId"),
		Page:         pageParams(c),
	}
}

// GET /api/maintenance?status=&type=&priority=&technicianId=&materielId=
func (mc *MaintenanceController) List(c *gin.Context) {
	res, err := mc.Maintenance.List(c.Request.Context(), maintenanceQuery(c))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/maintenance/technician/:technicianId
func (mc *MaintenanceController) ForTechnician(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	res, err := mc.Maintenance.ForTechnician(c.Request.Context(), a, c.Param("technicianId"), maintenanceQuery(c))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/maintenance/schedule?from=&to=&technicianId=
func (mc *MaintenanceController) Schedule(c *gin.Context) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	res, err := mc.Maintenance.Schedule(c.Request.Context(), from, to, c.Query("technicianId"), pageParams(c))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/maintenance/preventive/due?days=7
func (mc *MaintenanceController) PreventiveDue(c *gin.Context) {
	window := workflow.DefaultPreventiveWindow
	if d, err := strconv.Atoi(c.Query("days")); err == nil && d > 0 {
		window = time.Duration(d) * 24 * time.Hour
	}
	res, err := mc.Maintenance.PreventiveDue(c.Request.Context(), window, pageParams(c))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (mc *MaintenanceController) Create(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.MaintenanceInput
	if !bind(c, &in) {
		return
	}
	m, err := mc.Maintenance.Create(c.Request.Context(), a, in)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (mc *MaintenanceController) Get(c *gin.Context) {
	m, err := mc.Maintenance.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Update(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var p workflow.MaintenancePatch
	if !bind(c, &p) {
		return
	}
	m, err := mc.Maintenance.Update(c.Request.Context(), a, c.Param("id"), p)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Start(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	m, err := mc.Maintenance.Start(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Complete(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.CompleteInput
	if !bind(c, &in) {
		return
	}
	m, err := mc.Maintenance.Complete(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (mc *MaintenanceController) Cancel(c *gin.Context) {
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
	m, err := mc.Maintenance.Cancel(c.Request.Context(), a, c.Param("id"), in.Reason)
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
