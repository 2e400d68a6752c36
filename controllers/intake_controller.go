package controllers

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/gin-gonic/gin"
)

type IntakeController struct{ *Srv }

func NewIntakeController(s *Srv) *IntakeController { return &IntakeController{Srv: s} }

// GET /api/fault-reports?reportedBy=&technicianId=&materielId=&status=
func (ic *IntakeController) ListFaults(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	res, err := ic.Intake.ListFaults(c.Request.Context(), a, store.FaultReportQuery{
		ReportedBy:   c.Query("reportedBy"),
		TechnicianID: c.Query("technicianId"),
		MaterielID:   c.Query("materielId"),
		Status:       models.FaultStatus(c.Query("status")),
		Page:         pageParams(c),
	})
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ic *IntakeController) CreateFault(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.FaultReportInput
	if !bind(c, &in) {
		return
	}
	f, err := ic.Intake.CreateFault(c.Request.Context(), a, in)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (ic *IntakeController) UpdateFault(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var p workflow.FaultReportPatch
	if !bind(c, &p) {
		return
	}
	f, err := ic.Intake.UpdateFault(c.Request.Context(), a, c.Param("id"), p)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// GET /api/equipment-requests?requestedBy=&status=
func (ic *IntakeController) ListRequests(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	res, err := ic.Intake.ListRequests(c.Request.Context(), a, store.EquipmentRequestQuery{
		RequestedBy: c.Query("requestedBy"),
		Status:      models.RequestStatus(c.Query("status")),
		Page:        pageParams(c),
	})
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ic *IntakeController) CreateRequest(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.EquipmentRequestInput
	if !bind(c, &in) {
		return
	}
	r, err := ic.Intake.CreateRequest(c.Request.Context(), a, in)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// PUT /api/equipment-requests/:id/status
func (ic *IntakeController) UpdateRequestStatus(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	var in workflow.RequestStatusInput
	if !bind(c, &in) {
		return
	}
	r, err := ic.Intake.UpdateRequestStatus(c.Request.Context(), a, c.Param("id"), in)
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (ic *IntakeController) CancelRequest(c *gin.Context) {
	a, ok := caller(c)
	if !ok {
		return
	}
	r, err := ic.Intake.CancelRequest(c.Request.Context(), a, c.Param("id"))
	if err != nil {
		ic.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
