package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"gorm.io/gorm/clause"
)

// Fault reports

func (t *txRepo) LockFaultReport(id string) (*models.FaultReport, error) {
	return first[models.FaultReport](t.locked(), "id = ?", id)
}

func (t *txRepo) CreateFaultReport(f *models.FaultReport) error {
	return mapErr(t.tx.Omit(clause.Associations).Create(f).Error)
}

func (t *txRepo) SaveFaultReport(f *models.FaultReport) error {
	return mapErr(t.tx.Omit(clause.Associations).Save(f).Error)
}

func (t *txRepo) ListFaultReports(q store.FaultReportQuery) ([]models.FaultReport, int64, error) {
	qry := t.tx.Model(&models.FaultReport{})
	if q.ReportedBy != "" {
		qry = qry.Where("reported_by = ?", q.ReportedBy)
	}
	if q.TechnicianID != "" {
		qry = qry.Where("assigned_technician = ?", q.TechnicianID)
	}
	if q.MaterielID != "" {
		qry = qry.Where("materiel_id = ?", q.MaterielID)
	}
	if q.Status != "" {
		qry = qry.Where("status = ?", q.Status)
	}
	return page[models.FaultReport](qry, "created_at DESC, id", q.Page)
}

// Equipment requests

func (t *txRepo) LockEquipmentRequest(id string) (*models.EquipmentRequest, error) {
	return first[models.EquipmentRequest](t.locked(), "id = ?", id)
}

func (t *txRepo) FindEquipmentRequest(id string) (*models.EquipmentRequest, error) {
	return first[models.EquipmentRequest](t.tx, "id = ?", id)
}

func (t *txRepo) CreateEquipmentRequest(r *models.EquipmentRequest) error {
	return mapErr(t.tx.Omit(clause.Associations).Create(r).Error)
}

func (t *txRepo) SaveEquipmentRequest(r *models.EquipmentRequest) error {
	return mapErr(t.tx.Omit(clause.Associations).Save(r).Error)
}

func (t *txRepo) ListEquipmentRequests(q store.EquipmentRequestQuery) ([]models.EquipmentRequest, int64, error) {
	qry := t.tx.Model(&models.EquipmentRequest{})
	if q.RequestedBy != "" {
		qry = qry.Where("requested_by = ?", q.RequestedBy)
	}
	if q.Status != "" {
		qry = qry.Where("status = ?", q.Status)
	}
	return page[models.EquipmentRequest](qry, "created_at DESC, id", q.Page)
}
