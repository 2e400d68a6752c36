package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"gorm.io/gorm/clause"
)

func (t *txRepo) LockMaintenance(id string) (*models.Maintenance, error) {
	return first[models.Maintenance](t.locked(), "id = ?", id)
}

func (t *txRepo) FindMaintenance(id string) (*models.Maintenance, error) {
	return first[models.Maintenance](t.tx, "id = ?", id)
}

func (t *txRepo) FindOpenMaintenance(materielID string) (*models.Maintenance, error) {
	return first[models.Maintenance](t.locked(), "materiel_id = ? AND status IN ?",
		materielID, []models.MaintenanceStatus{models.MaintenancePending, models.MaintenanceInProgress})
}

// BeforeSave on the model keeps total_cost in step on both paths.
func (t *txRepo) CreateMaintenance(m *models.Maintenance) error {
	return mapErr(t.tx.Omit(clause.Associations).Create(m).Error)
}

func (t *txRepo) SaveMaintenance(m *models.Maintenance) error {
	return mapErr(t.tx.Omit(clause.Associations).Save(m).Error)
}

func (t *txRepo) ListMaintenances(q store.MaintenanceQuery) ([]models.Maintenance, int64, error) {
	qry := t.tx.Model(&models.Maintenance{})
	if q.Status != "" {
		qry = qry.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		qry = qry.Where("type = ?", q.Type)
	}
	if q.Priority != "" {
		qry = qry.Where("priority = ?", q.Priority)
	}
	if q.TechnicianID != "" {
		qry = qry.Where("technician = ?", q.TechnicianID)
	}
	if q.MaterielID != "" {
		qry = qry.Where("materiel_id = ?", q.MaterielID)
	}
	if q.StartFrom != nil {
		qry = qry.Where("start_date >= ?", *q.StartFrom)
	}
	if q.StartTo != nil {
		qry = qry.Where("start_date <= ?", *q.StartTo)
	}
	if q.NextFrom != nil {
		qry = qry.Where("next_maintenance_date >= ?", *q.NextFrom)
	}
	if q.NextTo != nil {
		qry = qry.Where("next_maintenance_date <= ?", *q.NextTo)
	}
	order := "start_date DESC, id"
	if q.Ascending {
		order = "start_date ASC, id"
	}
	return page[models.Maintenance](qry, order, q.Page)
}
