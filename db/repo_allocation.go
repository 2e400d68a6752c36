package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"gorm.io/gorm/clause"
)

func (t *txRepo) LockAllocation(id string) (*models.Allocation, error) {
	return first[models.Allocation](t.locked(), "id = ?", id)
}

func (t *txRepo) FindAllocation(id string) (*models.Allocation, error) {
	return first[models.Allocation](t.tx, "id = ?", id)
}

func (t *txRepo) FindHoldingAllocation(materielID string) (*models.Allocation, error) {
	return first[models.Allocation](t.locked(),
		"materiel_id = ? AND status = ? AND approval_status = ?",
		materielID, models.AllocationActive, models.ApprovalApproved)
}

func (t *txRepo) CountActiveAllocations(materielID, userID string) (int64, error) {
	var n int64
	err := t.tx.Model(&models.Allocation{}).
		Where("materiel_id = ? AND user_id = ? AND status = ?", materielID, userID, models.AllocationActive).
		Count(&n).Error
	return n, err
}

func (t *txRepo) CreateAllocation(a *models.Allocation) error {
	return mapErr(t.tx.Omit(clause.Associations).Create(a).Error)
}

func (t *txRepo) SaveAllocation(a *models.Allocation) error {
	return mapErr(t.tx.Omit(clause.Associations).Save(a).Error)
}

func (t *txRepo) ListAllocations(q store.AllocationQuery) ([]models.Allocation, int64, error) {
	qry := t.tx.Model(&models.Allocation{})
	if q.Status != "" {
		qry = qry.Where("status = ?", q.Status)
	}
	if q.ApprovalStatus != "" {
		qry = qry.Where("approval_status = ?", q.ApprovalStatus)
	}
	if q.UserID != "" {
		qry = qry.Where("user_id = ?", q.UserID)
	}
	if q.MaterielID != "" {
		qry = qry.Where("materiel_id = ?", q.MaterielID)
	}
	if q.OverdueAt != nil {
		qry = qry.Where("status = ? AND expected_return_date IS NOT NULL AND expected_return_date < ?",
			models.AllocationActive, *q.OverdueAt)
	}
	return page[models.Allocation](qry, "allocation_date DESC, id", q.Page)
}
