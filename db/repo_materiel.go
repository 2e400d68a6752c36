package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"gorm.io/gorm/clause"
)

func (t *txRepo) LockMateriel(id string) (*models.Materiel, error) {
	return first[models.Materiel](t.locked(), "id = ?", id)
}

func (t *txRepo) FindMateriel(id string) (*models.Materiel, error) {
	return first[models.Materiel](t.tx, "id = ?", id)
}

func (t *txRepo) FindMaterielBySerial(serial string) (*models.Materiel, error) {
	return first[models.Materiel](t.tx, "serial_number = ?", serial)
}

func (t *txRepo) CreateMateriel(m *models.Materiel) error {
	return mapErr(t.tx.Omit(clause.Associations).Create(m).Error)
}

func (t *txRepo) SaveMateriel(m *models.Materiel) error {
	return mapErr(t.tx.Omit(clause.Associations).Save(m).Error)
}

func (t *txRepo) DeleteMateriel(id string) error {
	res := t.tx.Delete(&models.Materiel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *txRepo) ListMateriels(q store.MaterielQuery) ([]models.Materiel, int64, error) {
	qry := t.tx.Model(&models.Materiel{})
	if q.Q != "" {
		pat := like(q.Q)
		qry = qry.Where(`LOWER(name) LIKE ? OR LOWER(description) LIKE ?
			OR LOWER(COALESCE(serial_number, '')) LIKE ? OR LOWER(location) LIKE ?`, pat, pat, pat, pat)
	}
	if q.Status != "" {
		qry = qry.Where("status = ?", q.Status)
	}
	if q.Type != "" {
		qry = qry.Where("type = ?", q.Type)
	}
	if q.Category != "" {
		qry = qry.Where("category = ?", q.Category)
	}
	if q.Condition != "" {
		qry = qry.Where("condition = ?", q.Condition)
	}
	if q.Location != "" {
		qry = qry.Where("LOWER(location) LIKE ?", like(q.Location))
	}
	if q.AssignedTo != "" {
		qry = qry.Where("assigned_to = ?", q.AssignedTo)
	}
	return page[models.Materiel](qry, "created_at DESC, id", q.Page)
}
