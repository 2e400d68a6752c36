package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the Postgres-backed store.Store.
type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

func (r *Repo) Tx(ctx context.Context, fn func(store.Tx) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txRepo{tx: tx})
	})
}

type txRepo struct{ tx *gorm.DB }

var (
	_ store.Store = (*Repo)(nil)
	_ store.Tx    = (*txRepo)(nil)
)

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}

func (t *txRepo) locked() *gorm.DB {
	return t.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func first[T any](q *gorm.DB, where string, args ...any) (*T, error) {
	var v T
	if err := q.Where(where, args...).First(&v).Error; err != nil {
		return nil, mapErr(err)
	}
	return &v, nil
}

// page 计数后再取一页
func page[T any](q *gorm.DB, order string, p store.Page) ([]T, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	p = p.Normalize()
	rows := []T{}
	if err := q.Order(order).Offset(p.Offset()).Limit(p.Size).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func like(s string) string { return "%" + strings.ToLower(strings.TrimSpace(s)) + "%" }

// Users

func (t *txRepo) FindUser(id string) (*models.User, error) {
	return first[models.User](t.tx, "id = ?", id)
}

func (t *txRepo) UpsertUser(u *models.User) error {
	err := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "role", "updated_at"}),
	}).Create(u).Error
	return mapErr(err)
}

func (t *txRepo) TouchUserSeen(id string, at time.Time) error {
	return t.tx.Model(&models.User{}).Where("id = ?", id).Update("last_seen_at", at).Error
}

// Audit

func (t *txRepo) LogTransition(l *models.TransitionLog) error {
	return mapErr(t.tx.Create(l).Error)
}

func (t *txRepo) ListTransitions(q store.TransitionQuery) ([]models.TransitionLog, int64, error) {
	qry := t.tx.Model(&models.TransitionLog{})
	if q.Entity != "" {
		qry = qry.Where("entity = ?", q.Entity)
	}
	if q.EntityID != "" {
		qry = qry.Where("entity_id = ?", q.EntityID)
	}
	return page[models.TransitionLog](qry, "created_at DESC", q.Page)
}
