package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"github.com/google/uuid"
)

// Registry owns Materiel records and is the only writer of their
// disposition (status and assignee).
type Registry struct{ base }

func NewRegistry(d Deps) *Registry { return &Registry{newBase(d, "registry")} }

type MaterielInput struct {
	Name             string     `json:"name" validate:"required,max=200"`
	Type             string     `json:"type" validate:"required,max=60"`
	Description      string     `json:"description"`
	SerialNumber     string     `json:"serialNumber" validate:"max=120"`
	Location         string     `json:"location" validate:"required,max=200"`
	Category         string     `json:"category" validate:"max=60"`
	Condition        string     `json:"condition" validate:"max=20"`
	PurchaseDate     *time.Time `json:"purchaseDate"`
	WarrantyExpiry   *time.Time `json:"warrantyExpiry"`
	PurchasePrice    float64    `json:"purchasePrice" validate:"gte=0"`
	Supplier         string     `json:"supplier" validate:"max=200"`
	NextMaintenance  *time.Time `json:"nextMaintenance"`
	MaintenanceCycle int        `json:"maintenanceCycle" validate:"gte=0"`
	Notes            string     `json:"notes"`
}

// MaterielPatch updates descriptive fields only; disposition moves through
// SetStatus and the workflows.
type MaterielPatch struct {
	Name             *string    `json:"name" validate:"omitnil,min=1,max=200"`
	Type             *string    `json:"type" validate:"omitnil,min=1,max=60"`
	Description      *string    `json:"description"`
	SerialNumber     *string    `json:"serialNumber" validate:"omitnil,max=120"`
	Location         *string    `json:"location" validate:"omitnil,min=1,max=200"`
	Category         *string    `json:"category" validate:"omitnil,max=60"`
	Condition        *string    `json:"condition" validate:"omitnil,max=20"`
	PurchaseDate     *time.Time `json:"purchaseDate"`
	WarrantyExpiry   *time.Time `json:"warrantyExpiry"`
	PurchasePrice    *float64   `json:"purchasePrice" validate:"omitnil,gte=0"`
	Supplier         *string    `json:"supplier" validate:"omitnil,max=200"`
	NextMaintenance  *time.Time `json:"nextMaintenance"`
	MaintenanceCycle *int       `json:"maintenanceCycle" validate:"omitnil,gte=0"`
	Notes            *string    `json:"notes"`
}

func (r *Registry) Create(ctx context.Context, actor Actor, in MaterielInput) (*models.Materiel, error) {
	const op = "materiel.create"
	if err := check(op, in); err != nil {
		return nil, err
	}
	m := &models.Materiel{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(in.Name),
		Type:             models.NormalizeType(in.Type),
		Description:      in.Description,
		SerialNumber:     strPtr(strings.TrimSpace(in.SerialNumber)),
		Status:           models.MaterielAvailable,
		Location:         strings.TrimSpace(in.Location),
		Category:         models.NormalizeCategory(in.Category),
		Condition:        models.Condition(models.NormalizeCondition(in.Condition)),
		PurchaseDate:     in.PurchaseDate,
		WarrantyExpiry:   in.WarrantyExpiry,
		PurchasePrice:    in.PurchasePrice,
		Supplier:         in.Supplier,
		NextMaintenance:  in.NextMaintenance,
		MaintenanceCycle: in.MaintenanceCycle,
		Notes:            in.Notes,
	}
	if m.Category == "" {
		m.Category = "other"
	}
	if m.Condition == "" {
		m.Condition = models.ConditionGood
	}
	if m.MaintenanceCycle == 0 {
		m.MaintenanceCycle = 365
	}
	err := r.do(ctx, op, actor, func(t *txn) error {
		if s := m.Serial(); s != "" {
			if _, err := t.FindMaterielBySerial(s); err == nil {
				return conflict(op, "serial number %q already exists", s)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if err := t.CreateMateriel(m); err != nil {
			return uniq(op, "serial number already exists", err)
		}
		return t.transition(models.EntityMateriel, m.ID, "create", "", string(m.Status), m.ID, "")
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Registry) Update(ctx context.Context, actor Actor, id string, p MaterielPatch) (*models.Materiel, error) {
	const op = "materiel.update"
	if err := check(op, p); err != nil {
		return nil, err
	}
	var out *models.Materiel
	err := r.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(id)
		if err != nil {
			return miss(op, "materiel", err)
		}
		if p.SerialNumber != nil {
			serial := strings.TrimSpace(*p.SerialNumber)
			if serial != "" && serial != m.Serial() {
				if _, err := t.FindMaterielBySerial(serial); err == nil {
					return conflict(op, "serial number %q already exists", serial)
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
			m.SerialNumber = strPtr(serial)
		}
		if p.Name != nil {
			m.Name = strings.TrimSpace(*p.Name)
		}
		if p.Type != nil {
			m.Type = models.NormalizeType(*p.Type)
		}
		if p.Description != nil {
			m.Description = *p.Description
		}
		if p.Location != nil {
			m.Location = strings.TrimSpace(*p.Location)
		}
		if p.Category != nil {
			m.Category = models.NormalizeCategory(*p.Category)
		}
		if p.Condition != nil {
			m.Condition = models.Condition(models.NormalizeCondition(*p.Condition))
		}
		if p.PurchaseDate != nil {
			m.PurchaseDate = p.PurchaseDate
		}
		if p.WarrantyExpiry != nil {
			m.WarrantyExpiry = p.WarrantyExpiry
		}
		if p.PurchasePrice != nil {
			m.PurchasePrice = *p.PurchasePrice
		}
		if p.Supplier != nil {
			m.Supplier = *p.Supplier
		}
		if p.NextMaintenance != nil {
			m.NextMaintenance = p.NextMaintenance
		}
		if p.MaintenanceCycle != nil {
			m.MaintenanceCycle = *p.MaintenanceCycle
		}
		if p.Notes != nil {
			m.Notes = *p.Notes
		}
		if err := t.SaveMateriel(m); err != nil {
			return uniq(op, "serial number already exists", err)
		}
		out = m
		return t.transition(models.EntityMateriel, m.ID, "update", "", "", m.ID, "")
	})
	return out, err
}

// Delete refuses while an active allocation or an open maintenance
// references the asset.
func (r *Registry) Delete(ctx context.Context, actor Actor, id string) error {
	const op = "materiel.delete"
	return r.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(id)
		if err != nil {
			return miss(op, "materiel", err)
		}
		_, n, err := t.ListAllocations(store.AllocationQuery{
			MaterielID: id, Status: models.AllocationActive, Page: store.Page{Size: 1},
		})
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict(op, "materiel has an active allocation")
		}
		if _, err := t.FindOpenMaintenance(id); err == nil {
			return conflict(op, "materiel has an open maintenance")
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if m.Status == models.MaterielAllocated {
			return conflict(op, "materiel is allocated")
		}
		if err := t.DeleteMateriel(id); err != nil {
			return miss(op, "materiel", err)
		}
		return t.transition(models.EntityMateriel, id, "delete", string(m.Status), "", id, "")
	})
}

// SetStatus is the manual disposition change. It refuses to strand a
// holding allocation or an open maintenance, and never enters or leaves
// irreparable.
func (r *Registry) SetStatus(ctx context.Context, actor Actor, id string, to models.MaterielStatus, assignee *string, reason string) (*models.Materiel, error) {
	const op = "materiel.setStatus"
	if !to.Valid() {
		return nil, invalid(op, "unknown status %q", to)
	}
	if assignee != nil && *assignee == "" {
		assignee = nil
	}
	if to == models.MaterielIrreparable {
		return nil, invalidState(op, "use mark-irreparable to retire an asset")
	}
	var out *models.Materiel
	err := r.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(id)
		if err != nil {
			return miss(op, "materiel", err)
		}
		switch m.Status {
		case models.MaterielIrreparable:
			return invalidState(op, "materiel is irreparable")
		case models.MaterielAllocated:
			if _, err := t.FindHoldingAllocation(id); err == nil {
				return invalidState(op, "materiel is held by an allocation; return it first")
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		case models.MaterielMaintenance:
			if to != models.MaterielMaintenance {
				if _, err := t.FindOpenMaintenance(id); err == nil {
					return invalidState(op, "materiel has an open maintenance; complete or cancel it first")
				} else if !errors.Is(err, store.ErrNotFound) {
					return err
				}
			}
		case models.MaterielAvailable, models.MaterielOutOfService:
		}
		if to == models.MaterielAllocated && m.Status != models.MaterielAvailable && m.Status != models.MaterielAllocated {
			return invalidState(op, "materiel is %s", m.Status)
		}
		if err := setDisposition(t, op, m, to, assignee, reason); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// setDisposition is the single write path for status and assignee. It
// enforces that an assignee is present iff the status is allocated.
func setDisposition(t *txn, op string, m *models.Materiel, to models.MaterielStatus, assignee *string, reason string) error {
	if !to.Valid() {
		return invalid(op, "unknown status %q", to)
	}
	if (to == models.MaterielAllocated) != (assignee != nil) {
		return invalid(op, "assignee must be set iff status is allocated")
	}
	from := m.Status
	m.Status = to
	if to == models.MaterielAllocated {
		at := t.now
		m.AssignedTo = assignee
		m.AssignedDate = &at
	} else {
		m.AssignedTo = nil
		m.AssignedDate = nil
	}
	if err := t.SaveMateriel(m); err != nil {
		return err
	}
	return t.transition(models.EntityMateriel, m.ID, "status", string(from), string(to), m.ID, reason)
}

// MaterielDetail is an asset with its allocation and maintenance history.
type MaterielDetail struct {
	*models.Materiel
	Allocations  []models.Allocation  `json:"allocations"`
	Maintenances []models.Maintenance `json:"maintenances"`
}

const historyDepth = 50

func (r *Registry) Get(ctx context.Context, id string) (*MaterielDetail, error) {
	const op = "materiel.get"
	var out *MaterielDetail
	now := r.clock()
	err := r.read(ctx, func(tx store.Tx) error {
		m, err := tx.FindMateriel(id)
		if err != nil {
			return miss(op, "materiel", err)
		}
		rf := newRefs(tx)
		m.Assignee = rf.userPtr(m.AssignedTo)
		allocs, _, err := tx.ListAllocations(store.AllocationQuery{MaterielID: id, Page: store.Page{Size: historyDepth}})
		if err != nil {
			return err
		}
		for i := range allocs {
			allocs[i].User = rf.user(allocs[i].UserID)
			allocs[i].Derive(now)
		}
		maints, _, err := tx.ListMaintenances(store.MaintenanceQuery{MaterielID: id, Page: store.Page{Size: historyDepth}})
		if err != nil {
			return err
		}
		for i := range maints {
			maints[i].TechnicianUser = rf.userPtr(maints[i].Technician)
			maints[i].Overdue = maints[i].IsOverdue(now)
		}
		out = &MaterielDetail{Materiel: m, Allocations: allocs, Maintenances: maints}
		return nil
	})
	return out, err
}

func (r *Registry) List(ctx context.Context, q store.MaterielQuery) (Page[models.Materiel], error) {
	if q.Type != "" {
		q.Type = models.NormalizeType(q.Type)
	}
	if q.Category != "" {
		q.Category = models.NormalizeCategory(q.Category)
	}
	var out Page[models.Materiel]
	err := r.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListMateriels(q)
		if err != nil {
			return err
		}
		rf := newRefs(tx)
		for i := range rows {
			rows[i].Assignee = rf.userPtr(rows[i].AssignedTo)
		}
		out = pageOf(rows, total, q.Page)
		return nil
	})
	return out, err
}

// Available lists assets ready to allocate, optionally of one type.
func (r *Registry) Available(ctx context.Context, typ string, p store.Page) (Page[models.Materiel], error) {
	return r.List(ctx, store.MaterielQuery{Status: models.MaterielAvailable, Type: typ, Page: p})
}

// Lookup returns the assets with the given ids, in that order, skipping
// unknown ids.
func (r *Registry) Lookup(ctx context.Context, ids []string) ([]models.Materiel, error) {
	out := make([]models.Materiel, 0, len(ids))
	err := r.read(ctx, func(tx store.Tx) error {
		for _, id := range ids {
			m, err := tx.FindMateriel(id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, *m)
		}
		return nil
	})
	return out, err
}
