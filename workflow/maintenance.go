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

// Maintenance runs pending -> in_progress -> completed, cancellation, and
// the irreparable exit that supersedes both workflows.
type Maintenance struct{ base }

func NewMaintenance(d Deps) *Maintenance { return &Maintenance{newBase(d, "maintenance")} }

type MaintenanceInput struct {
	MaterielID          string            `json:"materielId" validate:"required"`
	Type                string            `json:"type" validate:"required,oneof=preventive corrective urgent"`
	Priority            string            `json:"priority" validate:"omitempty,oneof=low normal high critical"`
	Description         string            `json:"description" validate:"required"`
	Cause               string            `json:"cause"`
	EstimatedDuration   float64           `json:"estimatedDuration" validate:"gt=0"`
	TechnicianID        string            `json:"technicianId"`
	Cost                float64           `json:"cost" validate:"gte=0"`
	LaborCost           float64           `json:"laborCost" validate:"gte=0"`
	PartsUsed           []models.PartUsed `json:"partsUsed" validate:"dive"`
	NextMaintenanceDate *time.Time        `json:"nextMaintenanceDate"`
	MaintenanceCycle    int               `json:"maintenanceCycle" validate:"gte=0"`
	Notes               string            `json:"notes"`
}

type CompleteInput struct {
	Solution            string            `json:"solution" validate:"required"`
	ActualDuration      *float64          `json:"actualDuration" validate:"omitnil,gte=0"`
	Cost                *float64          `json:"cost" validate:"omitnil,gte=0"`
	LaborCost           *float64          `json:"laborCost" validate:"omitnil,gte=0"`
	PartsUsed           []models.PartUsed `json:"partsUsed" validate:"dive"`
	QualityCheck        string            `json:"qualityCheck" validate:"omitempty,oneof=pending passed failed"`
	QualityNotes        string            `json:"qualityNotes"`
	NextMaintenanceDate *time.Time        `json:"nextMaintenanceDate"`
}

type MaintenancePatch struct {
	Priority            *string           `json:"priority" validate:"omitnil,oneof=low normal high critical"`
	Description         *string           `json:"description" validate:"omitnil,min=1"`
	Cause               *string           `json:"cause"`
	EstimatedDuration   *float64          `json:"estimatedDuration" validate:"omitnil,gt=0"`
	TechnicianID        *string           `json:"technicianId"`
	Cost                *float64          `json:"cost" validate:"omitnil,gte=0"`
	LaborCost           *float64          `json:"laborCost" validate:"omitnil,gte=0"`
	PartsUsed           []models.PartUsed `json:"partsUsed" validate:"dive"`
	NextMaintenanceDate *time.Time        `json:"nextMaintenanceDate"`
	MaintenanceCycle    *int              `json:"maintenanceCycle" validate:"omitnil,gte=0"`
	QualityNotes        *string           `json:"qualityNotes"`
	Notes               *string           `json:"notes"` // appended
}

type IrreparableInput struct {
	Reason         string `json:"reason" validate:"required"`
	DisposalMethod string `json:"disposalMethod" validate:"max=120"`
}

// Create opens a maintenance and moves the materiel to maintenance. A
// technician creating it starts it on the spot. An allocated materiel is
// taken back from its holder first.
func (s *Maintenance) Create(ctx context.Context, actor Actor, in MaintenanceInput) (*models.Maintenance, error) {
	const op = "maintenance.create"
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.Maintenance
	err := s.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(in.MaterielID)
		if err != nil {
			return miss(op, "materiel", err)
		}
		if _, err := t.FindOpenMaintenance(m.ID); err == nil {
			return conflict(op, "materiel already has an open maintenance")
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		switch m.Status {
		case models.MaterielIrreparable:
			return invalidState(op, "materiel is %s", m.Status)
		case models.MaterielAllocated:
			a, err := t.FindHoldingAllocation(m.ID)
			switch {
			case err == nil:
				if err := closeHolding(t, op, a, m.Condition, "", "Returned for maintenance", in.Description); err != nil {
					return err
				}
			case errors.Is(err, store.ErrNotFound):
			default:
				return err
			}
		case models.MaterielAvailable, models.MaterielMaintenance, models.MaterielOutOfService:
		}
		mt := &models.Maintenance{
			ID:                  uuid.NewString(),
			MaterielID:          m.ID,
			RequestedBy:         actor.UserID,
			Type:                models.MaintenanceType(in.Type),
			Priority:            models.PriorityNormal,
			Status:              models.MaintenancePending,
			Description:         in.Description,
			Cause:               in.Cause,
			StartDate:           t.now,
			EstimatedDuration:   in.EstimatedDuration,
			Cost:                in.Cost,
			LaborCost:           in.LaborCost,
			PartsUsed:           in.PartsUsed,
			NextMaintenanceDate: in.NextMaintenanceDate,
			MaintenanceCycle:    in.MaintenanceCycle,
			QualityCheck:        models.QualityPending,
			Notes:               in.Notes,
		}
		if in.Priority != "" {
			mt.Priority = models.Priority(in.Priority)
		}
		if mt.MaintenanceCycle == 0 {
			mt.MaintenanceCycle = 365
		}
		switch actor.Role {
		case models.RoleTechnician:
			mt.Status = models.MaintenanceInProgress
			mt.Technician = &actor.UserID
		case models.RoleAdmin, models.RoleTechnicalManager, models.RoleEmployee:
			mt.Technician = strPtr(in.TechnicianID)
		}
		if err := t.CreateMaintenance(mt); err != nil {
			return uniq(op, "materiel already has an open maintenance", err)
		}
		if err := t.transition(models.EntityMaintenance, mt.ID, "create", "", string(mt.Status), m.ID, ""); err != nil {
			return err
		}
		if m.Status != models.MaterielMaintenance {
			if err := setDisposition(t, op, m, models.MaterielMaintenance, nil, ""); err != nil {
				return err
			}
		}
		out = s.resolve(t, mt)
		return nil
	})
	return out, err
}

func (s *Maintenance) Start(ctx context.Context, actor Actor, id string) (*models.Maintenance, error) {
	const op = "maintenance.start"
	var out *models.Maintenance
	err := s.do(ctx, op, actor, func(t *txn) error {
		mt, _, err := lockMaintenance(t, op, id)
		if err != nil {
			return err
		}
		if mt.Status != models.MaintenancePending {
			return invalidState(op, "maintenance is %s", mt.Status)
		}
		mt.Status = models.MaintenanceInProgress
		mt.Technician = &actor.UserID
		mt.StartDate = t.now
		if err := t.SaveMaintenance(mt); err != nil {
			return err
		}
		if err := t.transition(models.EntityMaintenance, mt.ID, "start", string(models.MaintenancePending), string(mt.Status), mt.MaterielID, ""); err != nil {
			return err
		}
		out = s.resolve(t, mt)
		return nil
	})
	return out, err
}

func (s *Maintenance) Complete(ctx context.Context, actor Actor, id string, in CompleteInput) (*models.Maintenance, error) {
	const op = "maintenance.complete"
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.Maintenance
	err := s.do(ctx, op, actor, func(t *txn) error {
		mt, m, err := lockMaintenance(t, op, id)
		if err != nil {
			return err
		}
		if mt.Status != models.MaintenanceInProgress {
			return invalidState(op, "maintenance is %s", mt.Status)
		}
		end := t.now
		mt.Status = models.MaintenanceCompleted
		mt.EndDate = &end
		mt.Solution = in.Solution
		mt.ActualDuration = in.ActualDuration
		if in.Cost != nil {
			mt.Cost = *in.Cost
		}
		if in.LaborCost != nil {
			mt.LaborCost = *in.LaborCost
		}
		if in.PartsUsed != nil {
			mt.PartsUsed = in.PartsUsed
		}
		if in.QualityCheck != "" {
			mt.QualityCheck = models.QualityCheck(in.QualityCheck)
		}
		mt.QualityNotes = in.QualityNotes
		if in.NextMaintenanceDate != nil {
			mt.NextMaintenanceDate = in.NextMaintenanceDate
		}
		if err := t.SaveMaintenance(mt); err != nil {
			return err
		}
		if err := t.transition(models.EntityMaintenance, mt.ID, "complete", string(models.MaintenanceInProgress), string(mt.Status), m.ID, ""); err != nil {
			return err
		}
		m.LastMaintenance = &end
		if in.NextMaintenanceDate != nil {
			m.NextMaintenance = in.NextMaintenanceDate
		}
		if err := releaseMaintenance(t, op, m, ""); err != nil {
			return err
		}
		out = s.resolve(t, mt)
		return nil
	})
	return out, err
}

// Cancel works from pending or in_progress and always hands the materiel
// back.
func (s *Maintenance) Cancel(ctx context.Context, actor Actor, id, reason string) (*models.Maintenance, error) {
	const op = "maintenance.cancel"
	reason = strings.TrimSpace(reason)
	var out *models.Maintenance
	err := s.do(ctx, op, actor, func(t *txn) error {
		mt, m, err := lockMaintenance(t, op, id)
		if err != nil {
			return err
		}
		if !mt.Status.Open() {
			return invalidState(op, "maintenance is %s", mt.Status)
		}
		from := mt.Status
		mt.Status = models.MaintenanceCancelled
		if reason != "" {
			mt.Notes = appendNote(mt.Notes, "Cancellation reason: "+reason)
		}
		if err := t.SaveMaintenance(mt); err != nil {
			return err
		}
		if err := t.transition(models.EntityMaintenance, mt.ID, "cancel", string(from), string(mt.Status), m.ID, reason); err != nil {
			return err
		}
		if err := releaseMaintenance(t, op, m, reason); err != nil {
			return err
		}
		out = s.resolve(t, mt)
		return nil
	})
	return out, err
}

func (s *Maintenance) Update(ctx context.Context, actor Actor, id string, p MaintenancePatch) (*models.Maintenance, error) {
	const op = "maintenance.update"
	if err := check(op, p); err != nil {
		return nil, err
	}
	var out *models.Maintenance
	err := s.do(ctx, op, actor, func(t *txn) error {
		mt, err := t.LockMaintenance(id)
		if err != nil {
			return miss(op, "maintenance", err)
		}
		if !actor.Role.Staff() && mt.RequestedBy != actor.UserID {
			return forbidden(op, "not authorized to update this maintenance")
		}
		if !mt.Status.Open() {
			return invalidState(op, "maintenance is %s", mt.Status)
		}
		if p.Priority != nil {
			mt.Priority = models.Priority(*p.Priority)
		}
		if p.Description != nil {
			mt.Description = *p.Description
		}
		if p.Cause != nil {
			mt.Cause = *p.Cause
		}
		if p.EstimatedDuration != nil {
			mt.EstimatedDuration = *p.EstimatedDuration
		}
		if p.TechnicianID != nil {
			mt.Technician = strPtr(*p.TechnicianID)
		}
		if p.Cost != nil {
			mt.Cost = *p.Cost
		}
		if p.LaborCost != nil {
			mt.LaborCost = *p.LaborCost
		}
		if p.PartsUsed != nil {
			mt.PartsUsed = p.PartsUsed
		}
		if p.NextMaintenanceDate != nil {
			mt.NextMaintenanceDate = p.NextMaintenanceDate
		}
		if p.MaintenanceCycle != nil {
			mt.MaintenanceCycle = *p.MaintenanceCycle
		}
		if p.QualityNotes != nil {
			mt.QualityNotes = *p.QualityNotes
		}
		if p.Notes != nil && strings.TrimSpace(*p.Notes) != "" {
			mt.Notes = appendNote(mt.Notes, strings.TrimSpace(*p.Notes))
		}
		if err := t.SaveMaintenance(mt); err != nil {
			return err
		}
		if err := t.transition(models.EntityMaintenance, mt.ID, "update", "", "", mt.MaterielID, ""); err != nil {
			return err
		}
		out = s.resolve(t, mt)
		return nil
	})
	return out, err
}

// MarkIrreparable retires a materiel. Its holding allocation is returned
// with condition irreparable and its open maintenance is force-completed.
func (s *Maintenance) MarkIrreparable(ctx context.Context, actor Actor, materielID string, in IrreparableInput) (*models.Materiel, error) {
	const op = "materiel.markIrreparable"
	in.Reason = strings.TrimSpace(in.Reason)
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.Materiel
	err := s.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(materielID)
		if err != nil {
			return miss(op, "materiel", err)
		}
		if m.Status == models.MaterielIrreparable {
			return invalidState(op, "materiel is already irreparable")
		}
		note := "Equipment marked as irreparable: " + in.Reason

		a, err := t.FindHoldingAllocation(m.ID)
		switch {
		case err == nil:
			if err := closeHolding(t, op, a, models.ConditionIrreparable, "", note, in.Reason); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return err
		}

		mt, err := t.FindOpenMaintenance(m.ID)
		switch {
		case err == nil:
			from := mt.Status
			end := t.now
			zero := 0.0
			mt.Status = models.MaintenanceCompleted
			mt.EndDate = &end
			mt.Solution = note
			mt.ActualDuration = &zero
			if mt.Technician == nil {
				mt.Technician = &actor.UserID
			}
			if err := t.SaveMaintenance(mt); err != nil {
				return err
			}
			if err := t.transition(models.EntityMaintenance, mt.ID, "complete", string(from), string(mt.Status), m.ID, in.Reason); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return err
		}

		at := t.now
		m.IrreparableDate = &at
		m.IrreparableReason = in.Reason
		m.DisposalMethod = in.DisposalMethod
		m.ReportedBy = &actor.UserID
		if err := setDisposition(t, op, m, models.MaterielIrreparable, nil, in.Reason); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Maintenance) Get(ctx context.Context, id string) (*models.Maintenance, error) {
	const op = "maintenance.get"
	var out *models.Maintenance
	err := s.read(ctx, func(tx store.Tx) error {
		mt, err := tx.FindMaintenance(id)
		if err != nil {
			return miss(op, "maintenance", err)
		}
		out = s.resolveRefs(newRefs(tx), mt)
		return nil
	})
	return out, err
}

func (s *Maintenance) List(ctx context.Context, q store.MaintenanceQuery) (Page[models.Maintenance], error) {
	var out Page[models.Maintenance]
	err := s.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListMaintenances(q)
		if err != nil {
			return err
		}
		rf := newRefs(tx)
		for i := range rows {
			s.resolveRefs(rf, &rows[i])
		}
		out = pageOf(rows, total, q.Page)
		return nil
	})
	return out, err
}

// ForTechnician lists one technician's work; admins may look at anyone's.
func (s *Maintenance) ForTechnician(ctx context.Context, actor Actor, technicianID string, q store.MaintenanceQuery) (Page[models.Maintenance], error) {
	if actor.Role != models.RoleAdmin && actor.UserID != technicianID {
		return Page[models.Maintenance]{}, forbidden("maintenance.forTechnician", "not authorized to view this technician's maintenance")
	}
	q.TechnicianID = technicianID
	return s.List(ctx, q)
}

// Schedule lists maintenance started within [from, to], oldest first.
func (s *Maintenance) Schedule(ctx context.Context, from, to *time.Time, technicianID string, p store.Page) (Page[models.Maintenance], error) {
	if from != nil && to != nil && to.Before(*from) {
		return Page[models.Maintenance]{}, invalid("maintenance.schedule", "endDate is before startDate")
	}
	return s.List(ctx, store.MaintenanceQuery{
		StartFrom: from, StartTo: to, TechnicianID: technicianID, Ascending: true, Page: p,
	})
}

const DefaultPreventiveWindow = 7 * 24 * time.Hour

// PreventiveDue lists preventive maintenance whose next date falls within
// the coming window.
func (s *Maintenance) PreventiveDue(ctx context.Context, window time.Duration, p store.Page) (Page[models.Maintenance], error) {
	if window <= 0 {
		window = DefaultPreventiveWindow
	}
	now := s.clock()
	until := now.Add(window)
	return s.List(ctx, store.MaintenanceQuery{
		Type: models.MaintenancePreventive, NextFrom: &now, NextTo: &until, Ascending: true, Page: p,
	})
}

func (s *Maintenance) resolve(t *txn, mt *models.Maintenance) *models.Maintenance {
	return s.resolveRefs(newRefs(t.Tx), mt)
}

func (s *Maintenance) resolveRefs(rf *refs, mt *models.Maintenance) *models.Maintenance {
	mt.Materiel = rf.asset(mt.MaterielID)
	mt.TechnicianUser = rf.userPtr(mt.Technician)
	mt.RequestedByUser = rf.user(mt.RequestedBy)
	mt.Overdue = mt.IsOverdue(s.clock())
	return mt
}

// lockMaintenance locks the maintenance's materiel and then the maintenance.
func lockMaintenance(t *txn, op, id string) (*models.Maintenance, *models.Materiel, error) {
	peek, err := t.FindMaintenance(id)
	if err != nil {
		return nil, nil, miss(op, "maintenance", err)
	}
	m, err := t.LockMateriel(peek.MaterielID)
	if err != nil {
		return nil, nil, miss(op, "materiel", err)
	}
	mt, err := t.LockMaintenance(id)
	if err != nil {
		return nil, nil, miss(op, "maintenance", err)
	}
	return mt, m, nil
}

// releaseMaintenance puts a materiel under maintenance back to available;
// any other status is saved as is.
func releaseMaintenance(t *txn, op string, m *models.Materiel, reason string) error {
	if m.Status != models.MaterielMaintenance {
		return t.SaveMateriel(m)
	}
	return setDisposition(t, op, m, models.MaterielAvailable, nil, reason)
}
