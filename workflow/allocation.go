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

// Allocations runs request -> approve/reject -> return/cancel. Locks are
// always taken materiel first, then allocation.
type Allocations struct{ base }

func NewAllocations(d Deps) *Allocations { return &Allocations{newBase(d, "allocation")} }

type AllocationInput struct {
	MaterielID         string     `json:"materielId" validate:"required"`
	UserID             string     `json:"userId"` // holder; defaults to the caller
	Purpose            string     `json:"purpose" validate:"required,max=255"`
	Location           string     `json:"location" validate:"required,max=200"`
	ExpectedReturnDate *time.Time `json:"expectedReturnDate"`
	Notes              string     `json:"notes"`
}

type AllocationPatch struct {
	Purpose            *string    `json:"purpose" validate:"omitnil,min=1,max=255"`
	Location           *string    `json:"location" validate:"omitnil,min=1,max=200"`
	ExpectedReturnDate *time.Time `json:"expectedReturnDate"`
	Notes              *string    `json:"notes"` // appended, never replaces
}

type ReturnInput struct {
	Condition    string `json:"returnCondition" validate:"omitempty,oneof=excellent good fair poor"`
	DamageReport string `json:"damageReport"`
	Notes        string `json:"returnNotes"`
}

func (s *Allocations) Create(ctx context.Context, actor Actor, in AllocationInput) (*models.Allocation, error) {
	const op = "allocation.create"
	if err := check(op, in); err != nil {
		return nil, err
	}
	holder := in.UserID
	if holder == "" {
		holder = actor.UserID
	}
	if holder != actor.UserID && !actor.Role.Privileged() {
		return nil, forbidden(op, "only an admin may allocate to another user")
	}
	now := s.clock()
	if in.ExpectedReturnDate != nil && !in.ExpectedReturnDate.After(now) {
		return nil, invalid(op, "expectedReturnDate must be in the future")
	}
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(in.MaterielID)
		if err != nil {
			return miss(op, "materiel", err)
		}
		if m.Status != models.MaterielAvailable {
			return invalidState(op, "materiel is %s", m.Status)
		}
		n, err := t.CountActiveAllocations(m.ID, holder)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict(op, "user already has an active allocation for this materiel")
		}
		a := &models.Allocation{
			ID:                 uuid.NewString(),
			MaterielID:         m.ID,
			UserID:             holder,
			AllocatedBy:        actor.UserID,
			Status:             models.AllocationActive,
			ApprovalStatus:     models.ApprovalPending,
			AllocationDate:     t.now,
			ExpectedReturnDate: in.ExpectedReturnDate,
			Purpose:            strings.TrimSpace(in.Purpose),
			Location:           strings.TrimSpace(in.Location),
			Notes:              in.Notes,
		}
		if actor.Role.Privileged() {
			at := t.now
			a.ApprovalStatus = models.ApprovalApproved
			a.ApprovedBy = &actor.UserID
			a.ApprovalDate = &at
		}
		if err := t.CreateAllocation(a); err != nil {
			return uniq(op, "materiel already has a holding allocation", err)
		}
		if err := t.transition(models.EntityAllocation, a.ID, "create", "", string(a.ApprovalStatus), m.ID, ""); err != nil {
			return err
		}
		if a.Holding() {
			if err := setDisposition(t, op, m, models.MaterielAllocated, &holder, ""); err != nil {
				return err
			}
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

// Approve re-checks availability under the materiel lock; of two
// concurrent approvals the second sees approvalStatus=approved.
func (s *Allocations) Approve(ctx context.Context, actor Actor, id string) (*models.Allocation, error) {
	const op = "allocation.approve"
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		a, m, err := lockPair(t, op, id)
		if err != nil {
			return err
		}
		if a.ApprovalStatus != models.ApprovalPending || a.Status != models.AllocationActive {
			return invalidState(op, "allocation is %s/%s", a.Status, a.ApprovalStatus)
		}
		if m.Status != models.MaterielAvailable {
			return invalidState(op, "materiel is no longer available (%s)", m.Status)
		}
		at := t.now
		a.ApprovalStatus = models.ApprovalApproved
		a.ApprovedBy = &actor.UserID
		a.ApprovalDate = &at
		if err := t.SaveAllocation(a); err != nil {
			return uniq(op, "materiel already has a holding allocation", err)
		}
		if err := t.transition(models.EntityAllocation, a.ID, "approve", string(models.ApprovalPending), string(models.ApprovalApproved), m.ID, ""); err != nil {
			return err
		}
		if err := setDisposition(t, op, m, models.MaterielAllocated, &a.UserID, ""); err != nil {
			return err
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

func (s *Allocations) Reject(ctx context.Context, actor Actor, id, reason string) (*models.Allocation, error) {
	const op = "allocation.reject"
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid(op, "reason is required")
	}
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		a, err := t.LockAllocation(id)
		if err != nil {
			return miss(op, "allocation", err)
		}
		if a.Status != models.AllocationActive {
			return invalidState(op, "allocation is %s", a.Status)
		}
		if a.ApprovalStatus != models.ApprovalPending {
			return invalidState(op, "allocation is already %s", a.ApprovalStatus)
		}
		from := a.Status
		at := t.now
		a.ApprovalStatus = models.ApprovalRejected
		a.Status = models.AllocationCancelled
		a.ApprovedBy = &actor.UserID
		a.ApprovalDate = &at
		a.Notes = appendNote(a.Notes, "Rejection reason: "+reason)
		if err := t.SaveAllocation(a); err != nil {
			return err
		}
		if err := t.transition(models.EntityAllocation, a.ID, "reject", string(from), string(a.Status), a.MaterielID, reason); err != nil {
			return err
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

// Return closes a holding allocation and frees the materiel. Staff or the
// holder only.
func (s *Allocations) Return(ctx context.Context, actor Actor, id string, in ReturnInput) (*models.Allocation, error) {
	const op = "allocation.return"
	in.Condition = models.NormalizeCondition(in.Condition)
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		a, m, err := lockPair(t, op, id)
		if err != nil {
			return err
		}
		if !actor.Role.Staff() && a.UserID != actor.UserID {
			return forbidden(op, "not authorized to return this allocation")
		}
		if !a.Holding() {
			return invalidState(op, "allocation is not active (%s/%s)", a.Status, a.ApprovalStatus)
		}
		cond := models.Condition(in.Condition)
		if cond == "" {
			cond = models.ConditionGood
		}
		if err := closeHolding(t, op, a, cond, in.DamageReport, in.Notes, ""); err != nil {
			return err
		}
		if err := releaseAllocated(t, op, m, ""); err != nil {
			return err
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

// Cancel is allowed while the allocation is active, approved or not. A
// holding allocation gives its materiel back.
func (s *Allocations) Cancel(ctx context.Context, actor Actor, id string) (*models.Allocation, error) {
	const op = "allocation.cancel"
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		a, m, err := lockPair(t, op, id)
		if err != nil {
			return err
		}
		if !actor.Role.Staff() && a.UserID != actor.UserID {
			return forbidden(op, "not authorized to cancel this allocation")
		}
		if a.Status != models.AllocationActive {
			return invalidState(op, "allocation is %s", a.Status)
		}
		wasHolding := a.Holding()
		a.Status = models.AllocationCancelled
		a.Notes = appendNote(a.Notes, "Cancelled by: "+actorLabel(actor))
		if err := t.SaveAllocation(a); err != nil {
			return err
		}
		if err := t.transition(models.EntityAllocation, a.ID, "cancel", string(models.AllocationActive), string(a.Status), m.ID, ""); err != nil {
			return err
		}
		if wasHolding {
			if err := releaseAllocated(t, op, m, ""); err != nil {
				return err
			}
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

func (s *Allocations) Update(ctx context.Context, actor Actor, id string, p AllocationPatch) (*models.Allocation, error) {
	const op = "allocation.update"
	if err := check(op, p); err != nil {
		return nil, err
	}
	var out *models.Allocation
	err := s.do(ctx, op, actor, func(t *txn) error {
		a, err := t.LockAllocation(id)
		if err != nil {
			return miss(op, "allocation", err)
		}
		if !actor.Role.Staff() && a.UserID != actor.UserID {
			return forbidden(op, "not authorized to update this allocation")
		}
		if a.Status != models.AllocationActive {
			return invalidState(op, "allocation is %s", a.Status)
		}
		if p.Purpose != nil {
			a.Purpose = strings.TrimSpace(*p.Purpose)
		}
		if p.Location != nil {
			a.Location = strings.TrimSpace(*p.Location)
		}
		if p.ExpectedReturnDate != nil {
			if !p.ExpectedReturnDate.After(a.AllocationDate) {
				return invalid(op, "expectedReturnDate must be after allocationDate")
			}
			a.ExpectedReturnDate = p.ExpectedReturnDate
		}
		if p.Notes != nil && strings.TrimSpace(*p.Notes) != "" {
			a.Notes = appendNote(a.Notes, strings.TrimSpace(*p.Notes))
		}
		if err := t.SaveAllocation(a); err != nil {
			return err
		}
		if err := t.transition(models.EntityAllocation, a.ID, "update", "", "", a.MaterielID, ""); err != nil {
			return err
		}
		out = s.resolve(t, a)
		return nil
	})
	return out, err
}

// Assign allocates a materiel straight to a holder, approved on creation.
func (s *Allocations) Assign(ctx context.Context, actor Actor, materielID, holderID, purpose, location string, expected *time.Time) (*models.Allocation, error) {
	const op = "materiel.assign"
	if !actor.Role.Privileged() {
		return nil, forbidden(op, "only an admin may assign materiel")
	}
	if holderID == "" {
		return nil, invalid(op, "userId is required")
	}
	if purpose == "" {
		purpose = "direct assignment"
	}
	if location == "" {
		err := s.read(ctx, func(tx store.Tx) error {
			m, err := tx.FindMateriel(materielID)
			if err != nil {
				return miss(op, "materiel", err)
			}
			location = m.Location
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s.Create(ctx, actor, AllocationInput{
		MaterielID: materielID, UserID: holderID, Purpose: purpose, Location: location, ExpectedReturnDate: expected,
	})
}

// ReturnByAsset returns whatever currently holds the materiel: its holding
// allocation, or the bare assignment made by an equipment request.
func (s *Allocations) ReturnByAsset(ctx context.Context, actor Actor, materielID string, in ReturnInput) (*models.Materiel, error) {
	const op = "materiel.return"
	in.Condition = models.NormalizeCondition(in.Condition)
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.Materiel
	err := s.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(materielID)
		if err != nil {
			return miss(op, "materiel", err)
		}
		if m.Status != models.MaterielAllocated {
			return invalidState(op, "materiel is %s", m.Status)
		}
		if !actor.Role.Staff() && (m.AssignedTo == nil || *m.AssignedTo != actor.UserID) {
			return forbidden(op, "not authorized to return this materiel")
		}
		a, err := t.FindHoldingAllocation(m.ID)
		switch {
		case err == nil:
			cond := models.Condition(in.Condition)
			if cond == "" {
				cond = models.ConditionGood
			}
			if err := closeHolding(t, op, a, cond, in.DamageReport, in.Notes, ""); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return err
		}
		if err := releaseAllocated(t, op, m, ""); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func (s *Allocations) Get(ctx context.Context, actor Actor, id string) (*models.Allocation, error) {
	const op = "allocation.get"
	var out *models.Allocation
	err := s.read(ctx, func(tx store.Tx) error {
		a, err := tx.FindAllocation(id)
		if err != nil {
			return miss(op, "allocation", err)
		}
		if !actor.Role.Staff() && a.UserID != actor.UserID {
			return forbidden(op, "not authorized to view this allocation")
		}
		out = s.resolveRefs(newRefs(tx), a)
		return nil
	})
	return out, err
}

// List applies the caller's scope: employees only ever see their own.
func (s *Allocations) List(ctx context.Context, actor Actor, q store.AllocationQuery, overdue bool) (Page[models.Allocation], error) {
	if !actor.Role.Staff() {
		q.UserID = actor.UserID
	}
	if overdue {
		now := s.clock()
		q.OverdueAt = &now
	}
	return s.list(ctx, q)
}

func (s *Allocations) ListForUser(ctx context.Context, actor Actor, userID string, q store.AllocationQuery) (Page[models.Allocation], error) {
	if !actor.Role.Staff() && userID != actor.UserID {
		return Page[models.Allocation]{}, forbidden("allocation.listForUser", "not authorized to view these allocations")
	}
	q.UserID = userID
	return s.list(ctx, q)
}

func (s *Allocations) list(ctx context.Context, q store.AllocationQuery) (Page[models.Allocation], error) {
	var out Page[models.Allocation]
	err := s.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListAllocations(q)
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

func (s *Allocations) resolve(t *txn, a *models.Allocation) *models.Allocation {
	return s.resolveRefs(newRefs(t.Tx), a)
}

func (s *Allocations) resolveRefs(rf *refs, a *models.Allocation) *models.Allocation {
	a.Materiel = rf.asset(a.MaterielID)
	a.User = rf.user(a.UserID)
	a.AllocatedByUser = rf.user(a.AllocatedBy)
	a.Derive(s.clock())
	return a
}

// lockPair locks the allocation's materiel and then the allocation.
func lockPair(t *txn, op, id string) (*models.Allocation, *models.Materiel, error) {
	peek, err := t.FindAllocation(id)
	if err != nil {
		return nil, nil, miss(op, "allocation", err)
	}
	m, err := t.LockMateriel(peek.MaterielID)
	if err != nil {
		return nil, nil, miss(op, "materiel", err)
	}
	a, err := t.LockAllocation(id)
	if err != nil {
		return nil, nil, miss(op, "allocation", err)
	}
	return a, m, nil
}

// closeHolding marks a holding allocation returned.
func closeHolding(t *txn, op string, a *models.Allocation, cond models.Condition, damage, notes, reason string) error {
	at := t.now
	a.Status = models.AllocationReturned
	a.ReturnDate = &at
	a.ReturnedBy = &t.actor.UserID
	a.ReturnCondition = cond
	a.DamageReport = damage
	a.ReturnNotes = notes
	if err := t.SaveAllocation(a); err != nil {
		return err
	}
	return t.transition(models.EntityAllocation, a.ID, "return", string(models.AllocationActive), string(a.Status), a.MaterielID, reason)
}

// releaseAllocated puts an allocated materiel back to available.
func releaseAllocated(t *txn, op string, m *models.Materiel, reason string) error {
	if m.Status != models.MaterielAllocated {
		return nil
	}
	return setDisposition(t, op, m, models.MaterielAvailable, nil, reason)
}

func actorLabel(a Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return a.UserID
}
