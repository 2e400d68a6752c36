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

// Intake owns fault reports and equipment requests. Both can reach into
// the registry: a critical fault pulls the materiel from service and an
// approved request can hand a materiel to its requester.
type Intake struct{ base }

func NewIntake(d Deps) *Intake { return &Intake{newBase(d, "intake")} }

type FaultReportInput struct {
	MaterielID  string `json:"materielId" validate:"required"`
	FaultType   string `json:"faultType" validate:"required,oneof=hardware software network power physical_damage other"`
	Description string `json:"description" validate:"required"`
	Severity    string `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Impact      string `json:"impact" validate:"omitempty,oneof=none minor moderate major critical"`
	Workaround  string `json:"workaround"`
}

type FaultReportPatch struct {
	Status             string `json:"status" validate:"omitempty,oneof=reported acknowledged in_progress resolved closed"`
	AssignedTechnician string `json:"assignedTechnician"`
	Resolution         string `json:"resolution"`
	Notes              string `json:"notes"`
}

type EquipmentRequestInput struct {
	EquipmentType string    `json:"equipmentType" validate:"required,max=60"`
	Description   string    `json:"description" validate:"required"`
	Purpose       string    `json:"purpose" validate:"required,max=255"`
	Priority      string    `json:"priority"`
	NeededBy      time.Time `json:"neededBy" validate:"required"`
}

type RequestStatusInput struct {
	Status            string `json:"status" validate:"required,oneof=pending approved rejected fulfilled cancelled"`
	AssignedEquipment string `json:"assignedEquipment"`
	Notes             string `json:"notes"`
	RejectionReason   string `json:"rejectionReason"`
}

// CreateFault files a report. A critical one takes the materiel out of
// service at once, returning whatever holds it.
func (s *Intake) CreateFault(ctx context.Context, actor Actor, in FaultReportInput) (*models.FaultReport, error) {
	const op = "fault.create"
	if err := check(op, in); err != nil {
		return nil, err
	}
	var out *models.FaultReport
	err := s.do(ctx, op, actor, func(t *txn) error {
		m, err := t.LockMateriel(in.MaterielID)
		if err != nil {
			return miss(op, "materiel", err)
		}
		f := &models.FaultReport{
			ID:           uuid.NewString(),
			ReportedBy:   actor.UserID,
			MaterielID:   m.ID,
			FaultType:    in.FaultType,
			Description:  in.Description,
			Severity:     models.SeverityMedium,
			Impact:       "minor",
			Workaround:   in.Workaround,
			Status:       models.FaultReported,
			ReportedDate: t.now,
		}
		if in.Severity != "" {
			f.Severity = models.Severity(in.Severity)
		}
		if in.Impact != "" {
			f.Impact = in.Impact
		}
		if err := t.CreateFaultReport(f); err != nil {
			return err
		}
		if err := t.transition(models.EntityFaultReport, f.ID, "create", "", string(f.Status), m.ID, ""); err != nil {
			return err
		}
		if f.Severity == models.SeverityCritical {
			if err := s.pullFromService(t, op, m, f); err != nil {
				return err
			}
		}
		out = f
		out.Materiel = m.Ref()
		out.ReportedByUser = newRefs(t.Tx).user(f.ReportedBy)
		return nil
	})
	return out, err
}

func (s *Intake) pullFromService(t *txn, op string, m *models.Materiel, f *models.FaultReport) error {
	reason := "critical fault reported: " + f.ID
	switch m.Status {
	case models.MaterielAvailable:
	case models.MaterielAllocated:
		a, err := t.FindHoldingAllocation(m.ID)
		switch {
		case err == nil:
			if err := closeHolding(t, op, a, a.ReturnCondition, f.Description, "Returned on critical fault report", reason); err != nil {
				return err
			}
		case errors.Is(err, store.ErrNotFound):
		default:
			return err
		}
	case models.MaterielMaintenance:
	case models.MaterielOutOfService, models.MaterielIrreparable:
		return nil
	}
	return setDisposition(t, op, m, models.MaterielOutOfService, nil, reason)
}

// UpdateFault moves a report forward and stamps who acknowledged,
// assigned or resolved it.
func (s *Intake) UpdateFault(ctx context.Context, actor Actor, id string, p FaultReportPatch) (*models.FaultReport, error) {
	const op = "fault.update"
	if err := check(op, p); err != nil {
		return nil, err
	}
	var out *models.FaultReport
	err := s.do(ctx, op, actor, func(t *txn) error {
		f, err := t.LockFaultReport(id)
		if err != nil {
			return miss(op, "fault report", err)
		}
		from := f.Status
		at := t.now
		if p.Status != "" {
			to := models.FaultStatus(p.Status)
			if !from.CanMoveTo(to) {
				return invalidState(op, "cannot move fault report from %s to %s", from, to)
			}
			f.Status = to
			switch to {
			case models.FaultAcknowledged:
				f.AcknowledgedBy = &actor.UserID
				f.AcknowledgedDate = &at
			case models.FaultResolved:
				f.Resolution = p.Resolution
				f.ResolvedBy = &actor.UserID
				f.ResolvedDate = &at
			case models.FaultReported, models.FaultInProgress, models.FaultClosed:
			}
		} else if f.Status == models.FaultClosed {
			return invalidState(op, "fault report is closed")
		}
		if p.AssignedTechnician != "" {
			f.AssignedTechnician = &p.AssignedTechnician
			f.AssignedDate = &at
		}
		if n := strings.TrimSpace(p.Notes); n != "" {
			f.Notes = appendNote(f.Notes, n)
		}
		if err := t.SaveFaultReport(f); err != nil {
			return err
		}
		if err := t.transition(models.EntityFaultReport, f.ID, "update", string(from), string(f.Status), f.MaterielID, ""); err != nil {
			return err
		}
		rf := newRefs(t.Tx)
		f.Materiel = rf.asset(f.MaterielID)
		f.ReportedByUser = rf.user(f.ReportedBy)
		out = f
		return nil
	})
	return out, err
}

// ListFaults scopes employees to their own reports.
func (s *Intake) ListFaults(ctx context.Context, actor Actor, q store.FaultReportQuery) (Page[models.FaultReport], error) {
	if !actor.Role.Staff() {
		q.ReportedBy = actor.UserID
	}
	var out Page[models.FaultReport]
	err := s.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListFaultReports(q)
		if err != nil {
			return err
		}
		rf := newRefs(tx)
		for i := range rows {
			rows[i].Materiel = rf.asset(rows[i].MaterielID)
			rows[i].ReportedByUser = rf.user(rows[i].ReportedBy)
		}
		out = pageOf(rows, total, q.Page)
		return nil
	})
	return out, err
}

var requestPriorities = map[string]models.Priority{
	"":         models.PriorityNormal,
	"low":      models.PriorityLow,
	"basse":    models.PriorityLow,
	"normal":   models.PriorityNormal,
	"normale":  models.PriorityNormal,
	"high":     models.PriorityHigh,
	"haute":    models.PriorityHigh,
	"critical": models.PriorityCritical,
	"urgent":   models.PriorityCritical,
	"urgente":  models.PriorityCritical,
}

func (s *Intake) CreateRequest(ctx context.Context, actor Actor, in EquipmentRequestInput) (*models.EquipmentRequest, error) {
	const op = "request.create"
	if err := check(op, in); err != nil {
		return nil, err
	}
	prio, ok := requestPriorities[strings.ToLower(strings.TrimSpace(in.Priority))]
	if !ok {
		return nil, invalid(op, "unknown priority %q", in.Priority)
	}
	var out *models.EquipmentRequest
	err := s.do(ctx, op, actor, func(t *txn) error {
		r := &models.EquipmentRequest{
			ID:            uuid.NewString(),
			RequestedBy:   actor.UserID,
			EquipmentType: models.NormalizeType(in.EquipmentType),
			Description:   in.Description,
			Purpose:       in.Purpose,
			Priority:      prio,
			Status:        models.RequestPending,
			RequestedDate: t.now,
			NeededBy:      in.NeededBy,
		}
		if err := t.CreateEquipmentRequest(r); err != nil {
			return err
		}
		if err := t.transition(models.EntityEquipmentRequest, r.ID, "create", "", string(r.Status), "", ""); err != nil {
			return err
		}
		out = s.resolveRequest(newRefs(t.Tx), r)
		return nil
	})
	return out, err
}

// requestMoves lists the statuses reachable from each non-terminal status.
var requestMoves = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending:  {models.RequestApproved, models.RequestRejected, models.RequestCancelled},
	models.RequestApproved: {models.RequestFulfilled, models.RequestCancelled},
}

func canMoveRequest(from, to models.RequestStatus) bool {
	for _, s := range requestMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateRequestStatus decides a request. Approving or fulfilling with
// AssignedEquipment hands that materiel to the requester directly.
func (s *Intake) UpdateRequestStatus(ctx context.Context, actor Actor, id string, in RequestStatusInput) (*models.EquipmentRequest, error) {
	const op = "request.updateStatus"
	if err := check(op, in); err != nil {
		return nil, err
	}
	to := models.RequestStatus(in.Status)
	if in.AssignedEquipment != "" && to != models.RequestApproved && to != models.RequestFulfilled {
		return nil, invalid(op, "assignedEquipment only applies when approving")
	}
	var out *models.EquipmentRequest
	err := s.do(ctx, op, actor, func(t *txn) error {
		var m *models.Materiel
		if in.AssignedEquipment != "" {
			peek, err := t.FindEquipmentRequest(id)
			if err != nil {
				return miss(op, "equipment request", err)
			}
			if peek.AssignedEquipment != nil {
				return invalidState(op, "request already has assigned equipment")
			}
			if m, err = t.LockMateriel(in.AssignedEquipment); err != nil {
				return miss(op, "materiel", err)
			}
		}
		r, err := lockRequest(t, op, id)
		if err != nil {
			return err
		}
		from := r.Status
		if !canMoveRequest(from, to) {
			return invalidState(op, "cannot move request from %s to %s", from, to)
		}
		at := t.now
		r.Status = to
		switch to {
		case models.RequestApproved:
			r.ApprovedBy = &actor.UserID
			r.ApprovedDate = &at
		case models.RequestRejected:
			r.RejectionReason = strings.TrimSpace(in.RejectionReason)
		case models.RequestCancelled:
			if err := releaseRequested(t, op, r); err != nil {
				return err
			}
		case models.RequestPending, models.RequestFulfilled:
		}
		if m != nil {
			if r.AssignedEquipment != nil {
				return invalidState(op, "request already has assigned equipment")
			}
			if m.Status != models.MaterielAvailable {
				return invalidState(op, "materiel is %s", m.Status)
			}
			r.AssignedEquipment = &m.ID
			r.AssignedDate = &at
			if err := setDisposition(t, op, m, models.MaterielAllocated, &r.RequestedBy, "equipment request "+r.ID); err != nil {
				return err
			}
		}
		if n := strings.TrimSpace(in.Notes); n != "" {
			r.Notes = appendNote(r.Notes, n)
		}
		if err := t.SaveEquipmentRequest(r); err != nil {
			return err
		}
		if err := t.transition(models.EntityEquipmentRequest, r.ID, "status", string(from), string(to), derefOr(r.AssignedEquipment), in.RejectionReason); err != nil {
			return err
		}
		out = s.resolveRequest(newRefs(t.Tx), r)
		return nil
	})
	return out, err
}

// CancelRequest lets the requester (or staff) withdraw a request that has
// not been decided or fulfilled.
func (s *Intake) CancelRequest(ctx context.Context, actor Actor, id string) (*models.EquipmentRequest, error) {
	const op = "request.cancel"
	var out *models.EquipmentRequest
	err := s.do(ctx, op, actor, func(t *txn) error {
		peek, err := lockRequest(t, op, id)
		if err != nil {
			return err
		}
		if !actor.Role.Staff() && peek.RequestedBy != actor.UserID {
			return forbidden(op, "not authorized to cancel this request")
		}
		if !canMoveRequest(peek.Status, models.RequestCancelled) {
			return invalidState(op, "request is %s", peek.Status)
		}
		from := peek.Status
		if err := releaseRequested(t, op, peek); err != nil {
			return err
		}
		peek.Status = models.RequestCancelled
		peek.Notes = appendNote(peek.Notes, "Cancelled by: "+actorLabel(actor))
		if err := t.SaveEquipmentRequest(peek); err != nil {
			return err
		}
		if err := t.transition(models.EntityEquipmentRequest, peek.ID, "cancel", string(from), string(peek.Status), derefOr(peek.AssignedEquipment), ""); err != nil {
			return err
		}
		out = s.resolveRequest(newRefs(t.Tx), peek)
		return nil
	})
	return out, err
}

// lockRequest locks the materiel a request holds before the request itself,
// matching the materiel-first order of every other workflow.
func lockRequest(t *txn, op, id string) (*models.EquipmentRequest, error) {
	peek, err := t.FindEquipmentRequest(id)
	if err != nil {
		return nil, miss(op, "equipment request", err)
	}
	if peek.AssignedEquipment != nil {
		if _, err := t.LockMateriel(*peek.AssignedEquipment); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	r, err := t.LockEquipmentRequest(id)
	if err != nil {
		return nil, miss(op, "equipment request", err)
	}
	if derefOr(r.AssignedEquipment) != derefOr(peek.AssignedEquipment) {
		return nil, conflict(op, "equipment request changed concurrently, retry")
	}
	return r, nil
}

// releaseRequested frees the materiel a cancelled request was holding, if
// it is still assigned to the requester outside any allocation.
func releaseRequested(t *txn, op string, r *models.EquipmentRequest) error {
	if r.AssignedEquipment == nil {
		return nil
	}
	m, err := t.LockMateriel(*r.AssignedEquipment)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.Status != models.MaterielAllocated || m.AssignedTo == nil || *m.AssignedTo != r.RequestedBy {
		return nil
	}
	if _, err := t.FindHoldingAllocation(m.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return setDisposition(t, op, m, models.MaterielAvailable, nil, "equipment request "+r.ID+" cancelled")
}

// ListRequests scopes employees to their own requests.
func (s *Intake) ListRequests(ctx context.Context, actor Actor, q store.EquipmentRequestQuery) (Page[models.EquipmentRequest], error) {
	if !actor.Role.Staff() {
		q.RequestedBy = actor.UserID
	}
	var out Page[models.EquipmentRequest]
	err := s.read(ctx, func(tx store.Tx) error {
		rows, total, err := tx.ListEquipmentRequests(q)
		if err != nil {
			return err
		}
		rf := newRefs(tx)
		for i := range rows {
			s.resolveRequest(rf, &rows[i])
		}
		out = pageOf(rows, total, q.Page)
		return nil
	})
	return out, err
}

func (s *Intake) resolveRequest(rf *refs, r *models.EquipmentRequest) *models.EquipmentRequest {
	r.RequestedByUser = rf.user(r.RequestedBy)
	if r.AssignedEquipment != nil {
		r.Equipment = rf.asset(*r.AssignedEquipment)
	}
	return r
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
