package workflow

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"

	"github.com/rs/zerolog"
)

func TestCriticalFaultPullsAssetFromService(t *testing.T) {
	f := newFixture(t)

	t.Run("available asset", func(t *testing.T) {
		m := f.asset(t, "Router")
		r, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{
			MaterielID: m.ID, FaultType: "hardware", Description: "sparks", Severity: "critical",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if r.Status != models.FaultReported || r.Materiel == nil {
			t.Errorf("report: %+v", r)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielOutOfService {
			t.Errorf("asset %s, want out_of_service", got.Status)
		}
	})

	t.Run("allocated asset is returned first", func(t *testing.T) {
		m := f.asset(t, "Laptop")
		a, err := f.alloc.Create(f.ctx, admin, AllocationInput{MaterielID: m.ID, UserID: employee.UserID, Purpose: "p", Location: "l"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{
			MaterielID: m.ID, FaultType: "power", Description: "won't boot", Severity: "critical",
		}); err != nil {
			t.Fatal(err)
		}
		got := f.materiel(t, m.ID)
		if got.Status != models.MaterielOutOfService || got.AssignedTo != nil {
			t.Errorf("asset %s assignedTo=%v", got.Status, got.AssignedTo)
		}
		if a := f.allocation(t, a.ID); a.Status != models.AllocationReturned {
			t.Errorf("allocation %s, want returned", a.Status)
		}
	})

	t.Run("asset under maintenance stays out of service", func(t *testing.T) {
		m := f.asset(t, "Cam")
		mt, err := f.maint.Create(f.ctx, tech, MaintenanceInput{MaterielID: m.ID, Type: "corrective", Description: "lens", EstimatedDuration: 1})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{
			MaterielID: m.ID, FaultType: "hardware", Description: "smoke from grip", Severity: "critical",
		}); err != nil {
			t.Fatal(err)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielOutOfService {
			t.Fatalf("asset %s, want out_of_service", got.Status)
		}
		if _, err := f.maint.Complete(f.ctx, tech, mt.ID, CompleteInput{Solution: "new lens"}); err != nil {
			t.Fatalf("complete: %v", err)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielOutOfService {
			t.Errorf("asset after completing maintenance: %s, want out_of_service", got.Status)
		}
	})

	t.Run("non-critical leaves the asset", func(t *testing.T) {
		m := f.asset(t, "Mouse")
		if _, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{
			MaterielID: m.ID, FaultType: "hardware", Description: "sticky wheel", Severity: "high",
		}); err != nil {
			t.Fatal(err)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable {
			t.Errorf("asset %s", got.Status)
		}
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{MaterielID: "nope", FaultType: "other", Description: "d"})
		wantKind(t, err, ErrNotFound)
	})
	f.checkInvariants(t)
}

func TestFaultProgressesForwardOnly(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Switch")
	r, err := f.intake.CreateFault(f.ctx, employee, FaultReportInput{MaterielID: m.ID, FaultType: "network", Description: "flapping"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Severity != models.SeverityMedium || r.Impact != "minor" {
		t.Errorf("defaults: %s/%s", r.Severity, r.Impact)
	}

	r, err = f.intake.UpdateFault(f.ctx, tech, r.ID, FaultReportPatch{Status: "acknowledged", AssignedTechnician: tech.UserID})
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if r.AcknowledgedBy == nil || r.AssignedTechnician == nil || *r.AssignedTechnician != tech.UserID {
		t.Errorf("acknowledge stamps: %+v", r)
	}
	_, err = f.intake.UpdateFault(f.ctx, tech, r.ID, FaultReportPatch{Status: "reported"})
	wantKind(t, err, ErrInvalidState)

	r, err = f.intake.UpdateFault(f.ctx, tech, r.ID, FaultReportPatch{Status: "resolved", Resolution: "new cable"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Resolution != "new cable" || r.ResolvedBy == nil || r.ResolvedDate == nil {
		t.Errorf("resolve stamps: %+v", r)
	}
	if _, err := f.intake.UpdateFault(f.ctx, tech, r.ID, FaultReportPatch{Status: "closed"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = f.intake.UpdateFault(f.ctx, tech, r.ID, FaultReportPatch{Notes: "late note"})
	wantKind(t, err, ErrInvalidState)

	mine, err := f.intake.ListFaults(f.ctx, other, store.FaultReportQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if mine.Total != 0 {
		t.Errorf("other employee sees %d reports", mine.Total)
	}
	assigned, err := f.intake.ListFaults(f.ctx, tech, store.FaultReportQuery{TechnicianID: tech.UserID})
	if err != nil {
		t.Fatal(err)
	}
	if assigned.Total != 1 {
		t.Errorf("technician sees %d assigned reports", assigned.Total)
	}
}

func TestEquipmentRequestApprovalAllocatesAsset(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Spare camera")
	needed := f.now.Add(72 * time.Hour)

	r, err := f.intake.CreateRequest(f.ctx, employee, EquipmentRequestInput{
		EquipmentType: "Caméra", Description: "backup body", Purpose: "wedding shoot", Priority: "haute", NeededBy: needed,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.EquipmentType != "camera" || r.Priority != models.PriorityHigh || r.Status != models.RequestPending {
		t.Errorf("request: %+v", r)
	}

	r, err = f.intake.UpdateRequestStatus(f.ctx, manager, r.ID, RequestStatusInput{Status: "approved", AssignedEquipment: m.ID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if r.Status != models.RequestApproved || r.Equipment == nil || r.Equipment.ID != m.ID {
		t.Errorf("approved request: %+v", r)
	}
	got := f.materiel(t, m.ID)
	if got.Status != models.MaterielAllocated || got.AssignedTo == nil || *got.AssignedTo != employee.UserID {
		t.Fatalf("asset %s assignedTo=%v", got.Status, got.AssignedTo)
	}
	f.checkInvariants(t)

	// a second request cannot take the same asset
	r2, err := f.intake.CreateRequest(f.ctx, other, EquipmentRequestInput{
		EquipmentType: "camera", Description: "d", Purpose: "p", NeededBy: needed,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.intake.UpdateRequestStatus(f.ctx, manager, r2.ID, RequestStatusInput{Status: "approved", AssignedEquipment: m.ID})
	wantKind(t, err, ErrInvalidState)

	// there is no allocation row; the asset-level return releases it
	if _, err := f.alloc.ReturnByAsset(f.ctx, employee, m.ID, ReturnInput{}); err != nil {
		t.Fatalf("return by asset: %v", err)
	}
	if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable || got.AssignedTo != nil {
		t.Errorf("asset after return: %s", got.Status)
	}
	f.checkInvariants(t)
}

func TestEquipmentRequestTransitions(t *testing.T) {
	f := newFixture(t)
	needed := f.now.Add(24 * time.Hour)
	newReq := func() *models.EquipmentRequest {
		r, err := f.intake.CreateRequest(f.ctx, employee, EquipmentRequestInput{
			EquipmentType: "tablet", Description: "d", Purpose: "p", NeededBy: needed,
		})
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	_, err := f.intake.CreateRequest(f.ctx, employee, EquipmentRequestInput{
		EquipmentType: "tablet", Description: "d", Purpose: "p", NeededBy: needed, Priority: "someday",
	})
	wantKind(t, err, ErrValidation)

	r := newReq()
	r, err = f.intake.UpdateRequestStatus(f.ctx, admin, r.ID, RequestStatusInput{Status: "rejected", RejectionReason: "budget"})
	if err != nil {
		t.Fatal(err)
	}
	if r.RejectionReason != "budget" {
		t.Errorf("rejectionReason = %q", r.RejectionReason)
	}
	_, err = f.intake.UpdateRequestStatus(f.ctx, admin, r.ID, RequestStatusInput{Status: "approved"})
	wantKind(t, err, ErrInvalidState)

	r = newReq()
	_, err = f.intake.CancelRequest(f.ctx, other, r.ID)
	wantKind(t, err, ErrForbidden)
	r, err = f.intake.CancelRequest(f.ctx, employee, r.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if r.Status != models.RequestCancelled {
		t.Errorf("status %s", r.Status)
	}
	_, err = f.intake.CancelRequest(f.ctx, employee, r.ID)
	wantKind(t, err, ErrInvalidState)

	// cancelling an approved request hands its asset back
	m := f.asset(t, "Tab")
	r = newReq()
	if _, err := f.intake.UpdateRequestStatus(f.ctx, admin, r.ID, RequestStatusInput{Status: "approved", AssignedEquipment: m.ID}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.intake.CancelRequest(f.ctx, employee, r.ID); err != nil {
		t.Fatal(err)
	}
	if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable {
		t.Errorf("asset after cancel: %s", got.Status)
	}
	f.checkInvariants(t)

	page, err := f.intake.ListRequests(f.ctx, other, store.EquipmentRequestQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("other employee sees %d requests", page.Total)
	}
}

// lockLog wraps a store and records the order of row locks taken on
// materiel and equipment requests.
type lockLog struct {
	store.Store
	order []string
}

func (l *lockLog) Tx(ctx context.Context, fn func(store.Tx) error) error {
	return l.Store.Tx(ctx, func(tx store.Tx) error { return fn(&loggedTx{Tx: tx, log: l}) })
}

type loggedTx struct {
	store.Tx
	log *lockLog
}

func (t *loggedTx) LockMateriel(id string) (*models.Materiel, error) {
	t.log.order = append(t.log.order, "materiel")
	return t.Tx.LockMateriel(id)
}

func (t *loggedTx) LockEquipmentRequest(id string) (*models.EquipmentRequest, error) {
	t.log.order = append(t.log.order, "request")
	return t.Tx.LockEquipmentRequest(id)
}

func TestRequestTransitionsLockMaterielFirst(t *testing.T) {
	f := newFixture(t)
	locks := &lockLog{Store: f.st}
	intake := NewIntake(Deps{Store: locks, Log: zerolog.Nop(), Now: func() time.Time { return f.now }})
	needed := f.now.Add(24 * time.Hour)

	approved := func() *models.EquipmentRequest {
		m := f.asset(t, "Projector")
		r, err := f.intake.CreateRequest(f.ctx, employee, EquipmentRequestInput{EquipmentType: "projector", Description: "d", Purpose: "p", NeededBy: needed})
		if err != nil {
			t.Fatal(err)
		}
		r, err = f.intake.UpdateRequestStatus(f.ctx, admin, r.ID, RequestStatusInput{Status: "approved", AssignedEquipment: m.ID})
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	tests := []struct {
		name string
		run  func(id string) error
	}{
		{"cancel by requester", func(id string) error {
			_, err := intake.CancelRequest(f.ctx, employee, id)
			return err
		}},
		{"cancel through status", func(id string) error {
			_, err := intake.UpdateRequestStatus(f.ctx, manager, id, RequestStatusInput{Status: "cancelled"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := approved()
			locks.order = nil
			if err := tt.run(r.ID); err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if len(locks.order) < 2 || locks.order[0] != "materiel" || locks.order[1] != "request" {
				t.Errorf("lock order = %v, want materiel before request", locks.order)
			}
			if got := f.materiel(t, *r.AssignedEquipment); got.Status != models.MaterielAvailable {
				t.Errorf("asset after cancel: %s", got.Status)
			}
		})
	}

	// a second asset on an already served request is refused before any lock
	r := approved()
	locks.order = nil
	spare := f.asset(t, "Spare projector")
	_, err := intake.UpdateRequestStatus(f.ctx, admin, r.ID, RequestStatusInput{Status: "fulfilled", AssignedEquipment: spare.ID})
	wantKind(t, err, ErrInvalidState)
	if len(locks.order) != 0 {
		t.Errorf("locks taken = %v", locks.order)
	}
	f.checkInvariants(t)
}
