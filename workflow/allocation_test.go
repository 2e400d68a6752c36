package workflow

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
)

func TestRequestThenApprove(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Sony FX3")

	a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "filming", Location: "Studio B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ApprovalStatus != models.ApprovalPending || a.Status != models.AllocationActive {
		t.Fatalf("got %s/%s, want active/pending", a.Status, a.ApprovalStatus)
	}
	if a.UserID != employee.UserID || a.AllocatedBy != employee.UserID {
		t.Errorf("holder=%s allocatedBy=%s", a.UserID, a.AllocatedBy)
	}
	if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable || got.AssignedTo != nil {
		t.Fatalf("pending request touched the asset: %s", got.Status)
	}

	a, err = f.alloc.Approve(f.ctx, admin, a.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if a.ApprovalStatus != models.ApprovalApproved || a.ApprovedBy == nil || *a.ApprovedBy != admin.UserID {
		t.Errorf("approval not stamped: %+v", a)
	}
	got := f.materiel(t, m.ID)
	if got.Status != models.MaterielAllocated || got.AssignedTo == nil || *got.AssignedTo != employee.UserID {
		t.Fatalf("asset after approve: status=%s assignedTo=%v", got.Status, got.AssignedTo)
	}
	if got.Assignee == nil || got.Assignee.Name != employee.Name {
		t.Errorf("assignee not resolved: %+v", got.Assignee)
	}
	f.checkInvariants(t)
}

func TestApproveTwice(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Zoom H6")
	a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "podcast", Location: "Room 2"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.alloc.Approve(f.ctx, admin, a.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	_, err = f.alloc.Approve(f.ctx, admin, a.ID)
	wantKind(t, err, ErrInvalidState)
	f.checkInvariants(t)
}

func TestConcurrentApprove(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Canon C70")
	a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "shoot", Location: "Field"})
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.alloc.Approve(f.ctx, manager, a.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrInvalidState) || errors.Is(err, ErrConflict):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || rejected != n-1 {
		t.Fatalf("ok=%d rejected=%d, want 1 and %d", ok, rejected, n-1)
	}
	f.checkInvariants(t)
}

// Two requests for one asset: once the first is approved the second can
// no longer be.
func TestApproveRechecksAvailability(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Rode NTG")
	a1, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "a", Location: "x"})
	if err != nil {
		t.Fatal(err)
	}
	a2, err := f.alloc.Create(f.ctx, other, AllocationInput{MaterielID: m.ID, Purpose: "b", Location: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.alloc.Approve(f.ctx, admin, a1.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.alloc.Approve(f.ctx, admin, a2.ID)
	wantKind(t, err, ErrInvalidState)
	if got := f.allocation(t, a2.ID); got.ApprovalStatus != models.ApprovalPending {
		t.Errorf("failed approve changed the record: %s", got.ApprovalStatus)
	}
	f.checkInvariants(t)
}

func TestPrivilegedCreateAndReturn(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "MacBook Pro")

	a, err := f.alloc.Create(f.ctx, admin, AllocationInput{
		MaterielID: m.ID, UserID: employee.UserID, Purpose: "editing", Location: "Office 4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !a.Holding() {
		t.Fatalf("admin allocation should be approved and active, got %s/%s", a.Status, a.ApprovalStatus)
	}
	if got := f.materiel(t, m.ID); got.Status != models.MaterielAllocated || *got.AssignedTo != employee.UserID {
		t.Fatalf("asset not allocated: %s", got.Status)
	}
	f.checkInvariants(t)

	f.now = f.now.Add(36 * time.Hour)
	a, err = f.alloc.Return(f.ctx, employee, a.ID, ReturnInput{Condition: "Bon", Notes: "all fine"})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if a.Status != models.AllocationReturned || a.ReturnDate == nil || a.ReturnCondition != models.ConditionGood {
		t.Errorf("return not stamped: %+v", a)
	}
	if a.ReturnedBy == nil || *a.ReturnedBy != employee.UserID {
		t.Errorf("returnedBy = %v", a.ReturnedBy)
	}
	if a.DurationDays != 2 {
		t.Errorf("duration = %d, want 2 (36h rounded up)", a.DurationDays)
	}
	got := f.materiel(t, m.ID)
	if got.Status != models.MaterielAvailable || got.AssignedTo != nil || got.AssignedDate != nil {
		t.Fatalf("asset after return: %s assignedTo=%v", got.Status, got.AssignedTo)
	}
	f.checkInvariants(t)
}

func TestCreateAllocationFailures(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Tripod")
	busy := f.asset(t, "Gimbal")
	if _, err := f.alloc.Create(f.ctx, admin, AllocationInput{MaterielID: busy.ID, UserID: other.UserID, Purpose: "p", Location: "l"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l"}); err != nil {
		t.Fatal(err)
	}
	past := f.now.Add(-time.Hour)

	tests := []struct {
		name  string
		actor Actor
		in    AllocationInput
		want  error
	}{
		{"unknown asset", employee, AllocationInput{MaterielID: "nope", Purpose: "p", Location: "l"}, ErrNotFound},
		{"asset not available", employee, AllocationInput{MaterielID: busy.ID, Purpose: "p", Location: "l"}, ErrInvalidState},
		{"duplicate active", employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l"}, ErrConflict},
		{"for someone else", employee, AllocationInput{MaterielID: m.ID, UserID: other.UserID, Purpose: "p", Location: "l"}, ErrForbidden},
		{"missing purpose", employee, AllocationInput{MaterielID: m.ID, Location: "l"}, ErrValidation},
		{"return date in past", other, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l", ExpectedReturnDate: &past}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.alloc.Create(f.ctx, tt.actor, tt.in)
			wantKind(t, err, tt.want)
		})
	}
	f.checkInvariants(t)
}

func TestRejectAppendsReason(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Light panel")
	a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l", Notes: "needed Friday"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.alloc.Reject(f.ctx, admin, a.ID, "")
	wantKind(t, err, ErrValidation)

	a, err = f.alloc.Reject(f.ctx, admin, a.ID, "reserved for the gala")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if a.ApprovalStatus != models.ApprovalRejected || a.Status != models.AllocationCancelled {
		t.Errorf("got %s/%s", a.Status, a.ApprovalStatus)
	}
	if a.Notes != "needed Friday\nRejection reason: reserved for the gala" {
		t.Errorf("notes = %q", a.Notes)
	}
	_, err = f.alloc.Reject(f.ctx, admin, a.ID, "again")
	wantKind(t, err, ErrInvalidState)
	if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable {
		t.Errorf("reject touched the asset: %s", got.Status)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	t.Run("holding allocation frees the asset", func(t *testing.T) {
		m := f.asset(t, "Drone")
		a, err := f.alloc.Create(f.ctx, admin, AllocationInput{MaterielID: m.ID, UserID: employee.UserID, Purpose: "p", Location: "l"})
		if err != nil {
			t.Fatal(err)
		}
		a, err = f.alloc.Cancel(f.ctx, employee, a.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if a.Status != models.AllocationCancelled || !strings.Contains(a.Notes, "Cancelled by: "+employee.Name) {
			t.Errorf("status=%s notes=%q", a.Status, a.Notes)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable || got.AssignedTo != nil {
			t.Errorf("asset after cancel: %s", got.Status)
		}
		_, err = f.alloc.Cancel(f.ctx, employee, a.ID)
		wantKind(t, err, ErrInvalidState)
	})

	t.Run("pending allocation leaves the asset alone", func(t *testing.T) {
		m := f.asset(t, "Monitor")
		a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l"})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.alloc.Cancel(f.ctx, employee, a.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got := f.materiel(t, m.ID); got.Status != models.MaterielAvailable {
			t.Errorf("asset after cancel: %s", got.Status)
		}
		// a withdrawn request can no longer be decided
		_, err = f.alloc.Reject(f.ctx, admin, a.ID, "too late")
		wantKind(t, err, ErrInvalidState)
		_, err = f.alloc.Approve(f.ctx, admin, a.ID)
		wantKind(t, err, ErrInvalidState)
		if got := f.allocation(t, a.ID); got.ApprovalStatus != models.ApprovalPending || got.Status != models.AllocationCancelled {
			t.Errorf("cancelled allocation rewritten to %s/%s", got.Status, got.ApprovalStatus)
		}
	})

	t.Run("strangers may not cancel", func(t *testing.T) {
		m := f.asset(t, "Keyboard")
		a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l"})
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.alloc.Cancel(f.ctx, other, a.ID)
		wantKind(t, err, ErrForbidden)
		_, err = f.alloc.Return(f.ctx, other, a.ID, ReturnInput{})
		wantKind(t, err, ErrForbidden)
	})
	f.checkInvariants(t)
}

func TestReturnRequiresHolding(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Mic stand")
	a, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m.ID, Purpose: "p", Location: "l"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.alloc.Return(f.ctx, employee, a.ID, ReturnInput{})
	wantKind(t, err, ErrInvalidState)
	_, err = f.alloc.Return(f.ctx, employee, a.ID, ReturnInput{Condition: "shiny"})
	wantKind(t, err, ErrValidation)
}

func TestOverdueIsComputed(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Projector")
	due := f.now.Add(24 * time.Hour)
	a, err := f.alloc.Create(f.ctx, admin, AllocationInput{
		MaterielID: m.ID, UserID: employee.UserID, Purpose: "p", Location: "l", ExpectedReturnDate: &due,
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.Overdue {
		t.Fatal("fresh allocation reported overdue")
	}
	f.now = f.now.Add(48 * time.Hour)
	if got := f.allocation(t, a.ID); !got.Overdue || got.Status != models.AllocationActive {
		t.Errorf("overdue=%v status=%s", got.Overdue, got.Status)
	}
	page, err := f.alloc.List(f.ctx, admin, store.AllocationQuery{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ID != a.ID {
		t.Errorf("overdue list = %+v", page)
	}
}

func TestListScopesEmployees(t *testing.T) {
	f := newFixture(t)
	m1 := f.asset(t, "A")
	m2 := f.asset(t, "B")
	if _, err := f.alloc.Create(f.ctx, employee, AllocationInput{MaterielID: m1.ID, Purpose: "p", Location: "l"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.alloc.Create(f.ctx, other, AllocationInput{MaterielID: m2.ID, Purpose: "p", Location: "l"}); err != nil {
		t.Fatal(err)
	}
	page, err := f.alloc.List(f.ctx, employee, store.AllocationQuery{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].UserID != employee.UserID {
		t.Errorf("employee saw %d allocations", page.Total)
	}
	page, err = f.alloc.List(f.ctx, manager, store.AllocationQuery{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Errorf("manager saw %d allocations, want 2", page.Total)
	}
	_, err = f.alloc.ListForUser(f.ctx, employee, other.UserID, store.AllocationQuery{})
	wantKind(t, err, ErrForbidden)
}

func TestAssignAndReturnByAsset(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "iPad")
	_, err := f.alloc.Assign(f.ctx, manager, m.ID, employee.UserID, "", "", nil)
	wantKind(t, err, ErrForbidden)

	a, err := f.alloc.Assign(f.ctx, admin, m.ID, employee.UserID, "", "", nil)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.Location != "Studio A" || !a.Holding() {
		t.Errorf("assign: %+v", a)
	}
	got, err := f.alloc.ReturnByAsset(f.ctx, employee, m.ID, ReturnInput{Condition: "fair"})
	if err != nil {
		t.Fatalf("return by asset: %v", err)
	}
	if got.Status != models.MaterielAvailable {
		t.Errorf("asset status %s", got.Status)
	}
	if a := f.allocation(t, a.ID); a.Status != models.AllocationReturned || a.ReturnCondition != models.ConditionFair {
		t.Errorf("allocation %s/%s", a.Status, a.ReturnCondition)
	}
	f.checkInvariants(t)
}

func TestTransitionsAreLoggedAndPublished(t *testing.T) {
	f := newFixture(t)
	m := f.asset(t, "Camera")
	before := f.pub.count()
	a, err := f.alloc.Create(f.ctx, admin, AllocationInput{MaterielID: m.ID, UserID: employee.UserID, Purpose: "p", Location: "l"})
	if err != nil {
		t.Fatal(err)
	}
	// allocation create + materiel status
	if got := f.pub.count() - before; got != 2 {
		t.Errorf("published %d events, want 2", got)
	}
	logs, err := f.audit.List(f.ctx, store.TransitionQuery{EntityID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if logs.Total != 2 || logs.Items[0].ToStatus != string(models.MaterielAllocated) {
		t.Errorf("materiel log = %+v", logs.Items)
	}

	before = f.pub.count()
	_, err = f.alloc.Approve(f.ctx, admin, a.ID)
	wantKind(t, err, ErrInvalidState)
	if f.pub.count() != before {
		t.Error("failed operation published events")
	}
}
