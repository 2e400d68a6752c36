package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
	"Gin_postgres_redis_equipment_tool/store/memstore"

	"github.com/rs/zerolog"
)

var (
	admin    = Actor{UserID: "11111111-0000-0000-0000-000000000001", Name: "Ada Admin", Role: models.RoleAdmin}
	tech     = Actor{UserID: "11111111-0000-0000-0000-000000000002", Name: "Tom Tech", Role: models.RoleTechnician}
	manager  = Actor{UserID: "11111111-0000-0000-0000-000000000003", Name: "Mia Manager", Role: models.RoleTechnicalManager}
	employee = Actor{UserID: "11111111-0000-0000-0000-000000000004", Name: "Eve Employee", Role: models.RoleEmployee}
	other    = Actor{UserID: "11111111-0000-0000-0000-000000000005", Name: "Olli Other", Role: models.RoleEmployee}
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	ctx    context.Context
	st     *memstore.Store
	now    time.Time
	pub    *recorder
	reg    *Registry
	alloc  *Allocations
	maint  *Maintenance
	intake *Intake
	audit  *Audit
	users  *Users
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx: context.Background(),
		st:  memstore.New(),
		now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		pub: &recorder{},
	}
	d := Deps{Store: f.st, Log: zerolog.Nop(), Events: f.pub, Now: func() time.Time { return f.now }}
	f.reg = NewRegistry(d)
	f.alloc = NewAllocations(d)
	f.maint = NewMaintenance(d)
	f.intake = NewIntake(d)
	f.audit = NewAudit(d)
	f.users = NewUsers(d)
	for _, a := range []Actor{admin, tech, manager, employee, other} {
		if err := f.users.Provision(f.ctx, a, a.Name+"@example.com"); err != nil {
			t.Fatalf("provision %s: %v", a.Name, err)
		}
	}
	return f
}

func (f *fixture) asset(t *testing.T, name string) *models.Materiel {
	t.Helper()
	m, err := f.reg.Create(f.ctx, admin, MaterielInput{Name: name, Type: "camera", Location: "Studio A"})
	if err != nil {
		t.Fatalf("create asset %s: %v", name, err)
	}
	return m
}

func (f *fixture) materiel(t *testing.T, id string) *models.Materiel {
	t.Helper()
	d, err := f.reg.Get(f.ctx, id)
	if err != nil {
		t.Fatalf("get materiel %s: %v", id, err)
	}
	return d.Materiel
}

func (f *fixture) allocation(t *testing.T, id string) *models.Allocation {
	t.Helper()
	a, err := f.alloc.Get(f.ctx, admin, id)
	if err != nil {
		t.Fatalf("get allocation %s: %v", id, err)
	}
	return a
}

// checkInvariants walks the whole store and fails on any broken
// cross-record rule.
func (f *fixture) checkInvariants(t *testing.T) {
	t.Helper()
	err := f.st.Tx(f.ctx, func(tx store.Tx) error {
		ms, _, err := tx.ListMateriels(store.MaterielQuery{Page: store.Page{Size: 200}})
		if err != nil {
			return err
		}
		for _, m := range ms {
			if (m.AssignedTo != nil) != (m.Status == models.MaterielAllocated) {
				t.Errorf("materiel %s: status %s with assignedTo=%v", m.Name, m.Status, m.AssignedTo)
			}
			allocs, _, err := tx.ListAllocations(store.AllocationQuery{MaterielID: m.ID, Page: store.Page{Size: 200}})
			if err != nil {
				return err
			}
			holding := 0
			for _, a := range allocs {
				if a.Holding() {
					holding++
				}
			}
			if holding > 1 {
				t.Errorf("materiel %s has %d holding allocations", m.Name, holding)
			}
			maints, _, err := tx.ListMaintenances(store.MaintenanceQuery{MaterielID: m.ID, Page: store.Page{Size: 200}})
			if err != nil {
				return err
			}
			open := 0
			for _, mt := range maints {
				if mt.Status.Open() {
					open++
				}
				if mt.TotalCost != mt.Cost+mt.LaborCost {
					t.Errorf("maintenance %s: totalCost %v != %v + %v", mt.ID, mt.TotalCost, mt.Cost, mt.LaborCost)
				}
			}
			if open > 1 {
				t.Errorf("materiel %s has %d open maintenances", m.Name, open)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("invariant walk: %v", err)
	}
}

func wantKind(t *testing.T, err error, sentinel error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %v", sentinel, err)
	}
}

func ptr[T any](v T) *T { return &v }
