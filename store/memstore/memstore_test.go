package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
)

func serial(s string) *string { return &s }

func TestTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Tx(ctx, func(tx store.Tx) error {
		if err := tx.CreateMateriel(&models.Materiel{ID: "m1", Name: "Cam", Status: models.MaterielAvailable}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want boom", err)
	}
	err = s.Tx(ctx, func(tx store.Tx) error {
		_, err := tx.FindMateriel("m1")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rolled back write is visible: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	called := false
	if err := s.Tx(cancelled, func(store.Tx) error { called = true; return nil }); !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled ctx: err=%v called=%v", err, called)
	}
}

func TestUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	tests := []struct {
		name string
		fn   func(store.Tx) error
	}{
		{"serial", func(tx store.Tx) error {
			if err := tx.CreateMateriel(&models.Materiel{ID: "a", SerialNumber: serial("S1")}); err != nil {
				return err
			}
			return tx.CreateMateriel(&models.Materiel{ID: "b", SerialNumber: serial("S1")})
		}},
		{"holding allocation", func(tx store.Tx) error {
			a := models.Allocation{MaterielID: "m", Status: models.AllocationActive, ApprovalStatus: models.ApprovalApproved, AllocationDate: now}
			first, second := a, a
			first.ID, second.ID = "a1", "a2"
			if err := tx.CreateAllocation(&first); err != nil {
				return err
			}
			return tx.CreateAllocation(&second)
		}},
		{"open maintenance", func(tx store.Tx) error {
			if err := tx.CreateMaintenance(&models.Maintenance{ID: "x1", MaterielID: "m", Status: models.MaintenancePending}); err != nil {
				return err
			}
			return tx.CreateMaintenance(&models.Maintenance{ID: "x2", MaterielID: "m", Status: models.MaintenanceInProgress})
		}},
		{"email", func(tx store.Tx) error {
			if err := tx.UpsertUser(&models.User{ID: "u1", Email: "Ada@Example.com"}); err != nil {
				return err
			}
			return tx.UpsertUser(&models.User{ID: "u2", Email: "ada@example.com"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Tx(ctx, tt.fn); !errors.Is(err, store.ErrDuplicate) {
				t.Fatalf("err = %v, want ErrDuplicate", err)
			}
		})
	}

	// pending and finished rows never collide
	err := s.Tx(ctx, func(tx store.Tx) error {
		for i, st := range []models.ApprovalStatus{models.ApprovalPending, models.ApprovalPending, models.ApprovalApproved} {
			a := &models.Allocation{ID: fmt.Sprintf("p%d", i), MaterielID: "m", Status: models.AllocationActive, ApprovalStatus: st}
			if err := tx.CreateAllocation(a); err != nil {
				return err
			}
		}
		return tx.CreateMaintenance(&models.Maintenance{ID: "done", MaterielID: "m", Status: models.MaintenanceCompleted, Cost: 10, LaborCost: 5})
	})
	if err != nil {
		t.Fatalf("non-conflicting rows: %v", err)
	}
	_ = s.Tx(ctx, func(tx store.Tx) error {
		m, err := tx.FindMaintenance("done")
		if err != nil {
			t.Fatal(err)
		}
		if m.TotalCost != 15 {
			t.Errorf("totalCost = %v, want 15", m.TotalCost)
		}
		return nil
	})
}

func TestListPagination(t *testing.T) {
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := s.Tx(context.Background(), func(tx store.Tx) error {
		for i := 0; i < 25; i++ {
			m := &models.Materiel{
				ID:        fmt.Sprintf("m%02d", i),
				Name:      fmt.Sprintf("Asset %d", i),
				Status:    models.MaterielAvailable,
				CreatedAt: base.Add(time.Duration(i) * time.Hour),
			}
			if err := tx.CreateMateriel(m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		page      store.Page
		wantLen   int
		wantFirst string
	}{
		{store.Page{}, 20, "m24"},
		{store.Page{Page: 2}, 5, "m04"},
		{store.Page{Page: 3, Size: 10}, 5, "m04"},
		{store.Page{Page: 9}, 0, ""},
		{store.Page{Size: 500}, 20, "m24"},
	}
	for _, tt := range tests {
		_ = s.Tx(context.Background(), func(tx store.Tx) error {
			rows, total, err := tx.ListMateriels(store.MaterielQuery{Page: tt.page})
			if err != nil {
				t.Fatal(err)
			}
			if total != 25 || len(rows) != tt.wantLen {
				t.Errorf("page %+v: total=%d len=%d, want 25/%d", tt.page, total, len(rows), tt.wantLen)
			}
			if tt.wantLen > 0 && rows[0].ID != tt.wantFirst {
				t.Errorf("page %+v: first = %s, want %s", tt.page, rows[0].ID, tt.wantFirst)
			}
			return nil
		})
	}
}
