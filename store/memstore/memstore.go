// Package memstore is an in-memory store.Store. A transaction holds the
// store lock for its whole duration and works on a copy of the data that
// replaces the live copy only when fn returns nil.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/store"
)

type data struct {
	users       map[string]models.User
	materiels   map[string]models.Materiel
	allocations map[string]models.Allocation
	maints      map[string]models.Maintenance
	faults      map[string]models.FaultReport
	requests    map[string]models.EquipmentRequest
	transitions []models.TransitionLog
}

func newData() *data {
	return &data{
		users:       map[string]models.User{},
		materiels:   map[string]models.Materiel{},
		allocations: map[string]models.Allocation{},
		maints:      map[string]models.Maintenance{},
		faults:      map[string]models.FaultReport{},
		requests:    map[string]models.EquipmentRequest{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.materiels {
		c.materiels[k] = v
	}
	for k, v := range d.allocations {
		c.allocations[k] = v
	}
	for k, v := range d.maints {
		v.PartsUsed = append(v.PartsUsed[:0:0], v.PartsUsed...)
		c.maints[k] = v
	}
	for k, v := range d.faults {
		c.faults[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	c.transitions = append(c.transitions, d.transitions...)
	return c
}

type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

func New() *Store { return &Store{data: newData(), now: time.Now} }

func (s *Store) Tx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&tx{d: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

type tx struct {
	d   *data
	now func() time.Time
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*tx)(nil)
)

// ---- users ----

func (t *tx) FindUser(id string) (*models.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (t *tx) UpsertUser(u *models.User) error {
	for id, other := range t.d.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	now := t.now()
	if old, ok := t.d.users[u.ID]; ok {
		u.CreatedAt = old.CreatedAt
		if u.LastSeenAt == nil {
			u.LastSeenAt = old.LastSeenAt
		}
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	t.d.users[u.ID] = *u
	return nil
}

func (t *tx) TouchUserSeen(id string, at time.Time) error {
	u, ok := t.d.users[id]
	if !ok {
		return nil
	}
	u.LastSeenAt = &at
	t.d.users[id] = u
	return nil
}

// ---- materiels ----

func (t *tx) LockMateriel(id string) (*models.Materiel, error) { return t.FindMateriel(id) }

func (t *tx) FindMateriel(id string) (*models.Materiel, error) {
	m, ok := t.d.materiels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (t *tx) FindMaterielBySerial(serial string) (*models.Materiel, error) {
	for _, m := range t.d.materiels {
		if m.Serial() != "" && m.Serial() == serial {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) serialTaken(m *models.Materiel) bool {
	if m.Serial() == "" {
		return false
	}
	for id, other := range t.d.materiels {
		if id != m.ID && other.Serial() == m.Serial() {
			return true
		}
	}
	return false
}

func (t *tx) CreateMateriel(m *models.Materiel) error {
	if _, ok := t.d.materiels[m.ID]; ok || t.serialTaken(m) {
		return store.ErrDuplicate
	}
	now := t.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.Assignee = nil
	t.d.materiels[m.ID] = *m
	return nil
}

func (t *tx) SaveMateriel(m *models.Materiel) error {
	if t.serialTaken(m) {
		return store.ErrDuplicate
	}
	m.UpdatedAt = t.now()
	c := *m
	c.Assignee = nil
	t.d.materiels[m.ID] = c
	return nil
}

func (t *tx) DeleteMateriel(id string) error {
	if _, ok := t.d.materiels[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.d.materiels, id)
	return nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (t *tx) ListMateriels(q store.MaterielQuery) ([]models.Materiel, int64, error) {
	var rows []models.Materiel
	for _, m := range t.d.materiels {
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if q.Type != "" && m.Type != q.Type {
			continue
		}
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		if q.Condition != "" && m.Condition != q.Condition {
			continue
		}
		if q.Location != "" && !containsFold(m.Location, q.Location) {
			continue
		}
		if q.AssignedTo != "" && (m.AssignedTo == nil || *m.AssignedTo != q.AssignedTo) {
			continue
		}
		if q.Q != "" && !(containsFold(m.Name, q.Q) || containsFold(m.Description, q.Q) ||
			containsFold(m.Serial(), q.Q) || containsFold(m.Location, q.Q)) {
			continue
		}
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return store.Window(rows, q.Page), int64(len(rows)), nil
}

// ---- allocations ----

func (t *tx) LockAllocation(id string) (*models.Allocation, error) { return t.FindAllocation(id) }

func (t *tx) FindAllocation(id string) (*models.Allocation, error) {
	a, ok := t.d.allocations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *tx) FindHoldingAllocation(materielID string) (*models.Allocation, error) {
	for _, a := range t.d.allocations {
		if a.MaterielID == materielID && a.Holding() {
			return &a, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) CountActiveAllocations(materielID, userID string) (int64, error) {
	var n int64
	for _, a := range t.d.allocations {
		if a.MaterielID == materielID && a.UserID == userID && a.Status == models.AllocationActive {
			n++
		}
	}
	return n, nil
}

// mirrors the one-holding-allocation-per-asset partial unique index
func (t *tx) holdingConflict(a *models.Allocation) bool {
	if !a.Holding() {
		return false
	}
	for id, other := range t.d.allocations {
		if id != a.ID && other.MaterielID == a.MaterielID && other.Holding() {
			return true
		}
	}
	return false
}

func (t *tx) CreateAllocation(a *models.Allocation) error {
	if _, ok := t.d.allocations[a.ID]; ok || t.holdingConflict(a) {
		return store.ErrDuplicate
	}
	now := t.now()
	a.CreatedAt, a.UpdatedAt = now, now
	t.d.allocations[a.ID] = stripAllocation(*a)
	return nil
}

func (t *tx) SaveAllocation(a *models.Allocation) error {
	if t.holdingConflict(a) {
		return store.ErrDuplicate
	}
	a.UpdatedAt = t.now()
	t.d.allocations[a.ID] = stripAllocation(*a)
	return nil
}

func stripAllocation(a models.Allocation) models.Allocation {
	a.Materiel, a.User, a.AllocatedByUser = nil, nil, nil
	return a
}

func (t *tx) ListAllocations(q store.AllocationQuery) ([]models.Allocation, int64, error) {
	var rows []models.Allocation
	for _, a := range t.d.allocations {
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		if q.ApprovalStatus != "" && a.ApprovalStatus != q.ApprovalStatus {
			continue
		}
		if q.UserID != "" && a.UserID != q.UserID {
			continue
		}
		if q.MaterielID != "" && a.MaterielID != q.MaterielID {
			continue
		}
		if q.OverdueAt != nil && !a.IsOverdue(*q.OverdueAt) {
			continue
		}
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AllocationDate.Equal(rows[j].AllocationDate) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].AllocationDate.After(rows[j].AllocationDate)
	})
	return store.Window(rows, q.Page), int64(len(rows)), nil
}

// ---- maintenance ----

func (t *tx) LockMaintenance(id string) (*models.Maintenance, error) { return t.FindMaintenance(id) }

func (t *tx) FindMaintenance(id string) (*models.Maintenance, error) {
	m, ok := t.d.maints[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.PartsUsed = append(m.PartsUsed[:0:0], m.PartsUsed...)
	return &m, nil
}

func (t *tx) FindOpenMaintenance(materielID string) (*models.Maintenance, error) {
	for id, m := range t.d.maints {
		if m.MaterielID == materielID && m.Status.Open() {
			return t.FindMaintenance(id)
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) openConflict(m *models.Maintenance) bool {
	if !m.Status.Open() {
		return false
	}
	for id, other := range t.d.maints {
		if id != m.ID && other.MaterielID == m.MaterielID && other.Status.Open() {
			return true
		}
	}
	return false
}

func (t *tx) putMaintenance(m *models.Maintenance) {
	m.RecomputeTotal()
	c := *m
	c.PartsUsed = append(m.PartsUsed[:0:0], m.PartsUsed...)
	c.Materiel, c.TechnicianUser, c.RequestedByUser = nil, nil, nil
	t.d.maints[m.ID] = c
}

func (t *tx) CreateMaintenance(m *models.Maintenance) error {
	if _, ok := t.d.maints[m.ID]; ok || t.openConflict(m) {
		return store.ErrDuplicate
	}
	now := t.now()
	m.CreatedAt, m.UpdatedAt = now, now
	t.putMaintenance(m)
	return nil
}

func (t *tx) SaveMaintenance(m *models.Maintenance) error {
	if t.openConflict(m) {
		return store.ErrDuplicate
	}
	m.UpdatedAt = t.now()
	t.putMaintenance(m)
	return nil
}

func inWindow(v *time.Time, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if v == nil {
		return false
	}
	if from != nil && v.Before(*from) {
		return false
	}
	if to != nil && v.After(*to) {
		return false
	}
	return true
}

func (t *tx) ListMaintenances(q store.MaintenanceQuery) ([]models.Maintenance, int64, error) {
	var rows []models.Maintenance
	for _, m := range t.d.maints {
		if q.Status != "" && m.Status != q.Status {
			continue
		}
		if q.Type != "" && m.Type != q.Type {
			continue
		}
		if q.Priority != "" && m.Priority != q.Priority {
			continue
		}
		if q.TechnicianID != "" && (m.Technician == nil || *m.Technician != q.TechnicianID) {
			continue
		}
		if q.MaterielID != "" && m.MaterielID != q.MaterielID {
			continue
		}
		start := m.StartDate
		if !inWindow(&start, q.StartFrom, q.StartTo) || !inWindow(m.NextMaintenanceDate, q.NextFrom, q.NextTo) {
			continue
		}
		m.PartsUsed = append(m.PartsUsed[:0:0], m.PartsUsed...)
		rows = append(rows, m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StartDate.Equal(rows[j].StartDate) {
			return rows[i].ID < rows[j].ID
		}
		if q.Ascending {
			return rows[i].StartDate.Before(rows[j].StartDate)
		}
		return rows[i].StartDate.After(rows[j].StartDate)
	})
	return store.Window(rows, q.Page), int64(len(rows)), nil
}

// ---- intake ----

func (t *tx) LockFaultReport(id string) (*models.FaultReport, error) {
	f, ok := t.d.faults[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (t *tx) CreateFaultReport(f *models.FaultReport) error {
	if _, ok := t.d.faults[f.ID]; ok {
		return store.ErrDuplicate
	}
	now := t.now()
	f.CreatedAt, f.UpdatedAt = now, now
	return t.SaveFaultReport(f)
}

func (t *tx) SaveFaultReport(f *models.FaultReport) error {
	f.UpdatedAt = t.now()
	c := *f
	c.Materiel, c.ReportedByUser = nil, nil
	t.d.faults[f.ID] = c
	return nil
}

func (t *tx) ListFaultReports(q store.FaultReportQuery) ([]models.FaultReport, int64, error) {
	var rows []models.FaultReport
	for _, f := range t.d.faults {
		if q.ReportedBy != "" && f.ReportedBy != q.ReportedBy {
			continue
		}
		if q.TechnicianID != "" && (f.AssignedTechnician == nil || *f.AssignedTechnician != q.TechnicianID) {
			continue
		}
		if q.MaterielID != "" && f.MaterielID != q.MaterielID {
			continue
		}
		if q.Status != "" && f.Status != q.Status {
			continue
		}
		rows = append(rows, f)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return store.Window(rows, q.Page), int64(len(rows)), nil
}

func (t *tx) LockEquipmentRequest(id string) (*models.EquipmentRequest, error) {
	return t.FindEquipmentRequest(id)
}

func (t *tx) FindEquipmentRequest(id string) (*models.EquipmentRequest, error) {
	r, ok := t.d.requests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (t *tx) CreateEquipmentRequest(r *models.EquipmentRequest) error {
	if _, ok := t.d.requests[r.ID]; ok {
		return store.ErrDuplicate
	}
	now := t.now()
	r.CreatedAt = now
	return t.SaveEquipmentRequest(r)
}

func (t *tx) SaveEquipmentRequest(r *models.EquipmentRequest) error {
	r.UpdatedAt = t.now()
	c := *r
	c.RequestedByUser, c.Equipment = nil, nil
	t.d.requests[r.ID] = c
	return nil
}

func (t *tx) ListEquipmentRequests(q store.EquipmentRequestQuery) ([]models.EquipmentRequest, int64, error) {
	var rows []models.EquipmentRequest
	for _, r := range t.d.requests {
		if q.RequestedBy != "" && r.RequestedBy != q.RequestedBy {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return store.Window(rows, q.Page), int64(len(rows)), nil
}

// ---- audit ----

func (t *tx) LogTransition(l *models.TransitionLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = t.now()
	}
	t.d.transitions = append(t.d.transitions, *l)
	return nil
}

func (t *tx) ListTransitions(q store.TransitionQuery) ([]models.TransitionLog, int64, error) {
	var rows []models.TransitionLog
	for i := len(t.d.transitions) - 1; i >= 0; i-- {
		l := t.d.transitions[i]
		if q.Entity != "" && l.Entity != q.Entity {
			continue
		}
		if q.EntityID != "" && l.EntityID != q.EntityID {
			continue
		}
		rows = append(rows, l)
	}
	return store.Window(rows, q.Page), int64(len(rows)), nil
}
