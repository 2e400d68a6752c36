// Package store defines the persistence contract the workflows run on.
// db.Repo implements it over Postgres; memstore implements it in memory.
package store

import (
	"context"
	"errors"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Store runs fn inside one transaction. Returning an error from fn rolls
// back every write made through the Tx.
type Store interface {
	Tx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the record access available inside a transaction. Lock* reads take
// a row lock held until the transaction ends; Find* reads do not.
type Tx interface {
	Users
	Materiels
	Allocations
	Maintenances
	Intake
	LogTransition(l *models.TransitionLog) error
	ListTransitions(q TransitionQuery) ([]models.TransitionLog, int64, error)
}

type Users interface {
	FindUser(id string) (*models.User, error)
	UpsertUser(u *models.User) error
	TouchUserSeen(id string, at time.Time) error
}

type Materiels interface {
	LockMateriel(id string) (*models.Materiel, error)
	FindMateriel(id string) (*models.Materiel, error)
	FindMaterielBySerial(serial string) (*models.Materiel, error)
	CreateMateriel(m *models.Materiel) error
	SaveMateriel(m *models.Materiel) error
	DeleteMateriel(id string) error
	ListMateriels(q MaterielQuery) ([]models.Materiel, int64, error)
}

type Allocations interface {
	LockAllocation(id string) (*models.Allocation, error)
	FindAllocation(id string) (*models.Allocation, error)
	// FindHoldingAllocation returns the approved active allocation of an asset.
	FindHoldingAllocation(materielID string) (*models.Allocation, error)
	// CountActiveAllocations counts status=active rows (any approval state)
	// for the holder and asset.
	CountActiveAllocations(materielID, userID string) (int64, error)
	CreateAllocation(a *models.Allocation) error
	SaveAllocation(a *models.Allocation) error
	ListAllocations(q AllocationQuery) ([]models.Allocation, int64, error)
}

type Maintenances interface {
	LockMaintenance(id string) (*models.Maintenance, error)
	FindMaintenance(id string) (*models.Maintenance, error)
	// FindOpenMaintenance returns the pending or in_progress maintenance of an asset.
	FindOpenMaintenance(materielID string) (*models.Maintenance, error)
	CreateMaintenance(m *models.Maintenance) error
	SaveMaintenance(m *models.Maintenance) error
	ListMaintenances(q MaintenanceQuery) ([]models.Maintenance, int64, error)
}

type Intake interface {
	LockFaultReport(id string) (*models.FaultReport, error)
	CreateFaultReport(f *models.FaultReport) error
	SaveFaultReport(f *models.FaultReport) error
	ListFaultReports(q FaultReportQuery) ([]models.FaultReport, int64, error)

	LockEquipmentRequest(id string) (*models.EquipmentRequest, error)
	FindEquipmentRequest(id string) (*models.EquipmentRequest, error)
	CreateEquipmentRequest(r *models.EquipmentRequest) error
	SaveEquipmentRequest(r *models.EquipmentRequest) error
	ListEquipmentRequests(q EquipmentRequestQuery) ([]models.EquipmentRequest, int64, error)
}

// Page is 1-based. Zero values fall back to page 1 / size 20.
type Page struct {
	Page int
	Size int
}

func (p Page) Normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 || p.Size > 200 {
		p.Size = 20
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// Window slices an already ordered result set.
func Window[T any](rows []T, p Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + p.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

type MaterielQuery struct {
	Q          string // name/description/serial/location, case-insensitive
	Status     models.MaterielStatus
	Type       string
	Location   string // substring, case-insensitive
	Category   string
	Condition  models.Condition
	AssignedTo string
	Page
}

type AllocationQuery struct {
	Status         models.AllocationStatus
	ApprovalStatus models.ApprovalStatus
	UserID         string
	MaterielID     string
	OverdueAt      *time.Time // active and expectedReturnDate before this instant
	Page
}

type MaintenanceQuery struct {
	Status       models.MaintenanceStatus
	Type         models.MaintenanceType
	Priority     models.Priority
	TechnicianID string
	MaterielID   string
	StartFrom    *time.Time
	StartTo      *time.Time
	NextFrom     *time.Time // nextMaintenanceDate window
	NextTo       *time.Time
	Ascending    bool // by startDate; default newest first
	Page
}

type FaultReportQuery struct {
	ReportedBy   string
	TechnicianID string
	MaterielID   string
	Status       models.FaultStatus
	Page
}

type EquipmentRequestQuery struct {
	RequestedBy string
	Status      models.RequestStatus
	Page
}

type TransitionQuery struct {
	Entity   string
	EntityID string
	Page
}
