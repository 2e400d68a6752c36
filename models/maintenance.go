// models/maintenance.go
package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const MaintenanceTable = "eq_maintenances"

type MaintenanceType string

const (
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenanceUrgent     MaintenanceType = "urgent"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// Open reports whether the status still blocks another maintenance on the asset.
func (s MaintenanceStatus) Open() bool {
	return s == MaintenancePending || s == MaintenanceInProgress
}

type QualityCheck string

const (
	QualityPending QualityCheck = "pending"
	QualityPassed  QualityCheck = "passed"
	QualityFailed  QualityCheck = "failed"
)

type PartUsed struct {
	Name     string  `json:"name" validate:"required"`
	Quantity int     `json:"quantity" validate:"gt=0"`
	Cost     float64 `json:"cost" validate:"gte=0"`
}

type Maintenance struct {
	ID          string  `gorm:"type:uuid;primaryKey" json:"id"`
	MaterielID  string  `gorm:"type:uuid;not null;index:idx_eq_maint_materiel_status" json:"materielId"`
	Technician  *string `gorm:"type:uuid;index:idx_eq_maint_technician_status" json:"technician,omitempty"` // nil while unassigned
	RequestedBy string  `gorm:"type:uuid;not null" json:"requestedBy"`

	Type     MaintenanceType   `gorm:"size:20;not null;index" json:"type"`
	Priority Priority          `gorm:"size:20;not null;default:'normal'" json:"priority"`
	Status   MaintenanceStatus `gorm:"size:20;not null;default:'pending';index:idx_eq_maint_materiel_status;index:idx_eq_maint_technician_status" json:"status"`

	Description string `gorm:"type:text;not null" json:"description"`
	Cause       string `gorm:"type:text" json:"cause,omitempty"`
	Solution    string `gorm:"type:text" json:"solution,omitempty"`

	StartDate         time.Time  `gorm:"index" json:"startDate"`
	EndDate           *time.Time `json:"endDate,omitempty"`
	EstimatedDuration float64    `gorm:"not null" json:"estimatedDuration"` // hours
	ActualDuration    *float64   `json:"actualDuration,omitempty"`          // hours

	Cost      float64                       `gorm:"not null;default:0" json:"cost"`
	LaborCost float64                       `gorm:"not null;default:0" json:"laborCost"`
	TotalCost float64                       `gorm:"not null;default:0" json:"totalCost"`
	PartsUsed datatypes.JSONSlice[PartUsed] `json:"partsUsed"`

	NextMaintenanceDate *time.Time   `gorm:"index" json:"nextMaintenanceDate,omitempty"`
	MaintenanceCycle    int          `gorm:"not null;default:365" json:"maintenanceCycle"`
	QualityCheck        QualityCheck `gorm:"size:20;not null;default:'pending'" json:"qualityCheck"`
	QualityNotes        string       `gorm:"type:text" json:"qualityNotes,omitempty"`
	Notes               string       `gorm:"type:text" json:"notes,omitempty"` // append-only

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Materiel        *MaterielRef `gorm:"-" json:"materiel,omitempty"`
	TechnicianUser  *UserRef     `gorm:"-" json:"technicianUser,omitempty"`
	RequestedByUser *UserRef     `gorm:"-" json:"requestedByUser,omitempty"`
	Overdue         bool         `gorm:"-" json:"isOverdue"`
}

func (Maintenance) TableName() string { return MaintenanceTable }

// RecomputeTotal keeps TotalCost = Cost + LaborCost. Every store calls it
// before writing a maintenance row.
func (m *Maintenance) RecomputeTotal() {
	m.TotalCost = m.Cost + m.LaborCost
}

func (m *Maintenance) BeforeSave(*gorm.DB) error {
	m.RecomputeTotal()
	return nil
}

func (m *Maintenance) IsOverdue(now time.Time) bool {
	if m.Status != MaintenanceInProgress || m.EstimatedDuration <= 0 {
		return false
	}
	est := time.Duration(math.Round(m.EstimatedDuration * float64(time.Hour)))
	return now.After(m.StartDate.Add(est))
}
