// models/materiel.go
package models

import "time"

const MaterielTable = "eq_materiels"

type MaterielStatus string

const (
	MaterielAvailable    MaterielStatus = "available"
	MaterielAllocated    MaterielStatus = "allocated"
	MaterielMaintenance  MaterielStatus = "maintenance"
	MaterielOutOfService MaterielStatus = "out_of_service"
	MaterielIrreparable  MaterielStatus = "irreparable"
)

func (s MaterielStatus) Valid() bool {
	switch s {
	case MaterielAvailable, MaterielAllocated, MaterielMaintenance, MaterielOutOfService, MaterielIrreparable:
		return true
	}
	return false
}

type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	// only ever written by the irreparable path as an allocation return condition
	ConditionIrreparable Condition = "irreparable"
)

// Materiel is a trackable physical asset. AssignedTo is set iff Status is allocated.
type Materiel struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"size:200;not null" json:"name"`
	Type         string         `gorm:"size:60;not null;index" json:"type"`
	Description  string         `gorm:"type:text" json:"description,omitempty"`
	SerialNumber *string        `gorm:"size:120;uniqueIndex" json:"serialNumber,omitempty"` // nil = no serial; unique otherwise
	Status       MaterielStatus `gorm:"size:20;not null;default:'available';index:idx_eq_materiel_status_location" json:"status"`
	Location     string         `gorm:"size:200;not null;index:idx_eq_materiel_status_location" json:"location"`
	Category     string         `gorm:"size:60;not null;default:'other'" json:"category"`
	Condition    Condition      `gorm:"size:20;not null;default:'good'" json:"condition"`

	PurchaseDate   *time.Time `json:"purchaseDate,omitempty"`
	WarrantyExpiry *time.Time `json:"warrantyExpiry,omitempty"`
	PurchasePrice  float64    `json:"purchasePrice"`
	Supplier       string     `gorm:"size:200" json:"supplier,omitempty"`

	AssignedTo   *string    `gorm:"type:uuid;index" json:"assignedTo,omitempty"`
	AssignedDate *time.Time `json:"assignedDate,omitempty"`

	LastMaintenance  *time.Time `json:"lastMaintenance,omitempty"`
	NextMaintenance  *time.Time `gorm:"index" json:"nextMaintenance,omitempty"`
	MaintenanceCycle int        `gorm:"not null;default:365" json:"maintenanceCycle"` // days

	IrreparableDate   *time.Time `json:"irreparableDate,omitempty"`
	IrreparableReason string     `gorm:"type:text" json:"irreparableReason,omitempty"`
	DisposalMethod    string     `gorm:"size:120" json:"disposalMethod,omitempty"`
	ReportedBy        *string    `gorm:"type:uuid" json:"reportedBy,omitempty"`

	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Assignee *UserRef `gorm:"-" json:"assignee,omitempty"`
}

func (Materiel) TableName() string { return MaterielTable }

// Serial returns the serial number or "" when unset.
func (m *Materiel) Serial() string {
	if m.SerialNumber == nil {
		return ""
	}
	return *m.SerialNumber
}

// MaterielRef is the display summary embedded in other records' responses.
type MaterielRef struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	SerialNumber string         `json:"serialNumber,omitempty"`
	Location     string         `json:"location"`
	Status       MaterielStatus `json:"status"`
}

func (m *Materiel) Ref() *MaterielRef {
	if m == nil {
		return nil
	}
	return &MaterielRef{ID: m.ID, Name: m.Name, Type: m.Type, SerialNumber: m.Serial(), Location: m.Location, Status: m.Status}
}
