// models/allocation.go
package models

import (
	"math"
	"time"
)

const AllocationTable = "eq_allocations"

type AllocationStatus string

const (
	AllocationActive    AllocationStatus = "active"
	AllocationReturned  AllocationStatus = "returned"
	AllocationOverdue   AllocationStatus = "overdue"
	AllocationCancelled AllocationStatus = "cancelled"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Allocation assigns one asset to one holder. A freshly requested allocation
// is status=active with approvalStatus=pending; only approved+active rows
// hold the asset.
type Allocation struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"id"`
	MaterielID  string `gorm:"type:uuid;not null;index:idx_eq_alloc_materiel_status" json:"materielId"`
	UserID      string `gorm:"type:uuid;not null;index:idx_eq_alloc_user_status" json:"userId"`
	AllocatedBy string `gorm:"type:uuid;not null" json:"allocatedBy"`

	Status         AllocationStatus `gorm:"size:20;not null;default:'active';index:idx_eq_alloc_materiel_status;index:idx_eq_alloc_user_status" json:"status"`
	ApprovalStatus ApprovalStatus   `gorm:"size:20;not null;default:'pending'" json:"approvalStatus"`
	ApprovedBy     *string          `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovalDate   *time.Time       `json:"approvalDate,omitempty"`

	AllocationDate     time.Time  `gorm:"index;not null" json:"allocationDate"`
	ExpectedReturnDate *time.Time `gorm:"index" json:"expectedReturnDate,omitempty"`
	ReturnDate         *time.Time `json:"returnDate,omitempty"`
	ReturnedBy         *string    `gorm:"type:uuid" json:"returnedBy,omitempty"`
	ReturnCondition    Condition  `gorm:"size:20" json:"returnCondition,omitempty"`
	DamageReport       string     `gorm:"type:text" json:"damageReport,omitempty"`
	ReturnNotes        string     `gorm:"type:text" json:"returnNotes,omitempty"`

	Purpose  string `gorm:"size:255;not null" json:"purpose"`
	Location string `gorm:"size:200;not null" json:"location"`
	Notes    string `gorm:"type:text" json:"notes,omitempty"` // append-only

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Materiel        *MaterielRef `gorm:"-" json:"materiel,omitempty"`
	User            *UserRef     `gorm:"-" json:"user,omitempty"`
	AllocatedByUser *UserRef     `gorm:"-" json:"allocatedByUser,omitempty"`
	Overdue         bool         `gorm:"-" json:"isOverdue"`
	DurationDays    int          `gorm:"-" json:"duration"`
}

func (Allocation) TableName() string { return AllocationTable }

// Holding reports whether this allocation currently holds its asset.
func (a *Allocation) Holding() bool {
	return a.Status == AllocationActive && a.ApprovalStatus == ApprovalApproved
}

func (a *Allocation) IsOverdue(now time.Time) bool {
	return a.Status == AllocationActive && a.ExpectedReturnDate != nil && now.After(*a.ExpectedReturnDate)
}

// Duration is the allocation length in whole days, rounded up.
func (a *Allocation) Duration(now time.Time) int {
	end := now
	if a.ReturnDate != nil {
		end = *a.ReturnDate
	}
	return int(math.Ceil(end.Sub(a.AllocationDate).Hours() / 24))
}

// Derive fills the computed response fields.
func (a *Allocation) Derive(now time.Time) {
	a.Overdue = a.IsOverdue(now)
	a.DurationDays = a.Duration(now)
}
