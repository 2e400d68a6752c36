// models/intake.go
package models

import "time"

const (
	FaultReportTable      = "eq_fault_reports"
	EquipmentRequestTable = "eq_equipment_requests"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type FaultStatus string

const (
	FaultReported     FaultStatus = "reported"
	FaultAcknowledged FaultStatus = "acknowledged"
	FaultInProgress   FaultStatus = "in_progress"
	FaultResolved     FaultStatus = "resolved"
	FaultClosed       FaultStatus = "closed"
)

// faultRank orders the forward-only progression. Steps may be skipped;
// closed is terminal.
var faultRank = map[FaultStatus]int{
	FaultReported:     0,
	FaultAcknowledged: 1,
	FaultInProgress:   2,
	FaultResolved:     3,
	FaultClosed:       4,
}

// CanMoveTo reports whether a fault report may progress from s to next.
func (s FaultStatus) CanMoveTo(next FaultStatus) bool {
	from, ok1 := faultRank[s]
	to, ok2 := faultRank[next]
	if !ok1 || !ok2 || s == FaultClosed {
		return false
	}
	return to > from
}

type FaultReport struct {
	ID          string   `gorm:"type:uuid;primaryKey" json:"id"`
	ReportedBy  string   `gorm:"type:uuid;not null;index:idx_eq_fault_reporter_status" json:"reportedBy"`
	MaterielID  string   `gorm:"type:uuid;not null;index:idx_eq_fault_materiel_status" json:"materielId"`
	FaultType   string   `gorm:"size:40;not null" json:"faultType"`
	Description string   `gorm:"type:text;not null" json:"description"`
	Severity    Severity `gorm:"size:20;not null;default:'medium'" json:"severity"`
	Impact      string   `gorm:"size:20;not null;default:'minor'" json:"impact"`
	Workaround  string   `gorm:"type:text" json:"workaround,omitempty"`

	Status       FaultStatus `gorm:"size:20;not null;default:'reported';index:idx_eq_fault_reporter_status;index:idx_eq_fault_materiel_status;index:idx_eq_fault_technician_status" json:"status"`
	ReportedDate time.Time   `json:"reportedDate"`

	AcknowledgedBy     *string    `gorm:"type:uuid" json:"acknowledgedBy,omitempty"`
	AcknowledgedDate   *time.Time `json:"acknowledgedDate,omitempty"`
	AssignedTechnician *string    `gorm:"type:uuid;index:idx_eq_fault_technician_status" json:"assignedTechnician,omitempty"`
	AssignedDate       *time.Time `json:"assignedDate,omitempty"`
	Resolution         string     `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedBy         *string    `gorm:"type:uuid" json:"resolvedBy,omitempty"`
	ResolvedDate       *time.Time `json:"resolvedDate,omitempty"`
	Notes              string     `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Materiel       *MaterielRef `gorm:"-" json:"materiel,omitempty"`
	ReportedByUser *UserRef     `gorm:"-" json:"reportedByUser,omitempty"`
}

func (FaultReport) TableName() string { return FaultReportTable }

type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

type EquipmentRequest struct {
	ID            string        `gorm:"type:uuid;primaryKey" json:"id"`
	RequestedBy   string        `gorm:"type:uuid;not null;index:idx_eq_req_requester_status" json:"requestedBy"`
	EquipmentType string        `gorm:"size:60;not null" json:"equipmentType"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	Purpose       string        `gorm:"size:255;not null" json:"purpose"`
	Priority      Priority      `gorm:"size:20;not null;default:'normal'" json:"priority"`
	Status        RequestStatus `gorm:"size:20;not null;default:'pending';index:idx_eq_req_requester_status" json:"status"`
	RequestedDate time.Time     `json:"requestedDate"`
	NeededBy      time.Time     `gorm:"index;not null" json:"neededBy"`

	ApprovedBy        *string    `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovedDate      *time.Time `json:"approvedDate,omitempty"`
	AssignedEquipment *string    `gorm:"type:uuid" json:"assignedEquipment,omitempty"`
	AssignedDate      *time.Time `json:"assignedDate,omitempty"`
	Notes             string     `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason   string     `gorm:"type:text" json:"rejectionReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	RequestedByUser *UserRef     `gorm:"-" json:"requestedByUser,omitempty"`
	Equipment       *MaterielRef `gorm:"-" json:"equipment,omitempty"`
}

func (EquipmentRequest) TableName() string { return EquipmentRequestTable }

// Terminal reports whether no further status change is accepted.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestFulfilled || s == RequestCancelled
}
