package models

import "time"

const TransitionLogTable = "eq_transition_log"

// TransitionLog is the audit row written alongside every workflow
// transition, in the same transaction as the transition itself.
type TransitionLog struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Entity     string    `gorm:"size:40;not null;index:idx_eq_translog_entity" json:"entity"`
	EntityID   string    `gorm:"type:uuid;not null;index:idx_eq_translog_entity" json:"entityId"`
	Action     string    `gorm:"size:40;not null" json:"action"`
	FromStatus string    `gorm:"size:40" json:"fromStatus,omitempty"`
	ToStatus   string    `gorm:"size:40" json:"toStatus,omitempty"`
	ActorID    string    `gorm:"type:uuid" json:"actorId"`
	ActorName  string    `gorm:"size:255" json:"actorName"`
	Reason     *string   `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (TransitionLog) TableName() string { return TransitionLogTable }

const (
	EntityMateriel         = "materiel"
	EntityAllocation       = "allocation"
	EntityMaintenance      = "maintenance"
	EntityFaultReport      = "fault_report"
	EntityEquipmentRequest = "equipment_request"
)
