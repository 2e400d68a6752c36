package models

import (
	"time"
)

const UserTable = "eq_users"

type Role string

const (
	RoleAdmin            Role = "admin"
	RoleTechnician       Role = "technician"
	RoleTechnicalManager Role = "technical_manager"
	RoleEmployee         Role = "employee"
)

// ParseRole accepts the canonical role tags plus the legacy French ones
// still carried by older identity tokens.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "admin":
		return RoleAdmin, true
	case "technician", "technicien":
		return RoleTechnician, true
	case "technical_manager":
		return RoleTechnicalManager, true
	case "employee", "utilisateur", "media_employee":
		return RoleEmployee, true
	}
	return "", false
}

// Staff reports whether the role may act on records it does not own.
func (r Role) Staff() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleTechnicalManager:
		return true
	case RoleEmployee:
		return false
	}
	return false
}

// Privileged reports whether allocations created by this role skip approval.
func (r Role) Privileged() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleTechnician, RoleTechnicalManager, RoleEmployee:
		return false
	}
	return false
}

// User is provisioned from the identity token on first sight; the identity
// provider stays the source of truth for name, email and role.
type User struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string     `gorm:"size:255;not null" json:"name"`
	Email      string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role       Role       `gorm:"size:32;not null;default:'employee'" json:"role"`
	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return UserTable
}

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}
