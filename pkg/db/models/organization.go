package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
)

// Organization is a selling tenant.
type Organization struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OrgMembership links a user to an organization with a tenant role.
type OrgMembership struct {
	OrgID      uuid.UUID     `gorm:"column:org_id;type:uuid;primaryKey"`
	UserID     uuid.UUID     `gorm:"column:user_id;type:uuid;primaryKey"`
	Role       enums.OrgRole `gorm:"column:role;type:text;not null"`
	InvitedBy  *uuid.UUID    `gorm:"column:invited_by;type:uuid"`
	InvitedAt  *time.Time    `gorm:"column:invited_at"`
	AcceptedAt *time.Time    `gorm:"column:accepted_at"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (OrgMembership) TableName() string { return "org_memberships" }
