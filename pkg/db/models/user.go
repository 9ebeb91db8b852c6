package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string         `gorm:"type:text;not null;uniqueIndex"`
	Username     string         `gorm:"column:username;not null"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	GlobalRoles  pq.StringArray `gorm:"column:global_roles;type:text[];not null;default:'{member}'"`
	Banned       bool           `gorm:"column:banned;not null;default:false"`
	AuthVersion  int            `gorm:"column:auth_version;not null;default:1"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
