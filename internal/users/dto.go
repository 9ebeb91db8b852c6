package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/angelmondragon/partsmarket-backend/pkg/db/models"
	"github.com/angelmondragon/partsmarket-backend/pkg/enums"
	"github.com/angelmondragon/partsmarket-backend/pkg/pagination"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID          `json:"id"`
	Email       string             `json:"email"`
	Username    string             `json:"username"`
	GlobalRoles []enums.GlobalRole `json:"global_roles"`
	Banned      bool               `json:"banned"`
	LastLoginAt *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ListQuery carries the admin listing filters and cursor.
type ListQuery struct {
	ListFilter
	pagination.Params
}

// UserList is one page of users.
type UserList struct {
	Items      []UserDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	Username     string
	PasswordHash string
	GlobalRoles  []enums.GlobalRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		GlobalRoles: GlobalRoles(u),
		Banned:      u.Banned,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// GlobalRoles returns the user's known global roles, dropping unknown values.
func GlobalRoles(u *models.User) []enums.GlobalRole {
	if u == nil {
		return nil
	}
	roles := make([]enums.GlobalRole, 0, len(u.GlobalRoles))
	for _, raw := range u.GlobalRoles {
		role, err := enums.ParseGlobalRole(raw)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}

func (c CreateUserDTO) ToModel() *models.User {
	roles := c.GlobalRoles
	if len(roles) == 0 {
		roles = []enums.GlobalRole{enums.GlobalRoleMember}
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		GlobalRoles:  roleArray(roles),
		AuthVersion:  1,
	}
}

func roleArray(roles []enums.GlobalRole) pq.StringArray {
	out := make(pq.StringArray, 0, len(roles))
	seen := make(map[enums.GlobalRole]struct{}, len(roles))
	for _, role := range roles {
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, string(role))
	}
	return out
}
