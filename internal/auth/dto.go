package auth

import (
	"github.com/angelmondragon/partsmarket-backend/internal/memberships"
	"github.com/angelmondragon/partsmarket-backend/internal/users"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest onboards a buyer, optionally opening a selling organization.
type RegisterRequest struct {
	Email            string  `json:"email" validate:"required,email"`
	Username         string  `json:"username" validate:"required,min=3,max=64"`
	Password         string  `json:"password" validate:"required,min=8"`
	OrganizationName *string `json:"organization_name,omitempty" validate:"omitempty,min=2,max=128"`
}

// LoginResponse contains the access token, the user and the organizations they belong to.
type LoginResponse struct {
	AccessToken   string                          `json:"access_token"`
	ExpiresIn     int64                           `json:"expires_in"`
	User          *users.UserDTO                  `json:"user"`
	Organizations []memberships.MembershipWithOrg `json:"organizations"`
}
