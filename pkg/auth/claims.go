package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	AuthVersion int
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients. AuthVersion
// must equal the user's current auth_version for the token to be honored.
type AccessTokenClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	AuthVersion int       `json:"av"`
	jwt.RegisteredClaims
}
