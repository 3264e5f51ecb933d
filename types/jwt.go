package types

import "github.com/golang-jwt/jwt/v5"

// Claims represents the bearer token claims shared by the client and the
// mock shift service.
type Claims struct {
	UserID  uint `json:"user_id"`
	NurseID uint `json:"nurse_id"`
	jwt.RegisteredClaims
}
