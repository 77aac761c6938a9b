package model

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the JWT claims carried by an access token. The user ID
// lives in the registered subject claim.
type AccessClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenResponse is returned when a token is issued
type TokenResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}
