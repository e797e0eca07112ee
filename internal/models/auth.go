package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// OfficerRole is the only role recognised by the dashboard.
const OfficerRole = "OFFICER"

// LoginRequest holds credentials for authenticating the officer.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued session token.
type LoginResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Officer     OfficerInfo `json:"officer"`
}

// OfficerInfo describes the authenticated officer in responses.
type OfficerInfo struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Session is an authenticated officer session.
type Session struct {
	ID        string      `json:"id"`
	Officer   OfficerInfo `json:"officer"`
	IssuedAt  time.Time   `json:"issuedAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// JWTClaims represents the JWT payload for officer sessions. The registered
// ID claim carries the session ID used for revocation.
type JWTClaims struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
