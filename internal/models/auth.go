package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole distinguishes portal actors.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// Identity is the currently authenticated actor. It lives only for the session.
type Identity struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
}

// LoginRequest holds credentials for opening a session.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
	SyncURL  string `json:"syncUrl"`
}

// LoginResponse returns the session token and resolved identity.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        Identity  `json:"user"`
	SyncURL     string    `json:"syncUrl,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the session token payload.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	Email     string   `json:"email"`
	FullName  string   `json:"full_name"`
	SessionID string   `json:"session_id"`
	jwt.RegisteredClaims
}

// Identity converts claims into an Identity.
func (c *JWTClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Name: c.FullName, Role: c.Role}
}
