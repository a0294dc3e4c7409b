package model

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthRequest types
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// RegisterRequest signs up a patient; staff and admin accounts are created by admins.
type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8,max=72"`
	FirstName   string  `json:"first_name" binding:"required,max=100"`
	LastName    string  `json:"last_name" binding:"required,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=32"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
}

type CreateUserRequest struct {
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8,max=72"`
	Name     string     `json:"name" binding:"required,max=200"`
	Role     Role       `json:"role" binding:"required,oneof=patient staff admin"`
	StaffID  *uuid.UUID `json:"staff_id"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// AuthResponse types
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user,omitempty"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	StaffID   *uuid.UUID `json:"staff_id,omitempty"`
	Refresh   bool       `json:"refresh,omitempty"`
}
