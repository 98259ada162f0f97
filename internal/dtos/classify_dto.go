package dtos

import "time"

type ClassifyRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	Provider     string `json:"provider" binding:"required"`
	LookbackDays int    `json:"lookback_days" binding:"omitempty,min=1,max=365"`
	MaxResults   int    `json:"max_results" binding:"omitempty,min=1"`
}

// CredentialRequest carries a bearer credential obtained by the login flow.
type CredentialRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	Provider     string `json:"provider" binding:"required"`
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// Optional Fields
	ExpiresIn int       `json:"expires_in"` // seconds from now
	Expiry    time.Time `json:"expiry"`
}

type CredentialResponse struct {
	UserID   string    `json:"user_id"`
	Provider string    `json:"provider"`
	Expiry   time.Time `json:"expiry"`
}
