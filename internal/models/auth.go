package models

import "time"

type NonceResponse struct {
	Wallet    string    `json:"wallet"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyRequest carries the base58 ed25519 signature of the sign-in message.
type VerifyRequest struct {
	Wallet    string `json:"wallet" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	Wallet    string    `json:"wallet"`
	ExpiresAt time.Time `json:"expiresAt"`
}
