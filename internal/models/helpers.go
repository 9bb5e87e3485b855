package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

func GenerateSessionID() string {
	return uuid.NewString()
}

func GenerateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %v", err)
	}
	return hex.EncodeToString(bytes), nil
}

// SignInMessage is the exact text a wallet signs to authenticate.
func SignInMessage(wallet, nonce string) string {
	return fmt.Sprintf("Vault Crack sign-in\nWallet: %s\nNonce: %s", wallet, nonce)
}

func (r *VaultAttemptRequest) Validate() error {
	if _, err := uuid.Parse(r.SessionID); err != nil {
		return fmt.Errorf("sessionId must be a uuid: %v", err)
	}
	if r.MonsterType == "" {
		return fmt.Errorf("monsterType is required")
	}
	return nil
}
