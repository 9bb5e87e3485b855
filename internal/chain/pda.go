package chain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	seedPlayer    = []byte("player")
	seedGameState = []byte("game_state")
	seedPotVault  = []byte("pot_vault")
)

// PlayerLedgerAddress derives the per-player ledger account.
func PlayerLedgerAddress(program, player solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedPlayer, player.Bytes()}, program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive player ledger address: %w", err)
	}
	return addr, bump, nil
}

func GameStateAddress(program solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedGameState}, program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive game state address: %w", err)
	}
	return addr, bump, nil
}

func PotVaultAddress(program solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedPotVault}, program)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive pot vault address: %w", err)
	}
	return addr, bump, nil
}

// Addresses holds the singleton accounts of one program deployment.
type Addresses struct {
	Program   solana.PublicKey
	GameState solana.PublicKey
	PotVault  solana.PublicKey
}

func DeriveAddresses(program solana.PublicKey) (Addresses, error) {
	gameState, _, err := GameStateAddress(program)
	if err != nil {
		return Addresses{}, err
	}
	potVault, _, err := PotVaultAddress(program)
	if err != nil {
		return Addresses{}, err
	}
	return Addresses{Program: program, GameState: gameState, PotVault: potVault}, nil
}
