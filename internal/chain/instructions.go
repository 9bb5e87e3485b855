package chain

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"vaultcrack/internal/codec"
)

const (
	IxEnterCombat        = "enter_combat"
	IxEnterCombatGasless = "enter_combat_gasless"
	IxDeposit            = "deposit"
	IxWithdraw           = "withdraw"
	IxClaimPrize         = "claim_prize"
)

var ErrZeroAmount = errors.New("amount must be greater than zero")

// EnterCombat is paid by the player's wallet, which must sign.
func EnterCombat(addrs Addresses, player solana.PublicKey) (solana.Instruction, error) {
	ledger, _, err := PlayerLedgerAddress(addrs.Program, player)
	if err != nil {
		return nil, err
	}
	data, err := codec.Instruction(IxEnterCombat)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.Program, solana.AccountMetaSlice{
		solana.NewAccountMeta(ledger, true, false),
		solana.NewAccountMeta(addrs.GameState, true, false),
		solana.NewAccountMeta(addrs.PotVault, true, false),
		solana.NewAccountMeta(player, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// EnterCombatGasless debits the player's ledger balance. The backend
// authority signs and pays the network fee.
func EnterCombatGasless(addrs Addresses, authority, player solana.PublicKey) (solana.Instruction, error) {
	ledger, _, err := PlayerLedgerAddress(addrs.Program, player)
	if err != nil {
		return nil, err
	}
	data, err := codec.Instruction(IxEnterCombatGasless, codec.Key("player", &player))
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.Program, solana.AccountMetaSlice{
		solana.NewAccountMeta(ledger, true, false),
		solana.NewAccountMeta(addrs.GameState, true, false),
		solana.NewAccountMeta(addrs.PotVault, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

func Deposit(addrs Addresses, player solana.PublicKey, amount uint64) (solana.Instruction, error) {
	return ledgerTransfer(IxDeposit, addrs, player, amount)
}

func Withdraw(addrs Addresses, player solana.PublicKey, amount uint64) (solana.Instruction, error) {
	return ledgerTransfer(IxWithdraw, addrs, player, amount)
}

func ledgerTransfer(name string, addrs Addresses, player solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	ledger, _, err := PlayerLedgerAddress(addrs.Program, player)
	if err != nil {
		return nil, err
	}
	data, err := codec.Instruction(name, codec.U64("amount", &amount))
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.Program, solana.AccountMetaSlice{
		solana.NewAccountMeta(ledger, true, false),
		solana.NewAccountMeta(player, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}

// ClaimPrize pays the pot to winner. The program routes the prize to the
// winner's ledger or wallet according to the rail of their last entry.
func ClaimPrize(addrs Addresses, authority, winner solana.PublicKey, proof []byte) (solana.Instruction, error) {
	ledger, _, err := PlayerLedgerAddress(addrs.Program, winner)
	if err != nil {
		return nil, err
	}
	data, err := codec.Instruction(IxClaimPrize,
		codec.Key("winner", &winner),
		codec.Bytes("proof", &proof),
	)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(addrs.Program, solana.AccountMetaSlice{
		solana.NewAccountMeta(addrs.GameState, true, false),
		solana.NewAccountMeta(addrs.PotVault, true, false),
		solana.NewAccountMeta(ledger, true, false),
		solana.NewAccountMeta(winner, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, data), nil
}
