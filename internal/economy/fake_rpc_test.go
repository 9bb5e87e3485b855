package economy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/logger"
	"vaultcrack/internal/retry"
)

var testProgram = solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")

// fakeRPC is an in-memory stand-in for a validator.
type fakeRPC struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey][]byte
	balances map[solana.PublicKey]uint64

	accountErr      error
	accountFailures int // fail this many account reads, -1 for always
	balanceErr      error
	sendErr         error
	statusFunc      func(sig solana.Signature) *rpc.SignatureStatusesResult

	accountCalls int
	statusCalls  int
	sent         []*solana.Transaction
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		accounts: make(map[solana.PublicKey][]byte),
		balances: make(map[solana.PublicKey]uint64),
	}
}

func (f *fakeRPC) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.accountCalls++
	if f.accountErr != nil && (f.accountFailures < 0 || f.accountCalls <= f.accountFailures) {
		return nil, f.accountErr
	}
	data, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{Lamports: f.balances[account], Data: rpc.DataBytesOrJSONFromBytes(data)},
	}, nil
}

func (f *fakeRPC) GetBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &rpc.GetBalanceResult{Value: f.balances[account]}, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: solana.Hash{9, 9, 9}},
	}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range sigs {
		if f.statusFunc != nil {
			out.Value = append(out.Value, f.statusFunc(sig))
			continue
		}
		out.Value = append(out.Value, &rpc.SignatureStatusesResult{
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
		})
	}
	return out, nil
}

func (f *fakeRPC) setAccount(t *testing.T, addr solana.PublicKey, data []byte) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = data
}

func (f *fakeRPC) setBalance(addr solana.PublicKey, lamports uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[addr] = lamports
}

func (f *fakeRPC) setLedger(t *testing.T, player solana.PublicKey, ledger chain.PlayerLedger) {
	t.Helper()
	addr, _, err := chain.PlayerLedgerAddress(testProgram, player)
	require.NoError(t, err)
	data, err := chain.EncodePlayerLedger(ledger)
	require.NoError(t, err)
	f.setAccount(t, addr, data)
}

func (f *fakeRPC) setGameState(t *testing.T, state chain.GameState) {
	t.Helper()
	addr, _, err := chain.GameStateAddress(testProgram)
	require.NoError(t, err)
	data, err := chain.EncodeGameState(state)
	require.NoError(t, err)
	f.setAccount(t, addr, data)
}

func (f *fakeRPC) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newKeypair(t *testing.T) *Keypair {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	kp, err := NewKeypair(key)
	require.NoError(t, err)
	return kp
}

const testEntryFee = 10_000_000

func newTestClient(t *testing.T, f *fakeRPC, mutate ...func(*Config)) (*Client, *Keypair) {
	t.Helper()

	backend := newKeypair(t)
	cfg := Config{
		Logger:              logger.ForTest(),
		RPC:                 f,
		ProgramID:           testProgram,
		Backend:             backend,
		EntryFee:            testEntryFee,
		MinOperatingBalance: 50_000_000,
		VaultReserve:        890_880,
		ConfirmTimeout:      time.Second,
		PollInterval:        time.Millisecond,
		Retry:               retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c, backend
}
