package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"vaultcrack/internal/models"
	"vaultcrack/internal/services"
	"vaultcrack/internal/vault"
)

func newRedisService(t *testing.T) (*services.RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := services.NewRedisServiceWithClient(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisService_Nonce(t *testing.T) {
	t.Parallel()

	s, mr := newRedisService(t)
	ctx := context.Background()

	_, err := s.ConsumeNonce(ctx, "w1")
	require.ErrorIs(t, err, services.ErrNonceNotFound)

	pending, ttl, err := s.StoreNonce(ctx, "w1", "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", pending)
	require.Equal(t, services.TTLAuthNonce, ttl)

	// A second request keeps the pending nonce.
	mr.FastForward(time.Minute)
	pending, ttl, err = s.StoreNonce(ctx, "w1", "xyz")
	require.NoError(t, err)
	require.Equal(t, "abc", pending)
	require.Equal(t, services.TTLAuthNonce-time.Minute, ttl)

	nonce, err := s.ConsumeNonce(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "abc", nonce)

	_, err = s.ConsumeNonce(ctx, "w1")
	require.ErrorIs(t, err, services.ErrNonceNotFound)

	pending, _, err = s.StoreNonce(ctx, "w1", "def")
	require.NoError(t, err)
	require.Equal(t, "def", pending)
	mr.FastForward(services.TTLAuthNonce + time.Second)
	_, err = s.ConsumeNonce(ctx, "w1")
	require.ErrorIs(t, err, services.ErrNonceNotFound)

	// An expired nonce is replaced.
	pending, _, err = s.StoreNonce(ctx, "w1", "ghi")
	require.NoError(t, err)
	require.Equal(t, "ghi", pending)
}

func TestRedisService_CombatSession(t *testing.T) {
	t.Parallel()

	s, _ := newRedisService(t)
	ctx := context.Background()

	session := &models.CombatSession{
		ID:          uuid.NewString(),
		Wallet:      "w1",
		MonsterType: "goblin",
		PotAtStart:  500_000_000,
		StartedAt:   1_700_000_000,
	}
	require.NoError(t, s.SaveCombatSession(ctx, session))

	got, err := s.GetCombatSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, session, got)

	_, err = s.GetCombatSession(ctx, "missing")
	require.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestRedisService_AttemptGuard(t *testing.T) {
	t.Parallel()

	s, _ := newRedisService(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey()
	id := uuid.NewString()

	ok, err := s.Reserve(ctx, wallet, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Reserve(ctx, wallet, id)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Release(ctx, wallet, id))
	ok, err = s.Reserve(ctx, wallet, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisService_AttemptHistory(t *testing.T) {
	t.Parallel()

	s, _ := newRedisService(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey()
	start := time.Unix(1_700_000_000, 0)

	for i := 0; i < services.MaxAttemptHistory+5; i++ {
		res := &vault.Result{
			Wallet:      wallet,
			SessionID:   uuid.NewString(),
			MonsterType: "orc",
			Roll:        i % 100,
			CrackChance: 15,
			Proof:       json.RawMessage(`{"seed":"x"}`),
			AttemptedAt: start.Add(time.Duration(i) * time.Second),
		}
		if i == services.MaxAttemptHistory+4 {
			prize := uint64(42)
			sig := solana.Signature{1}
			res.Success = true
			res.PrizeAmount = &prize
			res.ClaimSignature = &sig
		}
		require.NoError(t, s.RecordAttempt(ctx, res))
	}

	history, err := s.GetAttemptHistory(ctx, wallet.String(), 1000)
	require.NoError(t, err)
	require.Len(t, history, 50)

	latest := history[0]
	require.Equal(t, models.OutcomeWin, latest.Outcome)
	require.EqualValues(t, 42, latest.PrizeAmount)
	require.Equal(t, solana.Signature{1}.String(), latest.ClaimSignature)
	require.JSONEq(t, `{"seed":"x"}`, string(latest.Proof))
	require.Equal(t, models.OutcomeLoss, history[1].Outcome)

	history, err = s.GetAttemptHistory(ctx, wallet.String(), services.MaxAttemptHistory)
	require.NoError(t, err)
	require.Len(t, history, services.MaxAttemptHistory)

	empty, err := s.GetAttemptHistory(ctx, solana.NewWallet().PublicKey().String(), 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestAttemptRecordFromResult_SettlementFailed(t *testing.T) {
	t.Parallel()

	prize := uint64(9)
	sent := solana.Signature{4, 2}
	rec := services.AttemptRecordFromResult(&vault.Result{
		Wallet:           solana.NewWallet().PublicKey(),
		Success:          true,
		SettlementFailed: true,
		PrizeAmount:      &prize,
		PendingSignature: &sent,
	})
	require.Equal(t, models.OutcomeSettlementFailed, rec.Outcome)
	require.Empty(t, rec.ClaimSignature)
	require.Equal(t, sent.String(), rec.PendingSignature)
}

func TestRedisService_AttemptHistorySharedSessionID(t *testing.T) {
	t.Parallel()

	s, _ := newRedisService(t)
	ctx := context.Background()
	sessionID := uuid.NewString()
	first := solana.NewWallet().PublicKey()
	second := solana.NewWallet().PublicKey()

	for i, wallet := range []solana.PublicKey{first, second} {
		require.NoError(t, s.RecordAttempt(ctx, &vault.Result{
			Wallet:      wallet,
			SessionID:   sessionID,
			MonsterType: "goblin",
			Roll:        40 + i,
			CrackChance: 30,
			Proof:       json.RawMessage(`{"seed":"x"}`),
			AttemptedAt: time.Unix(1_700_000_000+int64(i), 0),
		}))
	}

	history, err := s.GetAttemptHistory(ctx, first.String(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, first.String(), history[0].Wallet)
	require.Equal(t, 40, history[0].Roll)

	history, err = s.GetAttemptHistory(ctx, second.String(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, second.String(), history[0].Wallet)
	require.Equal(t, 41, history[0].Roll)
}

func TestRedisService_CheckRateLimit(t *testing.T) {
	t.Parallel()

	s, mr := newRedisService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := s.CheckRateLimit(ctx, "w1", "attempt", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	allowed, err := s.CheckRateLimit(ctx, "w1", "attempt", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = s.CheckRateLimit(ctx, "w2", "attempt", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(time.Minute + time.Second)
	allowed, err = s.CheckRateLimit(ctx, "w1", "attempt", 3, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, s.ClearRateLimit(ctx, "w1", "attempt"))
}
