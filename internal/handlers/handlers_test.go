package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"vaultcrack/internal/chain"
	"vaultcrack/internal/economy"
	"vaultcrack/internal/handlers"
	"vaultcrack/internal/logger"
	"vaultcrack/internal/metrics"
	"vaultcrack/internal/models"
	"vaultcrack/internal/payment"
	"vaultcrack/internal/relay"
	"vaultcrack/internal/services"
	"vaultcrack/internal/tiers"
	"vaultcrack/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeChain struct {
	state  chain.GameState
	ledger *chain.PlayerLedger
	err    error
}

func (f *fakeChain) GetGameState(context.Context) (chain.GameState, error) {
	return f.state, f.err
}

func (f *fakeChain) GetPlayerLedger(context.Context, solana.PublicKey) (*chain.PlayerLedger, error) {
	return f.ledger, f.err
}

func (f *fakeChain) GetPaymentOptions(context.Context, solana.PublicKey) economy.PaymentOptions {
	opts := economy.PaymentOptions{EntryFee: 10_000_000}
	if f.ledger != nil {
		opts.LedgerBalance = f.ledger.Balance
		opts.CanPayFromLedger = f.ledger.Balance >= opts.EntryFee
	}
	return opts
}

func (f *fakeChain) ReconcileVault(context.Context) (economy.VaultReconciliation, error) {
	return economy.VaultReconciliation{RecordedPot: f.state.Pot, VaultBalance: f.state.Pot + 890_880, Reserve: 890_880}, f.err
}

func (f *fakeChain) EntryFee() uint64 {
	return 10_000_000
}

type fakeSigner struct {
	status economy.SignerStatus
	cached bool
}

func (f *fakeSigner) Status() (economy.SignerStatus, bool) {
	return f.status, f.cached
}

func (f *fakeSigner) Check(context.Context) (economy.SignerStatus, error) {
	return f.status, nil
}

type fakeCracker struct {
	mu       sync.Mutex
	requests []vault.Request
	result   *vault.Result
	err      error
}

func (f *fakeCracker) Attempt(_ context.Context, req vault.Request) (*vault.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, f.err
}

type fakeRouter struct {
	requests []payment.EntryRequest
	sig      solana.Signature
	err      error
}

func (f *fakeRouter) Enter(_ context.Context, req payment.EntryRequest) (payment.Receipt, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return payment.Receipt{}, f.err
	}
	return payment.Receipt{Player: req.Player, Rail: req.Rail, EntryFee: 10_000_000, Signature: f.sig}, nil
}

func (f *fakeRouter) PrizeRoute(context.Context, solana.PublicKey) (payment.PrizeRoute, error) {
	return payment.PrizeToWallet, nil
}

type fakeNotifier struct {
	reasons []string
	sigs    []solana.Signature
}

func (f *fakeNotifier) Notify(_ context.Context, reason string, sig solana.Signature, _ uint64) error {
	f.reasons = append(f.reasons, reason)
	f.sigs = append(f.sigs, sig)
	return nil
}

type testServer struct {
	router   *gin.Engine
	chain    *fakeChain
	cracker  *fakeCracker
	entries  *fakeRouter
	notifier *fakeNotifier
	redis    *services.RedisService
	broker   *relay.MemoryBroker
	jwt      *services.JWTService
	clock    *clockwork.FakeClock
}

const relaySecret = "viewer-secret"

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.ForTest()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	mr := miniredis.RunT(t)
	redisService := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { redisService.Close() })
	jwtService := services.NewJWTServiceWithClock("test-secret", time.Hour, clock)

	broker := relay.NewMemoryBroker(log)
	t.Cleanup(func() { broker.Close() })
	hub := relay.NewHub(log, broker)

	ts := &testServer{
		chain:    &fakeChain{state: chain.GameState{Pot: 1_000_000_000, TotalEntries: 12}},
		cracker:  &fakeCracker{},
		entries:  &fakeRouter{sig: solana.Signature{7}},
		notifier: &fakeNotifier{},
		redis:    redisService,
		broker:   broker,
		jwt:      jwtService,
		clock:    clock,
	}

	game, err := handlers.NewGameHandler(handlers.GameHandlerConfig{
		Logger:   log,
		Clock:    clock,
		Chain:    ts.chain,
		Sessions: redisService,
		Cracker:  ts.cracker,
		Router:   ts.entries,
		Signer:   &fakeSigner{status: economy.SignerStatus{Balance: 1, MinOperatingBalance: 2, Low: true}, cached: true},
		Notifier: ts.notifier,
	})
	require.NoError(t, err)

	ts.router = gin.New()
	handlers.Routes{
		Auth:    handlers.NewAuthHandler(log, clock, redisService, jwtService),
		Game:    game,
		Relay:   handlers.NewRelayHandler(log, clock, hub, broker, relaySecret),
		Tokens:  jwtService,
		Limiter: redisService,
	}.Register(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) bearer(t *testing.T, wallet solana.PublicKey) map[string]string {
	t.Helper()
	token, _, err := ts.jwt.GenerateToken(wallet.String())
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuth_SignInWithWallet(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	key := solana.NewWallet().PrivateKey
	wallet := key.PublicKey()

	rec := ts.do(t, http.MethodGet, "/auth/nonce?wallet="+wallet.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode[models.NonceResponse](t, rec)
	require.Equal(t, models.SignInMessage(wallet.String(), nonce.Nonce), nonce.Message)

	sig, err := key.Sign([]byte(nonce.Message))
	require.NoError(t, err)

	rec = ts.do(t, http.MethodPost, "/auth/verify", models.VerifyRequest{Wallet: wallet.String(), Signature: sig.String()}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	auth := decode[models.AuthResponse](t, rec)
	require.Equal(t, wallet.String(), auth.Wallet)

	claims, err := ts.jwt.ValidateToken(auth.Token)
	require.NoError(t, err)
	require.Equal(t, wallet.String(), claims.Wallet)

	// The nonce cannot be replayed.
	rec = ts.do(t, http.MethodPost, "/auth/verify", models.VerifyRequest{Wallet: wallet.String(), Signature: sig.String()}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_RepeatedNonceRequestsKeepPendingNonce(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	key := solana.NewWallet().PrivateKey
	wallet := key.PublicKey()

	rec := ts.do(t, http.MethodGet, "/auth/nonce?wallet="+wallet.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[models.NonceResponse](t, rec)

	// Anyone can ask for a nonce for any wallet; that must not invalidate
	// the one the owner is signing.
	for i := 0; i < 3; i++ {
		rec = ts.do(t, http.MethodGet, "/auth/nonce?wallet="+wallet.String(), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, first.Nonce, decode[models.NonceResponse](t, rec).Nonce)
	}

	sig, err := key.Sign([]byte(first.Message))
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/auth/verify", models.VerifyRequest{Wallet: wallet.String(), Signature: sig.String()}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/auth/nonce?wallet="+wallet.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEqual(t, first.Nonce, decode[models.NonceResponse](t, rec).Nonce)
}

func TestAuth_RejectsForeignSignature(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PrivateKey

	rec := ts.do(t, http.MethodGet, "/auth/nonce?wallet="+wallet.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode[models.NonceResponse](t, rec)

	sig, err := other.Sign([]byte(nonce.Message))
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/auth/verify", models.VerifyRequest{Wallet: wallet.String(), Signature: sig.String()}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/auth/nonce?wallet=nope", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGame_PublicReads(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	player := solana.NewWallet().PublicKey()
	ts.chain.ledger = &chain.PlayerLedger{Owner: player, Balance: 50_000_000, LastRail: chain.RailLedger}

	rec := ts.do(t, http.MethodGet, "/api/game-state", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[models.GameStateResponse](t, rec)
	require.EqualValues(t, 1_000_000_000, state.Pot)
	require.Equal(t, "orc", state.CurrentTier)
	require.EqualValues(t, 12, state.TotalEntries)

	rec = ts.do(t, http.MethodGet, "/api/players/"+player.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.PlayerResponse](t, rec)
	require.Equal(t, payment.PrizeToLedger, resp.PrizeRoute)
	require.True(t, resp.PaymentOptions.CanPayFromLedger)

	rec = ts.do(t, http.MethodGet, "/api/players/not-a-wallet", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tiers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"dragon"`)

	rec = ts.do(t, http.MethodGet, "/api/tiers/current", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"monster":"orc"`)

	rec = ts.do(t, http.MethodGet, "/api/signer/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"low":true`)

	rec = ts.do(t, http.MethodGet, "/api/vault/reconcile", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"balanced":true`)

	rec = ts.do(t, http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGame_ChainUnavailable(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.chain.err = errors.Join(economy.ErrTransport, errors.New("connection refused"))

	rec := ts.do(t, http.MethodGet, "/api/game-state", nil, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGame_ProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	for _, path := range []string{"/api/combat/start", "/api/vault/attempt", "/api/entries/gasless"} {
		rec := ts.do(t, http.MethodPost, path, nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestGame_StartCombat(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()

	rec := ts.do(t, http.MethodPost, "/api/combat/start", nil, ts.bearer(t, wallet))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	sessionID, _ := resp["sessionId"].(string)
	_, err := uuid.Parse(sessionID)
	require.NoError(t, err)

	session, err := ts.redis.GetCombatSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, wallet.String(), session.Wallet)
	require.Equal(t, "orc", session.MonsterType)
	require.EqualValues(t, 1_000_000_000, session.PotAtStart)
}

func TestGame_AttemptVault(t *testing.T) {
	t.Parallel()

	wallet := solana.NewWallet().PublicKey()
	claim := solana.Signature{9}
	prize := uint64(1_000_000_000)

	tests := []struct {
		name       string
		body       any
		result     *vault.Result
		err        error
		wantStatus int
		wantNotify bool
	}{
		{
			name: "win notifies pot change",
			body: models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "slime"},
			result: &vault.Result{Wallet: wallet, Success: true, Roll: 10, CrackChance: 50,
				PrizeAmount: &prize, ClaimSignature: &claim},
			wantStatus: http.StatusOK,
			wantNotify: true,
		},
		{
			name:       "loss",
			body:       models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "dragon"},
			result:     &vault.Result{Wallet: wallet, Roll: 77, CrackChance: 3},
			wantStatus: http.StatusOK,
		},
		{
			name: "settlement mismatch is a degraded success",
			body: models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "slime"},
			result: &vault.Result{Wallet: wallet, Success: true, SettlementFailed: true,
				PrizeAmount: &prize},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing monster",
			body:       map[string]string{"sessionId": uuid.NewString()},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "session not a uuid",
			body:       models.VaultAttemptRequest{SessionID: "abc", MonsterType: "orc"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown monster",
			body:       models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "kraken"},
			err:        tiers.ErrInvalidMonsterType,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "oracle down",
			body:       models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "orc"},
			err:        vault.ErrOracleUnavailable,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "session reused",
			body:       models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "orc"},
			err:        vault.ErrSessionUsed,
			wantStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			ts.cracker.result = tt.result
			ts.cracker.err = tt.err

			rec := ts.do(t, http.MethodPost, "/api/vault/attempt", tt.body, ts.bearer(t, wallet))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantNotify {
				require.Equal(t, []string{relay.ReasonClaim}, ts.notifier.reasons)
				require.Equal(t, claim, ts.notifier.sigs[0])
			} else {
				require.Empty(t, ts.notifier.reasons)
			}
			if tt.result != nil && tt.err == nil {
				require.Len(t, ts.cracker.requests, 1)
				require.Equal(t, wallet, ts.cracker.requests[0].Wallet)
			}
		})
	}
}

func TestGame_AttemptVaultAuditsCombatSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()
	headers := ts.bearer(t, wallet)
	ts.cracker.result = &vault.Result{Wallet: wallet, Roll: 90, CrackChance: 50}
	mismatches := metrics.CombatSessionAuditTotal.WithLabelValues("mismatch")
	before := testutil.ToFloat64(mismatches)

	rec := ts.do(t, http.MethodPost, "/api/combat/start", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sessionID, _ := decode[map[string]any](t, rec)["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	// The fight started against an orc.
	rec = ts.do(t, http.MethodPost, "/api/vault/attempt",
		models.VaultAttemptRequest{SessionID: sessionID, MonsterType: "slime"}, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The declared monster is what the cracker rolls against.
	require.Len(t, ts.cracker.requests, 1)
	require.Equal(t, "slime", ts.cracker.requests[0].MonsterType)
	require.Equal(t, before+1, testutil.ToFloat64(mismatches))
}

func TestGame_AttemptVaultRateLimited(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()
	ts.cracker.result = &vault.Result{Wallet: wallet, Roll: 90, CrackChance: 15}
	headers := ts.bearer(t, wallet)

	for i := 0; i < services.DefaultRateLimitAttempts; i++ {
		rec := ts.do(t, http.MethodPost, "/api/vault/attempt",
			models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "orc"}, headers)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/api/vault/attempt",
		models.VaultAttemptRequest{SessionID: uuid.NewString(), MonsterType: "orc"}, headers)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGame_EnterGasless(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()

	rec := ts.do(t, http.MethodPost, "/api/entries/gasless", nil, ts.bearer(t, wallet))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[models.EntryResponse](t, rec)
	require.True(t, resp.Success)
	require.Equal(t, chain.RailLedger, resp.Rail)
	require.Equal(t, solana.Signature{7}.String(), resp.Signature)

	require.Len(t, ts.entries.requests, 1)
	require.Equal(t, wallet, ts.entries.requests[0].Player)
	require.Equal(t, chain.RailLedger, ts.entries.requests[0].Rail)
	require.Equal(t, []string{relay.ReasonEntry}, ts.notifier.reasons)
}

func TestGame_EnterGaslessErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name: "program rejection",
			err: &economy.RejectedError{Instruction: "enter_combat_gasless", Reason: "custom program error",
				Logs: []string{"Program log: AnchorError occurred. Error Message: Insufficient ledger balance."}},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{name: "no ledger funds", err: economy.ErrInsufficientLedgerBalance, wantStatus: http.StatusPaymentRequired},
		{name: "signer below floor", err: economy.ErrSignerBelowFloor, wantStatus: http.StatusServiceUnavailable},
		{name: "confirmation timeout", err: economy.ErrConfirmationTimeout, wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t)
			ts.entries.err = tt.err
			rec := ts.do(t, http.MethodPost, "/api/entries/gasless", nil, ts.bearer(t, solana.NewWallet().PublicKey()))
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Empty(t, ts.notifier.reasons)
		})
	}

	ts := newTestServer(t)
	ts.entries.err = &economy.RejectedError{Instruction: "enter_combat_gasless",
		Logs: []string{"Program log: Error Message: Insufficient ledger balance."}}
	rec := ts.do(t, http.MethodPost, "/api/entries/gasless", nil, ts.bearer(t, solana.NewWallet().PublicKey()))
	require.Equal(t, "Insufficient ledger balance", decode[map[string]any](t, rec)["programError"])
}

func TestGame_AttemptHistory(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	wallet := solana.NewWallet().PublicKey()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, ts.redis.RecordAttempt(ctx, &vault.Result{
			Wallet:      wallet,
			SessionID:   uuid.NewString(),
			MonsterType: "goblin",
			Roll:        60 + i,
			CrackChance: 30,
			Proof:       json.RawMessage(`{}`),
			AttemptedAt: time.Unix(1_700_000_000+int64(i), 0),
		}))
	}

	rec := ts.do(t, http.MethodGet, "/api/vault/attempts?limit=2", nil, ts.bearer(t, wallet))
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[models.AttemptHistoryResponse](t, rec)
	require.Len(t, history.Attempts, 2)
	require.Equal(t, 62, history.Attempts[0].Roll)

	rec = ts.do(t, http.MethodGet, "/api/vault/attempts", nil, ts.bearer(t, solana.NewWallet().PublicKey()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, rec)["attempts"]))
}

func TestRelay_IngestViewerEvent(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := ts.broker.Subscribe(ctx, relay.TopicViewer)
	require.NoError(t, err)

	event := relay.ViewerEvent{Kind: relay.ViewerBoost, Player: "p1", Payload: json.RawMessage(`{"x":1}`)}

	rec := ts.do(t, http.MethodPost, "/api/relay/viewer", event, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	headers := map[string]string{handlers.RelaySecretHeader: relaySecret}
	rec = ts.do(t, http.MethodPost, "/api/relay/viewer", relay.ViewerEvent{Kind: "confetti", Player: "p1"}, headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/relay/viewer", event, headers)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-sub.C:
		require.Equal(t, relay.TopicViewer, msg.Type)
		var got relay.ViewerEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		require.Equal(t, relay.ViewerBoost, got.Kind)
		require.Equal(t, "p1", got.Player)
		require.EqualValues(t, 1_700_000_000, got.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer event not published")
	}
}
