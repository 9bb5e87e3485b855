package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"

	"vaultcrack/internal/config"
	"vaultcrack/internal/models"
	"vaultcrack/internal/vault"
)

var (
	ErrNonceNotFound   = errors.New("nonce not found or expired")
	ErrSessionNotFound = errors.New("combat session not found")
)

type RedisService struct {
	client *redis.Client
}

var _ vault.Sessions = (*RedisService)(nil)
var _ vault.Recorder = (*RedisService)(nil)

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

func NewRedisServiceWithClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

// Client exposes the connection for the relay's Pub/Sub broker.
func (s *RedisService) Client() *redis.Client {
	return s.client
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// StoreNonce sets nonce as the pending sign-in nonce for wallet unless one is
// already pending, and returns whichever nonce is pending with its remaining
// lifetime. Repeated requests never rotate a nonce a wallet is signing.
func (s *RedisService) StoreNonce(ctx context.Context, wallet, nonce string) (string, time.Duration, error) {
	key := fmt.Sprintf(KeyAuthNonce, wallet)

	for range 2 {
		ok, err := s.client.SetNX(ctx, key, nonce, TTLAuthNonce).Result()
		if err != nil {
			return "", 0, fmt.Errorf("failed to store nonce: %w", err)
		}
		if ok {
			return nonce, TTLAuthNonce, nil
		}

		pipe := s.client.Pipeline()
		get := pipe.Get(ctx, key)
		ttl := pipe.PTTL(ctx, key)
		if _, err := pipe.Exec(ctx); err == redis.Nil {
			continue // expired between SETNX and GET
		} else if err != nil {
			return "", 0, fmt.Errorf("failed to get pending nonce: %w", err)
		}
		if ttl.Val() <= 0 {
			return get.Val(), TTLAuthNonce, nil
		}
		return get.Val(), ttl.Val(), nil
	}
	return "", 0, fmt.Errorf("failed to store nonce: key %s kept changing", key)
}

// ConsumeNonce returns the pending nonce for wallet and deletes it, so each
// nonce authenticates at most once.
func (s *RedisService) ConsumeNonce(ctx context.Context, wallet string) (string, error) {
	key := fmt.Sprintf(KeyAuthNonce, wallet)

	nonce, err := s.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNonceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}
	return nonce, nil
}

func (s *RedisService) SaveCombatSession(ctx context.Context, session *models.CombatSession) error {
	key := fmt.Sprintf(KeyCombatSession, session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal combat session: %w", err)
	}

	if err := s.client.Set(ctx, key, data, TTLCombatSession).Err(); err != nil {
		return fmt.Errorf("failed to save combat session: %w", err)
	}
	return nil
}

func (s *RedisService) GetCombatSession(ctx context.Context, sessionID string) (*models.CombatSession, error) {
	key := fmt.Sprintf(KeyCombatSession, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to get combat session: %w", err)
	}

	var session models.CombatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal combat session: %w", err)
	}
	return &session, nil
}

// Reserve claims the single vault attempt allowed for a combat session.
func (s *RedisService) Reserve(ctx context.Context, wallet solana.PublicKey, sessionID string) (bool, error) {
	key := fmt.Sprintf(KeyAttemptGuard, wallet, sessionID)
	ok, err := s.client.SetNX(ctx, key, time.Now().Unix(), TTLAttemptGuard).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve attempt: %w", err)
	}
	return ok, nil
}

func (s *RedisService) Release(ctx context.Context, wallet solana.PublicKey, sessionID string) error {
	key := fmt.Sprintf(KeyAttemptGuard, wallet, sessionID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) RecordAttempt(ctx context.Context, result *vault.Result) error {
	record := AttemptRecordFromResult(result)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	attemptKey := fmt.Sprintf(KeyAttempt, record.Wallet, record.SessionID)
	walletKey := fmt.Sprintf(KeyWalletAttempts, record.Wallet)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, attemptKey, data, TTLAttempt)
	pipe.ZAdd(ctx, walletKey, redis.Z{
		Score:  float64(record.CreatedAt),
		Member: record.SessionID,
	})
	// Keep only the most recent attempts
	pipe.ZRemRangeByRank(ctx, walletKey, 0, -(MaxAttemptHistory + 1))
	pipe.Expire(ctx, walletKey, TTLAttempt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

func AttemptRecordFromResult(result *vault.Result) *models.AttemptRecord {
	record := &models.AttemptRecord{
		SessionID:   result.SessionID,
		Wallet:      result.Wallet.String(),
		MonsterType: result.MonsterType,
		Outcome:     models.OutcomeLoss,
		Roll:        result.Roll,
		CrackChance: result.CrackChance,
		Proof:       result.Proof,
		CreatedAt:   result.AttemptedAt.Unix(),
	}
	if result.Success {
		record.Outcome = models.OutcomeWin
		if result.SettlementFailed {
			record.Outcome = models.OutcomeSettlementFailed
		}
	}
	if result.PrizeAmount != nil {
		record.PrizeAmount = *result.PrizeAmount
	}
	if result.ClaimSignature != nil {
		record.ClaimSignature = result.ClaimSignature.String()
	}
	if result.PendingSignature != nil {
		record.PendingSignature = result.PendingSignature.String()
	}
	return record
}

func (s *RedisService) GetAttemptHistory(ctx context.Context, wallet string, limit int64) ([]*models.AttemptRecord, error) {
	if limit <= 0 || limit > MaxAttemptHistory {
		limit = 50
	}

	walletKey := fmt.Sprintf(KeyWalletAttempts, wallet)
	sessionIDs, err := s.client.ZRevRange(ctx, walletKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt ids: %w", err)
	}
	if len(sessionIDs) == 0 {
		return []*models.AttemptRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		cmds[i] = pipe.Get(ctx, fmt.Sprintf(KeyAttempt, wallet, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline execution failed: %w", err)
	}

	records := make([]*models.AttemptRecord, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var record models.AttemptRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// CheckRateLimit counts one action for subject in a fixed window and reports
// whether it is still within limit.
func (s *RedisService) CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, subject, action string) error {
	key := fmt.Sprintf(KeyRateLimit, subject, action)
	return s.client.Del(ctx, key).Err()
}
