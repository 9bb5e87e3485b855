package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/config"
)

const jwtIssuer = "vaultcrack"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Wallet    string `json:"wallet"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewJWTService(cfg *config.Config) *JWTService {
	return NewJWTServiceWithClock(cfg.JWTSecret, cfg.JWTTTL, clockwork.NewRealClock())
}

func NewJWTServiceWithClock(secret string, ttl time.Duration, clock clockwork.Clock) *JWTService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTService{secret: []byte(secret), ttl: ttl, clock: clock}
}

// GenerateToken issues a token for an authenticated wallet.
func (s *JWTService) GenerateToken(wallet string) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		Wallet:    wallet,
		SessionID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Wallet == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
