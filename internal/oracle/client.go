// Package oracle talks to the external verifiable-randomness service.
//
// A roll is requested exactly once. The client never retries and never falls
// back to local randomness: a second request would let a losing attempt be
// re-rolled.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vaultcrack/internal/metrics"
)

const methodRandomNumber = "getRandomNumber"

var ErrUnavailable = errors.New("fairness oracle unavailable")

type Config struct {
	Endpoint string
	APIKey   string
	// Caller identifies the backend to the oracle.
	Caller   string
	Contract string
	Timeout  time.Duration

	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64

	HTTPClient *http.Client
	Logger     *slog.Logger
}

func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("oracle endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

type Client struct {
	cfg     Config
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Proof is the oracle's evidence for a roll. Raw is kept byte-for-byte so it
// can be submitted with a prize claim; the typed fields are a convenience view.
type Proof struct {
	Seed      string          `json:"seed,omitempty"`
	Nonce     string          `json:"nonce,omitempty"`
	Hash      string          `json:"hash,omitempty"`
	Steps     int             `json:"steps,omitempty"`
	TxHash    string          `json:"txHash,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

type Roll struct {
	Value int   `json:"value"`
	Min   int   `json:"min"`
	Max   int   `json:"max"`
	Proof Proof `json:"proof"`
}

type rollRequest struct {
	Caller   string     `json:"caller"`
	Contract string     `json:"contract"`
	Method   string     `json:"method"`
	Params   rollBounds `json:"params"`
}

type rollBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type rollResponse struct {
	Result *int64          `json:"result"`
	Proof  json.RawMessage `json:"proof"`
	Error  string          `json:"error,omitempty"`
}

// Roll returns a value in [min, max) with its proof. Every failure mode is
// reported as ErrUnavailable.
func (c *Client) Roll(ctx context.Context, min, max int) (Roll, error) {
	if min >= max {
		return Roll{}, fmt.Errorf("invalid roll range [%d, %d)", min, max)
	}

	start := time.Now()
	roll, err := c.roll(ctx, min, max)
	metrics.OracleRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OracleRequestsTotal.WithLabelValues("error").Inc()
		c.cfg.Logger.Warn("oracle: roll failed", "error", err)
		return Roll{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.OracleRequestsTotal.WithLabelValues("ok").Inc()
	return roll, nil
}

func (c *Client) roll(ctx context.Context, min, max int) (Roll, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Roll{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(rollRequest{
		Caller:   c.cfg.Caller,
		Contract: c.cfg.Contract,
		Method:   methodRandomNumber,
		Params:   rollBounds{Min: min, Max: max},
	})
	if err != nil {
		return Roll{}, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return Roll{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return Roll{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Roll{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Roll{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out rollResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Roll{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return Roll{}, fmt.Errorf("oracle error: %s", out.Error)
	}
	if out.Result == nil {
		return Roll{}, errors.New("response missing result")
	}
	if len(out.Proof) == 0 || string(out.Proof) == "null" {
		return Roll{}, errors.New("response missing proof")
	}
	value := *out.Result
	if value < int64(min) || value >= int64(max) {
		return Roll{}, fmt.Errorf("result %d outside [%d, %d)", value, min, max)
	}

	proof := Proof{Raw: append(json.RawMessage(nil), out.Proof...)}
	if err := json.Unmarshal(out.Proof, &proof); err != nil {
		// Non-object proofs are still valid evidence; only the typed view is lost.
		proof = Proof{Raw: proof.Raw}
	}

	return Roll{Value: int(value), Min: min, Max: max, Proof: proof}, nil
}

func (c *Client) endpoint() string {
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/random"
}
