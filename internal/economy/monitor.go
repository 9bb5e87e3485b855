package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"vaultcrack/internal/metrics"
)

// Alerter delivers operator notifications.
type Alerter interface {
	Alert(ctx context.Context, title, text string) error
}

type SignerStatusReader interface {
	GetSignerStatus(ctx context.Context) (SignerStatus, error)
}

type MonitorConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Reader   SignerStatusReader
	Alerter  Alerter // optional
	Interval time.Duration
}

func (cfg *MonitorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Reader == nil {
		return errors.New("signer status reader is required")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Monitor watches the backend signer balance. Falling below the floor is
// not fatal, but it is logged, exported as a gauge and alerted once per
// transition.
type Monitor struct {
	log *slog.Logger
	cfg MonitorConfig

	mu     sync.RWMutex
	last   SignerStatus
	ok     bool
	wasLow bool
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{log: cfg.Logger, cfg: cfg}, nil
}

func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.log.Info("signer: starting balance monitor", "interval", m.cfg.Interval)

		m.safeCheck(ctx)

		ticker := m.cfg.Clock.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				m.safeCheck(ctx)
			}
		}
	}()
}

func (m *Monitor) safeCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("signer: balance check panicked", "panic", r)
		}
	}()

	if _, err := m.Check(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.log.Error("signer: balance check failed", "error", err)
	}
}

// Check reads the signer balance once and updates the published status.
func (m *Monitor) Check(ctx context.Context) (SignerStatus, error) {
	status, err := m.cfg.Reader.GetSignerStatus(ctx)
	if err != nil {
		return SignerStatus{}, fmt.Errorf("failed to read signer status: %w", err)
	}

	metrics.SignerBalance.Set(float64(status.Balance))
	if status.Low {
		metrics.SignerBalanceLow.Set(1)
	} else {
		metrics.SignerBalanceLow.Set(0)
	}

	m.mu.Lock()
	enteredLow := status.Low && !m.wasLow
	recovered := !status.Low && m.wasLow
	m.last, m.ok, m.wasLow = status, true, status.Low
	m.mu.Unlock()

	switch {
	case enteredLow:
		m.log.Warn("signer: balance below operating floor",
			"address", status.Address.String(), "balance", status.Balance, "floor", status.MinOperatingBalance)
		if m.cfg.Alerter != nil {
			text := fmt.Sprintf("Backend signer %s holds %d lamports, below the %d lamport floor. Gasless entries are paused until it is topped up.",
				status.Address, status.Balance, status.MinOperatingBalance)
			if err := m.cfg.Alerter.Alert(ctx, "Backend signer balance low", text); err != nil {
				m.log.Error("signer: failed to send alert", "error", err)
			}
		}
	case recovered:
		m.log.Info("signer: balance recovered", "balance", status.Balance)
	}
	return status, nil
}

// Status returns the last observed status and whether a check has completed.
func (m *Monitor) Status() (SignerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.ok
}
