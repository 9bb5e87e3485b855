package economy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"vaultcrack/internal/logger"
)

type fakeAlerter struct {
	mu     sync.Mutex
	titles []string
}

func (a *fakeAlerter) Alert(_ context.Context, title, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
	return nil
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.titles)
}

type scriptedReader struct {
	mu       sync.Mutex
	balances []uint64
	err      error
	calls    int
}

func (r *scriptedReader) GetSignerStatus(context.Context) (SignerStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return SignerStatus{}, r.err
	}
	b := r.balances[min(r.calls, len(r.balances)-1)]
	r.calls++
	return SignerStatus{
		Address:             solana.SystemProgramID,
		Balance:             b,
		MinOperatingBalance: 100,
		Low:                 b < 100,
	}, nil
}

func (r *scriptedReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestMonitor_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewMonitor(MonitorConfig{Reader: &scriptedReader{}, Interval: time.Second})
	require.Error(t, err)
	_, err = NewMonitor(MonitorConfig{Logger: logger.ForTest(), Interval: time.Second})
	require.Error(t, err)
	_, err = NewMonitor(MonitorConfig{Logger: logger.ForTest(), Reader: &scriptedReader{}})
	require.Error(t, err)
}

func TestMonitor_AlertsOncePerTransition(t *testing.T) {
	t.Parallel()

	alerter := &fakeAlerter{}
	reader := &scriptedReader{balances: []uint64{500, 50, 40, 30, 200, 10}}
	m, err := NewMonitor(MonitorConfig{
		Logger:   logger.ForTest(),
		Reader:   reader,
		Alerter:  alerter,
		Interval: time.Minute,
	})
	require.NoError(t, err)

	_, ok := m.Status()
	require.False(t, ok)

	ctx := context.Background()
	wantAlerts := []int{0, 1, 1, 1, 1, 2}
	for i, want := range wantAlerts {
		_, err := m.Check(ctx)
		require.NoError(t, err)
		require.Equal(t, want, alerter.count(), "check %d", i)
	}

	status, ok := m.Status()
	require.True(t, ok)
	require.True(t, status.Low)
	require.EqualValues(t, 10, status.Balance)
}

func TestMonitor_ReadErrorKeepsLastStatus(t *testing.T) {
	t.Parallel()

	reader := &scriptedReader{balances: []uint64{500}}
	m, err := NewMonitor(MonitorConfig{Logger: logger.ForTest(), Reader: reader, Interval: time.Minute})
	require.NoError(t, err)

	_, err = m.Check(context.Background())
	require.NoError(t, err)

	reader.mu.Lock()
	reader.err = errors.New("rpc down")
	reader.mu.Unlock()

	_, err = m.Check(context.Background())
	require.Error(t, err)

	status, ok := m.Status()
	require.True(t, ok)
	require.EqualValues(t, 500, status.Balance)
}

func TestMonitor_StartTicks(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	reader := &scriptedReader{balances: []uint64{500}}
	m, err := NewMonitor(MonitorConfig{
		Logger:   logger.ForTest(),
		Clock:    clock,
		Reader:   reader,
		Interval: time.Minute,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	require.Eventually(t, func() bool { return reader.callCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return reader.callCount() == 2 }, time.Second, 5*time.Millisecond)
}
