// Package shutdown provides graceful shutdown coordination for the permit office server.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State represents the current shutdown state.
type State string

const (
	// StateRunning indicates the server is running normally.
	StateRunning State = "running"
	// StateDraining indicates readiness is failing and registered steps are running.
	StateDraining State = "draining"
	// StateComplete indicates shutdown is complete.
	StateComplete State = "complete"
)

// Status represents the current shutdown status.
type Status struct {
	State             State         `json:"state"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	TimeRemaining     time.Duration `json:"time_remaining,omitempty"`
	AcceptingRequests bool          `json:"accepting_requests"`
	Message           string        `json:"message,omitempty"`
}

// Config holds configuration for the shutdown manager.
type Config struct {
	// Timeout is the maximum time for the whole shutdown.
	Timeout time.Duration

	// DrainTimeout is how long readiness fails before the first step runs,
	// so load balancers stop routing new requests.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		DrainTimeout: 2 * time.Second,
	}
}

// StepFunc is one unit of shutdown work. It must return once ctx is done.
type StepFunc func(ctx context.Context) error

type step struct {
	name string
	fn   StepFunc
}

// Manager runs registered shutdown steps in order under one deadline.
type Manager struct {
	config       Config
	logger       zerolog.Logger
	mu           sync.RWMutex
	state        State
	startedAt    *time.Time
	steps        []step
	accepting    atomic.Bool
	doneCh       chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewManager creates a new shutdown manager.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	m := &Manager{
		config: config,
		logger: logger.With().Str("component", "shutdown_manager").Logger(),
		state:  StateRunning,
		doneCh: make(chan struct{}),
	}
	m.accepting.Store(true)
	return m
}

// Register adds a step. Steps run in registration order.
func (m *Manager) Register(name string, fn StepFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// IsAcceptingRequests returns false once shutdown has begun.
func (m *Manager) IsAcceptingRequests() bool {
	return m.accepting.Load()
}

// GetState returns the current shutdown state.
func (m *Manager) GetState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// GetStatus returns the current shutdown status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		State:             m.state,
		StartedAt:         m.startedAt,
		AcceptingRequests: m.accepting.Load(),
	}

	if m.startedAt != nil {
		if remaining := m.config.Timeout - time.Since(*m.startedAt); remaining > 0 {
			status.TimeRemaining = remaining
		}
	}

	switch m.state {
	case StateRunning:
		status.Message = "Server is running normally"
	case StateDraining:
		status.Message = "Server is shutting down"
	case StateComplete:
		status.Message = "Shutdown complete"
	}

	return status
}

// Shutdown stops accepting requests, waits out the drain period, and runs
// every registered step. Later calls return the first call's result.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.shutdownErr = m.doShutdown(ctx)
	})
	return m.shutdownErr
}

func (m *Manager) doShutdown(ctx context.Context) error {
	m.logger.Info().
		Dur("timeout", m.config.Timeout).
		Dur("drain_timeout", m.config.DrainTimeout).
		Msg("initiating graceful shutdown")

	now := time.Now()
	m.mu.Lock()
	m.startedAt = &now
	m.state = StateDraining
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	m.accepting.Store(false)

	if m.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	if m.config.DrainTimeout > 0 {
		timer := time.NewTimer(m.config.DrainTimeout)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	var errs []error
	for _, s := range steps {
		logger := m.logger.With().Str("step", s.name).Logger()
		if err := ctx.Err(); err != nil {
			logger.Warn().Msg("shutdown deadline reached, skipping step")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		start := time.Now()
		if err := s.fn(ctx); err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		logger.Debug().Dur("duration", time.Since(start)).Msg("shutdown step complete")
	}

	m.mu.Lock()
	m.state = StateComplete
	m.mu.Unlock()
	close(m.doneCh)

	m.logger.Info().
		Dur("duration", time.Since(now)).
		Int("failed_steps", len(errs)).
		Msg("graceful shutdown complete")

	return errors.Join(errs...)
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}

// WaitStep adapts a blocking wait, such as sync.WaitGroup.Wait, into a step
// that gives up when the shutdown deadline passes.
func WaitStep(wait func()) StepFunc {
	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() {
			wait()
			close(done)
		}()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
