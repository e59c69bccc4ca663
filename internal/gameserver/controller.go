// Package gameserver exposes the admin controls for the community game server.
package gameserver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Controller starts and stops the game server.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Action identifies a control request.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// LogController records control requests without touching any real server.
type LogController struct {
	mu     sync.Mutex
	last   Action
	lastAt time.Time
	logger zerolog.Logger
}

// NewLogController creates a controller that only logs requests.
func NewLogController(logger zerolog.Logger) *LogController {
	return &LogController{
		logger: logger.With().Str("component", "gameserver").Logger(),
	}
}

// Start records a start request.
func (c *LogController) Start(ctx context.Context) error {
	return c.record(ctx, ActionStart)
}

// Stop records a stop request.
func (c *LogController) Stop(ctx context.Context) error {
	return c.record(ctx, ActionStop)
}

// Last returns the most recent action and when it was requested.
func (c *LogController) Last() (Action, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.lastAt
}

func (c *LogController) record(ctx context.Context, action Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.last = action
	c.lastAt = time.Now().UTC()
	c.mu.Unlock()

	c.logger.Info().Str("action", string(action)).Msg("game server control requested")
	return nil
}
