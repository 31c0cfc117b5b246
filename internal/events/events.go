// Package events publishes account lockout notifications.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RoutingKeyLocked is the routing key of lock events.
const RoutingKeyLocked = "account.locked"

// LockEvent describes a lock that has just been engaged.
type LockEvent struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Attempts   int       `json:"attempts"`
	LockUntil  time.Time `json:"lock_until"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers lock events to interested parties.
type Publisher interface {
	PublishLocked(ctx context.Context, ev LockEvent) error
}

// LogPublisher writes events to the log instead of a broker.
// It is used when no broker is configured.
type LogPublisher struct{ log *zap.Logger }

// NewLogPublisher constructs a LogPublisher; a nil logger discards events.
func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

// PublishLocked logs ev.
func (p *LogPublisher) PublishLocked(_ context.Context, ev LockEvent) error {
	p.log.Info("lock event",
		zap.String("routing_key", RoutingKeyLocked),
		zap.String("user_id", ev.UserID),
		zap.String("username", ev.Username),
		zap.Int("attempts", ev.Attempts),
		zap.Time("lock_until", ev.LockUntil),
	)
	return nil
}
