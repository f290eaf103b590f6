package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/moonseeker1/agent-manage/backend/global"

	"github.com/redis/go-redis/v9"
)

// Event types published after command state transitions.
const (
	EventCommandCreated   = "command_created"
	EventCommandsFetched  = "commands_fetched"
	EventCommandCompleted = "command_completed"
	EventCommandProgress  = "command_progress"
	EventCommandRetry     = "command_retry"
	EventTimeoutRetry     = "command_timeout_retry"
	EventCommandTimeout   = "command_timeout"
	EventCommandCancelled = "command_cancelled"
)

// Notifier fans out state-transition events to observers. Publishing is
// fire-and-forget: a failed publish never fails or rolls back the transition
// that produced it.
type Notifier interface {
	Publish(eventType string, payload map[string]any)
}

// RedisNotifier broadcasts events on a single pub/sub channel. Dashboards and
// other observers subscribe to the channel to see live updates.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
}

func NewRedisNotifier(rdb *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "agent-manage:events"
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Publish(eventType string, payload map[string]any) {
	msg, err := json.Marshal(map[string]any{"type": eventType, "data": payload})
	if err != nil {
		global.Logger.Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.rdb.Publish(ctx, n.channel, msg).Err(); err != nil {
		global.Logger.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}

// Noop discards events; used where no broker is wired, e.g. tests.
type Noop struct{}

func (Noop) Publish(string, map[string]any) {}
