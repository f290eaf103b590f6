package queue

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const watchKeyPrefix = "command:timeout:"

// TimeoutWatch is the per-agent deadline ledger for in-flight commands: one
// sorted set per agent, member = command id, score = unix deadline. It never
// touches the database or the dispatch queue.
type TimeoutWatch struct {
	rdb *redis.Client
}

func NewTimeoutWatch(rdb *redis.Client) *TimeoutWatch {
	return &TimeoutWatch{rdb: rdb}
}

func watchKey(agentID string) string { return watchKeyPrefix + agentID }

// Arm records a report-back deadline of now + timeout for the command. The
// key keeps a retention window past the deadline so it self-cleans even if
// never disarmed.
func (w *TimeoutWatch) Arm(ctx context.Context, agentID, commandID string, timeout time.Duration) error {
	key := watchKey(agentID)
	deadline := float64(time.Now().Add(timeout).Unix())
	pipe := w.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: deadline, Member: commandID})
	pipe.Expire(ctx, key, timeout+24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// Disarm removes the entry; removing an absent entry is not an error.
func (w *TimeoutWatch) Disarm(ctx context.Context, agentID, commandID string) error {
	return w.rdb.ZRem(ctx, watchKey(agentID), commandID).Err()
}

// IsArmed reports whether the command still has a live deadline entry.
func (w *TimeoutWatch) IsArmed(ctx context.Context, agentID, commandID string) (bool, error) {
	err := w.rdb.ZScore(ctx, watchKey(agentID), commandID).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListExpired returns every command id whose deadline is at or before asOf.
func (w *TimeoutWatch) ListExpired(ctx context.Context, agentID string, asOf time.Time) ([]string, error) {
	return w.rdb.ZRangeByScore(ctx, watchKey(agentID), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(asOf.Unix(), 10),
	}).Result()
}

// WatchedAgents scans for agents that currently have armed entries.
func (w *TimeoutWatch) WatchedAgents(ctx context.Context) ([]string, error) {
	var (
		agents []string
		cursor uint64
	)
	for {
		keys, next, err := w.rdb.Scan(ctx, cursor, watchKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			agents = append(agents, strings.TrimPrefix(key, watchKeyPrefix))
		}
		cursor = next
		if cursor == 0 {
			return agents, nil
		}
	}
}
