package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueuedCommand is the serialized projection of a pending command that lives
// in an agent's dispatch queue. It carries everything the polling agent needs;
// the durable row stays the source of truth.
type QueuedCommand struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	Priority  int             `json:"priority"`
	Timeout   int             `json:"timeout"`
	Timestamp int64           `json:"timestamp"` // enqueue time, unix millis
}

// CommandQueue is one priority queue per agent, backed by a Redis sorted set.
// Score is -(priority*1e12) + enqueue-millis, so ZPopMin hands out the highest
// priority first and breaks ties by earliest arrival. Keys expire after the
// retention window; never-dispatched stragglers are dropped with them.
type CommandQueue struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewCommandQueue(rdb *redis.Client, retention time.Duration) *CommandQueue {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &CommandQueue{rdb: rdb, retention: retention}
}

func queueKey(agentID string) string { return "agent:commands:" + agentID }

func score(priority int, enqueuedMillis int64) float64 {
	return -float64(priority)*1e12 + float64(enqueuedMillis)
}

// Enqueue inserts the command into the agent's queue. The Timestamp field is
// filled in here if unset.
func (q *CommandQueue) Enqueue(ctx context.Context, agentID string, cmd QueuedCommand) error {
	if cmd.Timestamp == 0 {
		cmd.Timestamp = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal queued command: %w", err)
	}
	key := queueKey(agentID)
	pipe := q.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score(cmd.Priority, cmd.Timestamp), Member: raw})
	pipe.Expire(ctx, key, q.retention)
	_, err = pipe.Exec(ctx)
	return err
}

// PopHighest atomically removes and returns the highest-ranked entry, or
// (nil, nil) when the queue is empty. ZPopMin makes concurrent pops on the
// same agent safe: no entry is ever handed out twice.
func (q *CommandQueue) PopHighest(ctx context.Context, agentID string) (*QueuedCommand, error) {
	zs, err := q.rdb.ZPopMin(ctx, queueKey(agentID), 1).Result()
	if err != nil {
		return nil, err
	}
	if len(zs) == 0 {
		return nil, nil
	}
	return decodeMember(zs[0].Member.(string))
}

// PeekHighest returns the head of the queue without removing it.
func (q *CommandQueue) PeekHighest(ctx context.Context, agentID string) (*QueuedCommand, error) {
	raws, err := q.rdb.ZRange(ctx, queueKey(agentID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, nil
	}
	return decodeMember(raws[0])
}

// ListTop returns up to n entries in dispatch order without removing them.
func (q *CommandQueue) ListTop(ctx context.Context, agentID string, n int) ([]QueuedCommand, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := q.rdb.ZRange(ctx, queueKey(agentID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]QueuedCommand, 0, len(raws))
	for _, raw := range raws {
		cmd, err := decodeMember(raw)
		if err != nil {
			continue // skip corrupt entries rather than failing the listing
		}
		out = append(out, *cmd)
	}
	return out, nil
}

// RemoveByID deletes the entry with the given command id, if present.
// Members are opaque JSON so this scans the set; queues are small.
func (q *CommandQueue) RemoveByID(ctx context.Context, agentID, commandID string) (bool, error) {
	key := queueKey(agentID)
	raws, err := q.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, err
	}
	for _, raw := range raws {
		cmd, err := decodeMember(raw)
		if err != nil {
			continue
		}
		if cmd.ID == commandID {
			n, err := q.rdb.ZRem(ctx, key, raw).Result()
			return n > 0, err
		}
	}
	return false, nil
}

// Contains reports whether a command id is currently queued.
func (q *CommandQueue) Contains(ctx context.Context, agentID, commandID string) (bool, error) {
	raws, err := q.rdb.ZRange(ctx, queueKey(agentID), 0, -1).Result()
	if err != nil {
		return false, err
	}
	for _, raw := range raws {
		cmd, err := decodeMember(raw)
		if err == nil && cmd.ID == commandID {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the queue depth for an agent.
func (q *CommandQueue) Count(ctx context.Context, agentID string) (int64, error) {
	return q.rdb.ZCard(ctx, queueKey(agentID)).Result()
}

// DrainAll empties the agent's queue and returns how many entries were dropped.
func (q *CommandQueue) DrainAll(ctx context.Context, agentID string) (int64, error) {
	key := queueKey(agentID)
	n, err := q.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := q.rdb.Del(ctx, key).Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func decodeMember(raw string) (*QueuedCommand, error) {
	var cmd QueuedCommand
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		return nil, fmt.Errorf("decode queued command: %w", err)
	}
	return &cmd, nil
}
