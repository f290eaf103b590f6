package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CommandResult is the snapshot written when a command reaches a terminal
// state, kept briefly for fast status polling.
type CommandResult struct {
	Status       string `json:"status"`
	Output       string `json:"output,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	CompletedAt  string `json:"completed_at"`
}

// CommandProgress is the latest progress report for an in-flight command.
type CommandProgress struct {
	Progress  int    `json:"progress"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ResultCache stores the latest result and progress snapshot per command id
// with short TTLs. It is a read optimization only; the durable row remains
// authoritative.
type ResultCache struct {
	rdb         *redis.Client
	resultTTL   time.Duration
	progressTTL time.Duration
}

func NewResultCache(rdb *redis.Client, resultTTL, progressTTL time.Duration) *ResultCache {
	if resultTTL <= 0 {
		resultTTL = 24 * time.Hour
	}
	if progressTTL <= 0 {
		progressTTL = time.Hour
	}
	return &ResultCache{rdb: rdb, resultTTL: resultTTL, progressTTL: progressTTL}
}

func resultKey(commandID string) string   { return "command:result:" + commandID }
func progressKey(commandID string) string { return "command:progress:" + commandID }

func (c *ResultCache) SetResult(ctx context.Context, commandID string, res CommandResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, resultKey(commandID), raw, c.resultTTL).Err()
}

func (c *ResultCache) GetResult(ctx context.Context, commandID string) (*CommandResult, error) {
	raw, err := c.rdb.Get(ctx, resultKey(commandID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res CommandResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *ResultCache) SetProgress(ctx context.Context, commandID string, progress int, message string) error {
	raw, err := json.Marshal(CommandProgress{Progress: progress, Message: message, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, progressKey(commandID), raw, c.progressTTL).Err()
}

func (c *ResultCache) GetProgress(ctx context.Context, commandID string) (*CommandProgress, error) {
	raw, err := c.rdb.Get(ctx, progressKey(commandID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p CommandProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
