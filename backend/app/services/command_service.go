package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/notify"
	"github.com/moonseeker1/agent-manage/backend/app/queue"
	"github.com/moonseeker1/agent-manage/backend/app/repo"
	"github.com/moonseeker1/agent-manage/backend/global"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommandService orchestrates the command lifecycle across the durable store,
// the per-agent dispatch queue, the timeout watch and the result cache. The
// row is ground truth; queue and watch entries are disposable projections.
//
// All cross-structure invariants live here: a queued command is always
// PENDING, a watched command is always EXECUTING.
type CommandService struct {
	commands *repo.AgentCommandRepository
	agents   *repo.AgentRepository
	queue    *queue.CommandQueue
	watch    *queue.TimeoutWatch
	cache    *queue.ResultCache
	notifier notify.Notifier

	defaultTimeout    int
	defaultMaxRetries int
	fetchLimit        int
}

type CommandServiceOptions struct {
	DefaultTimeout    int
	DefaultMaxRetries int
	FetchLimit        int
}

func NewCommandService(
	commands *repo.AgentCommandRepository,
	agents *repo.AgentRepository,
	q *queue.CommandQueue,
	w *queue.TimeoutWatch,
	c *queue.ResultCache,
	n notify.Notifier,
	opts CommandServiceOptions,
) *CommandService {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 300
	}
	if opts.DefaultMaxRetries <= 0 {
		opts.DefaultMaxRetries = 3
	}
	if opts.FetchLimit <= 0 || opts.FetchLimit > 50 {
		opts.FetchLimit = 50
	}
	return &CommandService{
		commands: commands, agents: agents,
		queue: q, watch: w, cache: c, notifier: n,
		defaultTimeout:    opts.DefaultTimeout,
		defaultMaxRetries: opts.DefaultMaxRetries,
		fetchLimit:        opts.FetchLimit,
	}
}

// EnqueueInput carries a new command. Content is opaque JSON, forwarded to the
// agent verbatim. Zero Timeout/MaxRetries fall back to the configured defaults.
type EnqueueInput struct {
	AgentID    string
	Type       string
	Content    json.RawMessage
	Priority   int
	Timeout    int
	MaxRetries int
}

// Enqueue persists a PENDING row, pushes its projection onto the agent's
// queue and returns the new command id.
func (s *CommandService) Enqueue(ctx context.Context, in EnqueueInput) (string, error) {
	if _, err := s.agents.FindByID(in.AgentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAgentNotFound
		}
		return "", fmt.Errorf("find agent: %w", err)
	}

	timeout := in.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.defaultMaxRetries
	}
	content := in.Content
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}

	cmd := &models.AgentCommand{
		ID:         uuid.NewString(),
		AgentID:    in.AgentID,
		Type:       in.Type,
		Content:    string(content),
		Status:     models.StatusPending,
		Priority:   in.Priority,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
	if err := s.commands.Create(cmd); err != nil {
		return "", fmt.Errorf("create command: %w", err)
	}

	if err := s.enqueueProjection(ctx, cmd, time.Now().UnixMilli()); err != nil {
		// Row stays PENDING with nothing queued; the reconciliation sweep
		// re-derives the queue entry from the row.
		return "", fmt.Errorf("enqueue command %s: %w", cmd.ID, err)
	}

	s.notifier.Publish(notify.EventCommandCreated, map[string]any{
		"command_id": cmd.ID,
		"agent_id":   cmd.AgentID,
		"type":       cmd.Type,
		"priority":   cmd.Priority,
	})
	return cmd.ID, nil
}

func (s *CommandService) enqueueProjection(ctx context.Context, cmd *models.AgentCommand, tsMillis int64) error {
	return s.queue.Enqueue(ctx, cmd.AgentID, queue.QueuedCommand{
		ID:        cmd.ID,
		Type:      cmd.Type,
		Content:   json.RawMessage(cmd.Content),
		Priority:  cmd.Priority,
		Timeout:   cmd.Timeout,
		Timestamp: tsMillis,
	})
}

// Fetch pops up to limit commands for the polling agent, marks each one
// EXECUTING and arms its report-back deadline. A popped entry whose row has
// vanished is dropped, not an error. This is the only PENDING -> EXECUTING
// path; the destructive pop gives at-most-once dispatch per enqueue or retry.
func (s *CommandService) Fetch(ctx context.Context, agentID string, limit int) ([]queue.QueuedCommand, error) {
	if limit <= 0 || limit > s.fetchLimit {
		limit = s.fetchLimit
	}

	now := time.Now()
	_ = s.agents.TouchLastSeen(agentID, now)

	var out []queue.QueuedCommand
	for i := 0; i < limit; i++ {
		entry, err := s.queue.PopHighest(ctx, agentID)
		if err != nil {
			return out, fmt.Errorf("pop command: %w", err)
		}
		if entry == nil {
			break
		}

		cmd, err := s.commands.FindByID(entry.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				global.Logger.Warn().Str("command", entry.ID).Msg("queued command row missing, dropping")
				continue
			}
			return out, fmt.Errorf("load command %s: %w", entry.ID, err)
		}
		if cmd.Status != models.StatusPending {
			// Cancelled (or otherwise moved on) while queued; drop silently.
			continue
		}

		started := time.Now()
		cmd.Status = models.StatusExecuting
		cmd.StartedAt = &started
		cmd.Progress = 0
		cmd.ProgressMessage = ""
		if err := s.commands.Save(cmd); err != nil {
			return out, fmt.Errorf("mark executing %s: %w", cmd.ID, err)
		}
		if err := s.watch.Arm(ctx, agentID, cmd.ID, time.Duration(cmd.Timeout)*time.Second); err != nil {
			global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("arm timeout watch")
		}
		out = append(out, *entry)
	}

	if len(out) > 0 {
		s.notifier.Publish(notify.EventCommandsFetched, map[string]any{
			"agent_id": agentID,
			"count":    len(out),
		})
	}
	return out, nil
}

// SubmitResult finalizes a command with success or error, caches the result
// and disarms the watch. A submit against a command that is not EXECUTING
// overwrites the terminal fields; callers polling twice see the last write.
func (s *CommandService) SubmitResult(ctx context.Context, commandID, status, output, errorMessage string) error {
	if status != models.StatusSuccess && status != models.StatusError {
		return fmt.Errorf("%w: result status must be success or error", ErrInvalidState)
	}
	cmd, err := s.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommandNotFound
		}
		return fmt.Errorf("load command: %w", err)
	}

	now := time.Now()
	cmd.Status = status
	cmd.Output = output
	cmd.ErrorMessage = errorMessage
	cmd.CompletedAt = &now
	if err := s.commands.Save(cmd); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	if err := s.cache.SetResult(ctx, commandID, queue.CommandResult{
		Status:       status,
		Output:       output,
		ErrorMessage: errorMessage,
		CompletedAt:  now.UTC().Format(time.RFC3339),
	}); err != nil {
		global.Logger.Warn().Err(err).Str("command", commandID).Msg("cache result")
	}
	if err := s.watch.Disarm(ctx, cmd.AgentID, commandID); err != nil {
		global.Logger.Warn().Err(err).Str("command", commandID).Msg("disarm timeout watch")
	}

	s.notifier.Publish(notify.EventCommandCompleted, map[string]any{
		"command_id": commandID,
		"agent_id":   cmd.AgentID,
		"status":     status,
	})
	return nil
}

// ReportProgress records a progress snapshot. It deliberately does not touch
// the status or the armed deadline: a long-running command needs its timeout
// sized up front or the monitor will still reclaim it.
func (s *CommandService) ReportProgress(ctx context.Context, commandID string, progress int, message string) error {
	cmd, err := s.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommandNotFound
		}
		return fmt.Errorf("load command: %w", err)
	}

	cmd.Progress = progress
	cmd.ProgressMessage = message
	if err := s.commands.Save(cmd); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if err := s.cache.SetProgress(ctx, commandID, progress, message); err != nil {
		global.Logger.Warn().Err(err).Str("command", commandID).Msg("cache progress")
	}

	s.notifier.Publish(notify.EventCommandProgress, map[string]any{
		"command_id": commandID,
		"agent_id":   cmd.AgentID,
		"progress":   progress,
		"message":    message,
	})
	return nil
}

// Retry re-queues a failed or timed-out command under its original priority
// with a fresh enqueue timestamp, so it competes fairly instead of jumping
// the line on age.
func (s *CommandService) Retry(ctx context.Context, commandID string) (int, error) {
	cmd, err := s.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrCommandNotFound
		}
		return 0, fmt.Errorf("load command: %w", err)
	}
	if !models.Retriable(cmd.Status) {
		return 0, fmt.Errorf("%w: cannot retry a %s command", ErrInvalidState, cmd.Status)
	}
	if cmd.RetryCount >= cmd.MaxRetries {
		return 0, ErrRetryLimitExceeded
	}

	if err := s.requeue(ctx, cmd); err != nil {
		return 0, err
	}
	s.notifier.Publish(notify.EventCommandRetry, map[string]any{
		"command_id":  commandID,
		"agent_id":    cmd.AgentID,
		"retry_count": cmd.RetryCount,
	})
	return cmd.RetryCount, nil
}

// requeue is the shared ERROR|TIMEOUT|EXECUTING -> PENDING transition used by
// Retry and the timeout monitor: bump the count, wipe execution state, push a
// fresh projection.
func (s *CommandService) requeue(ctx context.Context, cmd *models.AgentCommand) error {
	cmd.Status = models.StatusPending
	cmd.RetryCount++
	cmd.Output = ""
	cmd.ErrorMessage = ""
	cmd.Progress = 0
	cmd.ProgressMessage = ""
	cmd.StartedAt = nil
	cmd.CompletedAt = nil
	if err := s.commands.Save(cmd); err != nil {
		return fmt.Errorf("save requeued command: %w", err)
	}
	if err := s.enqueueProjection(ctx, cmd, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("requeue command %s: %w", cmd.ID, err)
	}
	return nil
}

// Cancel moves a PENDING or EXECUTING command to CANCELLED and best-effort
// removes its queue entry and watch entry; both removals are idempotent.
func (s *CommandService) Cancel(ctx context.Context, commandID string) error {
	cmd, err := s.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommandNotFound
		}
		return fmt.Errorf("load command: %w", err)
	}
	if models.Terminal(cmd.Status) {
		return fmt.Errorf("%w: cannot cancel a %s command", ErrInvalidState, cmd.Status)
	}

	now := time.Now()
	cmd.Status = models.StatusCancelled
	cmd.CompletedAt = &now
	if err := s.commands.Save(cmd); err != nil {
		return fmt.Errorf("save cancelled command: %w", err)
	}
	if _, err := s.queue.RemoveByID(ctx, cmd.AgentID, commandID); err != nil {
		global.Logger.Warn().Err(err).Str("command", commandID).Msg("remove from queue")
	}
	if err := s.watch.Disarm(ctx, cmd.AgentID, commandID); err != nil {
		global.Logger.Warn().Err(err).Str("command", commandID).Msg("disarm timeout watch")
	}

	s.notifier.Publish(notify.EventCommandCancelled, map[string]any{
		"command_id": commandID,
		"agent_id":   cmd.AgentID,
	})
	return nil
}

// Get returns the durable row.
func (s *CommandService) Get(commandID string) (*models.AgentCommand, error) {
	cmd, err := s.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommandNotFound
		}
		return nil, err
	}
	return cmd, nil
}

// List returns command history per the filter.
func (s *CommandService) List(f repo.CommandFilter) ([]models.AgentCommand, int64, error) {
	return s.commands.List(f)
}

// Status returns the cached result/progress snapshots for fast polling,
// bypassing the durable store. Either field may be nil.
func (s *CommandService) Status(ctx context.Context, commandID string) (*queue.CommandResult, *queue.CommandProgress, error) {
	res, err := s.cache.GetResult(ctx, commandID)
	if err != nil {
		return nil, nil, err
	}
	prog, err := s.cache.GetProgress(ctx, commandID)
	if err != nil {
		return nil, nil, err
	}
	return res, prog, nil
}

// Stats reports count-by-status plus the live queue depth for one agent (or
// all agents when agentID is empty; queue depth is only meaningful per agent).
func (s *CommandService) Stats(ctx context.Context, agentID string) (map[string]int64, int64, error) {
	counts, err := s.commands.CountByStatus(agentID)
	if err != nil {
		return nil, 0, err
	}
	var queued int64
	if agentID != "" {
		queued, err = s.queue.Count(ctx, agentID)
		if err != nil {
			return nil, 0, err
		}
	}
	return counts, queued, nil
}
