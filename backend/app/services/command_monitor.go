package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moonseeker1/agent-manage/backend/app/models"
	"github.com/moonseeker1/agent-manage/backend/app/notify"
	"github.com/moonseeker1/agent-manage/backend/global"

	"gorm.io/gorm"
)

// CommandMonitor is the single background loop that detects silent agents:
// every interval it walks the armed deadlines, and for each expired command
// either re-queues it (retries left) or fails it with TIMEOUT. It is the only
// actor allowed to force these transitions without an explicit caller request,
// so exactly one instance must run.
//
// Every ReconcileEvery cycles it also re-derives queue and watch entries from
// the durable rows, repairing whatever a crash between store write and Redis
// write left behind.
type CommandMonitor struct {
	svc            *CommandService
	interval       time.Duration
	reconcileEvery int

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewCommandMonitor(svc *CommandService, interval time.Duration, reconcileEvery int) *CommandMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if reconcileEvery <= 0 {
		reconcileEvery = 6
	}
	return &CommandMonitor{svc: svc, interval: interval, reconcileEvery: reconcileEvery}
}

// Start launches the loop. Starting an already-running monitor is a no-op.
func (m *CommandMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.run(ctx)
	global.Logger.Info().Dur("interval", m.interval).Msg("command monitor started")
}

// Stop signals the loop and waits for it to exit, bounded by ctx.
func (m *CommandMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	done := m.done
	m.running = false
	m.mu.Unlock()

	select {
	case <-done:
		global.Logger.Info().Msg("command monitor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("command monitor did not stop: %w", ctx.Err())
	}
}

func (m *CommandMonitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycleCtx, cancel := context.WithTimeout(ctx, m.interval)
			if err := m.Sweep(cycleCtx); err != nil {
				global.Logger.Error().Err(err).Msg("timeout sweep")
			}
			cycle++
			if cycle%m.reconcileEvery == 0 {
				if err := m.Reconcile(cycleCtx); err != nil {
					global.Logger.Error().Err(err).Msg("reconcile sweep")
				}
			}
			cancel()
		}
	}
}

// Sweep processes every expired deadline once. One agent's failure does not
// abort the scan for the others.
func (m *CommandMonitor) Sweep(ctx context.Context) error {
	agents, err := m.svc.watch.WatchedAgents(ctx)
	if err != nil {
		return fmt.Errorf("list watched agents: %w", err)
	}
	now := time.Now()
	for _, agentID := range agents {
		expired, err := m.svc.watch.ListExpired(ctx, agentID, now)
		if err != nil {
			global.Logger.Error().Err(err).Str("agent", agentID).Msg("list expired commands")
			continue
		}
		for _, commandID := range expired {
			if err := m.handleExpired(ctx, agentID, commandID); err != nil {
				global.Logger.Error().Err(err).Str("agent", agentID).Str("command", commandID).Msg("handle expired command")
			}
		}
	}
	return nil
}

// handleExpired drives one silent command through retry-or-fail. The row is
// re-read first: if another actor already finished it, the stale watch entry
// is just dropped.
func (m *CommandMonitor) handleExpired(ctx context.Context, agentID, commandID string) error {
	defer func() {
		if err := m.svc.watch.Disarm(ctx, agentID, commandID); err != nil {
			global.Logger.Warn().Err(err).Str("command", commandID).Msg("disarm timeout watch")
		}
	}()

	cmd, err := m.svc.commands.FindByID(commandID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load command: %w", err)
	}
	if cmd.Status != models.StatusExecuting {
		return nil
	}

	if cmd.RetryCount < cmd.MaxRetries {
		if err := m.svc.requeue(ctx, cmd); err != nil {
			return err
		}
		global.Logger.Info().Str("command", commandID).Int("retry", cmd.RetryCount).Msg("command timed out, re-queued")
		m.svc.notifier.Publish(notify.EventTimeoutRetry, map[string]any{
			"command_id":  commandID,
			"agent_id":    agentID,
			"retry_count": cmd.RetryCount,
		})
		return nil
	}

	now := time.Now()
	cmd.Status = models.StatusTimeout
	cmd.CompletedAt = &now
	cmd.ErrorMessage = fmt.Sprintf("command timed out after %d seconds (max retries reached)", cmd.Timeout)
	if err := m.svc.commands.Save(cmd); err != nil {
		return fmt.Errorf("save timed out command: %w", err)
	}
	global.Logger.Warn().Str("command", commandID).Msg("command timed out, retries exhausted")
	m.svc.notifier.Publish(notify.EventCommandTimeout, map[string]any{
		"command_id": commandID,
		"agent_id":   agentID,
		"error":      cmd.ErrorMessage,
	})
	return nil
}

// Reconcile re-derives the Redis projections from the rows: PENDING rows must
// be queued, EXECUTING rows must be watched. Anything missing, whether from a
// crash between row write and Redis write or an expired Redis key, is
// re-inserted.
// EXECUTING rows whose deadline already passed while unwatched are handled as
// expired on the spot.
func (m *CommandMonitor) Reconcile(ctx context.Context) error {
	pending, err := m.svc.commands.ListPending()
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	for i := range pending {
		cmd := &pending[i]
		queued, err := m.svc.queue.Contains(ctx, cmd.AgentID, cmd.ID)
		if err != nil {
			global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("check queue membership")
			continue
		}
		if queued {
			continue
		}
		if err := m.svc.enqueueProjection(ctx, cmd, time.Now().UnixMilli()); err != nil {
			global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("re-enqueue pending command")
			continue
		}
		global.Logger.Info().Str("command", cmd.ID).Msg("re-queued orphaned pending command")
	}

	executing, err := m.svc.commands.ListExecuting()
	if err != nil {
		return fmt.Errorf("list executing: %w", err)
	}
	now := time.Now()
	for i := range executing {
		cmd := &executing[i]
		armed, err := m.svc.watch.IsArmed(ctx, cmd.AgentID, cmd.ID)
		if err != nil {
			global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("check watch entry")
			continue
		}
		if armed {
			continue
		}
		deadline := cmd.StartedAt.Add(time.Duration(cmd.Timeout) * time.Second)
		if deadline.After(now) {
			if err := m.svc.watch.Arm(ctx, cmd.AgentID, cmd.ID, time.Until(deadline)); err != nil {
				global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("re-arm timeout watch")
			} else {
				global.Logger.Info().Str("command", cmd.ID).Msg("re-armed orphaned executing command")
			}
			continue
		}
		if err := m.handleExpired(ctx, cmd.AgentID, cmd.ID); err != nil {
			global.Logger.Error().Err(err).Str("command", cmd.ID).Msg("handle orphaned expired command")
		}
	}
	return nil
}
