package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/largeweb/skapp-sub000/internal/domain"
	"github.com/largeweb/skapp-sub000/internal/retry"
	"github.com/largeweb/skapp-sub000/internal/schedule"
	"github.com/largeweb/skapp-sub000/internal/store"
	"go.uber.org/zap"
)

// defaultInterAgentDelay paces full-set runs so the generation backend is
// not hit back to back.
const defaultInterAgentDelay = 500 * time.Millisecond

// RunOptions selects what one orchestrator invocation processes. AgentID
// narrows the run to one agent; Mode overrides the scheduler; Now overrides
// the clock (both used by the HTTP trigger).
type RunOptions struct {
	AgentID string
	Mode    domain.Mode
	Now     time.Time
}

// Orchestrator iterates agents sequentially, computes each one's mode and
// drives the turn pipeline through a retry policy. One agent's failure never
// aborts the batch.
type Orchestrator struct {
	repo   domain.AgentRepository
	turns  *TurnService
	logger *zap.Logger

	policy          retry.Policy
	interAgentDelay time.Duration
	now             func() time.Time
}

func NewOrchestrator(repo domain.AgentRepository, turns *TurnService, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		repo:            repo,
		turns:           turns,
		logger:          logger,
		policy:          retry.DefaultPolicy(),
		interAgentDelay: defaultInterAgentDelay,
		now:             time.Now,
	}
}

// SetRetryPolicy overrides the per-agent retry policy.
func (o *Orchestrator) SetRetryPolicy(p retry.Policy) {
	o.policy = p
}

// SetInterAgentDelay overrides the pacing delay between agents.
func (o *Orchestrator) SetInterAgentDelay(d time.Duration) {
	o.interAgentDelay = d
}

// SetClock overrides the orchestrator clock. Tests only.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Run processes the selected agent set sequentially and aggregates per-agent
// outcomes. It returns an error only when the run cannot start at all (agent
// set resolution fails or an explicit agent id is unknown).
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*domain.BatchResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = o.now()
	}

	ids, err := o.resolveAgents(ctx, opts.AgentID)
	if err != nil {
		return nil, err
	}

	result := &domain.BatchResult{Results: make([]domain.AgentResult, 0, len(ids))}
	fullSet := opts.AgentID == ""

	for i, id := range ids {
		if fullSet && i > 0 && o.interAgentDelay > 0 {
			select {
			case <-time.After(o.interAgentDelay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		r := o.runAgent(ctx, id, opts.Mode, now)
		result.Processed++
		switch r.Status {
		case domain.StatusSuccess:
			result.Successful++
		case domain.StatusSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		result.Results = append(result.Results, r)
	}

	o.logger.Info("orchestration run complete",
		zap.Int("processed", result.Processed),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (o *Orchestrator) resolveAgents(ctx context.Context, agentID string) ([]string, error) {
	if agentID != "" {
		if _, err := o.repo.GetAgent(ctx, agentID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
			}
			return nil, err
		}
		return []string{agentID}, nil
	}
	ids, err := o.repo.ListAgentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return ids, nil
}

func (o *Orchestrator) runAgent(ctx context.Context, id string, modeOverride domain.Mode, now time.Time) domain.AgentResult {
	started := time.Now()
	finish := func(status, errMsg string) domain.AgentResult {
		return domain.AgentResult{
			AgentID: id,
			Status:  status,
			Error:   errMsg,
			Ms:      time.Since(started).Milliseconds(),
		}
	}

	agent, err := o.repo.GetAgent(ctx, id)
	if err != nil {
		o.logger.Error("failed to load agent", zap.String("agent_id", id), zap.Error(err))
		return finish(domain.StatusFailed, err.Error())
	}

	mode := modeOverride
	if mode == "" {
		mode = schedule.ModeFor(now)
	}
	today := schedule.Today(now)

	if mode == domain.ModeSleep && !schedule.ShouldRunSleep(agent, today) {
		o.logger.Info("sleep already ran today, skipping",
			zap.String("agent_id", id),
			zap.String("date", today))
		return finish(domain.StatusSkipped, "")
	}

	err = o.policy.Do(ctx, func(attemptCtx context.Context) error {
		return o.turns.RunTurn(attemptCtx, id, mode)
	})
	if err != nil {
		o.logger.Error("turn pipeline failed",
			zap.String("agent_id", id),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return finish(domain.StatusFailed, err.Error())
	}

	// The pipeline persisted turn state; reload before stamping counters so
	// the counter write does not clobber it.
	agent, err = o.repo.GetAgent(ctx, id)
	if err != nil {
		o.logger.Error("failed to reload agent after turn", zap.String("agent_id", id), zap.Error(err))
		return finish(domain.StatusFailed, err.Error())
	}
	agent.TurnsCount++
	agent.LastActivity = now
	if mode == domain.ModeSleep {
		agent.LastSlept = today
	}
	if err := o.repo.SaveAgent(ctx, agent); err != nil {
		o.logger.Error("failed to persist counters", zap.String("agent_id", id), zap.Error(err))
		return finish(domain.StatusFailed, err.Error())
	}

	o.logger.Info("turn complete",
		zap.String("agent_id", id),
		zap.String("mode", string(mode)),
		zap.Int("turns_count", agent.TurnsCount))
	return finish(domain.StatusSuccess, "")
}
