package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

const repairBatchSize = 100

// repairService finds executions left RUNNING or PENDING by an executor that
// stopped heart-beating and fails them with States.ExecutorLost. The state
// that was in flight is not recorded in the history.
func (m *Manager) repairService(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.repairInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Execution repair service stopping due to context cancel")
			return
		case <-ticker.C:
			m.repairStuckExecutions(ctx)
		}
	}
}

// repairStuckExecutions runs one repair pass and returns the number of
// executions it failed.
func (m *Manager) repairStuckExecutions(ctx context.Context) int {
	stuck, err := m.executionRepo.FindStuck(ctx, m.clock.Now().Add(-m.repairAfter), repairBatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Error finding stuck executions", "error", err)
		return 0
	}
	repaired := 0
	for _, rec := range stuck {
		if ex, ok := m.executions.get(rec.ID); ok && !ex.status().Finished() {
			// still driven or queued here
			continue
		}
		slog.WarnContext(ctx, "Repairing stuck execution", "execution_id", rec.ID, "definition", rec.DefinitionName,
			"current_state", rec.CurrentState.String, "status", rec.Status)

		prev := rec.Modified
		now := m.clock.Now()
		msg := "executor stopped while the execution was in flight"
		if rec.ExecutorID.Valid {
			msg = fmt.Sprintf("executor %d stopped while the execution was in flight", rec.ExecutorID.Int64)
		}
		rec.Status = domain.StatusFailed
		rec.ErrorKind = nullString(domain.ErrorKindExecutorLost)
		rec.ErrorMessage = nullString(msg)
		rec.FailedState = rec.CurrentState
		rec.Modified = now
		rec.Finished = nullTime(now)

		locked, err := m.executionRepo.UpdateIfModified(ctx, rec, prev)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to repair execution", "execution_id", rec.ID, "error", err)
			continue
		}
		if !locked {
			slog.InfoContext(ctx, "Execution changed while repairing, skipping", "execution_id", rec.ID)
			continue
		}
		repaired++
		if m.publisher != nil {
			event := domain.ExecutionEvent{
				Type:           domain.EventExecutionFailed,
				ExecutionID:    rec.ID,
				DefinitionName: rec.DefinitionName,
				Status:         domain.StatusFailed,
				State:          rec.CurrentState.String,
				Error:          &domain.TaskError{Kind: domain.ErrorKindExecutorLost, Message: msg},
				Time:           now,
			}
			if err := m.publisher.Publish(ctx, event); err != nil {
				slog.WarnContext(ctx, "Failed to publish execution event", "execution_id", rec.ID, "error", err)
			}
		}
	}
	return repaired
}
