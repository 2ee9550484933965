package engine

import (
	"context"
	"log/slog"
	"strconv"
)

// worker drives executions from the queue until ctx is done. An execution
// already being driven is finished even if ctx is cancelled meanwhile.
func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()
	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Worker stopping", "worker_id", workerID)
			return
		case ex := <-m.queue: // blocks until a job arrives
			slog.Info("Worker starting execution", "worker_id", workerID, "execution_id", ex.id())
			m.drive(context.WithoutCancel(ctx), ex, workerID)
			slog.Info("Worker finished execution", "worker_id", workerID, "execution_id", ex.id())
		}
	}
}
