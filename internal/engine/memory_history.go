package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/RealZimboGuy/gopherstep/internal/datapath"
	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// MemoryHistory is the default HistorySink, kept in process.
type MemoryHistory struct {
	mu      sync.RWMutex
	entries map[string][]domain.HistoryEntry
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{entries: map[string][]domain.HistoryEntry{}}
}

func (h *MemoryHistory) Append(_ context.Context, entry domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	existing := h.entries[entry.ExecutionID]
	if n := int64(len(existing)); entry.Sequence != n+1 {
		return fmt.Errorf("history for execution %s: sequence %d out of order, expected %d",
			entry.ExecutionID, entry.Sequence, n+1)
	}
	entry.Input = datapath.DeepCopy(entry.Input)
	entry.Output = datapath.DeepCopy(entry.Output)
	h.entries[entry.ExecutionID] = append(existing, entry)
	return nil
}

func (h *MemoryHistory) FindByExecutionID(_ context.Context, executionID string) ([]domain.HistoryEntry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.entries[executionID]
	out := make([]domain.HistoryEntry, len(src))
	for i, e := range src {
		e.Input = datapath.DeepCopy(e.Input)
		e.Output = datapath.DeepCopy(e.Output)
		out[i] = e
	}
	return out, nil
}

// Forget drops the entries of an execution the engine no longer retains.
func (h *MemoryHistory) Forget(executionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, executionID)
}
