package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	redis "github.com/redis/go-redis/v9"
)

// appendScript pushes ARGV[2] only when it is entry number ARGV[1] of the list.
var appendScript = redis.NewScript(`
if redis.call('LLEN', KEYS[1]) + 1 ~= tonumber(ARGV[1]) then
	return -1
end
return redis.call('RPUSH', KEYS[1], ARGV[2])
`)

// RedisHistory keeps each execution's history as a JSON list under
// <prefix>history:<execution id>.
type RedisHistory struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisHistory(client redis.UniversalClient, prefix string) *RedisHistory {
	return &RedisHistory{client: client, prefix: prefix}
}

func (h *RedisHistory) key(executionID string) string {
	return h.prefix + "history:" + executionID
}

func (h *RedisHistory) Append(ctx context.Context, entry domain.HistoryEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}
	n, err := appendScript.Run(ctx, h.client, []string{h.key(entry.ExecutionID)}, entry.Sequence, string(b)).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("history for execution %s: sequence %d out of order", entry.ExecutionID, entry.Sequence)
	}
	return nil
}

func (h *RedisHistory) FindByExecutionID(ctx context.Context, executionID string) ([]domain.HistoryEntry, error) {
	raw, err := h.client.LRange(ctx, h.key(executionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, s := range raw {
		var e domain.HistoryEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, fmt.Errorf("decoding history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
