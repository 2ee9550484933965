package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(SQLite, filepath.Join(t.TempDir(), "gstep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newExecution(id, name string, status domain.ExecutionStatus, created time.Time) *domain.Execution {
	return &domain.Execution{
		ID:             id,
		Name:           name,
		DefinitionName: "orders",
		Digest:         "abc123",
		Status:         status,
		Input:          sql.NullString{String: `{"orderId":"o-1"}`, Valid: true},
		Created:        created,
		Modified:       created,
	}
}

func TestExecutorRepository(t *testing.T) {
	repo := NewExecutorRepository(openSQLite(t), SQLite)

	first := &domain.Executor{Name: "alpha", Started: base}
	id, err := repo.Save(first)
	require.NoError(t, err)
	assert.Positive(t, id)
	assert.Equal(t, base, first.LastActive)

	second := &domain.Executor{Name: "beta", Started: base}
	_, err = repo.Save(second)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateLastActive(first.ID, base.Add(time.Minute)))

	executors, err := repo.GetExecutorsByLastActive(10)
	require.NoError(t, err)
	require.Len(t, executors, 2)
	assert.Equal(t, "alpha", executors[0].Name)
	assert.True(t, executors[0].LastActive.Equal(base.Add(time.Minute)))
}

func TestDefinitionRepositoryUpsert(t *testing.T) {
	repo := NewDefinitionRepository(openSQLite(t), SQLite)

	missing, err := repo.FindByName("orders")
	require.NoError(t, err)
	assert.Nil(t, missing)

	def := &domain.StoredDefinition{
		Name: "orders", Description: "v1", Digest: "d1", Document: `{"startState":"A"}`,
		Created: base, Updated: base, FlowChart: "flowchart TD",
	}
	require.NoError(t, repo.Save(def))

	later := *def
	later.Description = "v2"
	later.Digest = "d2"
	later.Created = base.Add(time.Hour)
	later.Updated = base.Add(time.Hour)
	require.NoError(t, repo.Save(&later))

	got, err := repo.FindByName("orders")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.Description)
	assert.Equal(t, "d2", got.Digest)
	assert.True(t, got.Created.Equal(base), "created is kept on update")
	assert.True(t, got.Updated.Equal(base.Add(time.Hour)))

	all, err := repo.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExecutionRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository(openSQLite(t), SQLite)

	e := newExecution("e-1", "nightly", domain.StatusPending, base)
	require.NoError(t, repo.Save(ctx, e))
	require.NoError(t, repo.Save(ctx, newExecution("e-2", "", domain.StatusPending, base.Add(time.Second))))
	require.NoError(t, repo.Save(ctx, newExecution("e-3", "", domain.StatusPending, base.Add(2*time.Second))))

	got, err := repo.FindByID(ctx, "e-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "nightly", got.Name)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, `{"orderId":"o-1"}`, got.Input.String)
	assert.False(t, got.Started.Valid)

	byName, err := repo.FindByName(ctx, "orders", "nightly")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "e-1", byName.ID)

	none, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)

	e.Status = domain.StatusSucceeded
	e.CurrentState = sql.NullString{String: "Done", Valid: true}
	e.EndState = sql.NullString{String: "Done", Valid: true}
	e.Output = sql.NullString{String: `{"ok":true}`, Valid: true}
	e.ExecutorID = sql.NullInt64{Int64: 3, Valid: true}
	e.Started = sql.NullTime{Time: base, Valid: true}
	e.Finished = sql.NullTime{Time: base.Add(5 * time.Second), Valid: true}
	e.Modified = base.Add(5 * time.Second)
	require.NoError(t, repo.Update(ctx, e))

	got, err = repo.FindByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	assert.Equal(t, "Done", got.EndState.String)
	assert.Equal(t, int64(3), got.ExecutorID.Int64)
	assert.True(t, got.Finished.Time.Equal(base.Add(5*time.Second)))

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e-3", recent[0].ID)
	assert.Equal(t, "e-2", recent[1].ID)
}

func TestExecutionRepositoryUniqueName(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository(openSQLite(t), SQLite)

	require.NoError(t, repo.Save(ctx, newExecution("e-1", "nightly", domain.StatusPending, base)))
	assert.Error(t, repo.Save(ctx, newExecution("e-2", "nightly", domain.StatusPending, base)))
}

func TestExecutionRepositoryUpdateIfModified(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository(openSQLite(t), SQLite)

	e := newExecution("e-1", "", domain.StatusRunning, base)
	require.NoError(t, repo.Save(ctx, e))

	e.Status = domain.StatusAborted
	e.Modified = base.Add(time.Minute)
	ok, err := repo.UpdateIfModified(ctx, e, base.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, ok, "stale modified timestamp")

	ok, err = repo.UpdateIfModified(ctx, e, base)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAborted, got.Status)
}

func TestExecutionRepositoryFindStuck(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewExecutionRepository(db, SQLite)
	executors := NewExecutorRepository(db, SQLite)

	dead := &domain.Executor{Name: "dead", Started: base, LastActive: base}
	_, err := executors.Save(dead)
	require.NoError(t, err)
	alive := &domain.Executor{Name: "alive", Started: base, LastActive: base.Add(time.Hour)}
	_, err = executors.Save(alive)
	require.NoError(t, err)

	orphaned := newExecution("orphaned", "", domain.StatusRunning, base)
	orphaned.ExecutorID = sql.NullInt64{Int64: dead.ID, Valid: true}
	owned := newExecution("owned", "", domain.StatusRunning, base)
	owned.ExecutorID = sql.NullInt64{Int64: alive.ID, Valid: true}
	queued := newExecution("queued", "", domain.StatusPending, base)
	fresh := newExecution("fresh", "", domain.StatusPending, base.Add(time.Hour))
	done := newExecution("done", "", domain.StatusSucceeded, base)
	done.ExecutorID = sql.NullInt64{Int64: dead.ID, Valid: true}
	for _, e := range []*domain.Execution{orphaned, owned, queued, fresh, done} {
		require.NoError(t, repo.Save(ctx, e))
	}

	stuck, err := repo.FindStuck(ctx, base.Add(30*time.Minute), 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(stuck))
	for _, e := range stuck {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"orphaned", "queued"}, ids)
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(openSQLite(t), SQLite)

	first := domain.HistoryEntry{
		ExecutionID: "e-1", Sequence: 1, StateName: "Process", StateType: domain.StateTask,
		EnteredAt: base, ExitedAt: base.Add(time.Second),
		Input:  map[string]any{"userId": "u-1"},
		Output: map[string]any{"status": "SUCCESS", "records": 10.0},
		Retries: 2, NextState: "Check",
	}
	second := domain.HistoryEntry{
		ExecutionID: "e-1", Sequence: 2, StateName: "Notify", StateType: domain.StateTask,
		EnteredAt: base.Add(time.Second), ExitedAt: base.Add(2 * time.Second),
		Input: map[string]any{"status": "SUCCESS"},
		Error: &domain.TaskError{Kind: "NotificationUnavailable", Message: "down"},
	}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))
	assert.Error(t, repo.Append(ctx, second), "sequence numbers are unique per execution")

	entries, err := repo.FindByExecutionID(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Process", entries[0].StateName)
	assert.Equal(t, first.Output, entries[0].Output)
	assert.Equal(t, 2, entries[0].Retries)
	assert.Equal(t, "Check", entries[0].NextState)
	assert.Nil(t, entries[0].Error)
	assert.Nil(t, entries[1].Output)
	assert.Equal(t, second.Error, entries[1].Error)

	none, err := repo.FindByExecutionID(ctx, "e-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "$3", Postgres.placeholder(3))
	assert.Equal(t, "?", MySQL.placeholder(3))
	assert.Equal(t, "$2, $3", Postgres.placeholders(2, 2))
	assert.Equal(t, "julianday(a) < julianday(?)", SQLite.before("a", "?"))
	assert.Equal(t, "a < $1", Postgres.before("a", "$1"))
	assert.True(t, Postgres.supportsReturning())
	assert.False(t, SQLite.supportsReturning())

	t.Setenv("GSTEP_DATABASE_TYPE", "MEMORY")
	_, err := DialectFromConfig()
	assert.Error(t, err)
	t.Setenv("GSTEP_DATABASE_TYPE", "MYSQL")
	d, err := DialectFromConfig()
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)
}
