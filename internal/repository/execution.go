package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

var executionColumns = []string{
	"id", "name", "definition_name", "digest", "status", "input", "output",
	"current_state", "end_state", "error_kind", "error_message", "failed_state",
	"executor_id", "created", "modified", "started", "finished",
}

// ExecutionRepository provides methods to persist and query execution records.
type ExecutionRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewExecutionRepository(db *sql.DB, dialect Dialect) *ExecutionRepository {
	return &ExecutionRepository{db: db, dialect: dialect}
}

func selectExecutions(alias string) string {
	cols := make([]string, len(executionColumns))
	for i, c := range executionColumns {
		if alias != "" {
			c = alias + "." + c
		}
		cols[i] = c
	}
	return "SELECT " + strings.Join(cols, ", ")
}

// Save inserts a new execution.
func (r *ExecutionRepository) Save(ctx context.Context, e *domain.Execution) error {
	query := `INSERT INTO executions (` + strings.Join(executionColumns, ", ") + `)
		VALUES (` + r.dialect.placeholders(1, len(executionColumns)) + `)`
	var name any
	if e.Name != "" {
		name = e.Name
	}
	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		name,
		e.DefinitionName,
		e.Digest,
		string(e.Status),
		e.Input,
		e.Output,
		e.CurrentState,
		e.EndState,
		e.ErrorKind,
		e.ErrorMessage,
		e.FailedState,
		e.ExecutorID,
		r.dialect.formatDate(e.Created),
		r.dialect.formatDate(e.Modified),
		r.dialect.formatNullDate(e.Started),
		r.dialect.formatNullDate(e.Finished),
	)
	return err
}

func (r *ExecutionRepository) updateQuery() string {
	p := r.dialect.placeholder
	return `UPDATE executions SET
			status = ` + p(1) + `,
			output = ` + p(2) + `,
			current_state = ` + p(3) + `,
			end_state = ` + p(4) + `,
			error_kind = ` + p(5) + `,
			error_message = ` + p(6) + `,
			failed_state = ` + p(7) + `,
			executor_id = ` + p(8) + `,
			modified = ` + p(9) + `,
			started = ` + p(10) + `,
			finished = ` + p(11) + `
		WHERE id = ` + p(12)
}

func (r *ExecutionRepository) updateArgs(e *domain.Execution) []any {
	return []any{
		string(e.Status),
		e.Output,
		e.CurrentState,
		e.EndState,
		e.ErrorKind,
		e.ErrorMessage,
		e.FailedState,
		e.ExecutorID,
		r.dialect.formatDate(e.Modified),
		r.dialect.formatNullDate(e.Started),
		r.dialect.formatNullDate(e.Finished),
		e.ID,
	}
}

// Update writes the mutable columns of an execution.
func (r *ExecutionRepository) Update(ctx context.Context, e *domain.Execution) error {
	_, err := r.db.ExecContext(ctx, r.updateQuery(), r.updateArgs(e)...)
	return err
}

// UpdateIfModified updates the execution only when its stored modified
// timestamp still equals modified, and reports whether the row was written.
func (r *ExecutionRepository) UpdateIfModified(ctx context.Context, e *domain.Execution, modified time.Time) (bool, error) {
	query := r.updateQuery() + ` AND ` + r.dialect.sameInstant("modified", r.dialect.placeholder(13))
	args := append(r.updateArgs(e), r.dialect.formatDate(modified))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FindByID fetches a single execution, nil when absent.
func (r *ExecutionRepository) FindByID(ctx context.Context, id string) (*domain.Execution, error) {
	query := selectExecutions("") + ` FROM executions WHERE id = ` + r.dialect.placeholder(1)
	return r.findOne(ctx, query, id)
}

// FindByName fetches the execution started under a caller supplied name.
func (r *ExecutionRepository) FindByName(ctx context.Context, definitionName, name string) (*domain.Execution, error) {
	query := selectExecutions("") + ` FROM executions
		WHERE definition_name = ` + r.dialect.placeholder(1) + ` AND name = ` + r.dialect.placeholder(2)
	return r.findOne(ctx, query, definitionName, name)
}

// FindRecent returns the newest executions first.
func (r *ExecutionRepository) FindRecent(ctx context.Context, limit int) ([]*domain.Execution, error) {
	query := selectExecutions("") + ` FROM executions
		ORDER BY created DESC, id
		LIMIT ` + r.dialect.placeholder(1)
	return r.findMany(ctx, query, limit)
}

// FindStuck returns unfinished executions owned by an executor that has not
// been active since staleBefore, and queued executions nobody picked up
// since then.
func (r *ExecutionRepository) FindStuck(ctx context.Context, staleBefore time.Time, limit int) ([]*domain.Execution, error) {
	p := r.dialect.placeholder
	query := selectExecutions("e") + `
		FROM executions e
		LEFT JOIN executors x ON x.id = e.executor_id
		WHERE e.status IN ('` + string(domain.StatusPending) + `', '` + string(domain.StatusRunning) + `')
		AND ((x.id IS NULL AND ` + r.dialect.before("e.modified", p(1)) + `)
			OR ` + r.dialect.before("x.last_active", p(2)) + `)
		ORDER BY e.created
		LIMIT ` + p(3)
	stale := r.dialect.formatDate(staleBefore)
	return r.findMany(ctx, query, stale, stale, limit)
}

func (r *ExecutionRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Execution, error) {
	e, err := scanExecution(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ExecutionRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*domain.Execution, error) {
	var e domain.Execution
	var name sql.NullString
	var status string
	err := row.Scan(
		&e.ID,
		&name,
		&e.DefinitionName,
		&e.Digest,
		&status,
		&e.Input,
		&e.Output,
		&e.CurrentState,
		&e.EndState,
		&e.ErrorKind,
		&e.ErrorMessage,
		&e.FailedState,
		&e.ExecutorID,
		&e.Created,
		&e.Modified,
		&e.Started,
		&e.Finished,
	)
	if err != nil {
		return nil, err
	}
	e.Name = name.String
	e.Status = domain.ExecutionStatus(status)
	return &e, nil
}
