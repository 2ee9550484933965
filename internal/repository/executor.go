package repository

import (
	"database/sql"
	"time"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// ExecutorRepository provides persistence for executors table.
type ExecutorRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewExecutorRepository(db *sql.DB, dialect Dialect) *ExecutorRepository {
	return &ExecutorRepository{db: db, dialect: dialect}
}

// Save inserts a new executor row and returns its ID.
func (r *ExecutorRepository) Save(e *domain.Executor) (int64, error) {
	started := e.Started
	if started.IsZero() {
		started = time.Now()
	}
	lastActive := e.LastActive
	if lastActive.IsZero() {
		lastActive = started
	}
	vals := []any{e.Name, r.dialect.formatDate(started), r.dialect.formatDate(lastActive)}
	base := `INSERT INTO executors (name, started, last_active) VALUES (` + r.dialect.placeholders(1, 3) + `)`
	if r.dialect.supportsReturning() {
		if err := r.db.QueryRow(base+" RETURNING id", vals...).Scan(&e.ID); err != nil {
			return 0, err
		}
	} else {
		res, err := r.db.Exec(base, vals...)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		e.ID = id
	}
	e.Started = started
	e.LastActive = lastActive
	return e.ID, nil
}

// UpdateLastActive sets last_active for the executor id to the provided timestamp.
func (r *ExecutorRepository) UpdateLastActive(id int64, ts time.Time) error {
	query := `UPDATE executors SET last_active = ` + r.dialect.placeholder(1) + ` WHERE id = ` + r.dialect.placeholder(2)
	_, err := r.db.Exec(query, r.dialect.formatDate(ts), id)
	return err
}

func (r *ExecutorRepository) GetExecutorsByLastActive(limit int) ([]*domain.Executor, error) {
	query := `
		SELECT id, name, started, last_active
		FROM executors
		ORDER BY last_active DESC
		LIMIT ` + r.dialect.placeholder(1)
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executors []*domain.Executor
	for rows.Next() {
		var e domain.Executor
		if err := rows.Scan(&e.ID, &e.Name, &e.Started, &e.LastActive); err != nil {
			return nil, err
		}
		executors = append(executors, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return executors, nil
}
