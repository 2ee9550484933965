package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/RealZimboGuy/gopherstep/pkg/gopherstep/domain"
)

// HistoryRepository stores history entries in the execution_history table.
// The (execution_id, sequence) primary key keeps entries append only.
type HistoryRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewHistoryRepository(db *sql.DB, dialect Dialect) *HistoryRepository {
	return &HistoryRepository{db: db, dialect: dialect}
}

// Append inserts one entry. A repeated sequence for the same execution fails.
func (r *HistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	input, err := encodeData(entry.Input)
	if err != nil {
		return fmt.Errorf("encoding history input: %w", err)
	}
	output, err := encodeData(entry.Output)
	if err != nil {
		return fmt.Errorf("encoding history output: %w", err)
	}
	var kind, message sql.NullString
	if entry.Error != nil {
		kind = sql.NullString{String: entry.Error.Kind, Valid: true}
		message = sql.NullString{String: entry.Error.Message, Valid: true}
	}
	var next sql.NullString
	if entry.NextState != "" {
		next = sql.NullString{String: entry.NextState, Valid: true}
	}

	query := `
		INSERT INTO execution_history (
			execution_id, sequence, state_name, state_type, entered_at, exited_at,
			input, output, error_kind, error_message, retries, next_state
		) VALUES (` + r.dialect.placeholders(1, 12) + `)`
	_, err = r.db.ExecContext(ctx, query,
		entry.ExecutionID,
		entry.Sequence,
		entry.StateName,
		string(entry.StateType),
		r.dialect.formatDate(entry.EnteredAt),
		r.dialect.formatDate(entry.ExitedAt),
		input,
		output,
		kind,
		message,
		entry.Retries,
		next,
	)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to save history entry", "execution_id", entry.ExecutionID,
			"sequence", entry.Sequence, "error", err)
	}
	return err
}

// FindByExecutionID returns the entries of one execution in sequence order.
func (r *HistoryRepository) FindByExecutionID(ctx context.Context, executionID string) ([]domain.HistoryEntry, error) {
	query := `
		SELECT execution_id, sequence, state_name, state_type, entered_at, exited_at,
			input, output, error_kind, error_message, retries, next_state
		FROM execution_history
		WHERE execution_id = ` + r.dialect.placeholder(1) + `
		ORDER BY sequence`
	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var e domain.HistoryEntry
		var stateType string
		var input, output, kind, message, next sql.NullString
		if err := rows.Scan(
			&e.ExecutionID,
			&e.Sequence,
			&e.StateName,
			&stateType,
			&e.EnteredAt,
			&e.ExitedAt,
			&input,
			&output,
			&kind,
			&message,
			&e.Retries,
			&next,
		); err != nil {
			return nil, err
		}
		e.StateType = domain.StateType(stateType)
		if e.Input, err = decodeData(input); err != nil {
			return nil, err
		}
		if e.Output, err = decodeData(output); err != nil {
			return nil, err
		}
		if kind.Valid {
			e.Error = &domain.TaskError{Kind: kind.String, Message: message.String}
		}
		e.NextState = next.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func encodeData(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeData(s sql.NullString) (any, error) {
	if !s.Valid {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("decoding history data: %w", err)
	}
	return v, nil
}
