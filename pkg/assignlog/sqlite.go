package assignlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // cgo-free SQLite driver

	"avos-hq/avos/pkg/experiment"
)

// logSchema creates the assignment log table.
const logSchema = `
CREATE TABLE IF NOT EXISTS user_assignments (
    assignment_id TEXT PRIMARY KEY,
    unit_id TEXT NOT NULL,
    layer_id TEXT NOT NULL,
    experiment_id TEXT NOT NULL,
    experiment_name TEXT,
    variant TEXT NOT NULL,
    assigned_at TIMESTAMP NOT NULL,
    logged_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_assignments_experiment
    ON user_assignments(experiment_id, variant);
CREATE INDEX IF NOT EXISTS idx_user_assignments_logged_at
    ON user_assignments(logged_at);
`

// SQLiteLogger implements Logger over a SQLite database. Unlike the layer
// store it uses the cgo-free driver, so a host can ship the log sink without
// a C toolchain.
type SQLiteLogger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteLogger opens (creating if needed) a SQLite-backed assignment log.
func NewSQLiteLogger(path string) (*SQLiteLogger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, NewError("sqlite", "open", err)
	}
	if _, err := db.Exec(logSchema); err != nil {
		db.Close()
		return nil, NewError("sqlite", "init", err)
	}
	return &SQLiteLogger{
		db:     db,
		logger: slog.Default().With("component", "assignlog.sqlite"),
		now:    time.Now,
	}, nil
}

// LogAssignments writes the batch in a single transaction.
func (l *SQLiteLogger) LogAssignments(ctx context.Context, assignments []experiment.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return NewError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO user_assignments
			(assignment_id, unit_id, layer_id, experiment_id, experiment_name, variant, assigned_at, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewError("sqlite", "prepare", err)
	}
	defer stmt.Close()

	loggedAt := l.now().UTC()
	for _, a := range assignments {
		_, err := stmt.ExecContext(ctx,
			a.AssignmentID, a.UnitID, a.LayerID, a.ExperimentID, a.ExperimentName,
			a.Variant, a.Timestamp, loggedAt)
		if err != nil {
			return NewError("sqlite", "insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewError("sqlite", "commit", err)
	}
	return nil
}

// CountByVariant returns logged assignment counts per variant for one
// experiment, the input shape the SRM tester consumes.
func (l *SQLiteLogger) CountByVariant(ctx context.Context, experimentID string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT variant, COUNT(*) FROM user_assignments
		WHERE experiment_id = ? GROUP BY variant`, experimentID)
	if err != nil {
		return nil, NewError("sqlite", "count", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var variant string
		var n int
		if err := rows.Scan(&variant, &n); err != nil {
			return nil, NewError("sqlite", "scan", err)
		}
		counts[variant] = n
	}
	if err := rows.Err(); err != nil {
		return nil, NewError("sqlite", "count", err)
	}
	return counts, nil
}

// PruneBefore deletes records logged before the cutoff and returns how many
// were removed.
func (l *SQLiteLogger) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		"DELETE FROM user_assignments WHERE logged_at < ?", cutoff.UTC())
	if err != nil {
		return 0, NewError("sqlite", "prune", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, NewError("sqlite", "prune", err)
	}
	if deleted > 0 {
		l.logger.Info("pruned assignment records", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Close closes the underlying database.
func (l *SQLiteLogger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close assignment log: %w", err)
	}
	return nil
}
