package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"avos-hq/avos/pkg/experiment"
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite store configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/avos.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed layer store.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layer store %q: %w", config.Path, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "storage.sqlite"),
		now:    time.Now,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", s.config.BusyTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// GetLayer returns a snapshot of the layer with its experiments.
func (s *SQLiteStore) GetLayer(ctx context.Context, layerID string) (*experiment.Layer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT layer_id, layer_salt, total_slots, total_traffic_percentage, version, created_at, updated_at
		FROM layers WHERE layer_id = ?`, layerID)

	layer, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("layer %q: %w", layerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load layer %q: %w", layerID, err)
	}

	if err := s.loadExperiments(ctx, layer); err != nil {
		return nil, err
	}
	return layer, nil
}

// ListLayers returns snapshots of all layers ordered by layer id.
func (s *SQLiteStore) ListLayers(ctx context.Context) ([]*experiment.Layer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer_id, layer_salt, total_slots, total_traffic_percentage, version, created_at, updated_at
		FROM layers ORDER BY layer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()

	var layers []*experiment.Layer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, layer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate layers: %w", err)
	}

	for _, layer := range layers {
		if err := s.loadExperiments(ctx, layer); err != nil {
			return nil, err
		}
	}
	return layers, nil
}

// PutLayer commits the layer and all its experiments in one transaction,
// guarded by the optimistic version check.
func (s *SQLiteStore) PutLayer(ctx context.Context, layer *experiment.Layer, expectedVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int64
	var createdAt time.Time
	exists := true
	err = tx.QueryRowContext(ctx,
		"SELECT version, created_at FROM layers WHERE layer_id = ?", layer.LayerID).
		Scan(&currentVersion, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("failed to read layer version: %w", err)
	}

	switch {
	case !exists && expectedVersion != 0:
		return fmt.Errorf("layer %q: %w", layer.LayerID, ErrStaleVersion)
	case exists && currentVersion != expectedVersion:
		return fmt.Errorf("layer %q: expected version %d, have %d: %w",
			layer.LayerID, expectedVersion, currentVersion, ErrStaleVersion)
	}

	now := s.now().UTC()
	if !exists {
		createdAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layers (layer_id, layer_salt, total_slots, total_traffic_percentage, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(layer_id) DO UPDATE SET
			layer_salt = excluded.layer_salt,
			total_slots = excluded.total_slots,
			total_traffic_percentage = excluded.total_traffic_percentage,
			version = excluded.version,
			updated_at = excluded.updated_at`,
		layer.LayerID, layer.LayerSalt, layer.TotalSlots, layer.TotalTrafficPercentage,
		expectedVersion+1, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to upsert layer %q: %w", layer.LayerID, err)
	}

	// Experiments are replaced wholesale; the incoming layer snapshot is the
	// complete post-sync state and experiments are never deleted upstream.
	if _, err := tx.ExecContext(ctx, "DELETE FROM experiments WHERE layer_id = ?", layer.LayerID); err != nil {
		return fmt.Errorf("failed to clear experiments for layer %q: %w", layer.LayerID, err)
	}
	for _, exp := range layer.Experiments {
		if err := insertExperiment(ctx, tx, exp, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit layer %q: %w", layer.LayerID, err)
	}
	s.logger.Debug("layer committed",
		"layer_id", layer.LayerID,
		"version", expectedVersion+1,
		"experiments", len(layer.Experiments))
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func insertExperiment(ctx context.Context, tx *sql.Tx, exp *experiment.Experiment, now time.Time) error {
	variants, err := json.Marshal(exp.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode variants for %q: %w", exp.ExperimentID, err)
	}
	allocation, err := json.Marshal(exp.TrafficAllocation)
	if err != nil {
		return fmt.Errorf("failed to encode allocation for %q: %w", exp.ExperimentID, err)
	}
	segments, err := encodeOptional(exp.SegmentAllocations)
	if err != nil {
		return fmt.Errorf("failed to encode segment allocations for %q: %w", exp.ExperimentID, err)
	}
	geos, err := encodeOptional(exp.GeoAllocations)
	if err != nil {
		return fmt.Errorf("failed to encode geo allocations for %q: %w", exp.ExperimentID, err)
	}
	strata, err := encodeOptional(exp.StratumAllocations)
	if err != nil {
		return fmt.Errorf("failed to encode stratum allocations for %q: %w", exp.ExperimentID, err)
	}

	createdAt := exp.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments (
			experiment_id, layer_id, name, variants, traffic_allocation,
			status, splitter_type, traffic_percentage,
			segment_allocations, geo_allocations, stratum_allocations,
			start_date, end_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ExperimentID, exp.LayerID, exp.Name, string(variants), string(allocation),
		string(exp.Status), string(exp.SplitterType), exp.TrafficPercentage,
		segments, geos, strata,
		nullableTime(exp.StartDate), nullableTime(exp.EndDate), createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to insert experiment %q: %w", exp.ExperimentID, err)
	}
	return nil
}

func (s *SQLiteStore) loadExperiments(ctx context.Context, layer *experiment.Layer) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT experiment_id, layer_id, name, variants, traffic_allocation,
			status, splitter_type, traffic_percentage,
			segment_allocations, geo_allocations, stratum_allocations,
			start_date, end_date, created_at, updated_at
		FROM experiments WHERE layer_id = ? ORDER BY experiment_id`, layer.LayerID)
	if err != nil {
		return fmt.Errorf("failed to load experiments for layer %q: %w", layer.LayerID, err)
	}
	defer rows.Close()

	for rows.Next() {
		exp := &experiment.Experiment{}
		var variants, allocation string
		var segments, geos, strata sql.NullString
		var status, splitterType string
		var startDate, endDate sql.NullTime

		err := rows.Scan(
			&exp.ExperimentID, &exp.LayerID, &exp.Name, &variants, &allocation,
			&status, &splitterType, &exp.TrafficPercentage,
			&segments, &geos, &strata,
			&startDate, &endDate, &exp.CreatedAt, &exp.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan experiment: %w", err)
		}

		exp.Status = experiment.Status(status)
		exp.SplitterType = experiment.SplitterType(splitterType)
		if err := json.Unmarshal([]byte(variants), &exp.Variants); err != nil {
			return fmt.Errorf("failed to decode variants for %q: %w", exp.ExperimentID, err)
		}
		if err := json.Unmarshal([]byte(allocation), &exp.TrafficAllocation); err != nil {
			return fmt.Errorf("failed to decode allocation for %q: %w", exp.ExperimentID, err)
		}
		if exp.SegmentAllocations, err = decodeOptional(segments); err != nil {
			return fmt.Errorf("failed to decode segment allocations for %q: %w", exp.ExperimentID, err)
		}
		if exp.GeoAllocations, err = decodeOptional(geos); err != nil {
			return fmt.Errorf("failed to decode geo allocations for %q: %w", exp.ExperimentID, err)
		}
		if exp.StratumAllocations, err = decodeOptional(strata); err != nil {
			return fmt.Errorf("failed to decode stratum allocations for %q: %w", exp.ExperimentID, err)
		}
		if startDate.Valid {
			t := startDate.Time.UTC()
			exp.StartDate = &t
		}
		if endDate.Valid {
			t := endDate.Time.UTC()
			exp.EndDate = &t
		}

		layer.Experiments = append(layer.Experiments, exp)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayer(row rowScanner) (*experiment.Layer, error) {
	layer := &experiment.Layer{}
	err := row.Scan(&layer.LayerID, &layer.LayerSalt, &layer.TotalSlots,
		&layer.TotalTrafficPercentage, &layer.Version, &layer.CreatedAt, &layer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return layer, nil
}

func encodeOptional(m map[string]map[string]float64) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeOptional(col sql.NullString) (map[string]map[string]float64, error) {
	if !col.Valid {
		return nil, nil
	}
	var m map[string]map[string]float64
	if err := json.Unmarshal([]byte(col.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
