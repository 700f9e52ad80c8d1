package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the layer store schema.
// Allocation tables and variant lists are stored as JSON columns; they are
// opaque to queries and only round-tripped through the domain model.
const Schema = `
CREATE TABLE IF NOT EXISTS layers (
    layer_id TEXT PRIMARY KEY,
    layer_salt TEXT NOT NULL,
    total_slots INTEGER NOT NULL,
    total_traffic_percentage REAL NOT NULL,
    version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS experiments (
    experiment_id TEXT NOT NULL,
    layer_id TEXT NOT NULL REFERENCES layers(layer_id),
    name TEXT NOT NULL,
    variants TEXT NOT NULL,
    traffic_allocation TEXT NOT NULL,
    status TEXT NOT NULL,
    splitter_type TEXT NOT NULL,
    traffic_percentage REAL NOT NULL,
    segment_allocations TEXT,
    geo_allocations TEXT,
    stratum_allocations TEXT,
    start_date TIMESTAMP,
    end_date TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (layer_id, experiment_id)
);

CREATE INDEX IF NOT EXISTS idx_experiments_layer ON experiments(layer_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`
