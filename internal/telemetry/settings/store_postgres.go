package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fidotel/internal/platform/sentinel"
)

// PostgresStore persists the telemetry settings as a single versioned row.
// This store is pure I/O; validation belongs to the caller.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed settings store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the settings table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS telemetry_settings (
			id                     SMALLINT PRIMARY KEY CHECK (id = 1),
			metrics_enabled        BOOLEAN NOT NULL,
			async_storage_enabled  BOOLEAN NOT NULL,
			batch_size             INTEGER NOT NULL,
			retention_days         INTEGER NOT NULL,
			registration_enabled   BOOLEAN NOT NULL,
			authentication_enabled BOOLEAN NOT NULL,
			device_info_enabled    BOOLEAN NOT NULL,
			error_categorization   BOOLEAN NOT NULL,
			version                BIGINT NOT NULL,
			updated_at             TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure telemetry_settings schema: %w", err)
	}
	return nil
}

// Load reads the settings row. Returns sentinel.ErrNotFound when the row has
// never been saved.
func (s *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
	query := `
		SELECT metrics_enabled, async_storage_enabled, batch_size, retention_days,
		       registration_enabled, authentication_enabled,
		       device_info_enabled, error_categorization,
		       version, updated_at
		FROM telemetry_settings
		WHERE id = 1
	`
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, query).Scan(
		&snap.MetricsEnabled,
		&snap.AsyncStorageEnabled,
		&snap.BatchSize,
		&snap.RetentionDays,
		&snap.RegistrationEnabled,
		&snap.AuthenticationEnabled,
		&snap.DeviceInfoCollectionEnabled,
		&snap.ErrorCategorizationEnabled,
		&snap.Version,
		&snap.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, fmt.Errorf("telemetry settings: %w", sentinel.ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("load telemetry settings: %w", err)
	}
	return snap, nil
}

// Save upserts the settings row, bumping the version on every write.
func (s *PostgresStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	query := `
		INSERT INTO telemetry_settings (
			id, metrics_enabled, async_storage_enabled, batch_size, retention_days,
			registration_enabled, authentication_enabled,
			device_info_enabled, error_categorization,
			version, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
		ON CONFLICT (id) DO UPDATE SET
			metrics_enabled        = EXCLUDED.metrics_enabled,
			async_storage_enabled  = EXCLUDED.async_storage_enabled,
			batch_size             = EXCLUDED.batch_size,
			retention_days         = EXCLUDED.retention_days,
			registration_enabled   = EXCLUDED.registration_enabled,
			authentication_enabled = EXCLUDED.authentication_enabled,
			device_info_enabled    = EXCLUDED.device_info_enabled,
			error_categorization   = EXCLUDED.error_categorization,
			version                = telemetry_settings.version + 1,
			updated_at             = EXCLUDED.updated_at
		RETURNING version, updated_at
	`
	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		snap.MetricsEnabled,
		snap.AsyncStorageEnabled,
		snap.BatchSize,
		snap.RetentionDays,
		snap.RegistrationEnabled,
		snap.AuthenticationEnabled,
		snap.DeviceInfoCollectionEnabled,
		snap.ErrorCategorizationEnabled,
		now,
	).Scan(&snap.Version, &snap.UpdatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save telemetry settings: %w", err)
	}
	return snap, nil
}
