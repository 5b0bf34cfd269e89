// Package settings holds the operator-editable configuration for the passkey
// telemetry pipeline and the providers that hand the current snapshot to the
// recording components.
package settings

import (
	"context"
	"fmt"
	"time"

	"fidotel/internal/platform/sentinel"
)

// Snapshot is an immutable, versioned view of the telemetry settings. The
// pipeline reads the latest snapshot at each decision point and never caches
// it beyond a single operation; updates take effect for the next decision.
type Snapshot struct {
	MetricsEnabled      bool `json:"metricsEnabled"`
	AsyncStorageEnabled bool `json:"asyncStorageEnabled"`

	// BatchSize bounds how many events the writer drains per store append.
	BatchSize int `json:"batchSize"`

	// RetentionDays bounds the age of persisted events. Zero means "expire
	// immediately on the next reap cycle", not "retain forever".
	RetentionDays int `json:"retentionDays"`

	RegistrationEnabled   bool `json:"registrationEnabled"`
	AuthenticationEnabled bool `json:"authenticationEnabled"`

	DeviceInfoCollectionEnabled bool `json:"deviceInfoCollectionEnabled"`
	ErrorCategorizationEnabled  bool `json:"errorCategorizationEnabled"`

	// Version increments on every save; UpdatedAt is stamped by the store.
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults returns the out-of-the-box settings: everything enabled, batches
// of 100, 90 days of retention.
func Defaults() Snapshot {
	return Snapshot{
		MetricsEnabled:              true,
		AsyncStorageEnabled:         true,
		BatchSize:                   100,
		RetentionDays:               90,
		RegistrationEnabled:         true,
		AuthenticationEnabled:       true,
		DeviceInfoCollectionEnabled: true,
		ErrorCategorizationEnabled:  true,
	}
}

// Disabled returns the fail-closed snapshot used when no configuration can be
// read: metrics off, nothing recorded.
func Disabled() Snapshot {
	return Snapshot{}
}

// Validate checks the invariants the pipeline relies on.
func (s Snapshot) Validate() error {
	if s.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1: %w", sentinel.ErrInvalidState)
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// Provider supplies the current committed settings snapshot.
type Provider interface {
	Current() Snapshot
}

// Loader reads the persisted settings from a backing store.
type Loader interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Store is a Loader that can also persist operator updates.
type Store interface {
	Loader
	Save(ctx context.Context, snap Snapshot) (Snapshot, error)
}

// Static is a fixed-snapshot provider for tests and single-node dev setups.
type Static struct {
	snap Snapshot
}

// NewStatic returns a provider that always yields snap.
func NewStatic(snap Snapshot) *Static {
	return &Static{snap: snap}
}

func (s *Static) Current() Snapshot {
	return s.snap
}
