//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"fidotel/internal/telemetry"
)

type PostgresStoreSuite struct {
	suite.Suite

	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	store     *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("fidotel_test"),
		tcpostgres.WithUsername("fidotel"),
		tcpostgres.WithPassword("fidotel"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	pool, err := pgxpool.New(ctx, dsn)
	s.Require().NoError(err)
	s.pool = pool

	s.store = New(pool)
	s.Require().NoError(s.store.EnsureSchema(ctx))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE passkey_events")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) count() int {
	var n int
	err := s.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM passkey_events").Scan(&n)
	s.Require().NoError(err)
	return n
}

func (s *PostgresStoreSuite) eventAt(occurredAt time.Time) telemetry.Event {
	return telemetry.Event{
		ID:             uuid.New(),
		Kind:           telemetry.KindAuthenticationSuccess,
		SubjectID:      "user-1",
		Outcome:        true,
		DurationMillis: 42,
		Attributes:     map[string]string{telemetry.AttrDeviceInfo: "Chrome 120 on Linux"},
		OccurredAt:     occurredAt,
		NodeID:         "node-test",
	}
}

func (s *PostgresStoreSuite) TestAppendBatchPersistsEvents() {
	ctx := context.Background()
	batch := []telemetry.Event{
		s.eventAt(time.Now().UTC()),
		s.eventAt(time.Now().UTC()),
	}

	s.Require().NoError(s.store.AppendBatch(ctx, batch))
	s.Equal(2, s.count())

	var kind, deviceInfo string
	err := s.pool.QueryRow(ctx,
		"SELECT kind, attributes->>'deviceInfo' FROM passkey_events WHERE id = $1",
		batch[0].ID,
	).Scan(&kind, &deviceInfo)
	s.Require().NoError(err)
	s.Equal(string(telemetry.KindAuthenticationSuccess), kind)
	s.Equal("Chrome 120 on Linux", deviceInfo)
}

func (s *PostgresStoreSuite) TestAppendBatchIsIdempotent() {
	ctx := context.Background()
	batch := []telemetry.Event{s.eventAt(time.Now().UTC())}

	s.Require().NoError(s.store.AppendBatch(ctx, batch))
	s.Require().NoError(s.store.AppendBatch(ctx, batch))

	s.Equal(1, s.count())
}

func (s *PostgresStoreSuite) TestDeleteOlderThanChunks() {
	ctx := context.Background()
	cutoff := time.Now().UTC()

	old := make([]telemetry.Event, 5)
	for i := range old {
		old[i] = s.eventAt(cutoff.Add(-time.Hour))
	}
	fresh := s.eventAt(cutoff.Add(time.Hour))
	s.Require().NoError(s.store.AppendBatch(ctx, append(old, fresh)))

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff, 2)
	s.Require().NoError(err)
	s.Equal(int64(2), deleted)
	s.Equal(4, s.count())

	deleted, err = s.store.DeleteOlderThan(ctx, cutoff, 100)
	s.Require().NoError(err)
	s.Equal(int64(3), deleted)
	s.Equal(1, s.count())
}
