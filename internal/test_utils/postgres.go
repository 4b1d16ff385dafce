package test_utils

import (
	"context"
	"fmt"

	"github.com/calbot/calbot/internal/config"
	"github.com/calbot/calbot/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const snapshotName = "calbot-test-snapshot"

// PostgresDB is a migrated Postgres container shared by the tests of one package.
type PostgresDB struct {
	container *postgres.PostgresContainer
	cfg       config.Database
}

// StartPostgres starts a Postgres container, applies all migrations and snapshots the clean schema.
// It returns an error when no container runtime is available so callers can skip integration tests.
func StartPostgres() (db *PostgresDB, err error) {
	ctx := context.Background()

	// testcontainers panics instead of failing when no docker host can be found
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("container runtime unavailable: %v", r)
		}
	}()

	container, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithDatabase("calendar_db"),
		postgres.WithUsername("test_calendar"),
		postgres.WithPassword("test_calendar"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   "test_calendar",
		Pass:   "test_calendar",
		Name:   "calendar_db",
		Schema: "public",
	}

	if err := database.Migrate(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := container.Snapshot(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
		return nil, fmt.Errorf("failed to snapshot postgres container: %w", err)
	}

	return &PostgresDB{container: container, cfg: cfg}, nil
}

// Open returns a new pool to the container database.
func (p *PostgresDB) Open(ctx context.Context) (*pgxpool.Pool, error) {
	return database.Open(ctx, p.cfg)
}

// Restore resets the database to the freshly migrated snapshot.
func (p *PostgresDB) Restore(ctx context.Context) error {
	return p.container.Restore(ctx, postgres.WithSnapshotName(snapshotName))
}

func (p *PostgresDB) Terminate() {
	if err := testcontainers.TerminateContainer(p.container); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
}
