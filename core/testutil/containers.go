// Package testutil starts the backing services integration tests run against.
package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"basegraph.app/triage/core/db"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage = "postgres:16-alpine"
	RedisImage    = "redis:7-alpine"
)

// Enabled reports whether container backed tests should run. Set
// TRIAGE_INTEGRATION=1 on machines with Docker.
func Enabled() bool {
	return os.Getenv("TRIAGE_INTEGRATION") == "1"
}

// Postgres starts a throwaway database with all migrations applied.
// The returned func stops the container.
func Postgres(ctx context.Context, lockTimeout time.Duration) (*db.DB, func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "triage",
				"POSTGRES_USER":     "triage",
				"POSTGRES_PASSWORD": "triage",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starting postgres container: %w", err)
	}
	stop := func() { _ = container.Terminate(context.Background()) }

	endpoint, err := container.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("resolving postgres endpoint: %w", err)
	}

	database, err := db.New(ctx, db.Config{
		DSN:         fmt.Sprintf("postgres://triage:triage@%s/triage?sslmode=disable", endpoint),
		MaxConns:    8,
		MinConns:    1,
		LockTimeout: lockTimeout,
	})
	if err != nil {
		stop()
		return nil, nil, err
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		stop()
		return nil, nil, err
	}

	return database, func() {
		database.Close()
		stop()
	}, nil
}

// Redis starts a throwaway Redis server.
func Redis(ctx context.Context) (*redis.Client, func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("starting redis container: %w", err)
	}
	stop := func() { _ = container.Terminate(context.Background()) }

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "")
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("resolving redis endpoint: %w", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		stop()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, func() {
		_ = client.Close()
		stop()
	}, nil
}
