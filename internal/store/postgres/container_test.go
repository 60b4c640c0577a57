package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kennyhq/kenny-memory/internal/store"
	"github.com/kennyhq/kenny-memory/internal/store/storetest"
)

// TestPostgresStore_Container runs the compliance suite against a
// disposable pgvector container. Gated behind MEMORY_TEST_CONTAINERS
// because it needs a Docker daemon.
func TestPostgresStore_Container(t *testing.T) {
	if os.Getenv("MEMORY_TEST_CONTAINERS") == "" {
		t.Skip("MEMORY_TEST_CONTAINERS not set; skipping container-backed postgres test")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "memory",
			"POSTGRES_PASSWORD": "memory",
			"POSTGRES_DB":       "memory_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start pgvector container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://memory:memory@%s:%s/memory_test?sslmode=disable", host, port.Port())

	db, err := Open(dsn)
	if err != nil {
		t.Fatalf("postgres open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	storetest.Run(t, func(t *testing.T) store.Store { return NewWithDB(db) })
}
