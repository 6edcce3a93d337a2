package pgutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/ustahub/chatsync/pkg/config"
)

// SetupTestDB creates a PostgreSQL testcontainer and returns a connection
// plus a cleanup function.
func SetupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("chatsync_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "test_user",
		Password: "test_pass",
		Database: "chatsync_test",
		SSLMode:  "disable",
		PoolSize: 4,
	}

	var db *bun.DB
	for i := 0; i < 10; i++ {
		db, err = ConnectDB(cfg)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		t.Fatalf("failed to connect to test database: %v", err)
	}

	cleanup := func() {
		_ = db.Close()
		_ = testcontainers.TerminateContainer(container)
	}
	return db, cleanup
}

// AssertTableExists fails the test when the table is missing.
func AssertTableExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	var exists bool
	err := db.NewRaw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = ?)",
		tableName,
	).Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", tableName, err)
	}
	if !exists {
		t.Errorf("expected table %s to exist", tableName)
	}
}

// AssertTableNotExists fails the test when the table is present.
func AssertTableNotExists(t *testing.T, db *bun.DB, tableName string) {
	t.Helper()
	var exists bool
	err := db.NewRaw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = ?)",
		tableName,
	).Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", tableName, err)
	}
	if exists {
		t.Errorf("expected table %s to not exist", tableName)
	}
}

// AssertIndexExists fails the test when the index is missing.
func AssertIndexExists(t *testing.T, db *bun.DB, indexName string) {
	t.Helper()
	var exists bool
	err := db.NewRaw(
		"SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = ?)",
		indexName,
	).Scan(context.Background(), &exists)
	if err != nil {
		t.Fatalf("failed to check index %s: %v", indexName, err)
	}
	if !exists {
		t.Errorf("expected index %s to exist", indexName)
	}
}
