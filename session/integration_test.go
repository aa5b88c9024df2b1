//go:build integration
// +build integration

package session_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pubomax/website-navigator/rules"
	"github.com/pubomax/website-navigator/session"

	_ "github.com/lib/pq"
)

// setupPostgres starts a PostgreSQL container with the schema applied
func setupPostgres(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "navigator_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=navigator_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db, func() {
		db.Close()
		container.Terminate(ctx)
	}
}

// setupRedis starts a Redis container and returns its URL
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port()), func() {
		container.Terminate(ctx)
	}
}

// exerciseKeySpace runs the same checks against any backend
func exerciseKeySpace(t *testing.T, keys session.KeySpace) {
	t.Helper()
	ctx := context.Background()

	if _, err := keys.Get(ctx, "absent"); !errors.Is(err, session.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	if err := keys.Set(ctx, "k", "one"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := keys.Set(ctx, "k", "two"); err != nil {
		t.Fatalf("Set() overwrite failed: %v", err)
	}
	v, err := keys.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if v != "two" {
		t.Errorf("Expected two, got %q", v)
	}

	first := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	scope := session.Scope("acme.example", "v-1")
	session.NewAdapter(keys, scope, session.WithClock(func() time.Time { return first })).
		Save(ctx, session.FirstVisit(first).WithSegment(rules.SegmentEnterprise))

	h := session.NewAdapter(keys, scope, session.WithClock(func() time.Time { return first.Add(time.Hour) })).Load(ctx)
	if h.VisitCount != 2 {
		t.Errorf("Expected visit count 2, got %d", h.VisitCount)
	}
	if h.AssignedSegment != rules.SegmentEnterprise {
		t.Errorf("Expected enterprise, got %s", h.AssignedSegment)
	}
	if !h.PreviousVisit.Equal(first) {
		t.Errorf("Expected previous visit %v, got %v", first, h.PreviousVisit)
	}
}

// TestPostgresKeySpace verifies session keys round-trip through PostgreSQL
func TestPostgresKeySpace(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	exerciseKeySpace(t, session.NewPostgresKeySpace(db))
}

// TestRedisKeySpace verifies session keys round-trip through Redis
func TestRedisKeySpace(t *testing.T) {
	url, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	client, err := session.NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient() failed: %v", err)
	}
	defer client.Close()

	exerciseKeySpace(t, session.NewRedisKeySpace(client, "test:"))

	raw, err := client.Get(ctx, "test:k").Result()
	if err != nil || raw != "two" {
		t.Errorf("Expected prefixed key to hold two, got %q (%v)", raw, err)
	}
	ttl, err := client.TTL(ctx, "test:k").Result()
	if err != nil {
		t.Fatalf("TTL() failed: %v", err)
	}
	if ttl >= 0 {
		t.Errorf("Session keys must not expire, got TTL %v", ttl)
	}
}

// TestRedisClientBadURL verifies URL validation
func TestRedisClientBadURL(t *testing.T) {
	if _, err := session.NewRedisClient(context.Background(), "not-a-url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}
