//go:build database

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/tzcluster/internal/runlock"
	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestTzclusterWithMySQL tests the tzcluster CLI with a MySQL backend.
func TestTzclusterWithMySQL(t *testing.T) {
	ctx := context.Background()

	// Start MySQL container
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "secret123",
			"MYSQL_DATABASE":      "tzcluster",
		},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(60 * time.Second),
	}
	mysqlC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = mysqlC.Terminate(ctx) }()

	// Get connection details
	host, err := mysqlC.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlC.MappedPort(ctx, "3306")
	require.NoError(t, err)

	connStr := fmt.Sprintf("root:secret123@tcp(%s:%s)/tzcluster?parseTime=true", host, port.Port())
	t.Setenv("TZCLUSTER_STORE_BACKEND", "mysql")
	t.Setenv("TZCLUSTER_STORE_DB_CONNECT", connStr)

	exerciseStore(t)
}

// TestTzclusterWithPostgres tests the tzcluster CLI with a PostgreSQL backend.
func TestTzclusterWithPostgres(t *testing.T) {
	ctx := context.Background()

	// Start Postgres container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_HOST_AUTH_METHOD": "trust",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = pgC.Terminate(ctx) }()

	// Get connection details
	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connStr := fmt.Sprintf("host=%s port=%s user=postgres dbname=postgres sslmode=disable", host, port.Port())
	t.Setenv("TZCLUSTER_STORE_BACKEND", "postgresql")
	t.Setenv("TZCLUSTER_STORE_DB_CONNECT", connStr)

	exerciseStore(t)
}

// TestTzclusterWithRedisLock runs a committing analysis behind the Redis run lock.
func TestTzclusterWithRedisLock(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	dir, dataset := writeFixture(t)
	t.Setenv("TZCLUSTER_STORE_BACKEND", "sqlite")
	t.Setenv("TZCLUSTER_STORE_DB_CONNECT", dir+"/summaries.db")
	t.Setenv("TZCLUSTER_LOCK_BACKEND", "redis")
	t.Setenv("TZCLUSTER_LOCK_ADDR", fmt.Sprintf("%s:%s", host, port.Port()))

	// The lock is released after each run, so back-to-back runs both succeed
	for range 2 {
		out, err := runCommand(t, dir, "analyze", dataset, "--output", "json")
		require.NoError(t, err)
		var result schema.RunResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.True(t, result.Committed)
	}
}

// TestRedisLockOutlivesTTL holds the lock for several TTLs and checks that a
// second holder cannot take it until it is released.
func TestRedisLockOutlivesTTL(t *testing.T) {
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	ttl := 300 * time.Millisecond
	holder, err := runlock.NewRedisLock(addr, "tzcluster:ttl-test", ttl, nil)
	require.NoError(t, err)
	defer func() { _ = holder.Close() }()
	waiter, err := runlock.NewRedisLock(addr, "tzcluster:ttl-test", ttl, nil)
	require.NoError(t, err)
	defer func() { _ = waiter.Close() }()

	require.NoError(t, holder.Acquire(ctx))
	time.Sleep(4 * ttl)

	waitCtx, cancel := context.WithTimeout(ctx, 2*ttl)
	err = waiter.Acquire(waitCtx)
	cancel()
	require.Error(t, err, "the holder must still own the lock past its ttl")

	require.NoError(t, holder.Release(ctx))
	require.NoError(t, waiter.Acquire(ctx))
	require.NoError(t, waiter.Release(ctx))
}

// exerciseStore clears, migrates, analyzes and inspects the configured store.
func exerciseStore(t *testing.T) {
	t.Helper()
	dir, dataset := writeFixture(t)

	_, err := runCommand(t, dir, "summary", "clear")
	require.NoError(t, err)

	_, err = runCommand(t, dir, "summary", "migrate")
	require.NoError(t, err)

	for range 2 {
		_, err = runCommand(t, dir, "analyze", dataset, "--output", "json")
		require.NoError(t, err)
	}

	out, err := runCommand(t, dir, "summary", "show", "--output", "json")
	require.NoError(t, err)
	var summaries []schema.RegionalSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "US-East", summaries[0].Region)
	assert.Equal(t, int64(6), summaries[0].TotalPosts)

	_, err = runCommand(t, dir, "summary", "status")
	require.NoError(t, err)
}
