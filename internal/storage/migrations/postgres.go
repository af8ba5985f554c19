package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"dexpulse/internal/storage/postgres"
)

// InitRetries is how many times startup schema creation is attempted
// before the failure is treated as fatal by the caller.
const InitRetries = 3

// initRetryDelay spaces startup migration attempts.
const initRetryDelay = 2 * time.Second

// RunPostgresMigrations applies all embedded SQL files in lexical order.
// Every file except the signals migration is idempotent (create-if-absent);
// the signals migration drops and recreates its table on every startup.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// RunPostgresMigrationsWithRetry retries schema creation a fixed number
// of times. Exhausting the retries is a fatal startup condition.
func RunPostgresMigrationsWithRetry(ctx context.Context, pool *postgres.Pool) error {
	var lastErr error
	for attempt := 1; attempt <= InitRetries; attempt++ {
		lastErr = RunPostgresMigrations(ctx, pool)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(initRetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("migrations failed after %d attempts: %w", InitRetries, lastErr)
}
