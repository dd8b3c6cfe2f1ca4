//go:build integration

package configstore

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}
	return db
}

func TestPostgresLoad(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE TEMP TABLE providers (
			id TEXT PRIMARY KEY,
			name TEXT,
			type TEXT NOT NULL,
			model TEXT NOT NULL,
			base_url TEXT,
			weight INT NOT NULL DEFAULT 0,
			concurrency_limit INT NOT NULL DEFAULT 0,
			timeout_ms BIGINT,
			supports_streaming BOOLEAN NOT NULL DEFAULT false,
			supports_chat BOOLEAN NOT NULL DEFAULT true,
			credential_ref TEXT,
			enabled BOOLEAN NOT NULL DEFAULT true
		)
	`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO providers (id, type, model, credential_ref, timeout_ms, supports_streaming)
		VALUES ('openai-primary', 'openai', 'gpt-4o-mini', 'env:OPENAI_API_KEY', 45000, true)
	`)
	if err != nil {
		t.Fatalf("insert provider: %v", err)
	}

	providers, err := NewPostgresFromDB(db).Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("expected 1 provider, got %d", len(providers))
	}
	if providers[0].ID != "openai-primary" || !providers[0].SupportsStreaming {
		t.Errorf("unexpected provider %+v", providers[0])
	}
}
