package configstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/draftforge/genroute/internal/registry"
)

// Postgres loads providers from a `providers` table, so deployments that
// manage provider config operationally can change it without shipping a
// file. Timeouts are stored in milliseconds.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Load(ctx context.Context) ([]registry.Descriptor, error) {
	query := `
		SELECT id, name, type, model, base_url, weight, concurrency_limit,
		       timeout_ms, supports_streaming, supports_chat, credential_ref, enabled
		FROM providers
		ORDER BY id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []registry.Descriptor
	for rows.Next() {
		var (
			d         registry.Descriptor
			name      sql.NullString
			baseURL   sql.NullString
			credRef   sql.NullString
			timeoutMs sql.NullInt64
		)
		if err := rows.Scan(
			&d.ID,
			&name,
			&d.Type,
			&d.Model,
			&baseURL,
			&d.Weight,
			&d.ConcurrencyLimit,
			&timeoutMs,
			&d.SupportsStreaming,
			&d.SupportsChat,
			&credRef,
			&d.Enabled,
		); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		d.Name = name.String
		d.BaseURL = baseURL.String
		d.CredentialRef = credRef.String
		if timeoutMs.Valid {
			d.Timeout = time.Duration(timeoutMs.Int64) * time.Millisecond
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
