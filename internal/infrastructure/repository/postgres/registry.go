package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// Registry keeps the catalog of ingested papers. Paper IDs are content
// hashes, so re-uploading the same file is an upsert, not a duplicate.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

const schemaLockID = 874221

const schemaSQL = `
CREATE TABLE IF NOT EXISTS papers (
    id          TEXT PRIMARY KEY,
    filename    TEXT NOT NULL,
    page_count  INTEGER NOT NULL DEFAULT 0,
    image_dir   TEXT NOT NULL DEFAULT '',
    ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS papers_ingested_at_idx ON papers (ingested_at DESC);
`

// EnsureSchema creates the papers table. The advisory lock serializes
// concurrent api/worker startups against the same database.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", schemaLockID)

	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *Registry) Add(ctx context.Context, paper *domain.Paper) error {
	if paper.IngestedAt.IsZero() {
		paper.IngestedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO papers (id, filename, page_count, image_dir, ingested_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			filename    = EXCLUDED.filename,
			page_count  = EXCLUDED.page_count,
			image_dir   = EXCLUDED.image_dir,
			ingested_at = EXCLUDED.ingested_at`

	if _, err := r.db.ExecContext(ctx, query, paper.ID, paper.Filename, paper.PageCount, paper.ImageDir, paper.IngestedAt); err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, paperID string) (*domain.Paper, error) {
	const query = `
		SELECT id, filename, page_count, image_dir, ingested_at
		FROM papers
		WHERE id = $1`

	paper, err := scanPaper(r.db.QueryRowContext(ctx, query, paperID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPaperNotFound, "registry.get", fmt.Errorf("paper %s", paperID))
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}
	return paper, nil
}

// GetLatest returns the most recently ingested paper; ask requests that
// omit a paper ID resolve against it.
func (r *Registry) GetLatest(ctx context.Context) (*domain.Paper, error) {
	const query = `
		SELECT id, filename, page_count, image_dir, ingested_at
		FROM papers
		ORDER BY ingested_at DESC
		LIMIT 1`

	paper, err := scanPaper(r.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPaperNotFound, "registry.latest", errors.New("no papers ingested"))
		}
		return nil, fmt.Errorf("get latest paper: %w", err)
	}
	return paper, nil
}

func (r *Registry) ListAll(ctx context.Context) ([]domain.Paper, error) {
	const query = `
		SELECT id, filename, page_count, image_dir, ingested_at
		FROM papers
		ORDER BY ingested_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	var papers []domain.Paper
	for rows.Next() {
		var p domain.Paper
		if err := rows.Scan(&p.ID, &p.Filename, &p.PageCount, &p.ImageDir, &p.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan paper row: %w", err)
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper rows: %w", err)
	}
	return papers, nil
}

func scanPaper(row *sql.Row) (*domain.Paper, error) {
	var p domain.Paper
	if err := row.Scan(&p.ID, &p.Filename, &p.PageCount, &p.ImageDir, &p.IngestedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
