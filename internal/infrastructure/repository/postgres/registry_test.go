package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

func newMockRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db), mock
}

func paperRows(papers ...domain.Paper) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "filename", "page_count", "image_dir", "ingested_at"})
	for _, p := range papers {
		rows.AddRow(p.ID, p.Filename, p.PageCount, p.ImageDir, p.IngestedAt)
	}
	return rows
}

func TestRegistryAddUpserts(t *testing.T) {
	registry, mock := newMockRegistry(t)

	ingested := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO papers").
		WithArgs("abc", "paper.pdf", 12, "/images/abc", ingested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := registry.Add(context.Background(), &domain.Paper{
		ID:         "abc",
		Filename:   "paper.pdf",
		PageCount:  12,
		ImageDir:   "/images/abc",
		IngestedAt: ingested,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegistryAddFillsIngestedAt(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectExec("INSERT INTO papers").
		WithArgs("abc", "paper.pdf", 0, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	paper := &domain.Paper{ID: "abc", Filename: "paper.pdf"}
	if err := registry.Add(context.Background(), paper); err != nil {
		t.Fatalf("add: %v", err)
	}
	if paper.IngestedAt.IsZero() {
		t.Fatalf("expected ingested_at to be set")
	}
}

func TestRegistryGet(t *testing.T) {
	registry, mock := newMockRegistry(t)

	want := domain.Paper{
		ID:         "abc",
		Filename:   "paper.pdf",
		PageCount:  7,
		ImageDir:   "/images/abc",
		IngestedAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery("SELECT id, filename, page_count, image_dir, ingested_at").
		WithArgs("abc").
		WillReturnRows(paperRows(want))

	got, err := registry.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.PageCount != want.PageCount || got.ImageDir != want.ImageDir {
		t.Fatalf("unexpected paper: %+v", got)
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectQuery("SELECT id, filename, page_count, image_dir, ingested_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.Get(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrPaperNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestRegistryGetLatest(t *testing.T) {
	registry, mock := newMockRegistry(t)

	latest := domain.Paper{ID: "newest", Filename: "n.pdf", IngestedAt: time.Now().UTC()}
	mock.ExpectQuery("ORDER BY ingested_at DESC").
		WillReturnRows(paperRows(latest))

	got, err := registry.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got.ID != "newest" {
		t.Fatalf("unexpected paper: %+v", got)
	}
}

func TestRegistryGetLatestEmpty(t *testing.T) {
	registry, mock := newMockRegistry(t)

	mock.ExpectQuery("ORDER BY ingested_at DESC").
		WillReturnError(sql.ErrNoRows)

	_, err := registry.GetLatest(context.Background())
	if !domain.IsKind(err, domain.ErrPaperNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}

func TestRegistryListAll(t *testing.T) {
	registry, mock := newMockRegistry(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, filename, page_count, image_dir, ingested_at").
		WillReturnRows(paperRows(
			domain.Paper{ID: "b", Filename: "b.pdf", IngestedAt: now},
			domain.Paper{ID: "a", Filename: "a.pdf", IngestedAt: now.Add(-time.Hour)},
		))

	papers, err := registry.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(papers) != 2 || papers[0].ID != "b" {
		t.Fatalf("unexpected papers: %+v", papers)
	}
}
