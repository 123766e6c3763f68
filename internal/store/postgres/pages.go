package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/autoguard/cloak/internal/domain"
)

const pageSelect = `
	SELECT id, offer_id, page_type, content_source, safe_page_type, competitors,
		html_content, status, generation_error, created_at, updated_at, published_at
	FROM pages`

// GetPage loads a page by (offerId, pageType) — at most one row exists per
// the unique-page-per-offer-per-type invariant.
func (s *Store) GetPage(ctx context.Context, offerID int64, pageType domain.PageType) (*domain.Page, error) {
	row := s.DB.QueryRowContext(ctx, pageSelect+` WHERE offer_id = $1 AND page_type = $2`, offerID, pageType)
	return scanPage(row)
}

func (s *Store) GetPageByID(ctx context.Context, id int64) (*domain.Page, error) {
	row := s.DB.QueryRowContext(ctx, pageSelect+` WHERE id = $1`, id)
	return scanPage(row)
}

// UpsertPage creates the page row for (offerId, pageType) if absent, or
// updates it if present — enforces "at most one Page per (offerId, pageType)"
// via an ON CONFLICT upsert rather than a read-then-write race.
func (s *Store) UpsertPage(ctx context.Context, p *domain.Page) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO pages (offer_id, page_type, content_source, safe_page_type, competitors, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (offer_id, page_type) DO UPDATE SET
			content_source = EXCLUDED.content_source,
			safe_page_type = EXCLUDED.safe_page_type,
			competitors = EXCLUDED.competitors,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING id`,
		p.OfferID, p.PageType, p.ContentSource, p.SafePageType, pq.Array(p.Competitors), p.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert page: %w", err)
	}
	return id, nil
}

// MarkPageGenerated persists successful scrape/generation output.
func (s *Store) MarkPageGenerated(ctx context.Context, pageID int64, html string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pages SET status = $1, html_content = $2, generation_error = NULL, updated_at = now()
		WHERE id = $3`, domain.PageGenerated, html, pageID)
	if err != nil {
		return fmt.Errorf("mark page generated: %w", err)
	}
	return nil
}

// MarkPageFailed records a permanent job failure on the page row.
func (s *Store) MarkPageFailed(ctx context.Context, pageID int64, reason string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE pages SET status = $1, generation_error = $2, updated_at = now() WHERE id = $3`,
		domain.PageFailed, reason, pageID)
	if err != nil {
		return fmt.Errorf("mark page failed: %w", err)
	}
	return nil
}

// PublishPage flips a generated page to published, stamping published_at.
func (s *Store) PublishPage(ctx context.Context, pageID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE pages SET status = $1, published_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3`, domain.PagePublished, pageID, domain.PageGenerated)
	if err != nil {
		return fmt.Errorf("publish page: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func scanPage(row *sql.Row) (*domain.Page, error) {
	var p domain.Page
	var competitors pq.StringArray
	err := row.Scan(&p.ID, &p.OfferID, &p.PageType, &p.ContentSource, &p.SafePageType, &competitors,
		&p.HTMLContent, &p.Status, &p.GenerationError, &p.CreatedAt, &p.UpdatedAt, &p.PublishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	p.Competitors = []string(competitors)
	return &p, nil
}
