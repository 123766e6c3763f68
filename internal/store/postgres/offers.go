package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/autoguard/cloak/internal/domain"
)

// GetOfferByID loads a single non-deleted offer.
func (s *Store) GetOfferByID(ctx context.Context, id int64) (*domain.Offer, error) {
	row := s.DB.QueryRowContext(ctx, offerSelect+` WHERE id = $1 AND is_deleted = false`, id)
	return scanOffer(row)
}

// GetOfferBySubdomain is used by the routing-entry materializer.
func (s *Store) GetOfferBySubdomain(ctx context.Context, subdomain string) (*domain.Offer, error) {
	row := s.DB.QueryRowContext(ctx, offerSelect+` WHERE subdomain = $1 AND is_deleted = false`, subdomain)
	return scanOffer(row)
}

// GetOfferByCustomDomain is used by the routing-entry materializer.
func (s *Store) GetOfferByCustomDomain(ctx context.Context, domainName string) (*domain.Offer, error) {
	row := s.DB.QueryRowContext(ctx, offerSelect+` WHERE custom_domain = $1 AND is_deleted = false`, domainName)
	return scanOffer(row)
}

// ListActiveOffers returns every non-deleted offer, for routing-table
// rebuilds and stats aggregation.
func (s *Store) ListActiveOffers(ctx context.Context) ([]*domain.Offer, error) {
	rows, err := s.DB.QueryContext(ctx, offerSelect+` WHERE is_deleted = false`)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Offer
	for rows.Next() {
		o, err := scanOfferRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateOffer inserts a new offer. Subdomain uniqueness violations surface
// as ErrConflict.
func (s *Store) CreateOffer(ctx context.Context, o *domain.Offer) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO offers (user_id, brand_name, brand_url, affiliate_link, subdomain,
			custom_domain_status, cloak_enabled, target_countries, scrape_status, status, is_deleted)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false)
		RETURNING id`,
		o.UserID, o.BrandName, o.BrandURL, o.AffiliateLink, o.Subdomain,
		domain.DomainNone, o.CloakEnabled, pq.Array(o.TargetCountries), domain.ScrapePending, domain.OfferDraft,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("create offer: %w", err)
	}
	return id, nil
}

// SetCustomDomainPending begins the verification state machine: stores the
// requested domain, a deterministic token, and flips status to pending.
func (s *Store) SetCustomDomainPending(ctx context.Context, offerID int64, customDomain, token string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE offers SET custom_domain = $1, custom_domain_token = $2,
			custom_domain_status = $3, updated_at = now()
		WHERE id = $4 AND is_deleted = false`,
		customDomain, token, domain.DomainPending, offerID)
	if err != nil {
		return fmt.Errorf("set custom domain pending: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDomainVerified completes the state machine on a successful TXT +
// ping check.
func (s *Store) MarkDomainVerified(ctx context.Context, offerID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE offers SET custom_domain_status = $1, custom_domain_verified_at = now(), updated_at = now()
		WHERE id = $2`, domain.DomainVerified, offerID)
	if err != nil {
		return fmt.Errorf("mark domain verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDomainFailed records a failed verification attempt.
func (s *Store) MarkDomainFailed(ctx context.Context, offerID int64) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE offers SET custom_domain_status = $1, updated_at = now() WHERE id = $2`,
		domain.DomainFailed, offerID)
	if err != nil {
		return fmt.Errorf("mark domain failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingDomainVerifications finds offers awaiting a verification
// retry, for the domain-verification job's enqueuer.
func (s *Store) ListPendingDomainVerifications(ctx context.Context) ([]*domain.Offer, error) {
	rows, err := s.DB.QueryContext(ctx, offerSelect+` WHERE custom_domain_status = $1 AND is_deleted = false`, domain.DomainPending)
	if err != nil {
		return nil, fmt.Errorf("list pending domain verifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Offer
	for rows.Next() {
		o, err := scanOfferRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateScrapeResult records the outcome of the money-page scrape job.
func (s *Store) UpdateScrapeResult(ctx context.Context, offerID int64, status domain.ScrapeStatus, title, description, scrapeErr *string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE offers SET scrape_status = $1, scraped_at = CASE WHEN $1 = 'completed' THEN now() ELSE scraped_at END,
			page_title = COALESCE($2, page_title), page_description = COALESCE($3, page_description),
			scrape_error = $4, updated_at = now()
		WHERE id = $5`, status, title, description, scrapeErr, offerID)
	if err != nil {
		return fmt.Errorf("update scrape result: %w", err)
	}
	return nil
}

// ActivateOffer enforces the precondition that at least one ready page and
// a non-empty affiliate link exist before flipping status=active.
func (s *Store) ActivateOffer(ctx context.Context, offerID int64) error {
	var readyPages int
	var affiliateLink string
	err := s.DB.QueryRowContext(ctx, `
		SELECT affiliate_link FROM offers WHERE id = $1 AND is_deleted = false`, offerID).Scan(&affiliateLink)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("activate offer: %w", err)
	}
	if strings.TrimSpace(affiliateLink) == "" {
		return ErrPreconditionFailed
	}
	err = s.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM pages WHERE offer_id = $1 AND status IN ('generated','published')`, offerID).Scan(&readyPages)
	if err != nil {
		return fmt.Errorf("activate offer: count pages: %w", err)
	}
	if readyPages == 0 {
		return ErrPreconditionFailed
	}
	_, err = s.DB.ExecContext(ctx, `UPDATE offers SET status = $1, updated_at = now() WHERE id = $2`, domain.OfferActive, offerID)
	return err
}

const offerSelect = `
	SELECT id, user_id, brand_name, brand_url, affiliate_link, subdomain,
		custom_domain, custom_domain_status, custom_domain_token, custom_domain_verified_at,
		cloak_enabled, target_countries, scrape_status, scrape_error, scraped_at,
		page_title, page_description, status, is_deleted, created_at, updated_at
	FROM offers`

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(row *sql.Row) (*domain.Offer, error) {
	o, err := scanOfferRows(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return o, err
}

func scanOfferRows(row scanner) (*domain.Offer, error) {
	var o domain.Offer
	var countries pq.StringArray
	err := row.Scan(&o.ID, &o.UserID, &o.BrandName, &o.BrandURL, &o.AffiliateLink, &o.Subdomain,
		&o.CustomDomain, &o.CustomDomainStatus, &o.CustomDomainToken, &o.CustomDomainVerifiedAt,
		&o.CloakEnabled, &countries, &o.ScrapeStatus, &o.ScrapeError, &o.ScrapedAt,
		&o.PageTitle, &o.PageDescription, &o.Status, &o.IsDeleted, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	o.TargetCountries = []string(countries)
	return &o, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
