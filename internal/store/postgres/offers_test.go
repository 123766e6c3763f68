package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoguard/cloak/internal/domain"
)

func TestGetOfferByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "brand_name", "brand_url", "affiliate_link", "subdomain",
		"custom_domain", "custom_domain_status", "custom_domain_token", "custom_domain_verified_at",
		"cloak_enabled", "target_countries", "scrape_status", "scrape_error", "scraped_at",
		"page_title", "page_description", "status", "is_deleted", "created_at", "updated_at",
	}).AddRow(
		1, 7, "Acme", "https://acme.example", "https://aff.example/123", "acme123",
		nil, domain.DomainNone, nil, nil,
		true, "{US,CA}", domain.ScrapeCompleted, nil, nil,
		"Acme Reviews", "The best acme", domain.OfferActive, false, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE id = \$1`).WithArgs(int64(1)).WillReturnRows(rows)

	store := &Store{DB: db}
	o, err := store.GetOfferByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "acme123", o.Subdomain)
	assert.Equal(t, []string{"US", "CA"}, o.TargetCountries)
	assert.True(t, o.CloakEnabled)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOfferByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM offers WHERE id = \$1`).WithArgs(int64(99)).WillReturnError(sql.ErrNoRows)

	store := &Store{DB: db}
	_, err = store.GetOfferByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
