package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/store/postgres"
)

type emptySource struct{}

func (emptySource) ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error) {
	switch family {
	case domain.FamilyIP:
		return []domain.IPRule{}, nil
	case domain.FamilyCIDR:
		return []domain.CIDRRule{}, nil
	case domain.FamilyUA:
		return []domain.UARule{}, nil
	case domain.FamilyISP:
		return []domain.ISPRule{}, nil
	case domain.FamilyGeo:
		return []domain.GeoRule{}, nil
	default:
		return nil, nil
	}
}

func (emptySource) DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	return nil, nil
}

var sourceColumns = []string{
	"id", "name", "source_type", "url", "update_frequency", "last_sync_at", "next_sync_at",
	"sync_status", "sync_error", "is_active",
}

func TestSourceSyncJobSuccess(t *testing.T) {
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("198.51.100.7\n203.0.113.0/24\n"))
	}))
	defer feed.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	feedURL := feed.URL
	mock.ExpectQuery(`SELECT (.+) FROM blacklist_sources WHERE id = \$1`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(sourceColumns).AddRow(
			5, "spamhaus-drop", domain.SourceExternal, feedURL, domain.FreqDaily, nil, nil, nil, nil, true,
		))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE blacklist_ips SET is_active = false`).WithArgs("source:5").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE blacklist_ip_ranges SET is_active = false`).WithArgs("source:5").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO blacklist_ips`).WithArgs("198.51.100.7", "source:5").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO blacklist_ip_ranges`).WithArgs("203.0.113.0/24", "source:5").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT update_frequency FROM blacklist_sources WHERE id = \$1`).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"update_frequency"}).AddRow(domain.FreqDaily))
	mock.ExpectExec(`UPDATE blacklist_sources SET sync_status = \$1, sync_error = \$2`).
		WithArgs(domain.SyncSuccess, nil, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := &postgres.Store{DB: db}
	mat := materializer.New(emptySource{}, nil)

	job := &SourceSyncJob{Store: store, Materializer: mat, HTTPClient: feed.Client()}
	err = job.Run(context.Background(), SourceSyncPayload{SourceID: 5})
	require.NoError(t, err)
}

func TestSourceSyncJobMissingFeedURLIsPermanent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM blacklist_sources WHERE id = \$1`).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(sourceColumns).AddRow(
			9, "manual-list", domain.SourceBuiltin, nil, domain.FreqDaily, nil, nil, nil, nil, true,
		))

	store := &postgres.Store{DB: db}
	job := &SourceSyncJob{Store: store, Materializer: materializer.New(emptySource{}, nil), HTTPClient: http.DefaultClient}

	err = job.Run(context.Background(), SourceSyncPayload{SourceID: 9})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
