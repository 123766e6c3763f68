package postgres

import (
	"context"
	"fmt"
	"time"
)

// UpsertDailyStatsForDate computes today's DailyStat rows directly from
// cloak_logs grouped by (userId, offerId), upserting by the
// (userId, offerId, statDate) primary key — per spec.md's stats-aggregation
// job, this runs entirely in SQL rather than round-tripping rows to Go.
func (s *Store) UpsertDailyStatsForDate(ctx context.Context, date time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO daily_stats (user_id, offer_id, stat_date, total_visits, money_page_visits,
			safe_page_visits, unique_ips, avg_fraud_score, blocked_l1, blocked_l2, blocked_l3,
			blocked_l4, blocked_l5, blocked_timeout, updated_at)
		SELECT
			user_id, offer_id, DATE(created_at) AS stat_date,
			count(*) AS total_visits,
			count(*) FILTER (WHERE decision = 'money') AS money_page_visits,
			count(*) FILTER (WHERE decision = 'safe') AS safe_page_visits,
			count(DISTINCT ip_address) AS unique_ips,
			avg(fraud_score) AS avg_fraud_score,
			count(*) FILTER (WHERE blocked_at_layer = 'L1') AS blocked_l1,
			count(*) FILTER (WHERE blocked_at_layer = 'L2') AS blocked_l2,
			count(*) FILTER (WHERE blocked_at_layer = 'L3') AS blocked_l3,
			count(*) FILTER (WHERE blocked_at_layer = 'L4') AS blocked_l4,
			count(*) FILTER (WHERE blocked_at_layer = 'L5') AS blocked_l5,
			count(*) FILTER (WHERE blocked_at_layer = 'TIMEOUT') AS blocked_timeout,
			now()
		FROM cloak_logs
		WHERE DATE(created_at) = DATE($1)
		GROUP BY user_id, offer_id, DATE(created_at)
		ON CONFLICT (user_id, offer_id, stat_date) DO UPDATE SET
			total_visits = EXCLUDED.total_visits,
			money_page_visits = EXCLUDED.money_page_visits,
			safe_page_visits = EXCLUDED.safe_page_visits,
			unique_ips = EXCLUDED.unique_ips,
			avg_fraud_score = EXCLUDED.avg_fraud_score,
			blocked_l1 = EXCLUDED.blocked_l1,
			blocked_l2 = EXCLUDED.blocked_l2,
			blocked_l3 = EXCLUDED.blocked_l3,
			blocked_l4 = EXCLUDED.blocked_l4,
			blocked_l5 = EXCLUDED.blocked_l5,
			blocked_timeout = EXCLUDED.blocked_timeout,
			updated_at = now()`, date)
	if err != nil {
		return 0, fmt.Errorf("upsert daily stats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
