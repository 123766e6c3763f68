package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

// InsertCloakLogs batch-inserts drained cloak-log records. Called by the
// scheduler's log-flusher, never by the decision engine's hot path
// (which only ever writes to the Fast Lookup Store's queue:cloakLogs list).
func (s *Store) InsertCloakLogs(ctx context.Context, logs []domain.CloakLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cloak log insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cloak_logs (user_id, offer_id, ip_address, user_agent, referer, request_url,
			decision, decision_reason, fraud_score, blocked_at_layer, detection_details,
			ip_country, ip_city, ip_isp, ip_asn, is_datacenter, is_vpn, is_proxy,
			processing_time_ms, has_tracking_params, gclid, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`)
	if err != nil {
		return fmt.Errorf("prepare cloak log insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		details, err := json.Marshal(l.DetectionDetails)
		if err != nil {
			return fmt.Errorf("marshal detection details: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			l.UserID, l.OfferID, l.IPAddress, l.UserAgent, l.Referer, l.RequestURL,
			l.Decision, l.DecisionReason, l.FraudScore, l.BlockedAtLayer, details,
			l.IPCountry, l.IPCity, l.IPISP, l.IPASN, l.IsDatacenter, l.IsVPN, l.IsProxy,
			l.ProcessingTimeMs, l.HasTrackingParams, l.GCLID, l.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert cloak log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cloak log insert tx: %w", err)
	}
	return nil
}

// DeleteCloakLogsOlderThan implements the daily log-retention job.
func (s *Store) DeleteCloakLogsOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM cloak_logs WHERE created_at < now() - ($1 || ' days')::interval`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("delete old cloak logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
