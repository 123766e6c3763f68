package postgres

import (
	"context"
	"fmt"

	"github.com/autoguard/cloak/internal/domain"
)

// ListEffectiveRules returns every effective (active, unexpired) rule row
// for a single family, across all scopes — the materializer partitions
// the result into global/per-user buckets itself.
func (s *Store) ListEffectiveRules(ctx context.Context, family domain.RuleFamily) (any, error) {
	switch family {
	case domain.FamilyIP:
		return s.listIPRules(ctx)
	case domain.FamilyCIDR:
		return s.listCIDRRules(ctx)
	case domain.FamilyUA:
		return s.listUARules(ctx)
	case domain.FamilyISP:
		return s.listISPRules(ctx)
	case domain.FamilyGeo:
		return s.listGeoRules(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown rule family %q", ErrValidation, family)
	}
}

func effective(table string) string {
	return fmt.Sprintf(`SELECT id, user_id, is_active, source, expires_at, created_at, updated_at, %s
		FROM %s WHERE is_active = true AND (expires_at IS NULL OR expires_at > now())`, "%s", table)
}

func (s *Store) listIPRules(ctx context.Context) ([]domain.IPRule, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(effective("blacklist_ips"), "ip_address"))
	if err != nil {
		return nil, fmt.Errorf("list ip rules: %w", err)
	}
	defer rows.Close()
	var out []domain.IPRule
	for rows.Next() {
		var r domain.IPRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Source, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &r.IPAddress); err != nil {
			return nil, fmt.Errorf("scan ip rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listCIDRRules(ctx context.Context) ([]domain.CIDRRule, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(effective("blacklist_ip_ranges"), "cidr"))
	if err != nil {
		return nil, fmt.Errorf("list cidr rules: %w", err)
	}
	defer rows.Close()
	var out []domain.CIDRRule
	for rows.Next() {
		var r domain.CIDRRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Source, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &r.CIDR); err != nil {
			return nil, fmt.Errorf("scan cidr rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listUARules(ctx context.Context) ([]domain.UARule, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(effective("blacklist_uas"), "pattern, pattern_type"))
	if err != nil {
		return nil, fmt.Errorf("list ua rules: %w", err)
	}
	defer rows.Close()
	var out []domain.UARule
	for rows.Next() {
		var r domain.UARule
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Source, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &r.Pattern, &r.PatternType); err != nil {
			return nil, fmt.Errorf("scan ua rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listISPRules(ctx context.Context) ([]domain.ISPRule, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(effective("blacklist_isps"), "asn, isp_name"))
	if err != nil {
		return nil, fmt.Errorf("list isp rules: %w", err)
	}
	defer rows.Close()
	var out []domain.ISPRule
	for rows.Next() {
		var r domain.ISPRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Source, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &r.ASN, &r.ISPName); err != nil {
			return nil, fmt.Errorf("scan isp rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) listGeoRules(ctx context.Context) ([]domain.GeoRule, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(effective("blacklist_geos"), "country_code, region_code, block_type"))
	if err != nil {
		return nil, fmt.Errorf("list geo rules: %w", err)
	}
	defer rows.Close()
	var out []domain.GeoRule
	for rows.Next() {
		var r domain.GeoRule
		if err := rows.Scan(&r.ID, &r.UserID, &r.IsActive, &r.Source, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &r.CountryCode, &r.RegionCode, &r.BlockType); err != nil {
			return nil, fmt.Errorf("scan geo rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertIPRuleIdempotent inserts or reactivates an IP rule for (userId, ip),
// keyed by a unique (user_id, ip_address) constraint so repeated operator
// adds of the same value are no-ops rather than duplicate rows.
func (s *Store) UpsertIPRuleIdempotent(ctx context.Context, userID *int64, ip, source string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO blacklist_ips (user_id, ip_address, is_active, source)
		VALUES ($1,$2,true,$3)
		ON CONFLICT (user_id, ip_address) DO UPDATE SET is_active = true, source = EXCLUDED.source, updated_at = now()
		RETURNING id`, userID, ip, source).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert ip rule: %w", err)
	}
	return id, nil
}

// UpsertCIDRRuleIdempotent is the CIDR-family analog of UpsertIPRuleIdempotent.
func (s *Store) UpsertCIDRRuleIdempotent(ctx context.Context, userID *int64, cidr, source string) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO blacklist_ip_ranges (user_id, cidr, is_active, source)
		VALUES ($1,$2,true,$3)
		ON CONFLICT (user_id, cidr) DO UPDATE SET is_active = true, source = EXCLUDED.source, updated_at = now()
		RETURNING id`, userID, cidr, source).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert cidr rule: %w", err)
	}
	return id, nil
}

// SoftDeactivateRuleByID flips isActive=false for a single rule row in the
// given family table, used by the on-demand delta "remove" path.
func (s *Store) SoftDeactivateRuleByID(ctx context.Context, family domain.RuleFamily, id int64) error {
	table, err := tableForFamily(family)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = false, updated_at = now() WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateExpiredRules deactivates every rule past its expiresAt across
// all five families, returning the per-family count of rows touched so the
// materializer knows which families to re-run.
func (s *Store) DeactivateExpiredRules(ctx context.Context) (map[domain.RuleFamily]int64, error) {
	out := map[domain.RuleFamily]int64{}
	tables := map[domain.RuleFamily]string{
		domain.FamilyIP:   "blacklist_ips",
		domain.FamilyCIDR: "blacklist_ip_ranges",
		domain.FamilyUA:   "blacklist_uas",
		domain.FamilyISP:  "blacklist_isps",
		domain.FamilyGeo:  "blacklist_geos",
	}
	for family, table := range tables {
		res, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET is_active = false, updated_at = now()
			WHERE is_active = true AND expires_at IS NOT NULL AND expires_at <= now()`, table))
		if err != nil {
			return nil, fmt.Errorf("deactivate expired %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		out[family] = n
	}
	return out, nil
}

// ReplaceSourceRules atomically deactivates all rows with source =
// "source:<id>" and re-inserts parsed rules in a single transaction,
// per spec.md's external-source-ingestion contract.
func (s *Store) ReplaceSourceRules(ctx context.Context, sourceID int64, ips, cidrs []string) (ipCount, cidrCount int, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin source replace tx: %w", err)
	}
	defer tx.Rollback()

	source := fmt.Sprintf("source:%d", sourceID)

	if _, err := tx.ExecContext(ctx, `UPDATE blacklist_ips SET is_active = false, updated_at = now() WHERE source = $1`, source); err != nil {
		return 0, 0, fmt.Errorf("deactivate source ip rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE blacklist_ip_ranges SET is_active = false, updated_at = now() WHERE source = $1`, source); err != nil {
		return 0, 0, fmt.Errorf("deactivate source cidr rules: %w", err)
	}

	for _, ip := range ips {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blacklist_ips (user_id, ip_address, is_active, source) VALUES (NULL,$1,true,$2)
			ON CONFLICT (user_id, ip_address) DO UPDATE SET is_active = true, source = $2, updated_at = now()`,
			ip, source); err != nil {
			return 0, 0, fmt.Errorf("insert source ip rule: %w", err)
		}
		ipCount++
	}
	for _, cidr := range cidrs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blacklist_ip_ranges (user_id, cidr, is_active, source) VALUES (NULL,$1,true,$2)
			ON CONFLICT (user_id, cidr) DO UPDATE SET is_active = true, source = $2, updated_at = now()`,
			cidr, source); err != nil {
			return 0, 0, fmt.Errorf("insert source cidr rule: %w", err)
		}
		cidrCount++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit source replace tx: %w", err)
	}
	return ipCount, cidrCount, nil
}

func tableForFamily(f domain.RuleFamily) (string, error) {
	switch f {
	case domain.FamilyIP:
		return "blacklist_ips", nil
	case domain.FamilyCIDR:
		return "blacklist_ip_ranges", nil
	case domain.FamilyUA:
		return "blacklist_uas", nil
	case domain.FamilyISP:
		return "blacklist_isps", nil
	case domain.FamilyGeo:
		return "blacklist_geos", nil
	default:
		return "", fmt.Errorf("%w: unknown rule family %q", ErrValidation, f)
	}
}
