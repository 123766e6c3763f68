package domain

// Setting is a single named, hot-reloadable tunable read from the
// Authoritative Store's `settings` table. Values are stored as text and
// parsed by the consumer (internal/decision.Settings), so that every
// decision-engine weight and threshold is an operator-editable row rather
// than a compiled-in constant (spec's "expose every weight as a setting").
type Setting struct {
	Key   string
	Value string
}

// Well-known setting keys consumed by the decision engine.
const (
	SettingDecisionTimeoutMs    = "decision_timeout_ms"
	SettingSafeModeThreshold    = "safe_mode_threshold"
	SettingEnableIPCheck        = "enable_ip_check"
	SettingEnableUACheck        = "enable_ua_check"
	SettingEnableGeoCheck       = "enable_geo_check"
	SettingEnableRefererCheck   = "enable_referer_check"
	SettingL1GeoHighRiskWeight  = "l1_geo_high_risk_weight"
	SettingL2DatacenterWeight   = "l2_datacenter_weight"
	SettingL2VPNWeight          = "l2_vpn_weight"
	SettingL2ProxyWeight        = "l2_proxy_weight"
	SettingL2TorWeight          = "l2_tor_weight"
	SettingL4UAHeuristicWeight  = "l4_ua_heuristic_weight"
	SettingLogRetentionDays     = "log_retention_days"
)

// DefaultSettings is the bootstrap row set inserted on first migration so
// decide() is runnable before an operator touches anything (SPEC_FULL.md
// "settings bootstrap" supplement).
func DefaultSettings() []Setting {
	return []Setting{
		{Key: SettingDecisionTimeoutMs, Value: "100"},
		{Key: SettingSafeModeThreshold, Value: "50"},
		{Key: SettingEnableIPCheck, Value: "true"},
		{Key: SettingEnableUACheck, Value: "true"},
		{Key: SettingEnableGeoCheck, Value: "true"},
		{Key: SettingEnableRefererCheck, Value: "true"},
		{Key: SettingL1GeoHighRiskWeight, Value: "30"},
		{Key: SettingL2DatacenterWeight, Value: "25"},
		{Key: SettingL2VPNWeight, Value: "25"},
		{Key: SettingL2ProxyWeight, Value: "25"},
		{Key: SettingL2TorWeight, Value: "25"},
		{Key: SettingL4UAHeuristicWeight, Value: "20"},
		{Key: SettingLogRetentionDays, Value: "90"},
	}
}
