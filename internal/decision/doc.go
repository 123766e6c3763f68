// Package decision is the Decision Engine (component D): the per-request
// hot path that classifies a visit as money or safe. It reads only the
// Fast Lookup Store (never the Authoritative Store) and enforces a global
// deadline — on any uncertainty (timeout, missing data, external outage)
// it returns safe. See Engine.Decide.
package decision
