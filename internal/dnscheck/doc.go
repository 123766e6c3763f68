// Package dnscheck implements the custom-domain verification state machine's
// two checks: a DNS TXT ownership proof and an HTTPS ping against the
// visitor-facing domain, plus the deterministic per-offer token derivation
// both checks rely on.
package dnscheck
