// Package jobs implements the four Job Pipeline handlers — page scrape, AI
// safe-page generation, external blacklist-source ingestion, and
// custom-domain verification — wired against the Authoritative Store, the
// Fast Lookup Store, and their respective external collaborators.
package jobs
