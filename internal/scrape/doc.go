// Package scrape fetches a money-page source URL and rewrites it into a
// self-contained static asset: relative asset references resolved to
// absolute URLs and remapped under a per-offer static mirror path, with
// the page title and meta description extracted for the Offer record.
package scrape
