// Package pagestore persists generated/scraped Page HTML and assets to the
// PAGES_DIR filesystem tree the edge process serves from, with an optional
// S3 mirror for durability across redeploys of that tree.
package pagestore
