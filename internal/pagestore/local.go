package pagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/autoguard/cloak/internal/pkg/logger"
)

// Asset is one file destined for the page's assets/ subdirectory, keyed by
// the slash-separated local path it was rewritten to reference (e.g.
// "static/acme-deals/a/assets/1a2b3c.png").
type Asset struct {
	LocalPath string
	Content   []byte
}

// Store writes the `<PAGES_DIR>/<subdomain>/{a,b}/index.html` and
// `.../assets/...` layout the edge process serves, mirroring to S3 when
// configured.
type Store struct {
	rootDir string
	mirror  *S3Mirror
}

// New builds a Store rooted at PAGES_DIR. mirror may be nil to disable S3.
func New(rootDir string, mirror *S3Mirror) *Store {
	return &Store{rootDir: rootDir, mirror: mirror}
}

// variant is "a" (money page) or "b" (safe page), per spec.md's persisted
// filesystem layout.
func (s *Store) WritePage(ctx context.Context, subdomain, variant string, html []byte, assets []Asset) error {
	pageDir := filepath.Join(s.rootDir, subdomain, variant)
	if err := os.MkdirAll(pageDir, 0o755); err != nil {
		return fmt.Errorf("pagestore: mkdir %s: %w", pageDir, err)
	}

	indexPath := filepath.Join(pageDir, "index.html")
	if err := os.WriteFile(indexPath, html, 0o644); err != nil {
		return fmt.Errorf("pagestore: write %s: %w", indexPath, err)
	}

	for _, asset := range assets {
		assetPath := filepath.Join(s.rootDir, filepath.FromSlash(asset.LocalPath))
		if err := os.MkdirAll(filepath.Dir(assetPath), 0o755); err != nil {
			return fmt.Errorf("pagestore: mkdir for asset %s: %w", asset.LocalPath, err)
		}
		if err := os.WriteFile(assetPath, asset.Content, 0o644); err != nil {
			return fmt.Errorf("pagestore: write asset %s: %w", asset.LocalPath, err)
		}
	}

	if s.mirror == nil {
		return nil
	}

	indexKey := fmt.Sprintf("%s/%s/index.html", subdomain, variant)
	if err := s.mirror.Put(ctx, indexKey, html, "text/html; charset=utf-8"); err != nil {
		logger.Warn("pagestore: s3 mirror of index failed", "subdomain", subdomain, "variant", variant, "error", err)
	}
	for _, asset := range assets {
		if err := s.mirror.Put(ctx, asset.LocalPath, asset.Content, ""); err != nil {
			logger.Warn("pagestore: s3 mirror of asset failed", "path", asset.LocalPath, "error", err)
		}
	}
	return nil
}
