package pagestore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWritePageWritesIndexAndAssets(t *testing.T) {
	root := t.TempDir()
	store := New(root, nil)

	assets := []Asset{
		{LocalPath: "static/acme-deals/a/assets/logo.png", Content: []byte("png-bytes")},
	}
	err := store.WritePage(t.Context(), "acme-deals", "a", []byte("<html></html>"), assets)
	if err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	indexPath := filepath.Join(root, "acme-deals", "a", "index.html")
	got, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if string(got) != "<html></html>" {
		t.Errorf("index content = %q", got)
	}

	assetPath := filepath.Join(root, "static", "acme-deals", "a", "assets", "logo.png")
	gotAsset, err := os.ReadFile(assetPath)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if string(gotAsset) != "png-bytes" {
		t.Errorf("asset content = %q", gotAsset)
	}
}
