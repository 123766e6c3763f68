package scrape

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScrapeRewritesAssetsAndExtractsMetadata(t *testing.T) {
	var assetPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/landing":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title> Acme Deals </title><meta name="description" content="Best deals around"></head><body><img src="/img/logo.png"></body></html>`))
		case "/img/logo.png":
			assetPath = r.URL.Path
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("fake-png-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewProcessor(srv.Client(), "")
	result, err := p.Scrape(t.Context(), srv.URL+"/landing", "acme-deals")
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if result.Title != "Acme Deals" {
		t.Errorf("title = %q", result.Title)
	}
	if result.Description != "Best deals around" {
		t.Errorf("description = %q", result.Description)
	}
	if assetPath != "/img/logo.png" {
		t.Fatalf("asset never fetched")
	}
	if len(result.Assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(result.Assets))
	}
	if !strings.Contains(string(result.HTML), "/static/acme-deals/a/assets/") {
		t.Errorf("html not rewritten: %s", result.HTML)
	}
}

func TestScrapeRejectsNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewProcessor(srv.Client(), "")
	_, err := p.Scrape(t.Context(), srv.URL, "acme-deals")
	if err == nil {
		t.Fatal("expected error for non-HTML content type")
	}
}
