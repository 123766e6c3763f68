package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/autoguard/cloak/internal/pkg/httpretry"
)

const maxPageBytes = 8 << 20 // 8 MiB, well past any legitimate landing page

// FetchResult is a raw, unprocessed HTTP response body plus the headers
// the rewrite step needs.
type FetchResult struct {
	Body        []byte
	ContentType string
}

func fetchURL(ctx context.Context, client httpretry.HTTPDoer, rawURL, userAgent string, maxBytes int64) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("scrape: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FetchResult{}, fmt.Errorf("scrape: fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return FetchResult{}, fmt.Errorf("scrape: read body of %s: %w", rawURL, err)
	}
	if int64(len(body)) > maxBytes {
		return FetchResult{}, fmt.Errorf("scrape: %s exceeds %d bytes", rawURL, maxBytes)
	}

	return FetchResult{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml")
}
