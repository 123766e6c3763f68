package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zeebo/xxh3"

	"github.com/autoguard/cloak/internal/pkg/httpretry"
)

const maxAssetBytes = 4 << 20 // 4 MiB per asset

// assetSelectors maps a CSS selector to the attribute holding its URL.
var assetSelectors = []struct {
	selector string
	attr     string
}{
	{"img", "src"},
	{"link[rel=stylesheet]", "href"},
	{`link[rel~="icon"]`, "href"},
	{"script", "src"},
}

// Asset is one downloaded, locally-renamed asset destined for
// <PAGES_DIR>/<subdomain>/a/assets/.
type Asset struct {
	LocalPath string
	Content   []byte
}

// Result is the fully processed scrape output, ready to persist.
type Result struct {
	HTML        []byte
	Title       string
	Description string
	Assets      []Asset
}

// Processor fetches a page and its linked assets, rewriting every asset
// reference to the offer's static mirror path.
type Processor struct {
	client    httpretry.HTTPDoer
	userAgent string
}

func NewProcessor(client httpretry.HTTPDoer, userAgent string) *Processor {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; AutoGuardScraper/1.0)"
	}
	return &Processor{client: client, userAgent: userAgent}
}

// Scrape fetches sourceURL and returns the rewritten HTML plus every asset
// it references, with every asset path remapped under
// /static/<subdomain>/a/assets/<name>.
func (p *Processor) Scrape(ctx context.Context, sourceURL, subdomain string) (Result, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return Result{}, fmt.Errorf("scrape: invalid source url: %w", err)
	}

	page, err := fetchURL(ctx, p.client, sourceURL, p.userAgent, maxPageBytes)
	if err != nil {
		return Result{}, err
	}
	if !isHTMLContent(page.ContentType) {
		return Result{}, fmt.Errorf("scrape: %s returned non-HTML content-type %q", sourceURL, page.ContentType)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return Result{}, fmt.Errorf("scrape: parse html: %w", err)
	}

	result := Result{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
	}

	seen := map[string]string{} // absolute asset URL -> local path
	for _, sel := range assetSelectors {
		doc.Find(sel.selector).Each(func(_ int, node *goquery.Selection) {
			raw, ok := node.Attr(sel.attr)
			if !ok || raw == "" || strings.HasPrefix(raw, "data:") {
				return
			}
			abs := resolveURL(base, raw)
			if abs == "" {
				return
			}

			localPath, alreadyFetched := seen[abs]
			if !alreadyFetched {
				asset, err := fetchURL(ctx, p.client, abs, p.userAgent, maxAssetBytes)
				if err != nil {
					// Missing assets are reported-not-fatal; leave the
					// reference as-is rather than fail the whole scrape.
					return
				}
				localPath = assetLocalPath(subdomain, abs)
				result.Assets = append(result.Assets, Asset{LocalPath: localPath, Content: asset.Body})
				seen[abs] = localPath
			}
			node.SetAttr(sel.attr, "/"+localPath)
		})
	}

	html, err := doc.Html()
	if err != nil {
		return Result{}, fmt.Errorf("scrape: render html: %w", err)
	}
	result.HTML = []byte(html)
	return result, nil
}

func metaDescription(doc *goquery.Document) string {
	content, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func resolveURL(base *url.URL, raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// assetLocalPath builds "static/<subdomain>/a/assets/<hash><ext>", hashed
// by source URL so the same remote asset always lands at the same local
// name regardless of how many times the scrape job reruns.
func assetLocalPath(subdomain, absoluteURL string) string {
	hash := xxh3.HashString(absoluteURL)
	ext := path.Ext(strings.SplitN(path.Base(absoluteURL), "?", 2)[0])
	name := fmt.Sprintf("%x%s", hash, ext)
	return path.Join("static", subdomain, "a", "assets", name)
}
