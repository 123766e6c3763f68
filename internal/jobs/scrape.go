package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pagestore"
	"github.com/autoguard/cloak/internal/scrape"
	"github.com/autoguard/cloak/internal/store/postgres"
)

const scrapeJobTimeout = 30 * time.Second

// ScrapeJob implements the page-scrape half of the page-generation job:
// fetch the money-page source, rewrite its assets, and persist both the
// Page row and the PAGES_DIR tree.
type ScrapeJob struct {
	Store     *postgres.Store
	Processor *scrape.Processor
	Pages     *pagestore.Store
}

func (j *ScrapeJob) Run(ctx context.Context, p PageGenerationPayload) error {
	ctx, cancel := context.WithTimeout(ctx, scrapeJobTimeout)
	defer cancel()

	result, err := j.Processor.Scrape(ctx, p.SourceURL, p.Subdomain)
	if err != nil {
		j.recordFailure(ctx, p, err)
		return fmt.Errorf("scrape job: %w", err)
	}

	assets := make([]pagestore.Asset, len(result.Assets))
	for i, a := range result.Assets {
		assets[i] = pagestore.Asset{LocalPath: a.LocalPath, Content: a.Content}
	}
	if err := j.Pages.WritePage(ctx, p.Subdomain, "a", result.HTML, assets); err != nil {
		j.recordFailure(ctx, p, err)
		return fmt.Errorf("scrape job: persist page: %w", err)
	}

	if err := j.Store.MarkPageGenerated(ctx, p.PageID, string(result.HTML)); err != nil {
		return fmt.Errorf("scrape job: mark page generated: %w", err)
	}

	title, description := result.Title, result.Description
	if err := j.Store.UpdateScrapeResult(ctx, p.OfferID, domain.ScrapeCompleted, &title, &description, nil); err != nil {
		return fmt.Errorf("scrape job: update offer: %w", err)
	}
	return nil
}

func (j *ScrapeJob) recordFailure(ctx context.Context, p PageGenerationPayload, cause error) {
	reason := cause.Error()
	if err := j.Store.MarkPageFailed(ctx, p.PageID, reason); err != nil {
		return
	}
	_ = j.Store.UpdateScrapeResult(ctx, p.OfferID, domain.ScrapeFailed, nil, nil, &reason)
}
