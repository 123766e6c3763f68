package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/autoguard/cloak/internal/queue"
)

// pageRunner is satisfied by *ScrapeJob and *GenerateJob; narrowed to an
// interface so the dispatch policy can be tested without their storage,
// HTTP, and LLM dependencies.
type pageRunner interface {
	Run(ctx context.Context, p PageGenerationPayload) error
}

// PageGenerationHandler dispatches queue:pageGeneration jobs to the scrape
// or AI-generation path, enforcing the variant/action policy (money pages
// are scrape-only, safe pages are AI-only) before either runs.
type PageGenerationHandler struct {
	Scraper   pageRunner
	Generator pageRunner
}

func (h *PageGenerationHandler) Handle(ctx context.Context, job queue.Job) error {
	var p PageGenerationPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return queue.Permanent(fmt.Errorf("page generation: decode payload: %w", err))
	}

	switch {
	case p.Variant == "a" && p.Action == "scrape":
		return h.Scraper.Run(ctx, p)
	case p.Variant == "b" && p.Action == "ai_generate":
		return h.Generator.Run(ctx, p)
	default:
		return queue.Permanent(fmt.Errorf("page generation: variant %q cannot use action %q", p.Variant, p.Action))
	}
}
