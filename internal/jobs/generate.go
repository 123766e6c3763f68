package jobs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/llm"
	"github.com/autoguard/cloak/internal/pagestore"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/prompttemplate"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

const aiGenerateJobTimeout = 60 * time.Second

var articlePattern = regexp.MustCompile(`(?s)<article[^>]*>(.*?)</article>`)

// GenerateJob implements the AI safe-page generation half of the
// page-generation job.
type GenerateJob struct {
	Store        *postgres.Store
	Collaborator llm.Collaborator
	Pages        *pagestore.Store
	Prompts      *cacheredis.PromptCache
}

func (j *GenerateJob) Run(ctx context.Context, p PageGenerationPayload) error {
	if p.SafePageType == "" {
		return queue.Permanent(fmt.Errorf("generate job: safePageType required for ai_generate"))
	}
	safeType := domain.SafePageType(p.SafePageType)
	tmpl, ok := defaultTemplates[safeType]
	if !ok {
		return queue.Permanent(fmt.Errorf("generate job: unknown safePageType %q", p.SafePageType))
	}

	ctx, cancel := context.WithTimeout(ctx, aiGenerateJobTimeout)
	defer cancel()

	offer, err := j.Store.GetOfferByID(ctx, p.OfferID)
	if err != nil {
		return fmt.Errorf("generate job: load offer: %w", err)
	}

	promptName := "safe-page-" + p.SafePageType
	content, err := j.loadPrompt(ctx, promptName)
	if err == nil {
		tmpl = content
	} else if err != postgres.ErrNotFound {
		return fmt.Errorf("generate job: load prompt: %w", err)
	}

	vars := map[string]string{
		"product_name":   offer.BrandName,
		"product_url":    offer.BrandURL,
		"competitors":    strings.Join(p.Competitors, ", "),
		"affiliate_link": p.AffiliateLink,
		"cta_button":     "",
	}
	if p.AffiliateLink != "" {
		vars["cta_button"] = "Check the latest offer"
	}

	rendered := prompttemplate.StripUnresolved(prompttemplate.Render(tmpl, vars))

	text, err := j.Collaborator.Generate(ctx, systemPromptFor(safeType), rendered)
	if err != nil {
		reason := err.Error()
		_ = j.Store.MarkPageFailed(ctx, p.PageID, reason)
		return fmt.Errorf("generate job: llm call: %w", err)
	}

	article := extractArticle(text)
	if article == "" {
		reason := "llm response contained no <article> element"
		_ = j.Store.MarkPageFailed(ctx, p.PageID, reason)
		return fmt.Errorf("generate job: %s", reason)
	}

	html := wrapInShell(offer.BrandName, article, vars["affiliate_link"], vars["cta_button"])
	if err := j.Pages.WritePage(ctx, p.Subdomain, "b", []byte(html), nil); err != nil {
		return fmt.Errorf("generate job: persist page: %w", err)
	}
	if err := j.Store.MarkPageGenerated(ctx, p.PageID, html); err != nil {
		return fmt.Errorf("generate job: mark page generated: %w", err)
	}
	return nil
}

// loadPrompt reads name's active content through the prompt:<name> Fast
// Lookup Store cache, falling back to A on a miss and repopulating the
// cache so the next job for the same safe page type skips Postgres
// entirely.
func (j *GenerateJob) loadPrompt(ctx context.Context, name string) (string, error) {
	if j.Prompts != nil {
		if content, ok := j.Prompts.Get(ctx, name); ok {
			return content, nil
		}
	}
	content, err := j.Store.GetActivePromptContent(ctx, name)
	if err != nil {
		return "", err
	}
	if j.Prompts != nil {
		if err := j.Prompts.Set(ctx, name, content); err != nil {
			logger.Warn("generate job: prompt cache write failed", "prompt", name, "error", err.Error())
		}
	}
	return content, nil
}

func systemPromptFor(t domain.SafePageType) string {
	return fmt.Sprintf("You are an editorial copywriter producing a %s-style content page. Write naturally and avoid overt salesmanship.", t)
}

func extractArticle(text string) string {
	m := articlePattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func wrapInShell(title, article, affiliateLink, ctaText string) string {
	cta := ""
	if affiliateLink != "" && ctaText != "" {
		cta = fmt.Sprintf(`<a class="cta" href="%s">%s</a>`, affiliateLink, ctaText)
	}
	return fmt.Sprintf(pageShell, title, article, cta)
}
