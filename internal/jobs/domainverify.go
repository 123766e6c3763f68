package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/dnscheck"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

const domainVerifyJobTimeout = 5 * time.Second

// domainVerifier is satisfied by *dnscheck.Verifier; narrowed to an
// interface so the job can be tested without live DNS/network access.
type domainVerifier interface {
	Verify(ctx context.Context, customDomain, token string) dnscheck.Result
}

// DomainVerifyJob implements the domain-verification retry job: re-run the
// TXT + ping check against an offer's pending custom domain and advance its
// state machine, invalidating the Fast Lookup Store's routing entries on
// success so the decision engine stops serving the stale route immediately.
type DomainVerifyJob struct {
	Store    *postgres.Store
	Verifier domainVerifier
	Redis    *redis.Client
}

// Run verifies a single offer's pending custom domain. It is driven either
// by a queue:domainVerify job carrying a DomainVerifyPayload, or directly by
// the scheduler iterating ListPendingDomainVerifications.
func (j *DomainVerifyJob) Run(ctx context.Context, offerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, domainVerifyJobTimeout)
	defer cancel()

	offer, err := j.Store.GetOfferByID(ctx, offerID)
	if err != nil {
		return fmt.Errorf("domain verify: load offer: %w", err)
	}
	if offer.CustomDomain == nil || *offer.CustomDomain == "" {
		return queue.Permanent(fmt.Errorf("domain verify: offer %d has no custom domain", offerID))
	}
	if offer.CustomDomainToken == nil || *offer.CustomDomainToken == "" {
		return queue.Permanent(fmt.Errorf("domain verify: offer %d has no verification token", offerID))
	}

	result := j.Verifier.Verify(ctx, *offer.CustomDomain, *offer.CustomDomainToken)
	if !result.Verified {
		logger.Info("domain verify: check failed", "offerId", offerID, "domain", *offer.CustomDomain,
			"failedCheck", result.FailedCheck, "detail", result.Detail)
		if err := j.Store.MarkDomainFailed(ctx, offerID); err != nil {
			return fmt.Errorf("domain verify: mark failed: %w", err)
		}
		return nil
	}

	if err := j.Store.MarkDomainVerified(ctx, offerID); err != nil {
		return fmt.Errorf("domain verify: mark verified: %w", err)
	}
	j.invalidateRoutingKeys(ctx, offer.Subdomain, *offer.CustomDomain, offerID)
	return nil
}

// Handle adapts Run to a queue.Handler for queue:domainVerify jobs.
func (j *DomainVerifyJob) Handle(ctx context.Context, job queue.Job) error {
	var p DomainVerifyPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return queue.Permanent(fmt.Errorf("domain verify: decode payload: %w", err))
	}
	return j.Run(ctx, p.OfferID)
}

func (j *DomainVerifyJob) invalidateRoutingKeys(ctx context.Context, subdomain, customDomain string, offerID int64) {
	keys := []string{
		cacheredis.OfferBySubdomainKey(subdomain),
		cacheredis.OfferByDomainKey(customDomain),
		cacheredis.OfferByIDKey(offerID),
	}
	if err := j.Redis.Del(ctx, keys...).Err(); err != nil {
		logger.Warn("domain verify: routing key invalidation failed", "offerId", offerID, "error", err.Error())
	}
}
