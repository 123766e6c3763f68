package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoguard/cloak/internal/queue"
)

type recordingRunner struct {
	called bool
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, p PageGenerationPayload) error {
	r.called = true
	return r.err
}

func TestPageGenerationHandlerDispatchesScrapeForMoneyPage(t *testing.T) {
	scraper := &recordingRunner{}
	generator := &recordingRunner{}
	h := &PageGenerationHandler{Scraper: scraper, Generator: generator}

	payload, err := json.Marshal(PageGenerationPayload{Variant: "a", Action: "scrape", Subdomain: "acme123"})
	require.NoError(t, err)

	err = h.Handle(context.Background(), queue.Job{Payload: payload})
	require.NoError(t, err)
	assert.True(t, scraper.called)
	assert.False(t, generator.called)
}

func TestPageGenerationHandlerDispatchesGenerateForSafePage(t *testing.T) {
	scraper := &recordingRunner{}
	generator := &recordingRunner{}
	h := &PageGenerationHandler{Scraper: scraper, Generator: generator}

	payload, err := json.Marshal(PageGenerationPayload{Variant: "b", Action: "ai_generate", SafePageType: "review"})
	require.NoError(t, err)

	err = h.Handle(context.Background(), queue.Job{Payload: payload})
	require.NoError(t, err)
	assert.False(t, scraper.called)
	assert.True(t, generator.called)
}

func TestPageGenerationHandlerRejectsMismatchedVariantAction(t *testing.T) {
	scraper := &recordingRunner{}
	generator := &recordingRunner{}
	h := &PageGenerationHandler{Scraper: scraper, Generator: generator}

	cases := []PageGenerationPayload{
		{Variant: "a", Action: "ai_generate"},
		{Variant: "b", Action: "scrape"},
		{Variant: "c", Action: "scrape"},
	}
	for _, p := range cases {
		payload, err := json.Marshal(p)
		require.NoError(t, err)

		err = h.Handle(context.Background(), queue.Job{Payload: payload})
		require.Error(t, err)

		var permErr *queue.PermanentError
		require.ErrorAs(t, err, &permErr)
	}
	assert.False(t, scraper.called)
	assert.False(t, generator.called)
}

func TestPageGenerationHandlerMalformedPayloadIsPermanent(t *testing.T) {
	h := &PageGenerationHandler{Scraper: &recordingRunner{}, Generator: &recordingRunner{}}

	err := h.Handle(context.Background(), queue.Job{Payload: []byte("not json")})
	require.Error(t, err)
	var permErr *queue.PermanentError
	require.ErrorAs(t, err, &permErr)
}
