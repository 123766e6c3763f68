package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autoguard/cloak/internal/pkg/httputil"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/store/postgres"
)

type activatePromptVersionRequest struct {
	VersionID int64 `json:"versionId"`
}

// HandleActivatePromptVersion atomically activates one version of a named
// prompt in A, then invalidates prompt:<name> in B. The invalidation runs
// only after ActivateVersionExclusive's transaction has committed, so a
// racing reader never repopulates the cache with the version being
// deactivated (spec.md §5's activation-then-invalidate ordering).
//
//	POST /v1/admin/prompts/{name}/activate
func (h *Handlers) HandleActivatePromptVersion(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req activatePromptVersionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.VersionID == 0 {
		httputil.BadRequest(w, "versionId is required")
		return
	}

	prompt, err := h.store.GetPromptByName(r.Context(), name)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "prompt not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := h.store.ActivateVersionExclusive(r.Context(), prompt.ID, req.VersionID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "version not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	if err := h.prompts.Invalidate(r.Context(), name); err != nil {
		logger.Warn("api: prompt cache invalidation failed", "prompt", name, "error", err.Error())
	}

	httputil.NoContent(w)
}
