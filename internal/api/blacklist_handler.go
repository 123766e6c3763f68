package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autoguard/cloak/internal/domain"
	"github.com/autoguard/cloak/internal/pkg/httputil"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// HandleListBlacklist returns the current effective rule set for one
// family, straight from A — the same read the materializer itself uses,
// exposed so operators can diff A against B without a Redis client.
//
//	GET /v1/admin/blacklist/{family}
func (h *Handlers) HandleListBlacklist(w http.ResponseWriter, r *http.Request) {
	family := domain.RuleFamily(chi.URLParam(r, "family"))
	rules, err := h.store.ListEffectiveRules(r.Context(), family)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, map[string]any{"family": family, "rules": rules})
}

type addIPRuleRequest struct {
	UserID *int64 `json:"userId,omitempty"`
	IP     string `json:"ip"`
	Source string `json:"source"`
}

// HandleAddIPRule upserts a single-IP rule, global when userId is omitted.
//
//	POST /v1/admin/blacklist/ip
func (h *Handlers) HandleAddIPRule(w http.ResponseWriter, r *http.Request) {
	var req addIPRuleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.IP == "" {
		httputil.BadRequest(w, "ip is required")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	id, err := h.store.UpsertIPRuleIdempotent(r.Context(), req.UserID, req.IP, req.Source)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"id": id})
}

type addCIDRRuleRequest struct {
	UserID *int64 `json:"userId,omitempty"`
	CIDR   string `json:"cidr"`
	Source string `json:"source"`
}

// HandleAddCIDRRule upserts a CIDR-range rule.
//
//	POST /v1/admin/blacklist/cidr
func (h *Handlers) HandleAddCIDRRule(w http.ResponseWriter, r *http.Request) {
	var req addCIDRRuleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CIDR == "" {
		httputil.BadRequest(w, "cidr is required")
		return
	}
	if req.Source == "" {
		req.Source = "manual"
	}
	id, err := h.store.UpsertCIDRRuleIdempotent(r.Context(), req.UserID, req.CIDR, req.Source)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"id": id})
}

// HandleDeactivateRule soft-deactivates one rule by family and ID.
//
//	DELETE /v1/admin/blacklist/{family}/{id}
func (h *Handlers) HandleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	family := domain.RuleFamily(chi.URLParam(r, "family"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid id")
		return
	}
	if err := h.store.SoftDeactivateRuleByID(r.Context(), family, id); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "rule not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleMaterialize triggers an on-demand rebuild of every blacklist family
// in B, outside the scheduler's own cadence — useful right after a bulk
// rule import.
//
//	POST /v1/admin/materialize
func (h *Handlers) HandleMaterialize(w http.ResponseWriter, r *http.Request) {
	counts, err := h.materializer.MaterializeAll(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"families": counts})
}
