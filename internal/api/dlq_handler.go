package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autoguard/cloak/internal/pkg/httputil"
	"github.com/autoguard/cloak/internal/queue"
)

// HandleListDead returns up to ?limit= (default 50) dead-lettered jobs for
// one named queue.
//
//	GET /v1/admin/queues/{queue}/dead
func (h *Handlers) HandleListDead(w http.ResponseWriter, r *http.Request) {
	q := h.queueByName(chi.URLParam(r, "queue"))
	if q == nil {
		httputil.NotFound(w, "unknown queue")
		return
	}
	limit := int64(50)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	jobs, err := q.ListDead(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"jobs": jobs})
}

// HandleRequeueDead re-enqueues one dead job (matched by its exact encoded
// form, as returned from HandleListDead) with its attempt counter reset.
//
//	POST /v1/admin/queues/{queue}/requeue
func (h *Handlers) HandleRequeueDead(w http.ResponseWriter, r *http.Request) {
	q := h.queueByName(chi.URLParam(r, "queue"))
	if q == nil {
		httputil.NotFound(w, "unknown queue")
		return
	}
	var job queue.Job
	if !httputil.Decode(w, r, &job) {
		return
	}
	ok, err := q.RequeueDead(r.Context(), job)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if !ok {
		httputil.NotFound(w, "job not found in dead list")
		return
	}
	httputil.NoContent(w)
}
