package api

import (
	"github.com/redis/go-redis/v9"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/decision"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// Handlers holds every collaborator the HTTP surface calls into. It is the
// generalization of the teacher's Handlers struct: instead of per-ESP
// collectors, it wires the Decision Engine, the Fast Lookup Store client,
// the materializer, and the three job queues an operator can inspect.
type Handlers struct {
	store        *postgres.Store
	rdb          *redis.Client
	engine       *decision.Engine
	materializer *materializer.Materializer
	prompts      *cacheredis.PromptCache

	pageQueue   *queue.Queue
	domainQueue *queue.Queue
	syncQueue   *queue.Queue
}

func NewHandlers(store *postgres.Store, rdb *redis.Client, engine *decision.Engine, mat *materializer.Materializer, pageQueue, domainQueue, syncQueue *queue.Queue) *Handlers {
	return &Handlers{
		store:        store,
		rdb:          rdb,
		engine:       engine,
		materializer: mat,
		prompts:      cacheredis.NewPromptCache(rdb),
		pageQueue:    pageQueue,
		domainQueue:  domainQueue,
		syncQueue:    syncQueue,
	}
}

func (h *Handlers) queueByName(name string) *queue.Queue {
	switch name {
	case "pageGeneration":
		return h.pageQueue
	case "domainVerify":
		return h.domainQueue
	case "blacklistSync":
		return h.syncQueue
	default:
		return nil
	}
}
