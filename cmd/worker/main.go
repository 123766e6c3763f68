package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cacheredis "github.com/autoguard/cloak/internal/cache/redis"
	"github.com/autoguard/cloak/internal/config"
	"github.com/autoguard/cloak/internal/dnscheck"
	"github.com/autoguard/cloak/internal/jobs"
	"github.com/autoguard/cloak/internal/llm"
	"github.com/autoguard/cloak/internal/materializer"
	"github.com/autoguard/cloak/internal/pagestore"
	"github.com/autoguard/cloak/internal/pkg/httpretry"
	"github.com/autoguard/cloak/internal/pkg/logger"
	"github.com/autoguard/cloak/internal/queue"
	"github.com/autoguard/cloak/internal/scheduler"
	"github.com/autoguard/cloak/internal/scrape"
	"github.com/autoguard/cloak/internal/store/postgres"
)

// main wires the Job Pipeline: a scheduler that enqueues and rematerializes
// on cron intervals, and one worker pool per queue draining it. It mirrors
// the server composition root's dependency wiring but never opens an HTTP
// listener.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("worker: load config failed", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))

	store, err := postgres.Open(cfg.Postgres)
	if err != nil {
		logger.Error("worker: connect postgres failed", "error", err.Error())
		os.Exit(1)
	}
	defer store.DB.Close()

	rdb, err := cacheredis.NewClient(cfg.Redis)
	if err != nil {
		logger.Error("worker: connect redis failed", "error", err.Error())
		os.Exit(1)
	}
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pageStore, err := buildPageStore(ctx, cfg.Pages)
	if err != nil {
		logger.Error("worker: build page store failed", "error", err.Error())
		os.Exit(1)
	}

	httpDoer := httpretry.NewRetryClient(nil, cfg.Scrape.MaxRetries)
	processor := scrape.NewProcessor(httpDoer, cfg.Scrape.UserAgent)

	collaborator, err := llm.New(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.Bedrock.Timeout())
	if err != nil {
		logger.Error("worker: build bedrock client failed", "error", err.Error())
		os.Exit(1)
	}

	mat := materializer.New(store, rdb)

	pageGenHandler := &jobs.PageGenerationHandler{
		Scraper:   &jobs.ScrapeJob{Store: store, Processor: processor, Pages: pageStore},
		Generator: &jobs.GenerateJob{Store: store, Collaborator: collaborator, Pages: pageStore, Prompts: cacheredis.NewPromptCache(rdb)},
	}
	sourceSyncJob := &jobs.SourceSyncJob{Store: store, Materializer: mat, HTTPClient: httpDoer}
	domainVerifyJob := &jobs.DomainVerifyJob{Store: store, Verifier: dnscheck.New(), Redis: rdb}

	pageQueue := queue.New(rdb, cacheredis.QueuePageGeneration)
	domainQueue := queue.New(rdb, cacheredis.QueueDomainVerify)
	syncQueue := queue.New(rdb, cacheredis.QueueBlacklistSync)

	pools := []*queue.Pool{
		queue.NewPool(pageQueue, pageGenHandler.Handle, cfg.Worker.Concurrency, cfg.Worker.ShutdownGrace()),
		queue.NewPool(domainQueue, domainVerifyJob.Handle, cfg.Worker.Concurrency, cfg.Worker.ShutdownGrace()),
		queue.NewPool(syncQueue, sourceSyncJob.Handle, cfg.Worker.Concurrency, cfg.Worker.ShutdownGrace()),
	}

	var wg sync.WaitGroup
	for _, pool := range pools {
		wg.Add(1)
		go func(p *queue.Pool) {
			defer wg.Done()
			p.Start(ctx)
		}(pool)
	}

	sched := scheduler.New(cfg.Scheduler, store, mat, rdb)
	sched.Start()

	logger.Info("worker: running", "concurrency", cfg.Worker.Concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker: shutting down")
	sched.Stop()
	cancel()
	wg.Wait()

	logger.Info("worker: stopped")
}

func buildPageStore(ctx context.Context, cfg config.PagesConfig) (*pagestore.Store, error) {
	if cfg.S3Bucket == "" {
		return pagestore.New(cfg.Dir, nil), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, err
	}
	mirror := pagestore.NewS3Mirror(s3.NewFromConfig(awsCfg), cfg.S3Bucket)
	return pagestore.New(cfg.Dir, mirror), nil
}
