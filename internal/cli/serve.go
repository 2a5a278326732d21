package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/evidence"
	"github.com/arbiterhq/arbiter/internal/fetch"
	"github.com/arbiterhq/arbiter/internal/guard"
	"github.com/arbiterhq/arbiter/internal/health"
	"github.com/arbiterhq/arbiter/internal/httpapi"
	"github.com/arbiterhq/arbiter/internal/llm"
	"github.com/arbiterhq/arbiter/internal/queue"
	"github.com/arbiterhq/arbiter/internal/runner"
	"github.com/arbiterhq/arbiter/internal/search"
	"github.com/arbiterhq/arbiter/internal/similarity"
	"github.com/arbiterhq/arbiter/internal/sources"
	"github.com/arbiterhq/arbiter/internal/store"
	"github.com/arbiterhq/arbiter/internal/understand"
	"github.com/arbiterhq/arbiter/internal/webhook"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis harness as a daemon",
	Long: `Serve starts the harness: the internal control surface, the job
queue, and the provider-health tracker. Jobs are admitted through
POST /internal/run-job and pulled from the configured job store.

Example:
  arbiter serve
  ARBITER_SERVER_ADDR=:9000 arbiter serve --config ./arbiter.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emitter := webhook.NewEmitter(cfg.Webhook.URL, cfg.Webhook.Secret,
		time.Duration(cfg.Webhook.Timeout)*time.Second, logger)
	tracker := health.NewTracker(logger, webhook.NewNotifier(emitter, logger))

	jobs := store.NewClient(cfg.Store, logger)

	strategies, err := buildStrategies(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	r, err := runner.New(strategies, jobs, logger)
	if err != nil {
		return err
	}

	q := queue.New(ctx, jobs, r, tracker, cfg.Queue, logger)

	api := httpapi.NewServer(tracker, q, cfg.Server, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("harness listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down, draining in-flight jobs")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	q.Wait()
	logger.Info("shutdown complete")
	return nil
}

// newLogger picks the zap preset for the configured environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildStrategies wires the pipeline variants from configuration: the
// shared LLM and search gateways, the fetcher for URL inputs, and the
// orchestrated stage components.
func buildStrategies(cfg *config.Config, tracker *health.Tracker, logger *zap.Logger) ([]runner.Strategy, error) {
	provider, err := llm.NewProvider(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	llmGateway := llm.NewGateway(provider, tracker,
		cfg.Providers.LLM.RatePerSecond, cfg.Providers.LLM.Burst,
		cfg.Providers.FailureThreshold, logger)

	searchGateway := search.NewGateway(search.NewHTTPSearcher(cfg.Providers.Search), tracker,
		cfg.Providers.Search.RatePerSecond, cfg.Providers.Search.Burst,
		cfg.Providers.FailureThreshold, logger)

	var robots *fetch.RobotsChecker
	if cfg.Fetch.RespectRobots {
		robots = fetch.NewRobotsChecker(cfg.Fetch.UserAgent, cfg.Fetch.Timeout)
	}
	fetcher := fetch.NewFetcher(cfg.Fetch, robots)

	scorer := similarity.NewScorer(llmGateway, cfg.Similarity.ChunkSize, cfg.Similarity.MaxRetries, logger)
	decomposer := understand.NewDecomposer(llmGateway, scorer, logger)
	gatherer := evidence.NewGatherer(searchGateway, llmGateway, sources.NewClassifier(&cfg.Authority),
		cfg.Providers.Search.MaxResults, cfg.Providers.Search.Parallelism, logger)
	grounder := guard.NewGrounder(llmGateway, logger)

	return []runner.Strategy{
		runner.NewOrchestrated(fetcher, decomposer, gatherer, grounder, llmGateway, *cfg, logger),
		runner.NewMonolithicCanonical(fetcher, llmGateway, logger),
		runner.NewMonolithicDynamic(fetcher, llmGateway, logger),
	}, nil
}
