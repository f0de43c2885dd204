package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/paperstand/internal/config"
	"github.com/kirillkom/paperstand/internal/core/domain"
	"github.com/kirillkom/paperstand/internal/core/ports"
	"github.com/kirillkom/paperstand/internal/core/workflow"
	"github.com/kirillkom/paperstand/internal/infrastructure/chunking"
	"github.com/kirillkom/paperstand/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/paperstand/internal/infrastructure/parser/localpdf"
	"github.com/kirillkom/paperstand/internal/infrastructure/queue/nats"
	"github.com/kirillkom/paperstand/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/paperstand/internal/infrastructure/resilience"
	"github.com/kirillkom/paperstand/internal/infrastructure/search/duckduckgo"
	"github.com/kirillkom/paperstand/internal/infrastructure/search/tavily"
	"github.com/kirillkom/paperstand/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/paperstand/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/paperstand/internal/observability/logging"
	"github.com/kirillkom/paperstand/internal/observability/metrics"
)

// App wires every adapter behind the core ports. Configuration problems
// are the only errors that abort startup; runtime collaborator failures
// degrade inside the workflow instead.
type App struct {
	Config config.Config
	Log    *slog.Logger

	Registry ports.PaperRegistry
	Storage  ports.ObjectStorage
	Queue    ports.MessageQueue
	Workflow *workflow.Workflow

	MetricsRegistry *prometheus.Registry
	HTTPMetrics     *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	log := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(log)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.Connect(cfg.NATSURL, cfg.NATSSubject, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaVisionModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder, chunker, cfg.RAGTopK, executor)

	searcher, err := newWebSearcher(cfg, executor)
	if err != nil {
		queue.Close()
		db.Close()
		return nil, err
	}

	keywords, err := config.LoadVisionKeywords(cfg.VisionKeywordsFile)
	if err != nil {
		queue.Close()
		db.Close()
		return nil, domain.WrapError(domain.ErrConfiguration, "load vision keywords", err)
	}
	policy := workflow.NewVisionPolicy(ollamaClient, keywords, log)

	parser := localpdf.New(cfg.StoragePath, cfg.ImagesPath, 0)

	metricsRegistry := prometheus.NewRegistry()
	wfMetrics := metrics.NewWorkflowMetrics(metricsRegistry, service)
	httpMetrics := metrics.NewHTTPServerMetrics(metricsRegistry, service)

	wf := workflow.New(
		parser,
		index,
		searcher,
		ollamaClient,
		ollamaClient,
		policy,
		workflow.Config{
			WebMaxResults:    cfg.WebSearchMaxResults,
			WebSearchDepth:   cfg.WebSearchDepth,
			VisionMaxPages:   cfg.VisionMaxPages,
			VisionPageRadius: cfg.VisionPageRadius,
		},
		log,
		wfMetrics,
	)

	return &App{
		Config: cfg,
		Log:    log,

		Registry: registry,
		Storage:  storage,
		Queue:    queue,
		Workflow: wf,

		MetricsRegistry: metricsRegistry,
		HTTPMetrics:     httpMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// newWebSearcher selects the provider. Tavily needs an API key; a
// missing key is a configuration error, not a runtime degradation.
func newWebSearcher(cfg config.Config, executor *resilience.Executor) (ports.WebSearcher, error) {
	switch cfg.WebSearchProvider {
	case "tavily":
		if cfg.TavilyAPIKey == "" {
			return nil, domain.WrapError(domain.ErrConfiguration, "init web search",
				errors.New("TAVILY_API_KEY is required when WEB_SEARCH_PROVIDER=tavily"))
		}
		return tavily.New(cfg.TavilyAPIKey, executor), nil
	case "duckduckgo":
		return duckduckgo.New(executor), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "init web search",
			fmt.Errorf("unknown web search provider %q", cfg.WebSearchProvider))
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
