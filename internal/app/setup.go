package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/db"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/cases"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chat"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/chatlog"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/config"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/genai"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/prompt"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/retrieval"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/session"
)

// Genkit provider names for the two chat endpoints and the embedder. Each is
// a separate OpenAI-compatible plugin instance so they can point at
// independently deployed model servers.
const (
	providerRephraser = "rephraser"
	providerAnswerer  = "answerer"
	providerEmbedder  = "embeddings"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, models, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	var limiter *rate.Limiter
	if cfg.ModelRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ModelRateLimit), cfg.ModelRateBurst)
	}

	rephraser := genai.NewClient(g, models.rephrase,
		cfg.Temperature, cfg.RephraseMaxTokens,
		cfg.RephraseTimeout, genai.DefaultRetryConfig(), limiter, logger)
	answerer := genai.NewClient(g, models.answer,
		cfg.Temperature, cfg.AnswerMaxTokens,
		0, genai.DefaultRetryConfig(), limiter, logger)
	embedder := genai.NewEmbedder(models.embedder, cfg.EmbedTimeout)

	passages := retrieval.NewStore(pool, logger)
	retriever := retrieval.NewRetriever(passages, cfg.SearchTimeout, 2, logger)

	a.Orchestrator = chat.New(chat.Config{
		Sessions:  session.NewStore(cfg.SessionTimeout, logger),
		Composer:  prompt.NewComposer(cfg.RephraseHistoryTurns, cfg.AnswerHistoryTurns),
		Rephraser: rephraser,
		Answerer:  answerer,
		Embedder:  embedder,
		Searcher:  retriever,
		Cases:     cases.NewStore(pool, cfg.CaseLookupTimeout, logger),
		Sink:      chatlog.NewSink(pool, cfg.ChatLogTable, cfg.LogSinkTimeout, logger),
		TopK:      cfg.SearchResultSize,
		Logger:    logger,
	})

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization
// so Genkit's TracerProvider is ready when the first span starts.
//
// Traces are exported to a local collector agent via OTLP HTTP. The agent
// handles authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	tc := cfg.Trace
	if !tc.Enabled {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this function is called
	// exactly once during startup in Setup, before goroutines are spawned.
	if tc.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tc.ServiceName)
	}
	if tc.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tc.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tc.AgentHost),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"agent", tc.AgentHost,
		"service", tc.ServiceName,
		"environment", tc.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// modelSet holds the resolved model and embedder handles.
type modelSet struct {
	rephrase ai.Model
	answer   ai.Model
	embedder ai.Embedder
}

// provideGenkit initializes Genkit with the configured provider and resolves
// the three model handles the pipeline needs. The "openai" provider covers
// any OpenAI-compatible server (vLLM in production); "ollama" is for local
// development.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, modelSet, error) {
	var ms modelSet

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, ms, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ms.rephrase = ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.RephraseModel,
			Type: "chat",
		}, nil)
		ms.answer = ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.AnswerModel,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		ms.embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized Genkit with ollama provider",
			"rephrase_model", cfg.RephraseModel,
			"answer_model", cfg.AnswerModel,
			"host", cfg.OllamaHost)
		return g, ms, nil

	default: // "openai"
		rephrasePlugin := openAICompatible(providerRephraser, cfg.RephraseBaseURL, cfg.ModelAPIKey)
		answerPlugin := openAICompatible(providerAnswerer, cfg.AnswerBaseURL, cfg.ModelAPIKey)
		embedPlugin := openAICompatible(providerEmbedder, cfg.EmbedderBaseURL, cfg.ModelAPIKey)

		g := genkit.Init(ctx, genkit.WithPlugins(rephrasePlugin, answerPlugin, embedPlugin))
		if g == nil {
			return nil, ms, errors.New("initializing genkit with openai provider")
		}

		var err error
		if ms.rephrase, err = rephrasePlugin.DefineModel(g, providerRephraser, cfg.RephraseModel, chatModelInfo(cfg.RephraseModel)); err != nil {
			return nil, ms, fmt.Errorf("defining rephrase model: %w", err)
		}
		if ms.answer, err = answerPlugin.DefineModel(g, providerAnswerer, cfg.AnswerModel, chatModelInfo(cfg.AnswerModel)); err != nil {
			return nil, ms, fmt.Errorf("defining answer model: %w", err)
		}
		if ms.embedder, err = embedPlugin.DefineEmbedder(g, providerEmbedder, cfg.EmbedderModel); err != nil {
			return nil, ms, fmt.Errorf("defining embedder: %w", err)
		}

		logger.Info("initialized Genkit with openai-compatible provider",
			"rephrase_model", cfg.RephraseModel,
			"answer_model", cfg.AnswerModel,
			"embedder_model", cfg.EmbedderModel)
		return g, ms, nil
	}
}

// openAICompatible builds one OpenAI-compatible plugin instance pointed at
// its own base URL.
func openAICompatible(provider, baseURL, apiKey string) *compat_oai.OpenAICompatible {
	return &compat_oai.OpenAICompatible{
		Provider: provider,
		Opts: []option.RequestOption{
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
		},
	}
}

// chatModelInfo describes the capabilities of the deployed chat models.
func chatModelInfo(name string) ai.ModelInfo {
	return ai.ModelInfo{
		Label: name,
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}
}
