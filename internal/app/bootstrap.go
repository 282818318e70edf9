// Package app wires the validator runtime's components together from a
// loaded config.Config: session/token registries, the budget tracker, the
// tool registry and dispatcher, the sandbox manager, the invoker,
// orchestrator, scoring service, and batch scheduler. Grounded on the
// teacher's internal/gateway service-construction pattern (one bootstrap
// function assembling every collaborator from config before the command
// handlers run).
package app

import (
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/nexus/internal/backoff"
	"github.com/haasonsaas/nexus/internal/bittensor"
	"github.com/haasonsaas/nexus/internal/budget"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/dispatch"
	"github.com/haasonsaas/nexus/internal/invoker"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/receiptlog"
	"github.com/haasonsaas/nexus/internal/retry"
	"github.com/haasonsaas/nexus/internal/sandbox"
	"github.com/haasonsaas/nexus/internal/scheduler"
	"github.com/haasonsaas/nexus/internal/scoring"
	"github.com/haasonsaas/nexus/internal/sessionreg"
	"github.com/haasonsaas/nexus/internal/staging"
	"github.com/haasonsaas/nexus/internal/tools"
)

// App bundles every long-lived collaborator the serve and batch-run
// commands need, constructed once from a loaded config.
type App struct {
	Config *config.Config
	Logger *observability.Logger

	Sessions *sessionreg.Registry
	Tokens   *sessionreg.TokenRegistry
	Receipts *receiptlog.Log

	ToolRegistry *tools.Registry
	Tracker      *budget.Tracker
	Dispatcher   *dispatch.Dispatcher
	DispatchHTTP *dispatch.Server

	Staging      *staging.Store
	Sandboxes    *sandbox.Manager
	Invoker      *invoker.Invoker
	Scorer       *scoring.Service
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// Build constructs an App from cfg. hostContainerURL is the address the
// sandboxed agent's tool proxy calls back to reach this process's
// /v1/tools/execute endpoint (spec §4.8's x-caster-host-container-url
// header).
func Build(cfg *config.Config, hostContainerURL string) (*App, error) {
	logger := observability.MustNewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	sessions := sessionreg.NewRegistry()
	tokens := sessionreg.NewTokenRegistry()
	receipts := receiptlog.New()

	allowedModels := cfg.Pricing.AllowedToolModels
	if len(allowedModels) == 0 {
		allowedModels = budget.DefaultAllowedToolModels
	}
	tracker := budget.NewTracker(allowedModels)

	openaiClient := newOpenAIClient(cfg.LLM)
	httpClient := &http.Client{}

	webSearch := tools.NewSearchWeb(tools.SearchWebConfig{}, httpClient)
	registry := tools.NewRegistry(
		tools.TestTool{},
		tools.NewToolingInfo(nil),
		webSearch,
		tools.NewSearchX(tools.SearchXConfig{}, httpClient),
		tools.NewSearchAI(tools.SearchAIConfig{}, webSearch, openaiClient),
		tools.NewLLMChat(tools.LLMChatConfig{AllowedModels: allowedModels}, openaiClient),
		tools.NewSearchRepo(tools.SearchRepoConfig{}, httpClient),
		tools.NewGetRepoFile(tools.GetRepoFileConfig{}, httpClient),
		tools.NewSearchItems(tools.SearchItemsConfig{}, nil),
	)

	dispatcher := dispatch.New(sessions, tokens, registry, tracker, receipts)

	allowList := bittensor.AllowList(cfg.Bittensor.AllowedSS58)
	dispatchHTTP := dispatch.NewServer(dispatcher, allowList, logger)

	stagingStore := staging.New(cfg.Staging.StateDir)

	seccompPath := "" // populated by deployment tooling; empty disables the flag
	sandboxManager := sandbox.New(cfg.Sandbox, seccompPath)

	inv := invoker.New(sessions, tokens, receipts)

	retryPolicy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff: backoff.BackoffPolicy{
			InitialMs: float64(cfg.Retry.InitialMs),
			MaxMs:     float64(cfg.Retry.MaxMs),
			Factor:    cfg.Retry.Factor,
			Jitter:    cfg.Retry.Jitter,
		},
	}
	scorer := scoring.New(openaiClient, cfg.LLM.GraderModel, retryPolicy)

	orch := orchestrator.New(inv, receipts, scorer, sessions)

	sched := scheduler.New(sandboxManager, sessions, tokens, inv, orch, hostContainerURL, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Sessions:     sessions,
		Tokens:       tokens,
		Receipts:     receipts,
		ToolRegistry: registry,
		Tracker:      tracker,
		Dispatcher:   dispatcher,
		DispatchHTTP: dispatchHTTP,
		Staging:      stagingStore,
		Sandboxes:    sandboxManager,
		Invoker:      inv,
		Scorer:       scorer,
		Orchestrator: orch,
		Scheduler:    sched,
	}, nil
}

func newOpenAIClient(cfg config.LLMConfig) *openai.Client {
	if cfg.APIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
