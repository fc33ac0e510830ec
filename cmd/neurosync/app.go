// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/neurosync/pkg/agent"
	"github.com/jllopis/neurosync/pkg/auth"
	"github.com/jllopis/neurosync/pkg/chat"
	"github.com/jllopis/neurosync/pkg/config"
	"github.com/jllopis/neurosync/pkg/fallback"
	"github.com/jllopis/neurosync/pkg/history"
	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/resilience"
	"github.com/jllopis/neurosync/pkg/search"
	"github.com/jllopis/neurosync/pkg/storage"
	"github.com/jllopis/neurosync/pkg/telemetry"
	"github.com/jllopis/neurosync/pkg/tools"
	"github.com/jllopis/neurosync/providers/gemini"
)

const serviceName = "neurosync"

// app holds what every command shares: configuration, logging, telemetry
// and the resources opened along the way.
type app struct {
	cfg        *config.Config
	configPath string
	json       bool
	log        *slog.Logger
	metrics    *telemetry.Metrics

	closeOnce sync.Once
	closers   []func() error
}

func newApp(global globalFlags, logOut io.Writer) (*app, error) {
	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		return nil, NewConfigError(err, global.ConfigPath)
	}

	a := &app{
		cfg:        cfg,
		configPath: global.ConfigPath,
		json:       global.JSON,
		log:        telemetry.ConfigureSlog(logOut, cfg.Log.Level, cfg.Log.Format),
	}

	shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName:  serviceName,
		Version:      version,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, NewConfigError(err, global.ConfigPath)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		a.log.Warn("telemetry.metrics_disabled", slog.String("error", err.Error()))
	}
	a.metrics = metrics
	return a, nil
}

// Close releases resources in reverse order. It is safe to call twice.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.log.Warn("app.close", slog.String("error", err.Error()))
			}
		}
	})
}

func (a *app) validate() error {
	if err := a.cfg.Validate(); err != nil {
		return NewConfigError(err, a.configPath)
	}
	return nil
}

// provider builds the remote model backend.
func (a *app) provider(ctx context.Context) (llm.Provider, error) {
	switch strings.ToLower(a.cfg.LLM.Provider) {
	case "gemini":
		p, err := gemini.New(ctx, a.cfg.LLM.APIKey,
			gemini.WithModel(a.cfg.LLM.Model),
			gemini.WithTemperature(a.cfg.LLM.Temperature),
			gemini.WithMaxOutputTokens(a.cfg.LLM.MaxOutputTokens),
		)
		if err != nil {
			return nil, NewProviderError(err, "gemini")
		}
		return p, nil
	case "mock":
		return &llm.MockProvider{Response: "This is a mock response."}, nil
	default:
		return nil, NewProviderError(nil, a.cfg.LLM.Provider)
	}
}

func (a *app) limiter() *resilience.Limiter {
	return resilience.NewLimiter(
		resilience.WithMinInterval(a.cfg.RateLimit.MinInterval),
		resilience.WithCooldown(a.cfg.RateLimit.Cooldown),
		resilience.WithObserver(
			func(d time.Duration) { a.metrics.RecordLimiterWait(context.Background(), d) },
			func(err error) { a.metrics.RecordLimiterRetry(context.Background(), err) },
		),
	)
}

func (a *app) searchClients() (*search.DuckDuckGo, *search.Wikipedia) {
	opts := []search.Option{
		search.WithUserAgent(a.cfg.Search.UserAgent),
		search.WithMaxResults(a.cfg.Search.MaxResults),
	}
	web := search.NewDuckDuckGo(opts...)
	wiki := search.NewWikipedia(append(opts, search.WithLanguage(a.cfg.Search.WikipediaLang))...)
	return web, wiki
}

// agentFactory builds one agent per session. Each agent gets its own
// limiter, shared by its reasoning loop and its prompt tools.
func (a *app) agentFactory(model llm.Provider) chat.Factory {
	web, wiki := a.searchClients()
	modelID := a.cfg.LLM.Model

	return func() (*agent.Agent, error) {
		limiter := a.limiter()
		loop := agent.NewToolLoop(model, limiter,
			agent.WithModelID(modelID),
			agent.WithMaxIterations(a.cfg.LLM.MaxIterations),
			agent.WithSampling(a.cfg.LLM.Temperature, a.cfg.LLM.MaxOutputTokens),
			agent.WithLoopLogger(a.log),
			agent.WithLoopMetrics(a.metrics),
		)
		return agent.New(
			agent.WithReasoner(loop),
			agent.WithGenerators(
				tools.NewRoadmapGenerator(model, limiter, modelID),
				tools.NewCodeHelper(model, limiter, modelID),
			),
			agent.WithSearch(web, wiki),
			agent.WithWindow(a.cfg.Memory.Window),
			agent.WithLogger(a.log),
			agent.WithMetrics(a.metrics),
		)
	}
}

// localResponder returns the fallback responder, or nil when disabled.
// An unreachable local model is logged, not fatal: it may come up later.
func (a *app) localResponder(ctx context.Context) *fallback.LocalResponder {
	if !a.cfg.Fallback.Enabled {
		return nil
	}
	model := llm.NewOllama(a.cfg.Fallback.BaseURL, llm.WithOllamaModel(a.cfg.Fallback.Model))
	r := fallback.New(model, fallback.WithModelID(a.cfg.Fallback.Model), fallback.WithLogger(a.log))

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Probe(probeCtx); err != nil {
		a.log.Warn("fallback.unavailable",
			slog.String("base_url", a.cfg.Fallback.BaseURL),
			slog.String("error", err.Error()),
		)
	}
	return r
}

func (a *app) openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, NewStorageError(err, path)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *app) userStore(ctx context.Context) (*auth.Store, error) {
	db, err := a.openDB(ctx, a.cfg.Storage.AuthPath)
	if err != nil {
		return nil, err
	}
	return auth.NewStore(ctx, db, auth.WithSessionTTL(a.cfg.Session.TTL))
}

func (a *app) historyStore(ctx context.Context) (*history.Store, error) {
	db, err := a.openDB(ctx, a.cfg.Storage.ChatPath)
	if err != nil {
		return nil, err
	}
	return history.NewStore(ctx, db)
}

// service wires the chat service. users and store may be nil for
// transports that only answer messages; the factory is returned for them.
func (a *app) service(ctx context.Context, users *auth.Store, store *history.Store) (*chat.Service, chat.Factory, error) {
	model, err := a.provider(ctx)
	if err != nil {
		return nil, nil, err
	}
	factory := a.agentFactory(model)
	opts := []chat.Option{
		chat.WithWindow(a.cfg.Memory.Window),
		chat.WithLogger(a.log),
		chat.WithMetrics(a.metrics),
	}
	if local := a.localResponder(ctx); local != nil {
		opts = append(opts, chat.WithFallback(local))
	}
	return chat.NewService(users, store, factory, opts...), factory, nil
}
