// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package studio provides the core studio service for AleutianStudio.
//
// This package contains the main Service type that coordinates all
// components: HTTP routing, the lyrics pipeline, the song provider client,
// the status synchronizer, session persistence, and observability
// infrastructure.
//
// # Enterprise Integration
//
// The studio supports dependency injection via extensions.ServiceOptions,
// enabling custom implementations of:
//   - AuthProvider: Custom authentication (JWT, API keys)
//   - AuditLogger: Compliance audit logging
//   - MessageFilter: Content filtering on prompts and generated lyrics
//   - ArtifactArchiver: Durable storage for completed songs
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := studio.Config{Port: 12250}
//	svc, err := studio.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianStudio/pkg/extensions"
	"github.com/AleutianAI/AleutianStudio/services/llm"
	"github.com/AleutianAI/AleutianStudio/services/songgen"
	"github.com/AleutianAI/AleutianStudio/services/studio/handlers"
	"github.com/AleutianAI/AleutianStudio/services/studio/observability"
	"github.com/AleutianAI/AleutianStudio/services/studio/quota"
	"github.com/AleutianAI/AleutianStudio/services/studio/routes"
	"github.com/AleutianAI/AleutianStudio/services/studio/storage"
	"github.com/AleutianAI/AleutianStudio/services/studio/tasksync"
	"github.com/AleutianAI/AleutianStudio/services/studio/variation"
	"github.com/AleutianAI/AleutianStudio/services/studio/workspace"
)

// Service defines the contract for the studio service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// Config holds studio service configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12250
	Port int

	// LLMBackend selects the lyrics backend: "ollama" or "openai".
	// Default: "ollama"
	LLMBackend string

	// ProviderURL is the song provider's REST base URL. Required.
	ProviderURL string

	// ProviderWSURL is the provider's push websocket URL (ws:// or wss://).
	// If empty, the synchronizer runs in poll-only mode.
	ProviderWSURL string

	// ProviderAPIKey authenticates against the provider. Optional.
	ProviderAPIKey string

	// DataDir is the BadgerDB directory for session persistence.
	// If empty, an in-memory database is used (state is lost on restart).
	DataDir string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// PollInterval is the status poll cadence. Default: 5s
	PollInterval time.Duration

	// PollCrossCheck keeps polling as a redundant cross-check while the
	// push channel is healthy. Default: false
	PollCrossCheck bool

	// TerminalTimeout is the task watchdog window. Default: 90s
	TerminalTimeout time.Duration
}

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config Config
	opts   extensions.ServiceOptions
	router *gin.Engine

	// baseCtx bounds background work that outlives any single request,
	// like task subscriptions. Cancelled on shutdown.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	db        *storage.DB
	store     *storage.SessionStore
	workspace *workspace.Workspace
	pipeline  *llm.Pipeline
	provider  *songgen.Client
	sync      *tasksync.Synchronizer
	selector  *variation.Selector
	gate      *quota.Gate
	metrics   *observability.StudioMetrics

	tracerCleanup func(context.Context)
}

// New creates a studio Service with the given configuration.
//
// # Description
//
// New initializes all studio components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Opens BadgerDB and resumes the persisted session
//  5. Creates the lyrics pipeline for the configured backend
//  6. Creates the song provider client, synchronizer, selector, and gate
//  7. Sets up HTTP routes with extension options
//
// If opts is nil, extensions.DefaultOptions() is used.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the studio")
	}

	if err := s.initStorage(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize lyrics pipeline: %w", err)
	}

	if err := s.initProvider(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize song provider: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting studio server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12250
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.TerminalTimeout == 0 {
		cfg.TerminalTimeout = 90 * time.Second
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing via OTLP gRPC.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("studio-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initStorage opens BadgerDB and resumes the persisted session.
func (s *service) initStorage() error {
	var err error
	if s.config.DataDir == "" {
		slog.Warn("DataDir not configured, session state will not survive restarts")
		s.db, err = storage.OpenInMemory()
	} else {
		dbCfg := storage.DefaultConfig()
		dbCfg.Path = s.config.DataDir
		s.db, err = storage.OpenDB(dbCfg)
	}
	if err != nil {
		return err
	}

	s.store = storage.NewSessionStore(s.db)
	s.workspace = workspace.New(s.store, slog.Default())
	if err := s.workspace.Load(context.Background()); err != nil {
		// A corrupt session is not fatal; start fresh.
		slog.Error("failed to resume persisted session, starting fresh", "error", err)
	}
	return nil
}

// initPipeline creates the lyrics backend and pipeline.
func (s *service) initPipeline() error {
	var client llm.LLMClient
	var err error

	switch s.config.LLMBackend {
	case "ollama":
		client, err = llm.NewOllamaClient()
		slog.Info("Using Ollama lyrics backend")
	case "openai":
		client, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI lyrics backend")
	default:
		return fmt.Errorf("unknown lyrics backend %q", s.config.LLMBackend)
	}
	if err != nil {
		return err
	}

	s.pipeline = llm.NewPipeline(client)
	return nil
}

// initProvider creates the song provider client and everything downstream
// of it: the synchronizer, the variation selector, and the rate gate.
func (s *service) initProvider() error {
	if s.config.ProviderURL == "" {
		return errors.New("ProviderURL must be configured")
	}

	s.provider = songgen.NewClient(s.config.ProviderURL, s.config.ProviderAPIKey)
	s.gate = quota.NewGate(s.provider)
	s.selector = variation.NewSelector(s.provider, s.store, slog.Default())

	// Resume persisted primary selections.
	selections, err := s.store.LoadSelections(context.Background())
	if err != nil {
		slog.Error("failed to load persisted selections", "error", err)
	}
	for taskID, index := range selections {
		s.selector.RestoreSelection(taskID, index)
	}

	var dialer tasksync.StreamDialer
	if s.config.ProviderWSURL != "" {
		dialer = songgen.NewStreamDialer(s.config.ProviderWSURL,
			s.config.ProviderAPIKey, slog.Default())
	} else {
		slog.Warn("ProviderWSURL not configured, running in poll-only mode")
	}

	syncer, err := tasksync.New(tasksync.Config{
		Fetcher:         s.provider,
		Dialer:          dialer,
		PollInterval:    s.config.PollInterval,
		PollCrossCheck:  s.config.PollCrossCheck,
		TerminalTimeout: s.config.TerminalTimeout,
		Hooks:           s.syncHooks(),
	})
	if err != nil {
		return err
	}
	s.sync = syncer
	return nil
}

// syncHooks bridges synchronizer events to metrics, the variation
// selector, and the artifact archiver.
func (s *service) syncHooks() tasksync.Hooks {
	return tasksync.Hooks{
		OnApplied: func(u tasksync.TaskUpdate, task tasksync.GenerationTask) {
			if s.metrics != nil {
				s.metrics.RecordApplied(string(u.Source))
			}
			if len(task.Variations) > 0 {
				s.selector.SetVariations(task.TaskID, task.Variations)
			}
			if task.Status == tasksync.StatusCompleted {
				if s.metrics != nil {
					s.metrics.ActiveSubscriptions.Dec()
				}
				go s.archivePrimary(task)
			} else if task.Status.IsTerminal() && s.metrics != nil {
				s.metrics.ActiveSubscriptions.Dec()
			}
		},
		OnDropped: func(u tasksync.TaskUpdate, reason tasksync.DropReason) {
			if s.metrics != nil {
				s.metrics.RecordDropped(string(u.Source), string(reason))
			}
		},
		OnReconnect: func(taskID string, attempt int) {
			if s.metrics != nil {
				s.metrics.ReconnectsTotal.Inc()
			}
		},
		OnTimeout: func(taskID string) {
			if s.metrics != nil {
				s.metrics.WatchdogTimeoutsTotal.Inc()
			}
		},
	}
}

// archivePrimary streams the completed task's primary audio to the
// configured archiver. With the default NopArtifactArchiver this is a
// no-op beyond the download skip below.
func (s *service) archivePrimary(task tasksync.GenerationTask) {
	if _, isNop := s.opts.ArtifactArchiver.(*extensions.NopArtifactArchiver); isNop {
		return
	}

	if len(task.Variations) == 0 {
		return
	}
	primary := s.selector.Primary(task.TaskID)
	if primary < 0 || primary >= len(task.Variations) {
		primary = 0
	}
	v := task.Variations[primary]

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.AudioURL, nil)
	if err != nil {
		slog.Error("artifact request failed", "task_id", task.TaskID, "error", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("artifact download failed", "task_id", task.TaskID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("artifact download rejected",
			"task_id", task.TaskID, "status", resp.StatusCode)
		return
	}

	artifact := extensions.Artifact{
		TaskID:      task.TaskID,
		AudioID:     v.AudioID,
		Name:        task.TaskID + "/primary.mp3",
		ContentType: "audio/mpeg",
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.opts.ArtifactArchiver.Archive(ctx, artifact, resp.Body); err != nil {
		slog.Error("artifact archive failed", "task_id", task.TaskID, "error", err)
		return
	}
	slog.Info("archived primary variation", "task_id", task.TaskID, "audio_id", v.AudioID)
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("studio-service"))

	deps := &handlers.Deps{
		Workspace: s.workspace,
		Pipeline:  s.pipeline,
		Songs:     s.provider,
		Sync:      s.sync,
		Selector:  s.selector,
		Gate:      s.gate,
		Audit:     s.opts.AuditLogger,
		Filter:    s.opts.MessageFilter,
		Metrics:   s.metrics,
		Logger:    slog.Default(),
		BaseCtx:   s.baseCtx,
	}
	routes.SetupRoutes(s.router, deps, s.opts)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.baseCancel != nil {
		s.baseCancel()
	}
	if s.sync != nil {
		s.sync.Close()
	}
	if s.selector != nil {
		s.selector.Wait()
	}
	if s.workspace != nil {
		s.workspace.Flush()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("database close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// Compile-time interface compliance.
var _ Service = (*service)(nil)
