// Package app wires all Intervoq subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP/WebSocket traffic until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithInterviewStore, WithCompleter, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intervoq/intervoq/internal/config"
	"github.com/intervoq/intervoq/internal/gateway"
	"github.com/intervoq/intervoq/internal/health"
	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/observe"
	"github.com/intervoq/intervoq/internal/pool"
	"github.com/intervoq/intervoq/internal/server"
	"github.com/intervoq/intervoq/internal/session"
	"github.com/intervoq/intervoq/internal/turn"
	"github.com/intervoq/intervoq/pkg/memory"
	"github.com/intervoq/intervoq/pkg/memory/postgres"
	"github.com/intervoq/intervoq/pkg/provider/embeddings"
	"github.com/intervoq/intervoq/pkg/provider/stt"
	"github.com/intervoq/intervoq/pkg/provider/tts"
	"github.com/intervoq/intervoq/pkg/types"
)

// defaultListenAddr is used when the config does not set one.
const defaultListenAddr = ":8080"

// shutdownGrace bounds how long a single closer may take during Shutdown
// when the caller's context carries no deadline of its own.
const shutdownGrace = 10 * time.Second

// Providers holds one interface value per media provider slot. Nil means the
// provider is not configured: without TTS the interviewer falls back to
// text-only questions, without embeddings the duplicate-question guard is
// skipped, and without a token-granting STT provider browsers cannot stream
// audio directly.
type Providers struct {
	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and serves the interview engine.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	interviews memory.InterviewStore
	reports    memory.ReportStore
	questions  memory.QuestionIndex
	hot        session.HotClient
	sessions   *session.Store
	completer  interview.Completer
	pools      map[string]*pool.Manager
	selector   *interview.Selector
	analyzer   *interview.ResumeAnalyzer
	turns      *turn.Orchestrator
	server     *server.Server
	httpSrv    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithInterviewStore injects an interview store instead of connecting to Postgres.
func WithInterviewStore(s memory.InterviewStore) Option {
	return func(a *App) { a.interviews = s }
}

// WithReportStore injects a report store instead of connecting to Postgres.
func WithReportStore(s memory.ReportStore) Option {
	return func(a *App) { a.reports = s }
}

// WithQuestionIndex injects a question vector index instead of connecting to Postgres.
func WithQuestionIndex(idx memory.QuestionIndex) Option {
	return func(a *App) { a.questions = idx }
}

// WithHotClient injects a hot-tier client instead of connecting to Redis.
func WithHotClient(c session.HotClient) Option {
	return func(a *App) { a.hot = c }
}

// WithCompleter injects an LLM completer instead of building the gateway
// and its credential pools from config.
func WithCompleter(c interview.Completer) Option {
	return func(a *App) { a.completer = c }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: telemetry setup, memory
// store connection, credential pool and gateway construction, interview
// engine assembly, and HTTP server construction. Nothing listens until Run.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Durable memory ────────────────────────────────────────────────
	if err := a.initMemory(ctx); err != nil {
		return nil, fmt.Errorf("app: init memory: %w", err)
	}

	// ── 3. Hot tier + session store ──────────────────────────────────────
	if err := a.initSessions(); err != nil {
		return nil, fmt.Errorf("app: init sessions: %w", err)
	}

	// ── 4. LLM gateway ───────────────────────────────────────────────────
	if err := a.initGateway(); err != nil {
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}

	// ── 5. Interview engine ──────────────────────────────────────────────
	a.initEngine()

	// ── 6. Turn orchestrator ─────────────────────────────────────────────
	a.turns = turn.New(turn.Config{
		Evaluator: interview.NewEvaluator(a.completer, slog.Default()),
		Selector:  a.selector,
		Framer:    interview.NewFramer(a.completer, slog.Default()),
		Reporter:  interview.NewReporter(a.completer, slog.Default()),
		Store:     a.sessions,
		Reports:   a.reports,
	})

	// ── 7. HTTP server ───────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry sets up the OpenTelemetry trace and metric providers and
// registers their flush as a closer.
func (a *App) initTelemetry(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return shutdown(flushCtx)
	})
	return nil
}

// initMemory connects to Postgres unless all durable stores were injected.
func (a *App) initMemory(ctx context.Context) error {
	if a.interviews != nil && a.reports != nil && a.questions != nil {
		slog.Debug("using injected durable stores")
		return nil
	}

	dsn := a.cfg.Memory.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("memory.postgres_dsn is required")
	}

	dims := a.cfg.Memory.EmbeddingDimensions
	if dims <= 0 {
		dims = 1536 // sensible default for OpenAI text-embedding-3-small
	}

	store, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})

	if a.interviews == nil {
		a.interviews = store
	}
	if a.reports == nil {
		a.reports = store
	}
	if a.questions == nil {
		a.questions = store
	}
	return nil
}

// initSessions connects the Redis hot tier and builds the two-tier session
// store over it and the durable interview store.
func (a *App) initSessions() error {
	if a.hot == nil {
		addr := a.cfg.Memory.RedisAddr
		if addr == "" {
			return fmt.Errorf("memory.redis_addr is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: a.cfg.Memory.RedisPassword,
		})
		a.closers = append(a.closers, client.Close)
		a.hot = client
	}

	a.sessions = session.NewStore(a.hot, a.interviews)
	return nil
}

// initGateway builds one credential pool per configured provider and the
// task-routed gateway over them. Skipped entirely when a completer was
// injected.
func (a *App) initGateway() error {
	if a.completer != nil {
		return nil
	}

	llmCfg := a.cfg.Providers.LLM
	if len(llmCfg.Accounts) == 0 {
		return fmt.Errorf("no llm accounts configured")
	}

	strategy := llmCfg.PoolStrategy
	if strategy == "" {
		strategy = pool.StrategyRoundRobin
	}

	a.pools = make(map[string]*pool.Manager, len(llmCfg.Accounts))
	for provider, accounts := range llmCfg.Accounts {
		keys := make(map[string]string, len(accounts))
		for _, acct := range accounts {
			keys[acct.Name] = acct.APIKey
		}
		mgr, err := pool.NewManager(provider, strategy, keys)
		if err != nil {
			return fmt.Errorf("pool for %s: %w", provider, err)
		}
		a.pools[provider] = mgr
	}

	gw, err := gateway.New(gateway.Config{
		Routes:  llmCfg.Routes,
		Default: llmCfg.DefaultRoute,
	}, a.pools, a.sessions)
	if err != nil {
		return err
	}
	a.completer = gw
	return nil
}

// initEngine assembles the question selector and resume analyzer. The
// duplicate-question guard is only wired when an embeddings provider is
// configured.
func (a *App) initEngine() {
	questions := interview.NewPool()
	generator := interview.NewLLMGenerator(a.completer)

	var selectorOpts []interview.SelectorOption
	if a.providers.Embeddings != nil {
		guard := interview.NewSimilarityGuard(
			a.providers.Embeddings,
			session.NewQuestionIndex(a.questions),
		)
		selectorOpts = append(selectorOpts, interview.WithValidator(guard))
	} else {
		slog.Warn("no embeddings provider configured, duplicate-question guard disabled")
	}

	a.selector = interview.NewSelector(questions, generator, selectorOpts...)
	a.analyzer = interview.NewResumeAnalyzer(a.completer)
}

// initServer builds the HTTP/WebSocket server and the health surface.
func (a *App) initServer() {
	var tokens server.TokenGranter
	if tg, ok := a.providers.STT.(server.TokenGranter); ok {
		tokens = tg
	}

	var timeLimit time.Duration
	if m := a.cfg.Interview.TimeLimitMinutes; m > 0 {
		timeLimit = time.Duration(m) * time.Minute
	}

	a.server = server.New(server.Config{
		Sessions:   a.sessions,
		Turns:      a.turns,
		Selector:   a.selector,
		Analyzer:   a.analyzer,
		Reports:    a.reports,
		Interviews: a.interviews,
		Tokens:     tokens,
		STT:        a.providers.STT,
		TTS:        a.providers.TTS,
		Voice:      configVoiceProfile(a.cfg.Interview.Voice),
		TimeLimit:  timeLimit,
		Health:     health.New(a.healthCheckers()...),
	})

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// healthCheckers builds readiness checks for whichever backends are real
// connections. Injected fakes that lack a Ping method are simply not checked.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker

	if p, ok := a.interviews.(interface{ Ping(context.Context) error }); ok {
		checkers = append(checkers, health.Checker{
			Name:  "postgres",
			Check: p.Ping,
		})
	}

	if c, ok := a.hot.(*redis.Client); ok {
		checkers = append(checkers, health.Checker{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return c.Ping(ctx).Err()
			},
		})
	}

	if len(a.pools) > 0 {
		pools := a.pools
		checkers = append(checkers, health.Checker{
			Name: "llm_pools",
			Check: func(context.Context) error {
				for provider, mgr := range pools {
					if mgr.UsableCount() == 0 {
						return fmt.Errorf("no usable %s accounts", provider)
					}
				}
				return nil
			},
		})
	}

	return checkers
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and WebSocket traffic until ctx is cancelled or the
// listener fails. On cancellation the server is drained before returning
// ctx.Err().
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "listen_addr", a.httpSrv.Addr, "tls", a.cfg.Server.TLS != nil)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.httpSrv.Shutdown(drainCtx); err != nil {
		slog.Warn("http drain error", "err", err)
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// configVoiceProfile converts a config.VoiceConfig to a types.VoiceProfile.
func configVoiceProfile(vc config.VoiceConfig) types.VoiceProfile {
	return types.VoiceProfile{
		ID:          vc.VoiceID,
		Provider:    vc.Provider,
		SpeedFactor: vc.SpeedFactor,
	}
}
