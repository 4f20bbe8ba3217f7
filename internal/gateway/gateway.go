// Package gateway routes LLM work to the right model with the right
// credentials.
//
// Every completion is tagged with a task name (question generation, answer
// evaluation, report generation, framing, resume analysis) and the gateway
// resolves it to a configured provider/model route with optional fallback
// models. Credentials come from the provider pool, or from the candidate's
// own key (BYOK) when one was registered for the interview. Provider
// credential failures are never surfaced to callers verbatim; they collapse
// into [ErrServiceConfiguration].
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/intervoq/intervoq/internal/pool"
	"github.com/intervoq/intervoq/internal/resilience"
	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/provider/llm/anyllm"
	"github.com/intervoq/intervoq/pkg/provider/llm/openai"
)

// ErrServiceConfiguration is the only error callers see when a provider
// rejects our credentials. The underlying provider message is logged, never
// returned, so key material and account details cannot leak to clients.
var ErrServiceConfiguration = errors.New("service configuration error")

// ErrUnknownTask is returned when a task has no route and no default route
// is configured.
var ErrUnknownTask = errors.New("gateway: no route for task")

// rateLimitRequeue is the quarantine applied when a provider rate-limits us
// without saying for how long.
const rateLimitRequeue = time.Minute

// ModelRef names one provider/model pair.
type ModelRef struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Route is the model chain for one task: the primary is tried first, then
// each fallback in order.
type Route struct {
	Primary   ModelRef   `json:"primary" yaml:"primary"`
	Fallbacks []ModelRef `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// BYOKStore looks up a candidate-supplied API key for an interview. Keys
// live only in the hot session store; an empty key with a nil error means
// the interview has none.
type BYOKStore interface {
	Key(ctx context.Context, interviewID string) (string, error)
}

// Factory builds a concrete llm.Provider for a provider name, model, and
// API key. Swapped out in tests.
type Factory func(providerName, model, apiKey string) (llm.Provider, error)

// Config configures a Gateway.
type Config struct {
	// Routes maps task names to model chains.
	Routes map[string]Route

	// Default serves tasks with no explicit route. A zero Default with a
	// missing route yields ErrUnknownTask.
	Default Route

	// Breaker tunes the per-route-entry circuit breakers.
	Breaker resilience.CircuitBreakerConfig

	Logger *slog.Logger
}

// Gateway implements task-routed LLM access. Safe for concurrent use.
type Gateway struct {
	cfg     Config
	pools   map[string]*pool.Manager
	byok    BYOKStore
	factory Factory
	logger  *slog.Logger

	mu        sync.Mutex
	instances map[string]llm.Provider
	chains    map[string]*resilience.LLMFallback
}

// Option configures optional Gateway behaviour.
type Option func(*Gateway)

// WithFactory replaces the default provider factory.
func WithFactory(f Factory) Option {
	return func(g *Gateway) { g.factory = f }
}

// New builds a gateway over the given per-provider credential pools. byok
// may be nil when candidate keys are not supported.
func New(cfg Config, pools map[string]*pool.Manager, byok BYOKStore, opts ...Option) (*Gateway, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	g := &Gateway{
		cfg:       cfg,
		pools:     pools,
		byok:      byok,
		factory:   defaultFactory,
		logger:    cfg.Logger,
		instances: map[string]llm.Provider{},
		chains:    map[string]*resilience.LLMFallback{},
	}
	for _, opt := range opts {
		opt(g)
	}

	for task, route := range cfg.Routes {
		if err := g.checkRoute(route); err != nil {
			return nil, fmt.Errorf("gateway: task %q: %w", task, err)
		}
	}
	return g, nil
}

func (g *Gateway) checkRoute(route Route) error {
	for _, ref := range append([]ModelRef{route.Primary}, route.Fallbacks...) {
		if ref.Provider == "" || ref.Model == "" {
			return fmt.Errorf("incomplete model reference %+v", ref)
		}
		if _, ok := g.pools[ref.Provider]; !ok {
			return fmt.Errorf("no credential pool for provider %q", ref.Provider)
		}
	}
	return nil
}

// Complete routes a completion for the given task. When the context carries
// an interview with a registered BYOK key, that key is used against the
// primary model and the pool is bypassed entirely.
func (g *Gateway) Complete(ctx context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	route, ok := g.route(task)
	if !ok {
		return llm.CompletionResponse{}, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	if p, ok, err := g.byokProvider(ctx, route.Primary); err != nil {
		return llm.CompletionResponse{}, err
	} else if ok {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			if classify(err) == kindAuth {
				g.logger.Warn("candidate key rejected by provider", "task", task, "error", err)
				return llm.CompletionResponse{}, fmt.Errorf("gateway: %s: %w", task, ErrServiceConfiguration)
			}
			return llm.CompletionResponse{}, fmt.Errorf("gateway: %s: %w", task, err)
		}
		return *resp, nil
	}

	resp, err := g.chain(task, route).Complete(ctx, req)
	if err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("gateway: %s: %w", task, err)
	}
	return *resp, nil
}

// Stream routes a streaming completion the same way Complete does.
func (g *Gateway) Stream(ctx context.Context, task string, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	route, ok := g.route(task)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}

	if p, ok, err := g.byokProvider(ctx, route.Primary); err != nil {
		return nil, err
	} else if ok {
		ch, err := p.StreamCompletion(ctx, req)
		if err != nil {
			if classify(err) == kindAuth {
				g.logger.Warn("candidate key rejected by provider", "task", task, "error", err)
				return nil, fmt.Errorf("gateway: %s: %w", task, ErrServiceConfiguration)
			}
			return nil, fmt.Errorf("gateway: %s: %w", task, err)
		}
		return ch, nil
	}

	ch, err := g.chain(task, route).StreamCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: %w", task, err)
	}
	return ch, nil
}

// route resolves the model chain for a task.
func (g *Gateway) route(task string) (Route, bool) {
	if r, ok := g.cfg.Routes[task]; ok {
		return r, true
	}
	if g.cfg.Default.Primary.Provider != "" {
		return g.cfg.Default, true
	}
	return Route{}, false
}

// byokProvider returns a provider bound to the candidate's own key when the
// context names an interview that registered one.
func (g *Gateway) byokProvider(ctx context.Context, ref ModelRef) (llm.Provider, bool, error) {
	interviewID := InterviewFromContext(ctx)
	if interviewID == "" || g.byok == nil {
		return nil, false, nil
	}
	key, err := g.byok.Key(ctx, interviewID)
	if err != nil {
		// A hot-store hiccup must not kill the turn; fall back to the pool.
		g.logger.Warn("byok lookup failed, using pooled credentials",
			"interview_id", interviewID, "error", err)
		return nil, false, nil
	}
	if key == "" {
		return nil, false, nil
	}
	p, err := g.factory(ref.Provider, ref.Model, key)
	if err != nil {
		g.logger.Warn("byok provider construction failed",
			"interview_id", interviewID, "provider", ref.Provider, "error", err)
		return nil, false, fmt.Errorf("gateway: %w", ErrServiceConfiguration)
	}
	return p, true, nil
}

// chain returns the persistent fallback chain for a task, building it on
// first use so circuit breaker state survives across calls.
func (g *Gateway) chain(task string, route Route) *resilience.LLMFallback {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.chains[task]; ok {
		return c
	}
	primaryName := route.Primary.Provider + "/" + route.Primary.Model
	c := resilience.NewLLMFallback(
		&pooledProvider{g: g, ref: route.Primary},
		primaryName,
		resilience.FallbackConfig{CircuitBreaker: g.cfg.Breaker, Logger: g.logger},
	)
	for _, ref := range route.Fallbacks {
		c.AddFallback(ref.Provider+"/"+ref.Model, &pooledProvider{g: g, ref: ref})
	}
	g.chains[task] = c
	return c
}

// instance returns a cached concrete provider for a (ref, account) pair.
func (g *Gateway) instance(ref ModelRef, account, key string) (llm.Provider, error) {
	cacheKey := ref.Provider + "|" + ref.Model + "|" + account
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.instances[cacheKey]; ok {
		return p, nil
	}
	p, err := g.factory(ref.Provider, ref.Model, key)
	if err != nil {
		return nil, err
	}
	g.instances[cacheKey] = p
	return p, nil
}

// defaultFactory builds real providers: OpenAI and OpenRouter through the
// openai-go SDK, everything else through any-llm-go.
func defaultFactory(providerName, model, apiKey string) (llm.Provider, error) {
	switch providerName {
	case "openai":
		return openai.New(apiKey, model)
	case "openrouter":
		return openai.New(apiKey, model, openai.WithBaseURL("https://openrouter.ai/api/v1"))
	default:
		return anyllm.New(providerName, model, anyllmlib.WithAPIKey(apiKey))
	}
}
