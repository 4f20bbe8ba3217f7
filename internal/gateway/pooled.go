package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

// pooledProvider is one entry of a task's fallback chain. Every call
// acquires a credential from the provider's pool, delegates to the cached
// concrete provider for that account, and reports the outcome back to the
// pool so flapping accounts rotate out.
type pooledProvider struct {
	g   *Gateway
	ref ModelRef
}

var _ llm.Provider = (*pooledProvider)(nil)

func (p *pooledProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	account, inst, err := p.acquire()
	if err != nil {
		return nil, err
	}
	resp, err := inst.Complete(ctx, req)
	if err != nil {
		return nil, p.reportFailure(account, err)
	}
	p.g.pools[p.ref.Provider].MarkSuccess(account)
	return resp, nil
}

func (p *pooledProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	account, inst, err := p.acquire()
	if err != nil {
		return nil, err
	}
	ch, err := inst.StreamCompletion(ctx, req)
	if err != nil {
		return nil, p.reportFailure(account, err)
	}
	p.g.pools[p.ref.Provider].MarkSuccess(account)
	return ch, nil
}

func (p *pooledProvider) CountTokens(messages []types.Message) (int, error) {
	_, inst, err := p.acquire()
	if err != nil {
		return 0, err
	}
	return inst.CountTokens(messages)
}

func (p *pooledProvider) Capabilities() types.ModelCapabilities {
	_, inst, err := p.acquire()
	if err != nil {
		return types.ModelCapabilities{}
	}
	return inst.Capabilities()
}

// acquire takes the next usable account and resolves the provider instance
// bound to it.
func (p *pooledProvider) acquire() (string, llm.Provider, error) {
	mgr, ok := p.g.pools[p.ref.Provider]
	if !ok {
		return "", nil, fmt.Errorf("gateway: no credential pool for provider %q", p.ref.Provider)
	}
	account, key, err := mgr.Acquire()
	if err != nil {
		return "", nil, err
	}
	inst, err := p.g.instance(p.ref, account, key)
	if err != nil {
		return "", nil, err
	}
	return account, inst, nil
}

// reportFailure classifies the provider error, updates pool bookkeeping,
// and returns the error the chain should see. Credential rejections come
// back sanitized.
func (p *pooledProvider) reportFailure(account string, err error) error {
	mgr := p.g.pools[p.ref.Provider]
	switch classify(err) {
	case kindRateLimit:
		mgr.MarkRateLimited(account, retryAfter(err))
		p.g.logger.Warn("provider account rate limited",
			"provider", p.ref.Provider, "account", account)
		return err
	case kindAuth:
		mgr.MarkError(account)
		p.g.logger.Error("provider rejected pool credentials",
			"provider", p.ref.Provider, "account", account, "error", err)
		return ErrServiceConfiguration
	default:
		mgr.MarkError(account)
		return err
	}
}

// errorKind buckets provider failures for pool bookkeeping.
type errorKind int

const (
	kindOther errorKind = iota
	kindAuth
	kindRateLimit
)

// statusCoder is implemented by SDK error types that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// classify inspects a provider error. SDK errors expose a status code;
// anything else falls back to message sniffing because the wrapped
// transports do not share an error type.
func classify(err error) errorKind {
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case 401, 403:
			return kindAuth
		case 429:
			return kindRateLimit
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return kindRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return kindAuth
	default:
		return kindOther
	}
}

// retryAfterer is implemented by SDK error types that carry the provider's
// reset hint.
type retryAfterer interface {
	RetryAfter() time.Duration
}

// retryAfter extracts the provider's rate-limit reset hint, defaulting to a
// fixed quarantine when none is given.
func retryAfter(err error) time.Duration {
	var ra retryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return d
		}
	}
	return rateLimitRequeue
}
