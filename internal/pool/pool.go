// Package pool manages a rotating set of provider API credentials.
//
// External speech and model providers rate-limit per key, so the service
// holds several accounts per provider and spreads interviews across them. A
// [Manager] hands out the next usable account per a configured strategy,
// tracks per-account errors and rate-limit windows, and quarantines accounts
// that keep failing so one dead key cannot take down the service.
package pool

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ErrNoAccounts is returned by Acquire when every account is unhealthy or
// inside a rate-limit window.
var ErrNoAccounts = errors.New("pool: no usable accounts")

// maxConsecutiveErrors is the error count beyond which an account is marked
// unhealthy until it next succeeds or is reset.
const maxConsecutiveErrors = 5

// Strategy selects which usable account Acquire returns.
type Strategy string

const (
	// StrategyRoundRobin picks the least recently used account.
	StrategyRoundRobin Strategy = "round_robin"

	// StrategyLeastUsed picks the account with the fewest total uses.
	StrategyLeastUsed Strategy = "least_used"

	// StrategyRandom picks a usable account uniformly at random.
	StrategyRandom Strategy = "random"
)

// ValidStrategies lists the accepted strategy names for config validation.
var ValidStrategies = []Strategy{StrategyRoundRobin, StrategyLeastUsed, StrategyRandom}

// Account is one provider credential with its health bookkeeping.
type Account struct {
	// Name identifies the account in logs and stats. Never the key itself.
	Name string

	// APIKey is the secret credential. It is never logged and never
	// leaves the process through Stats.
	APIKey string

	healthy          bool
	consecutiveErr   int
	usageCount       int64
	lastUsed         time.Time
	rateLimitedUntil time.Time
}

// AccountStats is the exported health snapshot of one account. It carries no
// credential material.
type AccountStats struct {
	Name             string    `json:"name"`
	Healthy          bool      `json:"healthy"`
	ConsecutiveErr   int       `json:"consecutive_errors"`
	UsageCount       int64     `json:"usage_count"`
	LastUsed         time.Time `json:"last_used,omitempty"`
	RateLimitedUntil time.Time `json:"rate_limited_until,omitempty"`
}

// Manager rotates accounts for a single provider. Safe for concurrent use.
type Manager struct {
	provider string
	strategy Strategy

	mu       sync.Mutex
	accounts []*Account
	rand     *rand.Rand
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSeed fixes the random source, for tests of the random strategy.
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.rand = rand.New(rand.NewSource(seed)) }
}

// NewManager builds a manager for one provider's credentials. Keys must be
// non-empty; duplicate names are rejected so stats stay unambiguous.
func NewManager(provider string, strategy Strategy, keys map[string]string, opts ...Option) (*Manager, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("pool: provider %q has no accounts", provider)
	}
	switch strategy {
	case StrategyRoundRobin, StrategyLeastUsed, StrategyRandom:
	default:
		return nil, fmt.Errorf("pool: unknown strategy %q", strategy)
	}

	m := &Manager{
		provider: provider,
		strategy: strategy,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	for name, key := range keys {
		if key == "" {
			return nil, fmt.Errorf("pool: account %q of provider %q has an empty key", name, provider)
		}
		m.accounts = append(m.accounts, &Account{Name: name, APIKey: key, healthy: true})
	}
	return m, nil
}

// Provider returns the provider name this pool serves.
func (m *Manager) Provider() string { return m.provider }

// Acquire returns the name and key of the next usable account per the
// configured strategy and records the use.
func (m *Manager) Acquire() (name, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	usable := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		if a.healthy && !now.Before(a.rateLimitedUntil) {
			usable = append(usable, a)
		}
	}
	if len(usable) == 0 {
		return "", "", fmt.Errorf("%w: provider %q", ErrNoAccounts, m.provider)
	}

	var chosen *Account
	switch m.strategy {
	case StrategyLeastUsed:
		chosen = usable[0]
		for _, a := range usable[1:] {
			if a.usageCount < chosen.usageCount {
				chosen = a
			}
		}
	case StrategyRandom:
		chosen = usable[m.rand.Intn(len(usable))]
	default: // round robin: least recently used
		chosen = usable[0]
		for _, a := range usable[1:] {
			if a.lastUsed.Before(chosen.lastUsed) {
				chosen = a
			}
		}
	}

	chosen.usageCount++
	chosen.lastUsed = now
	return chosen.Name, chosen.APIKey, nil
}

// MarkSuccess clears the account's consecutive error count and restores its
// health.
func (m *Manager) MarkSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(name); a != nil {
		a.consecutiveErr = 0
		a.healthy = true
	}
}

// MarkError records a failure. Crossing the consecutive-error limit marks
// the account unhealthy.
func (m *Manager) MarkError(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(name); a != nil {
		a.consecutiveErr++
		if a.consecutiveErr > maxConsecutiveErrors {
			a.healthy = false
		}
	}
}

// MarkRateLimited quarantines the account until the provider's reset time.
// Rate limits are not errors; the account stays healthy and returns to
// rotation when the window passes.
func (m *Manager) MarkRateLimited(name string, resetAfter time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(name); a != nil {
		a.rateLimitedUntil = m.now().Add(resetAfter)
	}
}

// Restore forces an unhealthy account back into rotation.
func (m *Manager) Restore(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.find(name); a != nil {
		a.healthy = true
		a.consecutiveErr = 0
		a.rateLimitedUntil = time.Time{}
	}
}

// Stats returns a health snapshot of every account, ordered by name on
// construction order. No credential material is included.
func (m *Manager) Stats() []AccountStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make([]AccountStats, 0, len(m.accounts))
	for _, a := range m.accounts {
		stats = append(stats, AccountStats{
			Name:             a.Name,
			Healthy:          a.healthy,
			ConsecutiveErr:   a.consecutiveErr,
			UsageCount:       a.usageCount,
			LastUsed:         a.lastUsed,
			RateLimitedUntil: a.rateLimitedUntil,
		})
	}
	return stats
}

// UsableCount reports how many accounts are currently in rotation. Health
// checks use this to flag a provider running on empty.
func (m *Manager) UsableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, a := range m.accounts {
		if a.healthy && !now.Before(a.rateLimitedUntil) {
			n++
		}
	}
	return n
}

// find returns the account with the given name. Must be called with m.mu
// held.
func (m *Manager) find(name string) *Account {
	for _, a := range m.accounts {
		if a.Name == name {
			return a
		}
	}
	return nil
}
