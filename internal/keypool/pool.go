package keypool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/samber/mo"

	"github.com/keymux/keymux/internal/ratelimit"
)

// Errors returned by Pool.
var (
	// ErrNoAvailableKey is returned by Acquire when every key is disabled,
	// cooling down, excluded, or paced out. This is a normal saturation
	// condition, not a bug.
	ErrNoAvailableKey = errors.New("keypool: no available key")

	// ErrNoKeys is returned by New when the configuration holds no keys.
	ErrNoKeys = errors.New("keypool: no keys configured")

	// ErrKeyNotFound is returned by mark operations for an unknown key ID.
	ErrKeyNotFound = errors.New("keypool: key not found")
)

// KeyConfig configures a single upstream key.
type KeyConfig struct {
	// Secret is the upstream API key value.
	Secret string `yaml:"secret" toml:"secret"`

	// RPMLimit is an optional client-side requests-per-minute cap for this
	// key (0 = unlimited). Keys paced out by their limiter are skipped for
	// that acquire only; their recorded state is untouched.
	RPMLimit int `yaml:"rpm_limit" toml:"rpm_limit"`
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Keys are the upstream credentials. Membership is fixed for the pool's
	// lifetime; only per-key state mutates afterwards.
	Keys []KeyConfig `yaml:"keys" toml:"keys"`

	// Backoff is the cooldown schedule applied when the upstream rate
	// limits a key without a Retry-After hint.
	Backoff Backoff `yaml:"backoff" toml:"backoff"`
}

// Pool owns a fixed set of keys and implements selection and failure
// bookkeeping. All methods are safe for concurrent use.
//
// Selection is least-recently-used: Acquire scans all selectable keys and
// returns the one used longest ago, updating its lastUsedAt in the same
// critical section so concurrent acquirers never race onto one key while
// alternatives exist. The pool mutex is held only for this bookkeeping,
// never across network calls.
type Pool struct {
	mu       sync.Mutex // serializes Acquire's scan-and-update step
	keys     []*Key
	keyMap   map[string]*Key
	limiters map[string]ratelimit.Limiter
	backoff  Backoff
	now      func() time.Time
}

// New creates a Pool from the given configuration.
// Returns ErrNoKeys (wrapped) if no keys are configured.
func New(cfg PoolConfig) (*Pool, error) {
	if len(cfg.Keys) == 0 {
		return nil, ErrNoKeys
	}

	pool := &Pool{
		keys:     make([]*Key, 0, len(cfg.Keys)),
		keyMap:   make(map[string]*Key, len(cfg.Keys)),
		limiters: make(map[string]ratelimit.Limiter, len(cfg.Keys)),
		backoff:  cfg.Backoff.normalized(),
		now:      time.Now,
	}

	for i, keyCfg := range cfg.Keys {
		if keyCfg.Secret == "" {
			return nil, fmt.Errorf("keypool: key %d has empty secret", i)
		}

		key := newKey(keyCfg.Secret)
		if _, dup := pool.keyMap[key.ID]; dup {
			return nil, fmt.Errorf("keypool: duplicate key %s at index %d", key.ID, i)
		}

		pool.keys = append(pool.keys, key)
		pool.keyMap[key.ID] = key
		pool.limiters[key.ID] = ratelimit.NewTokenBucket(keyCfg.RPMLimit)

		log.Debug().
			Str("key_id", key.ID).
			Int("index", i).
			Int("rpm_limit", keyCfg.RPMLimit).
			Msg("initialized key in pool")
	}

	log.Info().
		Int("num_keys", len(pool.keys)).
		Msg("created key pool")

	return pool, nil
}

// Acquire selects the best currently available key, skipping any key whose
// ID is in excluding. It returns the key's ID and secret.
//
// The scan, the least-recently-used choice, and the lastUsedAt update form
// one atomic step. Returns ErrNoAvailableKey when the filtered set is
// empty.
func (p *Pool) Acquire(ctx context.Context, excluding map[string]struct{}) (keyID, secret string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	// Keys paced out by their client-side limiter are skipped for this
	// acquire only; the limiter token of a key that loses the LRU choice
	// must not be consumed, so the limiter is checked after selection.
	paced := make(map[string]struct{})
	for {
		var best *Key
		var bestUsed time.Time
		for _, key := range p.keys {
			if _, skip := excluding[key.ID]; skip {
				continue
			}
			if _, skip := paced[key.ID]; skip {
				continue
			}
			if !key.selectable(now) {
				continue
			}
			if used := key.lastUsed(); best == nil || used.Before(bestUsed) {
				best = key
				bestUsed = used
			}
		}

		if best == nil {
			return "", "", ErrNoAvailableKey
		}

		if !p.limiters[best.ID].Allow(ctx) {
			log.Debug().Str("key_id", best.ID).Msg("key paced out by client-side limiter")
			paced[best.ID] = struct{}{}
			continue
		}

		best.touch(now)

		log.Debug().
			Str("key_id", best.ID).
			Msg("selected key from pool")

		return best.ID, best.secret, nil
	}
}

// MarkSuccess records a successful upstream call: the key becomes
// Available and its failure streak resets.
func (p *Pool) MarkSuccess(keyID string) error {
	key, ok := p.keyMap[keyID]
	if !ok {
		return ErrKeyNotFound
	}
	key.markSuccess()
	return nil
}

// MarkRateLimited puts a key into cooldown. If the upstream supplied a
// Retry-After hint it is used verbatim; otherwise the cooldown follows the
// pool's exponential backoff schedule keyed on the consecutive failure
// count. The failure count is incremented either way.
func (p *Pool) MarkRateLimited(keyID string, retryAfter mo.Option[time.Duration]) error {
	key, ok := p.keyMap[keyID]
	if !ok {
		return ErrKeyNotFound
	}

	cooldown, hinted := retryAfter.Get()
	if !hinted || cooldown <= 0 {
		// Backoff is computed from the streak including this failure.
		cooldown = p.backoff.Duration(key.failures() + 1)
	}

	until := p.now().Add(cooldown)
	streak := key.markRateLimited(until)

	log.Warn().
		Str("key_id", keyID).
		Dur("cooldown", cooldown).
		Time("cooldown_until", until).
		Bool("hinted", hinted).
		Int("consecutive_failures", streak).
		Msg("key rate limited, cooling down")

	return nil
}

// MarkHardFailure permanently disables a key. Used when the upstream
// rejects the credential itself (revoked or malformed key). The key is
// never reconsidered for the remainder of the process lifetime.
func (p *Pool) MarkHardFailure(keyID string) error {
	key, ok := p.keyMap[keyID]
	if !ok {
		return ErrKeyNotFound
	}

	key.markDisabled()

	log.Error().
		Str("key_id", keyID).
		Msg("key permanently disabled after credential rejection")

	return nil
}

// EarliestRecovery returns the duration until the soonest cooldown expiry
// among cooling-down keys. Used for Retry-After headers when the pool is
// exhausted. Returns None when no key is cooling down.
func (p *Pool) EarliestRecovery() mo.Option[time.Duration] {
	now := p.now()

	var earliest time.Time
	for _, key := range p.keys {
		key.mu.Lock()
		cooling := key.status == StatusCoolingDown && now.Before(key.cooldownUntil)
		until := key.cooldownUntil
		key.mu.Unlock()

		if !cooling {
			continue
		}
		if earliest.IsZero() || until.Before(earliest) {
			earliest = until
		}
	}

	if earliest.IsZero() {
		return mo.None[time.Duration]()
	}
	return mo.Some(earliest.Sub(now))
}

// Stats summarizes the pool's current state.
type Stats struct {
	TotalKeys   int `json:"total_keys"`
	Available   int `json:"available_keys"`
	CoolingDown int `json:"cooling_down_keys"`
	Disabled    int `json:"disabled_keys"`
}

// GetStats returns pool-level counters. Expired cooldowns count as
// available even before the next Acquire observes them.
func (p *Pool) GetStats() Stats {
	now := p.now()
	stats := Stats{TotalKeys: len(p.keys)}

	for _, key := range p.keys {
		key.mu.Lock()
		status := key.status
		if status == StatusCoolingDown && !now.Before(key.cooldownUntil) {
			status = StatusAvailable
		}
		key.mu.Unlock()

		switch status {
		case StatusAvailable:
			stats.Available++
		case StatusCoolingDown:
			stats.CoolingDown++
		case StatusDisabled:
			stats.Disabled++
		}
	}

	return stats
}

// Snapshot returns per-key state for inspection endpoints. Secrets are
// never included.
func (p *Pool) Snapshot() []KeyInfo {
	return lo.Map(p.keys, func(key *Key, _ int) KeyInfo {
		return key.info()
	})
}

// Size returns the number of keys in the pool.
func (p *Pool) Size() int {
	return len(p.keys)
}
