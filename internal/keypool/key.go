// Package keypool tracks a fixed pool of upstream API keys and selects the
// best available key for each outbound request.
//
// Each key carries an independently moving rate-limit window. The pool
// records per-key outcomes (success, rate limited, permanently rejected) and
// uses least-recently-used selection to spread load evenly across keys.
//
// Example usage:
//
//	pool, _ := keypool.New(keypool.PoolConfig{Keys: []keypool.KeyConfig{{Secret: "sk-..."}}})
//	keyID, secret, err := pool.Acquire(ctx, nil)
//	// issue request with secret, then:
//	pool.MarkSuccess(keyID)
package keypool

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Status describes the availability of a single key.
type Status int

// Key statuses. A key holds exactly one status at any instant.
const (
	// StatusAvailable means the key may be selected.
	StatusAvailable Status = iota
	// StatusCoolingDown means the key was rate limited and is excluded from
	// selection until its cooldown expires.
	StatusCoolingDown
	// StatusDisabled means the upstream rejected the credential itself.
	// Disabled keys are never selected again for the process lifetime.
	StatusDisabled
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusCoolingDown:
		return "cooling_down"
	case StatusDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Key tracks the mutable health and usage state of a single upstream
// credential. All methods are safe for concurrent use.
//
// The secret is owned exclusively by this record; callers receive it only
// from Pool.Acquire and identify the key by ID everywhere else.
type Key struct {
	// ID is the first 8 hex chars of SHA-256(secret). It identifies the key
	// in logs and metrics without exposing the secret. Not a security
	// mechanism, just a stable label.
	ID string

	secret string

	mu                  sync.Mutex
	status              Status
	cooldownUntil       time.Time
	consecutiveFailures int
	lastUsedAt          time.Time
}

// newKey creates a Key in the Available state.
func newKey(secret string) *Key {
	hash := sha256.Sum256([]byte(secret))
	return &Key{
		ID:     hex.EncodeToString(hash[:])[:8],
		secret: secret,
		status: StatusAvailable,
	}
}

// selectable reports whether the key may be chosen at the given instant,
// flipping an expired cooldown back to Available first. Cooldown expiry is
// evaluated lazily at read time; there is no background timer.
func (k *Key) selectable(now time.Time) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.status == StatusCoolingDown && !now.Before(k.cooldownUntil) {
		k.status = StatusAvailable
	}
	return k.status == StatusAvailable
}

// touch records an acquisition at the given instant.
func (k *Key) touch(now time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lastUsedAt = now
}

// lastUsed returns the last acquisition time.
func (k *Key) lastUsed() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastUsedAt
}

// markSuccess resets the key to Available and clears the failure streak.
func (k *Key) markSuccess() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.status = StatusAvailable
	k.consecutiveFailures = 0
}

// markRateLimited puts the key into cooldown until the given time and
// returns the new consecutive failure count. Disabled keys stay disabled.
func (k *Key) markRateLimited(until time.Time) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.consecutiveFailures++
	if k.status != StatusDisabled {
		k.status = StatusCoolingDown
		k.cooldownUntil = until
	}
	return k.consecutiveFailures
}

// markDisabled permanently removes the key from selection.
func (k *Key) markDisabled() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.status = StatusDisabled
}

// failures returns the current consecutive failure count.
func (k *Key) failures() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.consecutiveFailures
}

// KeyInfo is a snapshot of a key's state safe for exposure outside the
// pool. It never contains the secret.
type KeyInfo struct {
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	CooldownUntil       time.Time `json:"cooldown_until,omitzero"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastUsedAt          time.Time `json:"last_used_at,omitzero"`
}

// info returns a point-in-time snapshot of the key.
func (k *Key) info() KeyInfo {
	k.mu.Lock()
	defer k.mu.Unlock()

	info := KeyInfo{
		ID:                  k.ID,
		Status:              k.status.String(),
		ConsecutiveFailures: k.consecutiveFailures,
		LastUsedAt:          k.lastUsedAt,
	}
	if k.status == StatusCoolingDown {
		info.CooldownUntil = k.cooldownUntil
	}
	return info
}
