package keypool

import "time"

// SetNowFunc overrides the pool's clock for deterministic tests.
func (p *Pool) SetNowFunc(now func() time.Time) {
	p.now = now
}

// KeyIDs returns the pool's key IDs in configuration order.
func (p *Pool) KeyIDs() []string {
	ids := make([]string, 0, len(p.keys))
	for _, key := range p.keys {
		ids = append(ids, key.ID)
	}
	return ids
}

// StatusOf returns the raw status of a key without lazy cooldown expiry.
func (p *Pool) StatusOf(keyID string) Status {
	key := p.keyMap[keyID]
	key.mu.Lock()
	defer key.mu.Unlock()
	return key.status
}

// FailuresOf returns a key's consecutive failure count.
func (p *Pool) FailuresOf(keyID string) int {
	return p.keyMap[keyID].failures()
}
