package proxy

import "sync"

// Allocator maps accounts to outbound proxies. It owns its rotation state so
// tests can instantiate isolated copies instead of sharing process globals.
type Allocator struct {
	list   []string
	cursor int
	mu     sync.Mutex
}

// NewAllocator creates an allocator over the configured proxy list
func NewAllocator(list []string) *Allocator {
	return &Allocator{list: list}
}

// ForAccount returns the deterministic proxy for an account, or "" when no
// proxies are configured. The same account always maps to the same proxy.
func (a *Allocator) ForAccount(accountID int) string {
	if len(a.list) == 0 {
		return ""
	}
	idx := accountID % len(a.list)
	if idx < 0 {
		idx += len(a.list)
	}
	return a.list[idx]
}

// Next returns the next proxy from an independent round-robin cursor, or ""
// when no proxies are configured. Used only when neither a per-account proxy
// nor the deterministic mapping applies.
func (a *Allocator) Next() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.list) == 0 {
		return ""
	}
	p := a.list[a.cursor%len(a.list)]
	a.cursor++
	return p
}

// Size returns the number of configured proxies
func (a *Allocator) Size() int {
	return len(a.list)
}
