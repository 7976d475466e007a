package proxypool

import (
	"strings"
	"sync"
	"time"
)

// Pool hands out proxies round-robin, skipping ones that recently failed.
// A nil pool is valid and always hands out the empty proxy (direct
// connection).
type Pool struct {
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	proxies  []string
	next     int
	coolOff  map[string]time.Time
	failures map[string]int
}

// New builds a pool from configured proxy URLs. Blank entries are dropped;
// an empty list yields a nil pool.
func New(proxies []string, cooldown time.Duration) *Pool {
	cleaned := make([]string, 0, len(proxies))
	for _, p := range proxies {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Pool{
		cooldown: cooldown,
		now:      time.Now,
		proxies:  cleaned,
		coolOff:  make(map[string]time.Time),
		failures: make(map[string]int),
	}
}

// Next returns the next usable proxy URL, or "" when every proxy is cooling
// down (callers then connect directly).
func (p *Pool) Next() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for i := 0; i < len(p.proxies); i++ {
		candidate := p.proxies[p.next]
		p.next = (p.next + 1) % len(p.proxies)
		if until, cooling := p.coolOff[candidate]; cooling && now.Before(until) {
			continue
		}
		return candidate
	}
	return ""
}

// MarkFailed parks a proxy for the cooldown period after a network-level
// failure. Unknown URLs are ignored.
func (p *Pool) MarkFailed(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coolOff[proxy] = p.now().Add(p.cooldown)
	p.failures[proxy]++
}

// MarkHealthy clears a proxy's cooldown after a successful call.
func (p *Pool) MarkHealthy(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.coolOff, proxy)
}

// Failures reports cumulative failure counts, for status output.
func (p *Pool) Failures() map[string]int {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.failures))
	for proxy, n := range p.failures {
		out[proxy] = n
	}
	return out
}
