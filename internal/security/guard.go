package security

import (
	"strings"
	"sync"
	"time"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/config"
)

// Verdict represents the outcome of a guard check.
type Verdict int

const (
	Allow Verdict = iota
	Deny
	RateLimited
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// bucket tracks rate limit state for a single sender.
type bucket struct {
	tokens    int
	windowEnd time.Time
}

// Guard enforces the sender allowlist and per-sender rate limiting.
type Guard struct {
	mode        string
	allowed     map[string]struct{} // normalized phone numbers
	denyMessage string
	rateLimit   int
	rateWindow  time.Duration
	now         func() time.Time
	mu          sync.Mutex
	buckets     map[string]*bucket
}

// New creates a Guard from the security config.
func New(cfg config.SecurityConfig) *Guard {
	allowed := make(map[string]struct{}, len(cfg.Allowlist))
	for _, phone := range cfg.Allowlist {
		allowed[normalize(phone)] = struct{}{}
	}

	return &Guard{
		mode:        cfg.Mode,
		allowed:     allowed,
		denyMessage: cfg.DenyMessage,
		rateLimit:   cfg.RateLimit,
		rateWindow:  time.Duration(cfg.RateWindow) * time.Second,
		now:         time.Now,
		buckets:     make(map[string]*bucket),
	}
}

// Check returns Allow, Deny, or RateLimited for the given sender.
func (g *Guard) Check(from string) Verdict {
	n := normalize(from)

	if g.mode == "allowlist" {
		if _, ok := g.allowed[n]; !ok {
			return Deny
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, ok := g.buckets[n]
	if !ok || now.After(b.windowEnd) {
		g.buckets[n] = &bucket{
			tokens:    g.rateLimit - 1,
			windowEnd: now.Add(g.rateWindow),
		}
		return Allow
	}

	if b.tokens <= 0 {
		return RateLimited
	}
	b.tokens--
	return Allow
}

// DenyMessage returns the configured denial message.
func (g *Guard) DenyMessage() string {
	return g.denyMessage
}

// Sweep drops buckets whose window has closed.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, b := range g.buckets {
		if now.After(b.windowEnd) {
			delete(g.buckets, k)
		}
	}
}

// normalize keeps only the digits of a phone number. The provider reports
// senders without a leading +, operators usually write one.
func normalize(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))

	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
