package automation

import (
	"strings"
	"sync"
)

// Provider is the closed set of portals with a bot implementation.
// Adding one means a new constant, a case in ParseProvider and a Register call.
type Provider int

const (
	ProviderUnsupported Provider = iota
	ProviderDGVCL
)

// ParseProvider maps a request value (case-insensitive) to a Provider.
func ParseProvider(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dgvcl":
		return ProviderDGVCL
	default:
		return ProviderUnsupported
	}
}

func (p Provider) String() string {
	switch p {
	case ProviderDGVCL:
		return "dgvcl"
	default:
		return "unsupported"
	}
}

// Registry resolves providers to bots.
type Registry struct {
	mu   sync.RWMutex
	bots map[Provider]Bot
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bots: make(map[Provider]Bot)}
}

// Register sets the bot for p. ProviderUnsupported cannot be registered.
func (r *Registry) Register(p Provider, bot Bot) {
	if p == ProviderUnsupported || bot == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[p] = bot
}

// Lookup returns the bot for p.
func (r *Registry) Lookup(p Provider) (Bot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, ok := r.bots[p]
	return bot, ok
}

// Providers lists registered providers.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.bots))
	for p := range r.bots {
		out = append(out, p)
	}
	return out
}
