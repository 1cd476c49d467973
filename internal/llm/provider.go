// Package llm defines the provider capability consumed by the execution
// engine: given a concrete model identifier and parameters, execute a chat
// completion synchronously or as a token stream. Adapters register
// themselves by provider type via init().
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/modelmux/modelmux/pkg/api"
)

// DefaultTimeout applies when a request carries no explicit timeout.
const DefaultTimeout = 60 * time.Second

// Config binds an adapter instance to a concrete upstream.
type Config struct {
	// APIKey is the resolved secret; empty for providers needing none.
	APIKey string
	// BaseURL overrides the provider default; required for custom providers.
	BaseURL string
	// Timeout bounds each upstream call.
	Timeout time.Duration
}

// Provider executes chat completions against one upstream.
type Provider interface {
	Type() string
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	Stream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, error)
}

// Factory constructs a Provider from a Config.
type Factory func(cfg Config) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider factory available under the given type.
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %q already registered", providerType))
	}
	factories[providerType] = f
}

// New constructs a provider of the given type.
func New(providerType string, cfg Config) (Provider, error) {
	mu.RLock()
	f, ok := factories[providerType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider factory registered for type %q", providerType)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return f(cfg)
}
