// Package engine executes chat completions against the selected model and
// walks the fallback chain when providers fail. Each attempt targets a
// distinct descriptor; the retry budget bounds additional attempts after
// the first.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelmux/modelmux/internal/llm"
	"github.com/modelmux/modelmux/internal/platform/logger"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/modelmux/modelmux/internal/selector"
	"github.com/modelmux/modelmux/pkg/api"
	"go.uber.org/zap"
)

// DefaultMaxRetries is the number of additional attempts after the first.
const DefaultMaxRetries = 2

// DefaultMaxTokens applies when the request sets no max_tokens.
const DefaultMaxTokens = 4096

// AttemptEvent describes one upstream attempt, successful or not.
type AttemptEvent struct {
	Model    string
	Provider string
	Attempt  int
	Duration time.Duration
	Err      error
}

// AttemptObserver receives attempt events. Observers must not block.
type AttemptObserver func(AttemptEvent)

// ProviderFactory builds a provider for a descriptor. Injected in tests.
type ProviderFactory func(d registry.ModelDescriptor, timeout time.Duration) (llm.Provider, error)

// DefaultProviderFactory resolves the descriptor credential and constructs
// the registered adapter for its provider type. Credential refs of the form
// "ENV:NAME" are resolved from the environment; anything else is used as
// the literal secret.
func DefaultProviderFactory(d registry.ModelDescriptor, timeout time.Duration) (llm.Provider, error) {
	key := d.CredentialRef
	if name, ok := strings.CutPrefix(key, "ENV:"); ok {
		key = os.Getenv(name)
	}
	return llm.New(string(d.Provider), llm.Config{
		APIKey:  key,
		BaseURL: d.EndpointOverride,
		Timeout: timeout,
	})
}

// Result is a completed execution: the upstream response plus the routing
// provenance the handler needs for x_metadata and response headers.
type Result struct {
	Response   *api.ChatResponse
	Selection  selector.Selection
	Descriptor registry.ModelDescriptor
	Attempts   int
	Latency    time.Duration
	Trail      []AttemptEvent
}

// AllProvidersFailedError reports that every attempted descriptor failed.
type AllProvidersFailedError struct {
	Attempts int
	LastErr  error
	Trail    []AttemptEvent
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *AllProvidersFailedError) Unwrap() error { return e.LastErr }

type Engine struct {
	store       *registry.Store
	maxRetries  int
	timeout     time.Duration
	newProvider ProviderFactory
	observers   []AttemptObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxRetries bounds additional attempts after the first.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithProviderFactory overrides provider construction.
func WithProviderFactory(f ProviderFactory) Option {
	return func(e *Engine) { e.newProvider = f }
}

// WithObserver registers an attempt observer.
func WithObserver(o AttemptObserver) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

func New(store *registry.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		maxRetries:  DefaultMaxRetries,
		timeout:     llm.DefaultTimeout,
		newProvider: DefaultProviderFactory,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute selects a model and runs the request, advancing to the next
// eligible descriptor on failure until the retry budget is spent or no
// untried descriptor remains.
func (e *Engine) Execute(ctx context.Context, req *api.ChatRequest) (*Result, error) {
	snapshot := e.store.Snapshot()
	sel, err := selector.Select(snapshot, req.TaskType, selector.Strategy(req.Strategy), req.Model)
	if err != nil {
		return nil, err
	}

	timeout := e.callTimeout(req)
	tried := make(map[string]bool)
	d := sel.Descriptor
	var lastErr error
	var trail []AttemptEvent

	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried[d.ID] = true

		start := time.Now()
		resp, err := e.attempt(ctx, d, req, timeout)
		elapsed := time.Since(start)
		ev := AttemptEvent{
			Model:    d.ID,
			Provider: string(d.Provider),
			Attempt:  attempt,
			Duration: elapsed,
			Err:      err,
		}
		trail = append(trail, ev)
		e.notify(ev)

		if err == nil {
			return &Result{
				Response:   resp,
				Selection:  sel,
				Descriptor: d,
				Attempts:   attempt,
				Latency:    elapsed,
				Trail:      trail,
			}, nil
		}
		lastErr = err
		logger.Warn("Provider attempt failed",
			zap.String("model", d.ID),
			zap.String("provider", string(d.Provider)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		next, ok := selector.NextFallback(snapshot, req.TaskType, tried)
		if !ok {
			break
		}
		d = next
	}

	return nil, &AllProvidersFailedError{Attempts: len(tried), LastErr: lastErr, Trail: trail}
}

// ExecuteStream is Execute for streaming requests. Fallback applies until
// the first chunk arrives; after that the stream is committed and mid-stream
// errors propagate to the caller.
func (e *Engine) ExecuteStream(ctx context.Context, req *api.ChatRequest) (<-chan api.StreamResult, *Result, error) {
	snapshot := e.store.Snapshot()
	sel, err := selector.Select(snapshot, req.TaskType, selector.Strategy(req.Strategy), req.Model)
	if err != nil {
		return nil, nil, err
	}

	timeout := e.callTimeout(req)
	tried := make(map[string]bool)
	d := sel.Descriptor
	var lastErr error
	var trail []AttemptEvent

	for attempt := 1; attempt <= e.maxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		tried[d.ID] = true

		start := time.Now()
		out, first, err := e.attemptStream(ctx, d, req, timeout)
		elapsed := time.Since(start)
		ev := AttemptEvent{
			Model:    d.ID,
			Provider: string(d.Provider),
			Attempt:  attempt,
			Duration: elapsed,
			Err:      err,
		}
		trail = append(trail, ev)
		e.notify(ev)

		if err == nil {
			res := &Result{
				Response:   first,
				Selection:  sel,
				Descriptor: d,
				Attempts:   attempt,
				Latency:    elapsed,
				Trail:      trail,
			}
			return out, res, nil
		}
		lastErr = err
		logger.Warn("Provider stream attempt failed",
			zap.String("model", d.ID),
			zap.String("provider", string(d.Provider)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		next, ok := selector.NextFallback(snapshot, req.TaskType, tried)
		if !ok {
			break
		}
		d = next
	}

	return nil, nil, &AllProvidersFailedError{Attempts: len(tried), LastErr: lastErr, Trail: trail}
}

func (e *Engine) attempt(ctx context.Context, d registry.ModelDescriptor, req *api.ChatRequest, timeout time.Duration) (*api.ChatResponse, error) {
	provider, err := e.newProvider(d, timeout)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return provider.Chat(callCtx, e.upstreamRequest(d, req))
}

// attemptStream opens a stream and waits for its first result. An error
// before the first chunk fails the attempt; afterwards the returned channel
// replays the first chunk then forwards the rest.
func (e *Engine) attemptStream(ctx context.Context, d registry.ModelDescriptor, req *api.ChatRequest, timeout time.Duration) (<-chan api.StreamResult, *api.ChatResponse, error) {
	provider, err := e.newProvider(d, timeout)
	if err != nil {
		return nil, nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)

	upstream, err := provider.Stream(callCtx, e.upstreamRequest(d, req))
	if err != nil {
		cancel()
		return nil, nil, err
	}

	first, ok := <-upstream
	if !ok {
		cancel()
		return nil, nil, fmt.Errorf("stream from %s closed before any chunk", d.ID)
	}
	if first.Err != nil {
		cancel()
		// Drain so the adapter goroutine can exit.
		for range upstream {
		}
		return nil, nil, first.Err
	}

	out := make(chan api.StreamResult)
	go func() {
		defer close(out)
		defer cancel()
		select {
		case out <- first:
		case <-ctx.Done():
			return
		}
		for res := range upstream {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, first.Response, nil
}

// upstreamRequest clones the request for one descriptor: the resolved model
// id replaces whatever the caller asked for, and max_tokens is clamped to
// the descriptor limit.
func (e *Engine) upstreamRequest(d registry.ModelDescriptor, req *api.ChatRequest) *api.ChatRequest {
	clone := *req
	clone.Model = d.ID

	effective := DefaultMaxTokens
	if req.MaxTokens != nil {
		effective = *req.MaxTokens
	}
	if d.MaxTokens > 0 && effective > d.MaxTokens {
		effective = d.MaxTokens
	}
	clone.MaxTokens = &effective

	return &clone
}

func (e *Engine) callTimeout(req *api.ChatRequest) time.Duration {
	if req.Timeout != nil && *req.Timeout > 0 {
		return time.Duration(*req.Timeout * float64(time.Second))
	}
	return e.timeout
}

func (e *Engine) notify(ev AttemptEvent) {
	for _, o := range e.observers {
		o(ev)
	}
}
