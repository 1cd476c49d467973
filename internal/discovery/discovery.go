// Package discovery scans a peer inference server for its model list so
// the models can be registered dynamically without hand-writing config.
// Two response flavors are understood: Ollama's /api/tags and the
// OpenAI-compatible /v1/models listing.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelmux/modelmux/internal/httpclient"
	"github.com/modelmux/modelmux/internal/registry"
)

// Discovered models route behind everything configured explicitly.
const discoveredPriority = 100

type Flavor string

const (
	FlavorTags   Flavor = "tags"   // Ollama /api/tags
	FlavorOpenAI Flavor = "openai" // OpenAI-compatible /v1/models
)

type Scanner struct {
	client httpclient.Doer
}

func NewScanner() *Scanner {
	return &Scanner{client: &http.Client{Timeout: 15 * time.Second}}
}

// NewScannerWithClient is used by tests.
func NewScannerWithClient(client httpclient.Doer) *Scanner {
	return &Scanner{client: client}
}

// Scan fetches the model list from baseURL and converts it to dynamic
// descriptors pointed back at that server.
func (s *Scanner) Scan(ctx context.Context, baseURL string, flavor Flavor) ([]registry.ModelDescriptor, error) {
	base := strings.TrimRight(baseURL, "/")

	switch flavor {
	case FlavorTags:
		return s.scanTags(ctx, base)
	case FlavorOpenAI:
		return s.scanOpenAI(ctx, base)
	default:
		return nil, fmt.Errorf("unknown discovery flavor %q", flavor)
	}
}

type tagsResponse struct {
	Models []struct {
		Name       string    `json:"name"`
		ModifiedAt time.Time `json:"modified_at"`
		Size       int64     `json:"size"`
	} `json:"models"`
}

func (s *Scanner) scanTags(ctx context.Context, base string) ([]registry.ModelDescriptor, error) {
	var resp tagsResponse
	if err := httpclient.GetJSON(ctx, s.client, base+"/api/tags", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]registry.ModelDescriptor, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name == "" {
			continue
		}
		out = append(out, s.descriptor(m.Name, registry.ProviderOllama, base))
	}
	return out, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (s *Scanner) scanOpenAI(ctx context.Context, base string) ([]registry.ModelDescriptor, error) {
	// The stored endpoint must be the /v1 root so the custom adapter can
	// append /chat/completions to it.
	root := base
	if !strings.HasSuffix(root, "/v1") {
		root = strings.TrimRight(root, "/") + "/v1"
	}

	var resp modelsResponse
	if err := httpclient.GetJSON(ctx, s.client, root+"/models", nil, &resp); err != nil {
		return nil, err
	}

	out := make([]registry.ModelDescriptor, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID == "" {
			continue
		}
		out = append(out, s.descriptor(m.ID, registry.ProviderCustom, root))
	}
	return out, nil
}

func (s *Scanner) descriptor(id string, provider registry.Provider, base string) registry.ModelDescriptor {
	return registry.ModelDescriptor{
		ID:               id,
		Provider:         provider,
		EndpointOverride: base,
		Priority:         discoveredPriority,
		CostPer1KTokens:  0,
		MaxTokens:        4096,
		Origin:           registry.OriginDynamic,
		AddedAt:          time.Now().UTC(),
	}
}
