package dynamic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/platform/logger"
	"github.com/modelmux/modelmux/internal/registry"
	"go.uber.org/zap"
)

// Adapter rebuilds the registry snapshot from static configuration plus
// the external store, and writes registrations through to the store.
type Adapter struct {
	kv     KV
	static []registry.ModelDescriptor
}

func NewAdapter(kv KV, models []config.ModelConfig) *Adapter {
	return &Adapter{
		kv:     kv,
		static: buildStatic(models),
	}
}

// buildStatic converts config entries to descriptors. Invalid entries and
// entries whose credential cannot be resolved are skipped with a warning
// rather than failing startup.
func buildStatic(models []config.ModelConfig) []registry.ModelDescriptor {
	out := make([]registry.ModelDescriptor, 0, len(models))
	for _, m := range models {
		d := registry.ModelDescriptor{
			ID:               m.ID,
			Provider:         registry.Provider(m.Provider),
			CredentialRef:    m.APIKey,
			EndpointOverride: m.Endpoint,
			Priority:         m.Priority,
			CostPer1KTokens:  m.CostPer1KTokens,
			TaskTypes:        m.TaskTypes,
			MaxTokens:        m.MaxTokens,
			Origin:           registry.OriginStatic,
		}
		if err := d.Normalize(); err != nil {
			logger.Warn("Skipping invalid static model", zap.Error(err))
			continue
		}
		if !credentialUsable(d) {
			logger.Warn("Skipping static model with unresolved credential",
				zap.String("model", d.ID),
				zap.String("credential_ref", d.CredentialRef),
			)
			continue
		}
		out = append(out, d)
	}
	return out
}

// credentialUsable reports whether the descriptor can actually be called.
// Ollama and custom endpoints work without a key; everything else needs a
// resolvable credential.
func credentialUsable(d registry.ModelDescriptor) bool {
	switch d.Provider {
	case registry.ProviderOllama, registry.ProviderCustom:
		return true
	}
	ref := d.CredentialRef
	if name, ok := strings.CutPrefix(ref, "ENV:"); ok {
		return os.Getenv(name) != ""
	}
	return ref != ""
}

// Static returns the static descriptor set.
func (a *Adapter) Static() []registry.ModelDescriptor {
	out := make([]registry.ModelDescriptor, len(a.static))
	copy(out, a.static)
	return out
}

// LoadDynamic reads all dynamic registrations from the store. A malformed
// entry is skipped with a warning; a store failure returns
// ErrStoreUnavailable.
func (a *Adapter) LoadDynamic(ctx context.Context) ([]registry.ModelDescriptor, error) {
	keys, err := a.kv.Keys(ctx, KeyPrefix+"*")
	if err != nil {
		return nil, err
	}

	out := make([]registry.ModelDescriptor, 0, len(keys))
	for _, key := range keys {
		raw, err := a.kv.Get(ctx, key)
		if err != nil {
			if err == ErrNotFound {
				// Expired between the scan and the read.
				continue
			}
			return nil, err
		}

		var d registry.ModelDescriptor
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			logger.Warn("Skipping malformed dynamic model entry",
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		d.Origin = registry.OriginDynamic
		if err := d.Normalize(); err != nil {
			logger.Warn("Skipping invalid dynamic model entry",
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Refresh rebuilds the store snapshot: static entries first, dynamic after
// so a dynamic registration overrides a static one with the same id. When
// the external store is unreachable the snapshot falls back to static only
// and the error is returned for the caller to log.
func (a *Adapter) Refresh(ctx context.Context, store *registry.Store) error {
	dyn, err := a.LoadDynamic(ctx)
	if err != nil {
		store.Replace(a.Static())
		return err
	}
	store.Replace(append(a.Static(), dyn...))
	return nil
}

// Register persists a dynamic descriptor with the registration TTL.
func (a *Adapter) Register(ctx context.Context, d registry.ModelDescriptor) error {
	d.Origin = registry.OriginDynamic
	if d.AddedAt.IsZero() {
		d.AddedAt = time.Now().UTC()
	}
	if err := d.Normalize(); err != nil {
		return err
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode model descriptor: %w", err)
	}
	return a.kv.Set(ctx, KeyPrefix+d.ID, string(raw), RegistrationTTL)
}

// RegisterDiscovered persists a batch of discovered descriptors. Entries
// fail independently: a bad descriptor is counted and skipped, the rest of
// the batch continues. Only a store outage aborts, since every remaining
// write would fail the same way.
func (a *Adapter) RegisterDiscovered(ctx context.Context, descs []registry.ModelDescriptor) (registered []string, failed int, err error) {
	for _, d := range descs {
		if err := a.Register(ctx, d); err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return registered, failed, err
			}
			failed++
			logger.Warn("Skipping discovered model",
				zap.String("model", d.ID),
				zap.Error(err),
			)
			continue
		}
		registered = append(registered, d.ID)
	}
	return registered, failed, nil
}

// Deregister removes a dynamic registration. Static entries cannot be
// removed this way; they reappear on the next refresh regardless.
func (a *Adapter) Deregister(ctx context.Context, id string) error {
	return a.kv.Delete(ctx, KeyPrefix+id)
}
