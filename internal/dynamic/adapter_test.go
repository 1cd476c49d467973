package dynamic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticModels() []config.ModelConfig {
	return []config.ModelConfig{
		{ID: "gpt-4o-mini", Provider: "openai", APIKey: "ENV:TEST_OPENAI_KEY", Priority: 1, CostPer1KTokens: 0.15, MaxTokens: 16384},
		{ID: "llama3", Provider: "ollama", Priority: 5, MaxTokens: 8192},
	}
}

func TestBuildStaticSkipsUnresolvedCredential(t *testing.T) {
	// TEST_OPENAI_KEY unset: the openai entry is dropped, ollama survives.
	adapter := NewAdapter(NewMemoryKV(), staticModels())
	static := adapter.Static()
	require.Len(t, static, 1)
	assert.Equal(t, "llama3", static[0].ID)
}

func TestBuildStaticResolvesEnvCredential(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	adapter := NewAdapter(NewMemoryKV(), staticModels())
	static := adapter.Static()
	require.Len(t, static, 2)
	// Credential stays as the ref; resolution happens at call time.
	assert.Equal(t, "ENV:TEST_OPENAI_KEY", static[0].CredentialRef)
}

func TestBuildStaticSkipsInvalidEntries(t *testing.T) {
	models := []config.ModelConfig{
		{ID: "", Provider: "ollama", MaxTokens: 100},
		{ID: "bad-provider", Provider: "mystery", MaxTokens: 100},
		{ID: "ok", Provider: "ollama", MaxTokens: 100},
	}
	adapter := NewAdapter(NewMemoryKV(), models)
	require.Len(t, adapter.Static(), 1)
	assert.Equal(t, "ok", adapter.Static()[0].ID)
}

func TestRegisterAndRefresh(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, staticModels())
	store := registry.NewStore()

	err := adapter.Register(context.Background(), registry.ModelDescriptor{
		ID:              "mistral-7b",
		Provider:        registry.ProviderOllama,
		Priority:        10,
		CostPer1KTokens: 0,
		MaxTokens:       4096,
	})
	require.NoError(t, err)

	require.NoError(t, adapter.Refresh(context.Background(), store))

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 2)

	byID := map[string]registry.ModelDescriptor{}
	for _, d := range snapshot {
		byID[d.ID] = d
	}
	assert.Equal(t, registry.OriginStatic, byID["llama3"].Origin)
	assert.Equal(t, registry.OriginDynamic, byID["mistral-7b"].Origin)
	assert.Equal(t, []string{registry.DefaultTaskType}, byID["mistral-7b"].TaskTypes)
}

func TestDynamicOverridesStaticWithSameID(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, staticModels())
	store := registry.NewStore()

	err := adapter.Register(context.Background(), registry.ModelDescriptor{
		ID:        "llama3",
		Provider:  registry.ProviderOllama,
		Priority:  1,
		MaxTokens: 2048,
	})
	require.NoError(t, err)

	require.NoError(t, adapter.Refresh(context.Background(), store))

	snapshot := store.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, registry.OriginDynamic, snapshot[0].Origin)
	assert.Equal(t, 2048, snapshot[0].MaxTokens)
}

func TestLoadDynamicSkipsMalformedEntries(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), KeyPrefix+"broken", "not-json", 0))

	good, err := json.Marshal(registry.ModelDescriptor{
		ID: "phi3", Provider: registry.ProviderOllama, MaxTokens: 4096,
	})
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), KeyPrefix+"phi3", string(good), 0))

	adapter := NewAdapter(kv, nil)
	dyn, err := adapter.LoadDynamic(context.Background())
	require.NoError(t, err)
	require.Len(t, dyn, 1)
	assert.Equal(t, "phi3", dyn[0].ID)
}

func TestRefreshDegradesToStaticWhenStoreDown(t *testing.T) {
	adapter := NewAdapter(failingKV{}, staticModels())
	store := registry.NewStore()

	err := adapter.Refresh(context.Background(), store)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// Static entries still serve.
	snapshot := store.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "llama3", snapshot[0].ID)
}

func TestRegisterDiscoveredContinuesPastBadEntry(t *testing.T) {
	adapter := NewAdapter(NewMemoryKV(), nil)

	descs := []registry.ModelDescriptor{
		{ID: "qwen2.5:7b", Provider: registry.ProviderOllama, MaxTokens: 4096},
		{ID: "broken", Provider: "nonsense", MaxTokens: 4096},
		{ID: "gemma2:9b", Provider: registry.ProviderOllama, MaxTokens: 4096},
	}

	registered, failed, err := adapter.RegisterDiscovered(context.Background(), descs)
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5:7b", "gemma2:9b"}, registered)
	assert.Equal(t, 1, failed)

	// The entries after the bad one actually landed in the store.
	dyn, err := adapter.LoadDynamic(context.Background())
	require.NoError(t, err)
	assert.Len(t, dyn, 2)
}

func TestRegisterDiscoveredAbortsWhenStoreDown(t *testing.T) {
	adapter := NewAdapter(failingKV{}, nil)

	_, _, err := adapter.RegisterDiscovered(context.Background(), []registry.ModelDescriptor{
		{ID: "qwen2.5:7b", Provider: registry.ProviderOllama, MaxTokens: 4096},
	})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestDeregister(t *testing.T) {
	kv := NewMemoryKV()
	adapter := NewAdapter(kv, nil)

	require.NoError(t, adapter.Register(context.Background(), registry.ModelDescriptor{
		ID: "phi3", Provider: registry.ProviderOllama, MaxTokens: 4096,
	}))
	require.NoError(t, adapter.Deregister(context.Background(), "phi3"))

	dyn, err := adapter.LoadDynamic(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dyn)
}

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(context.Background(), KeyPrefix+"a", "x", time.Hour))

	val, err := kv.Get(context.Background(), KeyPrefix+"a")
	require.NoError(t, err)
	assert.Equal(t, "x", val)

	now = now.Add(2 * time.Hour)

	_, err = kv.Get(context.Background(), KeyPrefix+"a")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := kv.Keys(context.Background(), KeyPrefix+"*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", ErrStoreUnavailable }
func (failingKV) Set(context.Context, string, string, time.Duration) error {
	return ErrStoreUnavailable
}
func (failingKV) Delete(context.Context, string) error { return ErrStoreUnavailable }
func (failingKV) Keys(context.Context, string) ([]string, error) {
	return nil, ErrStoreUnavailable
}
