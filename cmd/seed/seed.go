package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/modelmux/modelmux/internal/config"
	"github.com/modelmux/modelmux/internal/dynamic"
	"github.com/modelmux/modelmux/internal/registry"
)

// Seeds a handful of dynamic model registrations into the external store so
// a fresh instance has something to route to beyond its static config.
func main() {
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}

	kv := dynamic.NewRedisKV(cfg.Redis)
	defer kv.Close()

	ctx := context.Background()
	if err := kv.Ping(ctx); err != nil {
		log.Fatalf("redis unreachable at %s: %v", cfg.Redis.Addr, err)
	}

	adapter := dynamic.NewAdapter(kv, nil)

	models := []registry.ModelDescriptor{
		{
			ID:              "gpt-4o-mini",
			Provider:        registry.ProviderOpenAI,
			CredentialRef:   "ENV:OPENAI_API_KEY",
			Priority:        2,
			CostPer1KTokens: 0.15,
			TaskTypes:       []string{"general", "code"},
			MaxTokens:       16384,
		},
		{
			ID:              "claude-3-5-haiku-latest",
			Provider:        registry.ProviderAnthropic,
			CredentialRef:   "ENV:ANTHROPIC_API_KEY",
			Priority:        3,
			CostPer1KTokens: 0.8,
			TaskTypes:       []string{"general", "creative"},
			MaxTokens:       8192,
		},
		{
			ID:        "llama3:8b",
			Provider:  registry.ProviderOllama,
			Priority:  10,
			TaskTypes: []string{"general"},
			MaxTokens: 4096,
		},
	}

	for _, m := range models {
		m.Origin = registry.OriginDynamic
		m.AddedAt = time.Now()
		if err := adapter.Register(ctx, m); err != nil {
			log.Fatalf("failed to register %s: %v", m.ID, err)
		}
		fmt.Printf("Registered: %s (%s)\n", m.ID, m.Provider)
	}

	fmt.Printf("\nSeeded %d dynamic models.\n", len(models))
}
