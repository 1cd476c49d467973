package registry

import (
	"fmt"
	"time"
)

// Provider identifies which upstream adapter serves a descriptor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderGroq      Provider = "groq"
	ProviderOllama    Provider = "ollama"
	ProviderCustom    Provider = "custom"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq, ProviderOllama, ProviderCustom:
		return true
	}
	return false
}

// Origin records how a descriptor entered the registry. Static descriptors
// are built once at startup from configuration and never mutated; dynamic
// descriptors come from the external store and may expire.
type Origin string

const (
	OriginStatic  Origin = "static"
	OriginDynamic Origin = "dynamic"
)

// DefaultTaskType is assigned when a descriptor declares no task types.
const DefaultTaskType = "general"

// ModelDescriptor is one registry entry describing a callable model.
type ModelDescriptor struct {
	ID               string    `json:"id"`
	Provider         Provider  `json:"provider"`
	CredentialRef    string    `json:"credential_ref,omitempty"`
	EndpointOverride string    `json:"endpoint_override,omitempty"`
	Priority         int       `json:"priority"`
	CostPer1KTokens  float64   `json:"cost_per_1k_tokens"`
	TaskTypes        []string  `json:"task_types"`
	MaxTokens        int       `json:"max_tokens"`
	Origin           Origin    `json:"origin"`
	AddedAt          time.Time `json:"added_at,omitempty"`
}

// Normalize fills defaults and checks the descriptor invariants.
func (d *ModelDescriptor) Normalize() error {
	if d.ID == "" {
		return fmt.Errorf("descriptor has empty id")
	}
	if !d.Provider.Valid() {
		return fmt.Errorf("descriptor %q has unknown provider %q", d.ID, d.Provider)
	}
	if d.Priority < 0 {
		return fmt.Errorf("descriptor %q has negative priority %d", d.ID, d.Priority)
	}
	if d.CostPer1KTokens < 0 {
		return fmt.Errorf("descriptor %q has negative cost %f", d.ID, d.CostPer1KTokens)
	}
	if d.MaxTokens <= 0 {
		return fmt.Errorf("descriptor %q has non-positive max_tokens %d", d.ID, d.MaxTokens)
	}
	if len(d.TaskTypes) == 0 {
		d.TaskTypes = []string{DefaultTaskType}
	}
	return nil
}

// SupportsTask reports whether the descriptor is eligible for a task type.
func (d *ModelDescriptor) SupportsTask(taskType string) bool {
	for _, t := range d.TaskTypes {
		if t == taskType {
			return true
		}
	}
	return false
}
