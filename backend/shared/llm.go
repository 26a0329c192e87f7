package shared

import (
	"context"
	"os"
)

// Provider names the vendor behind a model id.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderMistral   Provider = "mistral"
	ProviderGoogle    Provider = "google"
)

// Credential environment variables, one per provider.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvMistralAPIKey   = "MISTRAL_API_KEY"
	EnvGoogleAPIKey    = "GOOGLE_GENERATIVE_AI_API_KEY"
)

// CompletionClient sends one prompt to one model and returns the raw text.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// Backend describes a selectable model.
type Backend struct {
	Model    string
	Provider Provider
	EnvVar   string
}

// Backends is the closed set of selectable models.
var Backends = map[string]Backend{
	ModelClaude35Sonnet: {Model: ModelClaude35Sonnet, Provider: ProviderAnthropic, EnvVar: EnvAnthropicAPIKey},
	ModelClaudeSonnet4:  {Model: ModelClaudeSonnet4, Provider: ProviderAnthropic, EnvVar: EnvAnthropicAPIKey},
	ModelMistralSmall:   {Model: ModelMistralSmall, Provider: ProviderMistral, EnvVar: EnvMistralAPIKey},
	ModelGeminiFlash:    {Model: ModelGeminiFlash, Provider: ProviderGoogle, EnvVar: EnvGoogleAPIKey},
}

// Credentials holds an API key per provider. BaseURLs optionally points a
// provider at another endpoint (tests, proxies).
type Credentials struct {
	Keys     map[Provider]string
	BaseURLs map[Provider]string
}

// Key returns the configured key for p, or "".
func (c Credentials) Key(p Provider) string {
	if c.Keys == nil {
		return ""
	}
	return c.Keys[p]
}

func (c Credentials) baseURL(p Provider) string {
	if c.BaseURLs == nil {
		return ""
	}
	return c.BaseURLs[p]
}

// CredentialsFromEnv reads every provider key from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Keys: map[Provider]string{
			ProviderAnthropic: os.Getenv(EnvAnthropicAPIKey),
			ProviderMistral:   os.Getenv(EnvMistralAPIKey),
			ProviderGoogle:    os.Getenv(EnvGoogleAPIKey),
		},
	}
}

// BackendSelector resolves a model id to a ready client.
type BackendSelector func(modelID string) (CompletionClient, error)

// SelectBackend returns the client for modelID. An empty id selects the
// default model. The provider's credential must be present; there is no
// fallback to another provider.
func SelectBackend(modelID string, creds Credentials) (CompletionClient, error) {
	if modelID == "" {
		modelID = DefaultModel
	}
	backend, ok := Backends[modelID]
	if !ok {
		return nil, &UnsupportedModelError{Model: modelID}
	}

	key := creds.Key(backend.Provider)
	if key == "" {
		return nil, &MissingCredentialError{Provider: backend.Provider, EnvVar: backend.EnvVar}
	}

	base := creds.baseURL(backend.Provider)
	switch backend.Provider {
	case ProviderAnthropic:
		c := NewClaudeClient(key, backend.Model)
		if base != "" {
			c.SetBaseURL(base)
		}
		return c, nil
	case ProviderMistral:
		c := NewMistralClient(key, backend.Model)
		if base != "" {
			c.SetBaseURL(base)
		}
		return c, nil
	case ProviderGoogle:
		return NewGeminiClient(key, backend.Model, base), nil
	default:
		return nil, &UnsupportedModelError{Model: modelID}
	}
}

// Selector binds creds to SelectBackend.
func Selector(creds Credentials) BackendSelector {
	return func(modelID string) (CompletionClient, error) {
		return SelectBackend(modelID, creds)
	}
}
