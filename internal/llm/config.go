package llm

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/namratade97/berlin-kultur-intel/pkg/anthropic"
	"github.com/namratade97/berlin-kultur-intel/pkg/openai"
)

// ChainConfig is the provider chain definition, loaded from a yaml file so
// operators can reorder or extend the chain without a rebuild.
type ChainConfig struct {
	TimeoutSecs int             `yaml:"timeout_secs"`
	Providers   []ProviderEntry `yaml:"providers"`
}

// ProviderEntry configures one chain entry.
type ProviderEntry struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"` // "anthropic" or "openai" (default)
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// LoadChainConfig reads a chain definition from a yaml file.
func LoadChainConfig(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: read chain config %s", path)
	}

	var cfg ChainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "llm: parse chain config")
	}
	if len(cfg.Providers) == 0 {
		return nil, eris.New("llm: chain config defines no providers")
	}
	return &cfg, nil
}

// DefaultChainConfig mirrors the chain the service shipped with: Anthropic
// first, then a run of hosted open-weight backends.
func DefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		TimeoutSecs: 10,
		Providers: []ProviderEntry{
			{Name: "anthropic", Kind: "anthropic", Model: "claude-haiku-4-5-20251001", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "groq", Model: "llama-3.3-70b-versatile", BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY"},
			{Name: "openrouter", Model: "meta-llama/llama-3.1-8b-instruct", BaseURL: "https://openrouter.ai/api/v1", APIKeyEnv: "OPENROUTER_API_KEY"},
			{Name: "cerebras", Model: "llama3.1-8b", BaseURL: "https://api.cerebras.ai/v1", APIKeyEnv: "CEREBRAS_API_KEY"},
			{Name: "sambanova", Model: "Meta-Llama-3.1-8B-Instruct", BaseURL: "https://api.sambanova.ai/v1", APIKeyEnv: "SAMBANOVA_API_KEY"},
		},
	}
}

// Build constructs the fallback client from the config, resolving
// credentials from the environment. Entries whose env var is empty are
// still added; the chain skips them at call time.
func (cfg *ChainConfig) Build() *FallbackClient {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, entry := range cfg.Providers {
		key := os.Getenv(entry.APIKeyEnv)
		hasKey := key != ""

		switch entry.Kind {
		case "anthropic":
			var client anthropic.Client
			if hasKey {
				client = anthropic.NewClient(key)
			}
			providers = append(providers, NewAnthropicProvider(entry.Name, entry.Model, hasKey, client))
		default:
			var client openai.Client
			if hasKey {
				opts := []openai.Option{openai.WithModel(entry.Model)}
				if entry.BaseURL != "" {
					opts = append(opts, openai.WithBaseURL(entry.BaseURL))
				}
				client = openai.NewClient(key, opts...)
			}
			providers = append(providers, NewOpenAIProvider(entry.Name, entry.Model, hasKey, client))
		}
	}

	chain := NewFallbackClient(providers...)
	if cfg.TimeoutSecs > 0 {
		chain = chain.WithTimeout(time.Duration(cfg.TimeoutSecs) * time.Second)
	}
	return chain
}
