// Package llm runs generation requests through an ordered chain of
// interchangeable providers, returning the first success.
package llm

import (
	"context"

	"github.com/namratade97/berlin-kultur-intel/pkg/anthropic"
	"github.com/namratade97/berlin-kultur-intel/pkg/openai"
)

// Provider is a single generation backend in the fallback chain.
type Provider interface {
	// Name identifies the provider for logging.
	Name() string
	// Available reports whether the provider has a credential configured.
	// Unavailable providers are skipped without being invoked.
	Available() bool
	// Complete issues one generation call and returns the response text.
	Complete(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// AnthropicProvider adapts the Anthropic client to the chain.
type AnthropicProvider struct {
	name   string
	model  string
	hasKey bool
	client anthropic.Client
}

// NewAnthropicProvider wraps an Anthropic client as a chain entry.
func NewAnthropicProvider(name, model string, hasKey bool, client anthropic.Client) *AnthropicProvider {
	return &AnthropicProvider{name: name, model: model, hasKey: hasKey, client: client}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return p.name }

// Available implements Provider.
func (p *AnthropicProvider) Available() bool { return p.hasKey && p.client != nil }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: 2000,
		System:    systemInstruction,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// OpenAIProvider adapts any OpenAI-compatible backend to the chain.
type OpenAIProvider struct {
	name   string
	model  string
	hasKey bool
	client openai.Client
}

// NewOpenAIProvider wraps an OpenAI-compatible client as a chain entry.
func NewOpenAIProvider(name, model string, hasKey bool, client openai.Client) *OpenAIProvider {
	return &OpenAIProvider{name: name, model: model, hasKey: hasKey, client: client}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

// Available implements Provider.
func (p *OpenAIProvider) Available() bool { return p.hasKey && p.client != nil }

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt, systemInstruction string) (string, error) {
	messages := []openai.Message{
		{Role: "system", Content: systemInstruction},
		{Role: "user", Content: prompt},
	}
	if systemInstruction == "" {
		messages = messages[1:]
	}
	resp, err := p.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
