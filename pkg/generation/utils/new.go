// Package generationutils is the generation utility package
package generationutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/stacks/pkg/generation"
	"github.com/papercomputeco/stacks/pkg/generation/anthropic"
	"github.com/papercomputeco/stacks/pkg/generation/gemini"
	"github.com/papercomputeco/stacks/pkg/generation/ollama"
	"github.com/papercomputeco/stacks/pkg/generation/openai"
)

// SupportedProviders lists the generation provider names NewGenerator accepts.
var SupportedProviders = []string{"ollama", "openai", "gemini", "anthropic"}

type NewGeneratorOpts struct {
	ProviderType   string
	TargetURL      string
	Model          string
	APIKey         string
	Temperature    float64
	PromptTemplate string
}

func NewGenerator(ctx context.Context, o *NewGeneratorOpts) (generation.Generator, error) {
	switch o.ProviderType {
	case "ollama":
		return wrap(ollama.NewGenerator(ollama.GeneratorConfig{
			BaseURL:        o.TargetURL,
			Model:          o.Model,
			Temperature:    o.Temperature,
			PromptTemplate: o.PromptTemplate,
		}))
	case "openai":
		return wrap(openai.NewGenerator(openai.GeneratorConfig{
			APIKey:         o.APIKey,
			BaseURL:        o.TargetURL,
			Model:          o.Model,
			Temperature:    o.Temperature,
			PromptTemplate: o.PromptTemplate,
		}))
	case "gemini":
		return wrap(gemini.NewGenerator(ctx, gemini.GeneratorConfig{
			APIKey:         o.APIKey,
			BaseURL:        o.TargetURL,
			Model:          o.Model,
			Temperature:    o.Temperature,
			PromptTemplate: o.PromptTemplate,
		}))
	case "anthropic":
		return wrap(anthropic.NewGenerator(anthropic.GeneratorConfig{
			APIKey:         o.APIKey,
			BaseURL:        o.TargetURL,
			Model:          o.Model,
			Temperature:    o.Temperature,
			PromptTemplate: o.PromptTemplate,
		}))
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", o.ProviderType)
	}
}

// wrap keeps a failed constructor from returning a typed nil.
func wrap[T generation.Generator](v T, err error) (generation.Generator, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
