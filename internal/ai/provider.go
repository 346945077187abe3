package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/seekwell/seekwell/internal/pkg/errors"
)

// ErrUnavailable is returned when a provider is not configured or rejects
// the call outright. Callers treat it as retryable.
var ErrUnavailable = appErr.ErrUnavailable

// IProvider is the outbound embedding boundary. Calls are idempotent in
// meaning: the same text and model produce a semantically equivalent vector,
// though not necessarily byte-identical across providers.
type IProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

// IEmbedder binds a provider to one model. The retrieval core only ever
// talks to this.
type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	Provider() string
	ModelName() string
}

type embedder struct {
	provider IProvider
	model    string
}

func NewEmbedder(p IProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) Provider() string {
	return e.provider.Name()
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IProvider, error)

var registry = map[string]ProviderFactory{}

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registry[key] = factory
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	factory := registry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, out interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
