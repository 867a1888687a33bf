package detect

import (
	"context"

	"github.com/ollama/ollama/api"
)

// Generator is the slice of the Ollama client the detectors need. Satisfied
// by *api.Client; tests substitute a local stub.
type Generator interface {
	Generate(ctx context.Context, req *api.GenerateRequest, fn api.GenerateResponseFunc) error
}

// OllamaClient pins one model onto an Ollama API client.
type OllamaClient struct {
	client Generator
	model  string
}

func NewOllamaClient(model string) (*OllamaClient, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, err
	}
	return &OllamaClient{client: client, model: model}, nil
}

func NewOllamaClientWith(gen Generator, model string) *OllamaClient {
	return &OllamaClient{client: gen, model: model}
}

// Complete runs a non-streaming generation and returns the full response.
func (o *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: new(bool),
	}

	var out string
	respFunc := func(resp api.GenerateResponse) error {
		if resp.Done {
			out = resp.Response
		}
		return nil
	}

	if err := o.client.Generate(ctx, req, respFunc); err != nil {
		return "", err
	}
	return out, nil
}
