package detect

import (
	"github.com/tmc/langchaingo/embeddings"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
)

// NewOllamaEmbedder builds the embedder backing the similarity layer from a
// local Ollama embedding model.
func NewOllamaEmbedder(model string) (embeddings.Embedder, error) {
	llm, err := lcollama.New(lcollama.WithModel(model))
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}
