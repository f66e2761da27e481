package embedding

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 120 * time.Second

// OllamaProvider calls the Ollama /api/embed endpoint.
type OllamaProvider struct {
	client *httpClient
	model  string
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OllamaProvider{
		client: &httpClient{
			provider:   "ollama",
			baseURL:    strings.TrimRight(baseURL, "/"),
			httpClient: &http.Client{Timeout: timeout},
		},
		model: model,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": p.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := p.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}
