package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"ctxasm/internal/errors"
	"ctxasm/internal/version"
)

const (
	// DefaultOpenAIURL is the default OpenAI-compatible API base.
	DefaultOpenAIURL = "https://api.openai.com/v1"
	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"
	// DefaultOpenAIDimensions matches DefaultOpenAIModel.
	DefaultOpenAIDimensions = 1536
)

// OpenAIProvider calls an OpenAI-compatible POST {base}/embeddings endpoint.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL sets the API base URL, e.g. a local gateway.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) OpenAIOption {
	return func(p *OpenAIProvider) { p.apiKey = key }
}

// WithOpenAIModel sets the model and its dimensions.
func WithOpenAIModel(model string, dims int) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
		if dims > 0 {
			p.dimensions = dims
		}
	}
}

// WithOpenAIHTTPClient replaces the HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		baseURL:    DefaultOpenAIURL,
		model:      DefaultOpenAIModel,
		dimensions: DefaultOpenAIDimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// Embed sends texts as one request.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(openAIRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, errors.New(errors.InternalError, "marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.InternalError, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, "openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("openai", resp)
	}

	var result openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ProviderUnavailable, "decoding openai response", err)
	}
	if err := checkCount("openai", len(result.Data), len(texts)); err != nil {
		return nil, err
	}

	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Index < result.Data[j].Index })
	vectors := make([]Vector, len(texts))
	for i, d := range result.Data {
		if p.dimensions > 0 && len(d.Embedding) != p.dimensions {
			return nil, errors.New(errors.ProviderUnavailable,
				fmt.Sprintf("unexpected embedding dimensions: got %d, want %d", len(d.Embedding), p.dimensions), nil)
		}
		vectors[i] = Vector{Values: d.Embedding, Tokens: splitTokens(result.Usage.PromptTokens, texts, i)}
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Dimensions returns the vector length.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

// splitTokens attributes a request-level token count to input i in
// proportion to its length. Without usage data it falls back to the local
// estimate.
func splitTokens(total int, texts []string, i int) int {
	if total <= 0 {
		return estimateTokens(texts[i])
	}
	var chars int
	for _, t := range texts {
		chars += len(t)
	}
	if chars == 0 {
		return 0
	}
	return total * len(texts[i]) / chars
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}
