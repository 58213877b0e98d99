package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "text-embedding-3-small"
	defaultTimeout   = 60 * time.Second
	defaultBatchSize = 100
)

// OpenAIClient calls the OpenAI embeddings API. Large inputs are sent in
// batches so a single long document does not blow the request size limit.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	batchSize  int
	httpClient *http.Client
}

var _ Embedder = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from the environment. OPENAI_API_KEY is
// required; EMBEDDING_MODEL overrides the default model.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		batchSize:  defaultBatchSize,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// WithBaseURL points the client at an alternate endpoint.
func (c *OpenAIClient) WithBaseURL(url string) *OpenAIClient {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed vectorizes inputs in batches, preserving input order.
func (c *OpenAIClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		vectors, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", start/c.batchSize+1, err)
		}
		out = append(out, vectors...)
	}
	if len(out) != len(inputs) {
		return nil, ErrCountMismatch
	}
	return out, nil
}

func (c *OpenAIClient) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:          c.model,
		Input:          inputs,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai http status %d", resp.StatusCode)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, ErrCountMismatch
	}

	// The API documents data in input order, but index is authoritative.
	vectors := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
