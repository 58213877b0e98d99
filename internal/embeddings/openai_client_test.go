package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, batchSize int, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := &OpenAIClient{
		apiKey:     "test-key",
		model:      defaultModel,
		batchSize:  batchSize,
		httpClient: srv.Client(),
	}
	return c.WithBaseURL(srv.URL)
}

func TestEmbedBatchesAndPreservesOrder(t *testing.T) {
	var requests int
	c := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.EncodingFormat != "float" {
			t.Errorf("encoding_format = %q", req.EncodingFormat)
		}
		resp := embeddingResponse{}
		// Answer out of index order to prove reordering.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(len(req.Input[i]))}})
		}
		json.NewEncoder(w).Encode(resp)
	})

	inputs := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := c.Embed(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if requests != 3 {
		t.Errorf("requests = %d, want 3", requests)
	}
	if len(vectors) != len(inputs) {
		t.Fatalf("got %d vectors", len(vectors))
	}
	for i, in := range inputs {
		if vectors[i][0] != float32(len(in)) {
			t.Errorf("vector %d = %v, want %d", i, vectors[i][0], len(in))
		}
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	c := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	})
	if _, err := c.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestEmbedSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if _, err := c.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c := newTestClient(t, 100, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	})
	vectors, err := c.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Fatalf("vectors=%v err=%v", vectors, err)
	}
}
