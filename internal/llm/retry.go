package llm

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"library-backend/internal/workflow"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base   Client
	fileID string
}

// WithRetry wraps a client with a single retry on transient errors.
func WithRetry(base Client, fileID string) Client {
	if base == nil {
		return nil
	}
	return retryingClient{base: base, fileID: fileID}
}

func (r retryingClient) ExtractMetadata(ctx context.Context, input MetadataInput) (workflow.Metadata, error) {
	meta, err := r.base.ExtractMetadata(ctx, input)
	if err == nil || !shouldRetry(err) {
		return meta, err
	}

	log.Printf("llm retry attempt=1 file_id=%s error=%s", r.fileID, err.Error())
	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return workflow.Metadata{}, ctx.Err()
	}

	return r.base.ExtractMetadata(ctx, input)
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
