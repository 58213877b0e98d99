// Package workerproc decodes and dispatches pipeline queue messages. It sits
// between the transport loop (SQS polling or Lambda events) and the pipeline
// processor so both entry points share one parsing and error taxonomy.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"library-backend/internal/pipeline"
	"library-backend/internal/queue"
)

// FileProcessor runs the processing stages for one file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, fileID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingFileID indicates a message missing the processing file id.
type ErrMissingFileID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingFileID) Error() string { return "missing file id" }

// ErrProcess indicates processing failed after successful parsing.
type ErrProcess struct {
	FileID    string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process file"
	}
	return "process file: " + e.Err.Error()
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.FileID) == "" {
		return msg, meta, ErrMissingFileID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and processes a message payload.
func HandleMessage(ctx context.Context, processor FileProcessor, body string) error {
	if processor == nil {
		return errors.New("pipeline processor not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.FileID) == "" {
		return ErrMissingFileID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := pipeline.WithRequestID(ctx, msg.RequestID)
	if err := processor.ProcessFile(ctxWithRequest, msg.FileID); err != nil {
		return ErrProcess{FileID: msg.FileID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
