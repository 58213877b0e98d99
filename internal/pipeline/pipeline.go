// Package pipeline runs the automated processing stages for one uploaded
// file: text extraction, AI metadata analysis, and embedding generation.
// Every stage boundary goes through the workflow engine, so status writes,
// retries, and document creation stay in one place.
package pipeline

import (
	"context"
	"errors"
	"time"

	"library-backend/internal/documents"
	"library-backend/internal/embeddings"
	"library-backend/internal/extract"
	"library-backend/internal/llm"
	"library-backend/internal/processing"
	"library-backend/internal/shared/metrics"
	"library-backend/internal/shared/storage/object"
	"library-backend/internal/shared/telemetry"
	"library-backend/internal/workflow"
)

// Processor executes the processing stages for queued files.
type Processor struct {
	Repo      processing.Repo
	Engine    *workflow.Engine
	Store     object.ObjectStore
	LLM       llm.Client
	Embedder  embeddings.Embedder
	Chunker   embeddings.Chunker
	Documents *documents.Service

	now func() time.Time
}

// NewProcessor wires a processor over the shared services.
func NewProcessor(repo processing.Repo, engine *workflow.Engine, store object.ObjectStore, llmClient llm.Client, embedder embeddings.Embedder, chunker embeddings.Chunker, docs *documents.Service) *Processor {
	return &Processor{
		Repo:      repo,
		Engine:    engine,
		Store:     store,
		LLM:       llmClient,
		Embedder:  embedder,
		Chunker:   chunker,
		Documents: docs,
		now:       time.Now,
	}
}

// ProcessFile runs the full stage sequence for a queued file. Stage failures
// are recorded through the engine (which schedules retries) and do not
// propagate as errors; only infrastructure faults where queue redelivery can
// help return non-nil.
func (p *Processor) ProcessFile(ctx context.Context, fileID string) error {
	metrics.IncPipelineStarted()
	started := p.now()

	res, err := p.Engine.Transition(ctx, fileID, workflow.Event{Type: workflow.EventExtractionStarted})
	if err != nil {
		return p.classifyTransitionErr(fileID, "extraction_started", err)
	}
	if res.Discarded {
		return nil
	}

	file, err := p.Repo.GetFile(ctx, fileID)
	if err != nil {
		return err
	}

	text, ok, err := p.runExtraction(ctx, file)
	if err != nil || !ok {
		return err
	}

	if ok, err := p.runAnalysis(ctx, file, text); err != nil || !ok {
		return err
	}

	documentID, ok, err := p.runEmbeddings(ctx, file, text)
	if err != nil || !ok {
		return err
	}

	res, err = p.Engine.Transition(ctx, fileID, workflow.Event{Type: workflow.EventReviewReady})
	if err != nil {
		return p.classifyTransitionErr(fileID, "review_ready", err)
	}
	if res.Discarded {
		return nil
	}

	elapsed := p.now().Sub(started)
	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(elapsed.Milliseconds()))
	telemetry.Info("pipeline.completed", map[string]any{
		"file_id":     fileID,
		"batch_id":    file.BatchID,
		"document_id": documentID,
		"duration_ms": elapsed.Milliseconds(),
	})
	return nil
}

// runExtraction pulls the stored object, extracts text, and advances the
// file past the extraction stage. ok is false when the pipeline should stop
// (stage failed or the file reached a terminal status mid-flight).
func (p *Processor) runExtraction(ctx context.Context, file processing.File) (string, bool, error) {
	result, extractedKey, err := extract.ExtractText(ctx, p.Store, file.StoredPath, file.MimeType, file.OriginalFilename)
	if err != nil {
		return "", false, p.failStage(ctx, file.ID, workflow.EventExtractionFailed, "extraction", err)
	}

	if err := p.Repo.SetExtractedTextKey(ctx, file.ID, extractedKey); err != nil {
		return "", false, err
	}

	stats := result.Stats
	res, err := p.Engine.Transition(ctx, file.ID, workflow.Event{
		Type:  workflow.EventTextExtracted,
		Stats: &stats,
	})
	if err != nil {
		return "", false, p.classifyTransitionErr(file.ID, "text_extracted", err)
	}
	return result.Text, !res.Discarded, nil
}

func (p *Processor) runAnalysis(ctx context.Context, file processing.File, text string) (bool, error) {
	client := llm.WithRetry(p.LLM, file.ID)
	md, err := client.ExtractMetadata(ctx, llm.MetadataInput{
		Filename: file.OriginalFilename,
		Text:     text,
	})
	if err != nil {
		return false, p.failStage(ctx, file.ID, workflow.EventAnalysisFailed, "analysis", err)
	}

	res, err := p.Engine.Transition(ctx, file.ID, workflow.Event{
		Type:     workflow.EventMetadataExtracted,
		Metadata: &md,
	})
	if err != nil {
		return false, p.classifyTransitionErr(file.ID, "metadata_extracted", err)
	}
	return !res.Discarded, nil
}

// runEmbeddings chunks and embeds the text, then fires the stage-completion
// event. The engine creates the library document on that transition; chunks
// are persisted afterwards keyed by the new document id, so a replayed
// message lands on the same rows.
func (p *Processor) runEmbeddings(ctx context.Context, file processing.File, text string) (string, bool, error) {
	chunks, err := embeddings.EmbedChunks(ctx, p.Chunker, p.Embedder, text)
	if err != nil {
		return "", false, p.failStage(ctx, file.ID, workflow.EventEmbeddingFailed, "embedding", err)
	}

	res, err := p.Engine.Transition(ctx, file.ID, workflow.Event{
		Type:       workflow.EventEmbeddingsGenerated,
		ChunkCount: len(chunks),
	})
	if err != nil {
		return "", false, p.classifyTransitionErr(file.ID, "embeddings_generated", err)
	}
	if res.Discarded && res.DocumentID == "" {
		return "", false, nil
	}

	if res.DocumentID != "" && len(chunks) > 0 {
		docChunks := make([]documents.Chunk, len(chunks))
		for i, ch := range chunks {
			docChunks[i] = documents.Chunk{
				Index:         ch.Index,
				Content:       ch.Content,
				Embedding:     ch.Embedding,
				TokenEstimate: ch.TokenEstimate,
			}
		}
		if err := p.Documents.SaveChunks(ctx, res.DocumentID, file.ID, docChunks); err != nil {
			return "", false, err
		}
	}
	return res.DocumentID, true, nil
}

// failStage records a stage failure through the engine. The engine decides
// whether a retry gets scheduled; either way the message is done, so the
// caller gets nil unless the failure event itself could not be persisted.
func (p *Processor) failStage(ctx context.Context, fileID string, event workflow.EventType, stage string, cause error) error {
	metrics.IncPipelineFailed()
	telemetry.Error("pipeline.stage_failed", map[string]any{
		"file_id": fileID,
		"stage":   stage,
		"error":   cause.Error(),
	})

	res, err := p.Engine.Transition(ctx, fileID, workflow.Event{
		Type:         event,
		ErrorMessage: cause.Error(),
		ErrorDetails: map[string]any{"stage": stage},
	})
	if err != nil {
		return p.classifyTransitionErr(fileID, string(event), err)
	}
	if res.RetryExhausted {
		telemetry.Error("pipeline.retries_exhausted", map[string]any{
			"file_id": fileID,
			"stage":   stage,
		})
	}
	return nil
}

// classifyTransitionErr separates races from faults. An invalid or stale
// transition means another worker or a cancellation got there first; the
// message is consumed without error. Persistence faults propagate so the
// queue redelivers.
func (p *Processor) classifyTransitionErr(fileID, event string, err error) error {
	if errors.Is(err, workflow.ErrInvalidTransition) || errors.Is(err, workflow.ErrStaleTransition) || errors.Is(err, workflow.ErrFileNotFound) {
		telemetry.Info("pipeline.transition_skipped", map[string]any{
			"file_id": fileID,
			"event":   event,
			"reason":  err.Error(),
		})
		return nil
	}
	return err
}
