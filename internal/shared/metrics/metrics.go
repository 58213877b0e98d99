package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	fileUploadsTotal          atomic.Uint64
	fileTransitionsTotal      atomic.Uint64
	fileRetriesScheduledTotal atomic.Uint64
	fileRetriesExhaustedTotal atomic.Uint64
	filesDuplicateTotal       atomic.Uint64
	documentsCreatedTotal     atomic.Uint64
	pipelineStartedTotal      atomic.Uint64
	pipelineCompletedTotal    atomic.Uint64
	pipelineFailedTotal       atomic.Uint64

	queueJobsReceivedTotal  atomic.Uint64
	queueJobsCompletedTotal atomic.Uint64
	queueJobsFailedTotal    atomic.Uint64
	queueJobsDroppedTotal   atomic.Uint64

	pipelineDuration = newHistogram([]float64{500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000})
)

// IncFileUploads increments the accepted-upload counter.
func IncFileUploads() {
	fileUploadsTotal.Add(1)
}

// IncFileTransitions increments the status-transition counter.
func IncFileTransitions() {
	fileTransitionsTotal.Add(1)
}

// IncFileRetriesScheduled increments the scheduled-retry counter.
func IncFileRetriesScheduled() {
	fileRetriesScheduledTotal.Add(1)
}

// IncFileRetriesExhausted increments the exhausted-retry counter.
func IncFileRetriesExhausted() {
	fileRetriesExhaustedTotal.Add(1)
}

// IncFilesDuplicate increments the duplicate-detection counter.
func IncFilesDuplicate() {
	filesDuplicateTotal.Add(1)
}

// IncDocumentsCreated increments the documents-created counter.
func IncDocumentsCreated() {
	documentsCreatedTotal.Add(1)
}

// IncPipelineStarted increments the pipeline-run counter.
func IncPipelineStarted() {
	pipelineStartedTotal.Add(1)
}

// IncPipelineCompleted increments the pipeline-completed counter.
func IncPipelineCompleted() {
	pipelineCompletedTotal.Add(1)
}

// IncPipelineFailed increments the pipeline-failed counter.
func IncPipelineFailed() {
	pipelineFailedTotal.Add(1)
}

// IncQueueJobsReceived increments the queue-messages-received counter.
func IncQueueJobsReceived() {
	queueJobsReceivedTotal.Add(1)
}

// IncQueueJobsCompleted increments the queue-messages-completed counter.
func IncQueueJobsCompleted() {
	queueJobsCompletedTotal.Add(1)
}

// IncQueueJobsFailed increments the queue-messages-failed counter.
func IncQueueJobsFailed() {
	queueJobsFailedTotal.Add(1)
}

// IncQueueJobsDropped increments the counter for unrecoverable messages
// deleted without processing.
func IncQueueJobsDropped() {
	queueJobsDroppedTotal.Add(1)
}

// ObservePipelineDurationMs records a full pipeline run duration in milliseconds.
func ObservePipelineDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	pipelineDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "file_uploads_total", "Total files accepted for processing", fileUploadsTotal.Load())
	writeCounter(&buf, "file_transitions_total", "Total file status transitions applied", fileTransitionsTotal.Load())
	writeCounter(&buf, "file_retries_scheduled_total", "Total stage retries scheduled", fileRetriesScheduledTotal.Load())
	writeCounter(&buf, "file_retries_exhausted_total", "Total files that exhausted their retries", fileRetriesExhaustedTotal.Load())
	writeCounter(&buf, "files_duplicate_total", "Total uploads flagged as duplicates", filesDuplicateTotal.Load())
	writeCounter(&buf, "documents_created_total", "Total library documents created", documentsCreatedTotal.Load())
	writeCounter(&buf, "pipeline_started_total", "Total pipeline runs started", pipelineStartedTotal.Load())
	writeCounter(&buf, "pipeline_completed_total", "Total pipeline runs completed", pipelineCompletedTotal.Load())
	writeCounter(&buf, "pipeline_failed_total", "Total pipeline runs failed", pipelineFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_received_total", "Total queue messages received", queueJobsReceivedTotal.Load())
	writeCounter(&buf, "queue_jobs_completed_total", "Total queue messages processed and deleted", queueJobsCompletedTotal.Load())
	writeCounter(&buf, "queue_jobs_failed_total", "Total queue messages whose processing failed", queueJobsFailedTotal.Load())
	writeCounter(&buf, "queue_jobs_dropped_total", "Total unrecoverable queue messages deleted", queueJobsDroppedTotal.Load())
	writeHistogram(&buf, "pipeline_duration_ms", "Pipeline run duration in milliseconds", pipelineDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
