package db

import (
	"regexp"
	"strings"
	"testing"

	"library-backend/internal/workflow"
)

func TestBatchStatusConstraintMatchesEnum(t *testing.T) {
	data, err := migrationFiles.ReadFile("migrations/00001_create_processing_tables.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	script := string(data)

	marker := "processing_batches_status_check CHECK (status IN ("
	start := strings.Index(script, marker)
	if start < 0 {
		t.Fatal("batch status constraint not found")
	}
	length := strings.Index(script[start:], "))")
	if length < 0 {
		t.Fatal("batch status constraint not closed")
	}
	block := script[start : start+length]

	listed := map[string]bool{}
	for _, m := range regexp.MustCompile(`'([a-z_]+)'`).FindAllStringSubmatch(block, -1) {
		listed[m[1]] = true
	}

	want := []workflow.BatchStatus{
		workflow.BatchCreated,
		workflow.BatchUploading,
		workflow.BatchProcessing,
		workflow.BatchProcessingComplete,
		workflow.BatchReviewReady,
		workflow.BatchUnderReview,
		workflow.BatchReviewComplete,
		workflow.BatchCompleted,
		workflow.BatchPartiallyCompleted,
		workflow.BatchFailed,
		workflow.BatchCancelled,
	}
	if len(listed) != len(want) {
		t.Fatalf("constraint lists %d statuses, enum has %d: %v", len(listed), len(want), listed)
	}
	for _, s := range want {
		if !listed[string(s)] {
			t.Errorf("constraint missing %s", s)
		}
	}
}
