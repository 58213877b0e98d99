package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of DocumentsRepo for dev and tests.
type MemoryRepo struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	chunks map[string][]Chunk // documentID -> chunks
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:   make(map[string]*Document),
		chunks: make(map[string][]Chunk),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := doc
	r.docs[doc.ID] = &stored
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.IsDeleted {
		return Document{}, ErrNotFound
	}
	return *doc, nil
}

func (r *MemoryRepo) ListActive(ctx context.Context, filter ListFilter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Document
	for _, doc := range r.docs {
		if doc.IsDeleted || doc.Status != StatusActive {
			continue
		}
		if filter.DocType != "" && doc.DocType != filter.DocType {
			continue
		}
		if filter.DocCategory != "" && doc.DocCategory != filter.DocCategory {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(doc.Title), needle) &&
				!strings.Contains(strings.ToLower(doc.Description), needle) {
				continue
			}
		}
		out = append(out, *doc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *MemoryRepo) ListByStatus(ctx context.Context, status string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Document
	for _, doc := range r.docs {
		if !doc.IsDeleted && doc.Status == status {
			out = append(out, *doc)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, limit, offset), nil
}

func page(docs []Document, limit, offset int) []Document {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(docs) {
		return []Document{}
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}

func (r *MemoryRepo) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, doc := range r.docs {
		if doc.ContentHash == contentHash && !doc.IsDeleted && doc.Status != StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepo) SetReviewOutcome(ctx context.Context, documentID, reviewerID, notes, status string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.IsDeleted {
		return ErrNotFound
	}
	doc.Status = status
	doc.IsReviewed = true
	doc.ReviewedBy = reviewerID
	reviewed := at
	doc.ReviewedAt = &reviewed
	doc.ReviewNotes = notes
	doc.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, documentID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.IsDeleted {
		return ErrNotFound
	}
	doc.Status = StatusDeleted
	doc.IsDeleted = true
	doc.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) Archive(ctx context.Context, documentID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentID]
	if !ok || doc.IsDeleted || doc.Status != StatusActive {
		return ErrNotFound
	}
	doc.Status = StatusArchived
	doc.IsArchived = true
	doc.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := Stats{
		ByType:     map[string]int{},
		ByCategory: map[string]int{},
	}
	for _, doc := range r.docs {
		if doc.IsDeleted || doc.Status != StatusActive {
			continue
		}
		stats.TotalDocuments++
		stats.TotalChunks += doc.ChunkCount
		stats.TotalWords += int64(doc.WordCount)
		stats.ByType[doc.DocType]++
		stats.ByCategory[doc.DocCategory]++
	}
	return stats, nil
}

func (r *MemoryRepo) CreateChunks(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chunk := range chunks {
		existing := r.chunks[chunk.DocumentID]
		replay := false
		for _, c := range existing {
			if c.Index == chunk.Index {
				replay = true
				break
			}
		}
		if !replay {
			r.chunks[chunk.DocumentID] = append(existing, chunk)
		}
	}
	return nil
}

func (r *MemoryRepo) CountChunks(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks[documentID]), nil
}

var _ DocumentsRepo = (*MemoryRepo)(nil)
