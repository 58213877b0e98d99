package documents

import "time"

// Document statuses. A document is born awaiting review and joins the
// library only once a reviewer approves it.
const (
	StatusReviewPending = "review_pending"
	StatusActive        = "active"
	StatusRejected      = "rejected"
	StatusArchived      = "archived"
	StatusDeleted       = "deleted"
)

// Document is one item in the research library.
type Document struct {
	ID               string
	SourceFileID     string
	Title            string
	Authors          []string
	PublicationDate  string
	DocType          string
	DocCategory      string
	Description      string
	Keywords         []string
	BluebookCitation string
	Confidence       map[string]float64

	OriginalFilename string
	StoredPath       string
	MimeType         string
	ContentHash      string
	FileSize         int64
	WordCount        int
	PageCount        int
	CharCount        int
	ChunkCount       int

	Status     string
	IsReviewed bool
	IsDeleted  bool
	IsArchived bool

	UploadedBy  string
	ReviewedBy  string
	ReviewedAt  *time.Time
	ReviewNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is one embedded slice of a document's text.
type Chunk struct {
	ID               string
	ProcessingFileID string
	DocumentID       string
	Index            int
	Content          string
	Embedding        []float32
	TokenEstimate    int
	CreatedAt        time.Time
}

// Stats summarizes the active library.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
	TotalWords     int64
	ByType         map[string]int
	ByCategory     map[string]int
}

// ListFilter narrows library listings.
type ListFilter struct {
	DocType     string
	DocCategory string
	Search      string
	Limit       int
	Offset      int
}
