package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID       string             `json:"documentId"`
	Title            string             `json:"title"`
	Authors          []string           `json:"authors,omitempty"`
	PublicationDate  string             `json:"publicationDate,omitempty"`
	DocType          string             `json:"docType"`
	DocCategory      string             `json:"docCategory"`
	Description      string             `json:"description,omitempty"`
	Keywords         []string           `json:"keywords,omitempty"`
	BluebookCitation string             `json:"bluebookCitation,omitempty"`
	Confidence       map[string]float64 `json:"confidence,omitempty"`
	OriginalFilename string             `json:"originalFilename"`
	MimeType         string             `json:"mimeType"`
	FileSize         int64              `json:"fileSize"`
	WordCount        int                `json:"wordCount"`
	PageCount        int                `json:"pageCount"`
	ChunkCount       int                `json:"chunkCount"`
	Status           string             `json:"status"`
	ReviewedBy       string             `json:"reviewedBy,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewedAt,omitempty"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:       doc.ID,
		Title:            doc.Title,
		Authors:          doc.Authors,
		PublicationDate:  doc.PublicationDate,
		DocType:          doc.DocType,
		DocCategory:      doc.DocCategory,
		Description:      doc.Description,
		Keywords:         doc.Keywords,
		BluebookCitation: doc.BluebookCitation,
		Confidence:       doc.Confidence,
		OriginalFilename: doc.OriginalFilename,
		MimeType:         doc.MimeType,
		FileSize:         doc.FileSize,
		WordCount:        doc.WordCount,
		PageCount:        doc.PageCount,
		ChunkCount:       doc.ChunkCount,
		Status:           doc.Status,
		ReviewedBy:       doc.ReviewedBy,
		ReviewedAt:       doc.ReviewedAt,
		CreatedAt:        doc.CreatedAt,
	}
}
