package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"library-backend/internal/shared/storage/object"
	"library-backend/internal/workflow"
)

const (
	mimePDF      = "application/pdf"
	mimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText     = "text/plain"
	mimeMarkdown = "text/markdown"
)

// Result is the extracted text plus its derived counts.
type Result struct {
	Text  string
	Stats workflow.TextStats
}

// ExtractText pulls text from a stored object and persists a derived
// .extracted.txt copy alongside it. Returns the text with word, page, and
// character counts.
func ExtractText(ctx context.Context, store object.ObjectStore, fileKey string, mimeType string, fileName string) (Result, string, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, "", err
	}

	body, err := store.Open(ctx, fileKey)
	if err != nil {
		return Result{}, "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return Result{}, "", fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	result, err := ExtractFromBytes(ctx, raw, mimeType, fileName)
	if err != nil {
		return Result{}, "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	extractedKey := fileKey + ".extracted.txt"
	if err := saveExtracted(ctx, store, extractedKey, result.Text); err != nil {
		return Result{}, "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	return result, extractedKey, nil
}

// ExtractFromBytes extracts text and counts from an in-memory payload.
func ExtractFromBytes(ctx context.Context, data []byte, mimeType string, fileName string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	normalized := normalizeMimeType(mimeType, fileName, data)
	switch normalized {
	case mimePDF:
		text, pages, err := extractPDF(data)
		if err != nil {
			return Result{}, err
		}
		return withStats(text, pages), nil
	case mimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return Result{}, err
		}
		return withStats(text, 1), nil
	case mimeText, mimeMarkdown:
		if !utf8.Valid(data) {
			return Result{}, errors.New("text file is not valid utf-8")
		}
		return withStats(string(data), 1), nil
	default:
		return Result{}, fmt.Errorf("unsupported mime type: %s", normalized)
	}
}

func withStats(text string, pages int) Result {
	return Result{
		Text: text,
		Stats: workflow.TextStats{
			WordCount: len(strings.Fields(text)),
			PageCount: pages,
			CharCount: utf8.RuneCountInString(text),
		},
	}
}

type keySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

func saveExtracted(ctx context.Context, store object.ObjectStore, key string, text string) error {
	saver, ok := store.(keySaver)
	if !ok {
		return errors.New("object store does not support SaveWithKey")
	}
	reader := strings.NewReader(text)
	_, err := saver.SaveWithKey(ctx, key, "text/plain; charset=utf-8", reader)
	return err
}

func extractPDF(data []byte) (string, int, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, err
	}
	return buf.String(), pdfReader.NumPage(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return stripDocxXML(string(raw)), nil
}

func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if last := buf.Len(); last > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func normalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == "" || clean == "application/octet-stream" {
		switch strings.ToLower(filepath.Ext(fileName)) {
		case ".pdf":
			return mimePDF
		case ".txt":
			return mimeText
		case ".md":
			return mimeMarkdown
		case ".docx":
			return mimeDOCX
		}
	}
	if clean != "application/zip" {
		return clean
	}

	if mapped := mapOOXMLFromZip(data); mapped != "" {
		return mapped
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".docx":
		return mimeDOCX
	default:
		return clean
	}
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	readerAt := bytes.NewReader(data)
	zr, err := zip.NewReader(readerAt, int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			return mimeDOCX
		}
	}
	return ""
}
