package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"library-backend/internal/llm"
	"library-backend/internal/workflow"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// Client calls the OpenAI chat completions API to pull structured metadata
// out of extracted document text. It implements llm.Client.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ llm.Client = (*Client)(nil)

// NewClient builds a client from the environment. LLM_MODEL and
// OPENAI_API_KEY are required; OPENAI_TIMEOUT_SECONDS overrides the default
// HTTP timeout.
func NewClient() (*Client, error) {
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		return nil, fmt.Errorf("LLM_MODEL not set")
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	timeout := defaultTimeout
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// WithBaseURL points the client at an alternate endpoint. Used by tests and
// OpenAI-compatible proxies.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// metadataPayload is the JSON shape the model is instructed to return.
type metadataPayload struct {
	Title            string             `json:"title"`
	Authors          []string           `json:"authors"`
	PublicationDate  *string            `json:"publication_date"`
	DocType          string             `json:"doc_type"`
	DocCategory      string             `json:"doc_category"`
	Description      string             `json:"description"`
	Keywords         []string           `json:"keywords"`
	BluebookCitation *string            `json:"bluebook_citation"`
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// ExtractMetadata runs the metadata prompt against the document text. A
// response that is not valid JSON gets one corrective follow-up before the
// call fails.
func (c *Client) ExtractMetadata(ctx context.Context, in llm.MetadataInput) (workflow.Metadata, error) {
	prompt := BuildMetadataPrompt(in.Filename, in.Text)
	messages := []chatMessage{
		{Role: "system", Content: "You extract bibliographic metadata from legal and economic research documents. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}

	content, err := c.complete(ctx, messages)
	if err != nil {
		return workflow.Metadata{}, err
	}

	payload, perr := parsePayload(content)
	if perr != nil {
		messages = append(messages,
			chatMessage{Role: "assistant", Content: content},
			chatMessage{Role: "user", Content: "The previous response was not valid JSON: " + perr.Error() + ". Return only the corrected JSON object."},
		)
		content, err = c.complete(ctx, messages)
		if err != nil {
			return workflow.Metadata{}, err
		}
		payload, perr = parsePayload(content)
		if perr != nil {
			return workflow.Metadata{}, fmt.Errorf("parse metadata response: %w", perr)
		}
	}

	return normalize(payload, in.Filename), nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	temp := float32(0)
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    &temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncateForError(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response had no choices")
	}
	logUsage(c.model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, parsed.Usage.TotalTokens)
	return parsed.Choices[0].Message.Content, nil
}

func parsePayload(content string) (metadataPayload, error) {
	var payload metadataPayload
	trimmed := strings.TrimSpace(content)
	// Some models wrap JSON in a markdown fence despite instructions.
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(trimmed)), &payload); err != nil {
		return metadataPayload{}, err
	}
	return payload, nil
}

var validDocTypes = map[string]bool{
	"book": true, "article": true, "statute": true,
	"case_law": true, "expert_report": true, "other": true,
}

var validDocCategories = map[string]bool{
	"PI": true, "WD": true, "EM": true, "BV": true, "Other": true,
}

// normalize coerces a model payload into the metadata the workflow carries,
// falling back to safe defaults where the model returned junk.
func normalize(p metadataPayload, filename string) workflow.Metadata {
	md := workflow.Metadata{
		Title:       strings.TrimSpace(p.Title),
		Authors:     p.Authors,
		DocType:     strings.ToLower(strings.TrimSpace(p.DocType)),
		DocCategory: strings.TrimSpace(p.DocCategory),
		Description: strings.TrimSpace(p.Description),
		Keywords:    p.Keywords,
		Confidence:  p.ConfidenceScores,
	}
	if md.Title == "" {
		if filename != "" {
			md.Title = filename
		} else {
			md.Title = "Unknown Title"
		}
	}
	if md.Authors == nil {
		md.Authors = []string{}
	}
	if md.Keywords == nil {
		md.Keywords = []string{}
	}
	if !validDocTypes[md.DocType] {
		md.DocType = "other"
	}
	if !validDocCategories[md.DocCategory] {
		md.DocCategory = "Other"
	}
	if p.PublicationDate != nil {
		if d := strings.TrimSpace(*p.PublicationDate); isISODate(d) {
			md.PublicationDate = d
		}
	}
	if p.BluebookCitation != nil {
		md.BluebookCitation = strings.TrimSpace(*p.BluebookCitation)
	}
	if md.Confidence == nil {
		md.Confidence = map[string]float64{}
	}
	return md
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func truncateForError(raw []byte) string {
	const max = 512
	if len(raw) > max {
		raw = raw[:max]
	}
	return string(raw)
}

func logUsage(model string, prompt, completion, total int) {
	log.Printf("openai usage model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, prompt, completion, total)
}
