package openai

import "strings"

// maxPromptChars caps how much document text goes into the prompt; metadata
// lives in the front matter, so the head of the document is enough.
const maxPromptChars = 50000

const metadataPromptTemplate = `Analyze this document and extract metadata in JSON format.

Document filename: %FILENAME%
Document text: %TEXT%

Extract the following metadata:

1. title: Clear, descriptive title (if not obvious from text, derive from content)
2. authors: List of author names (empty list if none found)
3. publication_date: ISO date if found (YYYY-MM-DD format, null if not found)
4. doc_type: One of ["book", "article", "statute", "case_law", "expert_report", "other"]
   - book: Books, textbooks, reference materials
   - article: Academic papers, journal articles, research papers
   - statute: Laws, regulations, statutes
   - case_law: Court cases, legal precedents
   - expert_report: Expert witness reports, professional analyses
   - other: Any other document type
5. doc_category: One of ["PI", "WD", "EM", "BV", "Other"]
   - PI: Personal Injury related
   - WD: Wrongful Death related
   - EM: Employment related
   - BV: Business Valuation related
   - Other: Other categories
6. description: Brief 2-3 sentence summary of document content
7. keywords: List of relevant keywords/tags (5-10 keywords)
8. bluebook_citation: If this is a legal document (case_law or statute), provide proper Bluebook citation format. Otherwise null.
9. confidence_scores: Object with confidence (0-1) for each field:
   - title_confidence
   - authors_confidence
   - date_confidence
   - type_confidence
   - category_confidence

Return ONLY valid JSON with no additional text or formatting:

{
  "title": "string",
  "authors": ["string"],
  "publication_date": "YYYY-MM-DD or null",
  "doc_type": "string",
  "doc_category": "string",
  "description": "string",
  "keywords": ["string"],
  "bluebook_citation": "string or null",
  "confidence_scores": {
    "title_confidence": 0.0,
    "authors_confidence": 0.0,
    "date_confidence": 0.0,
    "type_confidence": 0.0,
    "category_confidence": 0.0
  }
}`

// BuildMetadataPrompt renders the extraction prompt for one document.
func BuildMetadataPrompt(filename, text string) string {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars] + "...[truncated]"
	}
	prompt := strings.ReplaceAll(metadataPromptTemplate, "%FILENAME%", filename)
	return strings.ReplaceAll(prompt, "%TEXT%", text)
}
