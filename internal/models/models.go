package models

import "strings"

// SourceKind identifies where a document came from.
type SourceKind string

const (
	KindWeb SourceKind = "web"
	KindPDF SourceKind = "pdf"
)

// Section is a heading-scoped span of extracted text.
type Section struct {
	Heading string
	Body    string
}

// SourceDocument is one scraped web page or PDF. Immutable after collection.
type SourceDocument struct {
	ID       string
	Source   string // URL or file path
	Kind     SourceKind
	Title    string
	Sections []Section
}

// Text returns the concatenated section bodies.
func (d SourceDocument) Text() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		if s.Body != "" {
			parts = append(parts, s.Body)
		}
	}
	return strings.Join(parts, " ")
}

// Chunk is a word-bounded span of cleaned text with its position in the
// originating document.
type Chunk struct {
	ID       string
	SourceID string
	Source   string
	Kind     SourceKind
	Section  string
	Seq      int
	Text     string
}

// Words returns the chunk length in words.
func (c Chunk) Words() int {
	return len(strings.Fields(c.Text))
}

// Metric status values.
const (
	MetricsOK     = "ok"
	MetricsFailed = "failed"
)

// ChunkMetrics holds the LLM quality judgment for one chunk. A chunk whose
// evaluation call or response parse failed is recorded with MetricsFailed.
type ChunkMetrics struct {
	ChunkID    string
	Status     string
	Coherence  int // 1-5
	Incomplete bool
	TokenCount int
	Overlap    int // 1-5, 0 when there was no previous chunk
	Comment    string
}

// QAPair is one generated question/answer grounded in a chunk.
type QAPair struct {
	ID       string
	ChunkID  string
	Question string
	Answer   string
}
