package processor

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/evdata/chargepipe/internal/models"
)

type ProcessorConfig struct {
	MaxWords     int // target chunk length in words
	OverlapWords int // words repeated from the previous chunk
}

// Processor cleans collected text and splits it into bounded-size chunks.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.MaxWords == 0 {
		config.MaxWords = 500
	}
	if config.OverlapWords < 0 || config.OverlapWords >= config.MaxWords {
		config.OverlapWords = 0
	}

	return Processor{
		config: config,
	}
}

var (
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	tagPattern      = regexp.MustCompile(`<[^>]+>`)
	citationPattern = regexp.MustCompile(`\[\d+(–\d+)?\]`)
	captionPattern  = regexp.MustCompile(`(Figure|Table) \d+[^.\n]*`)
)

// Process turns collected documents into chunks. Sequence indexes increase
// across a document's sections, so chunk order matches reading order.
func (p *Processor) Process(docs []models.SourceDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk

	for _, doc := range docs {
		seq := 0
		for _, section := range doc.Sections {
			clean := p.CleanText(section.Body)
			if clean == "" {
				continue
			}

			for _, text := range p.splitIntoChunks(clean) {
				chunks = append(chunks, models.Chunk{
					ID:       uuid.NewString(),
					SourceID: doc.ID,
					Source:   doc.Source,
					Kind:     doc.Kind,
					Section:  section.Heading,
					Seq:      seq,
					Text:     text,
				})
				seq++
			}
		}
	}

	return chunks, nil
}

// CleanText strips URLs, leftover HTML tags, bracketed citations and
// figure/table captions, then collapses whitespace.
func (p *Processor) CleanText(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = tagPattern.ReplaceAllString(text, "")
	text = citationPattern.ReplaceAllString(text, "")
	text = captionPattern.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

// splitIntoChunks windows the cleaned text into word spans of MaxWords,
// stepping by MaxWords-OverlapWords so consecutive chunks share the overlap.
// Text shorter than MaxWords yields a single chunk; empty text yields none.
func (p *Processor) splitIntoChunks(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= p.config.MaxWords {
		return []string{strings.Join(words, " ")}
	}

	step := p.config.MaxWords - p.config.OverlapWords

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + p.config.MaxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}

	return chunks
}
