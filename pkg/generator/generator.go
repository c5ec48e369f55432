// Package generator produces question-answer pairs from qualifying chunks.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evdata/chargepipe/internal/models"
)

// Completer is the minimal LLM surface the generator needs.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "You are a helpful assistant that generates Q&A pairs from technical content."

type GeneratorConfig struct {
	NumQuestions int // pairs requested per chunk
	MinCoherence int // chunks below this score are skipped
	OnProgress   func(chunkID string)
}

// Generator asks the hosted LLM for Q&A pairs grounded in each qualifying
// chunk. Malformed responses are skipped with a warning.
type Generator struct {
	config GeneratorConfig
	client Completer
}

func NewWithConfig(config GeneratorConfig, client Completer) *Generator {
	if config.NumQuestions == 0 {
		config.NumQuestions = 3
	}
	if config.MinCoherence == 0 {
		config.MinCoherence = 3
	}

	return &Generator{
		config: config,
		client: client,
	}
}

// Qualifies reports whether a chunk's metrics pass the quality gate.
func (g *Generator) Qualifies(m models.ChunkMetrics) bool {
	return m.Status == models.MetricsOK && m.Coherence >= g.config.MinCoherence
}

// Generate produces Q&A pairs for every chunk whose metrics qualify. Chunks
// without a metrics record are skipped.
func (g *Generator) Generate(ctx context.Context, chunks []models.Chunk, metrics []models.ChunkMetrics) ([]models.QAPair, error) {
	byChunk := make(map[string]models.ChunkMetrics, len(metrics))
	for _, m := range metrics {
		byChunk[m.ChunkID] = m
	}

	var pairs []models.QAPair
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}

		m, ok := byChunk[chunk.ID]
		if !ok || !g.Qualifies(m) {
			continue
		}
		if g.config.OnProgress != nil {
			g.config.OnProgress(chunk.ID)
		}

		generated, err := g.generateForChunk(ctx, chunk)
		if err != nil {
			zap.L().Warn("q&a generation failed",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err))
			continue
		}
		pairs = append(pairs, generated...)
	}

	return pairs, nil
}

func (g *Generator) generateForChunk(ctx context.Context, chunk models.Chunk) ([]models.QAPair, error) {
	raw, err := g.client.Complete(ctx, systemPrompt, g.buildPrompt(chunk.Text))
	if err != nil {
		return nil, err
	}

	parsed, err := parsePairs(raw)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.QAPair, 0, len(parsed))
	for _, p := range parsed {
		question := strings.TrimSpace(p.Question)
		answer := strings.TrimSpace(p.Answer)
		if question == "" || answer == "" {
			continue
		}
		pairs = append(pairs, models.QAPair{
			ID:       uuid.NewString(),
			ChunkID:  chunk.ID,
			Question: question,
			Answer:   answer,
		})
	}

	return pairs, nil
}

func (g *Generator) buildPrompt(chunk string) string {
	return fmt.Sprintf(`Generate %d question-and-answer pairs from the following text.
Each pair should be an object with "question" and "answer" keys.
Return the full output as a JSON array like this:

[
  {"question": "What is ...?", "answer": "The ..."},
  ...
]

Text:
"""%s"""`, g.config.NumQuestions, chunk)
}

type rawPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// parsePairs extracts the JSON array from the completion. When the payload
// was cut off after a closing brace, one repair attempt appends the missing
// bracket before giving up.
func parsePairs(raw string) ([]rawPair, error) {
	start := strings.Index(raw, "[")
	if start == -1 {
		return nil, eris.New("generator: no JSON array in response")
	}
	payload := strings.TrimSpace(raw[start:])

	var pairs []rawPair
	if end := strings.LastIndex(payload, "]"); end != -1 {
		if err := json.Unmarshal([]byte(payload[:end+1]), &pairs); err == nil {
			return pairs, nil
		}
	}
	if err := json.Unmarshal([]byte(payload), &pairs); err == nil {
		return pairs, nil
	}

	if strings.HasSuffix(payload, "}") {
		if err := json.Unmarshal([]byte(payload+"]"), &pairs); err == nil {
			zap.L().Warn("repaired truncated q&a payload")
			return pairs, nil
		}
	}

	return nil, eris.New("generator: malformed JSON array in response")
}
