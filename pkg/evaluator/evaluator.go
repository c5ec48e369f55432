// Package evaluator scores chunk quality with a hosted LLM.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evdata/chargepipe/internal/models"
)

// Completer is the minimal LLM surface the evaluator needs.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = "You are a careful annotator that judges text quality for dataset construction."

type EvaluatorConfig struct {
	OnProgress func(chunkID string)
}

// Evaluator issues one quality judgment per chunk. A chunk whose call or
// parse fails is recorded with a failed status; the run continues.
type Evaluator struct {
	config EvaluatorConfig
	client Completer
}

func NewWithConfig(config EvaluatorConfig, client Completer) *Evaluator {
	return &Evaluator{
		config: config,
		client: client,
	}
}

// Evaluate scores every chunk in order, comparing each against its
// predecessor within the same source document for semantic overlap.
func (e *Evaluator) Evaluate(ctx context.Context, chunks []models.Chunk) ([]models.ChunkMetrics, error) {
	metrics := make([]models.ChunkMetrics, 0, len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return metrics, err
		}
		if e.config.OnProgress != nil {
			e.config.OnProgress(chunk.ID)
		}

		var prev string
		if i > 0 && chunks[i-1].SourceID == chunk.SourceID {
			prev = chunks[i-1].Text
		}

		m, err := e.evaluateChunk(ctx, chunk, prev)
		if err != nil {
			zap.L().Warn("chunk evaluation failed",
				zap.String("chunk_id", chunk.ID),
				zap.Error(err))
			m = models.ChunkMetrics{
				ChunkID: chunk.ID,
				Status:  models.MetricsFailed,
				Comment: err.Error(),
			}
		}
		metrics = append(metrics, m)
	}

	return metrics, nil
}

func (e *Evaluator) evaluateChunk(ctx context.Context, chunk models.Chunk, prev string) (models.ChunkMetrics, error) {
	raw, err := e.client.Complete(ctx, systemPrompt, buildPrompt(chunk.Text, prev))
	if err != nil {
		return models.ChunkMetrics{}, err
	}

	parsed, err := parseResponse(raw)
	if err != nil {
		return models.ChunkMetrics{}, err
	}

	return models.ChunkMetrics{
		ChunkID:    chunk.ID,
		Status:     models.MetricsOK,
		Coherence:  parsed.Coherence,
		Incomplete: strings.EqualFold(parsed.Incomplete, "yes"),
		TokenCount: parsed.TokenCount,
		Overlap:    parsed.Overlap,
		Comment:    parsed.Comment,
	}, nil
}

func buildPrompt(chunk, prev string) string {
	var b strings.Builder

	b.WriteString("Evaluate the following text chunk on these metrics:\n")
	b.WriteString("1. Coherence (1-5): does the text flow well and make sense on its own?\n")
	b.WriteString("2. Incomplete Sentences (Yes/No): does the chunk begin or end mid-sentence?\n")
	b.WriteString("3. Token Count: approximately how many tokens?\n")
	if prev != "" {
		b.WriteString("4. Semantic Overlap (1-5) with the previous chunk.\n")
	}

	fmt.Fprintf(&b, "\nChunk:\n\"\"\"%s\"\"\"\n", chunk)
	if prev != "" {
		fmt.Fprintf(&b, "\nPrevious Chunk:\n\"\"\"%s\"\"\"\n", prev)
	}

	b.WriteString("\nReturn only the result as raw JSON, no extra explanation or formatting:\n{\n")
	b.WriteString("  \"coherence\": 1-5,\n")
	b.WriteString("  \"incomplete\": \"Yes\" or \"No\",\n")
	b.WriteString("  \"token_count\": integer,\n")
	if prev != "" {
		b.WriteString("  \"overlap\": 1-5,\n")
	}
	b.WriteString("  \"comment\": \"brief explanation\"\n}")

	return b.String()
}

type response struct {
	Coherence  int    `json:"coherence"`
	Incomplete string `json:"incomplete"`
	TokenCount int    `json:"token_count"`
	Overlap    int    `json:"overlap"`
	Comment    string `json:"comment"`
}

// parseResponse extracts the JSON object from the raw completion, tolerating
// markdown fences and prose around it.
func parseResponse(raw string) (response, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return response{}, eris.New("evaluator: no JSON object in response")
	}

	var parsed response
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return response{}, eris.Wrap(err, "evaluator: parse response")
	}

	if parsed.Coherence < 1 || parsed.Coherence > 5 {
		return response{}, eris.New("evaluator: coherence out of range")
	}

	return parsed, nil
}
