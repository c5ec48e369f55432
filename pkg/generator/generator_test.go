package generator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdata/chargepipe/internal/models"
	"github.com/evdata/chargepipe/pkg/generator"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func okMetrics(chunkID string) models.ChunkMetrics {
	return models.ChunkMetrics{ChunkID: chunkID, Status: models.MetricsOK, Coherence: 4}
}

func TestGenerate_ParsesPairs(t *testing.T) {
	client := &fakeCompleter{response: `[
		{"question": "What is CCS?", "answer": "A DC fast-charging connector standard."},
		{"question": "What power does it deliver?", "answer": "Up to 350 kW."}
	]`}
	g := generator.NewWithConfig(generator.GeneratorConfig{NumQuestions: 2, MinCoherence: 3}, client)

	chunks := []models.Chunk{{ID: "c1", Text: "CCS delivers up to 350 kW."}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	assert.Equal(t, "c1", pairs[0].ChunkID)
	assert.Equal(t, "What is CCS?", pairs[0].Question)
	assert.Equal(t, "A DC fast-charging connector standard.", pairs[0].Answer)
	assert.NotEmpty(t, pairs[0].ID)
}

func TestGenerate_SkipsLowCoherenceChunks(t *testing.T) {
	client := &fakeCompleter{response: `[{"question": "q", "answer": "a"}]`}
	g := generator.NewWithConfig(generator.GeneratorConfig{MinCoherence: 3}, client)

	chunks := []models.Chunk{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}
	metrics := []models.ChunkMetrics{
		{ChunkID: "c1", Status: models.MetricsOK, Coherence: 2},
		{ChunkID: "c2", Status: models.MetricsFailed},
		okMetrics("c3"),
	}

	pairs, err := g.Generate(context.Background(), chunks, metrics)
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
	require.Len(t, pairs, 1)
	assert.Equal(t, "c3", pairs[0].ChunkID)
}

func TestGenerate_StripsMarkdownFence(t *testing.T) {
	client := &fakeCompleter{
		response: "```json\n[{\"question\": \"What is AC charging?\", \"answer\": \"Charging via onboard converter.\"}]\n```",
	}
	g := generator.NewWithConfig(generator.GeneratorConfig{}, client)

	chunks := []models.Chunk{{ID: "c1"}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "What is AC charging?", pairs[0].Question)
}

func TestGenerate_MalformedResponseSkipped(t *testing.T) {
	client := &fakeCompleter{response: "Sure! Here are some questions you could ask."}
	g := generator.NewWithConfig(generator.GeneratorConfig{}, client)

	chunks := []models.Chunk{{ID: "c1"}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestGenerate_RepairsTruncatedArray(t *testing.T) {
	client := &fakeCompleter{response: `[{"question": "What is CHAdeMO?", "answer": "A Japanese DC standard."}`}
	g := generator.NewWithConfig(generator.GeneratorConfig{}, client)

	chunks := []models.Chunk{{ID: "c1"}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "What is CHAdeMO?", pairs[0].Question)
}

func TestGenerate_FailedCallSkipsChunk(t *testing.T) {
	client := &fakeCompleter{err: errors.New("boom")}
	g := generator.NewWithConfig(generator.GeneratorConfig{}, client)

	chunks := []models.Chunk{{ID: "c1"}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestGenerate_DropsPairsMissingFields(t *testing.T) {
	client := &fakeCompleter{response: `[
		{"question": "What types of connectors exist?", "answer": "CCS, CHAdeMO, Type 2."},
		{"question": "", "answer": "orphan answer"},
		{"question": "orphan question", "answer": "  "}
	]`}
	g := generator.NewWithConfig(generator.GeneratorConfig{}, client)

	chunks := []models.Chunk{{ID: "c1"}}
	pairs, err := g.Generate(context.Background(), chunks, []models.ChunkMetrics{okMetrics("c1")})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "What types of connectors exist?", pairs[0].Question)
}
