package pipeline_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdata/chargepipe/pkg/config"
	"github.com/evdata/chargepipe/pkg/pipeline"
)

type evalClient struct{}

func (evalClient) Complete(_ context.Context, _ string, _ string) (string, error) {
	return `{"coherence": 4, "incomplete": "No", "token_count": 40, "comment": "fine"}`, nil
}

// genClient returns the same questions for every chunk, so pairs from the
// second chunk are duplicates of the first.
type genClient struct{ calls int }

func (g *genClient) Complete(_ context.Context, _ string, _ string) (string, error) {
	g.calls++
	return `[
		{"question": "What connector types exist for EV charging?", "answer": "CCS, CHAdeMO, Type 2."},
		{"question": "What is a Level 2 charger?", "answer": "An AC charger up to 19.2 kW."}
	]`, nil
}

func testPage() string {
	body := "<html><head><title>EV Guide</title></head><body><h1>Charging</h1>"
	for i := 0; i < 5; i++ {
		body += fmt.Sprintf("<p>Paragraph %d about electric vehicle charging infrastructure and connector standards in detail.</p>", i)
	}
	return body + "</body></html>"
}

func writeConfig(t *testing.T, sourceURL, outDir string) *config.Config {
	t.Helper()

	configData := fmt.Sprintf(`
sources:
  web:
    - %s
evaluator:
  api_key: k
generator:
  api_key: k
processor:
  max_words: 20
  overlap_words: 5
params:
  rate_limit: 1000
files:
  output_dir: %q
`, sourceURL, outDir)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configData), 0644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Validate())
	return cfg
}

func TestPipeline_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage()))
	}))
	defer server.Close()

	outDir := t.TempDir()
	cfg := writeConfig(t, server.URL, outDir)

	gen := &genClient{}
	var stages []string
	p, err := pipeline.New(cfg, pipeline.Options{
		EvaluatorClient: evalClient{},
		GeneratorClient: gen,
		OnStage:         func(name string) { stages = append(stages, name) },
	})
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"collect", "chunk", "evaluate", "generate", "deduplicate"}, stages)
	assert.Equal(t, 1, summary.Documents)
	assert.Greater(t, summary.Chunks, 1)
	assert.Equal(t, summary.Chunks, summary.Evaluated)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, summary.Chunks, gen.calls)
	assert.Equal(t, 2*summary.Chunks, summary.QAPairs)

	// Every chunk repeats the same two questions, so only the first
	// chunk's pairs survive deduplication.
	assert.Equal(t, 2, summary.Deduplicated)

	st := p.Store()

	chunks, err := st.ReadChunks()
	require.NoError(t, err)
	require.Len(t, chunks, summary.Chunks)

	chunkIDs := make(map[string]bool)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Words(), cfg.Processor.MaxWords)
		chunkIDs[c.ID] = true
	}

	// Referential integrity of the written tables.
	metrics, err := st.ReadMetrics()
	require.NoError(t, err)
	require.Len(t, metrics, summary.Chunks)
	for _, m := range metrics {
		assert.True(t, chunkIDs[m.ChunkID], "metric references unknown chunk %s", m.ChunkID)
	}

	pairs, err := st.ReadQAPairs()
	require.NoError(t, err)
	for _, p := range pairs {
		assert.True(t, chunkIDs[p.ChunkID], "pair references unknown chunk %s", p.ChunkID)
	}

	deduped, err := st.ReadDeduplicated()
	require.NoError(t, err)
	assert.Len(t, deduped, 2)

	// All four tables exist on disk.
	for _, path := range []string{st.ChunksPath(), st.MetricsPath(), st.QAPairsPath(), st.DeduplicatedPath()} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
}

func TestPipeline_FailingSourceStillCompletes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage()))
	}))
	defer server.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	cfg := writeConfig(t, server.URL, t.TempDir())
	cfg.Sources.Web = append([]string{deadURL}, cfg.Sources.Web...)

	p, err := pipeline.New(cfg, pipeline.Options{
		EvaluatorClient: evalClient{},
		GeneratorClient: &genClient{},
	})
	require.NoError(t, err)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Documents)
	assert.Greater(t, summary.Chunks, 0)
}
