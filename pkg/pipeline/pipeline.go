// Package pipeline drives the stages in order: collect, chunk, evaluate,
// generate, deduplicate. Each stage's table is written before the next stage
// starts and re-read as its input, so the handoff between stages is always
// the file on disk.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evdata/chargepipe/internal/models"
	"github.com/evdata/chargepipe/pkg/collector"
	"github.com/evdata/chargepipe/pkg/config"
	"github.com/evdata/chargepipe/pkg/dedup"
	"github.com/evdata/chargepipe/pkg/evaluator"
	"github.com/evdata/chargepipe/pkg/generator"
	"github.com/evdata/chargepipe/pkg/llm"
	"github.com/evdata/chargepipe/pkg/processor"
	"github.com/evdata/chargepipe/pkg/store"
)

// Completer matches the client surface the evaluator and generator take.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Options allows callers to substitute pipeline internals, mainly so tests
// can run the full driver without hosted endpoints.
type Options struct {
	EvaluatorClient Completer
	GeneratorClient Completer
	OnStage         func(name string)
	OnItem          func(stage, id string)
}

// Summary reports what each stage produced.
type Summary struct {
	Documents    int
	Chunks       int
	Evaluated    int
	Failed       int
	QAPairs      int
	Deduplicated int
}

// Pipeline owns the configured stages for one end-to-end run.
type Pipeline struct {
	cfg   *config.Config
	opts  Options
	store *store.Store
}

func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	st, err := store.NewWithConfig(store.StoreConfig{
		Dir:              cfg.Files.OutputDir,
		ChunksFile:       cfg.Files.ChunksCSV,
		MetricsFile:      cfg.Files.ChunkMetricsCSV,
		QAPairsFile:      cfg.Files.QAPairsCSV,
		DeduplicatedFile: cfg.Files.DeduplicatedCSV,
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:   cfg,
		opts:  opts,
		store: st,
	}

	if p.opts.EvaluatorClient == nil {
		client, err := llm.NewWithConfig(clientConfig(cfg.Evaluator, cfg))
		if err != nil {
			return nil, err
		}
		p.opts.EvaluatorClient = client
	}
	if p.opts.GeneratorClient == nil {
		client, err := llm.NewWithConfig(clientConfig(cfg.Generator, cfg))
		if err != nil {
			return nil, err
		}
		p.opts.GeneratorClient = client
	}

	return p, nil
}

func clientConfig(p config.ProviderConfig, cfg *config.Config) llm.ClientConfig {
	return llm.ClientConfig{
		BaseURL:       p.BaseURL,
		APIKey:        p.APIKey,
		Model:         p.Model,
		Temperature:   p.Temperature,
		MaxTokens:     p.MaxTokens,
		RetryAttempts: cfg.Params.RetryAttempts,
		RateLimit:     cfg.Params.RateLimit,
		Timeout:       time.Duration(cfg.Params.RequestTimeoutSecs) * time.Second,
	}
}

// Store exposes the table paths for callers that inspect artifacts.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

// Run executes all five stages. A stage error halts the run; tables written
// by completed stages stay on disk for inspection.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	p.stage("collect")
	docs, err := p.collect(ctx)
	if err != nil {
		return summary, err
	}
	summary.Documents = len(docs)
	zap.L().Info("collected sources", zap.Int("documents", len(docs)))

	p.stage("chunk")
	proc := processor.NewWithConfig(processor.ProcessorConfig{
		MaxWords:     p.cfg.Processor.MaxWords,
		OverlapWords: p.cfg.Processor.OverlapWords,
	})
	chunks, err := proc.Process(docs)
	if err != nil {
		return summary, err
	}
	if err := p.store.WriteChunks(chunks); err != nil {
		return summary, err
	}
	summary.Chunks = len(chunks)
	zap.L().Info("wrote chunks table",
		zap.Int("chunks", len(chunks)),
		zap.String("path", p.store.ChunksPath()))

	p.stage("evaluate")
	chunks, err = p.store.ReadChunks()
	if err != nil {
		return summary, err
	}
	eval := evaluator.NewWithConfig(evaluator.EvaluatorConfig{
		OnProgress: p.item("evaluate"),
	}, p.opts.EvaluatorClient)
	metrics, err := eval.Evaluate(ctx, chunks)
	if err != nil {
		return summary, err
	}
	if err := p.store.WriteMetrics(metrics); err != nil {
		return summary, err
	}
	for _, m := range metrics {
		if m.Status == models.MetricsFailed {
			summary.Failed++
		}
	}
	summary.Evaluated = len(metrics)
	zap.L().Info("wrote chunk metrics table",
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("failed", summary.Failed),
		zap.String("path", p.store.MetricsPath()))

	p.stage("generate")
	metrics, err = p.store.ReadMetrics()
	if err != nil {
		return summary, err
	}
	gen := generator.NewWithConfig(generator.GeneratorConfig{
		NumQuestions: p.cfg.Params.NumQuestions,
		MinCoherence: p.cfg.Params.MinCoherence,
		OnProgress:   p.item("generate"),
	}, p.opts.GeneratorClient)
	pairs, err := gen.Generate(ctx, chunks, metrics)
	if err != nil {
		return summary, err
	}
	if err := p.store.WriteQAPairs(pairs); err != nil {
		return summary, err
	}
	summary.QAPairs = len(pairs)
	zap.L().Info("wrote q&a table",
		zap.Int("pairs", len(pairs)),
		zap.String("path", p.store.QAPairsPath()))

	p.stage("deduplicate")
	pairs, err = p.store.ReadQAPairs()
	if err != nil {
		return summary, err
	}
	deduper := dedup.NewWithConfig(dedup.DeduperConfig{
		Threshold: p.cfg.Params.FuzzyThreshold,
	})
	unique := deduper.Deduplicate(pairs)
	if err := p.store.WriteDeduplicated(unique); err != nil {
		return summary, err
	}
	summary.Deduplicated = len(unique)
	zap.L().Info("wrote deduplicated q&a table",
		zap.Int("kept", len(unique)),
		zap.Int("dropped", len(pairs)-len(unique)),
		zap.String("path", p.store.DeduplicatedPath()))

	return summary, nil
}

func (p *Pipeline) collect(ctx context.Context) ([]models.SourceDocument, error) {
	c := collector.NewWithConfig(collector.CollectorConfig{
		WebURLs:    p.cfg.Sources.Web,
		PDFSources: p.cfg.Sources.PDFs,
		RateLimit:  p.cfg.Params.RateLimit,
		Timeout:    time.Duration(p.cfg.Params.RequestTimeoutSecs) * time.Second,
		OnProgress: p.item("collect"),
	})
	return c.Collect(ctx)
}

func (p *Pipeline) stage(name string) {
	if p.opts.OnStage != nil {
		p.opts.OnStage(name)
	}
}

func (p *Pipeline) item(stage string) func(string) {
	if p.opts.OnItem == nil {
		return nil
	}
	return func(id string) {
		p.opts.OnItem(stage, id)
	}
}
