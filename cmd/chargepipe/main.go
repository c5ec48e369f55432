package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	cfgPkg "github.com/evdata/chargepipe/pkg/config"
	"github.com/evdata/chargepipe/pkg/pipeline"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		log.Fatal(err)
	}
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(configPath string) error {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	if errors := config.Validate(); len(errors) > 0 {
		for _, e := range errors {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	if err := cfgPkg.InitLogger(config); err != nil {
		return fmt.Errorf("failed to init logger: %v", err)
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var processed int64
	var bar *progressbar.ProgressBar

	stageNames := map[string]string{
		"collect":     "📄 Collecting sources...",
		"chunk":       "🔪 Chunking text...",
		"evaluate":    "📊 Evaluating chunks...",
		"generate":    "🧠 Generating Q&A pairs...",
		"deduplicate": "🧹 Deduplicating pairs...",
	}

	p, err := pipeline.New(config, pipeline.Options{
		OnStage: func(name string) {
			if bar != nil {
				bar.Finish()
				fmt.Print("\n")
			}
			atomic.StoreInt64(&processed, 0)
			bar = getSpinner(stageNames[name])
		},
		OnItem: func(stage, id string) {
			count := atomic.AddInt64(&processed, 1)
			if bar != nil {
				bar.Set(int(count))
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %v", err)
	}

	color.Blue("\nStarting EV charging Q&A pipeline (%d web, %d pdf sources)\n",
		len(config.Sources.Web), len(config.Sources.PDFs))

	start := time.Now()
	summary, err := p.Run(ctx)
	if bar != nil {
		bar.Finish()
		fmt.Print("\n")
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %v", err)
	}

	color.Green("\n✓ Pipeline finished in %s", time.Since(start).Round(time.Second))
	color.Green("✓ %d documents → %d chunks (%d evaluated, %d failed)",
		summary.Documents, summary.Chunks, summary.Evaluated, summary.Failed)
	color.Green("✓ %d Q&A pairs → %d after deduplication",
		summary.QAPairs, summary.Deduplicated)
	color.Cyan("\nOutput tables written to %s\n", config.Files.OutputDir)

	return nil
}
