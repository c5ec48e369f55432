// Package collector fetches raw text from web pages and PDF documents.
package collector

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/evdata/chargepipe/internal/models"
)

type CollectorConfig struct {
	WebURLs    []string
	PDFSources []string // URLs or local file paths
	RateLimit  float64  // requests per second
	Timeout    time.Duration
	OnProgress func(source string)
}

// Collector fetches each configured source and extracts heading-structured
// text. A failing source is logged and skipped; it never aborts the batch.
type Collector struct {
	config  CollectorConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config CollectorConfig) *Collector {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}

	return &Collector{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Collect fetches every configured source in order. The returned error is
// non-nil only when the context is cancelled.
func (c *Collector) Collect(ctx context.Context) ([]models.SourceDocument, error) {
	var docs []models.SourceDocument

	for _, url := range c.config.WebURLs {
		if err := c.limiter.Wait(ctx); err != nil {
			return docs, err
		}
		if c.config.OnProgress != nil {
			c.config.OnProgress(url)
		}

		doc, err := c.collectWeb(ctx, url)
		if err != nil {
			zap.L().Warn("skipping web source",
				zap.String("url", url),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	for _, src := range c.config.PDFSources {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		if c.config.OnProgress != nil {
			c.config.OnProgress(src)
		}

		doc, err := c.collectPDF(ctx, src)
		if err != nil {
			zap.L().Warn("skipping pdf source",
				zap.String("source", src),
				zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}
