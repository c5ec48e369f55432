package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/evdata/chargepipe/internal/models"
)

// pageTimeout bounds text extraction for a single PDF page; some malformed
// PDFs make the parser spin.
const pageTimeout = 10 * time.Second

// Numbered headings like "3. Charging Infrastructure" or "Methodology:".
var pdfHeadingPattern = regexp.MustCompile(`\n?\s*(\d{0,2}\.?\s*[A-Z][^\n:.]{3,80})[:\n]`)

func (c *Collector) collectPDF(ctx context.Context, source string) (models.SourceDocument, error) {
	path := source
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		local, err := c.downloadPDF(ctx, source)
		if err != nil {
			return models.SourceDocument{}, err
		}
		defer os.Remove(local)
		path = local
	}

	text, err := extractPDFText(path)
	if err != nil {
		return models.SourceDocument{}, err
	}

	sections := splitPDFSections(text)

	return models.SourceDocument{
		ID:       uuid.NewString(),
		Source:   source,
		Kind:     models.KindPDF,
		Title:    strings.TrimSuffix(filepath.Base(source), ".pdf"),
		Sections: sections,
	}, nil
}

func (c *Collector) downloadPDF(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "collector: build pdf request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "collector: download pdf")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.New(fmt.Sprintf("collector: status %d for %s", resp.StatusCode, url))
	}

	tmp, err := os.CreateTemp("", "chargepipe-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "collector: create temp file")
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrap(err, "collector: write temp file")
	}

	return tmp.Name(), nil
}

func extractPDFText(path string) (string, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "collector: open pdf")
	}

	var pages []string
	numPages := f.NumPage()
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := extractPage(page)
		if err != nil {
			zap.L().Warn("skipping pdf page",
				zap.String("path", path),
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		pages = append(pages, content)
	}

	return strings.Join(pages, "\n"), nil
}

// extractPage runs page extraction in a goroutine so a hung parse cannot
// stall the whole batch.
func extractPage(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resCh := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resCh <- result{content, err}
	}()

	select {
	case r := <-resCh:
		return r.content, r.err
	case <-time.After(pageTimeout):
		return "", eris.New("collector: page extraction timed out")
	}
}

// splitPDFSections cuts the extracted text on numbered-heading boundaries,
// falling back to a single section when none are found.
func splitPDFSections(text string) []models.Section {
	matches := pdfHeadingPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		body := strings.TrimSpace(text)
		if body == "" {
			return nil
		}
		return []models.Section{{Heading: "General", Body: body}}
	}

	var sections []models.Section
	for i, m := range matches {
		heading := strings.TrimSpace(text[m[2]:m[3]])
		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[start:end])
		if body == "" {
			continue
		}
		sections = append(sections, models.Section{Heading: heading, Body: body})
	}

	// Text before the first heading still counts.
	if lead := strings.TrimSpace(text[:matches[0][0]]); lead != "" {
		sections = append([]models.Section{{Heading: "Intro", Body: lead}}, sections...)
	}

	return sections
}
