package collector

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/evdata/chargepipe/internal/models"
)

func (c *Collector) collectWeb(ctx context.Context, url string) (models.SourceDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.SourceDocument{}, eris.Wrap(err, "collector: build request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.SourceDocument{}, eris.Wrap(err, "collector: fetch page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.SourceDocument{}, eris.New(
			fmt.Sprintf("collector: status %d for %s", resp.StatusCode, url))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return models.SourceDocument{}, eris.Wrap(err, "collector: parse html")
	}

	sections := extractSections(doc)
	if len(sections) == 0 {
		sections = fallbackSection(doc)
	}

	return models.SourceDocument{
		ID:       uuid.NewString(),
		Source:   url,
		Kind:     models.KindWeb,
		Title:    strings.TrimSpace(doc.Find("title").Text()),
		Sections: sections,
	}, nil
}

// extractSections walks headings and paragraphs in document order, grouping
// paragraph text under the most recent h1/h2/h3.
func extractSections(doc *goquery.Document) []models.Section {
	var sections []models.Section

	heading := "Intro"
	var body []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, " "))
		if text != "" {
			sections = append(sections, models.Section{Heading: heading, Body: text})
		}
		body = nil
	}

	doc.Find("h1, h2, h3, p").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "h1", "h2", "h3":
			flush()
			if t := strings.TrimSpace(sel.Text()); t != "" {
				heading = t
			}
		case "p":
			if t := strings.TrimSpace(sel.Text()); t != "" {
				body = append(body, t)
			}
		}
	})
	flush()

	return sections
}

// fallbackSection grabs the main content area as a single section when the
// page has no usable heading/paragraph structure.
func fallbackSection(doc *goquery.Document) []models.Section {
	selectors := []string{"main", "article", ".content", "#content", "body"}

	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			text := strings.TrimSpace(strings.Join(strings.Fields(selected.Text()), " "))
			if text != "" {
				return []models.Section{{Heading: "General", Body: text}}
			}
		}
	}

	return nil
}
