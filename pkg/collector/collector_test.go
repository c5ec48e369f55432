package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evdata/chargepipe/internal/models"
)

const testPage = `
<html>
	<head><title>EV Charging Overview</title></head>
	<body>
		<h1>Connector Types</h1>
		<p>CCS and CHAdeMO dominate DC fast charging.</p>
		<p>Type 2 is common for AC charging in Europe.</p>
		<h2>Deployment</h2>
		<p>Public charger counts grew steadily.</p>
	</body>
</html>`

func newTestServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
}

func TestCollect_WebSections(t *testing.T) {
	server := newTestServer(testPage)
	defer server.Close()

	c := NewWithConfig(CollectorConfig{
		WebURLs:   []string{server.URL},
		RateLimit: 100,
	})

	docs, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "EV Charging Overview", doc.Title)
	assert.Equal(t, models.KindWeb, doc.Kind)
	assert.Equal(t, server.URL, doc.Source)
	assert.NotEmpty(t, doc.ID)

	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Connector Types", doc.Sections[0].Heading)
	assert.Contains(t, doc.Sections[0].Body, "CCS and CHAdeMO")
	assert.Contains(t, doc.Sections[0].Body, "Type 2")
	assert.Equal(t, "Deployment", doc.Sections[1].Heading)
}

func TestCollect_FallbackWithoutHeadings(t *testing.T) {
	server := newTestServer(`<html><body><main>Plain charging station text.</main></body></html>`)
	defer server.Close()

	c := NewWithConfig(CollectorConfig{
		WebURLs:   []string{server.URL},
		RateLimit: 100,
	})

	docs, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Sections, 1)
	assert.Equal(t, "General", docs[0].Sections[0].Heading)
	assert.Contains(t, docs[0].Sections[0].Body, "Plain charging station text")
}

func TestCollect_FailingSourceSkipped(t *testing.T) {
	good := newTestServer(testPage)
	defer good.Close()

	bad := newTestServer("")
	badURL := bad.URL
	bad.Close() // connection refused

	var seen []string
	c := NewWithConfig(CollectorConfig{
		WebURLs:   []string{badURL, good.URL},
		RateLimit: 100,
		OnProgress: func(source string) {
			seen = append(seen, source)
		},
	})

	docs, err := c.Collect(context.Background())
	require.NoError(t, err)

	// The dead source yields nothing but the batch continues.
	require.Len(t, docs, 1)
	assert.Equal(t, good.URL, docs[0].Source)
	assert.Equal(t, []string{badURL, good.URL}, seen)
}

func TestCollect_NonOKStatusSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	c := NewWithConfig(CollectorConfig{
		WebURLs:   []string{server.URL},
		RateLimit: 100,
	})

	docs, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSplitPDFSections(t *testing.T) {
	text := "Preamble text here.\n1. Introduction:\nEV adoption is rising fast.\n2. Methodology:\nWe surveyed charging networks."

	sections := splitPDFSections(text)
	require.Len(t, sections, 3)

	assert.Equal(t, "Intro", sections[0].Heading)
	assert.Contains(t, sections[0].Body, "Preamble")
	assert.Equal(t, "1. Introduction", sections[1].Heading)
	assert.Contains(t, sections[1].Body, "EV adoption")
	assert.Equal(t, "2. Methodology", sections[2].Heading)
}

func TestSplitPDFSections_Fallback(t *testing.T) {
	sections := splitPDFSections("just some lowercase text without headings")
	require.Len(t, sections, 1)
	assert.Equal(t, "General", sections[0].Heading)
}

func TestCollect_MissingPDFSkipped(t *testing.T) {
	c := NewWithConfig(CollectorConfig{
		PDFSources: []string{"/nonexistent/report.pdf"},
		RateLimit:  100,
	})

	docs, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCollect_ContextCancelled(t *testing.T) {
	server := newTestServer(testPage)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewWithConfig(CollectorConfig{
		WebURLs:   []string{server.URL},
		RateLimit: 100,
	})

	_, err := c.Collect(ctx)
	assert.Error(t, err)
}
