// Package store persists every stage's output as a CSV table. The tables
// are the only handoff between stages; read/write failures are fatal to the
// run, unlike per-record failures upstream.
package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/evdata/chargepipe/internal/models"
)

type StoreConfig struct {
	Dir              string
	ChunksFile       string
	MetricsFile      string
	QAPairsFile      string
	DeduplicatedFile string
}

// Store reads and writes the pipeline's tabular artifacts under Dir.
type Store struct {
	config StoreConfig
}

func NewWithConfig(config StoreConfig) (*Store, error) {
	if config.Dir == "" {
		config.Dir = "data"
	}
	if config.ChunksFile == "" {
		config.ChunksFile = "chunks.csv"
	}
	if config.MetricsFile == "" {
		config.MetricsFile = "chunk_metrics.csv"
	}
	if config.QAPairsFile == "" {
		config.QAPairsFile = "qa_pairs.csv"
	}
	if config.DeduplicatedFile == "" {
		config.DeduplicatedFile = "qa_pairs_deduplicated.csv"
	}

	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "store: create output dir")
	}

	return &Store{config: config}, nil
}

func (s *Store) ChunksPath() string  { return filepath.Join(s.config.Dir, s.config.ChunksFile) }
func (s *Store) MetricsPath() string { return filepath.Join(s.config.Dir, s.config.MetricsFile) }
func (s *Store) QAPairsPath() string { return filepath.Join(s.config.Dir, s.config.QAPairsFile) }

func (s *Store) DeduplicatedPath() string {
	return filepath.Join(s.config.Dir, s.config.DeduplicatedFile)
}

var chunkHeader = []string{"chunk_id", "source_id", "source", "kind", "section", "seq", "text"}

func (s *Store) WriteChunks(chunks []models.Chunk) error {
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, []string{
			c.ID, c.SourceID, c.Source, string(c.Kind), c.Section, strconv.Itoa(c.Seq), c.Text,
		})
	}
	return writeTable(s.ChunksPath(), chunkHeader, rows)
}

func (s *Store) ReadChunks() ([]models.Chunk, error) {
	rows, err := readTable(s.ChunksPath(), len(chunkHeader))
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(rows))
	for _, row := range rows {
		seq, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, eris.Wrap(err, "store: parse chunk seq")
		}
		chunks = append(chunks, models.Chunk{
			ID:       row[0],
			SourceID: row[1],
			Source:   row[2],
			Kind:     models.SourceKind(row[3]),
			Section:  row[4],
			Seq:      seq,
			Text:     row[6],
		})
	}
	return chunks, nil
}

var metricsHeader = []string{"chunk_id", "status", "coherence", "incomplete", "token_count", "overlap", "comment"}

func (s *Store) WriteMetrics(metrics []models.ChunkMetrics) error {
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{
			m.ChunkID,
			m.Status,
			strconv.Itoa(m.Coherence),
			strconv.FormatBool(m.Incomplete),
			strconv.Itoa(m.TokenCount),
			strconv.Itoa(m.Overlap),
			m.Comment,
		})
	}
	return writeTable(s.MetricsPath(), metricsHeader, rows)
}

func (s *Store) ReadMetrics() ([]models.ChunkMetrics, error) {
	rows, err := readTable(s.MetricsPath(), len(metricsHeader))
	if err != nil {
		return nil, err
	}

	metrics := make([]models.ChunkMetrics, 0, len(rows))
	for _, row := range rows {
		coherence, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, eris.Wrap(err, "store: parse coherence")
		}
		incomplete, err := strconv.ParseBool(row[3])
		if err != nil {
			return nil, eris.Wrap(err, "store: parse incomplete")
		}
		tokenCount, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, eris.Wrap(err, "store: parse token count")
		}
		overlap, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, eris.Wrap(err, "store: parse overlap")
		}
		metrics = append(metrics, models.ChunkMetrics{
			ChunkID:    row[0],
			Status:     row[1],
			Coherence:  coherence,
			Incomplete: incomplete,
			TokenCount: tokenCount,
			Overlap:    overlap,
			Comment:    row[6],
		})
	}
	return metrics, nil
}

var qaHeader = []string{"pair_id", "chunk_id", "question", "answer"}

func (s *Store) WriteQAPairs(pairs []models.QAPair) error {
	return writePairs(s.QAPairsPath(), pairs)
}

func (s *Store) ReadQAPairs() ([]models.QAPair, error) {
	return readPairs(s.QAPairsPath())
}

func (s *Store) WriteDeduplicated(pairs []models.QAPair) error {
	return writePairs(s.DeduplicatedPath(), pairs)
}

func (s *Store) ReadDeduplicated() ([]models.QAPair, error) {
	return readPairs(s.DeduplicatedPath())
}

func writePairs(path string, pairs []models.QAPair) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.ID, p.ChunkID, p.Question, p.Answer})
	}
	return writeTable(path, qaHeader, rows)
}

func readPairs(path string) ([]models.QAPair, error) {
	rows, err := readTable(path, len(qaHeader))
	if err != nil {
		return nil, err
	}

	pairs := make([]models.QAPair, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, models.QAPair{
			ID:       row[0],
			ChunkID:  row[1],
			Question: row[2],
			Answer:   row[3],
		})
	}
	return pairs, nil
}

func writeTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "store: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "store: write header to %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		return eris.Wrapf(err, "store: write rows to %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "store: flush %s", path)
	}

	return f.Close()
}

func readTable(path string, fields int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}
	if len(records) == 0 {
		return nil, eris.New("store: missing header in " + path)
	}

	return records[1:], nil
}
