package catalog

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/pkg/notion"
)

const defaultBatchSize = 500

// ProductWriter persists imported products. Satisfied by store.Store.
type ProductWriter interface {
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
}

// ImportStats summarizes one import.
type ImportStats struct {
	Source      string        `json:"source"`
	Rows        int           `json:"rows"`
	Imported    int           `json:"imported"`
	MissingName int           `json:"missing_name"`
	InvalidCAS  int           `json:"invalid_cas"`
	Duration    time.Duration `json:"duration"`
}

// Skipped is the number of rows rejected by validation.
func (s ImportStats) Skipped() int {
	return s.MissingName + s.InvalidCAS
}

// Importer loads catalog sources into a ProductWriter in batches.
type Importer struct {
	store     ProductWriter
	fetcher   Fetcher
	notion    notion.Client
	batchSize int
	tempDir   string
}

// Option configures an Importer.
type Option func(*Importer)

// WithFetcher sets the fetcher used for remote URLs.
func WithFetcher(f Fetcher) Option {
	return func(i *Importer) { i.fetcher = f }
}

// WithNotion enables the Notion database source.
func WithNotion(c notion.Client) Option {
	return func(i *Importer) { i.notion = c }
}

// WithBatchSize sets the upsert batch size.
func WithBatchSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithTempDir sets the download directory for remote files.
func WithTempDir(dir string) Option {
	return func(i *Importer) { i.tempDir = dir }
}

// NewImporter creates an Importer writing to w.
func NewImporter(w ProductWriter, opts ...Option) *Importer {
	i := &Importer{store: w, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import loads src, which may be a local path, an http(s) or ftp URL, or
// "notion:<database-id>".
func (i *Importer) Import(ctx context.Context, src string) (*ImportStats, error) {
	if dbID, ok := strings.CutPrefix(src, "notion:"); ok {
		return i.ImportNotion(ctx, dbID, false)
	}
	if u, err := url.Parse(src); err == nil {
		switch u.Scheme {
		case "http", "https", "ftp":
			return i.ImportURL(ctx, src)
		}
	}
	return i.ImportFile(ctx, src)
}

// ImportFile loads a local CSV, TSV or XLSX file, chosen by extension.
func (i *Importer) ImportFile(ctx context.Context, path string) (*ImportStats, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		return i.importRows(ctx, path, sliceRows(rows), nil)
	case ".tsv", ".tab":
		return i.importCSVFile(ctx, path, CSVOptions{Delimiter: '\t', LazyQuotes: true})
	default:
		return i.importCSVFile(ctx, path, CSVOptions{LazyQuotes: true})
	}
}

func (i *Importer) importCSVFile(ctx context.Context, path string, opts CSVOptions) (*ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return i.ImportReader(ctx, path, f, opts)
}

// ImportReader loads CSV text whose first row is the header.
func (i *Importer) ImportReader(ctx context.Context, name string, r io.Reader, opts CSVOptions) (*ImportStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := StreamCSV(ctx, r, opts)
	return i.importRows(ctx, name, rowCh, errCh)
}

// ImportURL downloads rawURL into the temp dir and imports it as a file.
func (i *Importer) ImportURL(ctx context.Context, rawURL string) (*ImportStats, error) {
	if i.fetcher == nil {
		return nil, eris.New("catalog: no fetcher configured for remote sources")
	}
	path, n, err := DownloadToTemp(ctx, i.fetcher, rawURL, i.tempDir)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path) //nolint:errcheck

	zap.L().Info("catalog: downloaded source",
		zap.String("url", rawURL),
		zap.Int64("bytes", n),
	)

	stats, err := i.ImportFile(ctx, path)
	if stats != nil {
		stats.Source = rawURL
	}
	return stats, err
}

// ImportNotion loads every page of a Notion product database.
func (i *Importer) ImportNotion(ctx context.Context, dbID string, activeOnly bool) (*ImportStats, error) {
	if i.notion == nil {
		return nil, eris.New("catalog: notion source not configured")
	}
	start := time.Now()

	pages, err := notion.QueryProducts(ctx, i.notion, dbID, activeOnly)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: import notion")
	}

	stats := &ImportStats{Source: "notion:" + dbID}
	b := i.newBatcher(stats)
	for _, page := range pages {
		stats.Rows++
		p := ProductFromFields(notion.FlattenProperties(page), model.SourceNotion)
		if err := b.add(ctx, p, stats.Rows); err != nil {
			return stats, err
		}
	}
	if err := b.flush(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	logStats(stats)
	return stats, nil
}

// importRows consumes a header-first row stream. errCh may be nil.
func (i *Importer) importRows(ctx context.Context, name string, rowCh <-chan []string, errCh <-chan error) (*ImportStats, error) {
	start := time.Now()
	stats := &ImportStats{Source: name}
	b := i.newBatcher(stats)

	var mapper *RowMapper
	for row := range rowCh {
		if blankRow(row) {
			continue
		}
		if mapper == nil {
			m, err := NewRowMapper(row)
			if err != nil {
				return nil, err
			}
			mapper = m
			zap.L().Debug("catalog: header mapped",
				zap.String("source", name),
				zap.Strings("columns", mapper.Columns()),
			)
			continue
		}
		stats.Rows++
		if err := b.add(ctx, mapper.Product(row), stats.Rows); err != nil {
			return stats, err
		}
	}
	if errCh != nil {
		if err := <-errCh; err != nil {
			return stats, eris.Wrapf(err, "catalog: read %s", name)
		}
	}
	if mapper == nil {
		return nil, eris.Errorf("catalog: %s has no header row", name)
	}
	if err := b.flush(ctx); err != nil {
		return stats, err
	}
	stats.Duration = time.Since(start)
	logStats(stats)
	return stats, nil
}

type batcher struct {
	store ProductWriter
	size  int
	buf   []model.Product
	stats *ImportStats
}

func (i *Importer) newBatcher(stats *ImportStats) *batcher {
	return &batcher{store: i.store, size: i.batchSize, stats: stats, buf: make([]model.Product, 0, i.batchSize)}
}

// add validates p and queues it, flushing when the batch is full.
func (b *batcher) add(ctx context.Context, p model.Product, row int) error {
	if err := Validate(p); err != nil {
		switch {
		case errors.Is(err, ErrMissingName):
			b.stats.MissingName++
		case errors.Is(err, ErrInvalidCAS):
			b.stats.InvalidCAS++
		}
		zap.L().Debug("catalog: skipping row",
			zap.String("source", b.stats.Source),
			zap.Int("row", row),
			zap.String("reason", err.Error()),
		)
		return nil
	}
	b.buf = append(b.buf, p)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	n, err := b.store.UpsertProducts(ctx, b.buf)
	if err != nil {
		return eris.Wrap(err, "catalog: upsert batch")
	}
	b.stats.Imported += n
	b.buf = b.buf[:0]
	return nil
}

func sliceRows(rows [][]string) <-chan []string {
	ch := make(chan []string, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

func logStats(s *ImportStats) {
	zap.L().Info("catalog: import complete",
		zap.String("source", s.Source),
		zap.Int("rows", s.Rows),
		zap.Int("imported", s.Imported),
		zap.Int("missing_name", s.MissingName),
		zap.Int("invalid_cas", s.InvalidCAS),
		zap.Duration("duration", s.Duration),
	)
}
