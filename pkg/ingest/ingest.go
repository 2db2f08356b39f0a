package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"golang.org/x/sync/errgroup"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/internal/types"
)

type Config struct {
	Concurrency int
	URL         URLConfig
	Logger      *slog.Logger
}

// Ingestor turns document locations into text records.
type Ingestor struct {
	loaders     map[Kind]types.Loader
	concurrency int
	logger      *slog.Logger
}

func New(config Config) *Ingestor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Ingestor{
		loaders: map[Kind]types.Loader{
			KindPDF:   PDFLoader{},
			KindDOCX:  DOCXLoader{},
			KindEmail: EmailLoader{},
			KindURL:   NewURLLoader(config.URL),
		},
		concurrency: config.Concurrency,
		logger:      config.Logger,
	}
}

// SetLoader replaces the loader used for kind.
func (in *Ingestor) SetLoader(kind Kind, loader types.Loader) {
	in.loaders[kind] = loader
}

// Load dispatches to the loader registered for kind.
func (in *Ingestor) Load(ctx context.Context, kind Kind, location string) ([]schema.Document, error) {
	loader, ok := in.loaders[kind]
	if !ok {
		return nil, fmt.Errorf("no loader for kind %s", kind)
	}
	return loader.Load(ctx, location)
}

// Ingest loads one location. With KindAuto the kind is detected from the
// location.
func (in *Ingestor) Ingest(ctx context.Context, location string, format Kind) ([]schema.Document, error) {
	location = strings.TrimSpace(location)
	kind := format
	if kind == KindAuto {
		detected, err := Detect(location)
		if err != nil {
			return nil, err
		}
		kind = detected
	}
	return in.Load(ctx, kind, location)
}

// Result is the outcome of ingesting a batch of locations. Records keep the
// input location order.
type Result struct {
	Records   []schema.Document
	Processed []string
	Failures  []models.DocumentFailure
}

// IngestAll loads every location concurrently. A failing location is logged
// and reported in Failures without affecting the others; the call only fails
// when nothing could be ingested.
func (in *Ingestor) IngestAll(ctx context.Context, locations []string, format Kind) (*Result, error) {
	type outcome struct {
		records []schema.Document
		err     error
	}
	outcomes := make([]outcome, len(locations))

	var g errgroup.Group
	g.SetLimit(in.concurrency)
	for i, location := range locations {
		g.Go(func() error {
			records, err := in.Ingest(ctx, location, format)
			outcomes[i] = outcome{records: records, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{}
	for i, o := range outcomes {
		if o.err != nil {
			in.logger.Warn("document ingestion failed", "location", locations[i], "error", o.err)
			result.Failures = append(result.Failures, models.DocumentFailure{Location: locations[i], Err: o.err})
			continue
		}
		in.logger.Info("document ingested", "location", locations[i], "records", len(o.records))
		result.Processed = append(result.Processed, locations[i])
		result.Records = append(result.Records, o.records...)
	}

	if len(result.Processed) == 0 {
		return result, &models.NoDocumentsProcessedError{Failures: result.Failures}
	}
	return result, nil
}
