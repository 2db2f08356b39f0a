package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

// PDFLoader reads a PDF from disk, one record per page.
type PDFLoader struct{}

func (PDFLoader) Load(ctx context.Context, location string) ([]schema.Document, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}
	return loadPDF(ctx, f, info.Size(), location)
}

func loadPDF(ctx context.Context, r io.ReaderAt, size int64, source string) ([]schema.Document, error) {
	pages, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	records := make([]schema.Document, 0, len(pages))
	for i, page := range pages {
		records = append(records, newRecord(page.PageContent, source, i+1, KindPDF))
	}
	return records, nil
}
