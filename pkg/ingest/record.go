package ingest

import (
	"strings"

	"github.com/tmc/langchaingo/schema"
)

const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaKind   = "kind"
	MetaTitle  = "title"
)

func newRecord(content, source string, page int, kind Kind) schema.Document {
	meta := map[string]any{
		MetaSource: source,
		MetaKind:   kind.String(),
	}
	if page > 0 {
		meta[MetaPage] = page
	}
	return schema.Document{
		PageContent: strings.ToValidUTF8(content, ""),
		Metadata:    meta,
	}
}

// Source returns the source recorded on a record, or "" when absent.
func Source(doc schema.Document) string {
	s, _ := doc.Metadata[MetaSource].(string)
	return s
}

// Page returns the 1-based page recorded on a record, or 0 when the loader
// had no notion of pages.
func Page(doc schema.Document) int {
	switch p := doc.Metadata[MetaPage].(type) {
	case int:
		return p
	case int64:
		return int(p)
	case float64:
		return int(p)
	}
	return 0
}
