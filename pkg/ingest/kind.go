package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

// Kind is the closed set of loader kinds. KindAuto asks Detect to decide.
type Kind int

const (
	KindAuto Kind = iota
	KindPDF
	KindDOCX
	KindEmail
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindEmail:
		return "email"
	case KindURL:
		return "url"
	default:
		return "auto"
	}
}

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".doc":  KindDOCX,
	".eml":  KindEmail,
	".msg":  KindEmail,
}

// Detect resolves a location to a loader kind: URL scheme first, then file
// extension.
func Detect(location string) (Kind, error) {
	trimmed := strings.TrimSpace(location)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindURL, nil
	}

	ext := strings.ToLower(filepath.Ext(trimmed))
	if kind, ok := extensionKinds[ext]; ok {
		return kind, nil
	}
	return KindAuto, &models.UnsupportedFormatError{Location: location, Extension: ext}
}

// ParseFormat maps a format name ("auto", "pdf", "docx", "email", "url") to a
// Kind.
func ParseFormat(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return KindAuto, nil
	case "pdf":
		return KindPDF, nil
	case "docx", "doc":
		return KindDOCX, nil
	case "email", "eml":
		return KindEmail, nil
	case "url":
		return KindURL, nil
	}
	return KindAuto, fmt.Errorf("unknown document format %q", name)
}
