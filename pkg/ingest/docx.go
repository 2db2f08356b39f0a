package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tmc/langchaingo/schema"
)

var errNoDocumentXML = errors.New("docx: word/document.xml not found")

// DOCXLoader extracts paragraph text from an Office Open XML document.
type DOCXLoader struct{}

func (DOCXLoader) Load(_ context.Context, location string) ([]schema.Document, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	text, err := docxText(data)
	if err != nil {
		return nil, err
	}
	return []schema.Document{newRecord(text, location, 0, KindDOCX)}, nil
}

func docxText(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", errNoDocumentXML
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
