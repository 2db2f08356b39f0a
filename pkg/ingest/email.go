package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/schema"
)

// EmailLoader reads an RFC 5322 message: headers first, then the body, with
// plain text parts preferred over HTML.
type EmailLoader struct{}

func (EmailLoader) Load(_ context.Context, location string) ([]schema.Document, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("read email: %w", err)
	}

	text, subject, err := emailText(data)
	if err != nil {
		return nil, err
	}

	record := newRecord(text, location, 0, KindEmail)
	if subject != "" {
		record.Metadata[MetaTitle] = subject
	}
	return []schema.Document{record}, nil
}

func emailText(data []byte) (string, string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("parse email: %w", err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := emailBody(msg)
	if err != nil {
		return "", "", err
	}

	var b strings.Builder
	for _, h := range []struct{ name, value string }{
		{"From", decodeHeader(msg.Header.Get("From"))},
		{"To", decodeHeader(msg.Header.Get("To"))},
		{"Date", msg.Header.Get("Date")},
		{"Subject", subject},
	} {
		if h.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", h.name, h.value)
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	return strings.TrimSpace(b.String()), subject, nil
}

func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

func emailBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(msg.Body, params["boundary"]), nil
	}

	body, err := io.ReadAll(transferDecoder(msg.Header.Get("Content-Transfer-Encoding"), msg.Body))
	if err != nil {
		return "", fmt.Errorf("read email body: %w", err)
	}
	if mediaType == "text/html" {
		return htmlText(body), nil
	}
	return string(body), nil
}

func multipartBody(r io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "application/octet-stream"
		}
		// NextPart already strips quoted-printable; base64 is left to us.
		content, err := io.ReadAll(transferDecoder(part.Header.Get("Content-Transfer-Encoding"), part))
		part.Close()
		if err != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			textParts = append(textParts, string(content))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, htmlText(content))
		case strings.HasPrefix(mediaType, "multipart/"):
			if nested := multipartBody(bytes.NewReader(content), params["boundary"]); nested != "" {
				textParts = append(textParts, nested)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n")
	}
	return strings.Join(htmlParts, "\n")
}

func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

func htmlText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	return cleanContent(doc.Find("body").Text())
}
