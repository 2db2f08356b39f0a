package processor

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
	"github.com/krish9495/documind-ai-hackrx/pkg/ingest"
)

// DefaultSeparators runs from document sections down to raw characters.
var DefaultSeparators = []string{
	"\n\n\n", // sections
	"\n\n",   // paragraphs
	"\n",     // lines
	". ",     // sentences
	", ",     // clauses
	" ",      // words
	"",       // characters
}

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	Logger       *slog.Logger
	Now          func() time.Time
}

// Processor splits records into bounded, overlapping chunks. Sizes are
// counted in characters.
type Processor struct {
	config ProcessorConfig
	// slack is the longest separator, in characters.
	slack int
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = min(200, config.ChunkSize/5)
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	if config.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be non-negative and less than chunk size %d",
			config.ChunkOverlap, config.ChunkSize)
	}

	slack := 0
	for _, sep := range config.Separators {
		slack = max(slack, utf8.RuneCountInString(sep))
	}

	return &Processor{config: config, slack: slack}, nil
}

func (p *Processor) ChunkSize() int    { return p.config.ChunkSize }
func (p *Processor) ChunkOverlap() int { return p.config.ChunkOverlap }

// Process chunks every record in order. Chunk ids are contiguous from 0
// across the whole call. Whitespace-only spans that Split could not fold into
// a neighbour are dropped.
func (p *Processor) Process(docs []schema.Document) []models.Chunk {
	createdAt := p.config.Now()

	var chunks []models.Chunk
	for _, doc := range docs {
		source := ingest.Source(doc)
		spans := p.Split(doc.PageContent)
		if len(spans) == 0 {
			p.config.Logger.Debug("record has no extractable text", "source", source, "page", ingest.Page(doc))
			continue
		}

		for _, s := range spans {
			content := doc.PageContent[s.Start:s.End]
			if strings.TrimSpace(content) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				ChunkID:   len(chunks),
				Content:   content,
				Size:      utf8.RuneCountInString(content),
				Source:    source,
				Page:      ingest.Page(doc),
				Start:     s.Start,
				End:       s.End,
				CreatedAt: createdAt,
			})
		}
	}

	p.config.Logger.Info("created chunks", "records", len(docs), "chunks", len(chunks))
	return chunks
}

// Span is a byte range [Start, End) of the text passed to Split.
type Span struct {
	Start int
	End   int
}

// Split cuts text into spans no longer than the chunk size plus one
// separator. Consecutive spans either touch or overlap, so the spans cover the
// whole text in order.
func (p *Processor) Split(text string) []Span {
	if text == "" {
		return nil
	}
	return p.fold(text, p.split(text, Span{0, len(text)}, p.config.Separators))
}

// fold absorbs whitespace-only spans into the span before them, or into the
// one after when they lead the text, as long as the result stays within the
// chunk size plus one separator.
func (p *Processor) fold(src string, spans []Span) []Span {
	limit := p.config.ChunkSize + p.slack
	fits := func(s Span) bool { return runeLen(src, s) <= limit }

	out := make([]Span, 0, len(spans))
	var lead *Span
	for _, s := range spans {
		if lead != nil {
			if joined := (Span{lead.Start, max(lead.End, s.End)}); fits(joined) {
				s = joined
			} else {
				out = append(out, *lead)
			}
			lead = nil
		}

		if strings.TrimSpace(src[s.Start:s.End]) != "" {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 {
			if joined := (Span{out[n-1].Start, max(out[n-1].End, s.End)}); fits(joined) {
				out[n-1] = joined
				continue
			}
			out = append(out, s)
			continue
		}
		lead = &s
	}
	if lead != nil {
		out = append(out, *lead)
	}
	return out
}

func (p *Processor) split(src string, s Span, separators []string) []Span {
	sep, finer := pickSeparator(src[s.Start:s.End], separators)

	var chunks, fitting []Span
	for _, piece := range splitKeep(src[s.Start:s.End], sep) {
		piece = Span{piece.Start + s.Start, piece.End + s.Start}
		if runeLen(src, piece) <= p.config.ChunkSize {
			fitting = append(fitting, piece)
			continue
		}

		if len(fitting) > 0 {
			chunks = append(chunks, p.merge(src, fitting)...)
			fitting = nil
		}
		if len(finer) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, p.split(src, piece, finer)...)
		}
	}
	if len(fitting) > 0 {
		chunks = append(chunks, p.merge(src, fitting)...)
	}
	return chunks
}

// merge packs adjacent pieces into windows of at most ChunkSize characters,
// carrying up to ChunkOverlap characters of trailing pieces into the next
// window.
func (p *Processor) merge(src string, pieces []Span) []Span {
	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap

	var out, window []Span
	total := 0
	for _, piece := range pieces {
		n := runeLen(src, piece)
		if total+n > size && len(window) > 0 {
			out = append(out, Span{window[0].Start, window[len(window)-1].End})
			for total > overlap || (total+n > size && total > 0) {
				total -= runeLen(src, window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	if len(window) > 0 {
		out = append(out, Span{window[0].Start, window[len(window)-1].End})
	}
	return out
}

// pickSeparator returns the coarsest separator present in text and the finer
// ones left to try.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text after every occurrence of sep, keeping sep at the end
// of the preceding piece. An empty sep splits into characters.
func splitKeep(text, sep string) []Span {
	var pieces []Span
	if sep == "" {
		for i := 0; i < len(text); {
			_, width := utf8.DecodeRuneInString(text[i:])
			pieces = append(pieces, Span{i, i + width})
			i += width
		}
		return pieces
	}

	start := 0
	for {
		idx := strings.Index(text[start:], sep)
		if idx < 0 {
			break
		}
		end := start + idx + len(sep)
		pieces = append(pieces, Span{start, end})
		start = end
	}
	if start < len(text) {
		pieces = append(pieces, Span{start, len(text)})
	}
	return pieces
}

func runeLen(src string, s Span) int {
	return utf8.RuneCountInString(src[s.Start:s.End])
}
