package models

import (
	"fmt"
	"time"
)

// Chunk is a bounded span of one ingested record. Start and End are byte
// offsets into the record text it was cut from.
type Chunk struct {
	ChunkID   int       `json:"chunk_id"`
	Content   string    `json:"content"`
	Size      int       `json:"chunk_size"`
	Source    string    `json:"source"`
	Page      int       `json:"page,omitempty"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	CreatedAt time.Time `json:"created_at"`
}

// Locator renders the chunk's source reference the way citations show it.
func (c Chunk) Locator() string {
	source := c.Source
	if source == "" {
		source = "Unknown"
	}
	page := "N/A"
	if c.Page > 0 {
		page = fmt.Sprintf("%d", c.Page)
	}
	return fmt.Sprintf("Source: %s, Page: %s", source, page)
}

// Hit is one retrieval result.
type Hit struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

type Classification string

const (
	Coverage  Classification = "coverage"
	Exclusion Classification = "exclusion"
	Procedure Classification = "procedure"
	Condition Classification = "condition"
	Amount    Classification = "amount"
	Timeline  Classification = "timeline"
)

// Classifications lists the closed set in table order.
var Classifications = []Classification{Exclusion, Coverage, Procedure, Condition, Amount, Timeline}
