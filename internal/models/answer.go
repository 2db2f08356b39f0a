package models

import "time"

type AnswerMetadata struct {
	QuestionIndex  int `json:"question_index"`
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`
}

// Answer is the result for one question. A degraded answer keeps the same
// shape with Confidence 0 and Error set.
type Answer struct {
	Question       string         `json:"question"`
	Text           string         `json:"answer"`
	Confidence     float64        `json:"confidence"`
	Citations      []string       `json:"citations"`
	Classification Classification `json:"classification"`
	ProcessingTime time.Duration  `json:"processing_time"`
	ChunksUsed     int            `json:"chunks_used"`
	Error          string         `json:"error,omitempty"`
	Metadata       AnswerMetadata `json:"metadata"`
}

func (a Answer) Degraded() bool {
	return a.Error != ""
}

type UsageStats struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func (u UsageStats) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

type DocumentStatistics struct {
	DocumentCount      int      `json:"document_count"`
	DocumentsProcessed int      `json:"documents_processed"`
	FailedDocuments    []string `json:"failed_documents,omitempty"`
	ChunkCount         int      `json:"chunk_count"`
	TotalQuestions     int      `json:"total_questions"`
	AverageConfidence  float64  `json:"average_confidence"`
}

type PerformanceMetrics struct {
	QuestionsPerSecond  float64       `json:"questions_per_second"`
	TokensPerSecond     float64       `json:"tokens_per_second"`
	AverageQuestionTime time.Duration `json:"average_question_time"`
}

type IndexInfo struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Reused   bool   `json:"reused"`
}

// Response is what one submitted request produces. Answers are in question
// input order.
type Response struct {
	SessionID           string             `json:"session_id"`
	Answers             []Answer           `json:"answers"`
	TotalProcessingTime time.Duration      `json:"total_processing_time"`
	TokenUsage          UsageStats         `json:"token_usage"`
	DocumentStatistics  DocumentStatistics `json:"document_statistics"`
	PerformanceMetrics  PerformanceMetrics `json:"performance_metrics"`
	Index               IndexInfo          `json:"index"`
	Timestamp           time.Time          `json:"timestamp"`
}
