package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/seojun-park/sheetwise/constants"
)

// Choice is one answer option of a question, with any detected choice
// number preserved (e.g. "①", "3)").
type Choice struct {
	Number string `json:"number,omitempty"`
	Text   string `json:"text"`
}

// VisualRef points at an image/table/flowchart element owned by a question.
type VisualRef struct {
	ElementID string      `json:"element_id"`
	Box       BoundingBox `json:"box"`
	Caption   string      `json:"caption,omitempty"`
}

// QuestionContent groups the structural pieces of one question.
type QuestionContent struct {
	MainQuestion string      `json:"main_question"`
	Passage      string      `json:"passage"`
	Choices      []Choice    `json:"choices"`
	Images       []VisualRef `json:"images"`
	Tables       []VisualRef `json:"tables"`
	Explanations []string    `json:"explanations"`
}

// AIAnalysis carries the vision-generated analyses attached to a question.
type AIAnalysis struct {
	ImageDescriptions []string `json:"image_descriptions"`
	TableAnalysis     []string `json:"table_analysis"`
	ProblemAnalysis   []string `json:"problem_analysis"`
}

// Question is one reconstructed question. It owns its child lists
// exclusively; the merger builds it exactly once per structuring pass.
type Question struct {
	Number   string          `json:"number"`
	Section  string          `json:"section,omitempty"`
	Content  QuestionContent `json:"question_content"`
	Analysis AIAnalysis      `json:"ai_analysis"`
}

// DocumentInfo is the per-job metadata of a structured document. Element and
// anchor counts let callers detect degraded structuring without the request
// failing.
type DocumentInfo struct {
	JobID          string   `json:"job_id"`
	TotalQuestions int      `json:"total_questions"`
	ElementCount   int      `json:"element_count"`
	AnchorCount    int      `json:"anchor_count"`
	ColumnCount    int      `json:"column_count"`
	FrontMatter    []string `json:"front_matter,omitempty"`
}

// StructuredDocument is the root aggregate: exactly one instance is
// persisted per job id.
type StructuredDocument struct {
	Info      DocumentInfo `json:"document_info"`
	Questions []Question   `json:"questions"`
}

// DocumentRow is the persisted shape: one row per job id, backstopped by a
// uniqueness constraint on job_id.
type DocumentRow struct {
	JobID         uuid.UUID                  `json:"job_id"`
	Status        constants.GenerationStatus `json:"status"`
	Payload       json.RawMessage            `json:"payload,omitempty"`
	QuestionCount int                        `json:"question_count"`
	CreatedAt     time.Time                  `json:"created_at"`
}
