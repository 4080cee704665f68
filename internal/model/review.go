package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewOption is an option as shown in the post-submission review.
type ReviewOption struct {
	Index     string `json:"index"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
	Selected  bool   `json:"selected"`
}

// QuestionReview joins a frozen instance with its scored response.
type QuestionReview struct {
	InstanceKey     string         `json:"instance_key"`
	QuestionRef     string         `json:"question_ref"`
	Position        int            `json:"position"`
	QuestionText    string         `json:"question_text"`
	QuestionType    QuestionType   `json:"question_type"`
	Options         []ReviewOption `json:"options"`
	CorrectAnswer   []string       `json:"correct_answer"`
	Selected        []string       `json:"selected"`
	Status          ResponseStatus `json:"status"`
	Marks           float64        `json:"marks"`
	EarnedMarks     float64        `json:"earned_marks"`
	TimeSpent       int            `json:"time_spent"`
	Flagged         bool           `json:"flagged"`
	MarkedForReview bool           `json:"marked_for_review"`
	Explanation     string         `json:"explanation,omitempty"`
}

// SectionReview is one frozen section in presented order.
type SectionReview struct {
	Index     int              `json:"index"`
	Title     string           `json:"title"`
	Score     float64          `json:"score"`
	MaxScore  float64          `json:"max_score"`
	Questions []QuestionReview `json:"questions"`
}

// ReviewDocument is the complete review artifact; exports render it verbatim.
type ReviewDocument struct {
	AttemptID     uuid.UUID       `json:"attempt_id"`
	StudentID     string          `json:"student_id"`
	TemplateID    uuid.UUID       `json:"template_id"`
	TemplateTitle string          `json:"template_title"`
	AttemptNo     int             `json:"attempt_no"`
	Status        AttemptStatus   `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Score         float64         `json:"score"`
	MaxScore      float64         `json:"max_score"`
	Percentage    float64         `json:"percentage"`
	Sections      []SectionReview `json:"sections"`
}
