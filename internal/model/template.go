package model

import (
	"time"

	"github.com/google/uuid"
)

// TestMode describes how a template is meant to be taken.
type TestMode string

const (
	TestModePractice TestMode = "PRACTICE"
	TestModeTimed    TestMode = "TIMED"
)

// TestTemplate is the authored, unrandomized definition of a test.
// It is read-only from the engine's point of view.
type TestTemplate struct {
	ID                    uuid.UUID         `json:"id"`
	Title                 string            `json:"title"`
	Mode                  TestMode          `json:"mode"`
	DurationMinutes       int               `json:"duration_minutes"`
	NegativeMarking       bool              `json:"negative_marking"`
	DefaultNegativeMarks  float64           `json:"default_negative_marks"`
	RandomizeSectionOrder bool              `json:"randomize_section_order"`
	IsActive              bool              `json:"is_active"`
	Sections              []TemplateSection `json:"sections"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// TemplateSection is an ordered group of question references.
type TemplateSection struct {
	Title                  string             `json:"title"`
	Order                  int                `json:"order"`
	RandomizeQuestionOrder bool               `json:"randomize_question_order"`
	Questions              []TemplateQuestion `json:"questions"`
}

// TemplateQuestion binds a question reference to its marks inside a section.
// NegativeMarks, when set, overrides the template's default penalty.
type TemplateQuestion struct {
	QuestionRef   string   `json:"question_ref"`
	Marks         float64  `json:"marks"`
	NegativeMarks *float64 `json:"negative_marks,omitempty"`
}

// QuestionRefs returns every question reference in authored order, duplicates included.
func (t *TestTemplate) QuestionRefs() []string {
	var refs []string
	for _, sec := range t.Sections {
		for _, q := range sec.Questions {
			refs = append(refs, q.QuestionRef)
		}
	}
	return refs
}

// TemplateBundle is a template together with the resolved content of every
// question it references. It is the unit cached in Redis.
type TemplateBundle struct {
	Template  TestTemplate         `json:"template"`
	Questions map[string]*Question `json:"questions"`
}
