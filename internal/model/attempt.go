package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates the attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
	AttemptStatusExpired    AttemptStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusExpired
}

// ScoringRules is the negative-marking policy frozen into an attempt at start.
type ScoringRules struct {
	NegativeMarking      bool    `json:"negative_marking"`
	DefaultNegativeMarks float64 `json:"default_negative_marks"`
}

// QuestionInstance is one question at one position of one attempt's frozen order.
type QuestionInstance struct {
	InstanceKey   string       `json:"instance_key"`
	QuestionRef   string       `json:"question_ref"`
	SectionIndex  int          `json:"section_index"`
	QuestionIndex int          `json:"question_index"`
	Marks         float64      `json:"marks"`
	NegativeMarks *float64     `json:"negative_marks,omitempty"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []Option     `json:"options"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// SectionSnapshot is a frozen section in presented order.
type SectionSnapshot struct {
	Title         string             `json:"title"`
	TemplateOrder int                `json:"template_order"`
	Questions     []QuestionInstance `json:"questions"`
}

// Attempt is one student's instance of taking a template. Sections is written
// once at creation and never changes afterwards.
type Attempt struct {
	ID               uuid.UUID         `json:"id"`
	StudentID        string            `json:"student_id"`
	TemplateID       uuid.UUID         `json:"template_id"`
	TemplateTitle    string            `json:"template_title"`
	AttemptNo        int               `json:"attempt_no"`
	Status           AttemptStatus     `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	Rules            ScoringRules      `json:"rules"`
	Sections         []SectionSnapshot `json:"sections"`
	Responses        []Response        `json:"responses,omitempty"`
	Score            *float64          `json:"score,omitempty"`
	MaxScore         float64           `json:"max_score"`
	DroppedResponses int               `json:"dropped_responses"`
}

// Expired reports whether the attempt's time window has closed at now.
func (a *Attempt) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// InstanceCount returns the number of frozen question instances.
func (a *Attempt) InstanceCount() int {
	n := 0
	for _, sec := range a.Sections {
		n += len(sec.Questions)
	}
	return n
}

// HasInstance reports whether key names a frozen question instance.
func (a *Attempt) HasInstance(key string) bool {
	for _, sec := range a.Sections {
		for _, q := range sec.Questions {
			if q.InstanceKey == key {
				return true
			}
		}
	}
	return false
}

// Finalization is the single terminal write applied to an in-progress attempt.
type Finalization struct {
	Status           AttemptStatus
	Responses        []Response
	Score            float64
	FinishedAt       time.Time
	DroppedResponses int
}

// AttemptSummary is the listing row for a student's attempts.
type AttemptSummary struct {
	ID            uuid.UUID     `json:"id"`
	TemplateID    uuid.UUID     `json:"template_id"`
	TemplateTitle string        `json:"template_title"`
	AttemptNo     int           `json:"attempt_no"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	Score         *float64      `json:"score,omitempty"`
	MaxScore      float64       `json:"max_score"`
}

// SectionForStudent is a frozen section without correctness.
type SectionForStudent struct {
	Title     string               `json:"title"`
	Questions []QuestionForStudent `json:"questions"`
}

// AttemptForStudent is the attempt payload sent while it can still be answered.
type AttemptForStudent struct {
	ID            uuid.UUID           `json:"id"`
	TemplateID    uuid.UUID           `json:"template_id"`
	TemplateTitle string              `json:"template_title"`
	AttemptNo     int                 `json:"attempt_no"`
	Status        AttemptStatus       `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
	ExpiresAt     time.Time           `json:"expires_at"`
	RemainingTime float64             `json:"remaining_seconds"`
	MaxScore      float64             `json:"max_score"`
	Sections      []SectionForStudent `json:"sections"`
}

// StudentView strips correctness from the frozen snapshot.
func (a *Attempt) StudentView(now time.Time) AttemptForStudent {
	remaining := a.ExpiresAt.Sub(now)
	if remaining < 0 || a.Status.Terminal() {
		remaining = 0
	}

	sections := make([]SectionForStudent, len(a.Sections))
	for i, sec := range a.Sections {
		qs := make([]QuestionForStudent, len(sec.Questions))
		for j, q := range sec.Questions {
			opts := make([]string, len(q.Options))
			for k, o := range q.Options {
				opts[k] = o.Text
			}
			qs[j] = QuestionForStudent{
				InstanceKey:  q.InstanceKey,
				QuestionRef:  q.QuestionRef,
				QuestionText: q.QuestionText,
				QuestionType: q.QuestionType,
				Options:      opts,
				Marks:        q.Marks,
			}
		}
		sections[i] = SectionForStudent{Title: sec.Title, Questions: qs}
	}

	return AttemptForStudent{
		ID:            a.ID,
		TemplateID:    a.TemplateID,
		TemplateTitle: a.TemplateTitle,
		AttemptNo:     a.AttemptNo,
		Status:        a.Status,
		StartedAt:     a.StartedAt,
		ExpiresAt:     a.ExpiresAt,
		RemainingTime: remaining.Seconds(),
		MaxScore:      a.MaxScore,
		Sections:      sections,
	}
}
