package model

import (
	"strconv"
	"strings"
)

// QuestionType enumerates the auto-scorable question kinds.
type QuestionType string

const (
	QuestionTypeSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeNumeric        QuestionType = "NUMERIC"
)

// Option is one answer choice of a question. Options are addressed by their
// zero-based index rendered as a string ("0", "1", ...).
type Option struct {
	Text      string `json:"text" bson:"text"`
	IsCorrect bool   `json:"is_correct" bson:"isCorrect"`
}

// Question is the question bank read model, already normalized at the
// collaborator boundary.
type Question struct {
	ID            string       `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []Option     `json:"options"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// CorrectSet returns the option indices (as strings) flagged correct, or the
// trimmed numeric answer for NUMERIC questions.
func CorrectSet(qType QuestionType, options []Option, correctAnswer string) []string {
	if qType == QuestionTypeNumeric {
		if ans := strings.TrimSpace(correctAnswer); ans != "" {
			return []string{ans}
		}
		return nil
	}

	set := make([]string, 0, 1)
	for i, opt := range options {
		if opt.IsCorrect {
			set = append(set, strconv.Itoa(i))
		}
	}
	return set
}

// QuestionForStudent is the question content sent to students (no correctness).
type QuestionForStudent struct {
	InstanceKey  string       `json:"instance_key"`
	QuestionRef  string       `json:"question_ref"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options"`
	Marks        float64      `json:"marks"`
}
