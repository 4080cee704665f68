package model

import (
	"time"

	"github.com/google/uuid"
)

// ResponseStatus is the scored outcome of one question instance.
type ResponseStatus string

const (
	ResponseStatusCorrect    ResponseStatus = "correct"
	ResponseStatusIncorrect  ResponseStatus = "incorrect"
	ResponseStatusUnanswered ResponseStatus = "unanswered"
)

// SubmittedResponse is one answer entry as sent by the client. InstanceKey is
// the preferred identity; QuestionRef alone is the legacy form. Identity is
// not validated here: an entry that matches nothing is dropped at scoring
// time so it cannot fail the rest of the payload.
type SubmittedResponse struct {
	InstanceKey     string   `json:"instance_key,omitempty"`
	QuestionRef     string   `json:"question_ref,omitempty"`
	Selected        []string `json:"selected" binding:"omitempty,max=32,dive,max=64"`
	TimeSpent       int      `json:"time_spent"`
	Flagged         bool     `json:"flagged"`
	MarkedForReview bool     `json:"marked_for_review"`
}

// Response is a scored answer bound to exactly one question instance.
type Response struct {
	InstanceKey     string         `json:"instance_key"`
	QuestionRef     string         `json:"question_ref"`
	Selected        []string       `json:"selected"`
	TimeSpent       int            `json:"time_spent"`
	Flagged         bool           `json:"flagged"`
	MarkedForReview bool           `json:"marked_for_review"`
	Matched         bool           `json:"matched"`
	EarnedMarks     float64        `json:"earned_marks"`
	Status          ResponseStatus `json:"status"`
}

// SubmitRequest is the payload for submitting an attempt.
type SubmitRequest struct {
	Responses []SubmittedResponse `json:"responses" binding:"max=1000,dive"`
}

// SubmitResult is what the caller gets back from a terminal transition.
type SubmitResult struct {
	AttemptID        uuid.UUID     `json:"attempt_id"`
	Status           AttemptStatus `json:"status"`
	Score            float64       `json:"score"`
	MaxScore         float64       `json:"max_score"`
	Percentage       float64       `json:"percentage"`
	Correct          int           `json:"correct"`
	Incorrect        int           `json:"incorrect"`
	Unanswered       int           `json:"unanswered"`
	DroppedResponses int           `json:"dropped_responses"`
	FinishedAt       *time.Time    `json:"finished_at,omitempty"`
}

// Percentage returns score as a percentage of maxScore, 0 when maxScore is 0.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * 100
}

// ResultFromAttempt rebuilds the submit result from a finalized attempt.
func ResultFromAttempt(a *Attempt) SubmitResult {
	res := SubmitResult{
		AttemptID:        a.ID,
		Status:           a.Status,
		MaxScore:         a.MaxScore,
		DroppedResponses: a.DroppedResponses,
		FinishedAt:       a.SubmittedAt,
	}
	if a.Score != nil {
		res.Score = *a.Score
	}
	res.Percentage = Percentage(res.Score, res.MaxScore)
	for _, r := range a.Responses {
		switch r.Status {
		case ResponseStatusCorrect:
			res.Correct++
		case ResponseStatusIncorrect:
			res.Incorrect++
		default:
			res.Unanswered++
		}
	}
	return res
}

// AttemptResultEvent is published for every terminal transition.
type AttemptResultEvent struct {
	AttemptID  string        `json:"attempt_id"`
	StudentID  string        `json:"student_id"`
	TemplateID string        `json:"template_id"`
	Status     AttemptStatus `json:"status"`
	Score      float64       `json:"score"`
	MaxScore   float64       `json:"max_score"`
	Percentage float64       `json:"percentage"`
	FinishedAt int64         `json:"finished_at"`
}
