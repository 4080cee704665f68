package engine

import (
	"slices"
	"strconv"

	"github.com/stemsi/exstem-delivery/internal/model"
)

// ReviewOptions tunes the review view. By default sections without a single
// matched response are left out; the data behind them stays on the attempt.
type ReviewOptions struct {
	IncludeEmptySections bool
}

// BuildReview walks the frozen sections in presented order and joins each
// instance with its scored response and resolved content.
func BuildReview(a *model.Attempt, opts ReviewOptions) model.ReviewDocument {
	byKey := make(map[string]model.Response, len(a.Responses))
	for _, r := range a.Responses {
		byKey[r.InstanceKey] = r
	}

	doc := model.ReviewDocument{
		AttemptID:     a.ID,
		StudentID:     a.StudentID,
		TemplateID:    a.TemplateID,
		TemplateTitle: a.TemplateTitle,
		AttemptNo:     a.AttemptNo,
		Status:        a.Status,
		StartedAt:     a.StartedAt,
		FinishedAt:    a.SubmittedAt,
		MaxScore:      a.MaxScore,
	}
	if a.Score != nil {
		doc.Score = *a.Score
	}
	doc.Percentage = model.Percentage(doc.Score, doc.MaxScore)

	for s, sec := range a.Sections {
		sr := model.SectionReview{
			Index:     s,
			Title:     sec.Title,
			Questions: make([]model.QuestionReview, 0, len(sec.Questions)),
		}
		matched := 0
		for q, inst := range sec.Questions {
			resp, ok := byKey[inst.InstanceKey]
			if !ok {
				resp = model.Response{Status: model.ResponseStatusUnanswered}
			}
			if resp.Matched {
				matched++
			}

			sr.MaxScore += inst.Marks
			sr.Score += resp.EarnedMarks
			sr.Questions = append(sr.Questions, reviewQuestion(inst, resp, q))
		}

		if matched == 0 && !opts.IncludeEmptySections {
			continue
		}
		doc.Sections = append(doc.Sections, sr)
	}
	return doc
}

func reviewQuestion(inst model.QuestionInstance, resp model.Response, position int) model.QuestionReview {
	options := make([]model.ReviewOption, len(inst.Options))
	for i, o := range inst.Options {
		idx := strconv.Itoa(i)
		options[i] = model.ReviewOption{
			Index:     idx,
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
			Selected:  slices.Contains(resp.Selected, idx),
		}
	}

	return model.QuestionReview{
		InstanceKey:     inst.InstanceKey,
		QuestionRef:     inst.QuestionRef,
		Position:        position,
		QuestionText:    inst.QuestionText,
		QuestionType:    inst.QuestionType,
		Options:         options,
		CorrectAnswer:   model.CorrectSet(inst.QuestionType, inst.Options, inst.CorrectAnswer),
		Selected:        resp.Selected,
		Status:          resp.Status,
		Marks:           inst.Marks,
		EarnedMarks:     resp.EarnedMarks,
		TimeSpent:       resp.TimeSpent,
		Flagged:         resp.Flagged,
		MarkedForReview: resp.MarkedForReview,
		Explanation:     inst.Explanation,
	}
}
