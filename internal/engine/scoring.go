package engine

import (
	"strconv"
	"strings"

	"github.com/stemsi/exstem-delivery/internal/model"
)

// ScoreResult is the scored form of one attempt.
type ScoreResult struct {
	Responses  []model.Response
	TotalScore float64
	MaxScore   float64
	Correct    int
	Incorrect  int
	Unanswered int
}

// Score computes per-instance and aggregate results. It is a pure function of
// the frozen snapshot, the matched responses and the rules: the same inputs
// always give the same output. One Response is produced per instance, in
// frozen order, whether or not it was answered.
func Score(sections []model.SectionSnapshot, matched map[string]model.SubmittedResponse, rules model.ScoringRules) ScoreResult {
	var res ScoreResult
	for _, sec := range sections {
		for _, q := range sec.Questions {
			res.MaxScore += q.Marks

			sub, ok := matched[q.InstanceKey]
			r := model.Response{
				InstanceKey: q.InstanceKey,
				QuestionRef: q.QuestionRef,
				Matched:     ok,
				Status:      model.ResponseStatusUnanswered,
			}
			if ok {
				r.Selected = normalizeSelection(sub.Selected)
				r.TimeSpent = max(sub.TimeSpent, 0)
				r.Flagged = sub.Flagged
				r.MarkedForReview = sub.MarkedForReview
			}

			switch {
			case len(r.Selected) == 0:
				res.Unanswered++
			case isCorrect(q, r.Selected):
				r.Status = model.ResponseStatusCorrect
				r.EarnedMarks = q.Marks
				res.Correct++
			default:
				r.Status = model.ResponseStatusIncorrect
				if rules.NegativeMarking {
					r.EarnedMarks = -penaltyFor(q, rules)
				}
				res.Incorrect++
			}

			res.TotalScore += r.EarnedMarks
			res.Responses = append(res.Responses, r)
		}
	}
	return res
}

func penaltyFor(q model.QuestionInstance, rules model.ScoringRules) float64 {
	if q.NegativeMarks != nil {
		return *q.NegativeMarks
	}
	return rules.DefaultNegativeMarks
}

// normalizeSelection trims entries and drops empty ones, keeping client order.
func normalizeSelection(selected []string) []string {
	if len(selected) == 0 {
		return nil
	}
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// isCorrect applies exact-set equality for choice questions and exact value
// equality for numeric ones. There is no partial credit.
func isCorrect(q model.QuestionInstance, selected []string) bool {
	correct := model.CorrectSet(q.QuestionType, q.Options, q.CorrectAnswer)
	if len(correct) == 0 {
		return false
	}

	if q.QuestionType == model.QuestionTypeNumeric {
		return len(selected) == 1 && numericEqual(selected[0], correct[0])
	}

	want := make(map[string]struct{}, len(correct))
	for _, c := range correct {
		want[c] = struct{}{}
	}
	got := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		got[s] = struct{}{}
	}
	if len(got) != len(want) {
		return false
	}
	for s := range got {
		if _, ok := want[s]; !ok {
			return false
		}
	}
	return true
}

func numericEqual(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return a == b
}
