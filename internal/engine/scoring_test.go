package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleInstance(q *model.Question, marks float64, penalty *float64) []model.SectionSnapshot {
	return []model.SectionSnapshot{{
		Title: "Only",
		Questions: []model.QuestionInstance{{
			InstanceKey:   InstanceKey(q.ID, 0, 0),
			QuestionRef:   q.ID,
			Marks:         marks,
			NegativeMarks: penalty,
			QuestionType:  q.QuestionType,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}},
	}}
}

func ptr(f float64) *float64 { return &f }

func TestScore_PerQuestion(t *testing.T) {
	negative := model.ScoringRules{NegativeMarking: true, DefaultNegativeMarks: 1}
	lenient := model.ScoringRules{NegativeMarking: false, DefaultNegativeMarks: 1}

	single := choiceQuestion("s1", model.QuestionTypeSingleChoice, 2)
	multi := choiceQuestion("m1", model.QuestionTypeMultipleChoice, 0, 3)
	numeric := &model.Question{ID: "n1", QuestionType: model.QuestionTypeNumeric, CorrectAnswer: " 2.5 "}

	tests := []struct {
		name     string
		question *model.Question
		marks    float64
		penalty  *float64
		rules    model.ScoringRules
		selected []string
		answered bool
		status   model.ResponseStatus
		earned   float64
	}{
		{name: "single correct", question: single, marks: 4, rules: negative, selected: []string{"2"}, answered: true, status: model.ResponseStatusCorrect, earned: 4},
		{name: "single wrong with default penalty", question: single, marks: 4, rules: negative, selected: []string{"0"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "single wrong without negative marking", question: single, marks: 4, rules: lenient, selected: []string{"0"}, answered: true, status: model.ResponseStatusIncorrect, earned: 0},
		{name: "single wrong with override penalty", question: single, marks: 4, penalty: ptr(2), rules: negative, selected: []string{"1"}, answered: true, status: model.ResponseStatusIncorrect, earned: -2},
		{name: "override ignored when negative marking off", question: single, marks: 4, penalty: ptr(2), rules: lenient, selected: []string{"1"}, answered: true, status: model.ResponseStatusIncorrect, earned: 0},
		{name: "single two picks is wrong", question: single, marks: 4, rules: negative, selected: []string{"2", "1"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "unanswered no response", question: single, marks: 4, rules: negative, answered: false, status: model.ResponseStatusUnanswered, earned: 0},
		{name: "unanswered empty selection", question: single, marks: 4, rules: negative, selected: []string{}, answered: true, status: model.ResponseStatusUnanswered, earned: 0},
		{name: "unanswered blank entries", question: single, marks: 4, rules: negative, selected: []string{" ", ""}, answered: true, status: model.ResponseStatusUnanswered, earned: 0},
		{name: "multi exact set any order", question: multi, marks: 3, rules: negative, selected: []string{"3", "0"}, answered: true, status: model.ResponseStatusCorrect, earned: 3},
		{name: "multi duplicate entries still exact", question: multi, marks: 3, rules: negative, selected: []string{"0", "3", "0"}, answered: true, status: model.ResponseStatusCorrect, earned: 3},
		{name: "multi subset no partial credit", question: multi, marks: 3, rules: negative, selected: []string{"0"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "multi superset", question: multi, marks: 3, rules: negative, selected: []string{"0", "1", "3"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "out of range option", question: single, marks: 4, rules: negative, selected: []string{"9"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "numeric equal value", question: numeric, marks: 4, rules: negative, selected: []string{"2.50"}, answered: true, status: model.ResponseStatusCorrect, earned: 4},
		{name: "numeric wrong value", question: numeric, marks: 4, rules: negative, selected: []string{"3"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
		{name: "numeric two values", question: numeric, marks: 4, rules: negative, selected: []string{"2.5", "2.5"}, answered: true, status: model.ResponseStatusIncorrect, earned: -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sections := singleInstance(tc.question, tc.marks, tc.penalty)
			matched := map[string]model.SubmittedResponse{}
			if tc.answered {
				key := sections[0].Questions[0].InstanceKey
				matched[key] = model.SubmittedResponse{InstanceKey: key, Selected: tc.selected}
			}

			res := Score(sections, matched, tc.rules)
			require.Len(t, res.Responses, 1)
			assert.Equal(t, tc.status, res.Responses[0].Status)
			assert.Equal(t, tc.earned, res.Responses[0].EarnedMarks)
			assert.Equal(t, tc.answered, res.Responses[0].Matched)
			assert.Equal(t, tc.earned, res.TotalScore)
			assert.Equal(t, tc.marks, res.MaxScore)
		})
	}
}

func TestScore_TotalsAndNegativeOverall(t *testing.T) {
	a := freezeFixture(twoSectionBundle(), uuid.New())

	matched := map[string]model.SubmittedResponse{}
	for i, sec := range a.Sections {
		for j, q := range sec.Questions {
			switch {
			case i == 0 && j == 0:
				matched[q.InstanceKey] = model.SubmittedResponse{Selected: []string{"1"}, TimeSpent: 30, Flagged: true}
			case i == 1 && j == 2:
			default:
				matched[q.InstanceKey] = model.SubmittedResponse{Selected: []string{"0"}}
			}
		}
	}

	res := Score(a.Sections, matched, a.Rules)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 4, res.Incorrect)
	assert.Equal(t, 1, res.Unanswered)
	assert.Equal(t, 0.0, res.TotalScore)
	assert.Equal(t, 24.0, res.MaxScore)
	assert.Equal(t, 30, res.Responses[0].TimeSpent)
	assert.True(t, res.Responses[0].Flagged)

	for k, v := range matched {
		v.Selected = []string{"3"}
		matched[k] = v
	}
	res = Score(a.Sections, matched, a.Rules)
	assert.Equal(t, -5.0, res.TotalScore)
	assert.Equal(t, 1, res.Unanswered)
}

func TestScore_ResponsesFollowFrozenOrder(t *testing.T) {
	a := freezeFixture(twoSectionBundle(), uuid.New())
	res := Score(a.Sections, nil, a.Rules)

	i := 0
	for _, sec := range a.Sections {
		for _, q := range sec.Questions {
			assert.Equal(t, q.InstanceKey, res.Responses[i].InstanceKey)
			i++
		}
	}
	assert.Equal(t, 6, res.Unanswered)
	assert.Zero(t, res.TotalScore)
}

func TestScore_NegativeTimeSpentIsClamped(t *testing.T) {
	sections := singleInstance(choiceQuestion("s1", model.QuestionTypeSingleChoice, 2), 4, nil)
	key := sections[0].Questions[0].InstanceKey

	res := Score(sections, map[string]model.SubmittedResponse{
		key: {InstanceKey: key, Selected: []string{"2"}, TimeSpent: -30},
	}, model.ScoringRules{})
	require.Len(t, res.Responses, 1)
	assert.Zero(t, res.Responses[0].TimeSpent)
	assert.Equal(t, model.ResponseStatusCorrect, res.Responses[0].Status)
}

func TestScore_IsDeterministic(t *testing.T) {
	a := freezeFixture(twoSectionBundle(), uuid.New())
	payload := []model.SubmittedResponse{
		{InstanceKey: a.Sections[0].Questions[1].InstanceKey, Selected: []string{"1"}},
		{QuestionRef: a.Sections[1].Questions[0].QuestionRef, Selected: []string{"2"}},
		{InstanceKey: "ghost_0_0", Selected: []string{"1"}},
	}

	first := Score(a.Sections, Reconcile(a.Sections, payload).Matched, a.Rules)
	second := Score(a.Sections, Reconcile(a.Sections, payload).Matched, a.Rules)
	assert.Equal(t, first, second)
	assert.Equal(t, 3.0, first.TotalScore)
}
