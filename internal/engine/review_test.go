package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoredAttempt finalizes a through Reconcile and Score the way submit does.
func scoredAttempt(a *model.Attempt, payload []model.SubmittedResponse) *model.Attempt {
	rec := Reconcile(a.Sections, payload)
	res := Score(a.Sections, rec.Matched, a.Rules)
	a.Status = model.AttemptStatusSubmitted
	a.Responses = res.Responses
	a.Score = &res.TotalScore
	a.DroppedResponses = rec.Dropped
	finished := fixedNow.Add(10 * time.Minute)
	a.SubmittedAt = &finished
	return a
}

func TestBuildReview_FrozenOrderAndTotals(t *testing.T) {
	a := freezeFixture(twoSectionBundle(), uuid.New())

	var payload []model.SubmittedResponse
	for i, sec := range a.Sections {
		for j, q := range sec.Questions {
			sel := []string{"1"}
			if (i+j)%2 == 1 {
				sel = []string{"2"}
			}
			payload = append(payload, model.SubmittedResponse{InstanceKey: q.InstanceKey, Selected: sel, TimeSpent: 10 * (j + 1)})
		}
	}
	a = scoredAttempt(a, payload)

	doc := BuildReview(a, ReviewOptions{})
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, a.ID, doc.AttemptID)
	assert.Equal(t, model.AttemptStatusSubmitted, doc.Status)
	assert.Equal(t, a.SubmittedAt, doc.FinishedAt)

	sum := 0.0
	for s, sec := range doc.Sections {
		assert.Equal(t, a.Sections[s].Title, sec.Title)
		assert.Equal(t, 12.0, sec.MaxScore)
		require.Len(t, sec.Questions, 3)
		for q, qr := range sec.Questions {
			assert.Equal(t, a.Sections[s].Questions[q].InstanceKey, qr.InstanceKey)
			assert.Equal(t, q, qr.Position)
			assert.Equal(t, []string{"1"}, qr.CorrectAnswer)
			assert.Equal(t, 10*(q+1), qr.TimeSpent)
		}
		sum += sec.Score
	}
	assert.Equal(t, *a.Score, doc.Score)
	assert.Equal(t, doc.Score, sum)
	assert.Equal(t, 24.0, doc.MaxScore)
	assert.InDelta(t, doc.Score/24*100, doc.Percentage, 1e-9)
}

func TestBuildReview_EmptySections(t *testing.T) {
	a := fixedOrderAttempt()
	a = scoredAttempt(a, []model.SubmittedResponse{
		{InstanceKey: "q2_0_1", Selected: []string{"1"}},
	})

	doc := BuildReview(a, ReviewOptions{})
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, 0, doc.Sections[0].Index)
	assert.Equal(t, 4.0, doc.Sections[0].Score)

	doc = BuildReview(a, ReviewOptions{IncludeEmptySections: true})
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, 1, doc.Sections[1].Index)
	assert.Zero(t, doc.Sections[1].Score)
	for _, qr := range doc.Sections[1].Questions {
		assert.Equal(t, model.ResponseStatusUnanswered, qr.Status)
	}
}

func TestBuildReview_EmptySelectionCountsAsMatched(t *testing.T) {
	a := fixedOrderAttempt()
	a = scoredAttempt(a, []model.SubmittedResponse{
		{InstanceKey: "q4_1_0", Selected: []string{}, Flagged: true},
	})

	doc := BuildReview(a, ReviewOptions{})
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, 1, doc.Sections[0].Index)
	assert.True(t, doc.Sections[0].Questions[0].Flagged)
}

func TestBuildReview_OptionFlags(t *testing.T) {
	b := twoSectionBundle()
	b.Template.RandomizeSectionOrder = false
	b.Template.Sections[0].RandomizeQuestionOrder = false
	b.Questions["q1"] = choiceQuestion("q1", model.QuestionTypeMultipleChoice, 0, 2)
	b.Questions["q1"].Explanation = "Both forces act on the same body."

	a := scoredAttempt(freezeFixture(b, uuid.New()), []model.SubmittedResponse{
		{InstanceKey: "q1_0_0", Selected: []string{"2", "3"}, MarkedForReview: true},
	})

	qr := BuildReview(a, ReviewOptions{}).Sections[0].Questions[0]
	assert.Equal(t, "q1_0_0", qr.InstanceKey)
	assert.Equal(t, model.ResponseStatusIncorrect, qr.Status)
	assert.Equal(t, -1.0, qr.EarnedMarks)
	assert.Equal(t, []string{"0", "2"}, qr.CorrectAnswer)
	assert.True(t, qr.MarkedForReview)
	assert.Equal(t, "Both forces act on the same body.", qr.Explanation)

	require.Len(t, qr.Options, 4)
	want := []model.ReviewOption{
		{Index: "0", Text: "q1 option 0", IsCorrect: true, Selected: false},
		{Index: "1", Text: "q1 option 1", IsCorrect: false, Selected: false},
		{Index: "2", Text: "q1 option 2", IsCorrect: true, Selected: true},
		{Index: "3", Text: "q1 option 3", IsCorrect: false, Selected: true},
	}
	assert.Equal(t, want, qr.Options)
}
