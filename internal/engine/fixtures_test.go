package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// choiceQuestion builds a 4-option question whose correct options are given by index.
func choiceQuestion(id string, qType model.QuestionType, correct ...int) *model.Question {
	q := &model.Question{
		ID:           id,
		QuestionText: "Question " + id,
		QuestionType: qType,
		Options:      make([]model.Option, 4),
	}
	for i := range q.Options {
		q.Options[i] = model.Option{Text: fmt.Sprintf("%s option %d", id, i)}
	}
	for _, c := range correct {
		q.Options[c].IsCorrect = true
	}
	return q
}

// twoSectionBundle is a 2x3 template with every randomization flag on.
// Correct answer for every question is option "1"; marks are 4.
func twoSectionBundle() *model.TemplateBundle {
	questions := make(map[string]*model.Question)
	var sections []model.TemplateSection
	for s := 0; s < 2; s++ {
		sec := model.TemplateSection{
			Title:                  fmt.Sprintf("Section %c", 'A'+s),
			Order:                  s,
			RandomizeQuestionOrder: true,
		}
		for q := 0; q < 3; q++ {
			id := fmt.Sprintf("q%d", s*3+q+1)
			questions[id] = choiceQuestion(id, model.QuestionTypeSingleChoice, 1)
			sec.Questions = append(sec.Questions, model.TemplateQuestion{QuestionRef: id, Marks: 4})
		}
		sections = append(sections, sec)
	}

	return &model.TemplateBundle{
		Template: model.TestTemplate{
			ID:                    uuid.MustParse("6f1c2a54-4f0e-4a3b-9a57-6d0f1d2a7c11"),
			Title:                 "Physics Mock 1",
			Mode:                  model.TestModeTimed,
			DurationMinutes:       60,
			NegativeMarking:       true,
			DefaultNegativeMarks:  1,
			RandomizeSectionOrder: true,
			IsActive:              true,
			Sections:              sections,
		},
		Questions: questions,
	}
}

func freezeFixture(b *model.TemplateBundle, seed uuid.UUID) *model.Attempt {
	a, err := Freeze(FreezeInput{
		AttemptID: seed,
		StudentID: "student-1",
		Bundle:    b,
		Now:       fixedNow,
	})
	if err != nil {
		panic(err)
	}
	return a
}

// recordingShuffler records the sizes it was asked to permute and reverses.
type recordingShuffler struct {
	sizes []int
}

func (r *recordingShuffler) Shuffle(n int, swap func(i, j int)) {
	r.sizes = append(r.sizes, n)
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}
