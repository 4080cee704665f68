package servicetest

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// TemplateID is the id of the bundle built by TwoSectionBundle.
var TemplateID = uuid.MustParse("6f1c2a54-4f0e-4a3b-9a57-6d0f1d2a7c11")

// TwoSectionBundle builds an active, fully randomized 2x3 template worth 4
// marks per question with negative marking of 1. Option "1" is always correct.
func TwoSectionBundle() *model.TemplateBundle {
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
			questions[id] = &model.Question{
				ID:           id,
				QuestionText: "Question " + id,
				QuestionType: model.QuestionTypeSingleChoice,
				Options: []model.Option{
					{Text: "A"}, {Text: "B", IsCorrect: true}, {Text: "C"}, {Text: "D"},
				},
			}
			sec.Questions = append(sec.Questions, model.TemplateQuestion{QuestionRef: id, Marks: 4})
		}
		sections = append(sections, sec)
	}

	return &model.TemplateBundle{
		Template: model.TestTemplate{
			ID:                    TemplateID,
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

// AllInstanceKeys returns the instance keys of an attempt in frozen order.
func AllInstanceKeys(a *model.Attempt) []string {
	var keys []string
	for _, sec := range a.Sections {
		for _, q := range sec.Questions {
			keys = append(keys, q.InstanceKey)
		}
	}
	return keys
}
