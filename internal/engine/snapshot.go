package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
)

var (
	ErrQuestionNotFound     = errors.New("question not found")
	ErrMalformedInstanceKey = errors.New("malformed instance key")
)

// InstanceKey derives the position-sensitive identity of a question inside
// one attempt: <questionRef>_<sectionIndex>_<questionIndex>.
func InstanceKey(questionRef string, sectionIndex, questionIndex int) string {
	return questionRef + "_" + strconv.Itoa(sectionIndex) + "_" + strconv.Itoa(questionIndex)
}

// ParseInstanceKey splits a key produced by InstanceKey. The question
// reference may itself contain underscores; the indices never do.
func ParseInstanceKey(key string) (questionRef string, sectionIndex, questionIndex int, err error) {
	last := strings.LastIndexByte(key, '_')
	if last <= 0 {
		return "", 0, 0, ErrMalformedInstanceKey
	}
	mid := strings.LastIndexByte(key[:last], '_')
	if mid <= 0 {
		return "", 0, 0, ErrMalformedInstanceKey
	}

	sectionIndex, err = strconv.Atoi(key[mid+1 : last])
	if err != nil || sectionIndex < 0 {
		return "", 0, 0, ErrMalformedInstanceKey
	}
	questionIndex, err = strconv.Atoi(key[last+1:])
	if err != nil || questionIndex < 0 {
		return "", 0, 0, ErrMalformedInstanceKey
	}
	return key[:mid], sectionIndex, questionIndex, nil
}

// BuildSnapshot resolves every question of the presented order and assigns
// instance keys. It fails on the first reference missing from questions.
func BuildSnapshot(sections []model.TemplateSection, questions map[string]*model.Question) ([]model.SectionSnapshot, error) {
	snapshot := make([]model.SectionSnapshot, len(sections))
	for s, sec := range sections {
		instances := make([]model.QuestionInstance, len(sec.Questions))
		for q, tq := range sec.Questions {
			content, ok := questions[tq.QuestionRef]
			if !ok || content == nil {
				return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, tq.QuestionRef)
			}

			options := make([]model.Option, len(content.Options))
			copy(options, content.Options)

			var penalty *float64
			if tq.NegativeMarks != nil {
				p := *tq.NegativeMarks
				penalty = &p
			}

			instances[q] = model.QuestionInstance{
				InstanceKey:   InstanceKey(tq.QuestionRef, s, q),
				QuestionRef:   tq.QuestionRef,
				SectionIndex:  s,
				QuestionIndex: q,
				Marks:         tq.Marks,
				NegativeMarks: penalty,
				QuestionText:  content.QuestionText,
				QuestionType:  content.QuestionType,
				Options:       options,
				CorrectAnswer: content.CorrectAnswer,
				Explanation:   content.Explanation,
			}
		}
		snapshot[s] = model.SectionSnapshot{
			Title:         sec.Title,
			TemplateOrder: sec.Order,
			Questions:     instances,
		}
	}
	return snapshot, nil
}

// MaxScore sums the marks of every frozen instance.
func MaxScore(sections []model.SectionSnapshot) float64 {
	var total float64
	for _, sec := range sections {
		for _, q := range sec.Questions {
			total += q.Marks
		}
	}
	return total
}

// FreezeInput carries everything needed to freeze a new attempt.
type FreezeInput struct {
	AttemptID uuid.UUID
	StudentID string
	Bundle    *model.TemplateBundle
	Now       time.Time
	Shuffler  Shuffler
}

// Freeze builds a new in-progress attempt: randomized order, resolved content,
// instance keys, frozen scoring rules and the time window.
func Freeze(in FreezeInput) (*model.Attempt, error) {
	tmpl := &in.Bundle.Template

	shuffler := in.Shuffler
	if shuffler == nil {
		shuffler = NewShuffler(in.AttemptID)
	}

	sections, err := BuildSnapshot(Randomize(tmpl, shuffler), in.Bundle.Questions)
	if err != nil {
		return nil, err
	}

	return &model.Attempt{
		ID:            in.AttemptID,
		StudentID:     in.StudentID,
		TemplateID:    tmpl.ID,
		TemplateTitle: tmpl.Title,
		Status:        model.AttemptStatusInProgress,
		StartedAt:     in.Now,
		ExpiresAt:     in.Now.Add(time.Duration(tmpl.DurationMinutes) * time.Minute),
		Rules: model.ScoringRules{
			NegativeMarking:      tmpl.NegativeMarking,
			DefaultNegativeMarks: tmpl.DefaultNegativeMarks,
		},
		Sections: sections,
		MaxScore: MaxScore(sections),
	}, nil
}
