// Package engine holds the pure parts of test delivery: freezing a randomized
// attempt snapshot, reconciling submitted answers against it, scoring, and
// assembling the post-submission review. Nothing here performs I/O.
package engine

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
)

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewShuffler returns a generator seeded from the attempt id, so each attempt
// draws its own permutation stream. The stream is never replayed; the stored
// snapshot is the only record of the order it produced.
func NewShuffler(attemptID uuid.UUID) *rand.Rand {
	seed1 := binary.LittleEndian.Uint64(attemptID[:8])
	seed2 := binary.LittleEndian.Uint64(attemptID[8:])
	return rand.New(rand.NewPCG(seed1, seed2))
}

// Randomize returns the template's sections in presented order. Section order
// is permuted when the template asks for it; each section's questions are
// permuted independently when that section asks for it. The template itself
// is left untouched.
func Randomize(t *model.TestTemplate, rng Shuffler) []model.TemplateSection {
	sections := make([]model.TemplateSection, len(t.Sections))
	for i, sec := range t.Sections {
		questions := make([]model.TemplateQuestion, len(sec.Questions))
		copy(questions, sec.Questions)
		if sec.RandomizeQuestionOrder {
			permute(questions, rng)
		}
		sec.Questions = questions
		sections[i] = sec
	}

	if t.RandomizeSectionOrder {
		permute(sections, rng)
	}
	return sections
}

func permute[T any](items []T, rng Shuffler) {
	if len(items) < 2 {
		return
	}
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
