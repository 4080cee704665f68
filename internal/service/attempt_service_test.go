package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/engine"
	"github.com/stemsi/exstem-delivery/internal/export"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studentID = "student-1"

type harness struct {
	svc      *AttemptService
	attempts *servicetest.AttemptStore
	drafts   *servicetest.DraftStore
	results  *servicetest.ResultRecorder
	bundles  *servicetest.BundleLoader
	clock    time.Time
}

func newHarness(t *testing.T, policy config.DuplicatePolicy) *harness {
	t.Helper()

	h := &harness{
		attempts: servicetest.NewAttemptStore(),
		drafts:   servicetest.NewDraftStore(),
		results:  &servicetest.ResultRecorder{},
		bundles: &servicetest.BundleLoader{Bundles: map[uuid.UUID]*model.TemplateBundle{
			servicetest.TemplateID: servicetest.TwoSectionBundle(),
		}},
		clock: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{DuplicatePolicy: policy}
	h.svc = NewAttemptService(h.bundles, h.attempts, h.drafts, h.results, cfg, zerolog.Nop())
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) start(t *testing.T) *model.Attempt {
	t.Helper()
	a, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
	require.NoError(t, err)
	require.False(t, resumed)
	return a
}

// answerAll answers every instance with option "1" except the given keys, which get "0".
func answerAll(a *model.Attempt, wrong ...string) []model.SubmittedResponse {
	var out []model.SubmittedResponse
	for _, key := range servicetest.AllInstanceKeys(a) {
		sel := []string{"1"}
		for _, w := range wrong {
			if w == key {
				sel = []string{"0"}
			}
		}
		out = append(out, model.SubmittedResponse{InstanceKey: key, Selected: sel})
	}
	return out
}

func TestStart_CreatesFrozenAttempt(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)

	assert.Equal(t, model.AttemptStatusInProgress, a.Status)
	assert.Equal(t, 1, a.AttemptNo)
	assert.Equal(t, h.clock.Add(time.Hour), a.ExpiresAt)
	assert.Equal(t, 24.0, a.MaxScore)
	assert.Len(t, servicetest.AllInstanceKeys(a), 6)

	stored, err := h.attempts.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Sections, stored.Sections)
}

func TestStart_DuplicatePolicy(t *testing.T) {
	t.Run("resume returns the same attempt", func(t *testing.T) {
		h := newHarness(t, config.DuplicatePolicyResume)
		first := h.start(t)

		second, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
		require.NoError(t, err)
		assert.True(t, resumed)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Sections, second.Sections)
		assert.Equal(t, 1, h.attempts.Count(model.AttemptStatusInProgress))
	})

	t.Run("reject reports the existing attempt", func(t *testing.T) {
		h := newHarness(t, config.DuplicatePolicyReject)
		first := h.start(t)

		existing, _, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
		assert.ErrorIs(t, err, ErrDuplicateActiveAttempt)
		require.NotNil(t, existing)
		assert.Equal(t, first.ID, existing.ID)
		assert.Equal(t, 1, h.attempts.Count(model.AttemptStatusInProgress))
	})

	t.Run("other students are independent", func(t *testing.T) {
		h := newHarness(t, config.DuplicatePolicyReject)
		first := h.start(t)

		other, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, "student-2")
		require.NoError(t, err)
		assert.False(t, resumed)
		assert.NotEqual(t, first.ID, other.ID)
	})
}

func TestStart_ConcurrentStartFollowsPolicy(t *testing.T) {
	for _, policy := range []config.DuplicatePolicy{config.DuplicatePolicyResume, config.DuplicatePolicyReject} {
		t.Run(string(policy), func(t *testing.T) {
			h := newHarness(t, policy)

			var winner *model.Attempt
			h.attempts.BeforeCreate = func(a *model.Attempt) {
				winner = &model.Attempt{
					ID:         uuid.New(),
					StudentID:  a.StudentID,
					TemplateID: a.TemplateID,
					Status:     model.AttemptStatusInProgress,
					StartedAt:  a.StartedAt,
					ExpiresAt:  a.ExpiresAt,
					Sections:   a.Sections,
					AttemptNo:  1,
				}
				h.attempts.Put(winner)
			}

			got, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
			require.NotNil(t, got)
			assert.Equal(t, winner.ID, got.ID)
			if policy == config.DuplicatePolicyReject {
				assert.ErrorIs(t, err, ErrDuplicateActiveAttempt)
			} else {
				require.NoError(t, err)
				assert.True(t, resumed)
			}
			assert.Equal(t, 1, h.attempts.Count(model.AttemptStatusInProgress))
		})
	}
}

func TestStart_RetriesWhenConcurrentAttemptIsAlreadyGone(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyReject)

	var winner *model.Attempt
	h.attempts.BeforeCreate = func(a *model.Attempt) {
		finished := a.StartedAt
		winner = &model.Attempt{
			ID:          uuid.New(),
			StudentID:   a.StudentID,
			TemplateID:  a.TemplateID,
			Status:      model.AttemptStatusSubmitted,
			StartedAt:   a.StartedAt,
			ExpiresAt:   a.ExpiresAt,
			SubmittedAt: &finished,
			Sections:    a.Sections,
			AttemptNo:   1,
		}
		h.attempts.Put(winner)
	}

	a, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
	require.NoError(t, err)
	assert.False(t, resumed)
	require.NotNil(t, winner)
	assert.NotEqual(t, winner.ID, a.ID)
	assert.Equal(t, 2, a.AttemptNo)
	assert.Equal(t, 1, h.attempts.Count(model.AttemptStatusInProgress))
	assert.Equal(t, 1, h.attempts.Count(model.AttemptStatusSubmitted))
}

func TestStart_TemplateErrors(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	h.bundles.Err = ErrTemplateNotFound

	_, _, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	h.bundles.Err = nil
	broken := servicetest.TwoSectionBundle()
	delete(broken.Questions, "q2")
	h.bundles.Bundles[servicetest.TemplateID] = broken

	_, _, err = h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Zero(t, h.attempts.Count(model.AttemptStatusInProgress))
}

func TestStart_AfterExpiredAttemptStartsFresh(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyReject)
	first := h.start(t)

	h.clock = h.clock.Add(2 * time.Hour)
	second, resumed, err := h.svc.Start(context.Background(), servicetest.TemplateID, studentID)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, second.AttemptNo)

	old, err := h.attempts.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusExpired, old.Status)
}

func TestSubmit_ScoresAndPublishes(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	keys := servicetest.AllInstanceKeys(a)

	require.NoError(t, h.svc.SaveDraft(context.Background(), a.ID, studentID,
		model.SubmittedResponse{InstanceKey: keys[0], Selected: []string{"1"}}))

	payload := answerAll(a, keys[1])
	payload = append(payload, model.SubmittedResponse{InstanceKey: "ghost_9_9", Selected: []string{"1"}})

	h.clock = h.clock.Add(30 * time.Minute)
	res, err := h.svc.Submit(context.Background(), a.ID, studentID, payload)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptStatusSubmitted, res.Status)
	assert.Equal(t, 19.0, res.Score)
	assert.Equal(t, 24.0, res.MaxScore)
	assert.InDelta(t, 19.0/24*100, res.Percentage, 1e-9)
	assert.Equal(t, 5, res.Correct)
	assert.Equal(t, 1, res.Incorrect)
	assert.Equal(t, 1, res.DroppedResponses)
	require.NotNil(t, res.FinishedAt)
	assert.Equal(t, h.clock, *res.FinishedAt)

	events := h.results.Published()
	require.Len(t, events, 1)
	assert.Equal(t, a.ID.String(), events[0].AttemptID)
	assert.Equal(t, 19.0, events[0].Score)
	assert.Zero(t, h.drafts.Len(a.ID))
}

func TestSubmit_TwiceDoesNotRescore(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)

	first, err := h.svc.Submit(context.Background(), a.ID, studentID, answerAll(a))
	require.NoError(t, err)
	assert.Equal(t, 24.0, first.Score)

	second, err := h.svc.Submit(context.Background(), a.ID, studentID, nil)
	assert.ErrorIs(t, err, ErrAttemptAlreadyFinalized)
	require.NotNil(t, second)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, h.attempts.Finalizes)
	assert.Len(t, h.results.Published(), 1)
}

func TestSubmit_AfterDeadlineUsesDrafts(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	keys := servicetest.AllInstanceKeys(a)

	ctx := context.Background()
	require.NoError(t, h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: keys[0], Selected: []string{"1"}}))
	require.NoError(t, h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: keys[1], Selected: []string{"3"}}))

	h.clock = a.ExpiresAt
	res, err := h.svc.Submit(ctx, a.ID, studentID, answerAll(a))
	assert.ErrorIs(t, err, ErrAttemptExpired)
	require.NotNil(t, res)
	assert.Equal(t, model.AttemptStatusExpired, res.Status)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, 4, res.Unanswered)
	assert.Equal(t, a.ExpiresAt, *res.FinishedAt)

	// Still expired, still the same result.
	again, err := h.svc.Submit(ctx, a.ID, studentID, answerAll(a))
	assert.ErrorIs(t, err, ErrAttemptExpired)
	assert.Equal(t, res.Score, again.Score)
	assert.Equal(t, 1, h.attempts.Finalizes)
}

func TestSubmit_AfterDeadlineLosesToEarlierSubmit(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()

	h.attempts.BeforeFinalize = func(id uuid.UUID) {
		applied, err := h.attempts.Finalize(ctx, id, model.Finalization{
			Status:     model.AttemptStatusSubmitted,
			Score:      24,
			FinishedAt: a.ExpiresAt.Add(-time.Second),
		})
		require.NoError(t, err)
		require.True(t, applied)
	}

	h.clock = a.ExpiresAt
	res, err := h.svc.Submit(ctx, a.ID, studentID, answerAll(a))
	assert.ErrorIs(t, err, ErrAttemptAlreadyFinalized)
	assert.NotErrorIs(t, err, ErrAttemptExpired)
	require.NotNil(t, res)
	assert.Equal(t, model.AttemptStatusSubmitted, res.Status)
	assert.Equal(t, 24.0, res.Score)
	assert.Equal(t, 1, h.attempts.Finalizes)
	assert.Empty(t, h.results.Published())
}

func TestGet_LazyExpiryWithoutDraftsScoresZero(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)

	got, err := h.svc.Get(context.Background(), a.ID, Viewer{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusInProgress, got.Status)

	h.clock = h.clock.Add(61 * time.Minute)
	got, err = h.svc.Get(context.Background(), a.ID, Viewer{StudentID: studentID})
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusExpired, got.Status)
	require.NotNil(t, got.Score)
	assert.Zero(t, *got.Score)
	assert.Len(t, got.Responses, 6)
	assert.Equal(t, a.Sections, got.Sections)

	events := h.results.Published()
	require.Len(t, events, 1)
	assert.Equal(t, model.AttemptStatusExpired, events[0].Status)
}

func TestAccess_OtherStudentsSeeNothing(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()

	_, err := h.svc.Get(ctx, a.ID, Viewer{StudentID: "intruder"})
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = h.svc.Submit(ctx, a.ID, "intruder", nil)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	_, err = h.svc.Get(ctx, uuid.New(), Viewer{StudentID: studentID})
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	got, err := h.svc.Get(ctx, a.ID, Viewer{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestSaveDraft_Guards(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()
	key := servicetest.AllInstanceKeys(a)[0]

	err := h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: "q1_7_7", Selected: []string{"1"}})
	assert.ErrorIs(t, err, ErrUnknownInstance)

	err = h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{QuestionRef: "q1", Selected: []string{"1"}})
	assert.ErrorIs(t, err, ErrUnknownInstance)

	require.NoError(t, h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: key, Selected: []string{"0"}}))
	require.NoError(t, h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: key, Selected: []string{"1"}}))
	assert.Equal(t, 1, h.drafts.Len(a.ID))

	h.clock = a.ExpiresAt.Add(time.Second)
	err = h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: key, Selected: []string{"2"}})
	assert.ErrorIs(t, err, ErrAttemptExpired)

	stored, err := h.attempts.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptStatusExpired, stored.Status)
	assert.Equal(t, 4.0, *stored.Score)
}

func TestSaveDraft_AfterSubmit(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, a.ID, studentID, nil)
	require.NoError(t, err)

	err = h.svc.SaveDraft(ctx, a.ID, studentID, model.SubmittedResponse{InstanceKey: servicetest.AllInstanceKeys(a)[0]})
	assert.ErrorIs(t, err, ErrAttemptAlreadyFinalized)
}

func TestReview(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()
	viewer := Viewer{StudentID: studentID}

	_, err := h.svc.Review(ctx, a.ID, viewer, engine.ReviewOptions{})
	assert.ErrorIs(t, err, ErrAttemptInProgress)

	keys := servicetest.AllInstanceKeys(a)
	// Only the first section is answered.
	var payload []model.SubmittedResponse
	for _, q := range a.Sections[0].Questions {
		payload = append(payload, model.SubmittedResponse{InstanceKey: q.InstanceKey, Selected: []string{"1"}})
	}
	payload[0].Selected = []string{"2"}
	res, err := h.svc.Submit(ctx, a.ID, studentID, payload)
	require.NoError(t, err)

	doc, err := h.svc.Review(ctx, a.ID, viewer, engine.ReviewOptions{})
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, a.Sections[0].Title, doc.Sections[0].Title)
	assert.Equal(t, keys[0], doc.Sections[0].Questions[0].InstanceKey)

	sum := 0.0
	for _, sec := range doc.Sections {
		for _, q := range sec.Questions {
			sum += q.EarnedMarks
		}
	}
	assert.Equal(t, res.Score, sum)

	full, err := h.svc.Review(ctx, a.ID, Viewer{Admin: true}, engine.ReviewOptions{IncludeEmptySections: true})
	require.NoError(t, err)
	assert.Len(t, full.Sections, 2)
}

func TestExport(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)
	ctx := context.Background()
	viewer := Viewer{StudentID: studentID}

	_, err := h.svc.Export(ctx, a.ID, viewer, export.FormatCSV, engine.ReviewOptions{})
	assert.ErrorIs(t, err, ErrAttemptInProgress)

	_, err = h.svc.Submit(ctx, a.ID, studentID, answerAll(a))
	require.NoError(t, err)

	_, err = h.svc.Export(ctx, a.ID, viewer, export.Format("docx"), engine.ReviewOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	art, err := h.svc.Export(ctx, a.ID, viewer, export.FormatCSV, engine.ReviewOptions{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(art.Body)), "\n")
	require.Len(t, lines, 7)
	for i, key := range servicetest.AllInstanceKeys(a) {
		assert.Contains(t, lines[i+1], key)
	}
}

func TestList_FinalizesStaleAttempts(t *testing.T) {
	h := newHarness(t, config.DuplicatePolicyResume)
	a := h.start(t)

	h.clock = h.clock.Add(90 * time.Minute)
	list, err := h.svc.List(context.Background(), studentID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, model.AttemptStatusExpired, list[0].Status)

	empty, err := h.svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
