package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/engine"
	"github.com/stemsi/exstem-delivery/internal/export"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/repository"
)

// BundleLoader supplies an active template with its resolved questions.
type BundleLoader interface {
	LoadBundle(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error)
}

// AttemptStore persists attempts. CreateActive returns false when an
// in-progress attempt for the same student and template already exists.
// Finalize is a compare-and-set on status and reports whether it applied.
type AttemptStore interface {
	CreateActive(ctx context.Context, a *model.Attempt) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetActive(ctx context.Context, studentID string, templateID uuid.UUID) (*model.Attempt, error)
	Finalize(ctx context.Context, id uuid.UUID, f model.Finalization) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.AttemptSummary, error)
}

// DraftStore holds autosaved responses of in-progress attempts.
type DraftStore interface {
	Save(ctx context.Context, attemptID uuid.UUID, resp model.SubmittedResponse) error
	Load(ctx context.Context, attemptID uuid.UUID) ([]model.SubmittedResponse, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// ResultPublisher announces terminal transitions.
type ResultPublisher interface {
	Publish(ctx context.Context, ev model.AttemptResultEvent) error
}

// Viewer is the caller identity as established by the auth layer.
type Viewer struct {
	StudentID string
	Admin     bool
}

func (v Viewer) canSee(a *model.Attempt) bool {
	return v.Admin || (v.StudentID != "" && a.StudentID == v.StudentID)
}

// AttemptService owns the attempt lifecycle: start, lazy expiry, autosave,
// submission, review and export.
type AttemptService struct {
	bundles  BundleLoader
	attempts AttemptStore
	drafts   DraftStore
	results  ResultPublisher
	policy   config.DuplicatePolicy
	fontPath string
	now      func() time.Time
	log      zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	bundles BundleLoader,
	attempts AttemptStore,
	drafts DraftStore,
	results ResultPublisher,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		bundles:  bundles,
		attempts: attempts,
		drafts:   drafts,
		results:  results,
		policy:   cfg.DuplicatePolicy,
		fontPath: cfg.PDFFontPath,
		now:      time.Now,
		log:      log.With().Str("component", "attempt_service").Logger(),
	}
}

// ----------------------------------------------------------------
// Start
// ----------------------------------------------------------------

// Start freezes a new randomized attempt for the student. When the student
// already holds an in-progress attempt for the template, the duplicate policy
// decides: resume returns it with resumed=true, reject returns it together
// with ErrDuplicateActiveAttempt.
func (s *AttemptService) Start(ctx context.Context, templateID uuid.UUID, studentID string) (*model.Attempt, bool, error) {
	return s.start(ctx, templateID, studentID, true)
}

// start runs one start. When the insert loses to a concurrent start whose
// attempt is already gone again, it retries once if retry is set.
func (s *AttemptService) start(ctx context.Context, templateID uuid.UUID, studentID string, retry bool) (*model.Attempt, bool, error) {
	existing, err := s.activeAttempt(ctx, studentID, templateID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.applyDuplicatePolicy(existing)
	}

	bundle, err := s.bundles.LoadBundle(ctx, templateID)
	if err != nil {
		return nil, false, err
	}

	attempt, err := engine.Freeze(engine.FreezeInput{
		AttemptID: uuid.New(),
		StudentID: studentID,
		Bundle:    bundle,
		Now:       s.now(),
	})
	if err != nil {
		if errors.Is(err, engine.ErrQuestionNotFound) {
			return nil, false, fmt.Errorf("%w: %v", ErrQuestionNotFound, err)
		}
		return nil, false, fmt.Errorf("freeze attempt: %w", err)
	}

	created, err := s.attempts.CreateActive(ctx, attempt)
	if err != nil {
		return nil, false, fmt.Errorf("create attempt: %w", err)
	}
	if !created {
		// Lost the race against a concurrent start for the same pair.
		existing, err := s.attempts.GetActive(ctx, studentID, templateID)
		if errors.Is(err, repository.ErrNotFound) && retry {
			s.log.Warn().
				Str("student_id", studentID).
				Str("template_id", templateID.String()).
				Msg("Concurrent attempt already finalized, retrying start")
			return s.start(ctx, templateID, studentID, false)
		}
		if err != nil {
			return nil, false, fmt.Errorf("concurrent start detected, but fetch failed: %w", err)
		}
		return s.applyDuplicatePolicy(existing)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("student_id", studentID).
		Str("template_id", templateID.String()).
		Int("attempt_no", attempt.AttemptNo).
		Int("questions", attempt.InstanceCount()).
		Msg("Attempt started")

	return attempt, false, nil
}

// activeAttempt returns the live in-progress attempt for the pair, finalizing
// it first when its window has already closed.
func (s *AttemptService) activeAttempt(ctx context.Context, studentID string, templateID uuid.UUID) (*model.Attempt, error) {
	existing, err := s.attempts.GetActive(ctx, studentID, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("check active attempt: %w", err)
	}
	if existing.Expired(s.now()) {
		if _, err := s.expire(ctx, existing); err != nil && !isFinalized(err) {
			return nil, err
		}
		return nil, nil
	}
	return existing, nil
}

func (s *AttemptService) applyDuplicatePolicy(existing *model.Attempt) (*model.Attempt, bool, error) {
	logEvent := s.log.Info().
		Str("attempt_id", existing.ID.String()).
		Str("student_id", existing.StudentID).
		Str("template_id", existing.TemplateID.String())

	if s.policy == config.DuplicatePolicyReject {
		logEvent.Msg("Duplicate active attempt rejected")
		return existing, false, ErrDuplicateActiveAttempt
	}
	logEvent.Msg("Attempt resumed")
	return existing, true, nil
}

// ----------------------------------------------------------------
// Read
// ----------------------------------------------------------------

// Get returns an attempt visible to viewer, applying lazy expiry.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID, viewer Viewer) (*model.Attempt, error) {
	a, err := s.load(ctx, attemptID, viewer)
	if err != nil {
		return nil, err
	}
	if a.Status == model.AttemptStatusInProgress && a.Expired(s.now()) {
		if _, err := s.expire(ctx, a); err != nil && !isFinalized(err) {
			return nil, err
		}
		return s.load(ctx, attemptID, viewer)
	}
	return a, nil
}

// List returns the student's attempts, newest first. Attempts whose window
// has closed are finalized before listing.
func (s *AttemptService) List(ctx context.Context, studentID string) ([]model.AttemptSummary, error) {
	summaries, err := s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	now := s.now()
	stale := false
	for _, sum := range summaries {
		if sum.Status != model.AttemptStatusInProgress || now.Before(sum.ExpiresAt) {
			continue
		}
		if _, err := s.Get(ctx, sum.ID, Viewer{StudentID: studentID}); err != nil {
			return nil, err
		}
		stale = true
	}
	if !stale {
		return summaries, nil
	}

	summaries, err = s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return summaries, nil
}

func (s *AttemptService) load(ctx context.Context, attemptID uuid.UUID, viewer Viewer) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	// Someone else's attempt is reported as missing.
	if !viewer.canSee(a) {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// ----------------------------------------------------------------
// Autosave
// ----------------------------------------------------------------

// SaveDraft records one response of an in-progress attempt server-side. The
// response must carry an instance key of this attempt.
func (s *AttemptService) SaveDraft(ctx context.Context, attemptID uuid.UUID, studentID string, resp model.SubmittedResponse) error {
	a, err := s.load(ctx, attemptID, Viewer{StudentID: studentID})
	if err != nil {
		return err
	}
	if err := s.ensureMutable(ctx, a); err != nil {
		return err
	}
	if resp.InstanceKey == "" || !a.HasInstance(resp.InstanceKey) {
		return ErrUnknownInstance
	}

	if err := s.drafts.Save(ctx, a.ID, resp); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// ensureMutable rejects any change to an attempt that is terminal or whose
// window has closed; the latter is finalized on the spot.
func (s *AttemptService) ensureMutable(ctx context.Context, a *model.Attempt) error {
	switch a.Status {
	case model.AttemptStatusSubmitted:
		return ErrAttemptAlreadyFinalized
	case model.AttemptStatusExpired:
		return ErrAttemptExpired
	}
	if a.Expired(s.now()) {
		_, err := s.expire(ctx, a)
		return err
	}
	return nil
}

// ----------------------------------------------------------------
// Submit
// ----------------------------------------------------------------

// Submit reconciles and scores the payload and finalizes the attempt in one
// conditional write. A repeated submit never rescores: it returns the stored
// result with ErrAttemptAlreadyFinalized. A submit after the deadline
// finalizes the attempt as expired from its drafts and returns that result
// with ErrAttemptExpired.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID string, responses []model.SubmittedResponse) (*model.SubmitResult, error) {
	a, err := s.load(ctx, attemptID, Viewer{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return s.finalizedResult(a)
	}

	now := s.now()
	if a.Expired(now) {
		return s.expire(ctx, a)
	}

	rec := engine.Reconcile(a.Sections, responses)
	scored := engine.Score(a.Sections, rec.Matched, a.Rules)
	fin := model.Finalization{
		Status:           model.AttemptStatusSubmitted,
		Responses:        scored.Responses,
		Score:            scored.TotalScore,
		FinishedAt:       now,
		DroppedResponses: rec.Dropped,
	}

	applied, err := s.attempts.Finalize(ctx, a.ID, fin)
	if err != nil {
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}
	if !applied {
		return s.afterLostFinalize(ctx, a.ID, studentID)
	}

	applyFinalization(a, fin)
	s.afterFinalize(ctx, a)

	if rec.Dropped > 0 {
		s.log.Warn().
			Str("attempt_id", a.ID.String()).
			Int("dropped", rec.Dropped).
			Strs("dropped_keys", rec.DroppedKeys).
			Msg("Unmatched responses dropped")
	}
	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("student_id", a.StudentID).
		Str("template_id", a.TemplateID.String()).
		Float64("score", scored.TotalScore).
		Float64("max_score", scored.MaxScore).
		Msg("Attempt submitted")

	res := model.ResultFromAttempt(a)
	return &res, nil
}

// afterLostFinalize handles a compare-and-set that changed nothing: either a
// concurrent request finalized first, or the deadline passed in between.
func (s *AttemptService) afterLostFinalize(ctx context.Context, attemptID uuid.UUID, studentID string) (*model.SubmitResult, error) {
	current, err := s.load(ctx, attemptID, Viewer{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return s.finalizedResult(current)
	}

	return s.expire(ctx, current)
}

func (s *AttemptService) finalizedResult(a *model.Attempt) (*model.SubmitResult, error) {
	res := model.ResultFromAttempt(a)
	if a.Status == model.AttemptStatusExpired {
		return &res, ErrAttemptExpired
	}
	return &res, ErrAttemptAlreadyFinalized
}

// isFinalized reports whether err only says the attempt is already terminal.
func isFinalized(err error) bool {
	return errors.Is(err, ErrAttemptExpired) || errors.Is(err, ErrAttemptAlreadyFinalized)
}

// expire finalizes an in-progress attempt whose window has closed, scoring
// whatever autosaved drafts the server holds. Without drafts every instance
// is unanswered. The finish time is the deadline, not the moment of detection.
//
// The result always comes with the error of the terminal state the attempt
// ended in: ErrAttemptExpired, or ErrAttemptAlreadyFinalized when a submit
// that was still inside the window won the conditional write.
func (s *AttemptService) expire(ctx context.Context, a *model.Attempt) (*model.SubmitResult, error) {
	drafts, err := s.drafts.Load(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}

	rec := engine.Reconcile(a.Sections, drafts)
	scored := engine.Score(a.Sections, rec.Matched, a.Rules)
	fin := model.Finalization{
		Status:           model.AttemptStatusExpired,
		Responses:        scored.Responses,
		Score:            scored.TotalScore,
		FinishedAt:       a.ExpiresAt,
		DroppedResponses: rec.Dropped,
	}

	applied, err := s.attempts.Finalize(ctx, a.ID, fin)
	if err != nil {
		return nil, fmt.Errorf("finalize expired attempt: %w", err)
	}
	if !applied {
		current, err := s.attempts.GetByID(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("reload attempt: %w", err)
		}
		return s.finalizedResult(current)
	}

	applyFinalization(a, fin)
	s.afterFinalize(ctx, a)

	s.log.Info().
		Str("attempt_id", a.ID.String()).
		Str("student_id", a.StudentID).
		Str("template_id", a.TemplateID.String()).
		Int("drafts", len(rec.Matched)).
		Float64("score", scored.TotalScore).
		Msg("Attempt expired")

	res := model.ResultFromAttempt(a)
	return &res, ErrAttemptExpired
}

func applyFinalization(a *model.Attempt, f model.Finalization) {
	score := f.Score
	finished := f.FinishedAt
	a.Status = f.Status
	a.Responses = f.Responses
	a.Score = &score
	a.SubmittedAt = &finished
	a.DroppedResponses = f.DroppedResponses
}

// afterFinalize publishes the result and drops the draft buffer. Neither
// failure undoes the transition.
func (s *AttemptService) afterFinalize(ctx context.Context, a *model.Attempt) {
	res := model.ResultFromAttempt(a)
	ev := model.AttemptResultEvent{
		AttemptID:  a.ID.String(),
		StudentID:  a.StudentID,
		TemplateID: a.TemplateID.String(),
		Status:     a.Status,
		Score:      res.Score,
		MaxScore:   res.MaxScore,
		Percentage: res.Percentage,
		FinishedAt: a.SubmittedAt.Unix(),
	}
	if err := s.results.Publish(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("attempt_id", ev.AttemptID).Msg("Failed to publish attempt result")
	}
	if err := s.drafts.Clear(ctx, a.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", ev.AttemptID).Msg("Failed to clear drafts")
	}
}

// View strips correctness from a for its owner, timed against the service clock.
func (s *AttemptService) View(a *model.Attempt) model.AttemptForStudent {
	return a.StudentView(s.now())
}

// ----------------------------------------------------------------
// Review & export
// ----------------------------------------------------------------

// Review builds the post-finalization review in frozen order. It fails with
// ErrAttemptInProgress while the attempt can still be answered.
func (s *AttemptService) Review(ctx context.Context, attemptID uuid.UUID, viewer Viewer, opts engine.ReviewOptions) (*model.ReviewDocument, error) {
	a, err := s.Get(ctx, attemptID, viewer)
	if err != nil {
		return nil, err
	}
	if !a.Status.Terminal() {
		return nil, ErrAttemptInProgress
	}

	doc := engine.BuildReview(a, opts)
	return &doc, nil
}

// Export renders the review in the requested format.
func (s *AttemptService) Export(ctx context.Context, attemptID uuid.UUID, viewer Viewer, format export.Format, opts engine.ReviewOptions) (*export.Artifact, error) {
	if !format.Valid() {
		return nil, ErrUnsupportedFormat
	}

	doc, err := s.Review(ctx, attemptID, viewer, opts)
	if err != nil {
		return nil, err
	}

	artifact, err := export.Render(doc, format, export.Options{FontPath: s.fontPath})
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}
	return artifact, nil
}
