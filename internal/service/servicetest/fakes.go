// Package servicetest provides in-memory collaborators for service and
// handler tests. They mirror the storage guarantees the services rely on: one
// in-progress attempt per student and template, and compare-and-set finalize.
package servicetest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/repository"
)

// clone deep-copies through JSON so callers never share state with the store.
func clone[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

// ----------------------------------------------------------------
// Attempts
// ----------------------------------------------------------------

// AttemptStore is an in-memory attempt store.
type AttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt

	// BeforeCreate, when set, runs inside CreateActive before the uniqueness
	// check. Tests use it to simulate a concurrent start.
	BeforeCreate func(a *model.Attempt)
	// BeforeFinalize, when set, runs once at the start of Finalize. Tests use
	// it to let a concurrent finalize win the compare-and-set.
	BeforeFinalize func(id uuid.UUID)
	Finalizes      int
}

// NewAttemptStore creates an empty AttemptStore.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[uuid.UUID]*model.Attempt)}
}

// CreateActive numbers the attempt before BeforeCreate runs, so a start the
// hook commits meanwhile can collide on the attempt number as well as on the
// in-progress slot.
func (s *AttemptStore) CreateActive(_ context.Context, a *model.Attempt) (bool, error) {
	next := s.nextAttemptNo(a.StudentID, a.TemplateID)

	if s.BeforeCreate != nil {
		hook := s.BeforeCreate
		s.BeforeCreate = nil
		hook(a)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cur := range s.attempts {
		if cur.StudentID != a.StudentID || cur.TemplateID != a.TemplateID {
			continue
		}
		if cur.Status == model.AttemptStatusInProgress || cur.AttemptNo == next {
			return false, nil
		}
	}
	a.AttemptNo = next
	s.attempts[a.ID] = clone(a)
	return true, nil
}

func (s *AttemptStore) nextAttemptNo(studentID string, templateID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxNo := 0
	for _, cur := range s.attempts {
		if cur.StudentID == studentID && cur.TemplateID == templateID {
			maxNo = max(maxNo, cur.AttemptNo)
		}
	}
	return maxNo + 1
}

func (s *AttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(a), nil
}

func (s *AttemptStore) GetActive(_ context.Context, studentID string, templateID uuid.UUID) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.attempts {
		if a.StudentID == studentID && a.TemplateID == templateID && a.Status == model.AttemptStatusInProgress {
			return clone(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *AttemptStore) Finalize(_ context.Context, id uuid.UUID, f model.Finalization) (bool, error) {
	if s.BeforeFinalize != nil {
		hook := s.BeforeFinalize
		s.BeforeFinalize = nil
		hook(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.attempts[id]
	if !ok || a.Status != model.AttemptStatusInProgress {
		return false, nil
	}
	if f.Status == model.AttemptStatusSubmitted && !f.FinishedAt.Before(a.ExpiresAt) {
		return false, nil
	}

	score := f.Score
	finished := f.FinishedAt
	a.Status = f.Status
	a.Responses = clone(f.Responses)
	a.Score = &score
	a.SubmittedAt = &finished
	a.DroppedResponses = f.DroppedResponses
	s.Finalizes++
	return true, nil
}

func (s *AttemptStore) ListByStudent(_ context.Context, studentID string) ([]model.AttemptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AttemptSummary, 0)
	for _, a := range s.attempts {
		if a.StudentID != studentID {
			continue
		}
		out = append(out, model.AttemptSummary{
			ID:            a.ID,
			TemplateID:    a.TemplateID,
			TemplateTitle: a.TemplateTitle,
			AttemptNo:     a.AttemptNo,
			Status:        a.Status,
			StartedAt:     a.StartedAt,
			ExpiresAt:     a.ExpiresAt,
			SubmittedAt:   a.SubmittedAt,
			Score:         a.Score,
			MaxScore:      a.MaxScore,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].AttemptNo > out[j].AttemptNo
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Put stores an attempt as-is.
func (s *AttemptStore) Put(a *model.Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = clone(a)
}

// Count returns the number of stored attempts with the given status.
func (s *AttemptStore) Count(status model.AttemptStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.attempts {
		if a.Status == status {
			n++
		}
	}
	return n
}

// ----------------------------------------------------------------
// Drafts & results
// ----------------------------------------------------------------

// DraftStore is an in-memory draft buffer.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[uuid.UUID]map[string]model.SubmittedResponse
	Err    error
}

// NewDraftStore creates an empty DraftStore.
func NewDraftStore() *DraftStore {
	return &DraftStore{drafts: make(map[uuid.UUID]map[string]model.SubmittedResponse)}
}

func (s *DraftStore) Save(_ context.Context, attemptID uuid.UUID, resp model.SubmittedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if s.drafts[attemptID] == nil {
		s.drafts[attemptID] = make(map[string]model.SubmittedResponse)
	}
	s.drafts[attemptID][resp.InstanceKey] = resp
	return nil
}

func (s *DraftStore) Load(_ context.Context, attemptID uuid.UUID) ([]model.SubmittedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	keys := make([]string, 0, len(s.drafts[attemptID]))
	for k := range s.drafts[attemptID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.SubmittedResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.drafts[attemptID][k])
	}
	return out, nil
}

func (s *DraftStore) Clear(_ context.Context, attemptID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, attemptID)
	return nil
}

// Len returns the number of drafts held for an attempt.
func (s *DraftStore) Len(attemptID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts[attemptID])
}

// ResultRecorder records published result events.
type ResultRecorder struct {
	mu     sync.Mutex
	Events []model.AttemptResultEvent
}

func (r *ResultRecorder) Publish(_ context.Context, ev model.AttemptResultEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	return nil
}

// Published returns a copy of the recorded events.
func (r *ResultRecorder) Published() []model.AttemptResultEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AttemptResultEvent(nil), r.Events...)
}

// ----------------------------------------------------------------
// Templates
// ----------------------------------------------------------------

// BundleLoader serves fixed bundles by template id.
type BundleLoader struct {
	Bundles map[uuid.UUID]*model.TemplateBundle
	Err     error
}

func (l *BundleLoader) LoadBundle(_ context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	b, ok := l.Bundles[templateID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

// TemplateStore serves fixed templates.
type TemplateStore struct {
	Templates    map[uuid.UUID]*model.TestTemplate
	Reads        int
	ActiveChecks int
}

func (s *TemplateStore) GetByID(_ context.Context, id uuid.UUID) (*model.TestTemplate, error) {
	s.Reads++
	t, ok := s.Templates[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(t), nil
}

func (s *TemplateStore) IsActive(_ context.Context, id uuid.UUID) (bool, error) {
	s.ActiveChecks++
	t, ok := s.Templates[id]
	return ok && t.IsActive, nil
}

func (s *TemplateStore) ListActiveIDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, t := range s.Templates {
		if t.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// QuestionBank serves fixed questions.
type QuestionBank struct {
	Questions map[string]*model.Question
}

func (b *QuestionBank) GetByIDs(_ context.Context, ids []string) (map[string]*model.Question, error) {
	out := make(map[string]*model.Question, len(ids))
	for _, id := range ids {
		if q, ok := b.Questions[id]; ok {
			out[id] = clone(q)
		}
	}
	return out, nil
}

// BundleCache is an in-memory bundle cache.
type BundleCache struct {
	mu      sync.Mutex
	bundles map[uuid.UUID]*model.TemplateBundle
	TTLs    map[uuid.UUID]time.Duration
}

// NewBundleCache creates an empty BundleCache.
func NewBundleCache() *BundleCache {
	return &BundleCache{
		bundles: make(map[uuid.UUID]*model.TemplateBundle),
		TTLs:    make(map[uuid.UUID]time.Duration),
	}
}

func (c *BundleCache) Get(_ context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bundles[templateID]
	if !ok {
		return nil, nil
	}
	return clone(b), nil
}

func (c *BundleCache) Set(_ context.Context, b *model.TemplateBundle, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles[b.Template.ID] = clone(b)
	c.TTLs[b.Template.ID] = ttl
	return nil
}

func (c *BundleCache) Delete(_ context.Context, templateID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bundles, templateID)
	return nil
}

// Has reports whether a bundle is cached.
func (c *BundleCache) Has(templateID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.bundles[templateID]
	return ok
}
