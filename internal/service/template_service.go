package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/repository"
)

// TemplateStore reads authored templates.
type TemplateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestTemplate, error)
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// QuestionSource resolves question bank content by id.
type QuestionSource interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*model.Question, error)
}

// BundleCache stores resolved template bundles. Get returns nil, nil on a miss.
type BundleCache interface {
	Get(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error)
	Set(ctx context.Context, b *model.TemplateBundle, ttl time.Duration) error
	Delete(ctx context.Context, templateID uuid.UUID) error
}

// TemplateService loads the template read model together with the content of
// every question it references, behind a Redis cache.
type TemplateService struct {
	templates TemplateStore
	questions QuestionSource
	cache     BundleCache
	ttl       time.Duration
	log       zerolog.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(
	templates TemplateStore,
	questions QuestionSource,
	cache BundleCache,
	ttl time.Duration,
	log zerolog.Logger,
) *TemplateService {
	return &TemplateService{
		templates: templates,
		questions: questions,
		cache:     cache,
		ttl:       ttl,
		log:       log.With().Str("component", "template_service").Logger(),
	}
}

// LoadBundle returns the active template with resolved questions. Missing or
// inactive templates give ErrTemplateNotFound; a reference to a question the
// bank does not have gives ErrQuestionNotFound.
//
// A cached bundle is only served after the store confirms the template is
// still active; a template deactivated since caching is evicted.
func (s *TemplateService) LoadBundle(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	cached, err := s.cache.Get(ctx, templateID)
	if err != nil {
		s.log.Warn().Err(err).Str("template_id", templateID.String()).Msg("Bundle cache read failed, loading from store")
	}
	if cached != nil {
		active, err := s.templates.IsActive(ctx, templateID)
		if err != nil {
			return nil, err
		}
		if !active || !cached.Template.IsActive {
			s.evict(ctx, templateID)
			return nil, ErrTemplateNotFound
		}
		return cached, nil
	}

	return s.buildAndCache(ctx, templateID)
}

func (s *TemplateService) evict(ctx context.Context, templateID uuid.UUID) {
	if err := s.cache.Delete(ctx, templateID); err != nil {
		s.log.Warn().Err(err).Str("template_id", templateID.String()).Msg("Failed to evict inactive bundle")
		return
	}
	s.log.Info().Str("template_id", templateID.String()).Msg("Cached bundle of inactive template evicted")
}

// Refresh drops and rebuilds the cached bundle of one template.
func (s *TemplateService) Refresh(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	if err := s.cache.Delete(ctx, templateID); err != nil {
		return nil, fmt.Errorf("drop cached bundle: %w", err)
	}
	return s.buildAndCache(ctx, templateID)
}

// PrewarmActive caches the bundle of every active template. Broken templates
// are logged and skipped.
func (s *TemplateService) PrewarmActive(ctx context.Context) error {
	ids, err := s.templates.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active templates: %w", err)
	}

	s.log.Info().Int("count", len(ids)).Msg("Prewarming active templates...")

	warmed := 0
	for _, id := range ids {
		if _, err := s.Refresh(ctx, id); err != nil {
			s.log.Warn().
				Err(err).
				Str("template_id", id.String()).
				Msg("Failed to warm template, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

func (s *TemplateService) buildAndCache(ctx context.Context, templateID uuid.UUID) (*model.TemplateBundle, error) {
	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("load template: %w", err)
	}
	if !tmpl.IsActive {
		return nil, ErrTemplateNotFound
	}

	refs := uniqueRefs(tmpl.QuestionRefs())
	questions, err := s.questions.GetByIDs(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	for _, ref := range refs {
		if q, ok := questions[ref]; !ok || q == nil {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, ref)
		}
	}

	bundle := &model.TemplateBundle{Template: *tmpl, Questions: questions}
	if err := s.cache.Set(ctx, bundle, s.ttl); err != nil {
		s.log.Warn().Err(err).Str("template_id", templateID.String()).Msg("Failed to cache bundle")
	}
	return bundle, nil
}

func uniqueRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
