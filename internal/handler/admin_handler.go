package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/middleware"
	"github.com/stemsi/exstem-delivery/internal/response"
	"github.com/stemsi/exstem-delivery/internal/service"
)

// AdminHandler handles admin endpoints: any attempt's review and export,
// and template cache maintenance.
type AdminHandler struct {
	attempts        *AttemptHandler
	templateService *service.TemplateService
	log             zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(attemptService *service.AttemptService, templateService *service.TemplateService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		attempts:        NewAttemptHandler(attemptService, log),
		templateService: templateService,
		log:             log.With().Str("component", "admin_handler").Logger(),
	}
}

// ReviewAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id/review
func (h *AdminHandler) ReviewAttempt(c *gin.Context) {
	h.attempts.review(c, service.Viewer{Admin: true})
}

// ExportAttempt godoc
// GET /api/v1/admin/attempts/:attempt_id/export?format=csv|pdf|xlsx
func (h *AdminHandler) ExportAttempt(c *gin.Context) {
	h.attempts.export(c, service.Viewer{Admin: true})
}

// RefreshTemplateCache godoc
// POST /api/v1/admin/templates/:template_id/refresh-cache
// Rebuilds the cached template bundle from the stores.
func (h *AdminHandler) RefreshTemplateCache(c *gin.Context) {
	templateID, err := uuid.Parse(c.Param("template_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	bundle, err := h.templateService.Refresh(c.Request.Context(), templateID)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("template_id", templateID.String()).Msg("Template cache refresh failed")
		}
		response.Fail(c, status, code)
		return
	}

	h.log.Info().
		Str("template_id", templateID.String()).
		Str("admin_id", middleware.GetSubject(c)).
		Msg("Template cache refreshed")

	response.Success(c, http.StatusOK, gin.H{
		"template_id": bundle.Template.ID,
		"sections":    len(bundle.Template.Sections),
		"questions":   len(bundle.Questions),
	})
}
