package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/engine"
	"github.com/stemsi/exstem-delivery/internal/export"
	"github.com/stemsi/exstem-delivery/internal/middleware"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/response"
	"github.com/stemsi/exstem-delivery/internal/service"
	"github.com/stemsi/exstem-delivery/internal/validator"
)

// AttemptHandler handles the student-facing attempt lifecycle.
type AttemptHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "attempt_handler").Logger(),
	}
}

// StartAttempt godoc
// POST /api/v1/student/templates/:template_id/attempts
// Freezes a new randomized attempt, or returns the running one (resumed).
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	templateID, err := uuid.Parse(c.Param("template_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, resumed, err := h.attemptService.Start(c.Request.Context(), templateID, studentID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateActiveAttempt) && attempt != nil {
			response.FailWithData(c, http.StatusConflict, response.ErrDuplicateActiveAttempt, gin.H{"attempt_id": attempt.ID})
			return
		}
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{
		"attempt": h.attemptService.View(attempt),
		"resumed": resumed,
	})
}

// ListAttempts godoc
// GET /api/v1/student/attempts
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.List(c.Request.Context(), studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if attempts == nil {
		attempts = []model.AttemptSummary{}
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns the frozen snapshot without correctness. Finalized attempts also
// carry their stored result.
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := attemptIDParam(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID, service.Viewer{StudentID: studentID})
	if err != nil {
		h.fail(c, err)
		return
	}

	data := gin.H{"attempt": h.attemptService.View(attempt)}
	if attempt.Status.Terminal() {
		data["result"] = model.ResultFromAttempt(attempt)
	}
	response.Success(c, http.StatusOK, data)
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Scores the payload against the frozen snapshot exactly once.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := attemptIDParam(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, studentID, req.Responses)
	if err != nil {
		if result != nil {
			status, code := classify(err)
			response.FailWithData(c, status, code, gin.H{"result": result})
			return
		}
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetReview godoc
// GET /api/v1/student/attempts/:attempt_id/review?include_empty=true
func (h *AttemptHandler) GetReview(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	h.review(c, service.Viewer{StudentID: studentID})
}

// ExportReview godoc
// GET /api/v1/student/attempts/:attempt_id/export?format=csv|pdf|xlsx
func (h *AttemptHandler) ExportReview(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	h.export(c, service.Viewer{StudentID: studentID})
}

func (h *AttemptHandler) review(c *gin.Context, viewer service.Viewer) {
	attemptID, ok := attemptIDParam(c)
	if !ok {
		return
	}

	doc, err := h.attemptService.Review(c.Request.Context(), attemptID, viewer, reviewOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"review": doc})
}

func (h *AttemptHandler) export(c *gin.Context, viewer service.Viewer) {
	attemptID, ok := attemptIDParam(c)
	if !ok {
		return
	}

	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFormat)
		return
	}

	artifact, err := h.attemptService.Export(c.Request.Context(), attemptID, viewer, format, reviewOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.FileName))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Body)
}

// fail writes the envelope for a service error, logging unexpected ones.
func (h *AttemptHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", response.RequestID(c)).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}

func attemptIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func reviewOptions(c *gin.Context) engine.ReviewOptions {
	include, _ := strconv.ParseBool(c.Query("include_empty"))
	return engine.ReviewOptions{IncludeEmptySections: include}
}
