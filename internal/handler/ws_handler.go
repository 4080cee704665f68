package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/middleware"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stemsi/exstem-delivery/internal/response"
	"github.com/stemsi/exstem-delivery/internal/service"
	"github.com/stemsi/exstem-delivery/internal/validator"
	ws "github.com/stemsi/exstem-delivery/internal/websocket"
)

const wsOpTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams autosave and submit for one running attempt.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:attempt_id/stream?token=...
// Upgrades to WebSocket for autosave, ping and submit.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	studentID := middleware.GetSubject(c)
	if studentID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, ok := attemptIDParam(c)
	if !ok {
		return
	}

	// Ownership and liveness are checked before the upgrade so failures come
	// back as regular HTTP errors.
	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID, service.Viewer{StudentID: studentID})
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}
	switch attempt.Status {
	case model.AttemptStatusSubmitted:
		response.Fail(c, http.StatusConflict, response.ErrAttemptAlreadyFinalized)
		return
	case model.AttemptStatusExpired:
		response.Fail(c, http.StatusGone, response.ErrAttemptExpired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", studentID).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		action, frame, err := ws.ReadFrame(conn)
		if errors.Is(err, ws.ErrMalformedFrame) {
			ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
			continue
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, attempt, frame)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, attempt, frame) {
				return
			}
		case ws.ActionPing:
			remaining := time.Until(attempt.ExpiresAt).Seconds()
			if remaining < 0 {
				remaining = 0
			}
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, Remaining: remaining})
		default:
			wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(action))
		}
	}
}

// handleAutosave buffers a single response as a server-side draft.
func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, attempt *model.Attempt, frame []byte) {
	var req ws.AutosaveRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return
	}
	if fields := validator.Struct(&req.Response); fields != nil {
		ws.WriteTyped(conn, ws.ErrorResponse{
			Event:  ws.EventError,
			Code:   string(response.ErrValidation),
			Error:  response.GetMessage(response.ErrValidation),
			Fields: fields,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	if err := h.attemptService.SaveDraft(ctx, attempt.ID, attempt.StudentID, req.Response.Submitted()); err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Autosave failed")
		}
		ws.WriteError(conn, string(code), response.GetMessage(code))
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, InstanceKey: req.Response.InstanceKey})
}

// handleSubmit finalizes the attempt. It reports whether the stream is done.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, attempt *model.Attempt, frame []byte) bool {
	var req ws.SubmitRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
		return false
	}
	if fields := validator.Struct(&req); fields != nil {
		ws.WriteTyped(conn, ws.ErrorResponse{
			Event:  ws.EventError,
			Code:   string(response.ErrValidation),
			Error:  response.GetMessage(response.ErrValidation),
			Fields: fields,
		})
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	result, err := h.attemptService.Submit(ctx, attempt.ID, attempt.StudentID, req.Responses)
	if result == nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			wsLog.Error().Err(err).Msg("Submit failed")
		}
		ws.WriteError(conn, string(code), response.GetMessage(code))
		return false
	}

	msg := ws.SubmittedResponse{Event: ws.EventSubmitted, Result: *result}
	if err != nil {
		_, code := classify(err)
		msg.Error = string(code)
	}
	ws.WriteTyped(conn, msg)
	return true
}
