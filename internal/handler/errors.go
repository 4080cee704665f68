package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-delivery/internal/response"
	"github.com/stemsi/exstem-delivery/internal/service"
)

// serviceErrors maps domain errors to their HTTP status and envelope code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrTemplateNotFound, http.StatusNotFound, response.ErrTemplateNotFound},
	{service.ErrQuestionNotFound, http.StatusUnprocessableEntity, response.ErrQuestionNotFound},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrDuplicateActiveAttempt, http.StatusConflict, response.ErrDuplicateActiveAttempt},
	{service.ErrAttemptAlreadyFinalized, http.StatusConflict, response.ErrAttemptAlreadyFinalized},
	{service.ErrAttemptExpired, http.StatusGone, response.ErrAttemptExpired},
	{service.ErrAttemptInProgress, http.StatusConflict, response.ErrAttemptInProgress},
	{service.ErrUnknownInstance, http.StatusUnprocessableEntity, response.ErrUnknownInstance},
	{service.ErrUnsupportedFormat, http.StatusBadRequest, response.ErrUnsupportedFormat},
}

// classify returns the status and code for err, falling back to 500.
func classify(err error) (int, response.ErrCode) {
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}
