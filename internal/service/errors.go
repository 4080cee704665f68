package service

import (
	"errors"

	"github.com/stemsi/exstem-delivery/internal/export"
)

// Domain errors.
var (
	ErrTemplateNotFound        = errors.New("template not found or inactive")
	ErrQuestionNotFound        = errors.New("template references a missing question")
	ErrDuplicateActiveAttempt  = errors.New("an attempt for this template is already in progress")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadyFinalized = errors.New("attempt is already finalized")
	ErrAttemptExpired          = errors.New("attempt time window has closed")
	ErrAttemptInProgress       = errors.New("attempt is still in progress")
	ErrUnknownInstance         = errors.New("instance key is not part of this attempt")
	ErrUnsupportedFormat       = export.ErrUnsupportedFormat
)
