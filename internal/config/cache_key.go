package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TemplateBundleKey returns the cache key for a template with its resolved questions
func (r *CacheKeyStruct) TemplateBundleKey(templateID string) string {
	return fmt.Sprintf("template:%s:bundle", templateID)
}

// AttemptDraftsKey returns the hash key holding an attempt's autosaved responses
func (r *CacheKeyStruct) AttemptDraftsKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:drafts", attemptID)
}

// RateLimitKey returns the fixed-window counter key for a subject and action
func (r *CacheKeyStruct) RateLimitKey(action, subject string, window int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", action, subject, window)
}

// TemplateResultChannel returns the Redis PubSub channel name for a template's results
func (r *CacheKeyStruct) TemplateResultChannel(templateID string) string {
	return fmt.Sprintf("template:%s:results", templateID)
}

var CacheKey = NewCacheKeyStruct()
