package model

// AutosaveResponse is a single autosaved answer. Unlike submit entries it
// must name a well-formed instance key.
type AutosaveResponse struct {
	InstanceKey     string   `json:"instance_key" binding:"required,instancekey"`
	Selected        []string `json:"selected" binding:"omitempty,max=32,dive,max=64"`
	TimeSpent       int      `json:"time_spent" binding:"min=0"`
	Flagged         bool     `json:"flagged"`
	MarkedForReview bool     `json:"marked_for_review"`
}

// Submitted converts the autosave into the submit entry form stored as a draft.
func (r AutosaveResponse) Submitted() SubmittedResponse {
	return SubmittedResponse{
		InstanceKey:     r.InstanceKey,
		Selected:        r.Selected,
		TimeSpent:       r.TimeSpent,
		Flagged:         r.Flagged,
		MarkedForReview: r.MarkedForReview,
	}
}

// DraftEntry is one autosaved response as queued for durable persistence.
// SavedAt is in Unix milliseconds; an older entry never overwrites a newer one.
type DraftEntry struct {
	AttemptID   string            `json:"attempt_id"`
	InstanceKey string            `json:"instance_key"`
	Response    SubmittedResponse `json:"response"`
	SavedAt     int64             `json:"saved_at"`
}
