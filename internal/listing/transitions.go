// Package listing implements the job listing lifecycle: browsing with
// filters, posting, applying and completing a job.
//
// Valid status graph:
//
//	open ──► completed
//
// completed is terminal.
package listing

import "quicktasker/gig-service/internal/model"

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.ListingStatus][]model.ListingStatus{
	model.StatusOpen: {model.StatusCompleted},
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to model.ListingStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsCompleted returns true when status is completed (unlocks rating links).
func IsCompleted(s model.ListingStatus) bool { return s == model.StatusCompleted }
