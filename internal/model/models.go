// Package model defines shared data structures for the gig service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// WageType mirrors the wage_type column of the jobs table.
type WageType string

const (
	WagePerDay  WageType = "per_day"
	WagePerHour WageType = "per_hour"
)

// ParseWageType converts a raw string to a WageType, returning an error for
// unknown values.
func ParseWageType(s string) (WageType, error) {
	wt := WageType(s)
	switch wt {
	case WagePerDay, WagePerHour:
		return wt, nil
	}
	return "", fmt.Errorf("unknown wage type %q", s)
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	StatusOpen      ListingStatus = "open"
	StatusCompleted ListingStatus = "completed"
)

// Rating bounds.
const (
	MinScore         = 1
	MaxScore         = 5
	MinCommentLength = 20
)

// Listing is one posted job. Optional columns are pointers so that "absent"
// and "zero" stay distinguishable (a listing with WorkersNeeded == 0 refuses
// applications, one without the field does not).
type Listing struct {
	ID            string        `json:"id"`
	PosterID      string        `json:"poster_id"`
	City          string        `json:"city"`
	Address       string        `json:"address"`
	Description   string        `json:"description"`
	Wage          float64       `json:"wage"`
	WageType      WageType      `json:"wage_type"`
	CreatedAt     time.Time     `json:"created_at"`
	UserEmail     string        `json:"user_email"`
	UserPhone     string        `json:"user_phone"`
	WorkersNeeded *int          `json:"workers_needed,omitempty"`
	Lat           *float64      `json:"lat,omitempty"`
	Lng           *float64      `json:"lng,omitempty"`
	DateFrom      *time.Time    `json:"date_from,omitempty"`
	DateTo        *time.Time    `json:"date_to,omitempty"`
	HoursPerDay   *float64      `json:"hours_per_day,omitempty"`
	Applicants    []string      `json:"applicants"`
	Status        ListingStatus `json:"status"`
}

// HasApplicant reports whether name is already in the applicant set.
func (l *Listing) HasApplicant(name string) bool {
	for _, a := range l.Applicants {
		if a == name {
			return true
		}
	}
	return false
}

// Message is one chat line within a job-scoped conversation.
type Message struct {
	ID         string    `json:"id"`
	JobID      string    `json:"job_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rating is one completed evaluation of a counterpart.
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"` // rated user
	RaterID   string    `json:"rater_id"`
	Score     int       `json:"score"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile mirrors the profiles table. ShouldRate and PendingRaterID gate the
// rating workflow for the user this profile belongs to.
type Profile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
	ShouldRate     bool   `json:"should_rate"`
	PendingRaterID string `json:"pending_rater_id,omitempty"`
}

// Identity is the session user as reported by the auth provider.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// ApplicantName is the name recorded in a listing's applicant set: the
// display name, or the email when the user has none.
func (id Identity) ApplicantName() string {
	if n := strings.TrimSpace(id.DisplayName); n != "" {
		return n
	}
	return strings.TrimSpace(id.Email)
}
