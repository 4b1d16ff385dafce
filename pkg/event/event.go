package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var ErrEventNotFound = errors.New("event not found")

// Column widths of the events table.
const (
	MaxTitleLength = 200
	MaxOwnerLength = 64
)

// ValidationError reports a field value that cannot be persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

type Event struct {
	ID          int64
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	// Owner is the external chat identity of the user who created the event, nil for unowned events.
	Owner *string
}

// Patch holds the fields of a partial update; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.StartTime == nil && p.EndTime == nil
}

// Apply returns a copy of e with the patch fields applied.
func (e Event) Apply(p Patch) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	return e
}

// Validate checks the invariants every stored event must satisfy.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return newValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(e.Title) > MaxTitleLength {
		return newValidationError("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	if e.Owner != nil && utf8.RuneCountInString(*e.Owner) > MaxOwnerLength {
		return newValidationError("telegram_user_id", fmt.Sprintf("telegram_user_id must be at most %d characters", MaxOwnerLength))
	}
	if e.StartTime.IsZero() {
		return newValidationError("start_time", "start_time is required")
	}
	if e.EndTime.IsZero() {
		return newValidationError("end_time", "end_time is required")
	}
	if !e.EndTime.After(e.StartTime) {
		return newValidationError("end_time", "end_time must be after start_time")
	}
	return nil
}

func (e Event) IsOwnedBy(owner string) bool {
	return e.Owner != nil && *e.Owner == owner
}
