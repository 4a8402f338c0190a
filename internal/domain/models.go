package domain

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrTitleRequired      = errors.New("title is required")
	ErrNameRequired       = errors.New("name is required")
	ErrAuthorRequired     = errors.New("author is required")
	ErrInvalidReviewType  = errors.New("invalid review type")
	ErrInvalidPriority    = errors.New("invalid priority")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrDuplicateReviewer  = errors.New("reviewer listed twice")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownTemplate    = errors.New("unknown session template")
	ErrInvalidRole        = errors.New("invalid participant role")
	ErrHostRequired       = errors.New("session requires exactly one host")
	ErrSessionFull        = errors.New("session is full")
	ErrGuestsNotAllowed   = errors.New("guests are not allowed in this session")
	ErrWrongPassword      = errors.New("wrong session password")
	ErrInvalidCapacity    = errors.New("max participants must be positive")
	ErrInvalidInvitation  = errors.New("invalid invitation")
	ErrInvalidLineComment = errors.New("line number must be positive")
)

// UserRef identifies a user by id and display name.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}
