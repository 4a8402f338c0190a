// Package events defines the closed set of events exchanged over the
// collaboration channel. Every variant implements Event; the unexported
// marker method keeps the set closed to this package.
package events

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Name is the wire name of an event.
type Name string

const (
	ReviewCreated          Name = "review-created"
	ReviewUpdated          Name = "review-updated"
	ReviewApproved         Name = "review-approved"
	ReviewRejected         Name = "review-rejected"
	ReviewChangesRequested Name = "review-changes-requested"
	ReviewMerged           Name = "review-merged"
	ReviewClosed           Name = "review-closed"
	ReviewComment          Name = "review-comment"
	CommentReply           Name = "comment-reply"
	CommentResolved        Name = "comment-resolved"
	LineComment            Name = "line-comment"
	ChecklistUpdated       Name = "checklist-updated"

	SessionCreated          Name = "session-created"
	SessionJoined           Name = "session-joined"
	SessionLeft             Name = "session-left"
	ParticipantRemoved      Name = "participant-removed"
	RoleChanged             Name = "role-changed"
	DeviceUpdated           Name = "device-updated"
	SessionStatusChanged    Name = "session-status-changed"
	SessionRecordingStarted Name = "session-recording-started"
	SessionRecordingStopped Name = "session-recording-stopped"
	InvitationSent          Name = "invitation-sent"
	InvitationResponded     Name = "invitation-responded"
	TypingStart             Name = "typing-start"
	TypingStop              Name = "typing-stop"
)

// Names lists every known event name.
var Names = []Name{
	ReviewCreated, ReviewUpdated, ReviewApproved, ReviewRejected, ReviewChangesRequested,
	ReviewMerged, ReviewClosed, ReviewComment, CommentReply, CommentResolved, LineComment,
	ChecklistUpdated,
	SessionCreated, SessionJoined, SessionLeft, ParticipantRemoved, RoleChanged, DeviceUpdated,
	SessionStatusChanged, SessionRecordingStarted, SessionRecordingStopped, InvitationSent,
	InvitationResponded, TypingStart, TypingStop,
}

// Ephemeral events drive UI affordances only and are never persisted.
func (n Name) Ephemeral() bool {
	return n == TypingStart || n == TypingStop
}

type Namespace string

const (
	NamespaceReviews  Namespace = "reviews"
	NamespaceSessions Namespace = "sessions"
)

// ReviewsRoom is the room every review event is broadcast to.
const ReviewsRoom = "reviews"

type Event interface {
	Name() Name
	Validate() error
	isEvent()
}

// ReviewEvent targets a single review.
type ReviewEvent interface {
	Event
	ReviewRef() string
}

// SessionEvent targets a single session.
type SessionEvent interface {
	Event
	SessionRef() string
}

// Review events.

type ReviewCreatedEvent struct {
	Review domain.Review `json:"review"`
}

type ReviewUpdatedEvent struct {
	Review domain.Review `json:"review"`
}

// ReviewDecisionEvent is the payload shared by approve, reject,
// request-changes, merge and close.
type ReviewDecisionEvent struct {
	ReviewID string `json:"reviewId"`
	Username string `json:"username"`
}

type ReviewApprovedEvent struct{ ReviewDecisionEvent }
type ReviewRejectedEvent struct{ ReviewDecisionEvent }
type ReviewChangesRequestedEvent struct{ ReviewDecisionEvent }
type ReviewMergedEvent struct{ ReviewDecisionEvent }
type ReviewClosedEvent struct{ ReviewDecisionEvent }

type ReviewCommentEvent struct {
	ReviewID string         `json:"reviewId"`
	Comment  domain.Comment `json:"comment"`
}

type CommentReplyEvent struct {
	ReviewID  string       `json:"reviewId"`
	CommentID string       `json:"commentId"`
	Reply     domain.Reply `json:"reply"`
}

type CommentResolvedEvent struct {
	ReviewID  string `json:"reviewId"`
	CommentID string `json:"commentId"`
	Username  string `json:"username"`
}

type LineCommentEvent struct {
	ReviewID string             `json:"reviewId"`
	FileID   string             `json:"fileId"`
	Comment  domain.LineComment `json:"comment"`
}

type ChecklistUpdatedEvent struct {
	ReviewID string                 `json:"reviewId"`
	ItemID   string                 `json:"itemId"`
	Updates  domain.ChecklistUpdate `json:"updates"`
}

// Session events.

type SessionCreatedEvent struct {
	Session domain.Session `json:"session"`
}

type SessionJoinedEvent struct {
	SessionID   string             `json:"sessionId"`
	Participant domain.Participant `json:"participant"`
}

type SessionLeftEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type ParticipantRemovedEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

type RoleChangedEvent struct {
	SessionID string      `json:"sessionId"`
	UserID    string      `json:"userId"`
	Role      domain.Role `json:"role"`
	Username  string      `json:"username"`
}

type DeviceUpdatedEvent struct {
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Devices   domain.Devices `json:"devices"`
}

type SessionStatusChangedEvent struct {
	SessionID string               `json:"sessionId"`
	Status    domain.SessionStatus `json:"status"`
}

type RecordingStartedEvent struct {
	SessionID string           `json:"sessionId"`
	Recording domain.Recording `json:"recording"`
}

type RecordingStoppedEvent struct {
	SessionID   string    `json:"sessionId"`
	RecordingID string    `json:"recordingId"`
	EndedAt     time.Time `json:"endedAt"`
}

type InvitationSentEvent struct {
	SessionID  string            `json:"sessionId"`
	Invitation domain.Invitation `json:"invitation"`
}

type InvitationRespondedEvent struct {
	SessionID    string                  `json:"sessionId"`
	InvitationID string                  `json:"invitationId"`
	Status       domain.InvitationStatus `json:"status"`
}

type TypingEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type TypingStartEvent struct{ TypingEvent }
type TypingStopEvent struct{ TypingEvent }

func (ReviewCreatedEvent) isEvent()          {}
func (ReviewUpdatedEvent) isEvent()          {}
func (ReviewApprovedEvent) isEvent()         {}
func (ReviewRejectedEvent) isEvent()         {}
func (ReviewChangesRequestedEvent) isEvent() {}
func (ReviewMergedEvent) isEvent()           {}
func (ReviewClosedEvent) isEvent()           {}
func (ReviewCommentEvent) isEvent()          {}
func (CommentReplyEvent) isEvent()           {}
func (CommentResolvedEvent) isEvent()        {}
func (LineCommentEvent) isEvent()            {}
func (ChecklistUpdatedEvent) isEvent()       {}
func (SessionCreatedEvent) isEvent()         {}
func (SessionJoinedEvent) isEvent()          {}
func (SessionLeftEvent) isEvent()            {}
func (ParticipantRemovedEvent) isEvent()     {}
func (RoleChangedEvent) isEvent()            {}
func (DeviceUpdatedEvent) isEvent()          {}
func (SessionStatusChangedEvent) isEvent()   {}
func (RecordingStartedEvent) isEvent()       {}
func (RecordingStoppedEvent) isEvent()       {}
func (InvitationSentEvent) isEvent()         {}
func (InvitationRespondedEvent) isEvent()    {}
func (TypingStartEvent) isEvent()            {}
func (TypingStopEvent) isEvent()             {}

func (ReviewCreatedEvent) Name() Name          { return ReviewCreated }
func (ReviewUpdatedEvent) Name() Name          { return ReviewUpdated }
func (ReviewApprovedEvent) Name() Name         { return ReviewApproved }
func (ReviewRejectedEvent) Name() Name         { return ReviewRejected }
func (ReviewChangesRequestedEvent) Name() Name { return ReviewChangesRequested }
func (ReviewMergedEvent) Name() Name           { return ReviewMerged }
func (ReviewClosedEvent) Name() Name           { return ReviewClosed }
func (ReviewCommentEvent) Name() Name          { return ReviewComment }
func (CommentReplyEvent) Name() Name           { return CommentReply }
func (CommentResolvedEvent) Name() Name        { return CommentResolved }
func (LineCommentEvent) Name() Name            { return LineComment }
func (ChecklistUpdatedEvent) Name() Name       { return ChecklistUpdated }
func (SessionCreatedEvent) Name() Name         { return SessionCreated }
func (SessionJoinedEvent) Name() Name          { return SessionJoined }
func (SessionLeftEvent) Name() Name            { return SessionLeft }
func (ParticipantRemovedEvent) Name() Name     { return ParticipantRemoved }
func (RoleChangedEvent) Name() Name            { return RoleChanged }
func (DeviceUpdatedEvent) Name() Name          { return DeviceUpdated }
func (SessionStatusChangedEvent) Name() Name   { return SessionStatusChanged }
func (RecordingStartedEvent) Name() Name       { return SessionRecordingStarted }
func (RecordingStoppedEvent) Name() Name       { return SessionRecordingStopped }
func (InvitationSentEvent) Name() Name         { return InvitationSent }
func (InvitationRespondedEvent) Name() Name    { return InvitationResponded }
func (TypingStartEvent) Name() Name            { return TypingStart }
func (TypingStopEvent) Name() Name             { return TypingStop }

func (e ReviewCreatedEvent) ReviewRef() string    { return e.Review.ID }
func (e ReviewUpdatedEvent) ReviewRef() string    { return e.Review.ID }
func (e ReviewDecisionEvent) ReviewRef() string   { return e.ReviewID }
func (e ReviewCommentEvent) ReviewRef() string    { return e.ReviewID }
func (e CommentReplyEvent) ReviewRef() string     { return e.ReviewID }
func (e CommentResolvedEvent) ReviewRef() string  { return e.ReviewID }
func (e LineCommentEvent) ReviewRef() string      { return e.ReviewID }
func (e ChecklistUpdatedEvent) ReviewRef() string { return e.ReviewID }

func (e SessionCreatedEvent) SessionRef() string       { return e.Session.ID }
func (e SessionJoinedEvent) SessionRef() string        { return e.SessionID }
func (e SessionLeftEvent) SessionRef() string          { return e.SessionID }
func (e ParticipantRemovedEvent) SessionRef() string   { return e.SessionID }
func (e RoleChangedEvent) SessionRef() string          { return e.SessionID }
func (e DeviceUpdatedEvent) SessionRef() string        { return e.SessionID }
func (e SessionStatusChangedEvent) SessionRef() string { return e.SessionID }
func (e RecordingStartedEvent) SessionRef() string     { return e.SessionID }
func (e RecordingStoppedEvent) SessionRef() string     { return e.SessionID }
func (e InvitationSentEvent) SessionRef() string       { return e.SessionID }
func (e InvitationRespondedEvent) SessionRef() string  { return e.SessionID }
func (e TypingEvent) SessionRef() string               { return e.SessionID }

func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Errorf("%s is required", fields[i])
		}
	}
	return nil
}

func (e ReviewCreatedEvent) Validate() error {
	if err := required("review.id", e.Review.ID); err != nil {
		return err
	}
	return e.Review.Validate()
}

func (e ReviewUpdatedEvent) Validate() error {
	if err := required("review.id", e.Review.ID); err != nil {
		return err
	}
	return e.Review.Validate()
}

func (e ReviewDecisionEvent) Validate() error {
	return required("reviewId", e.ReviewID, "username", e.Username)
}

func (e ReviewCommentEvent) Validate() error {
	return required("reviewId", e.ReviewID, "comment.id", e.Comment.ID, "comment.content", e.Comment.Content)
}

func (e CommentReplyEvent) Validate() error {
	return required("reviewId", e.ReviewID, "commentId", e.CommentID,
		"reply.id", e.Reply.ID, "reply.content", e.Reply.Content)
}

func (e CommentResolvedEvent) Validate() error {
	return required("reviewId", e.ReviewID, "commentId", e.CommentID, "username", e.Username)
}

func (e LineCommentEvent) Validate() error {
	if err := required("reviewId", e.ReviewID, "fileId", e.FileID,
		"comment.id", e.Comment.ID, "comment.content", e.Comment.Content); err != nil {
		return err
	}
	if e.Comment.LineNumber <= 0 {
		return domain.ErrInvalidLineComment
	}
	return nil
}

func (e ChecklistUpdatedEvent) Validate() error {
	if err := required("reviewId", e.ReviewID, "itemId", e.ItemID); err != nil {
		return err
	}
	if e.Updates.Empty() {
		return errors.New("updates are empty")
	}
	return nil
}

func (e SessionCreatedEvent) Validate() error {
	if err := required("session.id", e.Session.ID); err != nil {
		return err
	}
	return e.Session.Validate()
}

func (e SessionJoinedEvent) Validate() error {
	if err := required("sessionId", e.SessionID, "participant.id", e.Participant.ID); err != nil {
		return err
	}
	if !e.Participant.Role.Valid() {
		return domain.ErrInvalidRole
	}
	return nil
}

func (e SessionLeftEvent) Validate() error {
	return required("sessionId", e.SessionID, "userId", e.UserID)
}

func (e ParticipantRemovedEvent) Validate() error {
	return required("sessionId", e.SessionID, "userId", e.UserID)
}

func (e RoleChangedEvent) Validate() error {
	if err := required("sessionId", e.SessionID, "userId", e.UserID); err != nil {
		return err
	}
	if !e.Role.Valid() {
		return domain.ErrInvalidRole
	}
	return nil
}

func (e DeviceUpdatedEvent) Validate() error {
	return required("sessionId", e.SessionID, "userId", e.UserID)
}

func (e SessionStatusChangedEvent) Validate() error {
	if err := required("sessionId", e.SessionID); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return domain.ErrInvalidStatus
	}
	return nil
}

func (e RecordingStartedEvent) Validate() error {
	return required("sessionId", e.SessionID, "recording.id", e.Recording.ID)
}

func (e RecordingStoppedEvent) Validate() error {
	return required("sessionId", e.SessionID, "recordingId", e.RecordingID)
}

func (e InvitationSentEvent) Validate() error {
	if err := required("sessionId", e.SessionID, "invitation.id", e.Invitation.ID,
		"invitation.token", e.Invitation.Token); err != nil {
		return err
	}
	if !strings.Contains(e.Invitation.Email, "@") || !e.Invitation.Role.Valid() {
		return domain.ErrInvalidInvitation
	}
	return nil
}

func (e InvitationRespondedEvent) Validate() error {
	if err := required("sessionId", e.SessionID, "invitationId", e.InvitationID); err != nil {
		return err
	}
	if !e.Status.Valid() || e.Status == domain.InvitationPending {
		return domain.ErrInvalidInvitation
	}
	return nil
}

func (e TypingEvent) Validate() error {
	return required("sessionId", e.SessionID, "userId", e.UserID)
}
