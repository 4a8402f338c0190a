// Package projection folds collaboration events into an in-memory view of
// reviews and sessions. Apply is pure: it never changes the State it is given
// and replaces touched collections whole.
package projection

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

var (
	ErrUnknownReview        = errors.New("unknown review")
	ErrUnknownSession       = errors.New("unknown session")
	ErrUnknownComment       = errors.New("unknown comment")
	ErrUnknownFile          = errors.New("unknown file")
	ErrUnknownChecklistItem = errors.New("unknown checklist item")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrUnknownRecording     = errors.New("unknown recording")
	ErrUnknownInvitation    = errors.New("unknown invitation")
	ErrDuplicateEntity      = errors.New("entity already exists")
	ErrSessionEnded         = errors.New("session has ended")
)

// IsUnknownEntity reports whether err means the event referenced an id the
// state does not hold.
func IsUnknownEntity(err error) bool {
	return errors.Is(err, ErrUnknownReview) ||
		errors.Is(err, ErrUnknownSession) ||
		errors.Is(err, ErrUnknownComment) ||
		errors.Is(err, ErrUnknownFile) ||
		errors.Is(err, ErrUnknownChecklistItem) ||
		errors.Is(err, ErrUnknownParticipant) ||
		errors.Is(err, ErrUnknownRecording) ||
		errors.Is(err, ErrUnknownInvitation)
}

type State struct {
	Reviews  []domain.Review
	Sessions []domain.Session
	// Typing holds the users currently typing, per session.
	Typing map[string][]string
}

// Meta carries the envelope fields the reducer needs.
type Meta struct {
	ID     string
	At     time.Time
	Sender string
}

func MetaOf(env events.Envelope) Meta {
	return Meta{ID: env.ID, At: env.At, Sender: env.Sender}
}

// Apply returns the state after e. On error the returned state is s.
func Apply(s State, m Meta, e events.Event) (State, error) {
	switch ev := e.(type) {
	case events.ReviewCreatedEvent:
		return applyReviewCreated(s, m, ev)
	case events.ReviewUpdatedEvent:
		return applyReviewUpdated(s, m, ev)
	case events.ReviewApprovedEvent:
		return applyDecision(s, m, ev.ReviewDecisionEvent, domain.ReviewStatusApproved, domain.DecisionApproved)
	case events.ReviewRejectedEvent:
		return applyDecision(s, m, ev.ReviewDecisionEvent, domain.ReviewStatusRejected, domain.DecisionRejected)
	case events.ReviewChangesRequestedEvent:
		return applyDecision(s, m, ev.ReviewDecisionEvent, domain.ReviewStatusChangesRequested, domain.DecisionChangesRequested)
	case events.ReviewMergedEvent:
		return applyDecision(s, m, ev.ReviewDecisionEvent, domain.ReviewStatusMerged, "")
	case events.ReviewClosedEvent:
		return applyDecision(s, m, ev.ReviewDecisionEvent, domain.ReviewStatusClosed, "")
	case events.ReviewCommentEvent:
		return applyComment(s, m, ev)
	case events.CommentReplyEvent:
		return applyReply(s, m, ev)
	case events.CommentResolvedEvent:
		return applyResolve(s, m, ev)
	case events.LineCommentEvent:
		return applyLineComment(s, m, ev)
	case events.ChecklistUpdatedEvent:
		return applyChecklist(s, m, ev)
	case events.SessionCreatedEvent:
		return applySessionCreated(s, m, ev)
	case events.SessionJoinedEvent:
		return applyJoined(s, m, ev)
	case events.SessionLeftEvent:
		return applyLeft(s, m, ev.Name(), ev.SessionID, ev.UserID, "left")
	case events.ParticipantRemovedEvent:
		return applyRemoved(s, m, ev)
	case events.RoleChangedEvent:
		return applyRoleChanged(s, m, ev)
	case events.DeviceUpdatedEvent:
		return applyDeviceUpdated(s, m, ev)
	case events.SessionStatusChangedEvent:
		return applySessionStatus(s, m, ev)
	case events.RecordingStartedEvent:
		return applyRecordingStarted(s, m, ev)
	case events.RecordingStoppedEvent:
		return applyRecordingStopped(s, m, ev)
	case events.InvitationSentEvent:
		return applyInvitationSent(s, m, ev)
	case events.InvitationRespondedEvent:
		return applyInvitationResponded(s, m, ev)
	case events.TypingStartEvent:
		return applyTyping(s, ev.SessionID, ev.UserID, true)
	case events.TypingStopEvent:
		return applyTyping(s, ev.SessionID, ev.UserID, false)
	default:
		return s, fmt.Errorf("%w: %T", events.ErrUnknownEvent, e)
	}
}

// Fold applies envelopes in order and stops at the first decode error.
// Envelopes the reducer rejects are skipped and returned alongside.
func Fold(s State, envs []events.Envelope) (State, []error, error) {
	var rejected []error
	for _, env := range envs {
		e, err := events.Decode(env)
		if err != nil {
			return s, rejected, fmt.Errorf("decode event %s: %w", env.ID, err)
		}
		next, err := Apply(s, MetaOf(env), e)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("event %s (%s): %w", env.ID, env.Event, err))
			continue
		}
		s = next
	}
	return s, rejected, nil
}

func (s State) reviewIndex(id string) int {
	return slices.IndexFunc(s.Reviews, func(r domain.Review) bool { return r.ID == id })
}

func (s State) sessionIndex(id string) int {
	return slices.IndexFunc(s.Sessions, func(ss domain.Session) bool { return ss.ID == id })
}

// updateReview clones the review, lets fn change it and swaps it in. fn
// reports whether anything changed; unchanged reviews keep their UpdatedAt.
func updateReview(s State, m Meta, id string, fn func(r *domain.Review) (bool, error)) (State, error) {
	i := s.reviewIndex(id)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrUnknownReview, id)
	}

	r := s.Reviews[i].Clone()
	changed, err := fn(&r)
	if err != nil {
		return s, err
	}
	if !changed {
		return s, nil
	}
	r.UpdatedAt = m.At

	reviews := slices.Clone(s.Reviews)
	reviews[i] = r
	s.Reviews = reviews
	return s, nil
}

// updateSession is updateReview for sessions. fn returns the activity message
// to log; an empty message means nothing changed.
func updateSession(s State, m Meta, kind events.Name, id string, fn func(ss *domain.Session) (string, error)) (State, error) {
	i := s.sessionIndex(id)
	if i < 0 {
		return s, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	ss := s.Sessions[i].Clone()
	activity, err := fn(&ss)
	if err != nil {
		return s, err
	}
	if activity == "" {
		return s, nil
	}
	ss.UpdatedAt = m.At
	ss.ActivityLog = domain.AppendActivity(ss.ActivityLog, domain.Activity{
		ID:      m.ID,
		Kind:    string(kind),
		UserID:  m.Sender,
		Message: activity,
		At:      m.At,
	})

	sessions := slices.Clone(s.Sessions)
	sessions[i] = ss
	s.Sessions = sessions
	return s, nil
}
