package service

import (
	"fmt"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

// authorize checks the sender against the session it targets. Events for
// unknown sessions pass so the reducer can reject them.
func authorize(state projection.State, sender string, e events.Event) error {
	if sender == SystemSender {
		return nil
	}

	switch ev := e.(type) {
	case events.RoleChangedEvent, events.ParticipantRemovedEvent,
		events.RecordingStartedEvent, events.RecordingStoppedEvent,
		events.SessionStatusChangedEvent, events.InvitationSentEvent:
		return requireHost(state, sender, ev.(events.SessionEvent))

	case events.InvitationRespondedEvent:
		switch ev.Status {
		case domain.InvitationRevoked:
			return requireHost(state, sender, ev)
		case domain.InvitationExpired:
			return fmt.Errorf("%w: only the expiry sweep expires invitations", ErrForbidden)
		}

	case events.SessionCreatedEvent:
		if host, ok := ev.Session.Host(); ok && host.ID != sender {
			return fmt.Errorf("%w: %s cannot create a session hosted by someone else", ErrForbidden, sender)
		}
	case events.SessionJoinedEvent:
		return requireSelf(sender, ev.Participant.ID)
	case events.SessionLeftEvent:
		return requireSelf(sender, ev.UserID)
	case events.DeviceUpdatedEvent:
		return requireSelf(sender, ev.UserID)
	case events.TypingStartEvent:
		return requireSelf(sender, ev.UserID)
	case events.TypingStopEvent:
		return requireSelf(sender, ev.UserID)
	}
	return nil
}

func requireHost(state projection.State, sender string, e events.SessionEvent) error {
	ss, ok := state.Session(e.SessionRef())
	if !ok {
		return nil
	}
	if !ss.IsHost(sender) {
		return fmt.Errorf("%w: %s is not the host of session %s", ErrForbidden, sender, ss.ID)
	}
	return nil
}

func requireSelf(sender, userID string) error {
	if sender != userID {
		return fmt.Errorf("%w: %s cannot act for %s", ErrForbidden, sender, userID)
	}
	return nil
}
