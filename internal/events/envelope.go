package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of an event.
type Envelope struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq,omitempty"`
	Namespace Namespace       `json:"namespace"`
	Event     Name            `json:"event"`
	Room      string          `json:"room"`
	Sender    string          `json:"sender"`
	At        time.Time       `json:"at"`
	Data      json.RawMessage `json:"data"`
}

// Route returns the namespace and room an event belongs to.
func Route(e Event) (Namespace, string) {
	switch ev := e.(type) {
	case SessionEvent:
		return NamespaceSessions, ev.SessionRef()
	default:
		return NamespaceReviews, ReviewsRoom
	}
}

// Wrap encodes e into an envelope with a fresh id.
func Wrap(sender string, at time.Time, e Event) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", e.Name(), err)
	}

	ns, room := Route(e)
	return Envelope{
		ID:        uuid.NewString(),
		Namespace: ns,
		Event:     e.Name(),
		Room:      room,
		Sender:    sender,
		At:        at.UTC(),
		Data:      data,
	}, nil
}

// Decode turns an envelope into its typed event and validates the payload.
func Decode(env Envelope) (Event, error) {
	var (
		e   Event
		err error
	)

	switch env.Event {
	case ReviewCreated:
		e, err = decodeAs[ReviewCreatedEvent](env.Data)
	case ReviewUpdated:
		e, err = decodeAs[ReviewUpdatedEvent](env.Data)
	case ReviewApproved:
		e, err = decodeAs[ReviewApprovedEvent](env.Data)
	case ReviewRejected:
		e, err = decodeAs[ReviewRejectedEvent](env.Data)
	case ReviewChangesRequested:
		e, err = decodeAs[ReviewChangesRequestedEvent](env.Data)
	case ReviewMerged:
		e, err = decodeAs[ReviewMergedEvent](env.Data)
	case ReviewClosed:
		e, err = decodeAs[ReviewClosedEvent](env.Data)
	case ReviewComment:
		e, err = decodeAs[ReviewCommentEvent](env.Data)
	case CommentReply:
		e, err = decodeAs[CommentReplyEvent](env.Data)
	case CommentResolved:
		e, err = decodeAs[CommentResolvedEvent](env.Data)
	case LineComment:
		e, err = decodeAs[LineCommentEvent](env.Data)
	case ChecklistUpdated:
		e, err = decodeAs[ChecklistUpdatedEvent](env.Data)
	case SessionCreated:
		e, err = decodeAs[SessionCreatedEvent](env.Data)
	case SessionJoined:
		e, err = decodeAs[SessionJoinedEvent](env.Data)
	case SessionLeft:
		e, err = decodeAs[SessionLeftEvent](env.Data)
	case ParticipantRemoved:
		e, err = decodeAs[ParticipantRemovedEvent](env.Data)
	case RoleChanged:
		e, err = decodeAs[RoleChangedEvent](env.Data)
	case DeviceUpdated:
		e, err = decodeAs[DeviceUpdatedEvent](env.Data)
	case SessionStatusChanged:
		e, err = decodeAs[SessionStatusChangedEvent](env.Data)
	case SessionRecordingStarted:
		e, err = decodeAs[RecordingStartedEvent](env.Data)
	case SessionRecordingStopped:
		e, err = decodeAs[RecordingStoppedEvent](env.Data)
	case InvitationSent:
		e, err = decodeAs[InvitationSentEvent](env.Data)
	case InvitationResponded:
		e, err = decodeAs[InvitationRespondedEvent](env.Data)
	case TypingStart:
		e, err = decodeAs[TypingStartEvent](env.Data)
	case TypingStop:
		e, err = decodeAs[TypingStopEvent](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, err
	}

	if ns, room := Route(e); (env.Namespace != "" && env.Namespace != ns) || (env.Room != "" && env.Room != room) {
		return nil, fmt.Errorf("%w: %s routed to %s/%s", ErrInvalidPayload, env.Event, env.Namespace, env.Room)
	}
	return e, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var e T
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, e.Name(), err)
	}
	return e, nil
}
