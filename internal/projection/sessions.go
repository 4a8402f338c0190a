package projection

import (
	"fmt"
	"maps"
	"slices"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

func applySessionCreated(s State, m Meta, ev events.SessionCreatedEvent) (State, error) {
	if s.sessionIndex(ev.Session.ID) >= 0 {
		return s, fmt.Errorf("%w: session %s", ErrDuplicateEntity, ev.Session.ID)
	}

	ss := ev.Session.Clone()
	switch ss.Status {
	case domain.SessionStatusPreparing:
		ss.Status = domain.SessionStatusActive
	case domain.SessionStatusActive:
	default:
		return s, fmt.Errorf("%w: session created as %s", domain.ErrInvalidTransition, ss.Status)
	}
	if ss.Participants == nil {
		ss.Participants = []domain.Participant{}
	}
	if ss.Invitations == nil {
		ss.Invitations = []domain.Invitation{}
	}
	if ss.Recordings == nil {
		ss.Recordings = []domain.Recording{}
	}
	if ss.CreatedAt.IsZero() {
		ss.CreatedAt = m.At
	}
	ss.UpdatedAt = m.At
	ss.ActivityLog = domain.AppendActivity(ss.ActivityLog, domain.Activity{
		ID:      m.ID,
		Kind:    string(ev.Name()),
		UserID:  m.Sender,
		Message: fmt.Sprintf("created %s", ss.Name),
		At:      m.At,
	})

	s.Sessions = append(slices.Clone(s.Sessions), ss)
	return s, nil
}

func applyJoined(s State, m Meta, ev events.SessionJoinedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		if ss.Status == domain.SessionStatusEnded {
			return "", ErrSessionEnded
		}

		p := ev.Participant
		if i := ss.ParticipantIndex(p.ID); i >= 0 {
			if ss.Participants[i].Online {
				return "", nil
			}
			ss.Participants[i].Online = true
			ss.Participants[i].Devices = p.Devices
			return fmt.Sprintf("rejoined %s", ss.Participants[i].Username), nil
		}

		if ss.IsFull() {
			return "", domain.ErrSessionFull
		}
		if p.Guest && !ss.AllowGuests {
			return "", domain.ErrGuestsNotAllowed
		}
		if p.Role == domain.RoleHost {
			return "", fmt.Errorf("%w: join as host", domain.ErrHostRequired)
		}
		p.Online = true
		if p.JoinedAt.IsZero() {
			p.JoinedAt = m.At
		}
		ss.Participants = append(ss.Participants, p)
		return fmt.Sprintf("joined %s", p.Username), nil
	})
}

// applyLeft drops the participant. When the host leaves, the earliest
// co-host, or failing that the earliest participant, takes over.
func applyLeft(s State, m Meta, kind events.Name, sessionID, userID, verb string) (State, error) {
	next, err := updateSession(s, m, kind, sessionID, func(ss *domain.Session) (string, error) {
		i := ss.ParticipantIndex(userID)
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownParticipant, userID)
		}

		left := ss.Participants[i]
		ss.Participants = slices.Delete(ss.Participants, i, i+1)
		if left.Role == domain.RoleHost && len(ss.Participants) > 0 {
			heir := slices.IndexFunc(ss.Participants, func(p domain.Participant) bool { return p.Role == domain.RoleCoHost })
			if heir < 0 {
				heir = 0
			}
			ss.Participants[heir].Role = domain.RoleHost
		}
		return fmt.Sprintf("%s %s", verb, left.Username), nil
	})
	if err != nil {
		return s, err
	}
	return withoutTyping(next, sessionID, userID), nil
}

func applyRemoved(s State, m Meta, ev events.ParticipantRemovedEvent) (State, error) {
	i := s.sessionIndex(ev.SessionID)
	if i >= 0 && s.Sessions[i].IsHost(ev.UserID) {
		return s, fmt.Errorf("%w: the host cannot be removed", domain.ErrHostRequired)
	}
	return applyLeft(s, m, ev.Name(), ev.SessionID, ev.UserID, "removed")
}

// applyRoleChanged keeps exactly one host: granting host demotes the current
// host to co-host, and the host cannot give up the role directly.
func applyRoleChanged(s State, m Meta, ev events.RoleChangedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		i := ss.ParticipantIndex(ev.UserID)
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownParticipant, ev.UserID)
		}

		p := &ss.Participants[i]
		if p.Role == ev.Role {
			return "", nil
		}
		if p.Role == domain.RoleHost {
			return "", fmt.Errorf("%w: grant host to someone else first", domain.ErrHostRequired)
		}
		if ev.Role == domain.RoleHost {
			for j := range ss.Participants {
				if ss.Participants[j].Role == domain.RoleHost {
					ss.Participants[j].Role = domain.RoleCoHost
				}
			}
		}
		p.Role = ev.Role
		return fmt.Sprintf("role %s is now %s", p.Username, ev.Role), nil
	})
}

func applyDeviceUpdated(s State, m Meta, ev events.DeviceUpdatedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		i := ss.ParticipantIndex(ev.UserID)
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownParticipant, ev.UserID)
		}
		if ss.Participants[i].Devices == ev.Devices {
			return "", nil
		}
		ss.Participants[i].Devices = ev.Devices
		return fmt.Sprintf("devices %s updated", ss.Participants[i].Username), nil
	})
}

// applySessionStatus handles pause, resume and end. Entering recording needs a
// recording and goes through session-recording-started; leaving it here stops
// the recording in progress.
func applySessionStatus(s State, m Meta, ev events.SessionStatusChangedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		if ss.Status == ev.Status {
			return "", nil
		}
		if ev.Status == domain.SessionStatusRecording || !ss.Status.CanTransition(ev.Status) {
			return "", fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, ss.Status, ev.Status)
		}

		at := m.At
		ss.Status = ev.Status
		if r := ss.ActiveRecording(); r >= 0 {
			ss.Recordings[r].EndedAt = &at
			ss.Recordings[r].Status = domain.RecordingProcessing
		}
		if ev.Status == domain.SessionStatusEnded {
			ss.EndedAt = &at
			for j := range ss.Participants {
				ss.Participants[j].Online = false
			}
		}
		return fmt.Sprintf("status %s", ev.Status), nil
	})
}

func applyRecordingStarted(s State, m Meta, ev events.RecordingStartedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		if ss.RecordingIndex(ev.Recording.ID) >= 0 {
			return "", fmt.Errorf("%w: recording %s", ErrDuplicateEntity, ev.Recording.ID)
		}
		if !ss.Status.CanTransition(domain.SessionStatusRecording) {
			return "", fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, ss.Status, domain.SessionStatusRecording)
		}

		rec := ev.Recording
		rec.Status = domain.RecordingActive
		rec.EndedAt = nil
		if rec.StartedAt.IsZero() {
			rec.StartedAt = m.At
		}
		ss.Recordings = append(ss.Recordings, rec)
		ss.Status = domain.SessionStatusRecording
		return "recording started", nil
	})
}

func applyRecordingStopped(s State, m Meta, ev events.RecordingStoppedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		i := ss.RecordingIndex(ev.RecordingID)
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownRecording, ev.RecordingID)
		}
		if ss.Recordings[i].Status != domain.RecordingActive {
			return "", nil
		}

		ended := ev.EndedAt
		if ended.IsZero() {
			ended = m.At
		}
		ss.Recordings[i].EndedAt = &ended
		ss.Recordings[i].Status = domain.RecordingProcessing
		if ss.Status == domain.SessionStatusRecording {
			ss.Status = domain.SessionStatusActive
		}
		return "recording stopped", nil
	})
}

func applyInvitationSent(s State, m Meta, ev events.InvitationSentEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		if ss.Status == domain.SessionStatusEnded {
			return "", ErrSessionEnded
		}
		if ss.InvitationIndex(ev.Invitation.ID) >= 0 {
			return "", fmt.Errorf("%w: invitation %s", ErrDuplicateEntity, ev.Invitation.ID)
		}

		inv := ev.Invitation
		inv.Status = domain.InvitationPending
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = m.At
		}
		ss.Invitations = append(ss.Invitations, inv)
		return fmt.Sprintf("invited %s", inv.Email), nil
	})
}

// applyInvitationResponded settles a pending invitation once.
func applyInvitationResponded(s State, m Meta, ev events.InvitationRespondedEvent) (State, error) {
	return updateSession(s, m, ev.Name(), ev.SessionID, func(ss *domain.Session) (string, error) {
		i := ss.InvitationIndex(ev.InvitationID)
		if i < 0 {
			return "", fmt.Errorf("%w: %s", ErrUnknownInvitation, ev.InvitationID)
		}

		inv := &ss.Invitations[i]
		if inv.Status == ev.Status {
			return "", nil
		}
		if inv.Status != domain.InvitationPending {
			return "", fmt.Errorf("%w: invitation already %s", domain.ErrInvalidTransition, inv.Status)
		}
		inv.Status = ev.Status
		return fmt.Sprintf("invitation %s %s", inv.Email, ev.Status), nil
	})
}

func applyTyping(s State, sessionID, userID string, typing bool) (State, error) {
	if s.sessionIndex(sessionID) < 0 {
		return s, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if !typing {
		return withoutTyping(s, sessionID, userID), nil
	}
	if slices.Contains(s.Typing[sessionID], userID) {
		return s, nil
	}

	typingUsers := maps.Clone(s.Typing)
	if typingUsers == nil {
		typingUsers = make(map[string][]string, 1)
	}
	typingUsers[sessionID] = append(slices.Clone(s.Typing[sessionID]), userID)
	s.Typing = typingUsers
	return s, nil
}

func withoutTyping(s State, sessionID, userID string) State {
	i := slices.Index(s.Typing[sessionID], userID)
	if i < 0 {
		return s
	}

	typingUsers := maps.Clone(s.Typing)
	users := slices.Delete(slices.Clone(s.Typing[sessionID]), i, i+1)
	if len(users) == 0 {
		delete(typingUsers, sessionID)
	} else {
		typingUsers[sessionID] = users
	}
	s.Typing = typingUsers
	return s
}
