package collab

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

// CreateSession builds a session from a template with the local user as
// host, joins its room and announces it.
func (c *Controller) CreateSession(ctx context.Context, template domain.Template, p domain.NewSessionParams) (domain.Session, error) {
	preset, err := c.templates.Get(template)
	if err != nil {
		return domain.Session{}, c.fail(events.SessionCreated, err)
	}
	p.Host = c.user
	ss, err := domain.NewSession(p, preset, c.now())
	if err != nil {
		return domain.Session{}, c.fail(events.SessionCreated, err)
	}

	if err := c.ch.JoinRoom(ctx, ss.ID, c.user.ID); err != nil {
		return domain.Session{}, c.fail(events.SessionCreated, err)
	}
	if err := c.send(ctx, events.SessionCreatedEvent{Session: ss}); err != nil {
		return domain.Session{}, err
	}
	return ss, nil
}

// JoinSession checks the password and expiry locally before joining.
func (c *Controller) JoinSession(ctx context.Context, sessionID, password string, guest bool) error {
	ss, err := c.session(events.SessionJoined, sessionID)
	if err != nil {
		return err
	}
	switch {
	case ss.Status == domain.SessionStatusEnded:
		return c.fail(events.SessionJoined, projection.ErrSessionEnded)
	case ss.IsExpired(c.now()):
		return c.fail(events.SessionJoined, ErrSessionExpired)
	}
	if err := ss.CheckPassword(password); err != nil {
		return c.fail(events.SessionJoined, err)
	}

	if err := c.ch.JoinRoom(ctx, sessionID, c.user.ID); err != nil {
		return c.fail(events.SessionJoined, err)
	}
	return c.send(ctx, events.SessionJoinedEvent{SessionID: sessionID, Participant: domain.Participant{
		ID:       c.user.ID,
		Username: c.user.Username,
		Role:     domain.RoleParticipant,
		Guest:    guest,
		JoinedAt: c.now(),
	}})
}

func (c *Controller) LeaveSession(ctx context.Context, sessionID string) error {
	if _, err := c.session(events.SessionLeft, sessionID); err != nil {
		return err
	}
	c.cancelTyping(sessionID, 0)

	if err := c.send(ctx, events.SessionLeftEvent{SessionID: sessionID, UserID: c.user.ID}); err != nil {
		return err
	}
	if err := c.ch.LeaveRoom(ctx, sessionID, c.user.ID); err != nil {
		return c.fail(events.SessionLeft, err)
	}
	return nil
}

func (c *Controller) ChangeRole(ctx context.Context, sessionID, userID string, role domain.Role) error {
	ss, err := c.hostSession(events.RoleChanged, sessionID)
	if err != nil {
		return err
	}
	i := ss.ParticipantIndex(userID)
	if i < 0 {
		return c.fail(events.RoleChanged, fmt.Errorf("%w: %s", ErrNotParticipant, userID))
	}
	return c.send(ctx, events.RoleChangedEvent{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Username:  ss.Participants[i].Username,
	})
}

func (c *Controller) RemoveParticipant(ctx context.Context, sessionID, userID string) error {
	ss, err := c.hostSession(events.ParticipantRemoved, sessionID)
	if err != nil {
		return err
	}
	i := ss.ParticipantIndex(userID)
	if i < 0 {
		return c.fail(events.ParticipantRemoved, fmt.Errorf("%w: %s", ErrNotParticipant, userID))
	}
	return c.send(ctx, events.ParticipantRemovedEvent{
		SessionID: sessionID,
		UserID:    userID,
		Username:  ss.Participants[i].Username,
	})
}

func (c *Controller) StartRecording(ctx context.Context, sessionID string) (domain.Recording, error) {
	ss, err := c.hostSession(events.SessionRecordingStarted, sessionID)
	if err != nil {
		return domain.Recording{}, err
	}
	if !ss.CanRecord(c.user.ID) || ss.ActiveRecording() >= 0 {
		return domain.Recording{}, c.fail(events.SessionRecordingStarted,
			fmt.Errorf("%w: cannot record while %s", domain.ErrInvalidTransition, ss.Status))
	}

	rec := domain.Recording{
		ID:        uuid.NewString(),
		StartedBy: c.user.ID,
		StartedAt: c.now(),
		Status:    domain.RecordingActive,
	}
	if err := c.send(ctx, events.RecordingStartedEvent{SessionID: sessionID, Recording: rec}); err != nil {
		return domain.Recording{}, err
	}
	return rec, nil
}

func (c *Controller) StopRecording(ctx context.Context, sessionID string) error {
	ss, err := c.hostSession(events.SessionRecordingStopped, sessionID)
	if err != nil {
		return err
	}
	i := ss.ActiveRecording()
	if i < 0 {
		return c.fail(events.SessionRecordingStopped, ErrNothingRecording)
	}
	return c.send(ctx, events.RecordingStoppedEvent{
		SessionID:   sessionID,
		RecordingID: ss.Recordings[i].ID,
		EndedAt:     c.now(),
	})
}

// SetStatus pauses, resumes or ends the session.
func (c *Controller) SetStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	if _, err := c.hostSession(events.SessionStatusChanged, sessionID); err != nil {
		return err
	}
	return c.send(ctx, events.SessionStatusChangedEvent{SessionID: sessionID, Status: status})
}

func (c *Controller) UpdateDevices(ctx context.Context, sessionID string, d domain.Devices) error {
	ss, err := c.session(events.DeviceUpdated, sessionID)
	if err != nil {
		return err
	}
	if ss.ParticipantIndex(c.user.ID) < 0 {
		return c.fail(events.DeviceUpdated, ErrNotParticipant)
	}
	return c.send(ctx, events.DeviceUpdatedEvent{SessionID: sessionID, UserID: c.user.ID, Devices: d})
}

func (c *Controller) Invite(ctx context.Context, sessionID, email string, role domain.Role) (domain.Invitation, error) {
	if _, err := c.hostSession(events.InvitationSent, sessionID); err != nil {
		return domain.Invitation{}, err
	}

	now := c.now()
	inv := domain.Invitation{
		ID:        uuid.NewString(),
		Email:     email,
		Role:      role,
		Token:     uuid.NewString(),
		InvitedBy: c.user.ID,
		ExpiresAt: now.Add(c.invitationTTL),
		Status:    domain.InvitationPending,
		CreatedAt: now,
	}
	if err := c.send(ctx, events.InvitationSentEvent{SessionID: sessionID, Invitation: inv}); err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// RespondInvitation accepts, declines or, for the host, revokes an invitation.
func (c *Controller) RespondInvitation(ctx context.Context, sessionID, invitationID string, status domain.InvitationStatus) error {
	ss, err := c.session(events.InvitationResponded, sessionID)
	if err != nil {
		return err
	}
	if status == domain.InvitationRevoked && !ss.IsHost(c.user.ID) {
		return c.fail(events.InvitationResponded, ErrNotHost)
	}
	return c.send(ctx, events.InvitationRespondedEvent{
		SessionID:    sessionID,
		InvitationID: invitationID,
		Status:       status,
	})
}
