package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/mocks"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/repository"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/service"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var (
	alice = domain.UserRef{ID: "u-alice", Username: "alice"}
	bob   = domain.UserRef{ID: "u-bob", Username: "bob"}
	carol = domain.UserRef{ID: "u-carol", Username: "carol"}
)

type fixture struct {
	store *mocks.MockEventStore
	hub   *mocks.MockBroadcaster
	rec   *mocks.MockRecorder
	svc   *service.Service
	seq   int64
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{
		store: mocks.NewMockEventStore(ctrl),
		hub:   mocks.NewMockBroadcaster(ctrl),
		rec:   mocks.NewMockRecorder(ctrl),
	}
	f.svc = service.New(f.store, f.hub, f.rec, zap.NewNop())
	return f
}

func wrap(t *testing.T, sender string, e events.Event) events.Envelope {
	t.Helper()
	env, err := events.Wrap(sender, t0, e)
	require.NoError(t, err)
	return env
}

// caughtUp expects a catch up that finds nothing past the fixture's head.
func (f *fixture) caughtUp() *gomock.Call {
	return f.store.EXPECT().ListEvents(gomock.Any(), f.seq, 500).Return(nil, nil)
}

// accept publishes e and expects it to be stored and broadcast.
func (f *fixture) accept(t *testing.T, sender string, e events.Event) events.Envelope {
	t.Helper()
	if !e.Name().Ephemeral() {
		f.caughtUp()
		f.store.EXPECT().AppendEvents(gomock.Any(), f.seq, gomock.Len(1)).Return([]int64{f.seq + 1}, nil)
		f.seq++
	}
	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	f.rec.EXPECT().EventApplied(e.Name())

	out, err := f.svc.Publish(t.Context(), wrap(t, sender, e))
	require.NoError(t, err)
	return out
}

// refuse publishes e and expects it to be dropped without touching the log.
func (f *fixture) refuse(t *testing.T, sender string, e events.Event) error {
	t.Helper()
	f.caughtUp()
	f.rec.EXPECT().EventDropped(e.Name(), gomock.Any())

	_, err := f.svc.Publish(t.Context(), wrap(t, sender, e))
	require.Error(t, err)
	return err
}

func newReview(t *testing.T) domain.Review {
	t.Helper()
	r, err := domain.NewReview(domain.NewReviewParams{
		ID:        "r1",
		Title:     "Fix login bug",
		Type:      domain.ReviewTypeCode,
		Author:    carol,
		Reviewers: []domain.UserRef{alice, bob},
	}, t0)
	require.NoError(t, err)
	return r
}

func newSession(t *testing.T) domain.Session {
	t.Helper()
	preset, err := domain.DefaultTemplates().Get(domain.TemplateCodeReview)
	require.NoError(t, err)
	ss, err := domain.NewSession(domain.NewSessionParams{ID: "s1", Name: "Auth walkthrough", Host: alice}, preset, t0)
	require.NoError(t, err)
	return ss
}

func joined(u domain.UserRef) events.SessionJoinedEvent {
	return events.SessionJoinedEvent{SessionID: "s1", Participant: domain.Participant{
		ID: u.ID, Username: u.Username, Role: domain.RoleParticipant,
	}}
}

func TestService_PublishStoresAndBroadcasts(t *testing.T) {
	f := newFixture(t)

	env := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	env.Namespace, env.Room = "", ""

	var broadcast events.Envelope
	f.caughtUp()
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Len(1)).Return([]int64{7}, nil)
	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e events.Envelope) error {
		broadcast = e
		return nil
	})
	f.rec.EXPECT().EventApplied(events.ReviewCreated)

	out, err := f.svc.Publish(t.Context(), env)
	require.NoError(t, err)

	assert.Equal(t, int64(7), out.Seq)
	assert.Equal(t, events.NamespaceReviews, out.Namespace)
	assert.Equal(t, events.ReviewsRoom, out.Room)
	assert.Equal(t, out, broadcast)
	assert.Equal(t, int64(7), f.svc.LastSeq())

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusPending, r.Status)
	assert.Equal(t, 2, r.ApprovalsNeeded)
}

func TestService_PublishInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*events.Envelope)
	}{
		{name: "id is not a uuid", mutate: func(e *events.Envelope) { e.ID = "evt-1" }},
		{name: "no sender", mutate: func(e *events.Envelope) { e.Sender = "" }},
		{name: "unknown event", mutate: func(e *events.Envelope) { e.Event = "review-reopened" }},
		{name: "bad payload", mutate: func(e *events.Envelope) { e.Data = []byte(`{"reviewId":""}`) }},
		{name: "wrong room", mutate: func(e *events.Envelope) { e.Room = "s1" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.rec.EXPECT().EventDropped(gomock.Any(), gomock.Any())

			env := wrap(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
			tt.mutate(&env)

			_, err := f.svc.Publish(t.Context(), env)
			require.ErrorIs(t, err, service.ErrInvalidEvent)
		})
	}
}

func TestService_PublishRejectedByReducer(t *testing.T) {
	f := newFixture(t)

	err := f.refuse(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
	require.ErrorIs(t, err, service.ErrRejected)
	require.ErrorIs(t, err, projection.ErrUnknownReview)

	f.accept(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	f.accept(t, alice.ID, events.ReviewRejectedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})

	err = f.refuse(t, bob.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "bob"}})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusRejected, r.Status)
}

func TestService_HostOnlyEvents(t *testing.T) {
	f := newFixture(t)
	f.accept(t, alice.ID, events.SessionCreatedEvent{Session: newSession(t)})
	f.accept(t, bob.ID, joined(bob))

	forbidden := []events.Event{
		events.SessionStatusChangedEvent{SessionID: "s1", Status: domain.SessionStatusPaused},
		events.RoleChangedEvent{SessionID: "s1", UserID: bob.ID, Role: domain.RoleHost},
		events.ParticipantRemovedEvent{SessionID: "s1", UserID: alice.ID},
		events.RecordingStartedEvent{SessionID: "s1", Recording: domain.Recording{
			ID: "rec1", StartedBy: bob.ID, StartedAt: t0, Status: domain.RecordingActive,
		}},
		events.InvitationSentEvent{SessionID: "s1", Invitation: domain.Invitation{
			ID: "i1", Email: "dan@example.com", Role: domain.RoleParticipant, Token: "tok",
			InvitedBy: bob.ID, ExpiresAt: t0.Add(time.Hour), Status: domain.InvitationPending,
		}},
	}
	for _, e := range forbidden {
		t.Run(string(e.Name()), func(t *testing.T) {
			err := f.refuse(t, bob.ID, e)
			require.ErrorIs(t, err, service.ErrForbidden)
		})
	}

	f.accept(t, alice.ID, events.SessionStatusChangedEvent{SessionID: "s1", Status: domain.SessionStatusPaused})
	ss, err := f.svc.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusPaused, ss.Status)
}

func TestService_SendersActForThemselves(t *testing.T) {
	f := newFixture(t)
	f.accept(t, alice.ID, events.SessionCreatedEvent{Session: newSession(t)})

	err := f.refuse(t, carol.ID, joined(bob))
	require.ErrorIs(t, err, service.ErrForbidden)

	err = f.refuse(t, bob.ID, events.SessionCreatedEvent{Session: newSession(t)})
	require.ErrorIs(t, err, service.ErrForbidden)
}

func TestService_InvitationExpiryIsSystemOnly(t *testing.T) {
	f := newFixture(t)
	f.accept(t, alice.ID, events.SessionCreatedEvent{Session: newSession(t)})
	f.accept(t, alice.ID, events.InvitationSentEvent{SessionID: "s1", Invitation: domain.Invitation{
		ID: "i1", Email: "dan@example.com", Role: domain.RoleParticipant, Token: "tok",
		InvitedBy: alice.ID, ExpiresAt: t0.Add(time.Hour), Status: domain.InvitationPending,
	}})

	expire := events.InvitationRespondedEvent{SessionID: "s1", InvitationID: "i1", Status: domain.InvitationExpired}
	err := f.refuse(t, alice.ID, expire)
	require.ErrorIs(t, err, service.ErrForbidden)

	f.accept(t, service.SystemSender, expire)
	ss, err := f.svc.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvitationExpired, ss.Invitations[0].Status)
}

func TestService_TypingIsNotStored(t *testing.T) {
	f := newFixture(t)
	f.accept(t, alice.ID, events.SessionCreatedEvent{Session: newSession(t)})

	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
	f.rec.EXPECT().EventApplied(events.TypingStart)

	out, err := f.svc.Publish(t.Context(), wrap(t, alice.ID, events.TypingStartEvent{
		TypingEvent: events.TypingEvent{SessionID: "s1", UserID: alice.ID},
	}))
	require.NoError(t, err)
	assert.Zero(t, out.Seq)
	assert.Equal(t, []string{alice.ID}, f.svc.TypingUsers("s1"))
	assert.Equal(t, int64(1), f.svc.LastSeq())
}

func TestService_DuplicateEvent(t *testing.T) {
	f := newFixture(t)
	f.caughtUp()
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Any()).Return(nil, repository.ErrEventExists)

	_, err := f.svc.Publish(t.Context(), wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)}))
	require.ErrorIs(t, err, service.ErrDuplicateEvent)

	_, err = f.svc.GetReview("r1")
	require.ErrorIs(t, err, service.ErrReviewNotFound)
}

func TestService_StoreFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.caughtUp()
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Any()).Return(nil, boom)

	_, err := f.svc.Publish(t.Context(), wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)}))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.svc.ListReviews(service.ReviewFilter{}))
}

func TestService_BroadcastFailureKeepsEvent(t *testing.T) {
	f := newFixture(t)
	f.caughtUp()
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Any()).Return([]int64{1}, nil)
	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)
	f.rec.EXPECT().EventApplied(events.ReviewCreated)

	_, err := f.svc.Publish(t.Context(), wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)}))
	require.NoError(t, err)
	_, err = f.svc.GetReview("r1")
	require.NoError(t, err)
}

func TestService_RelayOnlyForLocalEvents(t *testing.T) {
	f := newFixture(t)
	relay := mocks.NewMockRelay(gomock.NewController(t))
	f.svc.WithRelay(relay)

	relay.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	f.accept(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})

	remote := wrap(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
	remote.Seq = 9
	f.store.EXPECT().ListEvents(gomock.Any(), int64(1), 500).Return([]events.Envelope{remote}, nil)
	f.hub.EXPECT().Publish(gomock.Any(), remote).Return(nil)
	f.rec.EXPECT().EventApplied(events.ReviewApproved)

	require.NoError(t, f.svc.ApplyRemote(t.Context(), remote))
	assert.Equal(t, int64(9), f.svc.LastSeq())

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusApproved, r.Status)

	// a second delivery of the same event is ignored
	require.NoError(t, f.svc.ApplyRemote(t.Context(), remote))
}

func TestService_ApplyRemoteReadsTheLogInSeqOrder(t *testing.T) {
	f := newFixture(t)

	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	created.Seq = 1
	rejected := wrap(t, bob.ID, events.ReviewRejectedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "bob"}})
	rejected.Seq = 2
	approved := wrap(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
	approved.Seq = 3

	// the approval arrives first and the creation was never relayed
	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return([]events.Envelope{created, rejected, approved}, nil)
	gomock.InOrder(
		f.hub.EXPECT().Publish(gomock.Any(), created).Return(nil),
		f.hub.EXPECT().Publish(gomock.Any(), rejected).Return(nil),
	)
	f.rec.EXPECT().EventApplied(events.ReviewCreated)
	f.rec.EXPECT().EventApplied(events.ReviewRejected)

	require.NoError(t, f.svc.ApplyRemote(t.Context(), approved))
	require.NoError(t, f.svc.ApplyRemote(t.Context(), rejected))
	assert.Equal(t, int64(3), f.svc.LastSeq())

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusRejected, r.Status, "the first logged decision wins")
}

func TestService_ApplyRemoteRejects(t *testing.T) {
	f := newFixture(t)
	f.rec.EXPECT().EventDropped(events.TypingStart, gomock.Any())

	remote := wrap(t, alice.ID, events.TypingStartEvent{TypingEvent: events.TypingEvent{SessionID: "s9", UserID: alice.ID}})
	err := f.svc.ApplyRemote(t.Context(), remote)
	require.ErrorIs(t, err, service.ErrRejected)
}

func TestService_PublishCatchesUpFirst(t *testing.T) {
	f := newFixture(t)

	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	created.Seq = 1
	rejected := wrap(t, alice.ID, events.ReviewRejectedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
	rejected.Seq = 2

	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return([]events.Envelope{created, rejected}, nil)
	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.rec.EXPECT().EventApplied(events.ReviewCreated)
	f.rec.EXPECT().EventApplied(events.ReviewRejected)
	f.rec.EXPECT().EventDropped(events.ReviewApproved, gomock.Any())

	_, err := f.svc.Publish(t.Context(), wrap(t, bob.ID, events.ReviewApprovedEvent{
		ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "bob"},
	}))
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int64(2), f.svc.LastSeq())
}

func TestService_PublishRetriesWhenLogAdvanced(t *testing.T) {
	f := newFixture(t)
	f.accept(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})

	comment := wrap(t, bob.ID, events.ReviewCommentEvent{ReviewID: "r1", Comment: domain.Comment{
		ID: "c1", Author: bob, Content: "nit: rename", CreatedAt: t0,
	}})
	comment.Seq = 2

	gomock.InOrder(
		f.store.EXPECT().ListEvents(gomock.Any(), int64(1), 500).Return(nil, nil),
		f.store.EXPECT().AppendEvents(gomock.Any(), int64(1), gomock.Len(1)).Return(nil, repository.ErrLogAdvanced),
		f.store.EXPECT().ListEvents(gomock.Any(), int64(1), 500).Return([]events.Envelope{comment}, nil),
		f.store.EXPECT().AppendEvents(gomock.Any(), int64(2), gomock.Len(1)).Return([]int64{3}, nil),
	)
	f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.rec.EXPECT().EventApplied(events.ReviewComment)
	f.rec.EXPECT().EventApplied(events.ReviewApproved)

	out, err := f.svc.Publish(t.Context(), wrap(t, alice.ID, events.ReviewApprovedEvent{
		ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"},
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Seq)
	assert.Equal(t, int64(3), f.svc.LastSeq())

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusApproved, r.Status)
	assert.Len(t, r.Comments, 1)
}

func TestService_PublishGivesUpOnBusyLog(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return(nil, nil).Times(3)
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Any()).Return(nil, repository.ErrLogAdvanced).Times(3)

	_, err := f.svc.Publish(t.Context(), wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)}))
	require.ErrorIs(t, err, service.ErrBusy)
	require.ErrorIs(t, err, repository.ErrLogAdvanced)
	assert.Empty(t, f.svc.ListReviews(service.ReviewFilter{}))
}

func TestService_PublishAll(t *testing.T) {
	f := newFixture(t)
	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	approved := wrap(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})

	f.caughtUp()
	f.store.EXPECT().AppendEvents(gomock.Any(), int64(0), gomock.Len(2)).Return([]int64{1, 2}, nil)
	gomock.InOrder(
		f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
		f.hub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil),
	)
	f.rec.EXPECT().EventApplied(events.ReviewCreated)
	f.rec.EXPECT().EventApplied(events.ReviewApproved)

	out, err := f.svc.PublishAll(t.Context(), []events.Envelope{created, approved})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []int64{1, 2}, []int64{out[0].Seq, out[1].Seq})
	assert.Equal(t, int64(2), f.svc.LastSeq())
}

func TestService_PublishAllIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	merged := wrap(t, bob.ID, events.ReviewMergedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "bob"}})

	f.caughtUp()
	f.rec.EXPECT().EventDropped(events.ReviewMerged, gomock.Any())

	_, err := f.svc.PublishAll(t.Context(), []events.Envelope{created, merged})
	require.ErrorIs(t, err, service.ErrRejected)
	assert.Empty(t, f.svc.ListReviews(service.ReviewFilter{}))
	assert.Zero(t, f.svc.LastSeq())
}

func TestService_SyncSkipsRefusedEvents(t *testing.T) {
	f := newFixture(t)

	stale := wrap(t, bob.ID, events.ReviewMergedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r9", Username: "bob"}})
	stale.Seq = 1
	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	created.Seq = 2

	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return([]events.Envelope{stale, created}, nil)
	f.hub.EXPECT().Publish(gomock.Any(), created).Return(nil)
	f.rec.EXPECT().EventApplied(events.ReviewCreated)

	n, err := f.svc.Sync(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(2), f.svc.LastSeq())

	f.store.EXPECT().ListEvents(gomock.Any(), int64(2), 500).Return(nil, errors.New("conn refused"))
	_, err = f.svc.Sync(t.Context())
	require.Error(t, err)
}

func TestService_Restore(t *testing.T) {
	f := newFixture(t)

	created := wrap(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	created.Seq = 1
	stale := wrap(t, bob.ID, events.ReviewMergedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "bob"}})
	stale.Seq = 2
	approved := wrap(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})
	approved.Seq = 3
	session := wrap(t, alice.ID, events.SessionCreatedEvent{Session: newSession(t)})
	session.Seq = 4

	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return([]events.Envelope{created, stale, approved, session}, nil)

	require.NoError(t, f.svc.Restore(t.Context()))
	assert.Equal(t, int64(4), f.svc.LastSeq())

	r, err := f.svc.GetReview("r1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusApproved, r.Status)
	assert.Len(t, f.svc.ListSessions(true), 1)
}

func TestService_RestoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().ListEvents(gomock.Any(), int64(0), 500).Return(nil, errors.New("relation \"events\" does not exist"))

	require.Error(t, f.svc.Restore(t.Context()))
}

func TestService_ListReviews(t *testing.T) {
	f := newFixture(t)
	f.accept(t, carol.ID, events.ReviewCreatedEvent{Review: newReview(t)})
	f.accept(t, alice.ID, events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "r1", Username: "alice"}})

	assert.Len(t, f.svc.ListReviews(service.ReviewFilter{}), 1)
	assert.Len(t, f.svc.ListReviews(service.ReviewFilter{Status: domain.ReviewStatusApproved}), 1)
	assert.Empty(t, f.svc.ListReviews(service.ReviewFilter{Status: domain.ReviewStatusPending}))
	assert.Len(t, f.svc.ListReviews(service.ReviewFilter{Reviewer: "bob"}), 1)
	assert.Empty(t, f.svc.ListReviews(service.ReviewFilter{Reviewer: "alice"}))
}

func TestService_EventsSincePageSize(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().ListEvents(gomock.Any(), int64(5), service.DefaultPageSize).Return(nil, nil)
	f.store.EXPECT().ListEvents(gomock.Any(), int64(5), service.MaxPageSize).Return(nil, nil)
	f.store.EXPECT().ListRoomEvents(gomock.Any(), "s1", int64(0), 20).Return(nil, nil)

	_, err := f.svc.EventsSince(t.Context(), 5, 0)
	require.NoError(t, err)
	_, err = f.svc.EventsSince(t.Context(), 5, 50000)
	require.NoError(t, err)
	_, err = f.svc.RoomEvents(t.Context(), "s1", 0, 20)
	require.NoError(t, err)
}
