package projection_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var evtSeq int

func meta(sender string) projection.Meta {
	evtSeq++
	return projection.Meta{
		ID:     fmt.Sprintf("evt-%d", evtSeq),
		At:     t0.Add(time.Duration(evtSeq) * time.Second),
		Sender: sender,
	}
}

func mustApply(t *testing.T, s projection.State, e events.Event) projection.State {
	t.Helper()
	next, err := projection.Apply(s, meta("u-alice"), e)
	require.NoError(t, err)
	return next
}

func newReview(t *testing.T) domain.Review {
	t.Helper()
	r, err := domain.NewReview(domain.NewReviewParams{
		ID:     "r1",
		Title:  "Fix login bug",
		Type:   domain.ReviewTypeCode,
		Author: domain.UserRef{ID: "u-carol", Username: "carol"},
		Reviewers: []domain.UserRef{
			{ID: "u-alice", Username: "alice"},
			{ID: "u-bob", Username: "bob"},
		},
		Files: []domain.ReviewFile{{ID: "f1", Path: "auth/login.go", Additions: 12, Deletions: 3}},
		Checklist: []domain.ChecklistItem{
			{ID: "c1", Label: "tests pass", Required: true},
		},
	}, t0)
	require.NoError(t, err)
	return r
}

func withReview(t *testing.T) projection.State {
	t.Helper()
	return mustApply(t, projection.State{}, events.ReviewCreatedEvent{Review: newReview(t)})
}

func decision(username string) events.ReviewDecisionEvent {
	return events.ReviewDecisionEvent{ReviewID: "r1", Username: username}
}

func review(t *testing.T, s projection.State) domain.Review {
	t.Helper()
	r, ok := s.Review("r1")
	require.True(t, ok)
	return r
}

func TestApply_ReviewCreated(t *testing.T) {
	s := withReview(t)

	r := review(t, s)
	assert.Equal(t, domain.ReviewStatusPending, r.Status)
	assert.Equal(t, 2, r.ApprovalsNeeded)
	assert.Equal(t, 0, r.ApprovalsReceived())

	_, err := projection.Apply(s, meta("u-carol"), events.ReviewCreatedEvent{Review: newReview(t)})
	assert.ErrorIs(t, err, projection.ErrDuplicateEntity)
}

func TestApply_ApproveEchoIsIdempotent(t *testing.T) {
	s := withReview(t)

	s = mustApply(t, s, events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")})
	first := review(t, s)
	assert.Equal(t, domain.ReviewStatusApproved, first.Status)
	assert.Equal(t, 1, first.ApprovalsReceived())

	s = mustApply(t, s, events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")})
	assert.Equal(t, first, review(t, s))

	s = mustApply(t, s, events.ReviewApprovedEvent{ReviewDecisionEvent: decision("bob")})
	r := review(t, s)
	assert.Equal(t, domain.ReviewStatusApproved, r.Status)
	assert.Equal(t, 2, r.ApprovalsReceived())
	assert.LessOrEqual(t, r.ApprovalsReceived(), r.ApprovalsNeeded)
}

func TestApply_StatusOnlyMovesAlongEdges(t *testing.T) {
	tests := []struct {
		name    string
		prepare []events.Event
		event   events.Event
		want    domain.ReviewStatus
		wantErr error
	}{
		{
			name:  "pending to rejected",
			event: events.ReviewRejectedEvent{ReviewDecisionEvent: decision("bob")},
			want:  domain.ReviewStatusRejected,
		},
		{
			name:  "pending to changes requested",
			event: events.ReviewChangesRequestedEvent{ReviewDecisionEvent: decision("bob")},
			want:  domain.ReviewStatusChangesRequested,
		},
		{
			name:    "approve after reject keeps the first decision",
			prepare: []events.Event{events.ReviewRejectedEvent{ReviewDecisionEvent: decision("bob")}},
			event:   events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")},
			want:    domain.ReviewStatusRejected,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "merge requires approval",
			event:   events.ReviewMergedEvent{ReviewDecisionEvent: decision("carol")},
			want:    domain.ReviewStatusPending,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "approved to merged",
			prepare: []events.Event{events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")}},
			event:   events.ReviewMergedEvent{ReviewDecisionEvent: decision("carol")},
			want:    domain.ReviewStatusMerged,
		},
		{
			name: "merged never returns to pending",
			prepare: []events.Event{
				events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")},
				events.ReviewMergedEvent{ReviewDecisionEvent: decision("carol")},
			},
			event:   events.ReviewUpdatedEvent{Review: newReview(t)},
			want:    domain.ReviewStatusMerged,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "changes requested can be closed",
			prepare: []events.Event{events.ReviewChangesRequestedEvent{ReviewDecisionEvent: decision("bob")}},
			event:   events.ReviewClosedEvent{ReviewDecisionEvent: decision("carol")},
			want:    domain.ReviewStatusClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := withReview(t)
			for _, e := range tt.prepare {
				s = mustApply(t, s, e)
			}

			next, err := projection.Apply(s, meta("u-alice"), tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, s, next)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, review(t, next).Status)
		})
	}
}

func TestApply_MergeStampsMergedBy(t *testing.T) {
	s := withReview(t)
	s = mustApply(t, s, events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")})
	s = mustApply(t, s, events.ReviewMergedEvent{ReviewDecisionEvent: decision("carol")})

	r := review(t, s)
	assert.Equal(t, "carol", r.MergedBy)
	require.NotNil(t, r.MergedAt)
}

func TestApply_ApplyDoesNotMutateInput(t *testing.T) {
	s := withReview(t)
	before := review(t, s).Clone()

	_ = mustApply(t, s, events.ReviewCommentEvent{ReviewID: "r1", Comment: domain.Comment{
		ID: "cm1", Author: domain.UserRef{ID: "u-bob", Username: "bob"}, Content: "looks risky",
	}})
	_ = mustApply(t, s, events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")})

	assert.Equal(t, before, review(t, s))
}

func TestApply_CommentsOnlyGrow(t *testing.T) {
	s := withReview(t)
	author := domain.UserRef{ID: "u-bob", Username: "bob"}

	s = mustApply(t, s, events.ReviewCommentEvent{ReviewID: "r1", Comment: domain.Comment{
		ID: "cm1", Author: author, Content: "why a global?",
	}})
	s = mustApply(t, s, events.CommentReplyEvent{ReviewID: "r1", CommentID: "cm1", Reply: domain.Reply{
		ID: "rp1", Author: domain.UserRef{ID: "u-carol", Username: "carol"}, Content: "legacy",
	}})
	s = mustApply(t, s, events.LineCommentEvent{ReviewID: "r1", FileID: "f1", Comment: domain.LineComment{
		ID: "lc1", LineNumber: 42, Author: author, Content: "off by one",
	}})
	assert.Equal(t, 3, review(t, s).CommentCount())

	s = mustApply(t, s, events.CommentResolvedEvent{ReviewID: "r1", CommentID: "cm1", Username: "carol"})
	r := review(t, s)
	assert.Equal(t, 3, r.CommentCount())
	assert.True(t, r.Comments[0].Resolved)
	assert.Equal(t, "carol", r.Comments[0].ResolvedBy)
	assert.Len(t, r.Files[0].CommentsAt(42), 1)
	assert.Equal(t, domain.ReviewStatusPending, r.Status)

	// resolving twice keeps the first resolver
	s = mustApply(t, s, events.CommentResolvedEvent{ReviewID: "r1", CommentID: "cm1", Username: "bob"})
	assert.Equal(t, "carol", review(t, s).Comments[0].ResolvedBy)

	_, err := projection.Apply(s, meta("u-bob"), events.ReviewCommentEvent{ReviewID: "r1", Comment: domain.Comment{
		ID: "cm1", Author: author, Content: "again",
	}})
	assert.ErrorIs(t, err, projection.ErrDuplicateEntity)
}

func TestApply_ChecklistToggleKeepsAttribution(t *testing.T) {
	s := withReview(t)
	on, off, by := true, false, "alice"
	doneAt := t0.Add(time.Hour)

	s = mustApply(t, s, events.ChecklistUpdatedEvent{ReviewID: "r1", ItemID: "c1", Updates: domain.ChecklistUpdate{
		Completed: &on, CompletedBy: &by, CompletedAt: &doneAt,
	}})
	item := review(t, s).Checklist[0]
	assert.True(t, item.Completed)
	assert.Equal(t, "alice", item.CompletedBy)
	require.NotNil(t, item.CompletedAt)
	assert.True(t, review(t, s).RequiredChecklistComplete())

	s = mustApply(t, s, events.ChecklistUpdatedEvent{ReviewID: "r1", ItemID: "c1", Updates: domain.ChecklistUpdate{
		Completed: &off,
	}})
	item = review(t, s).Checklist[0]
	assert.False(t, item.Completed)
	assert.Equal(t, "alice", item.CompletedBy)
	require.NotNil(t, item.CompletedAt)
	assert.Equal(t, doneAt, *item.CompletedAt)
}

func TestApply_ReviewUpdatedKeepsOwnedCollections(t *testing.T) {
	s := withReview(t)
	s = mustApply(t, s, events.ReviewCommentEvent{ReviewID: "r1", Comment: domain.Comment{
		ID: "cm1", Author: domain.UserRef{ID: "u-bob", Username: "bob"}, Content: "nit",
	}})

	upd := newReview(t)
	upd.Title = "Fix login bug on mobile"
	upd.Reviewers = upd.Reviewers[:1]
	upd.ApprovalsNeeded = 1
	upd.Files = append(upd.Files, domain.ReviewFile{ID: "f2", Path: "auth/mobile.go", Additions: 4})
	s = mustApply(t, s, events.ReviewUpdatedEvent{Review: upd})

	r := review(t, s)
	assert.Equal(t, "Fix login bug on mobile", r.Title)
	assert.Equal(t, 2, r.ApprovalsNeeded)
	assert.Len(t, r.Reviewers, 2)
	assert.Len(t, r.Comments, 1)
	assert.Equal(t, 2, r.FilesChanged())
	assert.Equal(t, 16, r.Additions())
}

func TestApply_UnknownIDsLeaveStateUnchanged(t *testing.T) {
	s := withReview(t)

	tests := []struct {
		name  string
		event events.Event
		want  error
	}{
		{"unknown review", events.ReviewApprovedEvent{ReviewDecisionEvent: events.ReviewDecisionEvent{ReviewID: "nope", Username: "alice"}}, projection.ErrUnknownReview},
		{"unknown comment", events.CommentReplyEvent{ReviewID: "r1", CommentID: "nope", Reply: domain.Reply{ID: "rp", Content: "x"}}, projection.ErrUnknownComment},
		{"unknown file", events.LineCommentEvent{ReviewID: "r1", FileID: "nope", Comment: domain.LineComment{ID: "l", LineNumber: 1, Content: "x"}}, projection.ErrUnknownFile},
		{"unknown checklist item", events.ChecklistUpdatedEvent{ReviewID: "r1", ItemID: "nope"}, projection.ErrUnknownChecklistItem},
		{"unknown session", events.SessionLeftEvent{SessionID: "nope", UserID: "u"}, projection.ErrUnknownSession},
		{"unknown session typing", events.TypingStartEvent{TypingEvent: events.TypingEvent{SessionID: "nope", UserID: "u"}}, projection.ErrUnknownSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				next projection.State
				err  error
			)
			require.NotPanics(t, func() { next, err = projection.Apply(s, meta("u-alice"), tt.event) })
			require.ErrorIs(t, err, tt.want)
			assert.True(t, projection.IsUnknownEntity(err))
			assert.Equal(t, s, next)
		})
	}
}

func TestFold_SkipsRejectedEvents(t *testing.T) {
	created, err := events.Wrap("u-carol", t0, events.ReviewCreatedEvent{Review: newReview(t)})
	require.NoError(t, err)
	approved, err := events.Wrap("u-alice", t0.Add(time.Minute), events.ReviewApprovedEvent{ReviewDecisionEvent: decision("alice")})
	require.NoError(t, err)
	rejected, err := events.Wrap("u-bob", t0.Add(2*time.Minute), events.ReviewRejectedEvent{ReviewDecisionEvent: decision("bob")})
	require.NoError(t, err)

	s, dropped, err := projection.Fold(projection.State{}, []events.Envelope{created, approved, rejected})
	require.NoError(t, err)
	require.Len(t, dropped, 1)
	assert.ErrorIs(t, dropped[0], domain.ErrInvalidTransition)
	assert.Equal(t, domain.ReviewStatusApproved, review(t, s).Status)
}

func TestQueries(t *testing.T) {
	s := withReview(t)

	assert.Len(t, s.ReviewsByStatus(""), 1)
	assert.Len(t, s.ReviewsByStatus(domain.ReviewStatusPending), 1)
	assert.Empty(t, s.ReviewsByStatus(domain.ReviewStatusMerged))
	assert.Len(t, s.ReviewsForReviewer("bob"), 1)

	s = mustApply(t, s, events.ReviewChangesRequestedEvent{ReviewDecisionEvent: decision("bob")})
	assert.Empty(t, s.ReviewsForReviewer("bob"))
	assert.Len(t, s.ReviewsForReviewer("alice"), 1)
}
