package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReview(t *testing.T) Review {
	t.Helper()
	r, err := NewReview(NewReviewParams{
		ID:     "r1",
		Title:  "Fix login bug",
		Type:   ReviewTypeCode,
		Author: UserRef{ID: "u0", Username: "author"},
		Reviewers: []UserRef{
			{ID: "u1", Username: "alice"},
			{ID: "u2", Username: "bob"},
		},
		Files: []ReviewFile{
			{ID: "f1", Path: "auth/login.go", Additions: 10, Deletions: 3},
			{ID: "f2", Path: "auth/login_test.go", Additions: 25, Deletions: 0},
		},
		Checklist: []ChecklistItem{
			{ID: "c1", Label: "tests added", Required: true},
			{ID: "c2", Label: "docs updated"},
		},
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	return r
}

func TestNewReview(t *testing.T) {
	r := newTestReview(t)

	assert.Equal(t, ReviewStatusPending, r.Status)
	assert.Equal(t, PriorityMedium, r.Priority)
	assert.Equal(t, 2, r.ApprovalsNeeded)
	assert.Equal(t, 0, r.ApprovalsReceived())
	assert.Equal(t, 35, r.Additions())
	assert.Equal(t, 3, r.Deletions())
	assert.Equal(t, 2, r.FilesChanged())
	assert.Equal(t, 0, r.CommentCount())
	assert.False(t, r.RequiredChecklistComplete())
	for _, rv := range r.Reviewers {
		assert.Equal(t, DecisionPending, rv.Decision)
	}
}

func TestNewReview_Validation(t *testing.T) {
	base := NewReviewParams{
		Title:  "t",
		Type:   ReviewTypeDesign,
		Author: UserRef{ID: "u0", Username: "author"},
	}

	tests := []struct {
		name   string
		modify func(p *NewReviewParams)
		want   error
	}{
		{
			name:   "blank title",
			modify: func(p *NewReviewParams) { p.Title = "   " },
			want:   ErrTitleRequired,
		},
		{
			name:   "unknown type",
			modify: func(p *NewReviewParams) { p.Type = "poetry" },
			want:   ErrInvalidReviewType,
		},
		{
			name:   "unknown priority",
			modify: func(p *NewReviewParams) { p.Priority = "whenever" },
			want:   ErrInvalidPriority,
		},
		{
			name:   "missing author",
			modify: func(p *NewReviewParams) { p.Author = UserRef{} },
			want:   ErrAuthorRequired,
		},
		{
			name: "duplicate reviewer",
			modify: func(p *NewReviewParams) {
				p.Reviewers = []UserRef{{ID: "u1", Username: "alice"}, {ID: "u1", Username: "alice"}}
			},
			want: ErrDuplicateReviewer,
		},
		{
			name: "reviewer id reused under another username",
			modify: func(p *NewReviewParams) {
				p.Reviewers = []UserRef{{ID: "u1", Username: "alice"}, {ID: "u1", Username: "alice2"}}
			},
			want: ErrDuplicateReviewer,
		},
		{
			name: "username shared by two ids",
			modify: func(p *NewReviewParams) {
				p.Reviewers = []UserRef{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "alice"}}
			},
			want: ErrDuplicateReviewer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			_, err := NewReview(p, time.Now())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReview_ApprovalsReceivedIsCapped(t *testing.T) {
	r := newTestReview(t)
	r.Reviewers = append(r.Reviewers, Reviewer{ID: "u3", Username: "carol"})
	for i := range r.Reviewers {
		r.Reviewers[i].Decision = DecisionApproved
	}

	assert.Equal(t, 2, r.ApprovalsReceived())
}

func TestReview_CommentCount(t *testing.T) {
	r := newTestReview(t)
	r.Comments = []Comment{
		{ID: "c1", Replies: []Reply{{ID: "r1"}, {ID: "r2"}}},
		{ID: "c2"},
	}
	r.Files[0].Comments = []LineComment{{ID: "l1", LineNumber: 4}}

	assert.Equal(t, 5, r.CommentCount())
}

func TestReviewFile_CommentsAt(t *testing.T) {
	f := ReviewFile{Comments: []LineComment{
		{ID: "a", LineNumber: 7},
		{ID: "b", LineNumber: 9},
		{ID: "c", LineNumber: 7},
	}}

	got := f.CommentsAt(7)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Empty(t, f.CommentsAt(1))
}

func TestChecklistItem_MergeKeepsAttribution(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	yes, no, who := true, false, "alice"
	item := ChecklistItem{ID: "c1"}

	item = item.Merge(ChecklistUpdate{Completed: &yes, CompletedBy: &who, CompletedAt: &at})
	assert.True(t, item.Completed)
	assert.Equal(t, "alice", item.CompletedBy)

	item = item.Merge(ChecklistUpdate{Completed: &no})
	assert.False(t, item.Completed)
	assert.Equal(t, "alice", item.CompletedBy)
	require.NotNil(t, item.CompletedAt)
	assert.Equal(t, at, *item.CompletedAt)
}

func TestReview_CloneIsDeep(t *testing.T) {
	r := newTestReview(t)
	r.Comments = []Comment{{ID: "c1", Replies: []Reply{{ID: "r1"}}}}

	cp := r.Clone()
	cp.Reviewers[0].Decision = DecisionApproved
	cp.Files[0].Comments = append(cp.Files[0].Comments, LineComment{ID: "l1"})
	cp.Comments[0].Replies[0].Content = "changed"
	cp.Checklist[0].Completed = true
	cp.Labels = append(cp.Labels, "x")

	assert.Equal(t, DecisionPending, r.Reviewers[0].Decision)
	assert.Empty(t, r.Files[0].Comments)
	assert.Empty(t, r.Comments[0].Replies[0].Content)
	assert.False(t, r.Checklist[0].Completed)
	assert.Empty(t, r.Labels)
}

func TestReviewStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to ReviewStatus
		want     bool
	}{
		{ReviewStatusPending, ReviewStatusApproved, true},
		{ReviewStatusPending, ReviewStatusRejected, true},
		{ReviewStatusPending, ReviewStatusChangesRequested, true},
		{ReviewStatusApproved, ReviewStatusMerged, true},
		{ReviewStatusPending, ReviewStatusMerged, false},
		{ReviewStatusRejected, ReviewStatusPending, false},
		{ReviewStatusMerged, ReviewStatusPending, false},
		{ReviewStatusMerged, ReviewStatusClosed, false},
		{ReviewStatusRejected, ReviewStatusApproved, false},
		{ReviewStatusApproved, ReviewStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestReviewStatus_Terminal(t *testing.T) {
	for _, s := range []ReviewStatus{ReviewStatusMerged, ReviewStatusClosed, ReviewStatusRejected} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []ReviewStatus{ReviewStatusPending, ReviewStatusApproved, ReviewStatusDraft} {
		assert.False(t, s.Terminal(), s)
	}
}
