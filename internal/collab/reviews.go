package collab

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

// CreateReview builds a pending review authored by the local user and sends
// it. The review shows up locally once the echo arrives.
func (c *Controller) CreateReview(ctx context.Context, p domain.NewReviewParams) (domain.Review, error) {
	if p.Author.ID == "" {
		p.Author = c.user
	}
	r, err := domain.NewReview(p, c.now())
	if err != nil {
		return domain.Review{}, c.fail(events.ReviewCreated, err)
	}
	if err := c.send(ctx, events.ReviewCreatedEvent{Review: r}); err != nil {
		return domain.Review{}, err
	}
	return r, nil
}

func (c *Controller) UpdateReview(ctx context.Context, r domain.Review) error {
	if _, err := c.review(events.ReviewUpdated, r.ID); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return c.fail(events.ReviewUpdated, err)
	}
	return c.send(ctx, events.ReviewUpdatedEvent{Review: r})
}

func (c *Controller) Approve(ctx context.Context, reviewID string) error {
	return c.decide(ctx, events.ReviewApproved, reviewID)
}

func (c *Controller) Reject(ctx context.Context, reviewID string) error {
	return c.decide(ctx, events.ReviewRejected, reviewID)
}

func (c *Controller) RequestChanges(ctx context.Context, reviewID string) error {
	return c.decide(ctx, events.ReviewChangesRequested, reviewID)
}

// Merge is only offered for approved reviews.
func (c *Controller) Merge(ctx context.Context, reviewID string) error {
	r, err := c.review(events.ReviewMerged, reviewID)
	if err != nil {
		return err
	}
	if r.Status != domain.ReviewStatusApproved {
		return c.fail(events.ReviewMerged, fmt.Errorf("%w: status is %s", ErrMergeNotAllowed, r.Status))
	}
	return c.decide(ctx, events.ReviewMerged, reviewID)
}

func (c *Controller) CloseReview(ctx context.Context, reviewID string) error {
	return c.decide(ctx, events.ReviewClosed, reviewID)
}

func (c *Controller) decide(ctx context.Context, name events.Name, reviewID string) error {
	if _, err := c.review(name, reviewID); err != nil {
		return err
	}

	d := events.ReviewDecisionEvent{ReviewID: reviewID, Username: c.user.Username}
	var e events.Event
	switch name {
	case events.ReviewApproved:
		e = events.ReviewApprovedEvent{ReviewDecisionEvent: d}
	case events.ReviewRejected:
		e = events.ReviewRejectedEvent{ReviewDecisionEvent: d}
	case events.ReviewChangesRequested:
		e = events.ReviewChangesRequestedEvent{ReviewDecisionEvent: d}
	case events.ReviewMerged:
		e = events.ReviewMergedEvent{ReviewDecisionEvent: d}
	default:
		e = events.ReviewClosedEvent{ReviewDecisionEvent: d}
	}
	return c.send(ctx, e)
}

func (c *Controller) Comment(ctx context.Context, reviewID, content string) (domain.Comment, error) {
	if _, err := c.review(events.ReviewComment, reviewID); err != nil {
		return domain.Comment{}, err
	}

	cm := domain.Comment{
		ID:        uuid.NewString(),
		Author:    c.user,
		Content:   content,
		CreatedAt: c.now(),
		Replies:   []domain.Reply{},
	}
	if err := c.send(ctx, events.ReviewCommentEvent{ReviewID: reviewID, Comment: cm}); err != nil {
		return domain.Comment{}, err
	}
	return cm, nil
}

func (c *Controller) Reply(ctx context.Context, reviewID, commentID, content string) (domain.Reply, error) {
	r, err := c.review(events.CommentReply, reviewID)
	if err != nil {
		return domain.Reply{}, err
	}
	if r.CommentIndex(commentID) < 0 {
		return domain.Reply{}, c.fail(events.CommentReply, fmt.Errorf("comment %s not found", commentID))
	}

	reply := domain.Reply{
		ID:        uuid.NewString(),
		Author:    c.user,
		Content:   content,
		CreatedAt: c.now(),
	}
	if err := c.send(ctx, events.CommentReplyEvent{ReviewID: reviewID, CommentID: commentID, Reply: reply}); err != nil {
		return domain.Reply{}, err
	}
	return reply, nil
}

func (c *Controller) ResolveComment(ctx context.Context, reviewID, commentID string) error {
	if _, err := c.review(events.CommentResolved, reviewID); err != nil {
		return err
	}
	return c.send(ctx, events.CommentResolvedEvent{
		ReviewID:  reviewID,
		CommentID: commentID,
		Username:  c.user.Username,
	})
}

func (c *Controller) LineComment(ctx context.Context, reviewID, fileID string, line int, content string) (domain.LineComment, error) {
	r, err := c.review(events.LineComment, reviewID)
	if err != nil {
		return domain.LineComment{}, err
	}
	if r.FileIndex(fileID) < 0 {
		return domain.LineComment{}, c.fail(events.LineComment, fmt.Errorf("file %s not found", fileID))
	}

	lc := domain.LineComment{
		ID:         uuid.NewString(),
		FileID:     fileID,
		LineNumber: line,
		Author:     c.user,
		Content:    content,
		CreatedAt:  c.now(),
	}
	if err := c.send(ctx, events.LineCommentEvent{ReviewID: reviewID, FileID: fileID, Comment: lc}); err != nil {
		return domain.LineComment{}, err
	}
	return lc, nil
}

// ToggleChecklistItem flips the item. Completing it records the local user
// and time; clearing it leaves that attribution in place.
func (c *Controller) ToggleChecklistItem(ctx context.Context, reviewID, itemID string) error {
	r, err := c.review(events.ChecklistUpdated, reviewID)
	if err != nil {
		return err
	}
	i := r.ChecklistIndex(itemID)
	if i < 0 {
		return c.fail(events.ChecklistUpdated, fmt.Errorf("checklist item %s not found", itemID))
	}

	completed := !r.Checklist[i].Completed
	u := domain.ChecklistUpdate{Completed: &completed}
	if completed {
		by, at := c.user.Username, c.now()
		u.CompletedBy = &by
		u.CompletedAt = &at
	}
	return c.send(ctx, events.ChecklistUpdatedEvent{ReviewID: reviewID, ItemID: itemID, Updates: u})
}
