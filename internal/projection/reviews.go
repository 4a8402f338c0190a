package projection

import (
	"fmt"
	"slices"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

func applyReviewCreated(s State, m Meta, ev events.ReviewCreatedEvent) (State, error) {
	if s.reviewIndex(ev.Review.ID) >= 0 {
		return s, fmt.Errorf("%w: review %s", ErrDuplicateEntity, ev.Review.ID)
	}

	r := ev.Review.Clone()
	if r.Status == "" {
		r.Status = domain.ReviewStatusPending
	}
	if r.Status != domain.ReviewStatusPending && r.Status != domain.ReviewStatusDraft {
		return s, fmt.Errorf("%w: review created as %s", domain.ErrInvalidTransition, r.Status)
	}
	r.ApprovalsNeeded = len(r.Reviewers)
	for i := range r.Reviewers {
		if r.Reviewers[i].Decision == "" {
			r.Reviewers[i].Decision = domain.DecisionPending
		}
	}
	if r.Labels == nil {
		r.Labels = []string{}
	}
	if r.Reviewers == nil {
		r.Reviewers = []domain.Reviewer{}
	}
	if r.Files == nil {
		r.Files = []domain.ReviewFile{}
	}
	for i := range r.Files {
		if r.Files[i].Comments == nil {
			r.Files[i].Comments = []domain.LineComment{}
		}
	}
	if r.Comments == nil {
		r.Comments = []domain.Comment{}
	}
	if r.Checklist == nil {
		r.Checklist = []domain.ChecklistItem{}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.At
	}
	r.UpdatedAt = m.At

	s.Reviews = append(slices.Clone(s.Reviews), r)
	return s, nil
}

// applyReviewUpdated replaces the descriptive fields of a review. Comments,
// reviewer decisions and the approval threshold are owned by their own events
// and survive the update; files and checklist items are merged by id.
func applyReviewUpdated(s State, m Meta, ev events.ReviewUpdatedEvent) (State, error) {
	next := ev.Review
	return updateReview(s, m, next.ID, func(r *domain.Review) (bool, error) {
		if next.Status != r.Status {
			if !r.Status.CanTransition(next.Status) {
				return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, r.Status, next.Status)
			}
			r.Status = next.Status
		}

		r.Title = next.Title
		r.Description = next.Description
		r.Type = next.Type
		r.Priority = next.Priority
		r.Labels = slices.Clone(next.Labels)
		if r.Labels == nil {
			r.Labels = []string{}
		}

		for _, f := range next.Files {
			if i := r.FileIndex(f.ID); i >= 0 {
				r.Files[i].Path = f.Path
				r.Files[i].Additions = f.Additions
				r.Files[i].Deletions = f.Deletions
				continue
			}
			f.Comments = slices.Clone(f.Comments)
			if f.Comments == nil {
				f.Comments = []domain.LineComment{}
			}
			r.Files = append(r.Files, f)
		}

		for _, item := range next.Checklist {
			if i := r.ChecklistIndex(item.ID); i >= 0 {
				r.Checklist[i].Label = item.Label
				r.Checklist[i].Required = item.Required
				continue
			}
			r.Checklist = append(r.Checklist, item)
		}
		return true, nil
	})
}

// applyDecision moves a review to status and records the reviewer's decision.
// Re-applying the status the review already holds only records the decision.
func applyDecision(s State, m Meta, ev events.ReviewDecisionEvent, to domain.ReviewStatus, d domain.Decision) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		changed := false
		if r.Status != to {
			if !r.Status.CanTransition(to) {
				return false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, r.Status, to)
			}
			r.Status = to
			changed = true
			if to == domain.ReviewStatusMerged {
				at := m.At
				r.MergedAt = &at
				r.MergedBy = ev.Username
			}
		}

		if d != "" {
			if i := r.ReviewerIndex(ev.Username); i >= 0 && r.Reviewers[i].Decision != d {
				at := m.At
				r.Reviewers[i].Decision = d
				r.Reviewers[i].DecidedAt = &at
				changed = true
			}
		}
		return changed, nil
	})
}

func applyComment(s State, m Meta, ev events.ReviewCommentEvent) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		if r.CommentIndex(ev.Comment.ID) >= 0 {
			return false, fmt.Errorf("%w: comment %s", ErrDuplicateEntity, ev.Comment.ID)
		}

		c := ev.Comment
		c.Replies = slices.Clone(c.Replies)
		if c.Replies == nil {
			c.Replies = []domain.Reply{}
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = m.At
		}
		r.Comments = append(r.Comments, c)
		return true, nil
	})
}

func applyReply(s State, m Meta, ev events.CommentReplyEvent) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		i := r.CommentIndex(ev.CommentID)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownComment, ev.CommentID)
		}

		c := &r.Comments[i]
		if slices.ContainsFunc(c.Replies, func(rp domain.Reply) bool { return rp.ID == ev.Reply.ID }) {
			return false, fmt.Errorf("%w: reply %s", ErrDuplicateEntity, ev.Reply.ID)
		}
		reply := ev.Reply
		if reply.CreatedAt.IsZero() {
			reply.CreatedAt = m.At
		}
		c.Replies = append(c.Replies, reply)
		return true, nil
	})
}

func applyResolve(s State, m Meta, ev events.CommentResolvedEvent) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		i := r.CommentIndex(ev.CommentID)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownComment, ev.CommentID)
		}
		if r.Comments[i].Resolved {
			return false, nil
		}

		at := m.At
		r.Comments[i].Resolved = true
		r.Comments[i].ResolvedBy = ev.Username
		r.Comments[i].ResolvedAt = &at
		return true, nil
	})
}

func applyLineComment(s State, m Meta, ev events.LineCommentEvent) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		i := r.FileIndex(ev.FileID)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownFile, ev.FileID)
		}

		f := &r.Files[i]
		if slices.ContainsFunc(f.Comments, func(c domain.LineComment) bool { return c.ID == ev.Comment.ID }) {
			return false, fmt.Errorf("%w: line comment %s", ErrDuplicateEntity, ev.Comment.ID)
		}
		c := ev.Comment
		c.FileID = ev.FileID
		if c.CreatedAt.IsZero() {
			c.CreatedAt = m.At
		}
		f.Comments = append(f.Comments, c)
		return true, nil
	})
}

func applyChecklist(s State, m Meta, ev events.ChecklistUpdatedEvent) (State, error) {
	return updateReview(s, m, ev.ReviewID, func(r *domain.Review) (bool, error) {
		i := r.ChecklistIndex(ev.ItemID)
		if i < 0 {
			return false, fmt.Errorf("%w: %s", ErrUnknownChecklistItem, ev.ItemID)
		}
		r.Checklist[i] = r.Checklist[i].Merge(ev.Updates)
		return true, nil
	})
}
