package projection

import (
	"slices"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
)

func (s State) Review(id string) (domain.Review, bool) {
	if i := s.reviewIndex(id); i >= 0 {
		return s.Reviews[i], true
	}
	return domain.Review{}, false
}

func (s State) Session(id string) (domain.Session, bool) {
	if i := s.sessionIndex(id); i >= 0 {
		return s.Sessions[i], true
	}
	return domain.Session{}, false
}

// ReviewsByStatus returns the reviews in status, or all reviews when status
// is empty, in creation order.
func (s State) ReviewsByStatus(status domain.ReviewStatus) []domain.Review {
	out := make([]domain.Review, 0, len(s.Reviews))
	for _, r := range s.Reviews {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// ReviewsForReviewer returns the reviews the user still has to decide on.
func (s State) ReviewsForReviewer(username string) []domain.Review {
	var out []domain.Review
	for _, r := range s.Reviews {
		if r.Status.Terminal() {
			continue
		}
		if i := r.ReviewerIndex(username); i >= 0 && r.Reviewers[i].Decision == domain.DecisionPending {
			out = append(out, r)
		}
	}
	return out
}

// ActiveSessions returns the sessions that have not ended.
func (s State) ActiveSessions() []domain.Session {
	var out []domain.Session
	for _, ss := range s.Sessions {
		if ss.Status != domain.SessionStatusEnded {
			out = append(out, ss)
		}
	}
	return out
}

func (s State) TypingUsers(sessionID string) []string {
	return slices.Clone(s.Typing[sessionID])
}
