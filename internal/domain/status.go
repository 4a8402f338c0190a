package domain

// ReviewStatus is the lifecycle state of a review.
type ReviewStatus string

const (
	ReviewStatusDraft            ReviewStatus = "draft"
	ReviewStatusPending          ReviewStatus = "pending"
	ReviewStatusInProgress       ReviewStatus = "in-progress"
	ReviewStatusChangesRequested ReviewStatus = "changes-requested"
	ReviewStatusApproved         ReviewStatus = "approved"
	ReviewStatusRejected         ReviewStatus = "rejected"
	ReviewStatusMerged           ReviewStatus = "merged"
	ReviewStatusClosed           ReviewStatus = "closed"
)

var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewStatusDraft:            {ReviewStatusClosed},
	ReviewStatusPending:          {ReviewStatusApproved, ReviewStatusRejected, ReviewStatusChangesRequested, ReviewStatusClosed},
	ReviewStatusInProgress:       {ReviewStatusClosed},
	ReviewStatusChangesRequested: {ReviewStatusClosed},
	ReviewStatusApproved:         {ReviewStatusMerged, ReviewStatusClosed},
}

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusDraft, ReviewStatusPending, ReviewStatusInProgress, ReviewStatusChangesRequested,
		ReviewStatusApproved, ReviewStatusRejected, ReviewStatusMerged, ReviewStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusMerged || s == ReviewStatusClosed || s == ReviewStatusRejected
}

// CanTransition reports whether s -> to is an edge of the review state
// machine. Staying in the same state is not an edge.
func (s ReviewStatus) CanTransition(to ReviewStatus) bool {
	for _, next := range reviewTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle state of a collaboration session.
type SessionStatus string

const (
	SessionStatusPreparing SessionStatus = "preparing"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusRecording SessionStatus = "recording"
	SessionStatusEnded     SessionStatus = "ended"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusPreparing: {SessionStatusActive, SessionStatusEnded},
	SessionStatusActive:    {SessionStatusPaused, SessionStatusRecording, SessionStatusEnded},
	SessionStatusPaused:    {SessionStatusActive, SessionStatusEnded},
	SessionStatusRecording: {SessionStatusActive, SessionStatusEnded},
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPreparing, SessionStatusActive, SessionStatusPaused, SessionStatusRecording, SessionStatusEnded:
		return true
	}
	return false
}

func (s SessionStatus) CanTransition(to SessionStatus) bool {
	for _, next := range sessionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
