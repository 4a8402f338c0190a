package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MaxActivityLog is the number of most recent activity entries a session keeps.
const MaxActivityLog = 100

type Role string

const (
	RoleHost        Role = "host"
	RoleCoHost      Role = "co-host"
	RolePresenter   Role = "presenter"
	RoleParticipant Role = "participant"
	RoleViewer      Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleCoHost, RolePresenter, RoleParticipant, RoleViewer:
		return true
	}
	return false
}

type Features struct {
	Chat        bool `json:"chat" yaml:"chat"`
	Voice       bool `json:"voice" yaml:"voice"`
	Video       bool `json:"video" yaml:"video"`
	ScreenShare bool `json:"screenShare" yaml:"screenShare"`
	Annotations bool `json:"annotations" yaml:"annotations"`
}

type Devices struct {
	Audio         bool `json:"audio"`
	Video         bool `json:"video"`
	ScreenSharing bool `json:"screenSharing"`
}

type Participant struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
	Guest    bool      `json:"guest"`
	Online   bool      `json:"online"`
	Devices  Devices   `json:"devices"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Activity struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	UserID  string    `json:"userId,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationExpired, InvitationRevoked:
		return true
	}
	return false
}

type Invitation struct {
	ID        string           `json:"id"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	Token     string           `json:"token"`
	InvitedBy string           `json:"invitedBy"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Status    InvitationStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IsExpired reports whether a still pending invitation is past its expiry.
func (i Invitation) IsExpired(now time.Time) bool {
	return i.Status == InvitationPending && !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

type RecordingStatus string

const (
	RecordingActive     RecordingStatus = "recording"
	RecordingProcessing RecordingStatus = "processing"
	RecordingReady      RecordingStatus = "ready"
	RecordingFailed     RecordingStatus = "failed"
)

type Recording struct {
	ID        string          `json:"id"`
	StartedBy string          `json:"startedBy"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   *time.Time      `json:"endedAt,omitempty"`
	Status    RecordingStatus `json:"status"`
}

type Session struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Template        Template      `json:"template"`
	MaxParticipants int           `json:"maxParticipants"`
	AllowGuests     bool          `json:"allowGuests"`
	Features        Features      `json:"features"`
	PasswordHash    string        `json:"passwordHash,omitempty"`
	ExpiresAt       *time.Time    `json:"expiresAt,omitempty"`
	Status          SessionStatus `json:"status"`
	Participants    []Participant `json:"participants"`
	ActivityLog     []Activity    `json:"activityLog"`
	Invitations     []Invitation  `json:"invitations"`
	Recordings      []Recording   `json:"recordings"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	EndedAt         *time.Time    `json:"endedAt,omitempty"`
}

type NewSessionParams struct {
	ID              string
	Name            string
	Description     string
	Host            UserRef
	MaxParticipants int
	AllowGuests     *bool
	Features        *Features
	Password        string
	ExpiresAt       *time.Time
}

// NewSession builds a preparing session from a template preset. Non-zero
// overrides in p win over the preset. The host is the only participant.
func NewSession(p NewSessionParams, preset TemplatePreset, now time.Time) (Session, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if strings.TrimSpace(p.Name) == "" {
		return Session{}, ErrNameRequired
	}
	if p.Host.ID == "" {
		return Session{}, ErrHostRequired
	}

	s := Session{
		ID:              p.ID,
		Name:            strings.TrimSpace(p.Name),
		Description:     p.Description,
		Template:        preset.Name,
		MaxParticipants: preset.MaxParticipants,
		AllowGuests:     preset.AllowGuests,
		Features:        preset.Features,
		ExpiresAt:       cloneTime(p.ExpiresAt),
		Status:          SessionStatusPreparing,
		Participants: []Participant{{
			ID:       p.Host.ID,
			Username: p.Host.Username,
			Role:     RoleHost,
			Online:   true,
			JoinedAt: now,
		}},
		ActivityLog: []Activity{},
		Invitations: []Invitation{},
		Recordings:  []Recording{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.MaxParticipants > 0 {
		s.MaxParticipants = p.MaxParticipants
	}
	if p.AllowGuests != nil {
		s.AllowGuests = *p.AllowGuests
	}
	if p.Features != nil {
		s.Features = *p.Features
	}
	if p.Password != "" {
		hash, err := HashPassword(p.Password)
		if err != nil {
			return Session{}, err
		}
		s.PasswordHash = hash
	}

	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Validate checks the invariants a session must hold when it is created.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrNameRequired
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	if s.MaxParticipants <= 0 {
		return ErrInvalidCapacity
	}

	hosts := 0
	for _, p := range s.Participants {
		if !p.Role.Valid() {
			return ErrInvalidRole
		}
		if p.Role == RoleHost {
			hosts++
		}
	}
	if hosts != 1 {
		return ErrHostRequired
	}
	if len(s.Participants) > s.MaxParticipants {
		return ErrSessionFull
	}
	return nil
}

func (s Session) Host() (Participant, bool) {
	for _, p := range s.Participants {
		if p.Role == RoleHost {
			return p, true
		}
	}
	return Participant{}, false
}

func (s Session) ParticipantIndex(userID string) int {
	for i, p := range s.Participants {
		if p.ID == userID {
			return i
		}
	}
	return -1
}

func (s Session) IsHost(userID string) bool {
	i := s.ParticipantIndex(userID)
	return i >= 0 && s.Participants[i].Role == RoleHost
}

// CanRecord is the client-side gate for recording controls. It is not an
// authorization check.
func (s Session) CanRecord(userID string) bool {
	return s.IsHost(userID) && (s.Status == SessionStatusActive || s.Status == SessionStatusRecording)
}

func (s Session) IsFull() bool {
	return len(s.Participants) >= s.MaxParticipants
}

func (s Session) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// ActiveRecording returns the index of the recording in progress, or -1.
func (s Session) ActiveRecording() int {
	for i, r := range s.Recordings {
		if r.Status == RecordingActive {
			return i
		}
	}
	return -1
}

func (s Session) InvitationIndex(id string) int {
	for i, inv := range s.Invitations {
		if inv.ID == id {
			return i
		}
	}
	return -1
}

func (s Session) RecordingIndex(id string) int {
	for i, r := range s.Recordings {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// CheckPassword returns nil when the session has no password or pw matches it.
func (s Session) CheckPassword(pw string) error {
	if s.PasswordHash == "" {
		return nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(pw))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}

func HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// AppendActivity returns a new log with a appended, trimmed to the
// MaxActivityLog most recent entries.
func AppendActivity(log []Activity, a Activity) []Activity {
	start := 0
	if len(log)+1 > MaxActivityLog {
		start = len(log) + 1 - MaxActivityLog
	}
	out := make([]Activity, 0, len(log)-start+1)
	out = append(out, log[start:]...)
	return append(out, a)
}

// Clone returns a deep copy so the copy can be changed without touching s.
func (s Session) Clone() Session {
	out := s
	out.ExpiresAt = cloneTime(s.ExpiresAt)
	out.EndedAt = cloneTime(s.EndedAt)
	if s.Participants != nil {
		out.Participants = append([]Participant(nil), s.Participants...)
	}
	if s.ActivityLog != nil {
		out.ActivityLog = append([]Activity(nil), s.ActivityLog...)
	}
	if s.Invitations != nil {
		out.Invitations = append([]Invitation(nil), s.Invitations...)
	}
	if s.Recordings != nil {
		out.Recordings = make([]Recording, len(s.Recordings))
		for i, r := range s.Recordings {
			r.EndedAt = cloneTime(r.EndedAt)
			out.Recordings[i] = r
		}
	}
	return out
}
