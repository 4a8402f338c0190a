package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReviewType string

const (
	ReviewTypeCode        ReviewType = "code"
	ReviewTypeContent     ReviewType = "content"
	ReviewTypeDesign      ReviewType = "design"
	ReviewTypeWorkflow    ReviewType = "workflow"
	ReviewTypeAutomation  ReviewType = "automation"
	ReviewTypeSecurity    ReviewType = "security"
	ReviewTypePerformance ReviewType = "performance"
)

func (t ReviewType) Valid() bool {
	switch t {
	case ReviewTypeCode, ReviewTypeContent, ReviewTypeDesign, ReviewTypeWorkflow,
		ReviewTypeAutomation, ReviewTypeSecurity, ReviewTypePerformance:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent, PriorityCritical:
		return true
	}
	return false
}

// Decision is a single reviewer's verdict.
type Decision string

const (
	DecisionPending          Decision = "pending"
	DecisionApproved         Decision = "approved"
	DecisionRejected         Decision = "rejected"
	DecisionChangesRequested Decision = "changes-requested"
)

type Reviewer struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Decision  Decision   `json:"decision"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
}

type ReviewFile struct {
	ID        string        `json:"id"`
	Path      string        `json:"path"`
	Additions int           `json:"additions"`
	Deletions int           `json:"deletions"`
	Comments  []LineComment `json:"comments"`
}

// CommentsAt returns the comments left on the given line in arrival order.
func (f ReviewFile) CommentsAt(line int) []LineComment {
	var out []LineComment
	for _, c := range f.Comments {
		if c.LineNumber == line {
			out = append(out, c)
		}
	}
	return out
}

// Comment is a thread-level comment. Threads are one level deep: a Reply
// carries no replies of its own.
type Comment struct {
	ID         string     `json:"id"`
	Author     UserRef    `json:"author"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Replies    []Reply    `json:"replies"`
}

type Reply struct {
	ID        string    `json:"id"`
	Author    UserRef   `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type LineComment struct {
	ID         string    `json:"id"`
	FileID     string    `json:"fileId"`
	LineNumber int       `json:"lineNumber"`
	Author     UserRef   `json:"author"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ChecklistItem struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Required    bool       `json:"required"`
	Completed   bool       `json:"completed"`
	CompletedBy string     `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ChecklistUpdate holds the fields of a checklist item to overwrite; nil
// fields are left untouched.
type ChecklistUpdate struct {
	Completed   *bool      `json:"completed,omitempty"`
	CompletedBy *string    `json:"completedBy,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Label       *string    `json:"label,omitempty"`
}

func (u ChecklistUpdate) Empty() bool {
	return u.Completed == nil && u.CompletedBy == nil && u.CompletedAt == nil && u.Label == nil
}

// Merge applies u on top of the item. Clearing Completed keeps the previous
// attribution.
func (i ChecklistItem) Merge(u ChecklistUpdate) ChecklistItem {
	out := i
	out.CompletedAt = cloneTime(i.CompletedAt)
	if u.Completed != nil {
		out.Completed = *u.Completed
	}
	if u.CompletedBy != nil {
		out.CompletedBy = *u.CompletedBy
	}
	if u.CompletedAt != nil {
		out.CompletedAt = cloneTime(u.CompletedAt)
	}
	if u.Label != nil {
		out.Label = *u.Label
	}
	return out
}

type Review struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Type            ReviewType      `json:"type"`
	Status          ReviewStatus    `json:"status"`
	Priority        Priority        `json:"priority"`
	Author          UserRef         `json:"author"`
	Labels          []string        `json:"labels"`
	Reviewers       []Reviewer      `json:"reviewers"`
	Files           []ReviewFile    `json:"files"`
	Comments        []Comment       `json:"comments"`
	Checklist       []ChecklistItem `json:"checklist"`
	ApprovalsNeeded int             `json:"approvalsNeeded"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	MergedAt        *time.Time      `json:"mergedAt,omitempty"`
	MergedBy        string          `json:"mergedBy,omitempty"`
}

type NewReviewParams struct {
	ID          string
	Title       string
	Description string
	Type        ReviewType
	Priority    Priority
	Author      UserRef
	Labels      []string
	Reviewers   []UserRef
	Files       []ReviewFile
	Checklist   []ChecklistItem
}

// NewReview builds a pending review. ApprovalsNeeded is fixed to the number
// of reviewers at this point.
func NewReview(p NewReviewParams, now time.Time) (Review, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}

	reviewers := make([]Reviewer, 0, len(p.Reviewers))
	for _, r := range p.Reviewers {
		reviewers = append(reviewers, Reviewer{
			ID:       r.ID,
			Username: r.Username,
			Decision: DecisionPending,
		})
	}

	files := make([]ReviewFile, 0, len(p.Files))
	for _, f := range p.Files {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.Comments = []LineComment{}
		files = append(files, f)
	}

	checklist := make([]ChecklistItem, 0, len(p.Checklist))
	for _, item := range p.Checklist {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		checklist = append(checklist, item)
	}

	r := Review{
		ID:              p.ID,
		Title:           strings.TrimSpace(p.Title),
		Description:     p.Description,
		Type:            p.Type,
		Status:          ReviewStatusPending,
		Priority:        p.Priority,
		Author:          p.Author,
		Labels:          cloneStrings(p.Labels),
		Reviewers:       reviewers,
		Files:           files,
		Comments:        []Comment{},
		Checklist:       checklist,
		ApprovalsNeeded: len(reviewers),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if r.Labels == nil {
		r.Labels = []string{}
	}

	if err := r.Validate(); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (r Review) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if r.Author.ID == "" {
		return ErrAuthorRequired
	}
	if !r.Type.Valid() {
		return ErrInvalidReviewType
	}
	if !r.Priority.Valid() {
		return ErrInvalidPriority
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}

	// Decisions are matched by username and membership by id, so both must
	// be unique.
	ids := make(map[string]struct{}, len(r.Reviewers))
	names := make(map[string]struct{}, len(r.Reviewers))
	for _, rv := range r.Reviewers {
		_, dupID := ids[rv.ID]
		_, dupName := names[rv.Username]
		if dupID || dupName {
			return ErrDuplicateReviewer
		}
		ids[rv.ID] = struct{}{}
		names[rv.Username] = struct{}{}
	}
	return nil
}

func (r Review) Additions() int {
	n := 0
	for _, f := range r.Files {
		n += f.Additions
	}
	return n
}

func (r Review) Deletions() int {
	n := 0
	for _, f := range r.Files {
		n += f.Deletions
	}
	return n
}

func (r Review) FilesChanged() int {
	return len(r.Files)
}

// CommentCount counts thread comments, their replies and line comments.
func (r Review) CommentCount() int {
	n := 0
	for _, c := range r.Comments {
		n += 1 + len(c.Replies)
	}
	for _, f := range r.Files {
		n += len(f.Comments)
	}
	return n
}

// ApprovalsReceived never exceeds ApprovalsNeeded.
func (r Review) ApprovalsReceived() int {
	n := 0
	for _, rv := range r.Reviewers {
		if rv.Decision == DecisionApproved {
			n++
		}
	}
	return min(n, r.ApprovalsNeeded)
}

func (r Review) RequiredChecklistComplete() bool {
	for _, item := range r.Checklist {
		if item.Required && !item.Completed {
			return false
		}
	}
	return true
}

// ReviewerIndex returns the position of the reviewer with the given username, or -1.
func (r Review) ReviewerIndex(username string) int {
	for i, rv := range r.Reviewers {
		if rv.Username == username {
			return i
		}
	}
	return -1
}

func (r Review) HasReviewer(userID string) bool {
	for _, rv := range r.Reviewers {
		if rv.ID == userID {
			return true
		}
	}
	return false
}

func (r Review) CommentIndex(id string) int {
	for i, c := range r.Comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r Review) FileIndex(id string) int {
	for i, f := range r.Files {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (r Review) ChecklistIndex(id string) int {
	for i, item := range r.Checklist {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so the copy can be changed without touching r.
func (r Review) Clone() Review {
	out := r
	out.Labels = cloneStrings(r.Labels)
	out.MergedAt = cloneTime(r.MergedAt)

	if r.Reviewers != nil {
		out.Reviewers = make([]Reviewer, len(r.Reviewers))
		for i, rv := range r.Reviewers {
			rv.DecidedAt = cloneTime(rv.DecidedAt)
			out.Reviewers[i] = rv
		}
	}
	if r.Files != nil {
		out.Files = make([]ReviewFile, len(r.Files))
		for i, f := range r.Files {
			if f.Comments != nil {
				f.Comments = append([]LineComment(nil), f.Comments...)
			}
			out.Files[i] = f
		}
	}
	if r.Comments != nil {
		out.Comments = make([]Comment, len(r.Comments))
		for i, c := range r.Comments {
			c.ResolvedAt = cloneTime(c.ResolvedAt)
			if c.Replies != nil {
				c.Replies = append([]Reply(nil), c.Replies...)
			}
			out.Comments[i] = c
		}
	}
	if r.Checklist != nil {
		out.Checklist = make([]ChecklistItem, len(r.Checklist))
		for i, item := range r.Checklist {
			item.CompletedAt = cloneTime(item.CompletedAt)
			out.Checklist[i] = item
		}
	}
	return out
}
