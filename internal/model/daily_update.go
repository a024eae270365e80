package model

import "time"

type ApprovalStatus string

const (
	UpdatePending  ApprovalStatus = "pending"
	UpdateApproved ApprovalStatus = "approved"
	UpdateRejected ApprovalStatus = "rejected"
)

// DailyUpdate is one dated progress report submitted by a freelancer
// against a milestone. At most one exists per (milestone, author, date).
type DailyUpdate struct {
	ID               int            `json:"id"`
	MilestoneID      int            `json:"milestone_id"`
	AuthorID         int            `json:"author_id"`
	Date             time.Time      `json:"date"`
	WorkDone         string         `json:"work_done"`
	Notes            string         `json:"notes,omitempty"`
	PhotoRefs        []string       `json:"photo_refs,omitempty"`
	ApprovalStatus   ApprovalStatus `json:"approval_status"`
	ApprovedProgress int            `json:"approved_progress,omitempty"` // set only on approval
	RejectionReason  string         `json:"rejection_reason,omitempty"`  // set only on rejection
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
