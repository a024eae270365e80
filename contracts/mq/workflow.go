package mq

import "time"

// Routing keys for workflow events. Producers write these through the
// outbox; consumers bind queues per key.
const (
	KeyUpdateSubmitted         = "update.submitted"
	KeyUpdateReviewed          = "update.reviewed"
	KeyPaymentReleaseRequested = "milestone.release_requested"
	KeyInvoiceRequested        = "milestone.approved"
)

// DailyUpdateSubmittedPayload identifies the update by its natural key;
// at most one update exists per (milestone, author, date).
type DailyUpdateSubmittedPayload struct {
	MilestoneID int       `json:"milestone_id"`
	ProjectID   int       `json:"project_id"`
	AuthorID    int       `json:"author_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	SubmittedAt time.Time `json:"submitted_at"`
}

type DailyUpdateReviewedPayload struct {
	UpdateID         int       `json:"update_id"`
	MilestoneID      int       `json:"milestone_id"`
	AuthorID         int       `json:"author_id"`
	Status           string    `json:"status"` // approved / rejected
	ApprovedProgress int       `json:"approved_progress,omitempty"`
	RejectionReason  string    `json:"rejection_reason,omitempty"`
	ReviewedBy       int       `json:"reviewed_by"`
	ReviewedAt       time.Time `json:"reviewed_at"`
}

type PaymentReleaseRequestedPayload struct {
	MilestoneID int       `json:"milestone_id"`
	ProjectID   int       `json:"project_id"`
	Amount      float64   `json:"amount"`
	RequestedBy int       `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

type InvoiceGenerationRequestedPayload struct {
	MilestoneID int       `json:"milestone_id"`
	ProjectID   int       `json:"project_id"`
	Amount      float64   `json:"amount"`
	ApprovedBy  int       `json:"approved_by"`
	ApprovedAt  time.Time `json:"approved_at"`
}
