package model

import "time"

type MilestoneStatus string

const (
	MilestonePending          MilestoneStatus = "pending"
	MilestoneInProgress       MilestoneStatus = "in_progress"
	MilestoneReleaseRequested MilestoneStatus = "release_requested"
	MilestoneApproved         MilestoneStatus = "approved"
	MilestoneCompleted        MilestoneStatus = "completed"
)

type Milestone struct {
	ID          int             `json:"id"`
	ProjectID   int             `json:"project_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      float64         `json:"amount"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	DueDate     time.Time       `json:"due_date"`
	Progress    int             `json:"progress"` // 0-100
	Status      MilestoneStatus `json:"status"`
	IsDeleted   bool            `json:"is_deleted"`
	Version     int             `json:"-"` // optimistic concurrency guard
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
