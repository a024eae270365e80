package workflow

import (
	"fmt"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

// ProgressChange selects between a relative increment and an absolute
// target. Exactly one of the two must be set.
type ProgressChange struct {
	Delta    *int
	Absolute *int
}

// Start moves a pending milestone to in_progress. Triggered by the first
// daily-update submission or the first progress advance.
func Start(m *model.Milestone, now time.Time) {
	if m.Status == model.MilestonePending {
		m.Status = model.MilestoneInProgress
		m.UpdatedAt = now
	}
}

// AdvanceProgress applies a freelancer-initiated progress change. Results
// above 100 are capped; negative or decreasing results are rejected, since
// progress only moves backward through administrative correction tooling
// that lives outside this engine.
func AdvanceProgress(m *model.Milestone, change ProgressChange, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionAdvanceProgress) {
		return ErrUnauthorized
	}
	if m.IsDeleted {
		return ErrNotFound
	}
	if m.Status != model.MilestonePending && m.Status != model.MilestoneInProgress {
		return fmt.Errorf("%w: milestone is %s", ErrInvalidState, m.Status)
	}

	var target int
	switch {
	case change.Delta != nil && change.Absolute == nil:
		target = m.Progress + *change.Delta
	case change.Absolute != nil && change.Delta == nil:
		target = *change.Absolute
	default:
		return fmt.Errorf("%w: exactly one of delta or absolute is required", ErrValidation)
	}

	if target < 0 {
		return fmt.Errorf("%w: progress would be %d", ErrInvalidProgress, target)
	}
	if target > 100 {
		target = 100
	}
	if target < m.Progress {
		return fmt.Errorf("%w: progress cannot decrease from %d to %d", ErrInvalidProgress, m.Progress, target)
	}

	Start(m, now)
	m.Progress = target
	m.UpdatedAt = now
	return nil
}

// ApplyApprovedProgress folds an approved daily update's progress value
// into the milestone. Monotone: the milestone keeps whichever is higher.
// No-op once the milestone has moved past in_progress.
func ApplyApprovedProgress(m *model.Milestone, approved int, now time.Time) {
	if m.Status != model.MilestonePending && m.Status != model.MilestoneInProgress {
		return
	}
	Start(m, now)
	if p := ClampProgress(approved); p > m.Progress {
		m.Progress = p
		m.UpdatedAt = now
	}
}

// RequestRelease signals that the milestone is complete and payment should
// be reviewed. Only an in_progress milestone at 100% may request release.
func RequestRelease(m *model.Milestone, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionRequestRelease) {
		return ErrUnauthorized
	}
	if m.IsDeleted {
		return ErrNotFound
	}
	if m.Status != model.MilestoneInProgress {
		return fmt.Errorf("%w: milestone is %s", ErrInvalidState, m.Status)
	}
	if m.Progress != 100 {
		return fmt.Errorf("%w: progress is %d, release requires 100", ErrInvalidState, m.Progress)
	}

	m.Status = model.MilestoneReleaseRequested
	m.UpdatedAt = now
	return nil
}

// ApproveMilestone accepts a release-requested milestone. Every daily
// update must have been reviewed first: an approved milestone never
// carries pending updates.
func ApproveMilestone(m *model.Milestone, updates []model.DailyUpdate, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionApproveMilestone) {
		return ErrUnauthorized
	}
	if m.IsDeleted {
		return ErrNotFound
	}
	if m.Status != model.MilestoneReleaseRequested {
		return fmt.Errorf("%w: milestone is %s", ErrInvalidState, m.Status)
	}
	for _, u := range updates {
		if u.ApprovalStatus == model.UpdatePending {
			return fmt.Errorf("%w: daily update %d is still pending review", ErrInvalidState, u.ID)
		}
	}

	m.Status = model.MilestoneApproved
	m.UpdatedAt = now
	return nil
}

// CloseMilestone is the terminal administrative step after approval.
func CloseMilestone(m *model.Milestone, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionApproveMilestone) {
		return ErrUnauthorized
	}
	if m.Status != model.MilestoneApproved {
		return fmt.Errorf("%w: milestone is %s", ErrInvalidState, m.Status)
	}

	m.Status = model.MilestoneCompleted
	m.UpdatedAt = now
	return nil
}
