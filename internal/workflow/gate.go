package workflow

import (
	"fmt"
	"strings"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

// ApproveUpdate transitions a pending daily update to approved and records
// the clamped approved_progress. The value is an input for the milestone
// state machine; it is not applied to milestone progress here.
func ApproveUpdate(u *model.DailyUpdate, approvedProgress int, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionReviewUpdate) {
		return ErrUnauthorized
	}
	if u.ApprovalStatus != model.UpdatePending {
		return fmt.Errorf("%w: update is already %s", ErrInvalidState, u.ApprovalStatus)
	}

	u.ApprovalStatus = model.UpdateApproved
	u.ApprovedProgress = ClampProgress(approvedProgress)
	u.UpdatedAt = now
	return nil
}

// RejectUpdate transitions a pending daily update to rejected with a reason.
func RejectUpdate(u *model.DailyUpdate, reason string, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionReviewUpdate) {
		return ErrUnauthorized
	}
	if u.ApprovalStatus != model.UpdatePending {
		return fmt.Errorf("%w: update is already %s", ErrInvalidState, u.ApprovalStatus)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	u.ApprovalStatus = model.UpdateRejected
	u.RejectionReason = reason
	u.UpdatedAt = now
	return nil
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
