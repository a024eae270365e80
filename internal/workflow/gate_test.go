package workflow

import (
	"errors"
	"testing"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

func pendingUpdate() *model.DailyUpdate {
	return &model.DailyUpdate{
		ID:             3,
		MilestoneID:    7,
		AuthorID:       42,
		Date:           date(2025, 1, 5),
		WorkDone:       "poured the slab",
		ApprovalStatus: model.UpdatePending,
	}
}

func TestApproveUpdate(t *testing.T) {
	now := date(2025, 1, 6)

	t.Run("admin approves pending update", func(t *testing.T) {
		u := pendingUpdate()
		if err := ApproveUpdate(u, 80, rbac.RoleAdmin, now); err != nil {
			t.Fatalf("ApproveUpdate: %v", err)
		}
		if u.ApprovalStatus != model.UpdateApproved {
			t.Fatalf("expected approved, got %s", u.ApprovalStatus)
		}
		if u.ApprovedProgress != 80 {
			t.Fatalf("expected approved_progress 80, got %d", u.ApprovedProgress)
		}
	})

	t.Run("superadmin approves pending update", func(t *testing.T) {
		u := pendingUpdate()
		if err := ApproveUpdate(u, 50, rbac.RoleSuperAdmin, now); err != nil {
			t.Fatalf("ApproveUpdate: %v", err)
		}
	})

	t.Run("freelancer cannot approve", func(t *testing.T) {
		u := pendingUpdate()
		if err := ApproveUpdate(u, 80, rbac.RoleFreelancer, now); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if u.ApprovalStatus != model.UpdatePending {
			t.Fatalf("update must stay pending, got %s", u.ApprovalStatus)
		}
	})

	t.Run("progress is clamped", func(t *testing.T) {
		u := pendingUpdate()
		if err := ApproveUpdate(u, 150, rbac.RoleAdmin, now); err != nil {
			t.Fatalf("ApproveUpdate: %v", err)
		}
		if u.ApprovedProgress != 100 {
			t.Fatalf("expected clamp to 100, got %d", u.ApprovedProgress)
		}

		u2 := pendingUpdate()
		if err := ApproveUpdate(u2, -10, rbac.RoleAdmin, now); err != nil {
			t.Fatalf("ApproveUpdate: %v", err)
		}
		if u2.ApprovedProgress != 0 {
			t.Fatalf("expected clamp to 0, got %d", u2.ApprovedProgress)
		}
	})

	t.Run("approved update is terminal", func(t *testing.T) {
		u := pendingUpdate()
		if err := ApproveUpdate(u, 80, rbac.RoleAdmin, now); err != nil {
			t.Fatalf("ApproveUpdate: %v", err)
		}
		if err := ApproveUpdate(u, 90, rbac.RoleAdmin, now); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
		if err := RejectUpdate(u, "changed my mind", rbac.RoleAdmin, now); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState on reject after approve, got %v", err)
		}
	})
}

func TestRejectUpdate(t *testing.T) {
	now := date(2025, 1, 6)

	t.Run("admin rejects with reason", func(t *testing.T) {
		u := pendingUpdate()
		if err := RejectUpdate(u, "photos do not match the log", rbac.RoleAdmin, now); err != nil {
			t.Fatalf("RejectUpdate: %v", err)
		}
		if u.ApprovalStatus != model.UpdateRejected {
			t.Fatalf("expected rejected, got %s", u.ApprovalStatus)
		}
		if u.RejectionReason != "photos do not match the log" {
			t.Fatalf("unexpected reason %q", u.RejectionReason)
		}
	})

	t.Run("blank reason fails", func(t *testing.T) {
		u := pendingUpdate()
		if err := RejectUpdate(u, "   ", rbac.RoleAdmin, now); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("freelancer cannot reject", func(t *testing.T) {
		u := pendingUpdate()
		if err := RejectUpdate(u, "nope", rbac.RoleFreelancer, now); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejected update is terminal", func(t *testing.T) {
		u := pendingUpdate()
		if err := RejectUpdate(u, "incomplete log", rbac.RoleAdmin, now); err != nil {
			t.Fatalf("RejectUpdate: %v", err)
		}
		if err := ApproveUpdate(u, 60, rbac.RoleAdmin, now); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState after rejection, got %v", err)
		}
	})
}
