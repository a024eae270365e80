package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	contracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/workflow"
	"projectflow/pkg/metrics"
	"projectflow/pkg/outbox"
	"projectflow/pkg/rbac"
	"projectflow/pkg/timewindow"
)

// maxConflictRetries bounds the read-validate-write loop when an
// optimistic version check loses a race.
const maxConflictRetries = 3

// Actor identifies the authenticated caller of a workflow operation.
type Actor struct {
	ID   int
	Role rbac.Role
}

// Store is the persistence contract of the workflow orchestrator. Reads
// return current rows; Commit* methods put every write of one operation,
// outbox events included, into a single transaction. Every milestone
// passed to a Commit* method goes through the optimistic version check.
type Store interface {
	GetProject(ctx context.Context, id int) (*model.Project, error)
	GetMilestone(ctx context.Context, id int) (*model.Milestone, error)
	GetUpdate(ctx context.Context, id int) (*model.DailyUpdate, error)
	ListUpdates(ctx context.Context, milestoneID int) ([]model.DailyUpdate, error)

	CreateProject(ctx context.Context, p *model.Project) error
	CreateMilestone(ctx context.Context, m *model.Milestone) error
	CommitSubmission(ctx context.Context, u *model.DailyUpdate, m *model.Milestone, projectStatus *model.ProjectStatus, msgs []outbox.Message) error
	CommitMilestone(ctx context.Context, m *model.Milestone, projectStatus *model.ProjectStatus, msgs []outbox.Message) error
	CommitReview(ctx context.Context, u *model.DailyUpdate, m *model.Milestone, msgs []outbox.Message) error
}

// WorkflowService orchestrates milestone and daily-update operations:
// read current state, run the pure transition, commit atomically, and
// retry from the read when a version conflict says someone got there first.
type WorkflowService struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewWorkflowService(store Store, logger *zap.Logger) *WorkflowService {
	return &WorkflowService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// CreateProject creates a draft project.
func (s *WorkflowService) CreateProject(ctx context.Context, actor Actor, in workflow.ProjectInput) (*model.Project, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionManageProject); err != nil {
		metrics.RecordTransition("create_project", "denied")
		return nil, workflow.ErrUnauthorized
	}

	p, err := workflow.NewProject(in, s.now())
	if err != nil {
		metrics.RecordTransition("create_project", "error")
		return nil, err
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		metrics.RecordTransition("create_project", "error")
		return nil, err
	}

	metrics.RecordTransition("create_project", "ok")
	s.logger.Info("Project created", zap.Int("project_id", p.ID), zap.Int("actor_id", actor.ID))
	return p, nil
}

// AddMilestone attaches a pending milestone to a project. The milestone
// window must fit inside the project window.
func (s *WorkflowService) AddMilestone(ctx context.Context, actor Actor, projectID int, in workflow.MilestoneInput) (*model.Milestone, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionManageProject); err != nil {
		metrics.RecordTransition("add_milestone", "denied")
		return nil, workflow.ErrUnauthorized
	}

	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	m, err := workflow.NewMilestone(p, in, s.now())
	if err != nil {
		metrics.RecordTransition("add_milestone", "error")
		return nil, err
	}
	if err := s.store.CreateMilestone(ctx, m); err != nil {
		metrics.RecordTransition("add_milestone", "error")
		return nil, err
	}

	metrics.RecordTransition("add_milestone", "ok")
	s.logger.Info("Milestone created",
		zap.Int("milestone_id", m.ID),
		zap.Int("project_id", projectID),
	)
	return m, nil
}

// SubmitDailyUpdate appends a dated update to a milestone's ledger. The
// first submission against a pending milestone starts it, and starting the
// first milestone of a draft project moves the project to in_progress; all
// of that lands in one transaction with the update.submitted event.
func (s *WorkflowService) SubmitDailyUpdate(ctx context.Context, actor Actor, milestoneID int, sub workflow.Submission) (*model.DailyUpdate, error) {
	if err := rbac.CheckPermission(actor.Role, rbac.PermissionSubmitUpdate); err != nil {
		metrics.RecordTransition("submit_update", "denied")
		return nil, workflow.ErrUnauthorized
	}
	sub.AuthorID = actor.ID

	var created *model.DailyUpdate
	err := s.withConflictRetry(ctx, "submit_update", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		p, err := s.store.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		existing, err := s.store.ListUpdates(ctx, milestoneID)
		if err != nil {
			return err
		}

		now := s.now()
		u, err := workflow.NewDailyUpdate(m, existing, sub, now)
		if err != nil {
			return err
		}

		var projectStatus *model.ProjectStatus
		if m.Status == model.MilestonePending {
			workflow.Start(m, now)
			if p.Status == model.ProjectDraft {
				inProgress := model.ProjectInProgress
				projectStatus = &inProgress
			}
		}

		msgs := []outbox.Message{{
			AggregateType: "daily_update",
			RoutingKey:    contracts.KeyUpdateSubmitted,
			Payload: contracts.DailyUpdateSubmittedPayload{
				MilestoneID: m.ID,
				ProjectID:   m.ProjectID,
				AuthorID:    sub.AuthorID,
				Date:        timewindow.FormatDate(u.Date),
				SubmittedAt: now,
			},
		}}

		// The milestone rides along with its version check on every
		// submission; a read made stale by a concurrent transition loses
		// the race at commit instead of landing a pending update.
		if err := s.store.CommitSubmission(ctx, u, m, projectStatus, msgs); err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		metrics.RecordTransition("submit_update", "error")
		return nil, err
	}

	metrics.RecordTransition("submit_update", "ok")
	s.logger.Info("Daily update submitted",
		zap.Int("update_id", created.ID),
		zap.Int("milestone_id", milestoneID),
		zap.Int("author_id", actor.ID),
	)
	return created, nil
}

// ApproveUpdate accepts a pending daily update and folds the approved
// progress into the milestone in the same transaction.
func (s *WorkflowService) ApproveUpdate(ctx context.Context, actor Actor, updateID, approvedProgress int) (*model.DailyUpdate, error) {
	var reviewed *model.DailyUpdate
	err := s.withConflictRetry(ctx, "approve_update", func(ctx context.Context) error {
		u, err := s.store.GetUpdate(ctx, updateID)
		if err != nil {
			return err
		}
		m, err := s.store.GetMilestone(ctx, u.MilestoneID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := workflow.ApproveUpdate(u, approvedProgress, actor.Role, now); err != nil {
			return err
		}
		workflow.ApplyApprovedProgress(m, u.ApprovedProgress, now)

		msgs := []outbox.Message{{
			AggregateType: "daily_update",
			AggregateID:   int64ptr(u.ID),
			RoutingKey:    contracts.KeyUpdateReviewed,
			Payload: contracts.DailyUpdateReviewedPayload{
				UpdateID:         u.ID,
				MilestoneID:      u.MilestoneID,
				AuthorID:         u.AuthorID,
				Status:           string(model.UpdateApproved),
				ApprovedProgress: u.ApprovedProgress,
				ReviewedBy:       actor.ID,
				ReviewedAt:       now,
			},
		}}

		if err := s.store.CommitReview(ctx, u, m, msgs); err != nil {
			return err
		}
		reviewed = u
		return nil
	})
	if err != nil {
		metrics.RecordTransition("approve_update", "error")
		return nil, err
	}

	metrics.RecordTransition("approve_update", "ok")
	s.logger.Info("Daily update approved",
		zap.Int("update_id", updateID),
		zap.Int("reviewed_by", actor.ID),
	)
	return reviewed, nil
}

// RejectUpdate rejects a pending daily update with a reason. The milestone
// is untouched; rejection never moves progress.
func (s *WorkflowService) RejectUpdate(ctx context.Context, actor Actor, updateID int, reason string) (*model.DailyUpdate, error) {
	var reviewed *model.DailyUpdate
	err := s.withConflictRetry(ctx, "reject_update", func(ctx context.Context) error {
		u, err := s.store.GetUpdate(ctx, updateID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := workflow.RejectUpdate(u, reason, actor.Role, now); err != nil {
			return err
		}

		msgs := []outbox.Message{{
			AggregateType: "daily_update",
			AggregateID:   int64ptr(u.ID),
			RoutingKey:    contracts.KeyUpdateReviewed,
			Payload: contracts.DailyUpdateReviewedPayload{
				UpdateID:        u.ID,
				MilestoneID:     u.MilestoneID,
				AuthorID:        u.AuthorID,
				Status:          string(model.UpdateRejected),
				RejectionReason: u.RejectionReason,
				ReviewedBy:      actor.ID,
				ReviewedAt:      now,
			},
		}}

		if err := s.store.CommitReview(ctx, u, nil, msgs); err != nil {
			return err
		}
		reviewed = u
		return nil
	})
	if err != nil {
		metrics.RecordTransition("reject_update", "error")
		return nil, err
	}

	metrics.RecordTransition("reject_update", "ok")
	s.logger.Info("Daily update rejected",
		zap.Int("update_id", updateID),
		zap.Int("reviewed_by", actor.ID),
	)
	return reviewed, nil
}

// AdvanceProgress applies a freelancer-initiated progress change to a
// milestone, delta or absolute.
func (s *WorkflowService) AdvanceProgress(ctx context.Context, actor Actor, milestoneID int, change workflow.ProgressChange) (*model.Milestone, error) {
	var out *model.Milestone
	err := s.withConflictRetry(ctx, "advance_progress", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		p, err := s.store.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}

		wasPending := m.Status == model.MilestonePending
		if err := workflow.AdvanceProgress(m, change, actor.Role, s.now()); err != nil {
			return err
		}

		var projectStatus *model.ProjectStatus
		if wasPending && p.Status == model.ProjectDraft {
			inProgress := model.ProjectInProgress
			projectStatus = &inProgress
		}

		if err := s.store.CommitMilestone(ctx, m, projectStatus, nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		metrics.RecordTransition("advance_progress", "error")
		return nil, err
	}

	metrics.RecordTransition("advance_progress", "ok")
	return out, nil
}

// RequestRelease moves an in_progress milestone at 100% to
// release_requested and emits the payment-review event.
func (s *WorkflowService) RequestRelease(ctx context.Context, actor Actor, milestoneID int) (*model.Milestone, error) {
	var out *model.Milestone
	err := s.withConflictRetry(ctx, "request_release", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := workflow.RequestRelease(m, actor.Role, now); err != nil {
			return err
		}

		msgs := []outbox.Message{{
			AggregateType: "milestone",
			AggregateID:   int64ptr(m.ID),
			RoutingKey:    contracts.KeyPaymentReleaseRequested,
			Payload: contracts.PaymentReleaseRequestedPayload{
				MilestoneID: m.ID,
				ProjectID:   m.ProjectID,
				Amount:      m.Amount,
				RequestedBy: actor.ID,
				RequestedAt: now,
			},
		}}

		if err := s.store.CommitMilestone(ctx, m, nil, msgs); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		metrics.RecordTransition("request_release", "error")
		return nil, err
	}

	metrics.RecordTransition("request_release", "ok")
	s.logger.Info("Payment release requested",
		zap.Int("milestone_id", milestoneID),
		zap.Int("requested_by", actor.ID),
	)
	return out, nil
}

// ApproveMilestone accepts a release-requested milestone once every daily
// update on it has been reviewed, and emits the invoice-generation event.
func (s *WorkflowService) ApproveMilestone(ctx context.Context, actor Actor, milestoneID int) (*model.Milestone, error) {
	var out *model.Milestone
	err := s.withConflictRetry(ctx, "approve_milestone", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		updates, err := s.store.ListUpdates(ctx, milestoneID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := workflow.ApproveMilestone(m, updates, actor.Role, now); err != nil {
			return err
		}

		msgs := []outbox.Message{{
			AggregateType: "milestone",
			AggregateID:   int64ptr(m.ID),
			RoutingKey:    contracts.KeyInvoiceRequested,
			Payload: contracts.InvoiceGenerationRequestedPayload{
				MilestoneID: m.ID,
				ProjectID:   m.ProjectID,
				Amount:      m.Amount,
				ApprovedBy:  actor.ID,
				ApprovedAt:  now,
			},
		}}

		if err := s.store.CommitMilestone(ctx, m, nil, msgs); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		metrics.RecordTransition("approve_milestone", "error")
		return nil, err
	}

	metrics.RecordTransition("approve_milestone", "ok")
	s.logger.Info("Milestone approved",
		zap.Int("milestone_id", milestoneID),
		zap.Int("approved_by", actor.ID),
	)
	return out, nil
}

// CloseMilestone completes an approved milestone. When it was the last
// open milestone of the project, the project is completed as well.
func (s *WorkflowService) CloseMilestone(ctx context.Context, actor Actor, milestoneID int) (*model.Milestone, error) {
	var out *model.Milestone
	err := s.withConflictRetry(ctx, "close_milestone", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		p, err := s.store.GetProject(ctx, m.ProjectID)
		if err != nil {
			return err
		}

		if err := workflow.CloseMilestone(m, actor.Role, s.now()); err != nil {
			return err
		}

		var projectStatus *model.ProjectStatus
		if allSiblingsCompleted(p.Milestones, m.ID) {
			completed := model.ProjectCompleted
			projectStatus = &completed
		}

		if err := s.store.CommitMilestone(ctx, m, projectStatus, nil); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		metrics.RecordTransition("close_milestone", "error")
		return nil, err
	}

	metrics.RecordTransition("close_milestone", "ok")
	return out, nil
}

// DeleteMilestone soft-deletes a milestone. It drops out of aggregate
// progress immediately; its ledger rows stay for audit.
func (s *WorkflowService) DeleteMilestone(ctx context.Context, actor Actor, milestoneID int) error {
	err := s.withConflictRetry(ctx, "delete_milestone", func(ctx context.Context) error {
		m, err := s.store.GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		if err := workflow.SoftDeleteMilestone(m, actor.Role, s.now()); err != nil {
			return err
		}
		return s.store.CommitMilestone(ctx, m, nil, nil)
	})
	if err != nil {
		metrics.RecordTransition("delete_milestone", "error")
		return err
	}

	metrics.RecordTransition("delete_milestone", "ok")
	s.logger.Info("Milestone soft-deleted",
		zap.Int("milestone_id", milestoneID),
		zap.Int("actor_id", actor.ID),
	)
	return nil
}

// GetMilestone returns a milestone with its full update ledger.
func (s *WorkflowService) GetMilestone(ctx context.Context, milestoneID int) (*model.Milestone, []model.DailyUpdate, error) {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, nil, err
	}
	if m.IsDeleted {
		return nil, nil, workflow.ErrNotFound
	}
	updates, err := s.store.ListUpdates(ctx, milestoneID)
	if err != nil {
		return nil, nil, err
	}
	return m, updates, nil
}

// withConflictRetry reruns fn from the read when the commit lost a version
// race. Every other error is surfaced as-is.
func (s *WorkflowService) withConflictRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, workflow.ErrConcurrentModification) {
			return err
		}
		metrics.RecordVersionConflictRetry(operation)
		s.logger.Warn("Version conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
		)
	}
	return err
}

func allSiblingsCompleted(milestones []model.Milestone, closingID int) bool {
	for _, sib := range milestones {
		if sib.IsDeleted || sib.ID == closingID {
			continue
		}
		if sib.Status != model.MilestoneCompleted {
			return false
		}
	}
	return true
}

func int64ptr(v int) *int64 {
	x := int64(v)
	return &x
}
