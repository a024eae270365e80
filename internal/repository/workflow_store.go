package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/pkg/metrics"
	"projectflow/pkg/outbox"
)

// WorkflowStore 将一次工作流操作的全部写入（业务行 + outbox 事件）
// 放进同一个数据库事务，保证提交之前不会有任何副作用泄漏。
type WorkflowStore struct {
	db         *pgxpool.Pool
	projects   *ProjectRepository
	milestones *MilestoneRepository
	updates    *DailyUpdateRepository
	outbox     *outbox.Repository
	logger     *zap.Logger
}

func NewWorkflowStore(
	db *pgxpool.Pool,
	projects *ProjectRepository,
	milestones *MilestoneRepository,
	updates *DailyUpdateRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *WorkflowStore {
	return &WorkflowStore{
		db:         db,
		projects:   projects,
		milestones: milestones,
		updates:    updates,
		outbox:     outboxRepo,
		logger:     logger,
	}
}

func (s *WorkflowStore) GetProject(ctx context.Context, id int) (*model.Project, error) {
	return s.projects.FindByID(ctx, id)
}

func (s *WorkflowStore) GetMilestone(ctx context.Context, id int) (*model.Milestone, error) {
	return s.milestones.FindByID(ctx, id)
}

func (s *WorkflowStore) GetUpdate(ctx context.Context, id int) (*model.DailyUpdate, error) {
	return s.updates.FindByID(ctx, id)
}

func (s *WorkflowStore) ListUpdates(ctx context.Context, milestoneID int) ([]model.DailyUpdate, error) {
	return s.updates.ListByMilestone(ctx, milestoneID)
}

func (s *WorkflowStore) CreateProject(ctx context.Context, p *model.Project) error {
	return s.projects.Insert(ctx, p)
}

func (s *WorkflowStore) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	return s.milestones.Insert(ctx, m)
}

// CommitSubmission 在一个事务中写入日报和它的 outbox 事件。
// 里程碑每次都以乐观锁一并写回，日报不会落在一个已经被并发
// 操作推进走的里程碑上；首次提交顺带启动里程碑，projectStatus
// 非 nil 时项目状态也在同一事务中推进。
// 唯一索引冲突会以 workflow.ErrDuplicateSubmission 的形式返回。
func (s *WorkflowStore) CommitSubmission(ctx context.Context, u *model.DailyUpdate, m *model.Milestone, projectStatus *model.ProjectStatus, msgs []outbox.Message) error {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("tx", "daily_updates", time.Since(start))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertUpdateInTx(ctx, tx, u); err != nil {
		return err
	}
	if err := updateWithVersion(ctx, tx, m); err != nil {
		return err
	}
	if projectStatus != nil {
		if err := updateProjectStatusInTx(ctx, tx, m.ProjectID, *projectStatus); err != nil {
			return err
		}
	}
	if err := outbox.InsertMessages(ctx, tx, s.outbox, msgs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	s.logger.Info("Daily update committed",
		zap.Int("update_id", u.ID),
		zap.Int("milestone_id", u.MilestoneID),
	)
	return nil
}

// CommitMilestone 以乐观锁写回里程碑。projectStatus 非 nil 时，
// 所属项目的状态在同一事务中一并推进。
func (s *WorkflowStore) CommitMilestone(ctx context.Context, m *model.Milestone, projectStatus *model.ProjectStatus, msgs []outbox.Message) error {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("tx", "milestones", time.Since(start))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := updateWithVersion(ctx, tx, m); err != nil {
		return err
	}
	if projectStatus != nil {
		if err := updateProjectStatusInTx(ctx, tx, m.ProjectID, *projectStatus); err != nil {
			return err
		}
	}
	if err := outbox.InsertMessages(ctx, tx, s.outbox, msgs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	s.logger.Info("Milestone committed",
		zap.Int("milestone_id", m.ID),
		zap.String("status", string(m.Status)),
		zap.Int("version", m.Version),
	)
	return nil
}

// CommitReview 持久化一次审批决定。批准时里程碑进度在同一事务中
// 跟着日报一起落库，milestone 为 nil 表示本次决定不触碰里程碑。
func (s *WorkflowStore) CommitReview(ctx context.Context, u *model.DailyUpdate, m *model.Milestone, msgs []outbox.Message) error {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("tx", "daily_updates", time.Since(start))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := reviewUpdateInTx(ctx, tx, u); err != nil {
		return err
	}
	if m != nil {
		if err := updateWithVersion(ctx, tx, m); err != nil {
			return err
		}
	}
	if err := outbox.InsertMessages(ctx, tx, s.outbox, msgs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	s.logger.Info("Review committed",
		zap.Int("update_id", u.ID),
		zap.String("decision", string(u.ApprovalStatus)),
	)
	return nil
}
