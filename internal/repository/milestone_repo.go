package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectflow/internal/model"
	"projectflow/internal/workflow"
	"projectflow/pkg/metrics"
)

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{
		db:     db,
		logger: logger,
	}
}

func (r *MilestoneRepository) Insert(ctx context.Context, m *model.Milestone) error {
	r.logger.Debug("Inserting milestone",
		zap.Int("project_id", m.ProjectID),
		zap.String("title", m.Title),
	)
	start := time.Now()
	defer metrics.RecordDBQueryDuration("insert", "milestones", time.Since(start))

	query := `
        INSERT INTO milestones (project_id, title, description, amount, start_date, end_date,
                                due_date, progress, status, is_deleted, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, 1, $10, $10)
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query,
		m.ProjectID,
		m.Title,
		m.Description,
		m.Amount,
		m.StartDate,
		m.EndDate,
		m.DueDate,
		m.Progress,
		m.Status,
		m.CreatedAt,
	).Scan(&m.ID)

	if err != nil {
		r.logger.Error("Failed to insert milestone", zap.Error(err))
		return err
	}
	m.Version = 1

	r.logger.Info("Milestone inserted successfully",
		zap.Int("id", m.ID),
		zap.Int("project_id", m.ProjectID),
	)
	return nil
}

func (r *MilestoneRepository) FindByID(ctx context.Context, id int) (*model.Milestone, error) {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("select", "milestones", time.Since(start))

	query := `
        SELECT id, project_id, title, description, amount, start_date, end_date, due_date,
               progress, status, is_deleted, version, created_at, updated_at
        FROM milestones
        WHERE id = $1
    `
	var m model.Milestone
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Amount,
		&m.StartDate, &m.EndDate, &m.DueDate,
		&m.Progress, &m.Status, &m.IsDeleted, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find milestone: %w", err)
	}
	return &m, nil
}

// updateWithVersion writes the milestone back inside tx, guarded by the
// version read earlier. Zero rows affected means someone else committed
// first and the whole operation must be retried from the read.
func updateWithVersion(ctx context.Context, tx pgx.Tx, m *model.Milestone) error {
	tag, err := tx.Exec(ctx, `
        UPDATE milestones
        SET progress = $1, status = $2, is_deleted = $3, version = version + 1, updated_at = NOW()
        WHERE id = $4 AND version = $5
    `, m.Progress, m.Status, m.IsDeleted, m.ID, m.Version)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrConcurrentModification
	}
	m.Version++
	return nil
}
