package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"projectflow/internal/model"
	"projectflow/internal/workflow"
	"projectflow/pkg/metrics"
)

const uniqueViolation = "23505"

type DailyUpdateRepository struct {
	db *pgxpool.Pool
}

func NewDailyUpdateRepository(db *pgxpool.Pool) *DailyUpdateRepository {
	return &DailyUpdateRepository{db: db}
}

func (r *DailyUpdateRepository) FindByID(ctx context.Context, id int) (*model.DailyUpdate, error) {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("select", "daily_updates", time.Since(start))

	query := `
        SELECT id, milestone_id, author_id, update_date, work_done, notes, photo_refs,
               approval_status, approved_progress, rejection_reason, created_at, updated_at
        FROM daily_updates
        WHERE id = $1
    `
	var u model.DailyUpdate
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.MilestoneID, &u.AuthorID, &u.Date, &u.WorkDone, &u.Notes, &u.PhotoRefs,
		&u.ApprovalStatus, &u.ApprovedProgress, &u.RejectionReason, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find daily update: %w", err)
	}
	return &u, nil
}

func (r *DailyUpdateRepository) ListByMilestone(ctx context.Context, milestoneID int) ([]model.DailyUpdate, error) {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("select", "daily_updates", time.Since(start))

	query := `
        SELECT id, milestone_id, author_id, update_date, work_done, notes, photo_refs,
               approval_status, approved_progress, rejection_reason, created_at, updated_at
        FROM daily_updates
        WHERE milestone_id = $1
        ORDER BY update_date ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily updates: %w", err)
	}
	defer rows.Close()

	var updates []model.DailyUpdate
	for rows.Next() {
		var u model.DailyUpdate
		if err := rows.Scan(
			&u.ID, &u.MilestoneID, &u.AuthorID, &u.Date, &u.WorkDone, &u.Notes, &u.PhotoRefs,
			&u.ApprovalStatus, &u.ApprovedProgress, &u.RejectionReason, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// insertInTx appends the update to the ledger. The unique index on
// (milestone_id, author_id, update_date) backstops the duplicate check
// when two submissions race.
func insertUpdateInTx(ctx context.Context, tx pgx.Tx, u *model.DailyUpdate) error {
	query := `
        INSERT INTO daily_updates (milestone_id, author_id, update_date, work_done, notes,
                                   photo_refs, approval_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
        RETURNING id
    `
	err := tx.QueryRow(ctx, query,
		u.MilestoneID,
		u.AuthorID,
		u.Date,
		u.WorkDone,
		u.Notes,
		u.PhotoRefs,
		u.ApprovalStatus,
		u.CreatedAt,
	).Scan(&u.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return workflow.ErrDuplicateSubmission
		}
		return fmt.Errorf("failed to insert daily update: %w", err)
	}
	return nil
}

// reviewInTx persists an approve/reject decision. The status guard in the
// WHERE clause keeps reviewed updates terminal even under racing admins.
func reviewUpdateInTx(ctx context.Context, tx pgx.Tx, u *model.DailyUpdate) error {
	tag, err := tx.Exec(ctx, `
        UPDATE daily_updates
        SET approval_status = $1, approved_progress = $2, rejection_reason = $3, updated_at = NOW()
        WHERE id = $4 AND approval_status = 'pending'
    `, u.ApprovalStatus, u.ApprovedProgress, u.RejectionReason, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update daily update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workflow.ErrConcurrentModification
	}
	return nil
}
