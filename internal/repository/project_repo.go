package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"projectflow/internal/model"
	"projectflow/internal/workflow"
	"projectflow/pkg/metrics"
)

type ProjectRepository struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Insert stores a new project and fills in its generated id.
func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("insert", "projects", time.Since(start))

	query := `
        INSERT INTO projects (title, start_date, end_date, budget, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        RETURNING id
    `
	return r.db.QueryRow(ctx, query,
		p.Title,
		p.StartDate,
		p.EndDate,
		p.Budget,
		p.Status,
		p.CreatedAt,
	).Scan(&p.ID)
}

// FindByID returns the project with its milestones loaded, soft-deleted
// ones included (callers filter where it matters).
func (r *ProjectRepository) FindByID(ctx context.Context, id int) (*model.Project, error) {
	start := time.Now()
	defer metrics.RecordDBQueryDuration("select", "projects", time.Since(start))

	query := `
        SELECT id, title, start_date, end_date, budget, status, created_at, updated_at
        FROM projects
        WHERE id = $1
    `
	var p model.Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.StartDate, &p.EndDate, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	milestones, err := r.milestonesByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Milestones = milestones
	return &p, nil
}

func (r *ProjectRepository) milestonesByProject(ctx context.Context, projectID int) ([]model.Milestone, error) {
	query := `
        SELECT id, project_id, title, description, amount, start_date, end_date, due_date,
               progress, status, is_deleted, version, created_at, updated_at
        FROM milestones
        WHERE project_id = $1
        ORDER BY start_date ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []model.Milestone
	for rows.Next() {
		var m model.Milestone
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Amount,
			&m.StartDate, &m.EndDate, &m.DueDate,
			&m.Progress, &m.Status, &m.IsDeleted, &m.Version, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// updateProjectStatusInTx rolls the project status up inside the caller's
// transaction, e.g. draft -> in_progress once work starts.
func updateProjectStatusInTx(ctx context.Context, tx pgx.Tx, id int, status model.ProjectStatus) error {
	if _, err := tx.Exec(ctx, `
        UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2
    `, status, id); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	return nil
}
