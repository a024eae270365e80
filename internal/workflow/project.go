package workflow

import (
	"fmt"
	"strings"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
	"projectflow/pkg/timewindow"
)

// ProjectInput carries the fields needed to create a project.
type ProjectInput struct {
	Title     string
	StartDate time.Time
	EndDate   time.Time
	Budget    float64
}

// NewProject validates input and returns a draft project.
func NewProject(in ProjectInput, now time.Time) (*model.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: project title is required", ErrValidation)
	}
	if !timewindow.Day(in.StartDate).Before(timewindow.Day(in.EndDate)) {
		return nil, fmt.Errorf("%w: start_date must be before end_date", ErrValidation)
	}
	if in.Budget < 0 {
		return nil, fmt.Errorf("%w: budget cannot be negative", ErrValidation)
	}

	return &model.Project{
		Title:     in.Title,
		StartDate: timewindow.Day(in.StartDate),
		EndDate:   timewindow.Day(in.EndDate),
		Budget:    in.Budget,
		Status:    model.ProjectDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MilestoneInput carries the fields needed to add a milestone to a project.
type MilestoneInput struct {
	Title       string
	Description string
	Amount      float64
	StartDate   time.Time
	EndDate     time.Time
	DueDate     time.Time
}

// NewMilestone validates input against the owning project and returns a
// pending milestone. Its window must stay inside the project window.
func NewMilestone(p *model.Project, in MilestoneInput, now time.Time) (*model.Milestone, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: milestone title is required", ErrValidation)
	}
	if in.Amount < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}
	if !timewindow.Day(in.StartDate).Before(timewindow.Day(in.EndDate)) {
		return nil, fmt.Errorf("%w: start_date must be before end_date", ErrValidation)
	}

	m := &model.Milestone{
		ProjectID:   p.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		StartDate:   timewindow.Day(in.StartDate),
		EndDate:     timewindow.Day(in.EndDate),
		DueDate:     timewindow.Day(in.DueDate),
		Progress:    0,
		Status:      model.MilestonePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.DueDate.IsZero() {
		m.DueDate = m.EndDate
	}

	if err := ValidateMilestoneWindow(p, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ValidateMilestoneWindow enforces milestone window ⊆ project window.
func ValidateMilestoneWindow(p *model.Project, m *model.Milestone) error {
	if timewindow.Day(m.StartDate).Before(timewindow.Day(p.StartDate)) ||
		timewindow.Day(m.EndDate).After(timewindow.Day(p.EndDate)) {
		return fmt.Errorf("%w: milestone window [%s, %s] exceeds project window [%s, %s]",
			ErrOutOfBounds,
			timewindow.FormatDate(m.StartDate), timewindow.FormatDate(m.EndDate),
			timewindow.FormatDate(p.StartDate), timewindow.FormatDate(p.EndDate))
	}
	return nil
}

// SoftDeleteMilestone marks a milestone deleted. Deleted milestones are
// excluded from aggregate progress and from one-per-day checks.
func SoftDeleteMilestone(m *model.Milestone, role rbac.Role, now time.Time) error {
	if !rbac.HasPermission(role, rbac.PermissionManageProject) {
		return ErrUnauthorized
	}
	if m.IsDeleted {
		return ErrNotFound
	}
	m.IsDeleted = true
	m.UpdatedAt = now
	return nil
}

// OverallProgress is the arithmetic mean of progress over non-deleted
// milestones, 0 when there are none. The approved-milestone count ratio is
// deliberately not used; the two formulas diverge for partially progressed
// work and the mean is the authoritative one here.
func OverallProgress(milestones []model.Milestone) int {
	sum, n := 0, 0
	for _, m := range milestones {
		if m.IsDeleted {
			continue
		}
		sum += m.Progress
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / n
}
