package workflow

import (
	"errors"
	"testing"

	"projectflow/internal/model"
	"projectflow/pkg/rbac"
)

func testProject() *model.Project {
	return &model.Project{
		ID:        1,
		Title:     "Office renovation",
		StartDate: date(2025, 1, 1),
		EndDate:   date(2025, 6, 30),
		Budget:    50000,
		Status:    model.ProjectInProgress,
	}
}

func TestNewProjectValidation(t *testing.T) {
	now := date(2025, 1, 1)

	tests := []struct {
		name    string
		input   ProjectInput
		wantErr error
	}{
		{
			name: "valid",
			input: ProjectInput{
				Title:     "Office renovation",
				StartDate: date(2025, 1, 1),
				EndDate:   date(2025, 6, 30),
				Budget:    50000,
			},
		},
		{
			name: "empty title",
			input: ProjectInput{
				Title:     "  ",
				StartDate: date(2025, 1, 1),
				EndDate:   date(2025, 6, 30),
			},
			wantErr: ErrValidation,
		},
		{
			name: "start after end",
			input: ProjectInput{
				Title:     "Office renovation",
				StartDate: date(2025, 7, 1),
				EndDate:   date(2025, 6, 30),
			},
			wantErr: ErrValidation,
		},
		{
			name: "negative budget",
			input: ProjectInput{
				Title:     "Office renovation",
				StartDate: date(2025, 1, 1),
				EndDate:   date(2025, 6, 30),
				Budget:    -1,
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProject(tt.input, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProject: %v", err)
			}
			if p.Status != model.ProjectDraft {
				t.Fatalf("new project must be draft, got %s", p.Status)
			}
		})
	}
}

func TestNewMilestoneWindow(t *testing.T) {
	now := date(2025, 1, 1)
	p := testProject()

	tests := []struct {
		name    string
		input   MilestoneInput
		wantErr error
	}{
		{
			name: "inside project window",
			input: MilestoneInput{
				Title:     "Phase one",
				Amount:    10000,
				StartDate: date(2025, 1, 1),
				EndDate:   date(2025, 2, 28),
			},
		},
		{
			name: "end past project end",
			input: MilestoneInput{
				Title:     "Phase two",
				Amount:    10000,
				StartDate: date(2025, 5, 1),
				EndDate:   date(2025, 7, 15),
			},
			wantErr: ErrOutOfBounds,
		},
		{
			name: "start before project start",
			input: MilestoneInput{
				Title:     "Early phase",
				Amount:    10000,
				StartDate: date(2024, 12, 1),
				EndDate:   date(2025, 1, 31),
			},
			wantErr: ErrOutOfBounds,
		},
		{
			name: "start not before end",
			input: MilestoneInput{
				Title:     "Phase one",
				Amount:    10000,
				StartDate: date(2025, 2, 1),
				EndDate:   date(2025, 2, 1),
			},
			wantErr: ErrValidation,
		},
		{
			name: "negative amount",
			input: MilestoneInput{
				Title:     "Phase one",
				Amount:    -5,
				StartDate: date(2025, 1, 1),
				EndDate:   date(2025, 2, 28),
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMilestone(p, tt.input, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMilestone: %v", err)
			}
			if m.Status != model.MilestonePending {
				t.Fatalf("new milestone must be pending, got %s", m.Status)
			}
			if m.DueDate.IsZero() {
				t.Fatal("due date must default to the end date")
			}
		})
	}
}

func TestOverallProgress(t *testing.T) {
	tests := []struct {
		name       string
		milestones []model.Milestone
		want       int
	}{
		{"no milestones", nil, 0},
		{
			"mean of progress",
			[]model.Milestone{{Progress: 100}, {Progress: 50}, {Progress: 0}},
			50,
		},
		{
			"deleted milestones excluded",
			[]model.Milestone{{Progress: 100}, {Progress: 0, IsDeleted: true}},
			100,
		},
		{
			"all deleted",
			[]model.Milestone{{Progress: 100, IsDeleted: true}},
			0,
		},
		{
			"partially progressed, none approved",
			[]model.Milestone{{Progress: 30}, {Progress: 60}},
			45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallProgress(tt.milestones); got != tt.want {
				t.Fatalf("OverallProgress = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSoftDeleteMilestone(t *testing.T) {
	now := date(2025, 2, 1)

	m := &model.Milestone{ID: 3, Status: model.MilestoneInProgress}
	if err := SoftDeleteMilestone(m, rbac.RoleFreelancer, now); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := SoftDeleteMilestone(m, rbac.RoleAdmin, now); err != nil {
		t.Fatalf("SoftDeleteMilestone: %v", err)
	}
	if !m.IsDeleted {
		t.Fatal("milestone should be marked deleted")
	}
	if err := SoftDeleteMilestone(m, rbac.RoleAdmin, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}
