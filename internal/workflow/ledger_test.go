package workflow

import (
	"errors"
	"testing"
	"time"

	"projectflow/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func activeMilestone() *model.Milestone {
	return &model.Milestone{
		ID:        7,
		ProjectID: 1,
		Title:     "Foundation work",
		StartDate: date(2025, 1, 1),
		EndDate:   date(2025, 1, 10),
		Status:    model.MilestoneInProgress,
	}
}

func TestNewDailyUpdate(t *testing.T) {
	now := date(2025, 1, 5)

	valid := Submission{
		AuthorID: 42,
		Date:     date(2025, 1, 5),
		WorkDone: "poured the slab",
		Notes:    "weather held up",
	}

	tests := []struct {
		name      string
		milestone func() *model.Milestone
		existing  []model.DailyUpdate
		sub       Submission
		wantErr   error
	}{
		{
			name:      "valid submission",
			milestone: activeMilestone,
			sub:       valid,
		},
		{
			name: "pending milestone accepts submissions",
			milestone: func() *model.Milestone {
				m := activeMilestone()
				m.Status = model.MilestonePending
				return m
			},
			sub: valid,
		},
		{
			name:      "date after window",
			milestone: activeMilestone,
			sub: Submission{
				AuthorID: 42,
				Date:     date(2025, 1, 15),
				WorkDone: "poured the slab",
			},
			wantErr: ErrWindowViolation,
		},
		{
			name:      "date before window",
			milestone: activeMilestone,
			sub: Submission{
				AuthorID: 42,
				Date:     date(2024, 12, 30),
				WorkDone: "poured the slab",
			},
			wantErr: ErrWindowViolation,
		},
		{
			name:      "second submission same author same day",
			milestone: activeMilestone,
			existing: []model.DailyUpdate{
				{AuthorID: 42, Date: date(2025, 1, 5)},
			},
			sub:     valid,
			wantErr: ErrDuplicateSubmission,
		},
		{
			name:      "other author same day is fine",
			milestone: activeMilestone,
			existing: []model.DailyUpdate{
				{AuthorID: 99, Date: date(2025, 1, 5)},
			},
			sub: valid,
		},
		{
			name:      "same author other day is fine",
			milestone: activeMilestone,
			existing: []model.DailyUpdate{
				{AuthorID: 42, Date: date(2025, 1, 4)},
			},
			sub: valid,
		},
		{
			name:      "work_done too short",
			milestone: activeMilestone,
			sub: Submission{
				AuthorID: 42,
				Date:     date(2025, 1, 5),
				WorkDone: "ok",
			},
			wantErr: ErrValidation,
		},
		{
			name:      "work_done whitespace only",
			milestone: activeMilestone,
			sub: Submission{
				AuthorID: 42,
				Date:     date(2025, 1, 5),
				WorkDone: "         ",
			},
			wantErr: ErrValidation,
		},
		{
			name:      "too many photos",
			milestone: activeMilestone,
			sub: Submission{
				AuthorID:  42,
				Date:      date(2025, 1, 5),
				WorkDone:  "poured the slab",
				PhotoRefs: make([]string, 11),
			},
			wantErr: ErrTooManyPhotos,
		},
		{
			name: "release_requested milestone rejects submissions",
			milestone: func() *model.Milestone {
				m := activeMilestone()
				m.Status = model.MilestoneReleaseRequested
				return m
			},
			sub:     valid,
			wantErr: ErrInvalidState,
		},
		{
			name: "approved milestone rejects submissions",
			milestone: func() *model.Milestone {
				m := activeMilestone()
				m.Status = model.MilestoneApproved
				return m
			},
			sub:     valid,
			wantErr: ErrInvalidState,
		},
		{
			name: "deleted milestone rejects submissions",
			milestone: func() *model.Milestone {
				m := activeMilestone()
				m.IsDeleted = true
				return m
			},
			sub:     valid,
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.milestone()
			u, err := NewDailyUpdate(m, tt.existing, tt.sub, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDailyUpdate: %v", err)
			}
			if u.ApprovalStatus != model.UpdatePending {
				t.Fatalf("expected pending update, got %s", u.ApprovalStatus)
			}
			if u.MilestoneID != m.ID {
				t.Fatalf("expected milestone id %d, got %d", m.ID, u.MilestoneID)
			}
			if m.Progress != 0 {
				t.Fatalf("submission must not touch milestone progress, got %d", m.Progress)
			}
		})
	}
}

func TestCanSubmitMatchesNewDailyUpdate(t *testing.T) {
	m := activeMilestone()
	existing := []model.DailyUpdate{{AuthorID: 42, Date: date(2025, 1, 5)}}

	if CanSubmit(m, existing, 42, date(2025, 1, 5)) {
		t.Fatal("duplicate day should not be submittable")
	}
	if !CanSubmit(m, existing, 42, date(2025, 1, 6)) {
		t.Fatal("next day should be submittable")
	}
	if CanSubmit(m, nil, 42, date(2025, 2, 1)) {
		t.Fatal("out-of-window date should not be submittable")
	}
}

func TestMaxPhotosBoundaryAllowed(t *testing.T) {
	m := activeMilestone()
	sub := Submission{
		AuthorID:  42,
		Date:      date(2025, 1, 5),
		WorkDone:  "installed fixtures",
		PhotoRefs: make([]string, 10),
	}
	if _, err := NewDailyUpdate(m, nil, sub, date(2025, 1, 5)); err != nil {
		t.Fatalf("10 photos should be allowed: %v", err)
	}
}
