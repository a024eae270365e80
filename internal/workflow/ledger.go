package workflow

import (
	"fmt"
	"strings"
	"time"

	"projectflow/internal/model"
	"projectflow/pkg/timewindow"
)

const (
	// MinWorkDoneLength is the minimum length of the work_done field.
	MinWorkDoneLength = 5
	// MaxPhotoRefs bounds the number of photo references per update.
	MaxPhotoRefs = 10
)

// Submission carries the caller-supplied fields of a new daily update.
// Photo references are opaque strings resolved by the file-storage
// collaborator before the ledger is touched.
type Submission struct {
	AuthorID  int
	Date      time.Time
	WorkDone  string
	Notes     string
	PhotoRefs []string
}

// CanSubmit reports whether author may file an update for date against m.
// True iff the milestone still accepts updates, the date falls inside its
// window, and no update exists for (milestone, author, date).
func CanSubmit(m *model.Milestone, existing []model.DailyUpdate, authorID int, date time.Time) bool {
	if m.IsDeleted {
		return false
	}
	if m.Status != model.MilestonePending && m.Status != model.MilestoneInProgress {
		return false
	}
	if !timewindow.IsWithinWindow(date, m.StartDate, m.EndDate) {
		return false
	}
	return !hasUpdateForDay(existing, authorID, date)
}

// NewDailyUpdate validates sub against the milestone and its current ledger
// and returns the pending update to append. Milestone progress is not
// touched here; that happens only when an update is approved.
func NewDailyUpdate(m *model.Milestone, existing []model.DailyUpdate, sub Submission, now time.Time) (*model.DailyUpdate, error) {
	if m.IsDeleted {
		return nil, ErrNotFound
	}
	if m.Status != model.MilestonePending && m.Status != model.MilestoneInProgress {
		return nil, fmt.Errorf("%w: milestone is %s", ErrInvalidState, m.Status)
	}
	if !timewindow.IsWithinWindow(sub.Date, m.StartDate, m.EndDate) {
		return nil, ErrWindowViolation
	}
	if hasUpdateForDay(existing, sub.AuthorID, sub.Date) {
		return nil, ErrDuplicateSubmission
	}
	if len(strings.TrimSpace(sub.WorkDone)) < MinWorkDoneLength {
		return nil, fmt.Errorf("%w: work_done must be at least %d characters", ErrValidation, MinWorkDoneLength)
	}
	if len(sub.PhotoRefs) > MaxPhotoRefs {
		return nil, ErrTooManyPhotos
	}

	return &model.DailyUpdate{
		MilestoneID:    m.ID,
		AuthorID:       sub.AuthorID,
		Date:           timewindow.Day(sub.Date),
		WorkDone:       strings.TrimSpace(sub.WorkDone),
		Notes:          strings.TrimSpace(sub.Notes),
		PhotoRefs:      sub.PhotoRefs,
		ApprovalStatus: model.UpdatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func hasUpdateForDay(updates []model.DailyUpdate, authorID int, date time.Time) bool {
	day := timewindow.Day(date)
	for _, u := range updates {
		if u.AuthorID == authorID && timewindow.Day(u.Date).Equal(day) {
			return true
		}
	}
	return false
}
