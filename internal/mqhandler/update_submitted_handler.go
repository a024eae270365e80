package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	contracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/pkg/util"
)

// UpdateSubmittedHandler fans a new daily update out to every reviewer as
// an in-app notification.
type UpdateSubmittedHandler struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	deduper          *util.Deduper
	logger           *zap.Logger
}

func NewUpdateSubmittedHandler(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	deduper *util.Deduper,
	logger *zap.Logger,
) *UpdateSubmittedHandler {
	return &UpdateSubmittedHandler{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		deduper:          deduper,
		logger:           logger,
	}
}

// HandleUpdateSubmitted -- 写入 notifications 站内通知给审核人
func (h *UpdateSubmittedHandler) HandleUpdateSubmitted(ctx context.Context, raw json.RawMessage) error {
	var p contracts.DailyUpdateSubmittedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal update submitted payload", zap.Error(err))
		return err
	}

	// 幂等性：同一份日报最多通知一次
	eventKey := fmt.Sprintf("%d:%d:%s", p.MilestoneID, p.AuthorID, p.Date)
	if !h.deduper.AcquireOnceKey(ctx, "update_submitted_notification", eventKey) {
		return nil
	}

	reviewers, err := listReviewers(ctx, h.userRepo)
	if err != nil {
		h.logger.Error("Failed to list reviewers", zap.Error(err))
		return err
	}

	for _, reviewer := range reviewers {
		notif := &model.Notification{
			UserID:  reviewer.ID,
			Type:    "update_submitted",
			Content: fmt.Sprintf("里程碑 %d 有新的日报（%s）等待审核", p.MilestoneID, p.Date),
		}
		if err := h.notificationRepo.Insert(ctx, notif); err != nil {
			h.logger.Error("Failed to insert notification",
				zap.Int("milestone_id", p.MilestoneID),
				zap.Int("user_id", reviewer.ID),
				zap.Error(err),
			)
			return err
		}
	}

	h.logger.Info("Reviewers notified of new daily update",
		zap.Int("milestone_id", p.MilestoneID),
		zap.Int("author_id", p.AuthorID),
		zap.Int("reviewers", len(reviewers)),
	)
	return nil
}
