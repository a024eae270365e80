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

// ReleaseRequestedHandler notifies reviewers that a milestone is at 100%
// and its payment wants a look.
type ReleaseRequestedHandler struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	deduper          *util.Deduper
	logger           *zap.Logger
}

func NewReleaseRequestedHandler(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	deduper *util.Deduper,
	logger *zap.Logger,
) *ReleaseRequestedHandler {
	return &ReleaseRequestedHandler{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		deduper:          deduper,
		logger:           logger,
	}
}

// HandleReleaseRequested -- 写入 notifications 站内通知给审核人
func (h *ReleaseRequestedHandler) HandleReleaseRequested(ctx context.Context, raw json.RawMessage) error {
	var p contracts.PaymentReleaseRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal release requested payload", zap.Error(err))
		return err
	}

	// 一个里程碑只会请求一次放款
	if !h.deduper.AcquireOnce(ctx, "release_requested_notification", p.MilestoneID) {
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
			Type:    "release_requested",
			Content: fmt.Sprintf("里程碑 %d 已完成，申请放款 %.2f，等待审批", p.MilestoneID, p.Amount),
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

	h.logger.Info("Reviewers notified of release request",
		zap.Int("milestone_id", p.MilestoneID),
		zap.Float64("amount", p.Amount),
	)
	return nil
}
