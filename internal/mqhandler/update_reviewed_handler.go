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

// UpdateReviewedHandler tells the author how their daily update fared.
type UpdateReviewedHandler struct {
	notificationRepo *repository.NotificationRepository
	deduper          *util.Deduper
	logger           *zap.Logger
}

func NewUpdateReviewedHandler(
	notificationRepo *repository.NotificationRepository,
	deduper *util.Deduper,
	logger *zap.Logger,
) *UpdateReviewedHandler {
	return &UpdateReviewedHandler{
		notificationRepo: notificationRepo,
		deduper:          deduper,
		logger:           logger,
	}
}

// HandleUpdateReviewed -- 写入 notifications 站内通知给日报作者
func (h *UpdateReviewedHandler) HandleUpdateReviewed(ctx context.Context, raw json.RawMessage) error {
	var p contracts.DailyUpdateReviewedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal update reviewed payload", zap.Error(err))
		return err
	}

	if !h.deduper.AcquireOnce(ctx, "update_reviewed_notification", p.UpdateID) {
		return nil
	}

	var content string
	if p.Status == string(model.UpdateApproved) {
		content = fmt.Sprintf("你的日报已通过审核，进度记为 %d%%", p.ApprovedProgress)
	} else {
		content = fmt.Sprintf("你的日报被驳回：%s", p.RejectionReason)
	}

	notif := &model.Notification{
		UserID:  p.AuthorID,
		Type:    "update_reviewed",
		Content: content,
	}
	if err := h.notificationRepo.Insert(ctx, notif); err != nil {
		h.logger.Error("Failed to insert notification",
			zap.Int("update_id", p.UpdateID),
			zap.Int("user_id", p.AuthorID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Author notified of review decision",
		zap.Int("update_id", p.UpdateID),
		zap.String("status", p.Status),
	)
	return nil
}
