package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	contracts "projectflow/contracts/mq"
	"projectflow/internal/model"
	"projectflow/internal/repository"
	"projectflow/internal/service"
	"projectflow/pkg/util"
)

// InvoiceHandler calls the invoicing service when a milestone is approved
// and records the result as a notification to the approver.
type InvoiceHandler struct {
	invoiceClient    *service.InvoiceClient
	notificationRepo *repository.NotificationRepository
	deduper          *util.Deduper
	logger           *zap.Logger
}

func NewInvoiceHandler(
	invoiceClient *service.InvoiceClient,
	notificationRepo *repository.NotificationRepository,
	deduper *util.Deduper,
	logger *zap.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceClient:    invoiceClient,
		notificationRepo: notificationRepo,
		deduper:          deduper,
		logger:           logger,
	}
}

// HandleMilestoneApproved -- 调用发票服务开票
func (h *InvoiceHandler) HandleMilestoneApproved(ctx context.Context, raw json.RawMessage) error {
	var p contracts.InvoiceGenerationRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal invoice payload", zap.Error(err))
		return err
	}

	// 幂等性：同一里程碑只开一次票
	if !h.deduper.AcquireOnce(ctx, "invoice_generation", p.MilestoneID) {
		return nil
	}

	invoice, err := h.invoiceClient.CreateInvoice(ctx, service.InvoiceRequest{
		MilestoneID: p.MilestoneID,
		ProjectID:   p.ProjectID,
		Amount:      p.Amount,
		ApprovedBy:  p.ApprovedBy,
	})
	if err != nil {
		// 释放去重锁，让重试有机会再开票
		h.deduper.Release(ctx, "invoice_generation", p.MilestoneID)
		h.logger.Error("Failed to create invoice",
			zap.Int("milestone_id", p.MilestoneID),
			zap.Error(err),
		)
		return err
	}

	notif := &model.Notification{
		UserID:  p.ApprovedBy,
		Type:    "invoice_created",
		Content: fmt.Sprintf("里程碑 %d 的发票已生成：%s", p.MilestoneID, invoice.InvoiceID),
	}
	if err := h.notificationRepo.Insert(ctx, notif); err != nil {
		h.logger.Error("Failed to insert notification",
			zap.Int("milestone_id", p.MilestoneID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("Invoice created",
		zap.Int("milestone_id", p.MilestoneID),
		zap.String("invoice_id", invoice.InvoiceID),
	)
	return nil
}
