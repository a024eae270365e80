package outbox

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Message 描述一条待写入 outbox 的业务事件
type Message struct {
	AggregateType string
	AggregateID   *int64
	RoutingKey    string
	Payload       interface{}
}

// InsertMessages 在同一事务中批量写入事件
func InsertMessages(ctx context.Context, tx pgx.Tx, repo *Repository, msgs []Message) error {
	for _, m := range msgs {
		if err := InsertEventInTx(ctx, tx, repo, m.AggregateType, m.AggregateID, m.RoutingKey, m.Payload); err != nil {
			return err
		}
	}
	return nil
}

// InsertEventInTx 在事务中插入事件到 outbox（辅助函数）
func InsertEventInTx(
	ctx context.Context,
	tx pgx.Tx,
	repo *Repository,
	aggregateType string,
	aggregateID *int64,
	routingKey string,
	payload interface{},
) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payloadJSON,
		Status:        "pending",
	}

	return repo.InsertEvent(ctx, tx, event)
}
