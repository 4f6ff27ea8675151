package repository

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

const notificationLogKey = "ticket-engine:notification-log"

// NotificationLogRepository is the append-only delivery record log. Every
// dispatch attempt is recorded, sent or failed.
type NotificationLogRepository interface {
	Append(ctx context.Context, record *domain.DeliveryRecord) error
	List(ctx context.Context, limit int) ([]domain.DeliveryRecord, error)
}

type redisNotificationLog struct {
	client *redis.Client
}

// NewNotificationLogRepository stores delivery records as a Redis list,
// newest first.
func NewNotificationLogRepository(client *redis.Client) NotificationLogRepository {
	return &redisNotificationLog{client: client}
}

func (r *redisNotificationLog) Append(ctx context.Context, record *domain.DeliveryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.client.LPush(ctx, notificationLogKey, payload).Err()
}

func (r *redisNotificationLog) List(ctx context.Context, limit int) ([]domain.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	raw, err := r.client.LRange(ctx, notificationLogKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]domain.DeliveryRecord, 0, len(raw))
	for _, entry := range raw {
		var record domain.DeliveryRecord
		if err := json.Unmarshal([]byte(entry), &record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
