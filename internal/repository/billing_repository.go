package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// BillingQueueRepository stores invoicing-ready snapshots. Items are
// append-only; nothing updates or deletes them.
type BillingQueueRepository interface {
	Add(ctx context.Context, item *domain.BillingQueueItem) error
	List(ctx context.Context, limit, offset int) ([]domain.BillingQueueItem, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.BillingQueueItem, error)
}

type billingQueueRepository struct {
	pool *pgxpool.Pool
}

// NewBillingQueueRepository instantiates a Postgres-backed repository.
func NewBillingQueueRepository(pool *pgxpool.Pool) BillingQueueRepository {
	return &billingQueueRepository{pool: pool}
}

func (r *billingQueueRepository) Add(ctx context.Context, item *domain.BillingQueueItem) error {
	snapshot, err := json.Marshal(item.TicketData)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO billing_queue (queue_item_id, ticket_id, added_to_queue_at, ticket_data)
        VALUES ($1, $2, $3, $4)`
	_, err = r.pool.Exec(ctx, query,
		item.QueueItemID,
		item.TicketID,
		item.AddedToQueueAt,
		snapshot,
	)
	return err
}

func (r *billingQueueRepository) List(ctx context.Context, limit, offset int) ([]domain.BillingQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT queue_item_id, ticket_id, added_to_queue_at, ticket_data
        FROM billing_queue ORDER BY added_to_queue_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBillingItems(rows)
}

func (r *billingQueueRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.BillingQueueItem, error) {
	const query = `
        SELECT queue_item_id, ticket_id, added_to_queue_at, ticket_data
        FROM billing_queue WHERE ticket_id=$1 ORDER BY added_to_queue_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBillingItems(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanBillingItems(rows pgxRows) ([]domain.BillingQueueItem, error) {
	var items []domain.BillingQueueItem
	for rows.Next() {
		var (
			item     domain.BillingQueueItem
			snapshot []byte
		)
		if err := rows.Scan(&item.QueueItemID, &item.TicketID, &item.AddedToQueueAt, &snapshot); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snapshot, &item.TicketData); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
