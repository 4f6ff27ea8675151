package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssignedTo *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates a Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	comments, sessions, current, customer, err := marshalTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, title, description, status, workflow_stage, priority, assigned_to,
            service_type, scheduled_date, customer, comments, work_sessions, current_work_session,
            total_work_time, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.WorkflowStage,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ServiceType,
		ticket.ScheduledDate,
		customer,
		comments,
		sessions,
		current,
		ticket.TotalWorkTime,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	comments, sessions, current, customer, err := marshalTicketDocs(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, workflow_stage=$4, priority=$5,
            assigned_to=$6, service_type=$7, scheduled_date=$8, customer=$9, comments=$10,
            work_sessions=$11, current_work_session=$12, total_work_time=$13, updated_at=$14
        WHERE id=$15`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.WorkflowStage,
		ticket.Priority,
		ticket.AssignedTo,
		ticket.ServiceType,
		ticket.ScheduledDate,
		customer,
		comments,
		sessions,
		current,
		ticket.TotalWorkTime,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, title, description, status, workflow_stage, priority, assigned_to,
               service_type, scheduled_date, customer, comments, work_sessions,
               current_work_session, total_work_time, created_at, updated_at
        FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, domain.ErrTicketNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, title, description, status, workflow_stage, priority, assigned_to,
                    service_type, scheduled_date, customer, comments, work_sessions,
                    current_work_session, total_work_time, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		customer []byte
		comments []byte
		sessions []byte
		current  []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.WorkflowStage,
		&ticket.Priority,
		&ticket.AssignedTo,
		&ticket.ServiceType,
		&ticket.ScheduledDate,
		&customer,
		&comments,
		&sessions,
		&current,
		&ticket.TotalWorkTime,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &ticket.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(comments, &ticket.Comments); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sessions, &ticket.WorkSessions); err != nil {
		return nil, err
	}
	if len(current) > 0 && string(current) != "null" {
		ticket.CurrentWorkSession = &domain.OpenWorkSession{}
		if err := json.Unmarshal(current, ticket.CurrentWorkSession); err != nil {
			return nil, err
		}
	}
	return &ticket, nil
}

func marshalTicketDocs(ticket *domain.Ticket) (comments, sessions, current, customer []byte, err error) {
	if ticket.Comments == nil {
		ticket.Comments = []domain.Comment{}
	}
	if ticket.WorkSessions == nil {
		ticket.WorkSessions = []domain.WorkSession{}
	}
	if comments, err = json.Marshal(ticket.Comments); err != nil {
		return
	}
	if sessions, err = json.Marshal(ticket.WorkSessions); err != nil {
		return
	}
	if current, err = json.Marshal(ticket.CurrentWorkSession); err != nil {
		return
	}
	customer, err = json.Marshal(ticket.Customer)
	return
}
