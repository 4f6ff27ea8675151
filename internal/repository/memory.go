package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// In-memory implementations of every repository. They back the service
// when no POSTGRES_DSN is configured and double as test fixtures.

type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository returns an in-memory TicketRepository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *memoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return domain.ErrTicketNotFound
	}
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	clone := cloneTicket(&ticket)
	return &clone, nil
}

func (r *memoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !matchesFilter(&ticket, filter) {
			continue
		}
		result = append(result, cloneTicket(&ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	result = result[offset:]
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
		return false
	}
	if filter.AssignedTo != nil {
		if ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == p {
			return true
		}
	}
	return false
}

// cloneTicket deep-copies the slices and pointers so callers never share
// state with the store.
func cloneTicket(t *domain.Ticket) domain.Ticket {
	clone := *t
	clone.Comments = append([]domain.Comment{}, t.Comments...)
	clone.WorkSessions = append([]domain.WorkSession{}, t.WorkSessions...)
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		clone.AssignedTo = &assignee
	}
	if t.ScheduledDate != nil {
		scheduled := *t.ScheduledDate
		clone.ScheduledDate = &scheduled
	}
	if t.CurrentWorkSession != nil {
		session := *t.CurrentWorkSession
		clone.CurrentWorkSession = &session
	}
	return clone
}

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

// NewMemoryUserRepository returns an in-memory UserRepository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepository) ListByRoles(_ context.Context, roles ...domain.UserRole) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.User
	for _, user := range r.users {
		for _, role := range roles {
			if user.Role == role {
				result = append(result, user)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type memoryBillingQueue struct {
	mu    sync.RWMutex
	items []domain.BillingQueueItem
}

// NewMemoryBillingQueueRepository returns an in-memory BillingQueueRepository.
func NewMemoryBillingQueueRepository() BillingQueueRepository {
	return &memoryBillingQueue{}
}

func (r *memoryBillingQueue) Add(_ context.Context, item *domain.BillingQueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *item)
	return nil
}

func (r *memoryBillingQueue) List(_ context.Context, limit, offset int) ([]domain.BillingQueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	// newest first, matching the SQL ordering
	reversed := make([]domain.BillingQueueItem, 0, len(r.items))
	for i := len(r.items) - 1; i >= 0; i-- {
		reversed = append(reversed, r.items[i])
	}
	if offset >= len(reversed) {
		return []domain.BillingQueueItem{}, nil
	}
	reversed = reversed[offset:]
	if limit < len(reversed) {
		reversed = reversed[:limit]
	}
	return reversed, nil
}

func (r *memoryBillingQueue) ListByTicket(_ context.Context, ticketID string) ([]domain.BillingQueueItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.BillingQueueItem
	for _, item := range r.items {
		if item.TicketID == ticketID {
			result = append(result, item)
		}
	}
	return result, nil
}

type memoryNotificationLog struct {
	mu      sync.RWMutex
	records []domain.DeliveryRecord
}

// NewMemoryNotificationLog returns an in-memory NotificationLogRepository.
func NewMemoryNotificationLog() NotificationLogRepository {
	return &memoryNotificationLog{}
}

func (r *memoryNotificationLog) Append(_ context.Context, record *domain.DeliveryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryNotificationLog) List(_ context.Context, limit int) ([]domain.DeliveryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	result := make([]domain.DeliveryRecord, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, r.records[i])
	}
	return result, nil
}
