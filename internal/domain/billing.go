package domain

import "time"

// BillingSnapshot is the fully-resolved value copy of a ticket taken at
// the moment it transitions into completed. It never references the live
// ticket, so later edits cannot retroactively change a queued item.
type BillingSnapshot struct {
	TicketTitle     string    `json:"ticket_title"`
	ServiceType     string    `json:"service_type"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerAddress string    `json:"customer_address"`
	CustomerCity    string    `json:"customer_city"`
	CustomerCountry string    `json:"customer_country"`
	TotalMinutes    int       `json:"total_minutes"`
	TimeSpent       string    `json:"time_spent"`
	HourlyRate      float64   `json:"hourly_rate"`
	LaborCost       float64   `json:"labor_cost"`
	MaterialsCost   float64   `json:"materials_cost"`
	TravelCost      float64   `json:"travel_cost"`
	TotalBeforeTax  float64   `json:"total_before_tax"`
	TaxRate         float64   `json:"tax_rate"`
	TaxAmount       float64   `json:"tax_amount"`
	TotalAmount     float64   `json:"total_amount"`
	CompletedAt     time.Time `json:"completed_at"`
}

// BillingQueueItem is an invoicing-ready record appended exactly once per
// completion transition. Never user-edited.
type BillingQueueItem struct {
	QueueItemID    string          `json:"queue_item_id"`
	TicketID       string          `json:"ticket_id"`
	AddedToQueueAt time.Time       `json:"added_to_queue_at"`
	TicketData     BillingSnapshot `json:"ticket_data"`
}

// DeliveryStatus reports the outcome of a notification dispatch attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryRecord is an append-only log entry for a notification dispatch.
type DeliveryRecord struct {
	ID             string         `json:"id"`
	RecipientEmail string         `json:"recipient_email"`
	Subject        string         `json:"subject"`
	Template       string         `json:"template"`
	TicketID       *string        `json:"ticket_id,omitempty"`
	Status         DeliveryStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	SentAt         time.Time      `json:"sent_at"`
}
