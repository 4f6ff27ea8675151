package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/ticket-engine/internal/domain"
)

// Fallback literals written into billing snapshots when customer fields
// are missing. Invoicing exports match on these exact strings; keep them
// verbatim.
const (
	fallbackCustomerName  = "Unknown Customer"
	fallbackCustomerEmail = "unknown@example.com"
	fallbackFieldValue    = "N/A"
)

// deriveBillingItem computes an immutable invoicing snapshot from the
// ticket's accumulated work time and the flat hourly rate. Called exactly
// once per transition into completed.
func (e *Engine) deriveBillingItem(ticket *domain.Ticket, completedAt time.Time) *domain.BillingQueueItem {
	minutes := ticket.TotalWorkTime
	laborCost := float64(minutes) * e.rates.HourlyRate / 60
	totalBeforeTax := laborCost // materials and travel are out of scope, both zero
	taxAmount := totalBeforeTax * e.rates.TaxRate
	totalAmount := totalBeforeTax + taxAmount

	snapshot := domain.BillingSnapshot{
		TicketTitle:     ticket.Title,
		ServiceType:     ticket.ServiceType,
		CustomerName:    fallback(ticket.Customer.Name, fallbackCustomerName),
		CustomerEmail:   fallback(ticket.Customer.Email, fallbackCustomerEmail),
		CustomerPhone:   fallback(ticket.Customer.Phone, fallbackFieldValue),
		CustomerAddress: fallback(ticket.Customer.Address, fallbackFieldValue),
		CustomerCity:    fallback(ticket.Customer.City, fallbackFieldValue),
		CustomerCountry: fallback(ticket.Customer.Country, e.rates.DefaultCountry),
		TotalMinutes:    minutes,
		TimeSpent:       formatTimeSpent(minutes),
		HourlyRate:      e.rates.HourlyRate,
		LaborCost:       laborCost,
		MaterialsCost:   0,
		TravelCost:      0,
		TotalBeforeTax:  totalBeforeTax,
		TaxRate:         e.rates.TaxRate,
		TaxAmount:       taxAmount,
		TotalAmount:     totalAmount,
		CompletedAt:     completedAt,
	}

	return &domain.BillingQueueItem{
		QueueItemID:    uuid.NewString(),
		TicketID:       ticket.ID,
		AddedToQueueAt: completedAt,
		TicketData:     snapshot,
	}
}

func formatTimeSpent(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
