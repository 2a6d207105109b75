package events

import (
	"context"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
)

// posthogEnqueuer is satisfied by *utils.PosthogClientWrapper.
type posthogEnqueuer interface {
	Enqueue(distinctID string, event string, properties map[string]any) error
}

// PosthogPublisher records ledger activity as product analytics, keyed by the acting user.
// Amounts are sent as strings to keep their exact value.
type PosthogPublisher struct {
	client posthogEnqueuer
}

var _ portssvc.LedgerEventPublisher = (*PosthogPublisher)(nil)

func NewPosthogPublisher(client posthogEnqueuer) *PosthogPublisher {
	return &PosthogPublisher{client: client}
}

func (p *PosthogPublisher) Publish(_ context.Context, event domain.LedgerEvent) error {
	props := map[string]any{
		"student_id":       event.Key.StudentID,
		"academic_year_id": event.Key.AcademicYearID,
	}
	if t := event.Transaction; t != nil {
		props["transaction_number"] = t.TransactionNumber
		props["entry_type"] = string(t.EntryType)
		props["direction"] = string(t.Direction())
		props["amount"] = t.Amount().StringFixed(domain.AmountScale)
		props["balance"] = t.Balance.StringFixed(domain.AmountScale)
	}
	if event.Original != nil {
		props["reversed_transaction_number"] = event.Original.TransactionNumber
	}
	if event.Type == domain.LedgerEventLocked {
		props["locked_through_id"] = event.LockedThroughID
		props["locked_count"] = event.LockedCount
	}
	return p.client.Enqueue(event.ActorID, string(event.Type), props)
}
