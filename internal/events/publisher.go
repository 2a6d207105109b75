// Package events delivers committed ledger changes to downstream consumers
// (receipts, parent notifications, analytics). Delivery is best effort.
package events

import (
	"context"
	"errors"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
)

// NoopPublisher drops every event.
type NoopPublisher struct{}

var _ portssvc.LedgerEventPublisher = NoopPublisher{}

func (NoopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }

// FanOut delivers each event to every publisher and joins their errors.
type FanOut []portssvc.LedgerEventPublisher

var _ portssvc.LedgerEventPublisher = FanOut(nil)

// NewFanOut skips nil publishers. It returns NoopPublisher when none remain.
func NewFanOut(publishers ...portssvc.LedgerEventPublisher) portssvc.LedgerEventPublisher {
	out := make(FanOut, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return NoopPublisher{}
	case 1:
		return out[0]
	}
	return out
}

func (f FanOut) Publish(ctx context.Context, event domain.LedgerEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
