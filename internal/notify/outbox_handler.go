package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// OutboxHandler routes outbox entries to staff notifications. Event types it
// does not care about are acknowledged so the deliverer can mark them done.
type OutboxHandler struct {
	svc    *Service
	logger *logging.Logger
}

// NewOutboxHandler wires the notification service into the outbox deliverer.
func NewOutboxHandler(svc *Service, logger *logging.Logger) *OutboxHandler {
	if svc == nil {
		panic("notify: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboxHandler{svc: svc, logger: logger}
}

var _ events.DeliveryHandler = (*OutboxHandler)(nil)

// Handle dispatches a single outbox entry.
func (h *OutboxHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeBookingConfirmed:
		var evt events.BookingConfirmedV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s payload: %w", entry.Type, err)
		}
		return h.svc.NotifyBookingConfirmed(ctx, evt)
	default:
		h.logger.Debug("outbox event ignored", "type", entry.Type, "event_id", entry.ID)
		return nil
	}
}
