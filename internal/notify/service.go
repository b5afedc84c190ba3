package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flowline-ai/flowline/internal/events"
	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// Staff emails include at most this many transcript entries.
const transcriptTail = 12

// Config holds the operator notification settings for a deployment.
type Config struct {
	BusinessName string
	Recipients   []string
}

// Service sends operator notifications. A nil email sender disables delivery
// without breaking callers.
type Service struct {
	email  EmailSender
	cfg    Config
	logger *logging.Logger
}

func NewService(email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Flowline"
	}
	return &Service{email: email, cfg: cfg, logger: logger}
}

// NotifyBookingConfirmed emails staff when a paid quote becomes a booking.
func (s *Service) NotifyBookingConfirmed(ctx context.Context, evt events.BookingConfirmedV1) error {
	if s.email == nil || len(s.cfg.Recipients) == 0 {
		s.logger.Debug("notify: booking notification skipped, no sender or recipients")
		return nil
	}

	subject := fmt.Sprintf("New booking confirmed - %s %s", evt.Date, evt.Time)
	body := fmt.Sprintf(`A deposit was paid and the booking is confirmed.

Business: %s
Booking ID: %s
Quote ID: %s
Provider: %s
When: %s at %s
Confirmed: %s
`,
		evt.BusinessID,
		evt.BookingID,
		evt.QuoteID,
		evt.ProviderID,
		evt.Date, evt.Time,
		evt.ConfirmedAt.Format("January 2, 2006 at 3:04 PM"),
	)

	return s.sendToAll(ctx, subject, body)
}

// NotifyEscalation emails staff the recent transcript when the assistant
// hands a conversation off. Satisfies the step handlers' escalation
// dependency.
func (s *Service) NotifyEscalation(ctx context.Context, p flow.Participant, transcript []flow.HistoryEntry) error {
	if s.email == nil || len(s.cfg.Recipients) == 0 {
		s.logger.Debug("notify: escalation skipped, no sender or recipients", "participant_id", p.ID)
		return nil
	}

	name := p.Name
	if name == "" {
		name = p.ID
	}
	subject := fmt.Sprintf("Conversation needs attention - %s", name)

	var b strings.Builder
	fmt.Fprintf(&b, "The assistant escalated a WhatsApp conversation.\n\n")
	fmt.Fprintf(&b, "Customer: %s\n", name)
	fmt.Fprintf(&b, "WhatsApp: %s\n", p.ID)
	fmt.Fprintf(&b, "Business: %s\n", p.BusinessID)
	fmt.Fprintf(&b, "Escalated: %s\n\n", time.Now().Format("January 2, 2006 at 3:04 PM"))

	tail := transcript
	if len(tail) > transcriptTail {
		tail = tail[len(tail)-transcriptTail:]
	}
	if len(tail) == 0 {
		b.WriteString("(no transcript available)\n")
	} else {
		b.WriteString("Recent messages:\n")
		for _, entry := range tail {
			who := "Customer"
			if entry.Role == flow.RoleAssistant {
				who = "Assistant"
			}
			fmt.Fprintf(&b, "  [%s] %s: %s\n", entry.Timestamp.Format("15:04"), who, entry.Content)
		}
	}

	return s.sendToAll(ctx, subject, b.String())
}

func (s *Service) sendToAll(ctx context.Context, subject, body string) error {
	var errs []error
	for _, to := range s.cfg.Recipients {
		msg := EmailMessage{
			To:      to,
			ToName:  s.cfg.BusinessName,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: send failed", "error", err, "to", to)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
