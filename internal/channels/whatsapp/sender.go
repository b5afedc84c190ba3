package whatsapp

import (
	"context"
	"fmt"

	"github.com/flowline-ai/flowline/internal/flow"
	"github.com/flowline-ai/flowline/pkg/logging"
)

// SendObserver records outbound delivery outcomes.
type SendObserver interface {
	ObserveOutbound(status string)
}

// Sender delivers conversation replies over the Cloud API.
type Sender struct {
	client   *Client
	logger   *logging.Logger
	observer SendObserver
}

// NewSender creates a Sender. Panics if client or logger is nil.
func NewSender(client *Client, logger *logging.Logger) *Sender {
	if client == nil {
		panic("whatsapp: client is required")
	}
	if logger == nil {
		panic("whatsapp: logger is required")
	}
	return &Sender{client: client, logger: logger}
}

// WithObserver wires delivery metrics.
func (s *Sender) WithObserver(o SendObserver) *Sender {
	s.observer = o
	return s
}

// SendReply sends one reply to the given recipient, choosing the message
// shape based on whether the reply carries quick-reply options.
func (s *Sender) SendReply(ctx context.Context, to string, reply flow.Reply) error {
	var resp *SendResponse
	var err error

	if len(reply.Buttons) == 0 {
		resp, err = s.client.SendText(ctx, to, reply.Text)
	} else {
		buttons := make([]Button, 0, len(reply.Buttons))
		for _, b := range reply.Buttons {
			buttons = append(buttons, Button{ID: b.Payload, Title: b.Label})
		}
		resp, err = s.client.SendButtons(ctx, to, reply.Text, buttons)
	}
	if err != nil {
		if s.observer != nil {
			s.observer.ObserveOutbound("error")
		}
		return fmt.Errorf("whatsapp: send reply: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveOutbound("ok")
	}

	if len(resp.Messages) > 0 {
		s.logger.Debug("reply sent", "to", to, "message_id", resp.Messages[0].ID)
	}
	return nil
}
