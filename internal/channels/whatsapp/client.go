package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout  = 10 * time.Second

	// Cloud API limits.
	maxReplyButtons   = 3
	maxListRows       = 10
	buttonTitleLimit  = 20
	listRowTitleLimit = 24
)

// Button is one quick-reply option offered to the user.
type Button struct {
	ID    string
	Title string
}

// Client sends messages via the WhatsApp Cloud API.
type Client struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// NewClient creates a new Cloud API client for the given business phone number.
func NewClient(accessToken, phoneNumberID string) *Client {
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

type sendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *Text            `json:"text,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

type interactiveBody struct {
	Type   string            `json:"type"`
	Body   textBody          `json:"body"`
	Action interactiveAction `json:"action"`
}

type textBody struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons  []replyButton `json:"buttons,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []listSection `json:"sections,omitempty"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply buttonReply `json:"reply"`
}

type buttonReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type listSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendResponse is the Cloud API response to a send request.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *SendError `json:"error,omitempty"`
}

// SendError is a Graph API error object.
type SendError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// SendText sends a plain text message to the given recipient.
func (c *Client) SendText(ctx context.Context, to, text string) (*SendResponse, error) {
	req := sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &Text{Body: text},
	}
	return c.send(ctx, req)
}

// SendButtons sends an interactive message with quick-reply options.
// Up to three options become reply buttons; more than three become a
// list message, capped at ten rows.
func (c *Client) SendButtons(ctx context.Context, to, text string, buttons []Button) (*SendResponse, error) {
	if len(buttons) == 0 {
		return c.SendText(ctx, to, text)
	}

	req := sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "interactive",
	}

	if len(buttons) <= maxReplyButtons {
		replies := make([]replyButton, 0, len(buttons))
		for _, b := range buttons {
			replies = append(replies, replyButton{
				Type:  "reply",
				Reply: buttonReply{ID: b.ID, Title: truncate(b.Title, buttonTitleLimit)},
			})
		}
		req.Interactive = &interactiveBody{
			Type:   "button",
			Body:   textBody{Text: text},
			Action: interactiveAction{Buttons: replies},
		}
		return c.send(ctx, req)
	}

	if len(buttons) > maxListRows {
		buttons = buttons[:maxListRows]
	}
	rows := make([]listRow, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, listRow{ID: b.ID, Title: truncate(b.Title, listRowTitleLimit)})
	}
	req.Interactive = &interactiveBody{
		Type: "list",
		Body: textBody{Text: text},
		Action: interactiveAction{
			Button:   "Choose an option",
			Sections: []listSection{{Rows: rows}},
		},
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req sendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("whatsapp: unmarshal response: %w", err)
	}

	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return &sendResp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
