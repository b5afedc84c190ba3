package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okResponse(id string) SendResponse {
	var resp SendResponse
	resp.Messages = append(resp.Messages, struct {
		ID string `json:"id"`
	}{ID: id})
	return resp
}

func TestSendText(t *testing.T) {
	var received sendRequest
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test_token" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("wamid.100"))
	}))
	defer server.Close()

	client := NewClient("test_token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	resp, err := client.SendText(context.Background(), "5511999990000", "Hello from the assistant")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].ID != "wamid.100" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if path != "/phone_123/messages" {
		t.Errorf("path = %s, want /phone_123/messages", path)
	}
	if received.MessagingProduct != "whatsapp" {
		t.Errorf("messaging_product = %s, want whatsapp", received.MessagingProduct)
	}
	if received.To != "5511999990000" {
		t.Errorf("to = %s, want 5511999990000", received.To)
	}
	if received.Text == nil || received.Text.Body != "Hello from the assistant" {
		t.Errorf("unexpected text payload: %+v", received.Text)
	}
}

func TestSendButtonsAsReplyButtons(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("wamid.101"))
	}))
	defer server.Close()

	client := NewClient("token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	buttons := []Button{
		{ID: "confirm_quote", Title: "Confirm"},
		{ID: "edit_quote", Title: "Change something"},
	}
	_, err := client.SendButtons(context.Background(), "5511999990000", "Look good?", buttons)
	if err != nil {
		t.Fatal(err)
	}
	if received.Interactive == nil {
		t.Fatal("expected interactive payload")
	}
	if received.Interactive.Type != "button" {
		t.Errorf("interactive type = %s, want button", received.Interactive.Type)
	}
	if len(received.Interactive.Action.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(received.Interactive.Action.Buttons))
	}
	if received.Interactive.Action.Buttons[0].Reply.ID != "confirm_quote" {
		t.Errorf("button id = %s, want confirm_quote", received.Interactive.Action.Buttons[0].Reply.ID)
	}
}

func TestSendButtonsFallsBackToList(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("wamid.102"))
	}))
	defer server.Close()

	client := NewClient("token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	buttons := make([]Button, 12)
	for i := range buttons {
		buttons[i] = Button{ID: fmt.Sprintf("day_%d", i), Title: fmt.Sprintf("Day %d", i)}
	}
	_, err := client.SendButtons(context.Background(), "5511999990000", "Pick a day", buttons)
	if err != nil {
		t.Fatal(err)
	}
	if received.Interactive == nil || received.Interactive.Type != "list" {
		t.Fatalf("expected list payload, got %+v", received.Interactive)
	}
	if len(received.Interactive.Action.Sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(received.Interactive.Action.Sections))
	}
	rows := received.Interactive.Action.Sections[0].Rows
	if len(rows) != maxListRows {
		t.Fatalf("expected %d rows, got %d", maxListRows, len(rows))
	}
	if rows[0].ID != "day_0" {
		t.Errorf("row id = %s, want day_0", rows[0].ID)
	}
}

func TestSendButtonsTruncatesTitles(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("wamid.103"))
	}))
	defer server.Close()

	client := NewClient("token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	long := strings.Repeat("x", 40)
	_, err := client.SendButtons(context.Background(), "5511999990000", "Pick", []Button{{ID: "a", Title: long}})
	if err != nil {
		t.Fatal(err)
	}
	got := received.Interactive.Action.Buttons[0].Reply.Title
	if len(got) != buttonTitleLimit {
		t.Errorf("title length = %d, want %d", len(got), buttonTitleLimit)
	}
}

func TestSendButtonsEmptySendsText(t *testing.T) {
	var received sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("wamid.104"))
	}))
	defer server.Close()

	client := NewClient("token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	_, err := client.SendButtons(context.Background(), "5511999990000", "Just text", nil)
	if err != nil {
		t.Fatal(err)
	}
	if received.Type != "text" || received.Text == nil {
		t.Fatalf("expected plain text send, got %+v", received)
	}
}

func TestSendTextAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := SendResponse{
			Error: &SendError{Code: 190, Message: "Invalid OAuth access token", Type: "OAuthException"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("bad_token", "phone_123")
	client.SetGraphAPIBase(server.URL)

	_, err := client.SendText(context.Background(), "5511999990000", "test")
	if err == nil {
		t.Fatal("expected error for API error response")
	}
}
