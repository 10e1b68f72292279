package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection error", errors.New("connection refused"), true},
		{"closed connection error", errors.New("connection closed"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("broken pipe"), true},
		{"closed network connection error", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestNewNotificationMessage(t *testing.T) {
	msg := NewNotificationMessage("Amy", []byte(`{"title":"t"}`))

	if msg.Actor != "Amy" {
		t.Errorf("Actor = %q, want Amy", msg.Actor)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestNotificationMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &NotificationMessage{
		Actor:     "Ben",
		Payload:   []byte(`{"title":"💳 Savings Updated","body":"Ben updated shared savings to R20000"}`),
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := NotificationMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("NotificationMessageFromJSON() error = %v", err)
	}

	if parsed.Actor != msg.Actor {
		t.Errorf("Parsed Actor = %q, want %q", parsed.Actor, msg.Actor)
	}
	if string(parsed.Payload) != string(msg.Payload) {
		t.Errorf("Parsed Payload = %s, want %s", parsed.Payload, msg.Payload)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestNotificationMessage_InvalidJSON(t *testing.T) {
	if _, err := NotificationMessageFromJSON([]byte(`{"actor": 42`)); err == nil {
		t.Error("NotificationMessageFromJSON() should fail with invalid JSON")
	}
}
