package messaging

import (
	"testing"
	"time"
)

func TestBroker(t *testing.T) {
	t.Run("direct event reaches only its recipient", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		console := make(chan Message, 1)
		tracker := make(chan Message, 1)

		if err := broker.Subscribe("console", console); err != nil {
			t.Fatalf("Failed to subscribe console: %v", err)
		}
		if err := broker.Subscribe("tracker", tracker); err != nil {
			t.Fatalf("Failed to subscribe tracker: %v", err)
		}

		msg := Message{
			From:      "environment",
			To:        []string{"tracker"},
			Content:   Event{Type: AgentExhausted, AgentID: "agent-1", Trial: 4},
			Timestamp: time.Now(),
		}
		if err := broker.Publish(msg); err != nil {
			t.Fatalf("Failed to publish message: %v", err)
		}

		select {
		case received := <-tracker:
			ev, ok := received.Content.(Event)
			if !ok || ev.Type != AgentExhausted || ev.AgentID != "agent-1" || ev.Trial != 4 {
				t.Errorf("Unexpected message received: %+v", received)
			}
		case <-time.After(time.Second):
			t.Error("Timeout waiting for message")
		}

		select {
		case msg := <-console:
			t.Errorf("console should not receive message but got: %+v", msg)
		default:
		}
	})

	t.Run("broadcast skips the publisher", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		subscribers := map[string]chan Message{
			"environment": make(chan Message, 1),
			"console":     make(chan Message, 1),
			"tracker":     make(chan Message, 1),
		}
		for id, ch := range subscribers {
			if err := broker.Subscribe(id, ch); err != nil {
				t.Fatalf("Failed to subscribe %s: %v", id, err)
			}
		}

		msg := Message{
			From:    "environment",
			Content: Event{Type: RunStarted},
		}
		if err := broker.Publish(msg); err != nil {
			t.Fatalf("Failed to publish broadcast message: %v", err)
		}

		for id, ch := range subscribers {
			select {
			case received := <-ch:
				if id == "environment" {
					t.Errorf("Publisher received its own broadcast: %+v", received)
				}
			default:
				if id != "environment" {
					t.Errorf("%s did not receive the broadcast", id)
				}
			}
		}
	})

	t.Run("subscription management", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		ch := make(chan Message, 1)

		if err := broker.Subscribe("console", ch); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("console", ch); err == nil {
			t.Error("Expected error for duplicate subscription, got nil")
		}
		if err := broker.Unsubscribe("console"); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}
		if err := broker.Unsubscribe("console"); err == nil {
			t.Error("Expected error for unsubscribing non-existent subscriber, got nil")
		}
	})

	t.Run("full channel does not block other recipients", func(t *testing.T) {
		broker := NewBroker()
		t.Cleanup(broker.Reset)
		slow := make(chan Message, 1)
		fast := make(chan Message, 2)
		if err := broker.Subscribe("slow", slow); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := broker.Subscribe("fast", fast); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		msg := Message{From: "environment", Content: Event{Type: RepetitionStarted}}
		if err := broker.Publish(msg); err != nil {
			t.Fatalf("Failed to publish first message: %v", err)
		}
		if err := broker.Publish(msg); err == nil {
			t.Error("Expected error when publishing to full channel, got nil")
		}
		if len(fast) != 2 {
			t.Errorf("fast subscriber got %d messages, want 2", len(fast))
		}
	})
}
