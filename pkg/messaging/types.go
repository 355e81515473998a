package messaging

import (
	"time"
)

// Event types published by the experiment runner
const (
	RunStarted        = "run_started"
	RepetitionStarted = "repetition_started"
	AgentExhausted    = "agent_exhausted"
	RunFinished       = "run_finished"
)

// Message is one routed event
type Message struct {
	From      string    // ID of the publisher
	To        []string  // IDs of recipients (empty means broadcast)
	Content   any       // The event payload
	Timestamp time.Time // When the message was sent
}

// Event is the payload the runner attaches to its messages
type Event struct {
	Type       string
	Label      string
	Repetition int
	Trial      int
	AgentID    string
	Budget     float64
}

// Broker handles message routing between the runner and its observers
type Broker interface {
	// Publish sends a message to specified recipients
	Publish(msg Message) error
	// Subscribe registers a subscriber to receive messages
	Subscribe(id string, ch chan<- Message) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
