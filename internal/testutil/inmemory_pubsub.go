package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// RecorderPublisher implements pubsub.Publisher, remembering everything
// published for assertions.
type RecorderPublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
}

// NewRecorderPublisher creates a new recording publisher
func NewRecorderPublisher() *RecorderPublisher {
	return &RecorderPublisher{
		messages: make(map[string][]*message.Message),
	}
}

func (p *RecorderPublisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], msg)
	return nil
}

func (p *RecorderPublisher) Close() error {
	return nil
}

// Published returns the messages recorded for a topic
func (p *RecorderPublisher) Published(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.messages[topic]...)
}

// PublishedPaymentIDs decodes the payment ids from the recorded payloads
func (p *RecorderPublisher) PublishedPaymentIDs(topic string) []string {
	ids := make([]string, 0)
	for _, msg := range p.Published(topic) {
		var payload struct {
			PaymentID string `json:"payment_id"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err == nil {
			ids = append(ids, payload.PaymentID)
		}
	}
	return ids
}

// Clear drops all recorded messages
func (p *RecorderPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string][]*message.Message)
}
