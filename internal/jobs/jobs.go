package jobs

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/pubsub"
	"github.com/flexprice/payflow/internal/types"
)

// TopicProcessPayment carries processing jobs keyed by payment id. The
// substrate is at-least-once: a job may be delivered more than once and no
// ordering is guaranteed between enqueues for the same id.
const TopicProcessPayment = "payment.process"

// ProcessPaymentPayload is the message body for a processing job
type ProcessPaymentPayload struct {
	PaymentID string `json:"payment_id"`
}

// Enqueue submits a processing job for the payment
func Enqueue(ctx context.Context, publisher pubsub.Publisher, paymentID string) error {
	payload, err := json.Marshal(ProcessPaymentPayload{PaymentID: paymentID})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode processing job").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(types.GenerateUUID(), payload)
	if err := publisher.Publish(ctx, TopicProcessPayment, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to enqueue processing job").
			Mark(ierr.ErrSystem)
	}
	return nil
}
