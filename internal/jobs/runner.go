package jobs

import (
	"context"
	"encoding/json"

	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/pubsub"
)

// Processor is the unit of work a job delivery invokes. Implementations
// must tolerate duplicate invocations for the same payment id.
type Processor interface {
	ProcessPayment(ctx context.Context, id string) error
}

// Runner consumes processing jobs and hands them to the processor. A
// failed delivery is nacked so the substrate redelivers it; combined with
// the processor's re-entrancy this gives at-least-once execution without
// duplicated financial effect.
type Runner struct {
	subscriber pubsub.Subscriber
	processor  Processor
	logger     *logger.Logger
}

// NewRunner creates a new job runner
func NewRunner(subscriber pubsub.Subscriber, processor Processor, logger *logger.Logger) *Runner {
	return &Runner{
		subscriber: subscriber,
		processor:  processor,
		logger:     logger,
	}
}

// Start consumes jobs until ctx is cancelled
func (r *Runner) Start(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, TopicProcessPayment)
	if err != nil {
		return err
	}

	r.logger.Infow("job runner started", "topic", TopicProcessPayment)

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("job runner stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.UUID, msg.Payload, msg.Ack, msg.Nack)
		}
	}
}

func (r *Runner) handle(ctx context.Context, uuid string, payload []byte, ack, nack func() bool) {
	var job ProcessPaymentPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		// Malformed payloads can never succeed; drop them.
		r.logger.Errorw("dropping malformed job", "message_id", uuid, "error", err)
		ack()
		return
	}

	if err := r.processor.ProcessPayment(ctx, job.PaymentID); err != nil {
		r.logger.Errorw("processing unit failed, redelivering",
			"message_id", uuid,
			"payment_id", job.PaymentID,
			"error", err,
		)
		nack()
		return
	}
	ack()
}
