package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/flexprice/payflow/internal/errors"
	"github.com/flexprice/payflow/internal/logger"
	"github.com/flexprice/payflow/internal/pubsub/memory"
	"github.com/flexprice/payflow/internal/types"
)

// recordingProcessor counts invocations per payment id and can be scripted
// to fail the first deliveries.
type recordingProcessor struct {
	mu        sync.Mutex
	calls     map[string]int
	failFirst map[string]int
	done      chan string
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{
		calls:     make(map[string]int),
		failFirst: make(map[string]int),
		done:      make(chan string, 100),
	}
}

func (p *recordingProcessor) ProcessPayment(ctx context.Context, id string) error {
	p.mu.Lock()
	p.calls[id]++
	shouldFail := p.calls[id] <= p.failFirst[id]
	p.mu.Unlock()

	if shouldFail {
		return ierr.NewError("transient processing failure").Mark(ierr.ErrRetryable)
	}
	p.done <- id
	return nil
}

func (p *recordingProcessor) callCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func awaitProcessed(t *testing.T, done <-chan string, want string) {
	t.Helper()
	select {
	case id := <-done:
		assert.Equal(t, want, id)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for payment %s to be processed", want)
	}
}

func newTestRunner(t *testing.T) (*Runner, *recordingProcessor, *memory.PubSub, context.CancelFunc) {
	t.Helper()
	log, err := logger.NewLogger(types.LogLevelDebug)
	require.NoError(t, err)

	ps := memory.NewPubSub(log).(*memory.PubSub)
	processor := newRecordingProcessor()
	runner := NewRunner(ps, processor, log)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = runner.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = ps.Close()
	})
	return runner, processor, ps, cancel
}

func TestRunner_ProcessesEnqueuedJob(t *testing.T) {
	_, processor, ps, _ := newTestRunner(t)

	require.NoError(t, Enqueue(context.Background(), ps, "pay_123"))

	awaitProcessed(t, processor.done, "pay_123")
	assert.Equal(t, 1, processor.callCount("pay_123"))
}

func TestRunner_RedeliversOnFailure(t *testing.T) {
	_, processor, ps, _ := newTestRunner(t)
	processor.failFirst["pay_123"] = 2

	require.NoError(t, Enqueue(context.Background(), ps, "pay_123"))

	// The first two deliveries fail and are nacked; the third succeeds.
	awaitProcessed(t, processor.done, "pay_123")
	assert.Equal(t, 3, processor.callCount("pay_123"))
}

func TestRunner_DropsMalformedPayload(t *testing.T) {
	_, processor, ps, _ := newTestRunner(t)

	msg := message.NewMessage(types.GenerateUUID(), []byte("not json"))
	require.NoError(t, ps.Publish(context.Background(), TopicProcessPayment, msg))

	// A malformed payload is acked and dropped, so a well-formed job
	// published after it still gets through.
	require.NoError(t, Enqueue(context.Background(), ps, "pay_456"))
	awaitProcessed(t, processor.done, "pay_456")
	assert.Equal(t, 0, processor.callCount(""))
}
