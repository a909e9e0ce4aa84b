package amqp

import (
	"context"
	"sync"
	"time"

	"wallet/internal/ledger"
	"wallet/internal/log"
)

const flushTimeout = 5 * time.Second

// Sender publishes one expense-list update.
type Sender interface {
	PublishExpenseListUpdated(ctx context.Context, msg *ExpenseListUpdated) error
}

// Publisher is a ledger.Listener that hands updates to a background loop.
// Only the newest pending update is kept: every message carries the full
// list, so an unsent older one is redundant once a newer one exists.
type Publisher struct {
	sender Sender
	logger *log.Logger

	mu      sync.Mutex
	pending *ExpenseListUpdated
	wake    chan struct{}
}

var _ ledger.Listener = (*Publisher)(nil)

func NewPublisher(sender Sender, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Publisher{
		sender: sender,
		logger: logger.WithComponent(log.ComponentAMQP),
		wake:   make(chan struct{}, 1),
	}
}

// ExpenseListUpdated queues s for publishing and never blocks on the broker.
func (p *Publisher) ExpenseListUpdated(_ context.Context, s ledger.State) error {
	msg := NewExpenseListUpdated(s.Expenses, s.Balance)

	p.mu.Lock()
	p.pending = msg
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *Publisher) take() *ExpenseListUpdated {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := p.pending
	p.pending = nil
	return msg
}

// Run publishes queued updates until ctx is done, then makes one last
// attempt to flush whatever is still pending.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			p.publish(flushCtx, p.take())
			cancel()
			return nil
		case <-p.wake:
			p.publish(ctx, p.take())
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg *ExpenseListUpdated) {
	if msg == nil {
		return
	}
	if err := p.sender.PublishExpenseListUpdated(ctx, msg); err != nil {
		// The next update carries the full list again.
		p.logger.ErrorContext(ctx, "Dropped expense list update",
			log.FieldOperation, log.OpPublish,
			log.FieldExpenses, len(msg.Expenses),
			log.FieldError, err)
	}
}
