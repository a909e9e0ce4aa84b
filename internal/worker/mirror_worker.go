// Package worker applies expense-list updates to an external mirror.
package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"wallet/internal/amqp"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/sheets"
)

// MirrorWorker writes each expense-list update to the mirror. Each update
// carries the full list, so updates older than the last one applied are
// skipped, as are redeliveries of what the mirror already holds.
type MirrorWorker struct {
	mirror sheets.ExpenseMirror
	logger *log.Logger

	mu          sync.Mutex
	lastApplied time.Time
	lastList    []core.Expense
	lastBalance core.Money
	applied     bool
}

func NewMirrorWorker(mirror sheets.ExpenseMirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExpenseListUpdated processes one message from AMQP. An error leaves
// the message for redelivery.
func (w *MirrorWorker) HandleExpenseListUpdated(ctx context.Context, msg *amqp.ExpenseListUpdated) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !msg.Timestamp.IsZero() && msg.Timestamp.Before(w.lastApplied) {
		w.logger.InfoContext(ctx, "Skipping stale expense list update",
			"timestamp", msg.Timestamp,
			"last_applied", w.lastApplied)
		return nil
	}
	if w.applied && msg.Balance == w.lastBalance && slices.Equal(msg.Expenses, w.lastList) {
		w.logger.DebugContext(ctx, "Mirror already up to date",
			log.FieldExpenses, len(msg.Expenses))
		return nil
	}

	if err := w.mirror.Replace(ctx, msg.Expenses, msg.Balance); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	if msg.Timestamp.After(w.lastApplied) {
		w.lastApplied = msg.Timestamp
	}
	w.lastList = append(w.lastList[:0:0], msg.Expenses...)
	w.lastBalance = msg.Balance
	w.applied = true

	w.logger.InfoContext(ctx, "Applied expense list update",
		log.FieldOperation, log.OpMirror,
		log.FieldExpenses, len(msg.Expenses),
		log.FieldBalance, msg.Balance.Cents)
	return nil
}

// StartupCheck reports what the mirror currently holds, when it can be read.
// It returns the number of mirrored expenses, or -1 if the mirror cannot list.
func (w *MirrorWorker) StartupCheck(ctx context.Context) (int, error) {
	lister, ok := w.mirror.(sheets.ExpenseLister)
	if !ok {
		return -1, nil
	}
	list, err := lister.ListExpenses(ctx)
	if err != nil {
		return -1, fmt.Errorf("list mirrored expenses: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror startup check",
		log.FieldOperation, log.OpStartup,
		log.FieldExpenses, len(list),
		"total", core.Sum(list).String())
	return len(list), nil
}
