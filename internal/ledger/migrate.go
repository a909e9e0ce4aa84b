package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/storage"
)

// migrateLegacyBalance folds the old walletBalance key into totalBalance.
// The legacy value is only adopted when no canonical balance exists; either
// way the legacy key is removed. Old widgets wrote walletBalance on every
// expense, so a store whose last change was an expense reverts to the
// canonical balance here.
func (l *Ledger) migrateLegacyBalance(ctx context.Context) error {
	legacy, ok, err := l.store.Get(ctx, storage.KeyLegacyBalance)
	if err != nil {
		return fmt.Errorf("read legacy balance: %w", err)
	}
	if !ok {
		return nil
	}

	var legacyBalance core.Money
	if err := json.Unmarshal(legacy, &legacyBalance); err != nil {
		l.logger.WarnContext(ctx, "Discarding unreadable legacy balance",
			log.FieldOperation, log.OpMigrate,
			log.FieldKey, storage.KeyLegacyBalance,
			log.FieldError, err)
		return l.store.Delete(ctx, storage.KeyLegacyBalance)
	}

	_, hasCanonical, err := l.store.Get(ctx, storage.KeyBalance)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	if !hasCanonical {
		b, _ := json.Marshal(legacyBalance)
		if err := l.store.PutBatch(ctx, map[string][]byte{storage.KeyBalance: b}); err != nil {
			return fmt.Errorf("adopt legacy balance: %w", err)
		}
		l.logger.InfoContext(ctx, "Adopted legacy balance",
			log.FieldOperation, log.OpMigrate,
			log.FieldKey, storage.KeyLegacyBalance,
			log.FieldBalance, legacyBalance.Cents)
	} else {
		l.logger.WarnContext(ctx, "Discarding legacy balance in favour of canonical key",
			log.FieldOperation, log.OpMigrate,
			log.FieldKey, storage.KeyLegacyBalance,
			log.FieldBalance, legacyBalance.Cents)
	}

	if err := l.store.Delete(ctx, storage.KeyLegacyBalance); err != nil {
		return fmt.Errorf("delete legacy balance: %w", err)
	}
	return nil
}
