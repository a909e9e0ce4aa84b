// Package storage provides the durable key/value stores the wallet persists to.
//
// Values are opaque JSON documents. The key layout mirrors what the browser
// widget kept in local storage, so exported data stays readable by both.
package storage

import (
	"context"
	"errors"
)

// Storage keys.
const (
	// KeyBalance is the canonical balance key, read at startup and written by
	// every balance change.
	KeyBalance = "totalBalance"
	// KeyExpenses holds the JSON array of expense records.
	KeyExpenses = "expenses"
	// KeyLegacyBalance was written by older expense submissions only. It is
	// migrated into KeyBalance on open and never written again.
	KeyLegacyBalance = "walletBalance"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// KV is a durable key/value store.
type KV interface {
	// Get returns the value stored at key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// PutBatch writes every entry or none of them.
	PutBatch(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
