package services

import (
	"context"
	"fmt"

	"github.com/snapsolve/backend/repositories"
)

// WithTransaction executes a function within a database transaction.
// Automatically commits on success, rolls back on error.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return txMgr.InTransaction(ctx, fn)
}

// WithTransactionResult executes a function within a database transaction and returns a result.
// Uses generics to support any return type.
// Automatically commits on success, rolls back on error.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T

	err := txMgr.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
		var fnErr error
		result, fnErr = fn(txCtx, tx)
		return fnErr
	})
	if err != nil {
		return result, fmt.Errorf("transaction failed: %w", err)
	}

	return result, nil
}
