package authkit

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandezvara/dbkit"
)

// Transaction executes a function within a database transaction with
// automatic commit/rollback. If the function returns an error, the
// transaction is rolled back; otherwise it is committed.
//
// Example:
//
//	err := service.Transaction(ctx, func(ctx context.Context) error {
//	    if err := service.AssignDirect(ctx, user1, ns.ID, admin.ID); err != nil {
//	        return err // rollback
//	    }
//	    return service.AssignDirect(ctx, user2, ns.ID, member.ID) // commit on nil
//	})
func (s *Service) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.transaction(ctx, func(dbkit.IDB) error {
		return fn(ctx)
	})
}

// TransactionWithOptions executes a function within a database transaction
// with custom options. Supports read-only transactions and isolation levels.
//
// Example:
//
//	err := service.TransactionWithOptions(ctx, dbkit.SerializableTxOptions(), func(ctx context.Context) error {
//	    return service.MoveNamespace(ctx, nsID, newParentID)
//	})
func (s *Service) TransactionWithOptions(ctx context.Context, opts dbkit.TxOptions, fn func(ctx context.Context) error) error {
	return s.transactionWith(ctx, opts, func(dbkit.IDB) error {
		return fn(ctx)
	})
}

// ReadOnlyTransaction executes a function within a read-only transaction.
// Useful for multi-query reads that must observe a single consistent tree.
func (s *Service) ReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.TransactionWithOptions(ctx, dbkit.ReadOnlyTxOptions(), fn)
}

// transaction runs fn against a transaction handle, reusing an ambient one
// via savepoints when the service is already transactional.
func (s *Service) transaction(ctx context.Context, fn func(db dbkit.IDB) error) error {
	start := time.Now()
	var err error

	switch db := s.db.(type) {
	case *dbkit.Tx:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(tx)
		})
	case *dbkit.DBKit:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(tx)
		})
	default:
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)
	return err
}

// transactionWith is transaction with explicit options. Nested transactions
// fall back to savepoints, which carry no options of their own.
func (s *Service) transactionWith(ctx context.Context, opts dbkit.TxOptions, fn func(db dbkit.IDB) error) error {
	start := time.Now()
	var err error

	switch db := s.db.(type) {
	case *dbkit.Tx:
		err = db.Transaction(ctx, func(tx *dbkit.Tx) error {
			return fn(tx)
		})
	case *dbkit.DBKit:
		err = db.TransactionWithOptions(ctx, opts, func(tx *dbkit.Tx) error {
			return fn(tx)
		})
	default:
		err = fmt.Errorf("transaction support requires a dbkit.DBKit or dbkit.Tx instance")
	}

	s.txMonitor.recordTransaction(time.Since(start), err == nil)
	return err
}
