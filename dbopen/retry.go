package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// The audit writer shares its database with ad-hoc readers; under WAL a
// write can still hit SQLITE_BUSY during a checkpoint, so writes retry a
// few times with a growing pause before giving up.
const busyRetries = 3

// IsBusy reports whether err is an SQLite BUSY condition surfaced either
// as the SQLITE_BUSY code or as a lock message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// retryBusy runs fn, retrying on BUSY with 100/200/300 ms pauses. Any
// other error, and the final BUSY, are returned as-is.
func retryBusy(ctx context.Context, fn func() error) error {
	var err error
	for i := range busyRetries {
		err = fn()
		if err == nil || !IsBusy(err) {
			return err
		}
		if i == busyRetries-1 {
			break
		}
		pause := time.Duration(100*(i+1)) * time.Millisecond
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("dbopen: cancelled during busy retry: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return err
}

// RunTx executes fn inside a transaction, retrying the whole transaction
// on BUSY. fn's own error rolls back and is returned unwrapped.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return retryBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
}

// Exec executes a single statement with BUSY retry.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retryBusy(ctx, func() error {
		var execErr error
		res, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
