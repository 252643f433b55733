package persistence

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/repo"
)

// serializedTx lets the row tasks of an import share one pgx transaction. A
// connection runs one statement at a time, so every call holds mu until its
// result is fully consumed.
type serializedTx struct {
	mu sync.Mutex
	tx pgx.Tx
}

var _ repo.Tx = (*serializedTx)(nil)

func newSerializedTx(tx pgx.Tx) *serializedTx {
	return &serializedTx{tx: tx}
}

func (s *serializedTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.Exec(ctx, sql, args...)
}

// Query holds the lock until the returned rows are closed. Callers must not
// issue another statement while iterating.
func (s *serializedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.mu.Lock()
	rows, err := s.tx.Query(ctx, sql, args...)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &serializedRows{Rows: rows, unlock: s.mu.Unlock}, nil
}

func (s *serializedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.mu.Lock()
	rows, err := s.tx.Query(ctx, sql, args...)
	if err != nil {
		s.mu.Unlock()
		return errRow{err: err}
	}
	return &serializedRow{rows: &serializedRows{Rows: rows, unlock: s.mu.Unlock}}
}

func (s *serializedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx.CopyFrom(ctx, tableName, columnNames, rowSrc)
}

// SendBatch holds the lock until the results are closed, which keeps the
// statements of a batch together.
func (s *serializedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.mu.Lock()
	return &serializedBatch{BatchResults: s.tx.SendBatch(ctx, b), unlock: s.mu.Unlock}
}

type serializedRows struct {
	pgx.Rows
	once   sync.Once
	unlock func()
}

func (r *serializedRows) Close() {
	r.Rows.Close()
	r.once.Do(r.unlock)
}

// Next releases the lock as soon as the result set is exhausted.
func (r *serializedRows) Next() bool {
	if r.Rows.Next() {
		return true
	}
	r.Close()
	return false
}

// serializedRow mirrors pgx's connRow: Scan reads the first row and closes.
type serializedRow struct {
	rows *serializedRows
}

func (r *serializedRow) Scan(dest ...any) error {
	defer r.rows.Close()
	if err := r.rows.Err(); err != nil {
		return err
	}
	if !r.rows.Rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	if err := r.rows.Scan(dest...); err != nil {
		return err
	}
	r.rows.Rows.Close()
	return r.rows.Err()
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type serializedBatch struct {
	pgx.BatchResults
	once   sync.Once
	unlock func()
}

func (b *serializedBatch) Close() error {
	err := b.BatchResults.Close()
	b.once.Do(b.unlock)
	return err
}
