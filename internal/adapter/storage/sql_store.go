package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

var ErrOptimisticLock = fmt.Errorf("optimistic lock conflict: %w", domain.ErrConflict)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

const defaultListLimit = 50

// SQLStore implements every repository port on top of database/sql. The same
// queries run against MySQL and SQLite; only DDL and row locking differ.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ port.DatabaseRepository = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

// Migrate creates any missing tables and indexes.
func (s *SQLStore) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.dialect == DialectMySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockSellerRow serialises balance-sensitive writes for one seller. SQLite
// runs with a single connection so the transaction itself is exclusive.
func (s *SQLStore) lockSellerRow(ctx context.Context, tx *sql.Tx, sellerID string) error {
	if s.dialect != DialectMySQL {
		return nil
	}
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM sellers WHERE id = ? FOR UPDATE`, sellerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("seller %s: %w", sellerID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock seller: %w", err)
	}
	return nil
}

func insertPostings(ctx context.Context, tx *sql.Tx, postings []domain.Posting, orderID, payoutID string, at time.Time) error {
	if err := domain.ValidatePostings(postings); err != nil {
		return err
	}
	txID := uuid.New().String()
	for _, p := range postings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, tx_id, account, amount_cents, kind, order_id, payout_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), txID, p.Account, p.AmountCents, p.Kind, orderID, payoutID, at,
		)
		if err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return nil
}

func accountBalance(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, account string) (int64, error) {
	var sum int64
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE account = ?`, account,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum account %s: %w", account, err)
	}
	return sum, nil
}

func limitOffset(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func expectOneRow(result sql.Result, err error, onZero error) error {
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return onZero
	}
	return nil
}
