// Package receipts keeps an optional local journal of confirmed operations
// in Postgres. Callers without a configured DSN get a nil store whose
// methods are no-ops.
package receipts

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct {
	db *sql.DB
}

// Open connects, pings, and migrates the journal schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS trade_receipts (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			op TEXT NOT NULL,
			house TEXT NOT NULL,
			mint TEXT NOT NULL,
			wallet TEXT NOT NULL,
			trade_state TEXT NOT NULL,
			price TEXT NOT NULL,
			size TEXT NOT NULL,
			signature TEXT NOT NULL,
			slot BIGINT NOT NULL,
			recorded_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_receipts_house_mint ON trade_receipts(house, mint);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_receipts_wallet ON trade_receipts(wallet);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate trade_receipts: %w", err)
		}
	}
	return nil
}

// Receipt is one journaled operation outcome.
type Receipt struct {
	Op         string
	House      string
	Mint       string
	Wallet     string
	TradeState string
	Price      uint64
	Size       uint64
	Signature  string
	Slot       uint64
	RecordedAt time.Time
}

// Record appends a receipt. A nil store records nothing.
func (s *Store) Record(ctx context.Context, r Receipt) error {
	if s == nil {
		return nil
	}
	recordedAt := r.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_receipts (op, house, mint, wallet, trade_state, price, size, signature, slot, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.Op, r.House, r.Mint, r.Wallet, r.TradeState,
		strconv.FormatUint(r.Price, 10), strconv.FormatUint(r.Size, 10),
		r.Signature, int64(r.Slot), recordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert trade receipt: %w", err)
	}
	return nil
}

// Recent returns the latest receipts, newest first. A nil store returns none.
func (s *Store) Recent(ctx context.Context, limit int) ([]Receipt, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT op, house, mint, wallet, trade_state, price, size, signature, slot, recorded_at
		 FROM trade_receipts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var (
			r           Receipt
			price, size string
			slot        int64
			recordedAt  int64
		)
		if err := rows.Scan(&r.Op, &r.House, &r.Mint, &r.Wallet, &r.TradeState, &price, &size, &r.Signature, &slot, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan trade receipt: %w", err)
		}
		if r.Price, err = strconv.ParseUint(price, 10, 64); err != nil {
			return nil, fmt.Errorf("parse receipt price %q: %w", price, err)
		}
		if r.Size, err = strconv.ParseUint(size, 10, 64); err != nil {
			return nil, fmt.Errorf("parse receipt size %q: %w", size, err)
		}
		r.Slot = uint64(slot)
		r.RecordedAt = time.Unix(recordedAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
