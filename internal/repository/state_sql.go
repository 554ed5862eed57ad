package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
)

const stateSchema = `
CREATE TABLE IF NOT EXISTS trading_state (
	symbol      TEXT PRIMARY KEY,
	action      TEXT NOT NULL,
	action_date TEXT NOT NULL,
	price       TEXT NOT NULL,
	updated_at  TEXT NOT NULL
)`

const upsertState = `
INSERT INTO trading_state (symbol, action, action_date, price, updated_at)
VALUES (:symbol, :action, :action_date, :price, :updated_at)
ON CONFLICT (symbol) DO UPDATE SET
	action      = excluded.action,
	action_date = excluded.action_date,
	price       = excluded.price,
	updated_at  = excluded.updated_at`

// SQLStateStore implements StateStore on SQLite or Postgres via sqlx.
type SQLStateStore struct {
	db *sqlx.DB
}

// OpenSQLStateStore opens the database for driver ("sqlite3" or "postgres")
// and ensures the state table exists.
func OpenSQLStateStore(ctx context.Context, driver, dsn string) (*SQLStateStore, error) {
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	s := &SQLStateStore{db: db}
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStateStore wraps an existing connection.
func NewSQLStateStore(db *sqlx.DB) *SQLStateStore {
	return &SQLStateStore{db: db}
}

var _ drepo.StateStore = (*SQLStateStore)(nil)

// Init creates the state table if missing.
func (s *SQLStateStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, stateSchema); err != nil {
		return fmt.Errorf("init state schema: %w", err)
	}
	return nil
}

func (s *SQLStateStore) Get(ctx context.Context, symbol string) (models.PersistedState, error) {
	query := s.db.Rebind(`SELECT symbol, action, action_date, price, updated_at FROM trading_state WHERE symbol = ?`)

	var rec models.StateRecord
	if err := s.db.GetContext(ctx, &rec, query, strings.ToUpper(symbol)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.PersistedState{}, models.ErrStateNotFound
		}
		return models.PersistedState{}, fmt.Errorf("get state %s: %w", symbol, err)
	}
	return rec.State()
}

func (s *SQLStateStore) Put(ctx context.Context, st models.PersistedState) error {
	rec := st.Record()
	rec.Symbol = strings.ToUpper(rec.Symbol)
	if _, err := s.db.NamedExecContext(ctx, upsertState, rec); err != nil {
		return fmt.Errorf("put state %s: %w", st.Symbol, err)
	}
	return nil
}

func (s *SQLStateStore) List(ctx context.Context) ([]models.PersistedState, error) {
	var recs []models.StateRecord
	if err := s.db.SelectContext(ctx, &recs, `SELECT symbol, action, action_date, price, updated_at FROM trading_state ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	out := make([]models.PersistedState, 0, len(recs))
	for _, rec := range recs {
		st, err := rec.State()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *SQLStateStore) Close() error {
	return s.db.Close()
}
