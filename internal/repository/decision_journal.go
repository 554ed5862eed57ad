package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	pkgch "TrendWatch/pkg/clickhouse"
	applogger "TrendWatch/pkg/logger"
)

const journalTable = "decision_journal"

// JournalSchema returns the DDL for the decision journal table.
func JournalSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	cycle_id      String,
	symbol        LowCardinality(String),
	action        LowCardinality(String),
	trigger_index Int32,
	action_date   String,
	price         Float64,
	changed       UInt8,
	differences   String,
	evaluated_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(evaluated_at)
ORDER BY (symbol, evaluated_at)`, database, journalTable),
	}
}

// ClickHouseJournal appends every persisted decision to ClickHouse.
type ClickHouseJournal struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseJournal creates a journal writing to <database>.decision_journal.
// An empty database uses the connection default.
func NewClickHouseJournal(ch *pkgch.Client, database string, l *applogger.Logger) *ClickHouseJournal {
	return newJournal(ch.DB(), database, l)
}

func newJournal(db *sql.DB, database string, l *applogger.Logger) *ClickHouseJournal {
	table := journalTable
	if database != "" {
		table = database + "." + journalTable
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseJournal{db: db, table: table, l: l}
}

var _ drepo.DecisionJournal = (*ClickHouseJournal)(nil)

func (j *ClickHouseJournal) Record(ctx context.Context, ev models.DecisionEvent) error {
	q := fmt.Sprintf(`INSERT INTO %s (cycle_id, symbol, action, trigger_index, action_date, price, changed, differences, evaluated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, j.table)

	changed := 0
	if ev.Changed {
		changed = 1
	}
	_, err := j.db.ExecContext(ctx, q,
		ev.CycleID,
		ev.Symbol,
		string(ev.Condition),
		ev.TriggerIndex,
		ev.ActionDate,
		ev.Price,
		changed,
		strings.Join(ev.Differences, "\n"),
		ev.EvaluatedAt.UTC(),
	)
	if err != nil {
		j.l.Error("clickhouse journal insert error",
			applogger.String("table", j.table),
			applogger.String("symbol", ev.Symbol),
			applogger.Error(err),
		)
		return fmt.Errorf("journal decision %s: %w", ev.Symbol, err)
	}
	return nil
}
