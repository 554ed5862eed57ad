package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
	"TrendWatch/pkg/cache"
)

func sampleState(sym string, cond models.Condition, price float64) models.PersistedState {
	return models.PersistedState{
		Symbol:     sym,
		Condition:  cond,
		ActionDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Price:      price,
		UpdatedAt:  time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC),
	}
}

func exerciseStore(t *testing.T, store drepo.StateStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "AAPL"); !errors.Is(err, models.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	if err := store.Put(ctx, sampleState("MSFT", models.ConditionFallSell, 410.5)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, sampleState("AAPL", models.ConditionFlatBuy, 171.25)); err != nil {
		t.Fatalf("put: %v", err)
	}
	// overwrite
	if err := store.Put(ctx, sampleState("AAPL", models.ConditionHypeBuy, 169.1)); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "AAPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Condition != models.ConditionHypeBuy || got.Price != 169.1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if !got.ActionDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("action date = %v", got.ActionDate)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Symbol != "AAPL" || all[1].Symbol != "MSFT" {
		t.Fatalf("unexpected list: %+v", all)
	}
}

func TestCacheStateStore(t *testing.T) {
	store := NewCacheStateStore(cache.NewMemoryCache())
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLStateStoreSQLite(t *testing.T) {
	store, err := OpenSQLStateStore(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestClickHouseJournalRecord(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	// sqlite stand-in with the same column list
	_, err = db.Exec(`CREATE TABLE decision_journal (
		cycle_id TEXT, symbol TEXT, action TEXT, trigger_index INTEGER, action_date TEXT,
		price REAL, changed INTEGER, differences TEXT, evaluated_at TIMESTAMP)`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	j := newJournal(db, "", nil)
	ev := models.DecisionEvent{
		CycleID:      "c-1",
		Symbol:       "AAPL",
		Condition:    models.ConditionFlatBuy,
		TriggerIndex: 41,
		ActionDate:   "2024-03-04",
		Price:        171.25,
		Changed:      true,
		Differences:  []string{"AAPL: fall_sell -> flat_buy"},
		EvaluatedAt:  time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC),
	}
	if err := j.Record(context.Background(), ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	var (
		sym, action, diffs string
		changed, idx       int
	)
	row := db.QueryRow(`SELECT symbol, action, changed, trigger_index, differences FROM decision_journal`)
	if err := row.Scan(&sym, &action, &changed, &idx, &diffs); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if sym != "AAPL" || action != string(models.ConditionFlatBuy) || changed != 1 || idx != 41 || diffs != "AAPL: fall_sell -> flat_buy" {
		t.Fatalf("unexpected row: %s %s %d %d %q", sym, action, changed, idx, diffs)
	}
}

func TestJournalSchemaUsesDatabase(t *testing.T) {
	stmts := JournalSchema("tw")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if want := "CREATE DATABASE IF NOT EXISTS tw"; stmts[0] != want {
		t.Fatalf("stmt[0] = %q", stmts[0])
	}
}

type recordingProducer struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (r *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	r.topic, r.key, r.value = topic, key, value
	return r.err
}

func TestKafkaDecisionPublisher(t *testing.T) {
	p := &recordingProducer{}
	pub := NewKafkaDecisionPublisher(p, "trendwatch.decisions")

	ev := models.DecisionEvent{Symbol: "MSFT", Condition: models.ConditionFallSell}
	if err := pub.PublishDecision(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if p.topic != "trendwatch.decisions" || string(p.key) != "MSFT" {
		t.Fatalf("unexpected message: topic=%s key=%s", p.topic, p.key)
	}
	if got, ok := p.value.(models.DecisionEvent); !ok || got.Symbol != "MSFT" {
		t.Fatalf("unexpected value: %#v", p.value)
	}

	p.err = errors.New("broker down")
	if err := pub.PublishDecision(context.Background(), ev); err == nil {
		t.Fatal("expected error")
	}
}
