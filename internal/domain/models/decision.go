package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"TrendWatch/pkg/util"
)

// DateLayout is the text form of action dates at the store boundary.
const DateLayout = "2006-01-02"

var (
	// ErrUnavailable is returned when a price series cannot be acquired.
	ErrUnavailable = errors.New("price series unavailable")
	// ErrStateNotFound is returned by state stores when a symbol has no record.
	ErrStateNotFound = errors.New("state not found")
	// ErrNoParams is returned when a symbol has no usable indicator parameters.
	ErrNoParams = errors.New("no indicator parameters for symbol")
)

// Decision is the most recent condition that fired for a symbol.
type Decision struct {
	Symbol       string
	Condition    Condition
	TriggerIndex int
	ActionDate   time.Time
	Price        float64
}

// State converts the decision to its persisted form.
func (d Decision) State(now time.Time) PersistedState {
	return PersistedState{
		Symbol:     d.Symbol,
		Condition:  d.Condition,
		ActionDate: d.ActionDate,
		Price:      d.Price,
		UpdatedAt:  now,
	}
}

// PersistedState is the last decision recorded for a symbol.
type PersistedState struct {
	Symbol     string
	Condition  Condition
	ActionDate time.Time
	Price      float64
	UpdatedAt  time.Time
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatPrice renders a price in its canonical shortest decimal form.
func FormatPrice(p float64) string {
	return decimal.NewFromFloat(p).String()
}

// ParsePrice parses the canonical price text.
func ParsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// StateRecord is the text representation of PersistedState used by stores and
// the HTTP API.
type StateRecord struct {
	Symbol     string `json:"stock_symbol" db:"symbol"`
	Action     string `json:"action" db:"action"`
	ActionDate string `json:"action_date" db:"action_date"`
	Price      string `json:"price" db:"price"`
	UpdatedAt  string `json:"updated_at" db:"updated_at"`
}

// Record converts state to its text representation.
func (s PersistedState) Record() StateRecord {
	r := StateRecord{
		Symbol:     s.Symbol,
		Action:     string(s.Condition),
		ActionDate: FormatDate(s.ActionDate),
		Price:      FormatPrice(s.Price),
	}
	if !s.UpdatedAt.IsZero() {
		r.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return r
}

// State parses the text representation.
func (r StateRecord) State() (PersistedState, error) {
	date, err := time.Parse(DateLayout, r.ActionDate)
	if err != nil {
		return PersistedState{}, fmt.Errorf("parse action date %q: %w", r.ActionDate, err)
	}
	price, err := ParsePrice(r.Price)
	if err != nil {
		return PersistedState{}, err
	}
	s := PersistedState{
		Symbol:     r.Symbol,
		Condition:  Condition(r.Action),
		ActionDate: date,
		Price:      price,
	}
	if r.UpdatedAt != "" {
		if t, ok := util.ParseTime(r.UpdatedAt); ok {
			s.UpdatedAt = t
		}
	}
	return s, nil
}

// SymbolSummary is the per-symbol block of a cycle report.
type SymbolSummary struct {
	Symbol     string    `json:"symbol"`
	Condition  Condition `json:"action"`
	ActionDate string    `json:"action_date"`
	Price      string    `json:"price"`
}

// Summary builds the report block for a decision.
func (d Decision) Summary() SymbolSummary {
	return SymbolSummary{
		Symbol:     d.Symbol,
		Condition:  d.Condition,
		ActionDate: FormatDate(d.ActionDate),
		Price:      FormatPrice(d.Price),
	}
}

// CycleResult is the outcome of one evaluation cycle.
type CycleResult struct {
	CycleID     string            `json:"cycle_id"`
	StatusCode  int               `json:"status_code"`
	Message     string            `json:"message"`
	Notified    bool              `json:"notified"`
	Differences []string          `json:"differences"`
	Summaries   []SymbolSummary   `json:"summaries"`
	Failures    map[string]string `json:"failures,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	Duration    time.Duration     `json:"duration"`
}

// Report is what a notifier delivers at the end of a cycle.
type Report struct {
	CycleID     string
	Subject     string
	HTML        string
	Text        string
	Differences []string
	Summaries   []SymbolSummary
}

// DecisionEvent is the journal/event representation of a persisted decision.
type DecisionEvent struct {
	CycleID      string    `json:"cycle_id"`
	Symbol       string    `json:"symbol"`
	Condition    Condition `json:"action"`
	TriggerIndex int       `json:"trigger_index"`
	ActionDate   string    `json:"action_date"`
	Price        float64   `json:"price"`
	Changed      bool      `json:"changed"`
	Differences  []string  `json:"differences,omitempty"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}
