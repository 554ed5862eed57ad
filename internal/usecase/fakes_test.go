package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"TrendWatch/internal/domain/models"
	drepo "TrendWatch/internal/domain/repository"
)

var errFetch = errors.New("provider down")

// scriptedProvider returns, per symbol, one scripted result per call. The last
// entry repeats once the script is exhausted.
type scriptedProvider struct {
	mu     sync.Mutex
	script map[string][]fetchResult
	calls  map[string]int
	after  func(symbol string)
}

type fetchResult struct {
	bars []models.Bar
	err  error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{script: map[string][]fetchResult{}, calls: map[string]int{}}
}

func (p *scriptedProvider) on(symbol string, results ...fetchResult) *scriptedProvider {
	p.script[symbol] = results
	return p
}

func (p *scriptedProvider) FetchSeries(_ context.Context, symbol string, _ drepo.Interval) ([]models.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	results := p.script[symbol]
	if len(results) == 0 {
		return nil, errFetch
	}
	i := p.calls[symbol]
	p.calls[symbol]++
	if i >= len(results) {
		i = len(results) - 1
	}
	if p.after != nil {
		p.after(symbol)
	}
	return results[i].bars, results[i].err
}

// newestFirst builds provider bars from closes given newest first.
func newestFirst(closes ...float64) []models.Bar {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Close: c}
	}
	return bars
}

type memStore struct {
	mu     sync.Mutex
	data   map[string]models.PersistedState
	writes []string
	getErr error
	putErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{data: map[string]models.PersistedState{}, putErr: map[string]error{}}
}

func (s *memStore) Get(_ context.Context, symbol string) (models.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return models.PersistedState{}, s.getErr
	}
	st, ok := s.data[symbol]
	if !ok {
		return models.PersistedState{}, models.ErrStateNotFound
	}
	return st, nil
}

func (s *memStore) Put(_ context.Context, st models.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putErr[st.Symbol]; err != nil {
		return err
	}
	s.data[st.Symbol] = st
	s.writes = append(s.writes, st.Symbol)
	return nil
}

func (s *memStore) List(_ context.Context) ([]models.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PersistedState, 0, len(s.data))
	for _, st := range s.data {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *memStore) Close() error { return nil }

type recordingNotifier struct {
	reports []models.Report
	ctxErrs []error
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, r models.Report) error {
	n.reports = append(n.reports, r)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

type staticParams struct {
	order  []string
	params map[string]models.SymbolConfig
}

func (p staticParams) Symbols() []string { return p.order }

func (p staticParams) Params(symbol string) (models.SymbolConfig, error) {
	cfg, ok := p.params[symbol]
	if !ok {
		return models.SymbolConfig{}, models.ErrNoParams
	}
	return cfg, nil
}

type recordingJournal struct {
	events []models.DecisionEvent
}

func (j *recordingJournal) Record(_ context.Context, ev models.DecisionEvent) error {
	j.events = append(j.events, ev)
	return nil
}
