package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"TrendWatch/internal/domain/models"
)

// SymbolParams holds per-symbol indicator parameters loaded from the symbols
// file. Entries that fail to decode or validate are kept as errors so only
// that symbol is skipped.
type SymbolParams struct {
	universe []string
	params   map[string]models.SymbolConfig
	invalid  map[string]error
}

// LoadParams reads the symbols file at path. universe, when non-empty,
// overrides the evaluated symbol list.
func LoadParams(path string, universe []string) (*SymbolParams, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	return ParseParams(b, universe)
}

// ParseParams decodes a JSON (or YAML) object mapping symbol to parameters.
func ParseParams(b []byte, universe []string) (*SymbolParams, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse symbols file: %w", err)
	}

	p := &SymbolParams{
		params:  make(map[string]models.SymbolConfig, len(raw)),
		invalid: make(map[string]error),
	}
	for sym, node := range raw {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		cfg, err := decodeSymbol(&node)
		if err != nil {
			p.invalid[sym] = err
			continue
		}
		p.params[sym] = cfg
	}
	for _, s := range trimAll(universe) {
		p.universe = append(p.universe, strings.ToUpper(s))
	}
	return p, nil
}

func decodeSymbol(node *yaml.Node) (models.SymbolConfig, error) {
	var cfg models.SymbolConfig
	if err := node.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("defaults: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, err
	}
	if err := cfg.ValidateRules(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Symbols returns the configured universe, or every symbol in the file sorted.
func (p *SymbolParams) Symbols() []string {
	if len(p.universe) > 0 {
		return append([]string(nil), p.universe...)
	}
	out := make([]string, 0, len(p.params)+len(p.invalid))
	for s := range p.params {
		out = append(out, s)
	}
	for s := range p.invalid {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Params returns the parameters for symbol or an error wrapping
// models.ErrNoParams.
func (p *SymbolParams) Params(symbol string) (models.SymbolConfig, error) {
	symbol = strings.ToUpper(symbol)
	if cfg, ok := p.params[symbol]; ok {
		return cfg, nil
	}
	if err, ok := p.invalid[symbol]; ok {
		return models.SymbolConfig{}, fmt.Errorf("%w: %s: %v", models.ErrNoParams, symbol, err)
	}
	return models.SymbolConfig{}, fmt.Errorf("%w: %s", models.ErrNoParams, symbol)
}

// Invalid lists symbols whose entries were rejected, with the reason.
func (p *SymbolParams) Invalid() map[string]error {
	out := make(map[string]error, len(p.invalid))
	for k, v := range p.invalid {
		out[k] = v
	}
	return out
}
