// Package indicators computes SMA crossover, RSI, Bollinger Bands and MACD
// over close prices, with a worker pool for computing several at once.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"b3-tracker/internal/config"
	"b3-tracker/internal/models"
)

// Indicator names accepted by the engine.
const (
	NameSMA       = "sma"
	NameRSI       = "rsi"
	NameBollinger = "bollinger"
	NameMACD      = "macd"
)

// Indicator is a technical indicator that adds columns to a Series and
// classifies its last bar.
type Indicator interface {
	Name() string
	Period() int
	Columns() []string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Signal(series *Series) models.Signal
}

// Params holds the indicator parameters.
type Params struct {
	SMAShort        int
	SMALong         int
	RSIPeriod       int
	RSIOversold     float64
	RSIOverbought   float64
	BollingerPeriod int
	BollingerK      float64
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		SMAShort:        20,
		SMALong:         50,
		RSIPeriod:       14,
		RSIOversold:     30,
		RSIOverbought:   70,
		BollingerPeriod: 20,
		BollingerK:      2,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
	}
}

// ParamsFromConfig maps the [indicators] config section.
func ParamsFromConfig(c config.IndicatorConfig) Params {
	return Params{
		SMAShort:        c.SMAShort,
		SMALong:         c.SMALong,
		RSIPeriod:       c.RSIPeriod,
		RSIOversold:     c.RSIOversold,
		RSIOverbought:   c.RSIOverbought,
		BollingerPeriod: c.BollingerPeriod,
		BollingerK:      c.BollingerK,
		MACDFast:        c.MACDFast,
		MACDSlow:        c.MACDSlow,
		MACDSignal:      c.MACDSignal,
	}
}

// Result is an enriched series and the signal of each computed indicator.
type Result struct {
	Series  *Series
	Signals map[string]models.Signal
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers    int
	indicators map[string]Indicator
	mu         sync.RWMutex
}

// NewEngine creates an engine with no indicators registered.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:    workers,
		indicators: make(map[string]Indicator),
	}
}

// NewDefaultEngine creates an engine with all four indicators registered
// using p.
func NewDefaultEngine(workers int, p Params) *Engine {
	e := NewEngine(workers)
	e.Register(NewSMACrossover(p.SMAShort, p.SMALong))
	e.Register(NewRSI(p.RSIPeriod, p.RSIOversold, p.RSIOverbought))
	e.Register(NewBollingerBands(p.BollingerPeriod, p.BollingerK))
	e.Register(NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal))
	return e
}

// Register adds or replaces an indicator.
func (e *Engine) Register(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// Names returns the registered indicator names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators))
	for name := range e.indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) lookup(names []string) ([]Indicator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(names) == 0 {
		all := make([]Indicator, 0, len(e.indicators))
		for _, ind := range e.indicators {
			all = append(all, ind)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
		return all, nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]Indicator, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		ind, ok := e.indicators[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, name)
		}
		seen[name] = true
		out = append(out, ind)
	}
	return out, nil
}

// Enrich computes the named indicators (all registered ones when names is
// empty) into series and returns their signals. Indicators whose columns
// are already present are not recomputed.
func (e *Engine) Enrich(ctx context.Context, series *Series, names []string) (map[string]models.Signal, error) {
	selected, err := e.lookup(names)
	if err != nil {
		return nil, err
	}

	pending := make([]Indicator, 0, len(selected))
	for _, ind := range selected {
		if !series.Has(ind.Columns()...) {
			pending = append(pending, ind)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	work := make(chan Indicator, len(pending))

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ind := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				values, err := ind.Calculate(series.Candles)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = fmt.Errorf("%s: %w", ind.Name(), err)
					}
				} else {
					for col, v := range values {
						series.Set(col, v)
					}
				}
				mu.Unlock()
			}
		}()
	}

	for _, ind := range pending {
		work <- ind
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	signals := make(map[string]models.Signal, len(selected))
	for _, ind := range selected {
		signals[ind.Name()] = ind.Signal(series)
	}
	return signals, nil
}

// Analyze wraps candles in a new Series and enriches it.
func (e *Engine) Analyze(ctx context.Context, candles []models.Candle, names []string) (*Result, error) {
	series := NewSeries(candles)
	signals, err := e.Enrich(ctx, series, names)
	if err != nil {
		return nil, err
	}
	return &Result{Series: series, Signals: signals}, nil
}

// ParseNames splits a comma separated indicator list. An empty string
// selects every indicator.
func ParseNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
