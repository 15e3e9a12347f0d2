package ledger

import "sync"

// Pricing is the per-million-token rate for one model.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing is applied to models without a configured rate.
var DefaultPricing = Pricing{InputPerMillion: 1.0, OutputPerMillion: 2.0}

// Totals is a read-only snapshot of accumulated usage.
type Totals struct {
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// Tokens returns combined input and output tokens.
func (t Totals) Tokens() int64 { return t.InputTokens + t.OutputTokens }

// Ledger accumulates token usage and derived cost for a single run.
// It is created fresh per run, safe for concurrent Record calls, and read
// once at run finalization.
type Ledger struct {
	mu       sync.Mutex
	prices   map[string]Pricing
	fallback Pricing
	totals   Totals
}

// New builds a ledger with the given per-model price table. A zero-valued
// fallback is replaced by DefaultPricing.
func New(prices map[string]Pricing, fallback Pricing) *Ledger {
	if fallback == (Pricing{}) {
		fallback = DefaultPricing
	}
	return &Ledger{prices: prices, fallback: fallback}
}

// Record adds one call's token usage and its estimated cost.
func (l *Ledger) Record(inputTokens, outputTokens int64, model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals.InputTokens += inputTokens
	l.totals.OutputTokens += outputTokens
	l.totals.CostUSD += l.estimate(inputTokens, outputTokens, model)
}

func (l *Ledger) estimate(inputTokens, outputTokens int64, model string) float64 {
	rate, ok := l.prices[model]
	if !ok {
		rate = l.fallback
	}
	return (float64(inputTokens)*rate.InputPerMillion + float64(outputTokens)*rate.OutputPerMillion) / 1_000_000
}

// Snapshot returns the accumulated totals.
func (l *Ledger) Snapshot() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals
}
