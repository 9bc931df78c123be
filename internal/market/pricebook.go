// Package market holds the simulated price book for the fixed asset catalog.
package market

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of decimal places a drifted price is rounded to.
const PricePrecision = 8

// USD is the cash marker used by transactions that do not concern an asset.
const USD Symbol = "USD"

// ErrUnknownSymbol is returned when a symbol is not part of the catalog.
var ErrUnknownSymbol = errors.New("unknown symbol")

var (
	// each drift step is (r-0.5)*0.5 percent of the price
	priceDriftScale  = decimal.NewFromFloat(0.5)
	changeDriftScale = decimal.NewFromInt(1)
	half             = decimal.NewFromFloat(0.5)
	hundred          = decimal.NewFromInt(100)
)

// Symbol identifies a tradable asset, e.g. "BTC".
type Symbol string

// String implements fmt.Stringer.
func (s Symbol) String() string { return string(s) }

// PriceEntry is the latest simulated price of a symbol.
type PriceEntry struct {
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// Quote is a catalog row: a symbol, its display name and its current price entry.
type Quote struct {
	Symbol Symbol `json:"symbol"`
	Name   string `json:"name"`
	PriceEntry
}

// RandomSource yields uniformly distributed values in [0, 1).
// *math/rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// DefaultCatalog returns the six assets the dashboard trades, with their seed prices.
func DefaultCatalog() []Quote {
	return []Quote{
		newQuote("BTC", "Bitcoin", "6622.00", "2.4"),
		newQuote("ETH", "Ethereum", "1973.80", "-1.2"),
		newQuote("SOL", "Solana", "84.671", "5.7"),
		newQuote("ADA", "Cardano", "0.28472", "-0.5"),
		newQuote("DOT", "Polkadot", "7.25", "3.2"),
		newQuote("LINK", "Chainlink", "9.0542", "1.8"),
	}
}

func newQuote(symbol Symbol, name, price, change string) Quote {
	return Quote{
		Symbol: symbol,
		Name:   name,
		PriceEntry: PriceEntry{
			Price:         decimal.RequireFromString(price),
			ChangePercent: decimal.RequireFromString(change),
		},
	}
}

// PriceBook holds the current price and change percent of every catalog symbol.
// Readers may run concurrently with Tick.
type PriceBook struct {
	mu      sync.RWMutex
	order   []Symbol
	names   map[Symbol]string
	entries map[Symbol]PriceEntry
	rnd     RandomSource
}

// NewPriceBook seeds a price book from the given catalog.
func NewPriceBook(catalog []Quote, rnd RandomSource) (*PriceBook, error) {
	if rnd == nil {
		return nil, errors.New("random source is required")
	}
	if len(catalog) == 0 {
		return nil, errors.New("catalog is empty")
	}

	b := &PriceBook{
		order:   make([]Symbol, 0, len(catalog)),
		names:   make(map[Symbol]string, len(catalog)),
		entries: make(map[Symbol]PriceEntry, len(catalog)),
		rnd:     rnd,
	}
	for _, q := range catalog {
		if q.Symbol == "" || q.Symbol == USD {
			return nil, fmt.Errorf("invalid catalog symbol %q", q.Symbol)
		}
		if _, dup := b.entries[q.Symbol]; dup {
			return nil, fmt.Errorf("duplicate catalog symbol %s", q.Symbol)
		}
		if !q.Price.IsPositive() {
			return nil, fmt.Errorf("seed price for %s must be positive, got %s", q.Symbol, q.Price)
		}
		b.order = append(b.order, q.Symbol)
		b.names[q.Symbol] = q.Name
		b.entries[q.Symbol] = q.PriceEntry
	}
	return b, nil
}

// Get returns the price entry for symbol.
func (b *PriceBook) Get(symbol Symbol) (PriceEntry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[symbol]
	return e, ok
}

// Price returns the current price for symbol or ErrUnknownSymbol.
func (b *PriceBook) Price(symbol Symbol) (decimal.Decimal, error) {
	e, ok := b.Get(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return e.Price, nil
}

// Has reports whether symbol is in the catalog.
func (b *PriceBook) Has(symbol Symbol) bool {
	_, ok := b.Get(symbol)
	return ok
}

// Symbols returns the catalog symbols in catalog order.
func (b *PriceBook) Symbols() []Symbol {
	out := make([]Symbol, len(b.order))
	copy(out, b.order)
	return out
}

// Quotes returns a snapshot of every quote in catalog order.
func (b *PriceBook) Quotes() []Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Quote, 0, len(b.order))
	for _, s := range b.order {
		out = append(out, Quote{Symbol: s, Name: b.names[s], PriceEntry: b.entries[s]})
	}
	return out
}

// Prices returns a symbol → price snapshot.
func (b *PriceBook) Prices() map[Symbol]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[Symbol]decimal.Decimal, len(b.entries))
	for s, e := range b.entries {
		out[s] = e.Price
	}
	return out
}

// Tick applies one random drift step to every symbol.
// Price moves by up to ±0.25% and the change percent by up to ±0.5 points.
func (b *PriceBook) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.order {
		e := b.entries[s]

		drift := b.draw().Mul(priceDriftScale)
		factor := decimal.NewFromInt(1).Add(drift.Div(hundred))
		price := e.Price.Mul(factor).Round(PricePrecision)
		if !price.IsPositive() {
			panic(fmt.Sprintf("market: price for %s drifted to %s", s, price))
		}

		change := e.ChangePercent.Add(b.draw().Mul(changeDriftScale)).Round(2)

		b.entries[s] = PriceEntry{Price: price, ChangePercent: change}
	}
}

// draw returns a centred random value in [-0.5, 0.5).
func (b *PriceBook) draw() decimal.Decimal {
	return decimal.NewFromFloat(b.rnd.Float64()).Sub(half)
}
