// Package exchange converts monetary amounts between currencies and USD
// using a fixed rate table. Conversion is deterministic: half-up rounding to
// two decimal places, no network lookups, no caching.
package exchange

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// usdPlaces is the number of decimal places every converted amount is
// rounded to. Rounding mode (half up) and place count are part of the
// contract so results are reproducible to the cent.
const usdPlaces = 2

// RateTable maps an ISO 4217 currency code to its rate against USD
// (1 unit of the currency = rate USD). USD itself is implicit.
type RateTable map[string]decimal.Decimal

// DefaultRates returns the built-in rate table. In production rates come
// from configuration or an administrative update, not from the sync path.
func DefaultRates() RateTable {
	return RateTable{
		"EUR": decimal.NewFromFloat(1.08),
		"GBP": decimal.NewFromFloat(1.27),
		"CAD": decimal.NewFromFloat(0.74),
		"AUD": decimal.NewFromFloat(0.65),
		"JPY": decimal.NewFromFloat(0.0067),
		"INR": decimal.NewFromFloat(0.012),
		"CNY": decimal.NewFromFloat(0.14),
		"BRL": decimal.NewFromFloat(0.20),
		"MXN": decimal.NewFromFloat(0.058),
	}
}

// UnsupportedCurrencyError is returned when a conversion is requested for a
// currency with no registered rate. Callers must not guess a rate.
type UnsupportedCurrencyError struct {
	Currency  string
	Supported []string
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency %q (supported: %s)",
		e.Currency, strings.Join(e.Supported, ", "))
}

// Converter converts amounts to and from USD.
// Reads are lock-free on the caller's hot path apart from an RWMutex that
// exists solely so administrative rate updates can swap the table safely.
type Converter struct {
	mu    sync.RWMutex
	rates RateTable
}

// NewConverter creates a Converter over a copy of the given table.
// A nil table falls back to the defaults. Currency codes are normalized
// to upper case; a USD entry, if present, is ignored (USD is always 1).
func NewConverter(rates RateTable) *Converter {
	if rates == nil {
		rates = DefaultRates()
	}
	c := &Converter{rates: make(RateTable, len(rates))}
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "USD" {
			continue
		}
		c.rates[code] = rate
	}
	return c
}

// ToUSD converts amount from the given currency to USD, rounded half up to
// two decimal places. USD amounts pass through (still rounded).
func (c *Converter) ToUSD(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "USD" {
		return amount.Round(usdPlaces), nil
	}

	rate, ok := c.rate(code)
	if !ok {
		return decimal.Decimal{}, &UnsupportedCurrencyError{Currency: currency, Supported: c.Supported()}
	}
	return amount.Mul(rate).Round(usdPlaces), nil
}

// FromUSD converts a USD amount into the given currency, rounded half up to
// two decimal places. FromUSD(ToUSD(x)) is not guaranteed to return x to
// the cent; the two directions are only internally consistent.
func (c *Converter) FromUSD(amountUSD decimal.Decimal, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "USD" {
		return amountUSD.Round(usdPlaces), nil
	}

	rate, ok := c.rate(code)
	if !ok {
		return decimal.Decimal{}, &UnsupportedCurrencyError{Currency: currency, Supported: c.Supported()}
	}
	return amountUSD.Div(rate).Round(usdPlaces), nil
}

// Rate returns the registered rate for a currency code.
func (c *Converter) Rate(currency string) (decimal.Decimal, bool) {
	return c.rate(strings.ToUpper(strings.TrimSpace(currency)))
}

// IsSupported reports whether the currency can be converted.
func (c *Converter) IsSupported(currency string) bool {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "USD" {
		return true
	}
	_, ok := c.rate(code)
	return ok
}

// Supported lists every convertible currency code in sorted order,
// including USD.
func (c *Converter) Supported() []string {
	c.mu.RLock()
	codes := make([]string, 0, len(c.rates)+1)
	codes = append(codes, "USD")
	for code := range c.rates {
		codes = append(codes, code)
	}
	c.mu.RUnlock()
	sort.Strings(codes)
	return codes
}

// SetRate registers or replaces the rate for a currency. This is the
// administrative update path; the sync path never mutates the table.
func (c *Converter) SetRate(currency string, rate decimal.Decimal) error {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return fmt.Errorf("currency code cannot be empty")
	}
	if code == "USD" {
		return fmt.Errorf("the USD rate is fixed at 1")
	}
	if !rate.IsPositive() {
		return fmt.Errorf("exchange rate must be positive, got %s", rate)
	}
	c.mu.Lock()
	c.rates[code] = rate
	c.mu.Unlock()
	return nil
}

func (c *Converter) rate(code string) (decimal.Decimal, bool) {
	c.mu.RLock()
	rate, ok := c.rates[code]
	c.mu.RUnlock()
	return rate, ok
}
