// Package ledger accumulates the wei owed to each reimbursed address.
package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/filipviz/juicy-reimburser/internal/address"
)

// Source names where a contribution was found.
type Source string

const (
	SourceManual   Source = "manual"
	SourceSafe     Source = "safe"
	SourceJuicebox Source = "juicebox"
)

// Contribution is one reimbursable amount produced by a fetcher.
type Contribution struct {
	Address   string // normalized, see address.Normalize
	Amount    *big.Int
	Source    Source
	Label     string
	TxHash    string
	Timestamp time.Time
}

// Entry is a frozen (address, total) pair.
type Entry struct {
	Address string
	Amount  *big.Int
}

// Ledger maps normalized addresses to cumulative wei. Amounts only grow and
// the ledger never deduplicates: feeding the same contribution twice counts
// it twice. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	order   []string
	totals  map[string]*big.Int
	details map[string][]Contribution
}

func New() *Ledger {
	return &Ledger{
		totals:  make(map[string]*big.Int),
		details: make(map[string][]Contribution),
	}
}

// Accumulate adds amount to addr's running total.
func (l *Ledger) Accumulate(addr string, amount *big.Int) error {
	if err := check(addr, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accumulate(addr, amount)
	return nil
}

// Add accumulates c and keeps it for reporting.
func (l *Ledger) Add(c Contribution) error {
	if err := check(c.Address, c.Amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accumulate(c.Address, c.Amount)
	c.Amount = new(big.Int).Set(c.Amount)
	l.details[c.Address] = append(l.details[c.Address], c)
	return nil
}

// Fold adds every contribution in order. It stops at the first invalid one.
func (l *Ledger) Fold(cs []Contribution) error {
	for _, c := range cs {
		if err := l.Add(c); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) accumulate(addr string, amount *big.Int) {
	total, ok := l.totals[addr]
	if !ok {
		total = new(big.Int)
		l.totals[addr] = total
		l.order = append(l.order, addr)
	}
	total.Add(total, amount)
}

func check(addr string, amount *big.Int) error {
	if !address.IsNormalized(addr) {
		return fmt.Errorf("ledger: address %q is not a lowercase hex address", addr)
	}
	if amount == nil {
		return fmt.Errorf("ledger: nil amount for %s", addr)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("ledger: negative amount %s for %s", amount, addr)
	}
	return nil
}

// Entries returns copies of all totals in the order addresses were first seen.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.order))
	for _, addr := range l.order {
		out = append(out, Entry{Address: addr, Amount: new(big.Int).Set(l.totals[addr])})
	}
	return out
}

// Amount returns addr's total, zero when absent.
func (l *Ledger) Amount(addr string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if total, ok := l.totals[addr]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}

// Contributions returns what was added for addr through Add or Fold.
func (l *Ledger) Contributions(addr string) []Contribution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Contribution(nil), l.details[addr]...)
}

func (l *Ledger) Total() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	sum := new(big.Int)
	for _, total := range l.totals {
		sum.Add(sum, total)
	}
	return sum
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}
