// Package output renders a frozen ledger as a Safe transaction-builder
// bundle, a CSV file and a markdown report.
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/filipviz/juicy-reimburser/internal/daterange"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/units"
)

// Safe transaction builder bundle.
type Bundle struct {
	ChainID      string        `json:"chainId"`
	CreatedAt    int64         `json:"createdAt"`
	Meta         Meta          `json:"meta"`
	Transactions []Transaction `json:"transactions"`
}

type Meta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Transaction struct {
	To    string `json:"to"`
	Value string `json:"value"`
}

// NewBundle builds one plain ETH transfer per ledger entry. CreatedAt is in
// milliseconds, as the transaction builder expects.
func NewBundle(chainID string, createdAt time.Time, meta Meta, entries []ledger.Entry) Bundle {
	b := Bundle{
		ChainID:      chainID,
		CreatedAt:    createdAt.UnixMilli(),
		Meta:         meta,
		Transactions: make([]Transaction, 0, len(entries)),
	}
	for _, e := range entries {
		b.Transactions = append(b.Transactions, Transaction{
			To:    common.HexToAddress(e.Address).Hex(),
			Value: e.Amount.String(),
		})
	}
	return b
}

// Description summarizes the run for the bundle metadata.
func Description(sources []string, window daterange.Window) string {
	return "Includes transactions from " + strings.Join(sources, " & ") + window.Describe()
}

func MarshalBundle(b Bundle) ([]byte, error) {
	return json.Marshal(b)
}

// CSV renders "address, ether" lines joined by newlines.
func CSV(entries []ledger.Entry) []byte {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Address+", "+units.FormatEther(e.Amount))
	}
	return []byte(strings.Join(lines, "\n"))
}

// Report renders a per-address breakdown of every reimbursed transaction.
func Report(title string, window daterange.Window, l *ledger.Ledger) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", title)
	if d := strings.TrimPrefix(window.Describe(), ", "); d != "" {
		fmt.Fprintf(&b, "Transactions %s\n\n", d)
	}
	fmt.Fprintf(&b, "Total to reimburse: %s ETH across %d addresses\n\n", units.FormatEther(l.Total()), l.Len())

	for _, e := range l.Entries() {
		fmt.Fprintf(&b, "## Summary for %s\n\n", common.HexToAddress(e.Address).Hex())
		fmt.Fprintf(&b, "Total gas to reimburse: %s ETH\n\n", units.FormatEther(e.Amount))
		fmt.Fprintf(&b, "### Transactions\n\n")
		for _, c := range l.Contributions(e.Address) {
			fmt.Fprintf(&b, "Type: %s\n", c.Label)
			if c.TxHash != "" {
				fmt.Fprintf(&b, "TxHash: %s\n", c.TxHash)
			}
			fmt.Fprintf(&b, "Gas: %s ETH\n", units.FormatEther(c.Amount))
			if !c.Timestamp.IsZero() {
				fmt.Fprintf(&b, "Time: %s\n", c.Timestamp.UTC().Format(time.RFC1123))
			}
			b.WriteString("\n")
		}
	}
	return b.Bytes()
}

// Files names the artifacts to write. An empty path skips that artifact.
type Files struct {
	Builder string
	CSV     string
	Report  string
}

// Artifact is one rendered output.
type Artifact struct {
	Name string
	Path string
	Data func() ([]byte, error)
}

// Artifacts renders the bundle, the CSV and the report for l. The ledger must
// no longer be mutated.
func (f Files) Artifacts(b Bundle, window daterange.Window, l *ledger.Ledger) []Artifact {
	entries := l.Entries()
	return []Artifact{
		{Name: "transaction builder bundle", Path: f.Builder, Data: func() ([]byte, error) {
			return MarshalBundle(b)
		}},
		{Name: "CSV", Path: f.CSV, Data: func() ([]byte, error) {
			return CSV(entries), nil
		}},
		{Name: "report", Path: f.Report, Data: func() ([]byte, error) {
			return Report(b.Meta.Name, window, l), nil
		}},
	}
}

// WriteAll attempts every artifact even when an earlier one fails and returns
// the joined errors. onDone is told about each attempt.
func WriteAll(artifacts []Artifact, onDone func(a Artifact, err error)) error {
	var errs []error
	for _, a := range artifacts {
		if a.Path == "" {
			continue
		}
		err := write(a)
		if onDone != nil {
			onDone(a, err)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s to %s: %w", a.Name, a.Path, err))
		}
	}
	return errors.Join(errs...)
}

func write(a Artifact) error {
	data, err := a.Data()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(a.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(a.Path, data, 0o644)
}
