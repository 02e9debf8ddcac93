package safe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/filipviz/juicy-reimburser/internal/address"
	"github.com/filipviz/juicy-reimburser/internal/daterange"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
)

var tracer = otel.Tracer("github.com/filipviz/juicy-reimburser/internal/safe")

// Lister returns the executed transaction history of a Safe.
type Lister interface {
	ExecutedTransactions(ctx context.Context, safe common.Address) ([]Transaction, error)
}

// Result is what one Safe fetch produced.
type Result struct {
	Fetched       int
	Contributions []ledger.Contribution
}

type Fetcher struct {
	lister Lister
	window daterange.Window
}

func NewFetcher(lister Lister, window daterange.Window) *Fetcher {
	return &Fetcher{lister: lister, window: window}
}

// Fetch lists every executed transaction of safe and returns one contribution
// per surviving execution, paid to its executor.
func (f *Fetcher) Fetch(ctx context.Context, safe common.Address) (Result, error) {
	ctx, span := tracer.Start(ctx, "safe.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("safe", safe.Hex()))

	txs, err := f.lister.ExecutedTransactions(ctx, safe)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	kept := Filter(txs, f.window)
	span.SetAttributes(attribute.Int("fetched", len(txs)), attribute.Int("kept", len(kept)))

	out := make([]ledger.Contribution, 0, len(kept))
	for _, tx := range kept {
		if !common.IsHexAddress(tx.Executor) {
			err := fmt.Errorf("safe transaction %s: invalid executor %q", tx.TransactionHash, tx.Executor)
			span.SetStatus(codes.Error, err.Error())
			return Result{}, err
		}
		fee, err := tx.Fee.Wei()
		if err != nil {
			err = fmt.Errorf("safe transaction %s: %w", tx.TransactionHash, err)
			span.SetStatus(codes.Error, err.Error())
			return Result{}, err
		}
		var executedAt time.Time
		if tx.ExecutionDate != nil {
			executedAt = *tx.ExecutionDate
		}
		out = append(out, ledger.Contribution{
			Address:   address.Normalize(common.HexToAddress(tx.Executor)),
			Amount:    fee,
			Source:    ledger.SourceSafe,
			Label:     "Execute Safe transaction",
			TxHash:    tx.TransactionHash,
			Timestamp: executedAt,
		})
	}
	return Result{Fetched: len(txs), Contributions: out}, nil
}

// Filter keeps the first occurrence of each hash, drops entries without an
// executor and applies the window to the execution date.
func Filter(txs []Transaction, window daterange.Window) []Transaction {
	seen := make(map[string]struct{}, len(txs))
	var kept []Transaction
	for _, tx := range txs {
		hash := strings.ToLower(tx.TransactionHash)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		if strings.TrimSpace(tx.Executor) == "" {
			continue
		}
		var executedAt time.Time
		if tx.ExecutionDate != nil {
			executedAt = *tx.ExecutionDate
		}
		if !window.Contains(executedAt) {
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}
