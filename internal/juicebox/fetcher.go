// Package juicebox prices the transactions behind a project's payout and
// reserved-token distributions.
package juicebox

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/filipviz/juicy-reimburser/internal/address"
	"github.com/filipviz/juicy-reimburser/internal/chain"
	"github.com/filipviz/juicy-reimburser/internal/daterange"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/subgraph"
)

var tracer = otel.Tracer("github.com/filipviz/juicy-reimburser/internal/juicebox")

// CostMode selects how a transaction's gas is priced.
type CostMode string

const (
	// CostGasLimit charges gas limit * gasPrice, as reported with the transaction.
	CostGasLimit CostMode = "limit"
	// CostReceipt charges gasUsed * effectiveGasPrice from the receipt.
	CostReceipt CostMode = "receipt"
)

func ParseCostMode(s string) (CostMode, error) {
	switch CostMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CostGasLimit:
		return CostGasLimit, nil
	case CostReceipt:
		return CostReceipt, nil
	}
	return "", fmt.Errorf("unknown cost mode %q (want %q or %q)", s, CostGasLimit, CostReceipt)
}

// EventSource lists distribution events.
type EventSource interface {
	Events(ctx context.Context, q subgraph.Query, maxPages int) ([]subgraph.Event, bool, error)
}

// TransactionSource looks transactions up on chain.
type TransactionSource interface {
	Transaction(ctx context.Context, hash common.Hash) (chain.Transaction, error)
	ReceiptCost(ctx context.Context, hash common.Hash) (*big.Int, error)
}

type Options struct {
	Window daterange.Window
	// Workers caps concurrent transaction lookups per event kind; 0 is unbounded.
	Workers int
	// MaxPages caps subgraph pages per event kind; 0 is unbounded, 1 is a
	// single 1000 event query.
	MaxPages int
	// Dedupe drops a transaction already counted under another event kind.
	Dedupe   bool
	CostMode CostMode
	// OnPhase, when set, is told how many events each kind returned.
	OnPhase func(kind subgraph.EventKind, events int)
}

type Fetcher struct {
	events EventSource
	chain  TransactionSource
	opts   Options
}

func NewFetcher(events EventSource, txs TransactionSource, opts Options) *Fetcher {
	if opts.CostMode == "" {
		opts.CostMode = CostGasLimit
	}
	return &Fetcher{events: events, chain: txs, opts: opts}
}

// Fetch walks every event kind in turn and returns one contribution per event,
// paid to the sender of the event's transaction.
func (f *Fetcher) Fetch(ctx context.Context, projectID uint64) ([]ledger.Contribution, error) {
	ctx, span := tracer.Start(ctx, "juicebox.fetch")
	defer span.End()
	span.SetAttributes(attribute.Int64("project_id", int64(projectID)))

	seen := make(map[common.Hash]struct{})
	var out []ledger.Contribution
	for _, kind := range subgraph.Kinds {
		events, truncated, err := f.events.Events(ctx, subgraph.Query{
			Kind:      kind,
			ProjectID: projectID,
			Window:    f.opts.Window,
		}, f.opts.MaxPages)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("fetch %s: %w", kind, err)
		}
		if truncated {
			slog.Warn("subgraph page limit reached, later events are ignored",
				"kind", kind, "events", len(events), "max_pages", f.opts.MaxPages)
		}
		if f.opts.OnPhase != nil {
			f.opts.OnPhase(kind, len(events))
		}

		hashes := make([]common.Hash, 0, len(events))
		for _, ev := range events {
			hash, err := parseHash(ev.TxHash)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, fmt.Errorf("%s event: %w", kind, err)
			}
			if f.opts.Dedupe {
				if _, dup := seen[hash]; dup {
					continue
				}
				seen[hash] = struct{}{}
			}
			hashes = append(hashes, hash)
		}

		contribs, err := f.lookup(ctx, kind, hashes, events)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		slog.Debug("priced juicebox transactions", "kind", kind, "count", len(contribs))
		out = append(out, contribs...)
	}
	return out, nil
}

// lookup prices hashes concurrently. Results keep the order of hashes.
func (f *Fetcher) lookup(ctx context.Context, kind subgraph.EventKind, hashes []common.Hash, events []subgraph.Event) ([]ledger.Contribution, error) {
	timestamps := make(map[common.Hash]time.Time, len(events))
	for _, ev := range events {
		if ts, err := strconv.ParseInt(ev.Timestamp.String(), 10, 64); err == nil {
			timestamps[common.HexToHash(ev.TxHash)] = time.Unix(ts, 0).UTC()
		}
	}

	results := make([]ledger.Contribution, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	if f.opts.Workers > 0 {
		g.SetLimit(f.opts.Workers)
	}
	for i, hash := range hashes {
		i, hash := i, hash
		g.Go(func() error {
			from, cost, err := f.price(gctx, hash)
			if err != nil {
				return fmt.Errorf("price %s transaction %s: %w", kind, hash.Hex(), err)
			}
			results[i] = ledger.Contribution{
				Address:   address.Normalize(from),
				Amount:    cost,
				Source:    ledger.SourceJuicebox,
				Label:     kind.Label(),
				TxHash:    hash.Hex(),
				Timestamp: timestamps[hash],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *Fetcher) price(ctx context.Context, hash common.Hash) (common.Address, *big.Int, error) {
	ctx, span := tracer.Start(ctx, "juicebox.price")
	defer span.End()
	span.SetAttributes(attribute.String("tx", hash.Hex()))

	tx, err := f.chain.Transaction(ctx, hash)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return common.Address{}, nil, err
	}
	if f.opts.CostMode == CostReceipt {
		cost, err := f.chain.ReceiptCost(ctx, hash)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return common.Address{}, nil, err
		}
		return tx.From, cost, nil
	}
	return tx.From, tx.Cost(), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", s)
	}
	return common.BytesToHash(b), nil
}
