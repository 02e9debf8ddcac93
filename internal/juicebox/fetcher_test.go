package juicebox

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/filipviz/juicy-reimburser/internal/chain"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/subgraph"
)

type fakeEvents struct {
	byKind  map[subgraph.EventKind][]subgraph.Event
	err     error
	queries []subgraph.Query
}

func (f *fakeEvents) Events(_ context.Context, q subgraph.Query, _ int) ([]subgraph.Event, bool, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, false, f.err
	}
	return f.byKind[q.Kind], false, nil
}

type fakeChain struct {
	txs      map[common.Hash]chain.Transaction
	receipts map[common.Hash]*big.Int
	delay    time.Duration

	inFlight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (f *fakeChain) Transaction(_ context.Context, hash common.Hash) (chain.Transaction, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(f.delay)

	tx, ok := f.txs[hash]
	if !ok {
		return chain.Transaction{}, errors.New("not found")
	}
	return tx, nil
}

func (f *fakeChain) ReceiptCost(_ context.Context, hash common.Hash) (*big.Int, error) {
	cost, ok := f.receipts[hash]
	if !ok {
		return nil, errors.New("no receipt")
	}
	return cost, nil
}

func hashN(n int) common.Hash { return common.BigToHash(big.NewInt(int64(n))) }

var (
	sender = common.HexToAddress("0xBBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	caller = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func event(n int) subgraph.Event {
	return subgraph.Event{TxHash: hashN(n).Hex(), Caller: caller, Timestamp: "1700000000"}
}

func TestFetchPricesGasTimesGasPrice(t *testing.T) {
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{
		subgraph.DistributePayouts: {event(1)},
	}}
	txs := &fakeChain{txs: map[common.Hash]chain.Transaction{
		hashN(1): {Hash: hashN(1), From: sender, Gas: 21000, GasPrice: big.NewInt(50_000_000_000)},
	}}

	got, err := NewFetcher(events, txs, Options{}).Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", got[0].Address)
	require.Equal(t, "1050000000000000", got[0].Amount.String())
	require.Equal(t, ledger.SourceJuicebox, got[0].Source)
	require.Equal(t, int64(1700000000), got[0].Timestamp.Unix())

	require.Len(t, events.queries, 2)
	require.Equal(t, subgraph.DistributePayouts, events.queries[0].Kind)
	require.Equal(t, subgraph.DistributeReservedTokens, events.queries[1].Kind)
	require.Equal(t, uint64(1), events.queries[0].ProjectID)
}

func TestFetchDoubleCountsAcrossKindsByDefault(t *testing.T) {
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{
		subgraph.DistributePayouts:        {event(1)},
		subgraph.DistributeReservedTokens: {event(1)},
	}}
	txs := &fakeChain{txs: map[common.Hash]chain.Transaction{
		hashN(1): {From: sender, Gas: 100, GasPrice: big.NewInt(2)},
	}}

	got, err := NewFetcher(events, txs, Options{}).Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = NewFetcher(events, txs, Options{Dedupe: true}).Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestFetchReceiptMode(t *testing.T) {
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{
		subgraph.DistributeReservedTokens: {event(7)},
	}}
	txs := &fakeChain{
		txs:      map[common.Hash]chain.Transaction{hashN(7): {From: sender, Gas: 100000, GasPrice: big.NewInt(10)}},
		receipts: map[common.Hash]*big.Int{hashN(7): big.NewInt(420000)},
	}

	got, err := NewFetcher(events, txs, Options{CostMode: CostReceipt}).Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(420000), got[0].Amount.Int64())
}

func TestFetchFailsOnLookupError(t *testing.T) {
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{
		subgraph.DistributePayouts: {event(1), event(2)},
	}}
	txs := &fakeChain{txs: map[common.Hash]chain.Transaction{
		hashN(1): {From: sender, Gas: 1, GasPrice: big.NewInt(1)},
	}}
	_, err := NewFetcher(events, txs, Options{}).Fetch(context.Background(), 1)
	require.Error(t, err)
}

func TestFetchFailsOnSubgraphError(t *testing.T) {
	events := &fakeEvents{err: errors.New("bad gateway")}
	_, err := NewFetcher(events, &fakeChain{}, Options{}).Fetch(context.Background(), 1)
	require.ErrorContains(t, err, "bad gateway")
}

func TestFetchRejectsMalformedHash(t *testing.T) {
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{
		subgraph.DistributePayouts: {{TxHash: "0x1234"}},
	}}
	_, err := NewFetcher(events, &fakeChain{}, Options{}).Fetch(context.Background(), 1)
	require.Error(t, err)
}

func TestFetchRespectsWorkerLimit(t *testing.T) {
	var evs []subgraph.Event
	txs := &fakeChain{txs: map[common.Hash]chain.Transaction{}, delay: 5 * time.Millisecond}
	for i := 1; i <= 24; i++ {
		evs = append(evs, event(i))
		txs.txs[hashN(i)] = chain.Transaction{From: sender, Gas: uint64(i), GasPrice: big.NewInt(1)}
	}
	events := &fakeEvents{byKind: map[subgraph.EventKind][]subgraph.Event{subgraph.DistributePayouts: evs}}

	got, err := NewFetcher(events, txs, Options{Workers: 3}).Fetch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 24)
	require.LessOrEqual(t, txs.peak, int32(3))
	for i, c := range got {
		require.Equal(t, int64(i+1), c.Amount.Int64(), fmt.Sprintf("result %d out of order", i))
	}
}

func TestParseCostMode(t *testing.T) {
	m, err := ParseCostMode("")
	require.NoError(t, err)
	require.Equal(t, CostGasLimit, m)
	m, err = ParseCostMode("Receipt")
	require.NoError(t, err)
	require.Equal(t, CostReceipt, m)
	_, err = ParseCostMode("fast")
	require.Error(t, err)
}
