package ledger

import (
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	addrA = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC = "0xcccccccccccccccccccccccccccccccccccccccc"
)

func TestDisjointAddressesSum(t *testing.T) {
	l := New()
	amounts := map[string]int64{addrA: 5, addrB: 7, addrC: 11}
	for _, addr := range []string{addrA, addrB, addrC} {
		require.NoError(t, l.Accumulate(addr, big.NewInt(amounts[addr])))
	}

	require.Equal(t, 3, l.Len())
	require.Equal(t, int64(23), l.Total().Int64())
	for addr, want := range amounts {
		require.Equal(t, want, l.Amount(addr).Int64())
	}
}

func TestAccumulateKeepsFirstSeenOrder(t *testing.T) {
	l := New()
	require.NoError(t, l.Accumulate(addrB, big.NewInt(1)))
	require.NoError(t, l.Accumulate(addrA, big.NewInt(2)))
	require.NoError(t, l.Accumulate(addrB, big.NewInt(3)))

	entries := l.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, addrB, entries[0].Address)
	require.Equal(t, int64(4), entries[0].Amount.Int64())
	require.Equal(t, addrA, entries[1].Address)
	require.Equal(t, int64(2), entries[1].Amount.Int64())
}

func TestLedgerDoesNotDeduplicate(t *testing.T) {
	l := New()
	c := Contribution{Address: addrA, Amount: big.NewInt(10), TxHash: "0x01", Source: SourceSafe}
	require.NoError(t, l.Fold([]Contribution{c, c}))
	require.Equal(t, int64(20), l.Amount(addrA).Int64())
	require.Len(t, l.Contributions(addrA), 2)
}

func TestEntriesAreCopies(t *testing.T) {
	l := New()
	amount := big.NewInt(10)
	require.NoError(t, l.Add(Contribution{Address: addrA, Amount: amount}))
	amount.SetInt64(999)

	entries := l.Entries()
	entries[0].Amount.SetInt64(0)
	require.Equal(t, int64(10), l.Amount(addrA).Int64())
	require.Equal(t, int64(10), l.Contributions(addrA)[0].Amount.Int64())
}

func TestRejectsInvalidInput(t *testing.T) {
	l := New()
	require.Error(t, l.Accumulate("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", big.NewInt(1)))
	require.Error(t, l.Accumulate("dao.jbx.eth", big.NewInt(1)))
	require.Error(t, l.Accumulate(addrA, big.NewInt(-1)))
	require.Error(t, l.Accumulate(addrA, nil))
	require.Equal(t, 0, l.Len())
}

func TestConcurrentAccumulate(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := l.Accumulate(addrA, big.NewInt(1)); err != nil {
					panic(fmt.Sprint(err))
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1000), l.Amount(addrA).Int64())
}
