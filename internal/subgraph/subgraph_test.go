package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/filipviz/juicy-reimburser/internal/daterange"
)

func TestRequestWithoutWindow(t *testing.T) {
	req, err := Query{Kind: DistributePayouts, ProjectID: 1}.Request()
	require.NoError(t, err)
	require.Contains(t, req.Query, "distributePayoutsEvents(")
	require.Contains(t, req.Query, "where: {projectId: $projectId}")
	require.NotContains(t, req.Query, "timestamp_gt")
	require.NotContains(t, req.Query, "timestamp_lt")
	require.Equal(t, uint64(1), req.Variables["projectId"])
	require.Equal(t, PageSize, req.Variables["first"])
	require.Equal(t, 0, req.Variables["skip"])
}

func TestRequestPushesWindowDown(t *testing.T) {
	w := daterange.Window{
		Start: time.Unix(1700000000, 500_000_000),
		End:   time.Unix(1710000000, 0),
	}
	req, err := Query{Kind: DistributeReservedTokens, ProjectID: 397, Window: w}.Request()
	require.NoError(t, err)
	require.Contains(t, req.Query, "$timestampGt: Int!")
	require.Contains(t, req.Query, "timestamp_gt: $timestampGt")
	require.Contains(t, req.Query, "timestamp_lt: $timestampLt")
	require.Equal(t, int64(1700000000), req.Variables["timestampGt"])
	require.Equal(t, int64(1710000000), req.Variables["timestampLt"])
}

func TestRequestRejectsUnknownKind(t *testing.T) {
	_, err := Query{Kind: EventKind("payEvents(first: 1) { id } x"), ProjectID: 1}.Request()
	require.Error(t, err)
}

func newSubgraph(t *testing.T, total int, fail bool) (*Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body Request
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if fail {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]any{{"message": "indexing error"}},
			})
			return
		}
		kind := DistributePayouts
		if strings.Contains(body.Query, string(DistributeReservedTokens)) {
			kind = DistributeReservedTokens
		}
		first := int(body.Variables["first"].(float64))
		skip := int(body.Variables["skip"].(float64))
		if skip > 5000 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errors": []map[string]any{{"message": "The `skip` argument must be between 0 and 5000, but is " + fmt.Sprint(skip)}},
			})
			return
		}
		var events []map[string]any
		for i := skip; i < total && i < skip+first; i++ {
			events = append(events, map[string]any{
				"txHash":    fmt.Sprintf("0x%064x", i),
				"caller":    "0xcccccccccccccccccccccccccccccccccccccccc",
				"timestamp": 1700000000 + i,
			})
		}
		if events == nil {
			events = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{string(kind): events},
		})
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client()), &calls
}

func TestPage(t *testing.T) {
	c, _ := newSubgraph(t, 3, false)
	events, err := c.Page(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, fmt.Sprintf("0x%064x", 0), events[0].TxHash)
	require.Equal(t, "1700000002", events[2].Timestamp.String())
}

func TestPageReportsGraphQLErrors(t *testing.T) {
	c, _ := newSubgraph(t, 0, true)
	_, err := c.Page(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1})
	require.ErrorContains(t, err, "indexing error")
}

func TestEventsPaginates(t *testing.T) {
	c, calls := newSubgraph(t, 2500, false)
	events, truncated, err := c.Events(context.Background(), Query{Kind: DistributeReservedTokens, ProjectID: 1}, 0)
	require.NoError(t, err)
	require.False(t, truncated)
	require.Len(t, events, 2500)
	require.Equal(t, 3, *calls)
}

func TestEventsExactPageBoundary(t *testing.T) {
	c, calls := newSubgraph(t, 2000, false)
	events, truncated, err := c.Events(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1}, 0)
	require.NoError(t, err)
	require.False(t, truncated)
	require.Len(t, events, 2000)
	require.Equal(t, 3, *calls)
}

func TestEventsPageCap(t *testing.T) {
	c, calls := newSubgraph(t, 2500, false)
	events, truncated, err := c.Events(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1}, 1)
	require.NoError(t, err)
	require.True(t, truncated)
	require.Len(t, events, PageSize)
	require.Equal(t, 1, *calls)
}

func TestEventsStopsAtSkipLimit(t *testing.T) {
	c, calls := newSubgraph(t, 8000, false)
	events, truncated, err := c.Events(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1}, 0)
	require.NoError(t, err)
	require.True(t, truncated)
	require.Len(t, events, MaxSkip+PageSize)
	require.Equal(t, 6, *calls)
}

func TestEventsSkipLimitExactFit(t *testing.T) {
	c, calls := newSubgraph(t, 5500, false)
	events, truncated, err := c.Events(context.Background(), Query{Kind: DistributePayouts, ProjectID: 1}, 0)
	require.NoError(t, err)
	require.False(t, truncated)
	require.Len(t, events, 5500)
	require.Equal(t, 6, *calls)
}

func TestRequestRejectsSkipBeyondLimit(t *testing.T) {
	_, err := Query{Kind: DistributePayouts, ProjectID: 1, Skip: MaxSkip + PageSize}.Request()
	require.Error(t, err)
}
