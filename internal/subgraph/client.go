package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultEndpoint = "https://api.studio.thegraph.com/query/30654/mainnet-dev/6.2.0"

// Event is one distribution event. Caller is the protocol-level actor, which
// is not necessarily who paid for gas.
type Event struct {
	TxHash    string      `json:"txHash"`
	Caller    string      `json:"caller"`
	Timestamp json.Number `json:"timestamp"`
}

type gqlError struct {
	Message string `json:"message"`
}

type response struct {
	Data   map[string][]Event `json:"data"`
	Errors []gqlError         `json:"errors"`
}

type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, client: httpClient}
}

// Page runs a single query.
func (c *Client) Page(ctx context.Context, q Query) ([]Event, error) {
	body, err := q.Request()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph %s: %w", q.Kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("subgraph %s: status %d: %s", q.Kind, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("subgraph %s: decode: %w", q.Kind, err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("subgraph %s: %s", q.Kind, strings.Join(msgs, "; "))
	}
	events, ok := out.Data[string(q.Kind)]
	if !ok {
		return nil, fmt.Errorf("subgraph %s: %w", q.Kind, errMissingData)
	}
	return events, nil
}

var errMissingData = errors.New("response has no data for the requested collection")

// Events pages through q in PageSize steps until a short page. maxPages caps
// the number of requests; 0 means no cap beyond the one MaxSkip imposes.
// truncated reports that a cap was hit on a full page, so more events may
// exist.
func (c *Client) Events(ctx context.Context, q Query, maxPages int) (events []Event, truncated bool, err error) {
	q.First = PageSize
	q.Skip = 0
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		page, err := c.Page(ctx, q)
		if err != nil {
			return nil, false, err
		}
		events = append(events, page...)
		if len(page) < q.First {
			return events, false, nil
		}
		if q.Skip+q.First > MaxSkip {
			return events, true, nil
		}
		q.Skip += q.First
	}
	return events, true, nil
}
