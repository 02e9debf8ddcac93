// Package safe reads executed multisig transactions from the Safe
// transaction service and prices them for reimbursement.
package safe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultEndpoint = "https://safe-transaction-mainnet.safe.global/api"

// Transaction is one entry of the all-transactions listing.
type Transaction struct {
	TransactionHash string     `json:"transactionHash"`
	Executor        string     `json:"executor"`
	Fee             Fee        `json:"fee"`
	ExecutionDate   *time.Time `json:"executionDate"`
}

// Fee is the wei fee reported by the service. It arrives as a decimal string,
// occasionally as a bare number, or null for entries that paid no gas.
type Fee string

func (f *Fee) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = Fee(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("fee %s: %w", b, err)
	}
	*f = Fee(n.String())
	return nil
}

// Wei parses the fee as a non-negative base-10 integer.
func (f Fee) Wei() (*big.Int, error) {
	v, ok := new(big.Int).SetString(string(f), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid fee %q", string(f))
	}
	return v, nil
}

type page struct {
	Results []Transaction `json:"results"`
	Next    *string       `json:"next"`
}

type Client struct {
	base   string
	client *http.Client
}

func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), client: httpClient}
}

// ExecutedTransactions follows the service's next links until the listing is
// exhausted. Any failing page fails the whole listing.
func (c *Client) ExecutedTransactions(ctx context.Context, safe common.Address) ([]Transaction, error) {
	next := c.base + "/v1/safes/" + safe.Hex() + "/all-transactions/?" + url.Values{
		"executed": {"true"},
		"queued":   {"false"},
	}.Encode()

	var all []Transaction
	seen := make(map[string]struct{})
	for next != "" {
		if _, ok := seen[next]; ok {
			return nil, fmt.Errorf("safe transactions: pagination loops at %s", next)
		}
		seen[next] = struct{}{}

		p, err := c.page(ctx, next)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		next = ""
		if p.Next != nil {
			next = *p.Next
		}
	}
	return all, nil
}

func (c *Client) page(ctx context.Context, u string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return page{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("safe transactions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return page{}, fmt.Errorf("safe transactions: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out page
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return page{}, fmt.Errorf("safe transactions: decode: %w", err)
	}
	return out, nil
}
