// Package subgraph queries Juicebox distribution events from a GraphQL
// indexing service.
package subgraph

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/filipviz/juicy-reimburser/internal/daterange"
)

// EventKind is a Juicebox event collection exposed by the subgraph.
type EventKind string

const (
	DistributePayouts        EventKind = "distributePayoutsEvents"
	DistributeReservedTokens EventKind = "distributeReservedTokensEvents"
)

// Kinds lists the collections fetched for reimbursement, in fetch order.
var Kinds = []EventKind{DistributePayouts, DistributeReservedTokens}

func (k EventKind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Label is a human readable name for reports.
func (k EventKind) Label() string {
	switch k {
	case DistributePayouts:
		return "Distribute payouts"
	case DistributeReservedTokens:
		return "Distribute reserved tokens"
	}
	return string(k)
}

// PageSize is the largest page the subgraph returns.
const PageSize = 1000

// MaxSkip is the largest skip the hosted graph node accepts.
const MaxSkip = 5000

// Query selects one page of events for a project.
type Query struct {
	Kind      EventKind
	ProjectID uint64
	Window    daterange.Window
	First     int
	Skip      int
}

// Request is a GraphQL request body.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

var queryTemplate = template.Must(template.New("events").Parse(`query Events($projectId: Int!, $first: Int!, $skip: Int!{{if .Gt}}, $timestampGt: Int!{{end}}{{if .Lt}}, $timestampLt: Int!{{end}}) {
  {{.Kind}}(
    first: $first
    skip: $skip
    where: {projectId: $projectId{{if .Gt}}, timestamp_gt: $timestampGt{{end}}{{if .Lt}}, timestamp_lt: $timestampLt{{end}}}
    orderBy: timestamp
    orderDirection: asc
  ) {
    txHash
    caller
    timestamp
  }
}`))

// Request renders q. Only the collection name is spliced into the document;
// every value travels as a typed variable.
func (q Query) Request() (Request, error) {
	if !q.Kind.Valid() {
		return Request{}, fmt.Errorf("unknown event kind %q", q.Kind)
	}
	if q.ProjectID > 1<<31-1 {
		return Request{}, fmt.Errorf("project id %d does not fit a GraphQL Int", q.ProjectID)
	}
	first := q.First
	if first <= 0 || first > PageSize {
		first = PageSize
	}
	if q.Skip < 0 || q.Skip > MaxSkip {
		return Request{}, fmt.Errorf("skip %d is outside 0..%d", q.Skip, MaxSkip)
	}

	vars := map[string]any{
		"projectId": q.ProjectID,
		"first":     first,
		"skip":      q.Skip,
	}
	gt, hasGt := q.Window.UnixStart()
	if hasGt {
		vars["timestampGt"] = gt
	}
	lt, hasLt := q.Window.UnixEnd()
	if hasLt {
		vars["timestampLt"] = lt
	}

	var buf bytes.Buffer
	err := queryTemplate.Execute(&buf, struct {
		Kind   EventKind
		Gt, Lt bool
	}{q.Kind, hasGt, hasLt})
	if err != nil {
		return Request{}, err
	}
	return Request{Query: buf.String(), Variables: vars}, nil
}
