// Package reimburse runs the selected fetchers and folds their results into
// a single ledger.
package reimburse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/filipviz/juicy-reimburser/internal/address"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/safe"
	"github.com/filipviz/juicy-reimburser/internal/ui"
)

var tracer = otel.Tracer("github.com/filipviz/juicy-reimburser/internal/reimburse")

type ManualCollector interface {
	Collect(ctx context.Context) ([]ledger.Contribution, error)
}

type SafeFetcher interface {
	Fetch(ctx context.Context, addr common.Address) (safe.Result, error)
}

type JuiceboxFetcher interface {
	Fetch(ctx context.Context, projectID uint64) ([]ledger.Contribution, error)
}

// Request selects what to reimburse.
type Request struct {
	Manual    bool
	Safe      string // address or ENS name; empty skips the Safe
	Juicebox  bool
	ProjectID uint64
}

// Sources lists the selected sources for display.
func (r Request) Sources() []string {
	var out []string
	if r.Safe != "" {
		out = append(out, "Safe")
	}
	if r.Juicebox {
		out = append(out, "Juicebox")
	}
	if r.Manual {
		out = append(out, "Other (manual entry)")
	}
	return out
}

type Runner struct {
	UI       ui.UI
	Resolver address.Resolver
	Manual   ManualCollector
	Safe     SafeFetcher
	Juicebox JuiceboxFetcher
}

// Run collects manual entries first, then fetches the Safe and Juicebox
// sources concurrently. Fetchers hand back their contributions and only this
// goroutine writes to the ledger, always in manual, Safe, Juicebox order. The
// first fetch error cancels the others and fails the run; no partial ledger
// is returned.
func (r *Runner) Run(ctx context.Context, req Request) (_ *ledger.Ledger, err error) {
	ctx, span := tracer.Start(ctx, "reimburse.run", trace.WithAttributes(
		attribute.StringSlice("sources", req.Sources()),
		attribute.Int64("project_id", int64(req.ProjectID)),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	l := ledger.New()

	if req.Manual {
		if r.Manual == nil {
			return nil, fmt.Errorf("manual entry selected without a collector")
		}
		contribs, err := r.Manual.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.Fold(contribs); err != nil {
			return nil, err
		}
	}

	var safeContribs, jbContribs []ledger.Contribution
	g, gctx := errgroup.WithContext(ctx)
	if req.Safe != "" {
		g.Go(func() (err error) {
			safeContribs, err = r.runSafe(gctx, req.Safe)
			return err
		})
	}
	if req.Juicebox {
		g.Go(func() (err error) {
			jbContribs, err = r.runJuicebox(gctx, req.ProjectID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, contribs := range [][]ledger.Contribution{safeContribs, jbContribs} {
		if err := l.Fold(contribs); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(
		attribute.Int("addresses", l.Len()),
		attribute.String("total_wei", l.Total().String()),
	)
	slog.Info("ledger complete", "addresses", l.Len(), "total_wei", l.Total().String())
	return l, nil
}

func (r *Runner) runSafe(ctx context.Context, identifier string) ([]ledger.Contribution, error) {
	if r.Safe == nil {
		return nil, fmt.Errorf("safe source selected without a fetcher")
	}
	task := r.UI.Task("Validating Safe address...")
	addr, err := address.Resolve(ctx, r.Resolver, identifier)
	if err != nil {
		switch {
		case errors.Is(err, address.ErrInvalid):
			task.Fail("Invalid Safe ENS/address.")
		case address.IsInputError(err):
			task.Fail("Could not resolve Safe ENS.")
		default:
			task.Fail("Failed to resolve Safe %s.", identifier)
		}
		return nil, err
	}
	task.Succeed("Safe address resolved to %s", addr.Hex())

	task = r.UI.Task("Fetching Safe transactions...")
	res, err := r.Safe.Fetch(ctx, addr)
	if err != nil {
		task.Fail("Failed to fetch Safe transactions. Full error message below.")
		return nil, err
	}
	task.Succeed("Fetched %d Safe transactions, included %d Safe executions", res.Fetched, len(res.Contributions))
	return res.Contributions, nil
}

func (r *Runner) runJuicebox(ctx context.Context, projectID uint64) ([]ledger.Contribution, error) {
	if r.Juicebox == nil {
		return nil, fmt.Errorf("juicebox source selected without a fetcher")
	}
	task := r.UI.Task(fmt.Sprintf("Fetching and pricing Juicebox transactions for project %d...", projectID))
	contribs, err := r.Juicebox.Fetch(ctx, projectID)
	if err != nil {
		task.Fail("Failed while fetching and processing Juicebox transactions. See full error below.")
		return nil, err
	}
	task.Succeed("Included %d Juicebox transactions", len(contribs))
	return contribs, nil
}
