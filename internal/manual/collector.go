// Package manual collects operator-entered reimbursements.
package manual

import (
	"context"
	"errors"

	"github.com/filipviz/juicy-reimburser/internal/address"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/ui"
	"github.com/filipviz/juicy-reimburser/internal/units"
)

const (
	DefaultRecipient = "dao.jbx.eth"
	DefaultAmount    = "0"
)

type Collector struct {
	ui       ui.UI
	resolver address.Resolver
}

func NewCollector(u ui.UI, r address.Resolver) *Collector {
	return &Collector{ui: u, resolver: r}
}

// Collect prompts for (recipient, amount) pairs until the operator stops.
// Entries whose recipient is not an address or resolvable ENS name are
// reported and dropped, and the loop asks again. Resolver failures other
// than bad input abort collection.
func (c *Collector) Collect(ctx context.Context) ([]ledger.Contribution, error) {
	c.ui.Section("Manual entry")
	var out []ledger.Contribution
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		to := c.ui.Ask("Recipient?", DefaultRecipient, nil)
		amount := c.ui.Ask("ETH amount?", DefaultAmount, func(s string) error {
			_, err := units.ToWei(s)
			return err
		})
		more := c.ui.Confirm("Continue?", true)

		task := c.ui.Task("Validating address...")
		addr, err := address.Resolve(ctx, c.resolver, to)
		switch {
		case errors.Is(err, address.ErrInvalid):
			task.Fail("Invalid ENS/address. Try again.")
			continue
		case address.IsInputError(err):
			task.Fail("Could not resolve ENS. Try again.")
			continue
		case err != nil:
			task.Fail("Failed to resolve %s.", to)
			return nil, err
		}
		task.Succeed("Address resolved to %s", addr.Hex())

		wei, err := units.ToWei(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.Contribution{
			Address: address.Normalize(addr),
			Amount:  wei,
			Source:  ledger.SourceManual,
			Label:   "Manual entry",
		})
		if !more {
			break
		}
	}
	c.ui.Success("✓ Included %d manual entry payouts.", len(out))
	return out, nil
}
