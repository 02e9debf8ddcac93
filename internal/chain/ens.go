package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ENSRegistry is the mainnet ENS registry with fallback.
var ENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

const ensABIJSON = `[
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"resolver","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

var ensABI = mustParseABI(ensABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// NameHash implements the EIP-137 namehash of an already normalized name.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), label.Bytes())
	}
	return node
}

// ResolveName returns the address record of name, or the zero address when
// the name has no resolver or no address set. Names are only trimmed and
// lowercased: no ENSIP-15 normalization and no ENSIP-10 wildcard lookup, so a
// subname served by a parent's wildcard resolver comes back as zero.
func (c *Client) ResolveName(ctx context.Context, name string) (common.Address, error) {
	node := NameHash(strings.ToLower(strings.TrimSpace(name)))
	resolver, err := c.callAddress(ctx, c.registry, "resolver", node)
	if err != nil {
		return common.Address{}, err
	}
	if resolver == (common.Address{}) {
		return common.Address{}, nil
	}
	return c.callAddress(ctx, resolver, "addr", node)
}

func (c *Client) callAddress(ctx context.Context, to common.Address, method string, node common.Hash) (common.Address, error) {
	data, err := ensABI.Pack(method, [32]byte(node))
	if err != nil {
		return common.Address{}, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("ens %s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return common.Address{}, nil
	}
	values, err := ensABI.Unpack(method, out)
	if err != nil {
		return common.Address{}, fmt.Errorf("ens %s: %w", method, err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("ens %s: unexpected output %T", method, values[0])
	}
	return addr, nil
}
