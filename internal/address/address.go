// Package address validates and normalizes Ethereum addresses and resolves
// ENS names through a Resolver.
package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ENSSuffix is the only name-service suffix accepted for resolution.
const ENSSuffix = ".eth"

var (
	ErrInvalid    = errors.New("invalid ENS name or address")
	ErrUnresolved = errors.New("could not resolve ENS name")
)

// Resolver looks up the address an ENS name points to. Unknown names resolve
// to the zero address rather than an error.
type Resolver interface {
	ResolveName(ctx context.Context, name string) (common.Address, error)
}

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address. Mixed
// case input must carry a valid EIP-55 checksum.
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	if !common.IsHexAddress(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

// Normalize returns the lowercase 0x form of a valid address.
func Normalize(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// IsNormalized reports whether s is already in the form Normalize produces.
func IsNormalized(s string) bool {
	return IsAddress(s) && s == strings.ToLower(s) && strings.HasPrefix(s, "0x")
}

// Resolve turns an address or ENS name into a normalized address. Input
// problems are reported as ErrInvalid or ErrUnresolved; any other error comes
// from the resolver itself.
func Resolve(ctx context.Context, r Resolver, identifier string) (common.Address, error) {
	id := strings.TrimSpace(identifier)
	if IsAddress(id) {
		return common.HexToAddress(id), nil
	}
	name := strings.ToLower(id)
	if !strings.HasSuffix(name, ENSSuffix) || len(name) == len(ENSSuffix) {
		return common.Address{}, fmt.Errorf("%q: %w", identifier, ErrInvalid)
	}
	if r == nil {
		return common.Address{}, fmt.Errorf("%q: no ENS resolver configured: %w", identifier, ErrUnresolved)
	}
	addr, err := r.ResolveName(ctx, name)
	if err != nil {
		return common.Address{}, fmt.Errorf("resolve %s: %w", name, err)
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: %w", name, ErrUnresolved)
	}
	return addr, nil
}

// IsInputError reports whether err came from bad operator input rather than
// a failing collaborator.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, ErrUnresolved)
}
