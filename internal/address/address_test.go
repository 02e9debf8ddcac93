package address

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type mapResolver map[string]common.Address

func (m mapResolver) ResolveName(_ context.Context, name string) (common.Address, error) {
	return m[name], nil
}

type failingResolver struct{}

func (failingResolver) ResolveName(context.Context, string) (common.Address, error) {
	return common.Address{}, errors.New("connection refused")
}

func TestIsAddress(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0xaf28bcb48c40dbc86f52d459a6562f658fc94b1e", true},
		{"0xAF28BCB48C40DBC86F52D459A6562F658FC94B1E", true},
		{"0xAF28bcB48C40dBC86f52D459A6562F658fc94B1e", true},
		{"0xAF28bcB48C40dBC86f52D459A6562F658fc94B1E", false},
		{"af28bcb48c40dbc86f52d459a6562f658fc94b1e", false},
		{"0xaf28bcb48c40dbc86f52d459a6562f658fc94b1", false},
		{"dao.jbx.eth", false},
		{"", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, IsAddress(tt.in), tt.in)
	}
}

func TestNormalize(t *testing.T) {
	addr := common.HexToAddress("0xAF28bcB48C40dBC86f52D459A6562F658fc94B1e")
	require.Equal(t, "0xaf28bcb48c40dbc86f52d459a6562f658fc94b1e", Normalize(addr))
	require.True(t, IsNormalized(Normalize(addr)))
	require.False(t, IsNormalized(addr.Hex()))
}

func TestResolve(t *testing.T) {
	dao := common.HexToAddress("0xAF28bcB48C40dBC86f52D459A6562F658fc94B1e")
	r := mapResolver{"dao.jbx.eth": dao}
	ctx := context.Background()

	got, err := Resolve(ctx, r, "  0xaf28bcb48c40dbc86f52d459a6562f658fc94b1e ")
	require.NoError(t, err)
	require.Equal(t, dao, got)

	got, err = Resolve(ctx, r, "DAO.jbx.eth")
	require.NoError(t, err)
	require.Equal(t, dao, got)

	_, err = Resolve(ctx, r, "nobody.eth")
	require.ErrorIs(t, err, ErrUnresolved)
	require.True(t, IsInputError(err))

	_, err = Resolve(ctx, r, "dao.jbx.xyz")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Resolve(ctx, r, ".eth")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Resolve(ctx, failingResolver{}, "dao.jbx.eth")
	require.Error(t, err)
	require.False(t, IsInputError(err))
}
