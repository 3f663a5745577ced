package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// S4
func TestHex_RoundTrip(t *testing.T) {
	t.Parallel()
	b, err := FromHex("0001090A0F10")
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 9, 10, 15, 16}, b)
	require.Equal(t, "0001090a0f10", ToHex([]byte{0, 1, 9, 10, 15, 16}))
}

func TestHex_RejectsOddLength(t *testing.T) {
	t.Parallel()
	_, err := FromHex("0")
	require.Error(t, err)
}
