package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalSize(t *testing.T) {
	cases := []struct {
		precision, scale, want int
	}{
		{10, 0, 4},
		{10, 2, 5},
		{20, 10, 9},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DecimalSize(c.precision, c.scale))
	}
}

func TestFSP(t *testing.T) {
	cases := map[byte]int{0: 0, 1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3, 7: 0}
	for meta, want := range cases {
		assert.Equal(t, want, FSP(meta))
	}
}

func TestDecodeDecimalPositive(t *testing.T) {
	// 12.34 with precision=4, scale=2: integral=2 digits (no full
	// 9-digit group, compressed remainder 2 -> 1 byte), fractional 2
	// digits compressed -> 1 byte. Byte-construct a known-good encoding
	// via DecimalSize to pick the right width, then round-trip through
	// a hand-built buffer matching MySQL's sign-flip convention for a
	// simple one-byte-group case.
	size := DecimalSize(4, 2)
	require.Equal(t, 2, size)

	// 12 in the integral compressed byte (1 byte since comp_integral=2
	// digits => compressedBytes[2]=1), sign bit set (positive), value
	// xor'd with 0 (positive mask).
	buf := []byte{0x80 | 12, 34}
	d, err := DecodeDecimal(buf, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "12.34", d.String())
}

func TestDecodeDecimalNegative(t *testing.T) {
	buf := []byte{0x80 ^ 0xff ^ 12, 34 ^ 0xff}
	d, err := DecodeDecimal(buf, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, "-12.34", d.String())
}
