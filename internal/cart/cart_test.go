package cart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMirrorsROMToPowerOfTwo(t *testing.T) {
	rom := bytes.Repeat([]byte{0xAB}, 3) // not a power of two
	c := New(rom)
	require.EqualValues(t, 4, c.Size())
	require.Equal(t, byte(0xAB), c.ReadROM(0))
	require.Equal(t, byte(0xAB), c.ReadROM(2))
	require.Equal(t, byte(0xAB), c.ReadROM(3), "mirrored past the real ROM end")
}

func TestNewInitializesSRAMToAllOnes(t *testing.T) {
	c := New([]byte{0x00})
	require.Equal(t, byte(0xFF), c.ReadSRAM(0))
	require.Equal(t, byte(0xFF), c.ReadSRAM(sramSize-1))
}

func TestWriteSRAMRoundTrips(t *testing.T) {
	c := New([]byte{0x00})
	c.WriteSRAM(0x1234, 0x42)
	require.Equal(t, byte(0x42), c.ReadSRAM(0x1234))
}
