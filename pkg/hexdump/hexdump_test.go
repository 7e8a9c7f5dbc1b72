package hexdump

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestUnalignedStart(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = 0x41 + byte(i)
	}
	out := lines(String(data, 0x1003))
	require.Len(t, out, 3)
	require.Equal(t, Header, out[0])
	require.Equal(t,
		" 00001000       41 42434445 46474849 4a4b4c4d     ABCDEFGHIJKLM",
		out[1])
	require.Equal(t,
		" 00001010 4e4f5051 525354                      NOPQRST",
		out[2])

	// First three cells are blank, data starts at the 4th column.
	hexCols := out[1][10:]
	require.Equal(t, strings.Repeat(" ", 6), hexCols[:6])
	require.Equal(t, "41", hexCols[6:8])
}

func TestAlignedRows(t *testing.T) {
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i * 8)
	}
	out := lines(String(data, 0xFFFFFFE0))
	require.Equal(t, []string{
		Header,
		" ffffffe0 00081018 20283038 40485058 60687078  .... (08@HPX`hpx",
		" fffffff0 80889098 a0a8b0b8 c0c8d0d8 e0e8f0f8  ................",
	}, out)
}

func TestPrintableMapping(t *testing.T) {
	data := []byte{0x00, 0x1F, 0x20, 'a', '~', 0x7F, 0x80, 0xFF}
	out := lines(String(data, 0))
	require.Equal(t, " 00000000 001f2061 7e7f80ff                    .. a~...", out[1])
	for b := 0; b < 256; b++ {
		p := Printable(byte(b))
		if b >= 0x20 && b <= 0x7E {
			require.Equal(t, byte(b), p)
		} else {
			require.Equal(t, byte('.'), p)
		}
	}
}

func TestEmpty(t *testing.T) {
	require.Equal(t, Header+"\n", String(nil, 0x1234))
}
