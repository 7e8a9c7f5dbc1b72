// Package hexdump renders memory contents as a 16 bytes per row grid.
package hexdump

import (
	"bytes"
	"fmt"
	"io"
)

// BytesPerRow is the number of bytes shown in each row.
const BytesPerRow = 16

// Header is the rule printed above the rows.
const Header = " -------- -------- -------- -------- --------  ----------------"

const hexDigits = "0123456789abcdef"

// Write dumps data read from addr. Rows start on 16 byte boundaries, cells
// before addr in the first row are left blank.
func Write(w io.Writer, data []byte, addr uint32) error {
	if _, err := fmt.Fprintln(w, Header); err != nil {
		return err
	}
	row := uint64(addr) &^ (BytesPerRow - 1)
	skip := int(uint64(addr) - row)
	var line bytes.Buffer
	for len(data) > 0 {
		n := BytesPerRow - skip
		if n > len(data) {
			n = len(data)
		}
		line.Reset()
		formatRow(&line, uint32(row), skip, data[:n])
		if _, err := w.Write(line.Bytes()); err != nil {
			return err
		}
		data = data[n:]
		row += BytesPerRow
		skip = 0
	}
	return nil
}

// String returns the dump as a string.
func String(data []byte, addr uint32) string {
	var buf bytes.Buffer
	Write(&buf, data, addr)
	return buf.String()
}

func formatRow(buf *bytes.Buffer, addr uint32, skip int, data []byte) {
	fmt.Fprintf(buf, " %08x ", addr)
	for col := 0; col < BytesPerRow; col++ {
		if i := col - skip; i >= 0 && i < len(data) {
			buf.WriteByte(hexDigits[data[i]>>4])
			buf.WriteByte(hexDigits[data[i]&0xf])
		} else {
			buf.WriteString("  ")
		}
		if col%4 == 3 {
			buf.WriteByte(' ')
		}
	}
	buf.WriteByte(' ')
	for i := 0; i < skip; i++ {
		buf.WriteByte(' ')
	}
	for _, b := range data {
		buf.WriteByte(Printable(b))
	}
	buf.WriteByte('\n')
}

// Printable maps a byte to its ASCII column representation.
func Printable(b byte) byte {
	if b >= 0x20 && b <= 0x7e {
		return b
	}
	return '.'
}
