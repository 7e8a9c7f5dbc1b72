// Package args parses numbers and hex data given on the command line.
package args

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MalformedInputError reports an argument or input file that cannot be used.
type MalformedInputError struct {
	Input  string
	Reason string
}

// Error implements error.
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%q: %s", e.Input, e.Reason)
}

// ParseLong parses a 32-bit value. Decimal is tried first, then hex with
// an optional 0x prefix, so "10" is ten and "1A" or "0x10" are hex.
func ParseLong(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	val, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		if val, err = strconv.ParseUint(digits, 16, 64); err != nil || digits == "" {
			return 0, &MalformedInputError{Input: s, Reason: "not a valid integer"}
		}
	}
	if val > 0xFFFFFFFF {
		return 0, &MalformedInputError{Input: s, Reason: "invalid value, min 0, max 0xFFFFFFFF"}
	}
	return uint32(val), nil
}

// DecodeHex decodes hex formatted data. An odd number of digits gets a
// leading zero.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, &MalformedInputError{Input: s, Reason: "not valid hex formatted data"}
	}
	return data, nil
}

// ReadFile reads a binary file to be loaded.
func ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &MalformedInputError{Input: name, Reason: err.Error()}
	}
	return data, nil
}
