package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseAddress decodes a 0x-prefixed, 40-digit hex address.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return addr, fmt.Errorf("address must be 0x-prefixed: %q", value)
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil {
		return addr, fmt.Errorf("malformed address %q: %w", value, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// FormatAddress renders the address as 0x-prefixed lowercase hex.
func FormatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
