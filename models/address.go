package models

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40,64}$`)

// NormalizeAddress lowercases and trims a wallet address; addresses compare case-insensitively.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidAddress reports whether address is a 0x-prefixed hex wallet address (EVM or 32-byte).
func ValidAddress(address string) bool {
	return addressPattern.MatchString(NormalizeAddress(address))
}
