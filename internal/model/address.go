// internal/model/address.go
package model

import (
	"encoding/hex"
	"strings"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
)

// Address identifies a donor, owner or beneficiary: "0x" followed by 40 hex
// digits, kept in lower case so comparisons ignore checksum casing.
type Address string

// ZeroAddress is syntactically valid and may be used as a beneficiary.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and normalises a caller-supplied identity.
func ParseAddress(s string) (Address, error) {
	v := strings.TrimSpace(s)
	if len(v) != 42 || (v[:2] != "0x" && v[:2] != "0X") {
		return "", appErrors.NewInvalidAddress(s)
	}
	if _, err := hex.DecodeString(v[2:]); err != nil {
		return "", appErrors.NewInvalidAddress(s)
	}
	return Address("0x" + strings.ToLower(v[2:])), nil
}

// Valid reports whether a is a normalised address.
func (a Address) Valid() bool {
	p, err := ParseAddress(string(a))
	return err == nil && p == a
}

func (a Address) String() string {
	return string(a)
}
