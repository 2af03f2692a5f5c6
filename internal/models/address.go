package models

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Address is an account address in 0x-prefixed, lower-case hex form.
type Address string

var ErrInvalidAddress = errors.New("address must be 0x followed by 40 hex characters")

// ParseAddress validates s and returns its normalized form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", ErrInvalidAddress
	}
	return Address("0x" + strings.ToLower(s[2:])), nil
}

func (a Address) String() string {
	return string(a)
}

func (a Address) IsZero() bool {
	return a == ""
}
