// Package wallet normalizes the wallet addresses used as user ids.
package wallet

import (
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrBadChecksum    = errors.New("wallet address checksum mismatch")
)

// EVM addresses are 20 bytes; felt-style addresses (Starknet) go up to 32.
var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// Normalize validates addr and returns its lower-case form.
// Mixed-case 20-byte addresses must carry a valid EIP-55 checksum.
func Normalize(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if len(addr) >= 2 && addr[:2] == "0X" {
		addr = "0x" + addr[2:]
	}
	if !addressRe.MatchString(addr) {
		return "", ErrInvalidAddress
	}
	body := addr[2:]
	lower := strings.ToLower(body)
	if len(body) == 40 && body != lower && body != strings.ToUpper(body) {
		if Checksum(addr) != addr {
			return "", ErrBadChecksum
		}
	}
	return "0x" + lower, nil
}

// Checksum returns the EIP-55 mixed-case encoding of a 20-byte address.
// Other lengths are returned lower-cased.
func Checksum(addr string) string {
	body := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
	if len(body) != 40 {
		return "0x" + body
	}
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(body)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 32
		}
	}
	return "0x" + string(out)
}
