// Package npub converts between bech32 "npub1…" identifiers and hex public keys.
package npub

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/Crackloss/nostrweb/engine/library"
)

const (
	HRP = "npub"

	// KeyLength is the size of a public key in bytes.
	KeyLength = 32
)

// Decode returns the hex public key carried by s. Any malformed stage (missing separator,
// empty prefix, bad character, bad checksum, wrong prefix, wrong length) yields false.
func Decode(s string) (library.Account, bool) {
	s = strings.ToLower(s)
	if strings.LastIndexByte(s, '1') < 1 {
		return "", false
	}
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil || hrp != HRP {
		return "", false
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(raw) != KeyLength {
		return "", false
	}
	return hex.EncodeToString(raw), true
}

// Encode returns the npub form of a hex public key.
func Encode(pubkey library.Account) (library.Npub, bool) {
	if !IsHexKey(pubkey) {
		return "", false
	}
	raw, _ := hex.DecodeString(pubkey)
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", false
	}
	s, err := bech32.Encode(HRP, data)
	if err != nil {
		return "", false
	}
	return s, true
}

// Resolve accepts either a hex public key or an npub and returns the lowercase hex form.
func Resolve(s string) (library.Account, bool) {
	if IsHexKey(s) {
		return strings.ToLower(s), true
	}
	return Decode(s)
}

// IsHexKey reports whether s is exactly KeyLength bytes of hex.
func IsHexKey(s string) bool {
	if len(s) != KeyLength*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
