// Package card provides one-way card number hashing. The raw PAN never
// leaves this package's callers: rules, transactions and logs only ever
// see the hash and the last four digits.
package card

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the deterministic SHA-256 hex digest of a card number.
func Hash(cardNumber string) string {
	sum := sha256.Sum256([]byte(cardNumber))
	return hex.EncodeToString(sum[:])
}

// LastFour returns the last four digits of a card number, or the whole
// string when it is shorter.
func LastFour(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}

// Mask returns the externally safe representation "****1234".
func Mask(cardNumber string) string {
	return "****" + LastFour(cardNumber)
}
