// Package hashutil includes all hash-function related helpers for the ledger.
package hashutil

import "crypto/sha256"

// Hash defines a function that returns the sha256 checksum of the data passed
// in. Identifier derivation and payload verification both go through this
// single function so the hash choice stays uniform across the ledger.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashConcat hashes the concatenation of the given byte slices. Callers are
// responsible for fixed-width encoding of the pieces so the preimage is
// unambiguous.
func HashConcat(chunks ...[]byte) [32]byte {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
