// Package bytesutil defines helper methods for converting integers to byte
// slices used when deriving identifiers and database keys.
package bytesutil

import "encoding/binary"

// Bytes8 returns integer x to bytes in big-endian format, x.to_bytes(8, 'big').
func Bytes8(x uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, x)
	return bytes
}

// FromBytes8 returns an integer which is decoded from bytes in big-endian format.
func FromBytes8(x []byte) uint64 {
	return binary.BigEndian.Uint64(x)
}

// ToBytes32 is a convenience method for converting a byte slice to a fixed
// 32 byte array. This method will truncate the input if it is larger than 32 bytes.
func ToBytes32(x []byte) [32]byte {
	var y [32]byte
	copy(y[:], x)
	return y
}
