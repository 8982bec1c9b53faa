package wal

import "hash/crc32"

// CalculateCRC32 computes the checksum of a payload using the IEEE
// polynomial, matching the CRC32 variant recorded in each record header.
func CalculateCRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ValidateCRC32 reports whether data matches an expected checksum.
func ValidateCRC32(data []byte, expected uint32) bool {
	return CalculateCRC32(data) == expected
}
