// xxh3.go wraps the XXH3 64-bit hash used for SST block checksums at
// format_version 5+.
package checksum

import (
	"github.com/zeebo/xxh3"
)

// XXH3_64bits computes the 64-bit XXH3 hash of data.
func XXH3_64bits(data []byte) uint64 {
	return xxh3.Hash(data)
}

// XXH3Checksum computes a 32-bit checksum by folding the 64-bit XXH3 hash.
func XXH3Checksum(data []byte) uint32 {
	h := XXH3_64bits(data)
	return uint32(h) ^ uint32(h>>32)
}

// XXH3ChecksumWithLastByte computes a block checksum over data with a
// trailing byte (the block's compression type) appended, matching the
// on-disk block trailer layout: [data][compression type][checksum].
func XXH3ChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	combined := make([]byte, len(data)+1)
	copy(combined, data)
	combined[len(data)] = lastByte
	return XXH3Checksum(combined)
}
