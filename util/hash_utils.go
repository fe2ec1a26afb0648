package util

import (
	"github.com/OneOfOne/xxhash"
)

// 将一个键进行Hash
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}

// HashUint32 hashes a 32-bit key through the same xxhash path.
func HashUint32(key uint32) uint64 {
	var buf [4]byte
	buf[0] = byte(key)
	buf[1] = byte(key >> 8)
	buf[2] = byte(key >> 16)
	buf[3] = byte(key >> 24)
	return HashCode(buf[:])
}

// HashInt32 hashes a signed 32-bit key (page ids may be negative sentinels).
func HashInt32(key int32) uint64 {
	return HashUint32(uint32(key))
}
