package index

import (
	"bytes"
	"encoding/binary"
)

// GenericKey 固定宽度的索引键
//
// Keys are opaque fixed-size byte strings; the tree orders them only through
// the supplied comparator. Supported widths are 4, 8, 16, 32 and 64 bytes.
type GenericKey []byte

// NewGenericKey returns a zeroed key of the given width.
func NewGenericKey(size int) GenericKey {
	return make(GenericKey, size)
}

// NewGenericKeyFromInteger encodes v big-endian into a key of the given
// width, so that byte order matches numeric order for non-negative values.
func NewGenericKeyFromInteger(size int, v int64) GenericKey {
	k := NewGenericKey(size)
	k.SetFromInteger(v)
	return k
}

// SetFromInteger writes v big-endian into the first 8 bytes of the key; a key
// narrower than 8 bytes keeps only the low-order bytes of v.
func (k GenericKey) SetFromInteger(v int64) {
	if len(k) >= 8 {
		binary.BigEndian.PutUint64(k[:8], uint64(v))
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	copy(k, buf[8-len(k):])
}

// ToInteger decodes the integer written by SetFromInteger.
func (k GenericKey) ToInteger() int64 {
	if len(k) >= 8 {
		return int64(binary.BigEndian.Uint64(k[:8]))
	}
	var buf [8]byte
	copy(buf[8-len(k):], k)
	return int64(binary.BigEndian.Uint64(buf[:]))
}

// IntegerComparator orders keys produced by SetFromInteger: a bytewise
// compare over the big-endian encoding.
func IntegerComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}
