package util

// Fixed-offset writers over a page buffer. The page views address fields by
// offset, so these write in place instead of appending.

func WriteByteAt(buf []byte, cursor int, b byte) {
	buf[cursor] = b
}

func WriteBytesAt(buf []byte, cursor int, from []byte) {
	copy(buf[cursor:cursor+len(from)], from)
}

func WriteUB2At(buf []byte, cursor int, i uint16) {
	buf[cursor] = byte(i & 0xFF)
	buf[cursor+1] = byte((i >> 8) & 0xFF)
}

func WriteUB4At(buf []byte, cursor int, i uint32) {
	buf[cursor] = byte(i & 0xFF)
	buf[cursor+1] = byte((i >> 8) & 0xFF)
	buf[cursor+2] = byte((i >> 16) & 0xFF)
	buf[cursor+3] = byte((i >> 24) & 0xFF)
}

func WriteUB8At(buf []byte, cursor int, i uint64) {
	buf[cursor] = byte(i & 0xFF)
	buf[cursor+1] = byte((i >> 8) & 0xFF)
	buf[cursor+2] = byte((i >> 16) & 0xFF)
	buf[cursor+3] = byte((i >> 24) & 0xFF)
	buf[cursor+4] = byte((i >> 32) & 0xFF)
	buf[cursor+5] = byte((i >> 40) & 0xFF)
	buf[cursor+6] = byte((i >> 48) & 0xFF)
	buf[cursor+7] = byte((i >> 56) & 0xFF)
}
