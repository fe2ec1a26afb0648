package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenericKeyRoundTrip(t *testing.T) {
	for _, size := range []int{4, 8, 16, 32, 64} {
		key := NewGenericKeyFromInteger(size, 123456)
		assert.Len(t, []byte(key), size)
		assert.Equal(t, int64(123456), key.ToInteger(), "size %d", size)
	}
}

func TestIntegerComparatorOrdering(t *testing.T) {
	a := NewGenericKeyFromInteger(8, 10)
	b := NewGenericKeyFromInteger(8, 20)
	c := NewGenericKeyFromInteger(8, 20)

	assert.Negative(t, IntegerComparator(a, b))
	assert.Positive(t, IntegerComparator(b, a))
	assert.Zero(t, IntegerComparator(b, c))

	// ordering holds across byte boundaries
	x := NewGenericKeyFromInteger(8, 255)
	y := NewGenericKeyFromInteger(8, 256)
	assert.Negative(t, IntegerComparator(x, y))
}
