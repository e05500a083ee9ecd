package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallIDAllocatorSequence(t *testing.T) {
	a := newCallIDAllocator(4)

	var got []uint32
	for i := 0; i < 7; i++ {
		got = append(got, a.nextID())
	}
	assert.Equal(t, []uint32{1, 2, 3, 1, 2, 3, 1}, got)
}

func TestCallIDAllocatorWindowIsStrictlyIncreasing(t *testing.T) {
	const max = 1000
	a := newCallIDAllocator(max)

	first := a.nextID()
	prev := first
	for i := 2; i < max; i++ {
		id := a.nextID()
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, first, a.nextID(), "the max-th id equals the first")
}

func TestCallIDAllocatorSmallestRange(t *testing.T) {
	a := newCallIDAllocator(FirstCallID + 1)
	for i := 0; i < 3; i++ {
		assert.Equal(t, FirstCallID, a.nextID())
	}
}
