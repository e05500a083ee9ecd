package endpoint

const (
	// FirstCallID is the first id handed out by a new Endpoint.
	FirstCallID uint32 = 1

	// DefaultMaxCallID bounds the call id sequence unless WithMaxCallID is used.
	DefaultMaxCallID uint32 = 1 << 21
)

// callIDAllocator hands out ids FirstCallID, FirstCallID+1, ... and wraps back
// to FirstCallID when the counter reaches max. With max=3 the sequence is
// 1, 2, 1, 2, ...; the 1st and the max-th ids are equal.
//
// It does not look at the active-call table. The Endpoint owns it and only
// calls next while holding its mutex.
type callIDAllocator struct {
	next uint32
	max  uint32
}

func newCallIDAllocator(max uint32) callIDAllocator {
	return callIDAllocator{next: FirstCallID, max: max}
}

func (a *callIDAllocator) nextID() uint32 {
	id := a.next
	a.next++
	if a.next >= a.max {
		a.next = FirstCallID
	}
	return id
}
