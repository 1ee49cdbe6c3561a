package engine

import "math/bits"

// OrderHeap holds one side of a symbol's book as a min-max heap ordered
// by execution priority: best price first (highest for bids, lowest for
// offers), earlier submission breaking price ties.
//
// Slots are partitioned into three contiguous regions:
//
//	|AAAAAAAAAA|IIIIII|----------|
//	 active     inactive  free
//
// Active slots are heap-ordered. Inactive slots hold orders that have
// been fully executed or cancelled; they are out of the heap but stay
// addressable for id lookup and as-of reads. The active region only
// shrinks via deactivation and the inactive region only grows.
//
// The heap root sits on a min level, so the best active order is always
// among the first three slots and Best is O(1).
type OrderHeap struct {
	side     Side
	capacity int
	slots    []*Order
	active   int
}

func NewOrderHeap(side Side, capacity int) *OrderHeap {
	return &OrderHeap{
		side:     side,
		capacity: capacity,
		slots:    make([]*Order, 0, min(capacity, 64)),
	}
}

func (h *OrderHeap) Side() Side       { return h.side }
func (h *OrderHeap) Cap() int         { return h.capacity }
func (h *OrderHeap) Occupied() int    { return len(h.slots) }
func (h *OrderHeap) ActiveLen() int   { return h.active }
func (h *OrderHeap) InactiveLen() int { return len(h.slots) - h.active }
func (h *OrderHeap) FreeLen() int     { return h.capacity - len(h.slots) }

// Insert appends the order to the active region and restores heap order.
// Rejected once active plus inactive slots reach capacity.
func (h *OrderHeap) Insert(o *Order) error {
	if len(h.slots) >= h.capacity {
		return ErrCapacityExceeded
	}
	h.slots = append(h.slots, nil)
	last := len(h.slots) - 1
	// The first inactive slot, if any, shifts to the end to keep the
	// regions contiguous. Inactive slots carry no ordering.
	h.slots[last] = h.slots[h.active]
	h.slots[h.active] = o
	h.active++
	h.pushUp(h.active - 1)
	return nil
}

// Amend updates an order's price and quantity in place, then repairs
// heap order around its slot. Works on inactive orders too: the history
// layer drops the write if the order is already terminal.
func (h *OrderHeap) Amend(id OrderID, price Price, qty Quantity) error {
	i := h.search(id)
	if i < 0 {
		return ErrOrderNotFound
	}
	h.slots[i].applyAmendment(price, qty)
	if i < h.active {
		h.repair(i)
	}
	return nil
}

// Cancel records a CANCELLED entry stamped at the cancel time and moves
// the order out of the active region.
func (h *OrderHeap) Cancel(id OrderID, ts Timestamp) error {
	i := h.search(id)
	if i < 0 {
		return ErrOrderNotFound
	}
	o := h.slots[i]
	snap := o.Snapshot(TimeLatest)
	o.Record(Cancelled, ts, snap.Price, snap.Remaining)
	if i < h.active {
		h.makeInactive(i)
	}
	return nil
}

// Fill reduces the order's remaining quantity by qty. A full fill is
// recorded as EXECUTED and the slot deactivated; a partial fill leaves
// the order resting.
func (h *OrderHeap) Fill(id OrderID, qty Quantity, ts Timestamp) error {
	i := h.search(id)
	if i < 0 {
		return ErrOrderNotFound
	}
	o := h.slots[i]
	snap := o.Snapshot(TimeLatest)
	if qty >= snap.Remaining {
		o.applyTrade(ts, snap.Price, 0)
		if i < h.active {
			h.makeInactive(i)
		}
		return nil
	}
	o.applyTrade(ts, snap.Price, snap.Remaining-qty)
	if i < h.active {
		h.repair(i)
	}
	return nil
}

// Best returns the highest-priority active order, or nil when the active
// region is empty. The root sits on a min level, so the maximum under
// the side's priority order is among the root and its two children.
func (h *OrderHeap) Best() *Order {
	if h.active == 0 {
		return nil
	}
	best := 0
	for i := 1; i <= 2 && i < h.active; i++ {
		if h.precedes(h.slots[i], h.slots[best]) {
			best = i
		}
	}
	return h.slots[best]
}

// TopN returns up to n orders active as of asOf, in descending priority.
// One pass over the occupied slots with an insertion-maintained bounded
// list: O(occupied x n), fine for top-of-book depths.
func (h *OrderHeap) TopN(asOf Timestamp, n int) []*Order {
	if n <= 0 {
		return nil
	}
	top := make([]*Order, 0, n)
	for _, o := range h.slots {
		if !o.ActiveAt(asOf) {
			continue
		}
		pos := len(top)
		for pos > 0 && h.precedesAt(o, top[pos-1], asOf) {
			pos--
		}
		if pos >= n {
			continue
		}
		if len(top) < n {
			top = append(top, nil)
		}
		copy(top[pos+1:], top[pos:])
		top[pos] = o
	}
	return top
}

// Find returns the order with the given id, active or not.
func (h *OrderHeap) Find(id OrderID) (*Order, bool) {
	if i := h.search(id); i >= 0 {
		return h.slots[i], true
	}
	return nil, false
}

// ActiveOrders returns a copy of the active region, unordered beyond the
// heap shape. Used by invariant checks in tests.
func (h *OrderHeap) ActiveOrders() []*Order {
	out := make([]*Order, h.active)
	copy(out, h.slots[:h.active])
	return out
}

// Precedes reports whether a beats b under the side's priority order as
// of the given time.
func (h *OrderHeap) Precedes(a, b *Order, asOf Timestamp) bool {
	return h.precedesAt(a, b, asOf)
}

func (h *OrderHeap) precedesAt(a, b *Order, asOf Timestamp) bool {
	as, bs := a.Snapshot(asOf), b.Snapshot(asOf)
	if as.Price != bs.Price {
		if h.side == Buy {
			return as.Price > bs.Price
		}
		return as.Price < bs.Price
	}
	if a.SubmittedAt() != b.SubmittedAt() {
		return a.SubmittedAt() < b.SubmittedAt()
	}
	return a.id < b.id
}

func (h *OrderHeap) precedes(a, b *Order) bool {
	return h.precedesAt(a, b, TimeLatest)
}

func (h *OrderHeap) search(id OrderID) int {
	for i, o := range h.slots {
		if o.id == id {
			return i
		}
	}
	return -1
}

func (h *OrderHeap) swap(i, j int) {
	h.slots[i], h.slots[j] = h.slots[j], h.slots[i]
}

// worse reports that slot i loses to slot j. The heap "minimum" is the
// worst-priority active order.
func (h *OrderHeap) worse(i, j int) bool {
	return h.precedes(h.slots[j], h.slots[i])
}

func (h *OrderHeap) makeInactive(i int) {
	h.active--
	h.swap(i, h.active)
	if i < h.active {
		h.repair(i)
	}
}

// repair restores min-max order around slot i after its order changed or
// was replaced: float it up as far as it goes, then push down from where
// it settled.
func (h *OrderHeap) repair(i int) {
	h.pushDown(h.pushUp(i))
}

// minLevel reports whether index i sits on a min level (even depth,
// root included).
func minLevel(i int) bool {
	return bits.Len(uint(i)+1)%2 == 1
}

func (h *OrderHeap) pushUp(i int) int {
	if i == 0 {
		return 0
	}
	p := (i - 1) / 2
	if minLevel(i) {
		if h.worse(p, i) {
			h.swap(i, p)
			return h.pushUpMax(p)
		}
		return h.pushUpMin(i)
	}
	if h.worse(i, p) {
		h.swap(i, p)
		return h.pushUpMin(p)
	}
	return h.pushUpMax(i)
}

func (h *OrderHeap) pushUpMin(i int) int {
	for i > 2 {
		g := (i - 3) / 4
		if !h.worse(i, g) {
			break
		}
		h.swap(i, g)
		i = g
	}
	return i
}

func (h *OrderHeap) pushUpMax(i int) int {
	for i > 2 {
		g := (i - 3) / 4
		if !h.worse(g, i) {
			break
		}
		h.swap(i, g)
		i = g
	}
	return i
}

func (h *OrderHeap) pushDown(i int) {
	if minLevel(i) {
		h.pushDownMin(i)
	} else {
		h.pushDownMax(i)
	}
}

func (h *OrderHeap) pushDownMin(i int) {
	for 2*i+1 < h.active {
		m := h.worstDescendant(i)
		if m > 2*i+2 {
			// m is a grandchild and stays on a min level.
			if !h.worse(m, i) {
				break
			}
			h.swap(m, i)
			if p := (m - 1) / 2; h.worse(p, m) {
				h.swap(m, p)
			}
			i = m
			continue
		}
		if h.worse(m, i) {
			h.swap(m, i)
		}
		break
	}
}

func (h *OrderHeap) pushDownMax(i int) {
	for 2*i+1 < h.active {
		m := h.bestDescendant(i)
		if m > 2*i+2 {
			if !h.worse(i, m) {
				break
			}
			h.swap(m, i)
			if p := (m - 1) / 2; h.worse(m, p) {
				h.swap(m, p)
			}
			i = m
			continue
		}
		if h.worse(i, m) {
			h.swap(m, i)
		}
		break
	}
}

// worstDescendant returns the lowest-priority child or grandchild of i.
// Caller guarantees at least one child exists.
func (h *OrderHeap) worstDescendant(i int) int {
	m := 2*i + 1
	for _, c := range [5]int{2*i + 2, 4*i + 3, 4*i + 4, 4*i + 5, 4*i + 6} {
		if c < h.active && h.worse(c, m) {
			m = c
		}
	}
	return m
}

func (h *OrderHeap) bestDescendant(i int) int {
	m := 2*i + 1
	for _, c := range [5]int{2*i + 2, 4*i + 3, 4*i + 4, 4*i + 5, 4*i + 6} {
		if c < h.active && h.worse(m, c) {
			m = c
		}
	}
	return m
}
