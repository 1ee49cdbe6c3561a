package engine_test

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skoll/internal/engine"
)

// --- Setup & Helpers --------------------------------------------------------

func limitOrder(id engine.OrderID, ts engine.Timestamp, price float64, qty uint64) *engine.Order {
	return engine.NewOrder(id, engine.Limit, ts, price, qty)
}

// expectedBest scans the active region linearly: the ground truth Best
// must agree with.
func expectedBest(h *engine.OrderHeap) *engine.Order {
	var best *engine.Order
	for _, o := range h.ActiveOrders() {
		if best == nil || h.Precedes(o, best, engine.TimeLatest) {
			best = o
		}
	}
	return best
}

// sortedActive is the active region fully sorted by priority, the
// O(n log n) reference TopN is checked against.
func sortedActive(h *engine.OrderHeap) []*engine.Order {
	orders := h.ActiveOrders()
	sort.Slice(orders, func(i, j int) bool {
		return h.Precedes(orders[i], orders[j], engine.TimeLatest)
	})
	return orders
}

func checkRegions(t *testing.T, h *engine.OrderHeap) {
	t.Helper()
	assert.Equal(t, h.Cap(), h.ActiveLen()+h.InactiveLen()+h.FreeLen(),
		"regions must partition capacity")
	assert.Equal(t, h.Occupied(), h.ActiveLen()+h.InactiveLen())
}

// --- Tests ------------------------------------------------------------------

func TestHeap_BestBidIsHighestPrice(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 99.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 101.0, 100)))
	require.NoError(t, h.Insert(limitOrder(3, 3, 100.0, 100)))

	require.NotNil(t, h.Best())
	assert.Equal(t, engine.OrderID(2), h.Best().ID())
}

func TestHeap_BestOfferIsLowestPrice(t *testing.T) {
	h := engine.NewOrderHeap(engine.Sell, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 99.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 101.0, 100)))
	require.NoError(t, h.Insert(limitOrder(3, 3, 98.0, 100)))

	require.NotNil(t, h.Best())
	assert.Equal(t, engine.OrderID(3), h.Best().ID())
}

func TestHeap_PriceTiesGoToEarlierSubmission(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 16)
	require.NoError(t, h.Insert(limitOrder(7, 5, 100.0, 10)))
	require.NoError(t, h.Insert(limitOrder(8, 3, 100.0, 10)))
	require.NoError(t, h.Insert(limitOrder(9, 4, 100.0, 10)))

	assert.Equal(t, engine.OrderID(8), h.Best().ID())
}

func TestHeap_CapacityCoversActiveAndInactive(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 2)
	require.NoError(t, h.Insert(limitOrder(1, 1, 99.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 98.0, 100)))
	assert.ErrorIs(t, h.Insert(limitOrder(3, 3, 97.0, 100)), engine.ErrCapacityExceeded)

	// Cancelling frees no capacity: the slot moves to the inactive
	// region and stays addressable.
	require.NoError(t, h.Cancel(1, 4))
	assert.ErrorIs(t, h.Insert(limitOrder(3, 5, 97.0, 100)), engine.ErrCapacityExceeded)
	checkRegions(t, h)
}

func TestHeap_CancelDeactivates(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 101.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 99.0, 100)))

	require.NoError(t, h.Cancel(1, 3))
	assert.Equal(t, 1, h.ActiveLen())
	assert.Equal(t, 1, h.InactiveLen())
	assert.Equal(t, engine.OrderID(2), h.Best().ID())

	// Still addressable: the history records the cancellation.
	o, ok := h.Find(1)
	require.True(t, ok)
	assert.Equal(t, engine.Cancelled, o.Snapshot(engine.TimeLatest).Status)

	assert.ErrorIs(t, h.Cancel(42, 4), engine.ErrOrderNotFound)
}

func TestHeap_AmendMovesPriority(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 99.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 100.0, 100)))
	require.Equal(t, engine.OrderID(2), h.Best().ID())

	require.NoError(t, h.Amend(1, 101.0, 100))
	assert.Equal(t, engine.OrderID(1), h.Best().ID())

	// Amendments keep the order's timestamp: amending 2 to the same
	// price does not jump the queue ahead of the earlier submission.
	require.NoError(t, h.Amend(2, 101.0, 100))
	assert.Equal(t, engine.OrderID(1), h.Best().ID())

	assert.ErrorIs(t, h.Amend(42, 50.0, 1), engine.ErrOrderNotFound)
}

func TestHeap_FillPartialThenFull(t *testing.T) {
	h := engine.NewOrderHeap(engine.Sell, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 100.0, 100)))

	require.NoError(t, h.Fill(1, 30, 2))
	o, ok := h.Find(1)
	require.True(t, ok)
	snap := o.Snapshot(engine.TimeLatest)
	assert.Equal(t, engine.PartiallyExecuted, snap.Status)
	assert.Equal(t, uint64(70), snap.Remaining)
	assert.Equal(t, 1, h.ActiveLen())

	// Over-filling clamps to zero and deactivates as EXECUTED, not
	// CANCELLED.
	require.NoError(t, h.Fill(1, 90, 3))
	snap = o.Snapshot(engine.TimeLatest)
	assert.Equal(t, engine.Executed, snap.Status)
	assert.Equal(t, uint64(0), snap.Remaining)
	assert.Equal(t, 0, h.ActiveLen())
	assert.Equal(t, 1, h.InactiveLen())
	checkRegions(t, h)
}

func TestHeap_TopN(t *testing.T) {
	h := engine.NewOrderHeap(engine.Buy, 16)
	require.NoError(t, h.Insert(limitOrder(1, 1, 99.0, 100)))
	require.NoError(t, h.Insert(limitOrder(2, 2, 101.0, 100)))
	require.NoError(t, h.Insert(limitOrder(3, 3, 100.0, 100)))
	require.NoError(t, h.Insert(limitOrder(4, 4, 101.0, 100)))

	top := h.TopN(engine.TimeLatest, 3)
	require.Len(t, top, 3)
	assert.Equal(t, engine.OrderID(2), top[0].ID())
	assert.Equal(t, engine.OrderID(4), top[1].ID())
	assert.Equal(t, engine.OrderID(3), top[2].ID())

	// Bounded by n, and by what is active as of the query time.
	assert.Len(t, h.TopN(engine.TimeLatest, 2), 2)
	assert.Len(t, h.TopN(3, 5), 3) // order 4 not yet submitted at t=3

	require.NoError(t, h.Cancel(2, 5))
	top = h.TopN(engine.TimeLatest, 5)
	require.Len(t, top, 3)
	assert.Equal(t, engine.OrderID(4), top[0].ID())

	// As of before the cancel, order 2 still leads.
	top = h.TopN(4, 5)
	require.Len(t, top, 4)
	assert.Equal(t, engine.OrderID(2), top[0].ID())
}

// TestHeap_RandomOpsCrossCheck drives a heap through a random mix of
// inserts, amends, cancels and fills, and after every operation checks
// the region arithmetic and that Best and TopN agree with a full sort of
// the active region.
func TestHeap_RandomOpsCrossCheck(t *testing.T) {
	for _, side := range []engine.Side{engine.Buy, engine.Sell} {
		side := side
		t.Run(side.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			h := engine.NewOrderHeap(side, 256)

			var ids []engine.OrderID
			nextID := engine.OrderID(1)
			ts := engine.Timestamp(1)

			randomID := func() engine.OrderID {
				return ids[rng.Intn(len(ids))]
			}

			for op := 0; op < 1000; op++ {
				ts++
				switch {
				case len(ids) == 0 || rng.Intn(10) < 5:
					id := nextID
					nextID++
					price := 90.0 + float64(rng.Intn(2000))/100.0
					qty := uint64(1 + rng.Intn(500))
					if err := h.Insert(engine.NewOrder(id, engine.Limit, ts, price, qty)); err == nil {
						ids = append(ids, id)
					}
				case rng.Intn(10) < 4:
					price := 90.0 + float64(rng.Intn(2000))/100.0
					_ = h.Amend(randomID(), price, uint64(1+rng.Intn(500)))
				case rng.Intn(2) == 0:
					_ = h.Cancel(randomID(), ts)
				default:
					_ = h.Fill(randomID(), uint64(1+rng.Intn(300)), ts)
				}

				checkRegions(t, h)

				want := expectedBest(h)
				got := h.Best()
				if want == nil {
					require.Nil(t, got, "op %d", op)
					continue
				}
				require.NotNil(t, got, "op %d", op)
				require.Equal(t, want.ID(), got.ID(), "op %d", op)

				if op%10 == 0 {
					sorted := sortedActive(h)
					n := min(5, len(sorted))
					top := h.TopN(engine.TimeLatest, 5)
					require.Len(t, top, n, "op %d", op)
					for i := 0; i < n; i++ {
						require.Equal(t, sorted[i].ID(), top[i].ID(), "op %d rank %d", op, i)
					}
				}
			}
		})
	}
}
