package engine

// HistoryEntry is one versioned view of an order: its status, price and
// remaining quantity as of a point in logical time.
type HistoryEntry struct {
	Status    Status
	Timestamp Timestamp
	Price     Price
	Remaining Quantity
}

// Order is an order's identity plus its append-only alteration history.
// Identity never changes; every amendment, fill and cancellation appends
// a new entry, so state can be read back as of any timestamp. An order
// that has been fully executed or cancelled is inert but stays
// addressable for as-of reads.
type Order struct {
	id      OrderID
	kind    OrderKind
	history []HistoryEntry
}

func NewOrder(id OrderID, kind OrderKind, ts Timestamp, price Price, qty Quantity) *Order {
	return &Order{
		id:   id,
		kind: kind,
		history: []HistoryEntry{{
			Status:    NotExecuted,
			Timestamp: ts,
			Price:     price,
			Remaining: qty,
		}},
	}
}

func (o *Order) ID() OrderID     { return o.id }
func (o *Order) Kind() OrderKind { return o.kind }

// SubmittedAt is the timestamp of the seed entry, i.e. when the order
// entered the book. Stable under amendments and fills; this is the
// "time" leg of price-time priority.
func (o *Order) SubmittedAt() Timestamp {
	return o.history[0].Timestamp
}

// Record appends a history entry. Updates stamped earlier than the
// latest entry, and any update to an order already in a terminal state,
// are dropped silently: re-delivered or delayed events are not errors,
// and prior entries are never overwritten.
func (o *Order) Record(status Status, ts Timestamp, price Price, remaining Quantity) {
	last := o.history[len(o.history)-1]
	if ts < last.Timestamp || last.Status.Terminal() {
		return
	}
	o.history = append(o.history, HistoryEntry{
		Status:    status,
		Timestamp: ts,
		Price:     price,
		Remaining: remaining,
	})
}

// Snapshot returns the most recent entry stamped at or before asOf. If
// every entry postdates asOf the seed entry is returned; callers that
// care use ActiveAt to tell that case apart.
func (o *Order) Snapshot(asOf Timestamp) HistoryEntry {
	for i := len(o.history) - 1; i > 0; i-- {
		if o.history[i].Timestamp <= asOf {
			return o.history[i]
		}
	}
	return o.history[0]
}

// ActiveAt reports whether the order was resting (existed and was not
// executed or cancelled) as of the given time.
func (o *Order) ActiveAt(asOf Timestamp) bool {
	snap := o.Snapshot(asOf)
	return snap.Timestamp <= asOf && !snap.Status.Terminal()
}

// applyTrade records the outcome of a fill: fully executed when nothing
// remains, partially executed otherwise.
func (o *Order) applyTrade(ts Timestamp, price Price, remaining Quantity) {
	status := PartiallyExecuted
	if remaining == 0 {
		status = Executed
	}
	o.Record(status, ts, price, remaining)
}

// applyAmendment records a price/quantity change. Amendments are stamped
// at the order's last known timestamp and keep its current status, so an
// amended order keeps its place in time.
func (o *Order) applyAmendment(price Price, qty Quantity) {
	last := o.Snapshot(TimeLatest)
	o.Record(last.Status, last.Timestamp, price, qty)
}
