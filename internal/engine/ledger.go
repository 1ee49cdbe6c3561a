package engine

import "github.com/google/uuid"

// Trade is one matched execution between a resting bid and a resting
// offer. Quantities on each leg are the pre-trade remaining quantities;
// Qty is the matched amount and Price the single execution price both
// legs filled at.
type Trade struct {
	ID         string
	Symbol     string
	BidID      OrderID
	BidKind    OrderKind
	BidQty     Quantity
	BidPrice   Price
	OfferPrice Price
	OfferQty   Quantity
	OfferKind  OrderKind
	OfferID    OrderID
	Qty        Quantity
	Price      Price
	Timestamp  Timestamp
}

// TradeReporter receives every trade the matching loop produces. The
// sink is external to the engine: a session writer, a log, a recorder.
type TradeReporter interface {
	ReportTrade(Trade)
}

// LevelEntry is one side of one rank in a depth view.
type LevelEntry struct {
	OrderID  OrderID
	Kind     OrderKind
	Quantity Quantity
	Price    Price
}

// DepthLevel pairs the bid and offer resting at one rank; either side
// may be absent when that side of the book is shallower.
type DepthLevel struct {
	Rank  int
	Bid   *LevelEntry
	Offer *LevelEntry
}

// BookDepth is the top of one symbol's book.
type BookDepth struct {
	Symbol string
	Levels []DepthLevel
}

// SymbolLedger owns the bid and offer heaps for a single symbol, runs
// the matching loop between them and serves depth queries. Ledgers share
// no mutable state with each other.
type SymbolLedger struct {
	symbol   string
	bids     *OrderHeap
	offers   *OrderHeap
	reporter TradeReporter
}

func NewSymbolLedger(symbol string, sideCapacity int, reporter TradeReporter) *SymbolLedger {
	return &SymbolLedger{
		symbol:   symbol,
		bids:     NewOrderHeap(Buy, sideCapacity),
		offers:   NewOrderHeap(Sell, sideCapacity),
		reporter: reporter,
	}
}

func (l *SymbolLedger) Symbol() string { return l.symbol }

func (l *SymbolLedger) Submit(o *Order, side Side) error {
	if side == Buy {
		return l.bids.Insert(o)
	}
	return l.offers.Insert(o)
}

func (l *SymbolLedger) Amend(side Side, id OrderID, price Price, qty Quantity) error {
	if side == Buy {
		return l.bids.Amend(id, price, qty)
	}
	return l.offers.Amend(id, price, qty)
}

// Cancel removes the order from whichever side holds it. The cancel
// command carries no side hint; ids are engine-unique so at most one
// heap can match.
func (l *SymbolLedger) Cancel(id OrderID, ts Timestamp) error {
	if err := l.bids.Cancel(id, ts); err == nil {
		return nil
	}
	return l.offers.Cancel(id, ts)
}

// Find locates an order on either side.
func (l *SymbolLedger) Find(id OrderID) (*Order, bool) {
	if o, ok := l.bids.Find(id); ok {
		return o, true
	}
	return l.offers.Find(id)
}

// Match crosses the book until it no longer crosses: while the best bid
// prices at or above the best offer, the two trade for the smaller
// remaining quantity. The execution price belongs to whichever resting
// order has been in the book longer, the bid winning ties. Every
// iteration fully fills at least one side's best, so the loop is bounded
// by the book's size. Returns the number of trades.
func (l *SymbolLedger) Match(ts Timestamp) int {
	trades := 0
	for {
		bid := l.bids.Best()
		offer := l.offers.Best()
		if bid == nil || offer == nil {
			break
		}
		bs := bid.Snapshot(TimeLatest)
		os := offer.Snapshot(TimeLatest)
		// An executed order surfacing here would mean a deactivation was
		// missed; stop rather than fill it again.
		if bs.Status == Executed || os.Status == Executed {
			break
		}
		if bs.Price < os.Price {
			break
		}

		qty := min(bs.Remaining, os.Remaining)
		price := bs.Price
		if offer.SubmittedAt() < bid.SubmittedAt() {
			price = os.Price
		}

		l.bids.Fill(bid.ID(), qty, ts)
		l.offers.Fill(offer.ID(), qty, ts)
		trades++

		if l.reporter != nil {
			l.reporter.ReportTrade(Trade{
				ID:         uuid.NewString(),
				Symbol:     l.symbol,
				BidID:      bid.ID(),
				BidKind:    bid.Kind(),
				BidQty:     bs.Remaining,
				BidPrice:   bs.Price,
				OfferPrice: os.Price,
				OfferQty:   os.Remaining,
				OfferKind:  offer.Kind(),
				OfferID:    offer.ID(),
				Qty:        qty,
				Price:      price,
				Timestamp:  ts,
			})
		}
	}
	return trades
}

// Query returns the top of the book as of the given time, one level per
// rank up to depth. Read-only.
func (l *SymbolLedger) Query(asOf Timestamp, depth int) BookDepth {
	bids := l.bids.TopN(asOf, depth)
	offers := l.offers.TopN(asOf, depth)

	n := max(len(bids), len(offers))
	levels := make([]DepthLevel, 0, n)
	for i := 0; i < n; i++ {
		level := DepthLevel{Rank: i + 1}
		if i < len(bids) {
			level.Bid = levelEntry(bids[i], asOf)
		}
		if i < len(offers) {
			level.Offer = levelEntry(offers[i], asOf)
		}
		levels = append(levels, level)
	}
	return BookDepth{Symbol: l.symbol, Levels: levels}
}

func levelEntry(o *Order, asOf Timestamp) *LevelEntry {
	snap := o.Snapshot(asOf)
	return &LevelEntry{
		OrderID:  o.ID(),
		Kind:     o.Kind(),
		Quantity: snap.Remaining,
		Price:    snap.Price,
	}
}

// Bids and Offers expose the underlying heaps for invariant checks.
func (l *SymbolLedger) Bids() *OrderHeap   { return l.bids }
func (l *SymbolLedger) Offers() *OrderHeap { return l.offers }
