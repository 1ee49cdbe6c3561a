package engine

import "github.com/tidwall/btree"

const (
	DefaultSideCapacity = 1 << 16
	DefaultQueryDepth   = 5
)

// Config carries the injected limits for one directory. Zero values fall
// back to the defaults above.
type Config struct {
	// SideCapacity bounds the occupied (active + inactive) slots of each
	// side of each symbol's book.
	SideCapacity int
	// QueryDepth is the number of ranks depth queries return per side.
	QueryDepth int
}

func (c Config) withDefaults() Config {
	if c.SideCapacity <= 0 {
		c.SideCapacity = DefaultSideCapacity
	}
	if c.QueryDepth <= 0 {
		c.QueryDepth = DefaultQueryDepth
	}
	return c
}

type symbolEntry struct {
	symbol string
	ledger *SymbolLedger
}

type orderRoute struct {
	id     OrderID
	symbol string
}

// Directory routes commands to per-symbol ledgers. It owns every ledger,
// an order-id to symbol index so cancels need no symbol hint, and the
// global timestamp watermark: no accepted command may be stamped earlier
// than any previously accepted one. Directories are plain values wired
// at construction; independent books coexist freely.
type Directory struct {
	cfg       Config
	reporter  TradeReporter
	ledgers   *btree.BTreeG[*symbolEntry]
	routes    *btree.BTreeG[*orderRoute]
	watermark Timestamp
}

func NewDirectory(cfg Config, reporter TradeReporter) *Directory {
	// Keyed ascending so full-book iteration comes out in lexical order.
	ledgers := btree.NewBTreeG(func(a, b *symbolEntry) bool {
		return a.symbol < b.symbol
	})
	routes := btree.NewBTreeG(func(a, b *orderRoute) bool {
		return a.id < b.id
	})
	return &Directory{
		cfg:      cfg.withDefaults(),
		reporter: reporter,
		ledgers:  ledgers,
		routes:   routes,
	}
}

func (d *Directory) Watermark() Timestamp { return d.watermark }

// SubmitNew creates the order and rests it on the commanded side,
// creating the symbol's ledger on first use. The order-id route is
// recorded on first insertion only; an id is never remapped.
func (d *Directory) SubmitNew(cmd Command) error {
	if cmd.Timestamp < d.watermark {
		return ErrStaleTimestamp
	}

	entry, ok := d.ledgers.Get(&symbolEntry{symbol: cmd.Symbol})
	if !ok {
		entry = &symbolEntry{
			symbol: cmd.Symbol,
			ledger: NewSymbolLedger(cmd.Symbol, d.cfg.SideCapacity, d.reporter),
		}
		d.ledgers.Set(entry)
	}

	order := NewOrder(cmd.OrderID, cmd.Kind, cmd.Timestamp, cmd.Price, cmd.Quantity)
	if err := entry.ledger.Submit(order, cmd.Side); err != nil {
		return err
	}
	if _, mapped := d.routes.Get(&orderRoute{id: cmd.OrderID}); !mapped {
		d.routes.Set(&orderRoute{id: cmd.OrderID, symbol: cmd.Symbol})
	}
	d.watermark = cmd.Timestamp
	return nil
}

// Amend requires the symbol to already exist and the order to rest on
// the commanded side.
func (d *Directory) Amend(cmd Command) error {
	if cmd.Timestamp < d.watermark {
		return ErrStaleTimestamp
	}
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: cmd.Symbol})
	if !ok {
		return ErrSymbolNotFound
	}
	if err := entry.ledger.Amend(cmd.Side, cmd.OrderID, cmd.Price, cmd.Quantity); err != nil {
		return err
	}
	d.watermark = cmd.Timestamp
	return nil
}

// Cancel resolves the symbol through the order-id index; the command
// carries no symbol. The watermark advances even when the id is unknown:
// the command's time was observed.
func (d *Directory) Cancel(cmd Command) error {
	if cmd.Timestamp < d.watermark {
		return ErrStaleTimestamp
	}
	d.watermark = cmd.Timestamp

	route, ok := d.routes.Get(&orderRoute{id: cmd.OrderID})
	if !ok {
		return ErrOrderNotFound
	}
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: route.symbol})
	if !ok {
		return ErrOrderNotFound
	}
	return entry.ledger.Cancel(cmd.OrderID, cmd.Timestamp)
}

// MatchAll runs the matching loop on every ledger, in lexical symbol
// order, and returns the total number of trades.
func (d *Directory) MatchAll(ts Timestamp) (int, error) {
	if ts < d.watermark {
		return 0, ErrStaleTimestamp
	}
	trades := 0
	d.ledgers.Scan(func(e *symbolEntry) bool {
		trades += e.ledger.Match(ts)
		return true
	})
	d.watermark = ts
	return trades, nil
}

func (d *Directory) MatchSymbol(symbol string, ts Timestamp) (int, error) {
	if ts < d.watermark {
		return 0, ErrStaleTimestamp
	}
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: symbol})
	if !ok {
		return 0, ErrSymbolNotFound
	}
	trades := entry.ledger.Match(ts)
	d.watermark = ts
	return trades, nil
}

// QueryAll returns the depth of every symbol's book, in lexical order.
// Queries never touch the watermark.
func (d *Directory) QueryAll(asOf Timestamp) []BookDepth {
	out := make([]BookDepth, 0, d.ledgers.Len())
	d.ledgers.Scan(func(e *symbolEntry) bool {
		out = append(out, e.ledger.Query(asOf, d.cfg.QueryDepth))
		return true
	})
	return out
}

func (d *Directory) QuerySymbol(symbol string, asOf Timestamp) (BookDepth, error) {
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: symbol})
	if !ok {
		return BookDepth{}, ErrSymbolNotFound
	}
	return entry.ledger.Query(asOf, d.cfg.QueryDepth), nil
}

// Symbols lists every known symbol in ascending lexical order.
func (d *Directory) Symbols() []string {
	out := make([]string, 0, d.ledgers.Len())
	d.ledgers.Scan(func(e *symbolEntry) bool {
		out = append(out, e.symbol)
		return true
	})
	return out
}

// FindOrder resolves an order and its symbol by id alone.
func (d *Directory) FindOrder(id OrderID) (*Order, string, bool) {
	route, ok := d.routes.Get(&orderRoute{id: id})
	if !ok {
		return nil, "", false
	}
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: route.symbol})
	if !ok {
		return nil, "", false
	}
	o, ok := entry.ledger.Find(id)
	return o, route.symbol, ok
}

// Ledger exposes one symbol's ledger, for read-only embedders.
func (d *Directory) Ledger(symbol string) (*SymbolLedger, bool) {
	entry, ok := d.ledgers.Get(&symbolEntry{symbol: symbol})
	if !ok {
		return nil, false
	}
	return entry.ledger, true
}
