// Package interp drives an order book directory from parsed command
// streams and renders the observable output surface: accept/reject
// lines, trade lines and depth lines.
package interp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"skoll/internal/engine"
	"skoll/internal/parser"
)

// Interpreter owns a directory and serializes every engine access
// through one mutex, so concurrent embedders (TCP sessions, HTTP
// queries) share it safely.
type Interpreter struct {
	mu  sync.Mutex
	dir *engine.Directory
	out io.Writer // destination during the current command
}

func New(cfg engine.Config, out io.Writer) *Interpreter {
	it := &Interpreter{out: out}
	it.dir = engine.NewDirectory(cfg, it)
	return it
}

// ReportTrade renders one matched trade. Both sides' pre-trade resting
// quantities and prices appear, bid leg first.
func (it *Interpreter) ReportTrade(t engine.Trade) {
	fmt.Fprintf(it.out, "%s|%d,%s,%d,%s|%s,%d,%s,%d\n",
		t.Symbol,
		t.BidID, t.BidKind, t.BidQty, formatPrice(t.BidPrice),
		formatPrice(t.OfferPrice), t.OfferQty, t.OfferKind, t.OfferID,
	)
}

// ExecuteLine parses and runs one command line, writing any rendered
// output to w. Returns the parse error, if any; engine-level rejects are
// rendered, not returned.
func (it *Interpreter) ExecuteLine(line string, w io.Writer) error {
	cmd, err := parser.Parse(line)
	if err != nil {
		code := engine.InvalidOrderDetails
		if errors.Is(err, parser.ErrInvalidAmendment) {
			code = engine.InvalidAmendmentDetails
		}
		fmt.Fprintf(w, "%d - Reject - %d - %s\n", cmd.OrderID, int(code), code)
		return err
	}
	it.Execute(cmd, w)
	return nil
}

// Execute runs one parsed command, writing rendered output to w.
func (it *Interpreter) Execute(cmd engine.Command, w io.Writer) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.out = w

	switch cmd.Action {
	case engine.ActionNew:
		it.runNew(cmd, w)
	case engine.ActionAmend:
		it.runAmend(cmd, w)
	case engine.ActionCancel:
		it.runCancel(cmd, w)
	case engine.ActionMatch:
		it.runMatch(cmd)
	case engine.ActionQuery:
		it.runQuery(cmd, w)
	}
}

func (it *Interpreter) runNew(cmd engine.Command, w io.Writer) {
	if err := it.dir.SubmitNew(cmd); err != nil {
		log.Debug().Err(err).Uint64("order_id", uint64(cmd.OrderID)).Msg("new order rejected")
		fmt.Fprintf(w, "%d - Reject - %d - %s\n",
			cmd.OrderID, int(engine.InvalidOrderDetails), engine.InvalidOrderDetails)
		return
	}
	fmt.Fprintf(w, "%d - Accept\n", cmd.OrderID)
}

func (it *Interpreter) runAmend(cmd engine.Command, w io.Writer) {
	err := it.dir.Amend(cmd)
	switch {
	case err == nil:
		fmt.Fprintf(w, "%d - AmendAccept\n", cmd.OrderID)
	case errors.Is(err, engine.ErrStaleTimestamp):
		fmt.Fprintf(w, "%d - AmendReject - %d - %s\n",
			cmd.OrderID, int(engine.InvalidAmendmentDetails), engine.InvalidAmendmentDetails)
	default:
		fmt.Fprintf(w, "%d - AmendReject - %d - %s\n",
			cmd.OrderID, int(engine.OrderDoesNotExist), engine.OrderDoesNotExist)
	}
}

func (it *Interpreter) runCancel(cmd engine.Command, w io.Writer) {
	err := it.dir.Cancel(cmd)
	switch {
	case err == nil:
		fmt.Fprintf(w, "%d - CancelAccept\n", cmd.OrderID)
	case errors.Is(err, engine.ErrStaleTimestamp):
		fmt.Fprintf(w, "%d - CancelReject - %d - %s\n",
			cmd.OrderID, int(engine.InvalidOrderDetails), engine.InvalidOrderDetails)
	default:
		fmt.Fprintf(w, "%d - CancelReject - %d - %s\n",
			cmd.OrderID, int(engine.OrderDoesNotExist), engine.OrderDoesNotExist)
	}
}

func (it *Interpreter) runMatch(cmd engine.Command) {
	var (
		trades int
		err    error
	)
	if cmd.Variant == engine.VariantSymbol {
		trades, err = it.dir.MatchSymbol(cmd.Symbol, cmd.Timestamp)
	} else {
		trades, err = it.dir.MatchAll(cmd.Timestamp)
	}
	if err != nil {
		log.Debug().Err(err).Str("symbol", cmd.Symbol).Msg("match rejected")
		return
	}
	log.Debug().Int("trades", trades).Str("symbol", cmd.Symbol).Msg("match complete")
}

func (it *Interpreter) runQuery(cmd engine.Command, w io.Writer) {
	switch cmd.Variant {
	case engine.VariantSymbol, engine.VariantSymbolAsOf:
		depth, err := it.dir.QuerySymbol(cmd.Symbol, cmd.Timestamp)
		if err != nil {
			log.Debug().Err(err).Str("symbol", cmd.Symbol).Msg("query rejected")
			return
		}
		renderDepth(w, depth)
	default:
		for _, depth := range it.dir.QueryAll(cmd.Timestamp) {
			renderDepth(w, depth)
		}
	}
}

func renderDepth(w io.Writer, depth engine.BookDepth) {
	for _, level := range depth.Levels {
		var sb strings.Builder
		sb.WriteString(depth.Symbol)
		sb.WriteByte('|')
		if b := level.Bid; b != nil {
			fmt.Fprintf(&sb, "%d,%s,%d,%s", b.OrderID, b.Kind, b.Quantity, formatPrice(b.Price))
		}
		sb.WriteByte('|')
		if o := level.Offer; o != nil {
			fmt.Fprintf(&sb, "%s,%d,%s,%d", formatPrice(o.Price), o.Quantity, o.Kind, o.OrderID)
		}
		sb.WriteByte('\n')
		io.WriteString(w, sb.String())
	}
}

// RunScript feeds a command script to the engine, output to w. Scripts
// may be prefixed with a line holding the number of commands to run;
// without one the whole stream is consumed. Processing stops at the
// first malformed line, after its reject is rendered.
func (it *Interpreter) RunScript(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	remaining := -1
	first := true
	for remaining != 0 && sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if n, err := strconv.Atoi(line); err == nil {
				remaining = n
				continue
			}
		}
		if err := it.ExecuteLine(line, w); err != nil {
			return err
		}
		if remaining > 0 {
			remaining--
		}
	}
	return sc.Err()
}

// Directory exposes the underlying book for read-only embedders. Callers
// must hold Lock around any access.
func (it *Interpreter) Directory() *engine.Directory { return it.dir }

// Lock guards direct directory reads by embedders such as the HTTP API.
func (it *Interpreter) Lock()   { it.mu.Lock() }
func (it *Interpreter) Unlock() { it.mu.Unlock() }

func formatPrice(p engine.Price) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
