// Package parser turns textual command lines into engine commands.
//
// One command per line, comma-separated fields:
//
//	N,<id>,<ts>,<SYM>,<L|M|I>,<B|S>,<price>,<qty>
//	A,<id>,<ts>,<SYM>,<L|M|I>,<B|S>,<price>,<qty>
//	X,<id>,<ts>
//	M,<ts>            M,<ts>,<SYM>
//	Q                 Q,<SYM>   Q,<ts>   Q,<SYM>,<ts>   Q,<ts>,<SYM>
package parser

import (
	"errors"
	"strconv"
	"strings"

	"skoll/internal/engine"
)

var (
	ErrInvalidOrder     = errors.New("invalid order details")
	ErrInvalidAmendment = errors.New("invalid amendment details")
)

// Parse converts a single input line into a Command. Malformed AMEND
// lines fail with ErrInvalidAmendment, everything else malformed with
// ErrInvalidOrder; both carry the best-effort order id already parsed so
// reject lines can name it.
func Parse(line string) (engine.Command, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) == 0 || fields[0] == "" {
		return engine.Command{}, ErrInvalidOrder
	}

	switch fields[0] {
	case "N":
		return parseOrderFields(engine.ActionNew, fields, ErrInvalidOrder)
	case "A":
		return parseOrderFields(engine.ActionAmend, fields, ErrInvalidAmendment)
	case "X":
		return parseCancel(fields)
	case "M":
		return parseMatch(fields)
	case "Q":
		return parseQuery(fields)
	}
	return engine.Command{}, ErrInvalidOrder
}

// parseOrderFields handles the shared NEW/AMEND shape.
func parseOrderFields(action engine.Action, fields []string, failure error) (engine.Command, error) {
	cmd := engine.Command{Action: action}
	if len(fields) != 8 {
		return cmd, failure
	}

	id, err := parseID(fields[1])
	if err != nil {
		return cmd, failure
	}
	cmd.OrderID = id

	ts, err := parseTimestamp(fields[2])
	if err != nil {
		return cmd, failure
	}
	cmd.Timestamp = ts

	sym, ok := parseSymbol(fields[3])
	if !ok {
		return cmd, failure
	}
	cmd.Symbol = sym

	kind, ok := parseKind(fields[4])
	if !ok {
		return cmd, failure
	}
	cmd.Kind = kind

	side, ok := parseSide(fields[5])
	if !ok {
		return cmd, failure
	}
	cmd.Side = side

	price, ok := parsePrice(fields[6])
	if !ok {
		return cmd, failure
	}
	cmd.Price = price

	qty, err := strconv.ParseUint(fields[7], 10, 64)
	if err != nil {
		return cmd, failure
	}
	cmd.Quantity = qty

	return cmd, nil
}

func parseCancel(fields []string) (engine.Command, error) {
	cmd := engine.Command{Action: engine.ActionCancel}
	if len(fields) != 3 {
		return cmd, ErrInvalidOrder
	}
	id, err := parseID(fields[1])
	if err != nil {
		return cmd, ErrInvalidOrder
	}
	cmd.OrderID = id
	ts, err := parseTimestamp(fields[2])
	if err != nil {
		return cmd, ErrInvalidOrder
	}
	cmd.Timestamp = ts
	return cmd, nil
}

func parseMatch(fields []string) (engine.Command, error) {
	cmd := engine.Command{Action: engine.ActionMatch, Variant: engine.VariantAll}
	if len(fields) < 2 || len(fields) > 3 {
		return cmd, ErrInvalidOrder
	}
	ts, err := parseTimestamp(fields[1])
	if err != nil {
		return cmd, ErrInvalidOrder
	}
	cmd.Timestamp = ts
	if len(fields) == 3 {
		sym, ok := parseSymbol(fields[2])
		if !ok {
			return cmd, ErrInvalidOrder
		}
		cmd.Symbol = sym
		cmd.Variant = engine.VariantSymbol
	}
	return cmd, nil
}

// parseQuery untangles the optional symbol/timestamp forms: a leading
// digit means a timestamp, a leading letter a symbol, and the two may
// appear in either order.
func parseQuery(fields []string) (engine.Command, error) {
	cmd := engine.Command{
		Action:    engine.ActionQuery,
		Timestamp: engine.TimeLatest,
		Variant:   engine.VariantAll,
	}
	switch len(fields) {
	case 1:
		return cmd, nil

	case 2:
		if sym, ok := parseSymbol(fields[1]); ok {
			cmd.Symbol = sym
			cmd.Variant = engine.VariantSymbol
			return cmd, nil
		}
		ts, err := parseTimestamp(fields[1])
		if err != nil {
			return cmd, ErrInvalidOrder
		}
		cmd.Timestamp = ts
		cmd.Variant = engine.VariantAllAsOf
		return cmd, nil

	case 3:
		if sym, ok := parseSymbol(fields[1]); ok {
			ts, err := parseTimestamp(fields[2])
			if err != nil {
				return cmd, ErrInvalidOrder
			}
			cmd.Symbol, cmd.Timestamp = sym, ts
			cmd.Variant = engine.VariantSymbolAsOf
			return cmd, nil
		}
		ts, err := parseTimestamp(fields[1])
		if err != nil {
			return cmd, ErrInvalidOrder
		}
		sym, ok := parseSymbol(fields[2])
		if !ok {
			return cmd, ErrInvalidOrder
		}
		cmd.Symbol, cmd.Timestamp = sym, ts
		cmd.Variant = engine.VariantSymbolAsOf
		return cmd, nil
	}
	return cmd, ErrInvalidOrder
}

func parseID(s string) (engine.OrderID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return engine.OrderID(v), err
}

func parseTimestamp(s string) (engine.Timestamp, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return engine.Timestamp(v), err
}

func parseSymbol(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", false
		}
	}
	return s, true
}

func parseKind(s string) (engine.OrderKind, bool) {
	switch s {
	case "M":
		return engine.Market, true
	case "L":
		return engine.Limit, true
	case "I":
		return engine.IOC, true
	}
	return 0, false
}

func parseSide(s string) (engine.Side, bool) {
	switch s {
	case "B":
		return engine.Buy, true
	case "S":
		return engine.Sell, true
	}
	return 0, false
}

// parsePrice accepts a non-negative decimal with at most one dot and at
// least one digit. Prices carry two-decimal semantics but are stored as
// floating point.
func parsePrice(s string) (engine.Price, bool) {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.':
			dots++
		default:
			return 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
