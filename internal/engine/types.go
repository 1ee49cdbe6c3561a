package engine

import "errors"

var (
	ErrStaleTimestamp   = errors.New("timestamp precedes the engine watermark")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrOrderNotFound    = errors.New("order does not exist")
	ErrCapacityExceeded = errors.New("side capacity exceeded")
)

// OrderID uniquely identifies an order across the whole engine.
type OrderID uint64

// Timestamp is a logical clock value supplied by the command stream.
// It is strictly a total order, not wall-clock time.
type Timestamp uint64

// TimeLatest is the "unspecified" as-of sentinel: reads resolve against
// the most recent history entry.
const TimeLatest = Timestamp(1<<64 - 1)

type Price = float64

type Quantity = uint64

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "B"
	case Sell:
		return "S"
	}
	return "?"
}

type OrderKind int

const (
	Market OrderKind = iota
	Limit
	IOC
)

func (k OrderKind) String() string {
	switch k {
	case Market:
		return "M"
	case Limit:
		return "L"
	case IOC:
		return "I"
	}
	return "?"
}

// Status tracks an order through its lifecycle. Executed and Cancelled
// are terminal: no further history is recorded past either.
type Status int

const (
	NotExecuted Status = iota
	PartiallyExecuted
	Executed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case NotExecuted:
		return "NOT_EXECUTED"
	case PartiallyExecuted:
		return "PARTIALLY_EXECUTED"
	case Executed:
		return "EXECUTED"
	case Cancelled:
		return "CANCELLED"
	}
	return "?"
}

func (s Status) Terminal() bool {
	return s == Executed || s == Cancelled
}
