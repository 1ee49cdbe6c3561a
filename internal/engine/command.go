package engine

type Action int

const (
	ActionNew Action = iota
	ActionAmend
	ActionCancel
	ActionMatch
	ActionQuery
)

func (a Action) String() string {
	switch a {
	case ActionNew:
		return "NEW"
	case ActionAmend:
		return "AMEND"
	case ActionCancel:
		return "CANCEL"
	case ActionMatch:
		return "MATCH"
	case ActionQuery:
		return "QUERY"
	}
	return "?"
}

// Variant distinguishes which optional fields a MATCH or QUERY command
// supplied: the whole book or one symbol, the latest state or an as-of
// time.
type Variant int

const (
	// VariantAll spans every symbol at the latest state.
	VariantAll Variant = iota
	// VariantSymbol targets one symbol at the latest state.
	VariantSymbol
	// VariantAllAsOf spans every symbol as of Command.Timestamp.
	VariantAllAsOf
	// VariantSymbolAsOf targets one symbol as of Command.Timestamp.
	VariantSymbolAsOf
)

// Command is one validated instruction for the engine, produced by the
// external parser from a single input line.
type Command struct {
	Action    Action
	OrderID   OrderID
	Timestamp Timestamp
	Symbol    string
	Side      Side
	Kind      OrderKind
	Price     Price
	Quantity  Quantity
	Variant   Variant
}

// ResultCode is the per-command status reported on the output surface.
// The numeric values are part of the observable reject lines.
type ResultCode int

const (
	Accept                  ResultCode = 0
	InvalidAmendmentDetails ResultCode = 101
	InvalidOrderDetails     ResultCode = 303
	OrderDoesNotExist       ResultCode = 404
)

func (c ResultCode) String() string {
	switch c {
	case Accept:
		return "Accept"
	case InvalidAmendmentDetails:
		return "Invalid amendment details"
	case InvalidOrderDetails:
		return "Invalid order details"
	case OrderDoesNotExist:
		return "Order does not exist"
	}
	return "?"
}
