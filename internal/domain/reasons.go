package domain

// Error taxonomy reified as typed reply variants (spec.md §7): nothing in
// this core raises for a domain condition. Each reason type is a small
// closed int8 enum, matching the teacher's enum-with-String idiom.

// PlacementDiscardingReason explains why an order placement was rejected.
type PlacementDiscardingReason int8

const (
	PlacementExchangeClosed PlacementDiscardingReason = iota
	PlacementZeroSize
	PlacementBrokerNotConnectedToExchange
	PlacementNoSuchTradedPair
	PlacementOrderWithSuchIDAlreadySubmitted
	PlacementTraderNotRegistered
)

func (r PlacementDiscardingReason) String() string {
	switch r {
	case PlacementExchangeClosed:
		return "EXCHANGE_CLOSED"
	case PlacementZeroSize:
		return "ZERO_SIZE"
	case PlacementBrokerNotConnectedToExchange:
		return "BROKER_NOT_CONNECTED_TO_EXCHANGE"
	case PlacementNoSuchTradedPair:
		return "NO_SUCH_TRADED_PAIR"
	case PlacementOrderWithSuchIDAlreadySubmitted:
		return "ORDER_WITH_SUCH_ID_ALREADY_SUBMITTED"
	case PlacementTraderNotRegistered:
		return "TRADER_NOT_REGISTERED"
	default:
		return "UNKNOWN"
	}
}

// InabilityToCancelReason explains why a cancel request failed.
type InabilityToCancelReason int8

const (
	CancelOrderHasNotBeenSubmitted InabilityToCancelReason = iota
	CancelOrderAlreadyExecuted
	CancelExchangeClosed
	CancelNoSuchTradedPair
	CancelBrokerNotConnectedToExchange
	CancelTraderNotRegistered
)

func (r InabilityToCancelReason) String() string {
	switch r {
	case CancelOrderHasNotBeenSubmitted:
		return "ORDER_HAS_NOT_BEEN_SUBMITTED"
	case CancelOrderAlreadyExecuted:
		return "ORDER_ALREADY_EXECUTED"
	case CancelExchangeClosed:
		return "EXCHANGE_CLOSED"
	case CancelNoSuchTradedPair:
		return "NO_SUCH_TRADED_PAIR"
	case CancelBrokerNotConnectedToExchange:
		return "BROKER_NOT_CONNECTED_TO_EXCHANGE"
	case CancelTraderNotRegistered:
		return "TRADER_NOT_REGISTERED"
	default:
		return "UNKNOWN"
	}
}

// InabilityToOpenExchangeReason explains why ExchangeOpen was rejected.
type InabilityToOpenExchangeReason int8

const (
	OpenAlreadyOpen InabilityToOpenExchangeReason = iota
)

func (r InabilityToOpenExchangeReason) String() string { return "ALREADY_OPEN" }

// InabilityToCloseExchangeReason explains why ExchangeClosed was rejected.
type InabilityToCloseExchangeReason int8

const (
	CloseAlreadyClosed InabilityToCloseExchangeReason = iota
)

func (r InabilityToCloseExchangeReason) String() string { return "ALREADY_CLOSED" }

// InabilityToStartTrades explains why StartTrades was rejected.
type InabilityToStartTrades int8

const (
	StartAlreadyStarted InabilityToStartTrades = iota
	StartExchangeClosed
	StartWrongSpec
)

func (r InabilityToStartTrades) String() string {
	switch r {
	case StartAlreadyStarted:
		return "ALREADY_STARTED"
	case StartExchangeClosed:
		return "EXCHANGE_CLOSED"
	case StartWrongSpec:
		return "WRONG_SPEC"
	default:
		return "UNKNOWN"
	}
}

// InabilityToStopTrades explains why StopTrades was rejected.
type InabilityToStopTrades int8

const (
	StopNoSuchTradedPair InabilityToStopTrades = iota
)

func (r InabilityToStopTrades) String() string { return "NO_SUCH_TRADED_PAIR" }

// InabilityToBroadcastObState explains why a snapshot broadcast was
// rejected.
type InabilityToBroadcastObState int8

const (
	BroadcastExchangeClosed InabilityToBroadcastObState = iota
	BroadcastNoSuchTradedPair
)

func (r InabilityToBroadcastObState) String() string {
	if r == BroadcastExchangeClosed {
		return "EXCHANGE_CLOSED"
	}
	return "NO_SUCH_TRADED_PAIR"
}

// CancellationReason explains why a resting order was removed from the book
// even though no cancel request failed — i.e. it succeeded, for this reason.
type CancellationReason int8

const (
	CancellationBrokerRequested CancellationReason = iota
	CancellationExchangeClosed
	CancellationTradesStopped
)

func (r CancellationReason) String() string {
	switch r {
	case CancellationBrokerRequested:
		return "BROKER_REQUESTED"
	case CancellationExchangeClosed:
		return "EXCHANGE_CLOSED"
	case CancellationTradesStopped:
		return "TRADES_STOPPED"
	default:
		return "UNKNOWN"
	}
}
