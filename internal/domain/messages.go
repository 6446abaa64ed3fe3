package domain

// This file defines the payload shapes carried by kernel messages: requests
// flowing toward an Exchange (from Replay or Broker), replies flowing back
// (to Broker/Trader or to Replay), and the notification fan-out broadcast to
// all subscribers of a traded pair. Each discriminated struct follows the
// teacher's domain.Event idiom: a Kind field plus "exactly one of these [the
// Kind-relevant fields] is set".

// --- Order-level requests (Trader→Broker, Broker→Exchange, Replay→Exchange) ---

// OrderRequestKind discriminates an order-scoped request.
type OrderRequestKind int8

const (
	ReqPlaceLimit OrderRequestKind = iota
	ReqPlaceMarket
	ReqCancelLimit
)

func (k OrderRequestKind) String() string {
	switch k {
	case ReqPlaceLimit:
		return "PLACE_LIMIT"
	case ReqPlaceMarket:
		return "PLACE_MARKET"
	case ReqCancelLimit:
		return "CANCEL_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderRequest is a place/cancel request, scoped to whatever namespace its
// OrderID lives in at the hop it is currently crossing (trader-submitted,
// broker-internal, or replay-scoped — spec.md §3/§9). The same shape is
// reused at every hop since each hop only rewrites the OrderID and forwards;
// it never reinterprets the other fields.
type OrderRequest struct {
	Kind       OrderRequestKind
	TradedPair TradedPair
	OrderID    OrderID // the id being placed, or the id targeted for cancel
	Side       Side
	Price      Price // meaningful for ReqPlaceLimit only
	Size       Size  // meaningful for ReqPlaceLimit/ReqPlaceMarket only
	IsDummy    bool

	// ExchangeID names the venue a trader is routing this request to. Only
	// meaningful on the Trader→Broker hop, where it tells the broker which
	// of its connected exchanges to forward to — the kernel.Message's own
	// Dest already identifies the exchange on the Broker→Exchange hop, so
	// this field goes unread past that point.
	ExchangeID ExchangeID
}

// --- Exchange lifecycle requests (Replay→Exchange only) ---

// LifecycleRequestKind discriminates a session/instrument lifecycle request.
type LifecycleRequestKind int8

const (
	ReqExchangeOpen LifecycleRequestKind = iota
	ReqExchangeClosed
	ReqStartTrades
	ReqStopTrades
	ReqBroadcastObState
)

func (k LifecycleRequestKind) String() string {
	switch k {
	case ReqExchangeOpen:
		return "EXCHANGE_OPEN"
	case ReqExchangeClosed:
		return "EXCHANGE_CLOSED"
	case ReqStartTrades:
		return "START_TRADES"
	case ReqStopTrades:
		return "STOP_TRADES"
	case ReqBroadcastObState:
		return "BROADCAST_OB_STATE"
	default:
		return "UNKNOWN"
	}
}

// LifecycleRequest is issued by Replay only (spec.md §4.2/§4.4): toggling the
// exchange, starting/stopping a trading session, or asking for an
// out-of-band snapshot broadcast.
type LifecycleRequest struct {
	Kind       LifecycleRequestKind
	TradedPair TradedPair // meaningful for StartTrades/StopTrades/BroadcastObState
	PriceStep  PriceStep  // meaningful for StartTrades
	MaxLevels  int        // meaningful for BroadcastObState
}

// --- Notifications (ExchangeEventNotification, fanned out by Exchange to
// Replay and all Brokers, filtered further by Broker per subscription) ---

// NotificationKind discriminates ExchangeEventNotification (spec.md §4.3).
type NotificationKind int8

const (
	NotifyExchangeOpen NotificationKind = iota
	NotifyExchangeClosed
	NotifyTradesStarted
	NotifyTradesStopped
	NotifyTradeExecuted
	NotifyOrderPlaced
	NotifyOrderCancelled
	NotifyObSnapshot
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyExchangeOpen:
		return "EXCHANGE_OPEN"
	case NotifyExchangeClosed:
		return "EXCHANGE_CLOSED"
	case NotifyTradesStarted:
		return "TRADES_STARTED"
	case NotifyTradesStopped:
		return "TRADES_STOPPED"
	case NotifyTradeExecuted:
		return "TRADE_EXECUTED"
	case NotifyOrderPlaced:
		return "ORDER_PLACED"
	case NotifyOrderCancelled:
		return "ORDER_CANCELLED"
	case NotifyObSnapshot:
		return "OB_SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// RequiredSubscription returns the SubscriptionFlags bit a trader must hold
// to receive this notification, or 0 if it bypasses subscription filtering
// entirely (session lifecycle events — spec.md §4.3/§8 property 7).
func (k NotificationKind) RequiredSubscription() SubscriptionFlags {
	switch k {
	case NotifyTradeExecuted:
		return SubTrades
	case NotifyOrderPlaced:
		return SubNewLimitOrders
	case NotifyOrderCancelled:
		return SubCancelledLimitOrders
	case NotifyObSnapshot:
		return SubObSnapshots
	default:
		return 0 // lifecycle: unconditional fan-out
	}
}

// TradeInfo describes one execution, broadcast to all subscribers regardless
// of which originator's order crossed (spec.md §4.2 "every trade also
// becomes a TradeExecuted notification").
type TradeInfo struct {
	TradedPair    TradedPair
	Price         Price
	Size          Size
	AggressorSide Side
}

// ObSnapshot is a full order book snapshot, passed by shared reference to
// every subscriber at one datetime rather than copied per recipient (spec.md
// Design Notes: "Shared snapshots").
type ObSnapshot struct {
	TradedPair TradedPair
	State      ObState
}

// ExchangeEventNotification is the broadcast payload fanned out to Replay
// and all Brokers on a state change. Exactly one of the Kind-relevant
// fields below is meaningful per Kind.
type ExchangeEventNotification struct {
	Kind       NotificationKind
	TradedPair TradedPair
	PriceStep  PriceStep            // TradesStarted
	Order      *LimitOrderEventInfo // OrderPlaced, OrderCancelled
	Trade      *TradeInfo           // TradeExecuted
	Snapshot   *ObSnapshot          // ObSnapshot; shared pointer, never copied per recipient
}

// LimitOrderEventInfo describes a single resting order's placement or
// cancellation, as broadcast in ExchangeEventNotification (spec.md §4.2).
type LimitOrderEventInfo struct {
	TradedPair TradedPair
	OrderID    OrderID
	Side       Side
	Price      Price
	Size       Size
}

// --- Exchange replies (Exchange→Broker, Exchange→Replay) ---

// ExchangeReplyKind discriminates a per-order or per-request reply from the
// Exchange. The lifecycle-failure kinds are only ever produced toward
// Replay, since only Replay issues LifecycleRequest (spec.md §4.2); Broker
// never receives them, but the type is shared across both hops rather than
// duplicated, since the translation at each hop (internal id → originator
// id) is otherwise identical.
type ExchangeReplyKind int8

const (
	ReplyOrderAccepted ExchangeReplyKind = iota
	ReplyOrderPlacementDiscarded
	ReplyOrderPartiallyExecuted
	ReplyOrderExecuted
	ReplyMarketOrderNotFullyExecuted
	ReplyOrderCancelled
	ReplyCannotCancelOrder
	ReplyNotification
	ReplyCannotOpenExchange
	ReplyCannotCloseExchange
	ReplyCannotStartTrades
	ReplyCannotStopTrades
	ReplyCannotBroadcastObState
)

func (k ExchangeReplyKind) String() string {
	switch k {
	case ReplyOrderAccepted:
		return "ORDER_ACCEPTED"
	case ReplyOrderPlacementDiscarded:
		return "ORDER_PLACEMENT_DISCARDED"
	case ReplyOrderPartiallyExecuted:
		return "ORDER_PARTIALLY_EXECUTED"
	case ReplyOrderExecuted:
		return "ORDER_EXECUTED"
	case ReplyMarketOrderNotFullyExecuted:
		return "MARKET_ORDER_NOT_FULLY_EXECUTED"
	case ReplyOrderCancelled:
		return "ORDER_CANCELLED"
	case ReplyCannotCancelOrder:
		return "CANNOT_CANCEL_ORDER"
	case ReplyNotification:
		return "NOTIFICATION"
	case ReplyCannotOpenExchange:
		return "CANNOT_OPEN_EXCHANGE"
	case ReplyCannotCloseExchange:
		return "CANNOT_CLOSE_EXCHANGE"
	case ReplyCannotStartTrades:
		return "CANNOT_START_TRADES"
	case ReplyCannotStopTrades:
		return "CANNOT_STOP_TRADES"
	case ReplyCannotBroadcastObState:
		return "CANNOT_BROADCAST_OB_STATE"
	default:
		return "UNKNOWN"
	}
}

// ExchangeReply is the reply payload the Exchange sends to the originator of
// a request (a Broker, or Replay), and that a Broker relays on to the
// originating Trader after translating the order id back to trader scope.
type ExchangeReply struct {
	Kind       ExchangeReplyKind
	TradedPair TradedPair
	OrderID    OrderID // originator-scoped id, for per-order replies
	Side       Side
	Price      Price
	Size       Size // filled size for executed/partial; remaining size for NotFullyExecuted

	PlacementReason    PlacementDiscardingReason
	CancelReason       InabilityToCancelReason
	OpenReason         InabilityToOpenExchangeReason
	CloseReason        InabilityToCloseExchangeReason
	StartReason        InabilityToStartTrades
	StopReason         InabilityToStopTrades
	BroadcastReason    InabilityToBroadcastObState
	CancellationReason CancellationReason // meaningful for ReplyOrderCancelled

	Notification *ExchangeEventNotification
}

// --- HistoryStream contract payload (spec.md §6) ---

// HistoryEntryKind discriminates a historical tick.
type HistoryEntryKind int8

const (
	HistoryPlaceLimit HistoryEntryKind = iota
	HistoryPlaceMarket
	HistoryCancel
)

// HistoryEntry is the well-formed row a HistoryStream yields in
// non-decreasing datetime order (spec.md §6): the core requires only this
// shape, regardless of which upstream CSV family (PRL or TRD) produced it —
// that fusion is the stream's own responsibility and out of scope here.
type HistoryEntry struct {
	DateTime DateTime
	Kind     HistoryEntryKind
	Size     Size
	Side     Side
	Price    Price   // meaningful for HistoryPlaceLimit
	OrderID  OrderID // reader-stable id: the order placed, or the order targeted for cancel
}

// --- Self-wakeup payloads ---

// ReplayWakeupKind discriminates a replay self-wakeup.
type ReplayWakeupKind int8

const (
	// WakeupBroadcastObState fires a scheduled out-of-band snapshot
	// broadcast (spec.md §4.4).
	WakeupBroadcastObState ReplayWakeupKind = iota
	// WakeupNextHistoryEntry advances one traded pair's history stream: it
	// both emits the due request and pulls/schedules the stream's next
	// entry, mirroring the original's Iterator::next pulling the following
	// tick immediately after returning the current one.
	WakeupNextHistoryEntry
)

// ReplayWakeup is the payload a Replay schedules for itself. On waking,
// Replay either issues the wrapped BroadcastObState lifecycle request
// (WakeupBroadcastObState) or emits the due HistoryEntry-driven request and
// reschedules itself for that stream's next entry (WakeupNextHistoryEntry).
type ReplayWakeup struct {
	Kind ReplayWakeupKind

	// ExchangeID/TradedPair/MaxLevels are meaningful for
	// WakeupBroadcastObState.
	ExchangeID ExchangeID
	TradedPair TradedPair
	MaxLevels  int

	// StreamIndex is meaningful for WakeupNextHistoryEntry: it names which
	// of Replay's history streams is due.
	StreamIndex int
}

// TraderWakeupKind discriminates a trader self-wakeup. The core mandates no
// particular policy (spec.md §4.5); this is only the payload shape the
// reference agent (internal/trader) uses for its stale-quote timeout.
type TraderWakeupKind int8

const (
	WakeupCheckStaleOrder TraderWakeupKind = iota
	WakeupRequote
)

// TraderWakeup is a trader's self-scheduled reminder.
type TraderWakeup struct {
	Kind    TraderWakeupKind
	OrderID OrderID // meaningful for WakeupCheckStaleOrder
}
