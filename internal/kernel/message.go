package kernel

import "github.com/andrewsonin/simkernel/internal/domain"

// AgentKind discriminates which of the four agent roles a Message endpoint
// refers to.
type AgentKind int8

const (
	AgentExchange AgentKind = iota
	AgentBroker
	AgentTrader
	AgentReplay
)

func (k AgentKind) String() string {
	switch k {
	case AgentExchange:
		return "EXCHANGE"
	case AgentBroker:
		return "BROKER"
	case AgentTrader:
		return "TRADER"
	case AgentReplay:
		return "REPLAY"
	default:
		return "UNKNOWN"
	}
}

// AgentRef identifies one endpoint of a Message: its kind plus whichever id
// field is meaningful for that kind. A single struct rather than an
// interface, matching the rest of this package's tagged-union-via-struct
// idiom and avoiding dynamic dispatch on the hot delivery path.
type AgentRef struct {
	Kind       AgentKind
	ExchangeID domain.ExchangeID
	BrokerID   domain.BrokerID
	TraderID   domain.TraderID
}

func ExchangeRef(id domain.ExchangeID) AgentRef { return AgentRef{Kind: AgentExchange, ExchangeID: id} }
func BrokerRef(id domain.BrokerID) AgentRef      { return AgentRef{Kind: AgentBroker, BrokerID: id} }
func TraderRef(id domain.TraderID) AgentRef      { return AgentRef{Kind: AgentTrader, TraderID: id} }
func ReplayRef() AgentRef                        { return AgentRef{Kind: AgentReplay} }

// MessageKind enumerates the twelve directed channel kinds the kernel
// routes (spec.md §3): six request/reply pairs across the three hops
// (Replay↔Exchange, Broker↔Exchange, Trader↔Broker) plus four self-wakeup
// kinds. ReplayToBrokerRequest and BrokerToReplayReply are declared for
// tagged-union completeness but never constructed by any operation in this
// core — Replay only ever talks to Exchange directly, and Broker only ever
// talks to Trader/Exchange (see SPEC_FULL.md §4.6, Open Question 2).
type MessageKind int8

const (
	ReplayToExchangeRequest MessageKind = iota
	ExchangeToReplayReply
	BrokerToExchangeRequest
	ExchangeToBrokerReply
	TraderToBrokerRequest
	BrokerToTraderReply
	ReplayToBrokerRequest
	BrokerToReplayReply
	TraderSelfWakeup
	ReplaySelfWakeup
	BrokerSelfWakeup
	ExchangeSelfWakeup
)

func (k MessageKind) String() string {
	switch k {
	case ReplayToExchangeRequest:
		return "REPLAY_TO_EXCHANGE_REQUEST"
	case ExchangeToReplayReply:
		return "EXCHANGE_TO_REPLAY_REPLY"
	case BrokerToExchangeRequest:
		return "BROKER_TO_EXCHANGE_REQUEST"
	case ExchangeToBrokerReply:
		return "EXCHANGE_TO_BROKER_REPLY"
	case TraderToBrokerRequest:
		return "TRADER_TO_BROKER_REQUEST"
	case BrokerToTraderReply:
		return "BROKER_TO_TRADER_REPLY"
	case ReplayToBrokerRequest:
		return "REPLAY_TO_BROKER_REQUEST"
	case BrokerToReplayReply:
		return "BROKER_TO_REPLAY_REPLY"
	case TraderSelfWakeup:
		return "TRADER_SELF_WAKEUP"
	case ReplaySelfWakeup:
		return "REPLAY_SELF_WAKEUP"
	case BrokerSelfWakeup:
		return "BROKER_SELF_WAKEUP"
	case ExchangeSelfWakeup:
		return "EXCHANGE_SELF_WAKEUP"
	default:
		return "UNKNOWN"
	}
}

// Message is the single tagged-union type the kernel schedules and
// delivers. Exactly one of the payload fields below is populated, selected
// by Kind — the same "discriminant plus payload" idiom used throughout
// internal/domain, generalized here to the message-passing layer so that
// Handler never needs a type switch on an interface{} payload.
type Message struct {
	Kind       MessageKind
	DeliveryDT domain.DateTime
	SeqNo      uint64
	Source     AgentRef
	Dest       AgentRef

	OrderReq     *domain.OrderRequest
	LifecycleReq *domain.LifecycleRequest
	Reply        *domain.ExchangeReply
	Notification *domain.ExchangeEventNotification
	ReplayWakeup *domain.ReplayWakeup
	TraderWakeup *domain.TraderWakeup
}
