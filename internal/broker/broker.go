// Package broker implements the Broker agent: the relay between a fixed set
// of Traders and the Exchanges it is connected to. It remaps order ids into
// its own internal namespace, forwards placement/cancel requests on, and
// filters the Exchange's notification fan-out per trader subscription.
// Grounded on original_source/src/broker/concrete.rs (BasicBroker).
package broker

import (
	"fmt"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
)

// configKey scopes a trader's subscription to one (exchange, traded pair)
// pair — a trader may want different notification flags per venue and
// instrument.
type configKey struct {
	exchangeID domain.ExchangeID
	tradedPair domain.TradedPair
}

// submittedKey identifies an order in its submitting trader's own
// namespace, mirroring exchange.submittedKey one hop earlier.
type submittedKey struct {
	traderID domain.TraderID
	orderID  domain.OrderID
}

// TraderSubscription is one registration entry for RegisterTrader: the
// notification flags selecting which broadcast notifications of a specific
// exchange and traded pair a trader receives.
type TraderSubscription struct {
	ExchangeID domain.ExchangeID
	TradedPair domain.TradedPair
	Flags      domain.SubscriptionFlags
}

// Broker is one broker instance, serving a fixed roster of traders over a
// fixed set of connected exchanges (spec.md §4.3).
type Broker struct {
	id        domain.BrokerID
	currentDT domain.DateTime

	registeredExchanges map[domain.ExchangeID]bool

	// traderOrder is traderConfigs' registration order, kept alongside the
	// map so unconditional lifecycle fan-out is deterministic rather than
	// dependent on Go's randomized map iteration.
	traderOrder   []domain.TraderID
	traderConfigs map[domain.TraderID]map[configKey]domain.SubscriptionFlags

	submittedToInternal map[submittedKey]domain.OrderID
	internalToSubmitted map[domain.OrderID]submittedKey
	nextInternalOrderID domain.OrderID
}

// New creates a Broker connected to no exchanges and serving no traders.
func New(id domain.BrokerID) *Broker {
	return &Broker{
		id:                  id,
		registeredExchanges: make(map[domain.ExchangeID]bool),
		traderConfigs:       make(map[domain.TraderID]map[configKey]domain.SubscriptionFlags),
		submittedToInternal: make(map[submittedKey]domain.OrderID),
		internalToSubmitted: make(map[domain.OrderID]submittedKey),
	}
}

// ConnectExchange marks this broker as able to route orders to exchangeID.
// Must happen before any trader registers a subscription referencing it, and
// before the broker forwards any order there.
func (b *Broker) ConnectExchange(exchangeID domain.ExchangeID) {
	b.registeredExchanges[exchangeID] = true
}

// RegisterTrader gives traderID a notification subscription per (exchange,
// traded pair) entry in subs. Panics if any entry names an exchange this
// broker has not connected to — a scenario wiring bug, not a runtime
// condition (mirrors the teacher's "Broker is not connected to Exchange"
// panic).
func (b *Broker) RegisterTrader(traderID domain.TraderID, subs []TraderSubscription) {
	configs := make(map[configKey]domain.SubscriptionFlags, len(subs))
	for _, s := range subs {
		if !b.registeredExchanges[s.ExchangeID] {
			panic(fmt.Sprintf("broker %q is not connected to exchange %q", b.id, s.ExchangeID))
		}
		configs[configKey{exchangeID: s.ExchangeID, tradedPair: s.TradedPair}] = s.Flags
	}
	if _, exists := b.traderConfigs[traderID]; !exists {
		b.traderOrder = append(b.traderOrder, traderID)
	}
	b.traderConfigs[traderID] = configs
}

// Handle is this Broker's kernel.Handler.
func (b *Broker) Handle(msg *kernel.Message) []*kernel.Message {
	b.currentDT = msg.DeliveryDT

	switch msg.Kind {
	case kernel.TraderToBrokerRequest:
		return b.processTraderRequest(msg.Source.TraderID, *msg.OrderReq)
	case kernel.ExchangeToBrokerReply:
		return b.processExchangeReply(msg.Source.ExchangeID, *msg.Reply)
	default:
		panic(fmt.Sprintf("broker: unexpected message kind %v", msg.Kind))
	}
}

func (b *Broker) traderMsg(traderID domain.TraderID, reply domain.ExchangeReply) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.BrokerToTraderReply,
		DeliveryDT: b.currentDT,
		Source:     kernel.BrokerRef(b.id),
		Dest:       kernel.TraderRef(traderID),
		Reply:      &reply,
	}
}

func (b *Broker) exchangeMsg(exchangeID domain.ExchangeID, req domain.OrderRequest) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.BrokerToExchangeRequest,
		DeliveryDT: b.currentDT,
		Source:     kernel.BrokerRef(b.id),
		Dest:       kernel.ExchangeRef(exchangeID),
		OrderReq:   &req,
	}
}

func (b *Broker) processTraderRequest(traderID domain.TraderID, req domain.OrderRequest) []*kernel.Message {
	switch req.Kind {
	case domain.ReqCancelLimit:
		return b.tryForwardCancel(traderID, req)
	case domain.ReqPlaceLimit, domain.ReqPlaceMarket:
		return b.tryForwardPlacement(traderID, req)
	default:
		panic(fmt.Sprintf("broker: unknown trader order request kind %v", req.Kind))
	}
}

func (b *Broker) tryForwardCancel(traderID domain.TraderID, req domain.OrderRequest) []*kernel.Message {
	if !b.registeredExchanges[req.ExchangeID] {
		return []*kernel.Message{b.traderMsg(traderID, domain.ExchangeReply{
			Kind:         domain.ReplyCannotCancelOrder,
			TradedPair:   req.TradedPair,
			OrderID:      req.OrderID,
			CancelReason: domain.CancelBrokerNotConnectedToExchange,
		})}
	}
	internalID, ok := b.submittedToInternal[submittedKey{traderID: traderID, orderID: req.OrderID}]
	if !ok {
		return []*kernel.Message{b.traderMsg(traderID, domain.ExchangeReply{
			Kind:         domain.ReplyCannotCancelOrder,
			TradedPair:   req.TradedPair,
			OrderID:      req.OrderID,
			CancelReason: domain.CancelOrderHasNotBeenSubmitted,
		})}
	}
	forwarded := req
	forwarded.OrderID = internalID
	return []*kernel.Message{b.exchangeMsg(req.ExchangeID, forwarded)}
}

func (b *Broker) tryForwardPlacement(traderID domain.TraderID, req domain.OrderRequest) []*kernel.Message {
	if !b.registeredExchanges[req.ExchangeID] {
		return []*kernel.Message{b.traderMsg(traderID, domain.ExchangeReply{
			Kind:            domain.ReplyOrderPlacementDiscarded,
			TradedPair:      req.TradedPair,
			OrderID:         req.OrderID,
			PlacementReason: domain.PlacementBrokerNotConnectedToExchange,
		})}
	}

	internalID := b.nextInternalOrderID
	b.nextInternalOrderID++
	key := submittedKey{traderID: traderID, orderID: req.OrderID}
	b.internalToSubmitted[internalID] = key
	b.submittedToInternal[key] = internalID

	forwarded := req
	forwarded.OrderID = internalID
	return []*kernel.Message{b.exchangeMsg(req.ExchangeID, forwarded)}
}

// processExchangeReply translates an exchange's reply from internal order
// id back to the originating trader's own id, or — for a broadcast
// notification — fans it out per trader subscription.
func (b *Broker) processExchangeReply(exchangeID domain.ExchangeID, reply domain.ExchangeReply) []*kernel.Message {
	if reply.Kind == domain.ReplyNotification {
		return b.handleExchangeNotification(exchangeID, *reply.Notification)
	}

	key, ok := b.internalToSubmitted[reply.OrderID]
	if !ok {
		panic(fmt.Sprintf("broker: cannot find submitted order id for internal id %d", reply.OrderID))
	}
	translated := reply
	translated.OrderID = key.orderID
	return []*kernel.Message{b.traderMsg(key.traderID, translated)}
}

// handleExchangeNotification fans a notification out to every trader whose
// subscription for (exchangeID, notification.TradedPair) requires it.
// Lifecycle notifications (RequiredSubscription() == 0) bypass the
// subscription check entirely and go to every registered trader (spec.md
// §4.3/§8 property 7).
func (b *Broker) handleExchangeNotification(exchangeID domain.ExchangeID, notification domain.ExchangeEventNotification) []*kernel.Message {
	required := notification.Kind.RequiredSubscription()
	var out []*kernel.Message
	for _, traderID := range b.traderOrder {
		if required != 0 {
			configs := b.traderConfigs[traderID]
			flags, subscribed := configs[configKey{exchangeID: exchangeID, tradedPair: notification.TradedPair}]
			if !subscribed || !flags.Has(required) {
				continue
			}
		}
		out = append(out, b.traderMsg(traderID, domain.ExchangeReply{
			Kind:         domain.ReplyNotification,
			TradedPair:   notification.TradedPair,
			Notification: &notification,
		}))
	}
	return out
}
