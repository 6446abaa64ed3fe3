// Package exchange implements the Exchange agent: the only participant that
// owns order books. It translates between two id namespaces — the
// originator-scoped ids a Broker or Replay places orders under, and a single
// internal id space this package allocates — and fans state changes out to
// every connected Broker plus Replay. Grounded on
// original_source/src/exchange/concrete.rs (BasicExchange).
package exchange

import (
	"fmt"
	"sort"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
	"github.com/andrewsonin/simkernel/internal/orderbook"
)

// submittedKey identifies an order in an originator's own namespace: the
// traded pair plus the id they chose, which together are only unique per
// originator (two brokers may each use order id 7 for different orders).
type submittedKey struct {
	tradedPair domain.TradedPair
	orderID    domain.OrderID
}

// origin records who submitted an internally-numbered order, so a fill or
// cancellation on that internal id can be translated back to the
// originator's own id and routed to the right place. fromBroker is false
// for replay-originated orders — order ids submitted directly against the
// exchange on behalf of historical replay, with no broker in between.
type origin struct {
	submittedOrderID domain.OrderID
	brokerID         domain.BrokerID
	fromBroker       bool
}

type bookEntry struct {
	book      *orderbook.Book
	priceStep domain.PriceStep
}

// Exchange is one exchange instance: a venue owning zero or more order
// books, open/closed session state, and the id-remapping tables needed to
// route fills and cancellations back to their originator (spec.md §4.2).
type Exchange struct {
	id        domain.ExchangeID
	currentDT domain.DateTime
	isOpen    bool

	orderBooks map[domain.TradedPair]*bookEntry

	// brokerOrder is the connection order of brokerToOrderID's keys, kept
	// alongside the map so every broadcast fans out in a fixed, deterministic
	// sequence rather than Go's randomized map iteration order.
	brokerOrder     []domain.BrokerID
	brokerToOrderID map[domain.BrokerID]map[submittedKey]domain.OrderID
	replayOrderIDs  map[submittedKey]domain.OrderID

	internalToSubmitted map[domain.OrderID]origin
	nextOrderID         domain.OrderID
}

// New creates a closed Exchange with no instruments listed.
func New(id domain.ExchangeID) *Exchange {
	return &Exchange{
		id:                  id,
		orderBooks:          make(map[domain.TradedPair]*bookEntry),
		brokerToOrderID:     make(map[domain.BrokerID]map[submittedKey]domain.OrderID),
		replayOrderIDs:      make(map[submittedKey]domain.OrderID),
		internalToSubmitted: make(map[domain.OrderID]origin),
	}
}

// ConnectBroker registers a broker with this exchange, giving it its own
// order-id namespace. Must be called before the broker places any orders.
func (e *Exchange) ConnectBroker(brokerID domain.BrokerID) {
	if _, ok := e.brokerToOrderID[brokerID]; ok {
		return
	}
	e.brokerToOrderID[brokerID] = make(map[submittedKey]domain.OrderID)
	e.brokerOrder = append(e.brokerOrder, brokerID)
}

// Handle is this Exchange's kernel.Handler: it dispatches a delivered
// Message to the appropriate try* operation based on message kind and
// request payload.
func (e *Exchange) Handle(msg *kernel.Message) []*kernel.Message {
	e.currentDT = msg.DeliveryDT

	switch msg.Kind {
	case kernel.BrokerToExchangeRequest:
		brokerID := msg.Source.BrokerID
		req := msg.OrderReq
		switch req.Kind {
		case domain.ReqPlaceLimit:
			return e.tryPlaceLimitOrder(*req, false, brokerID)
		case domain.ReqPlaceMarket:
			return e.tryPlaceMarketOrder(*req, false, brokerID)
		case domain.ReqCancelLimit:
			return e.tryCancelLimitOrder(*req, false, brokerID)
		default:
			panic(fmt.Sprintf("exchange: unknown broker order request kind %v", req.Kind))
		}
	case kernel.ReplayToExchangeRequest:
		if msg.OrderReq != nil {
			req := msg.OrderReq
			switch req.Kind {
			case domain.ReqPlaceLimit:
				return e.tryPlaceLimitOrder(*req, true, "")
			case domain.ReqPlaceMarket:
				return e.tryPlaceMarketOrder(*req, true, "")
			case domain.ReqCancelLimit:
				return e.tryCancelLimitOrder(*req, true, "")
			default:
				panic(fmt.Sprintf("exchange: unknown replay order request kind %v", req.Kind))
			}
		}
		req := msg.LifecycleReq
		switch req.Kind {
		case domain.ReqExchangeOpen:
			return e.tryOpen()
		case domain.ReqExchangeClosed:
			return e.tryClose()
		case domain.ReqStartTrades:
			return e.tryStartTrades(req.TradedPair, req.PriceStep)
		case domain.ReqStopTrades:
			return e.tryStopTrades(req.TradedPair)
		case domain.ReqBroadcastObState:
			return e.tryBroadcastObState(req.TradedPair, req.MaxLevels)
		default:
			panic(fmt.Sprintf("exchange: unknown lifecycle request kind %v", req.Kind))
		}
	default:
		panic(fmt.Sprintf("exchange: unexpected message kind %v", msg.Kind))
	}
}

func (e *Exchange) replayMsg(reply domain.ExchangeReply) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.ExchangeToReplayReply,
		DeliveryDT: e.currentDT,
		Source:     kernel.ExchangeRef(e.id),
		Dest:       kernel.ReplayRef(),
		Reply:      &reply,
	}
}

func (e *Exchange) brokerMsg(brokerID domain.BrokerID, reply domain.ExchangeReply) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.ExchangeToBrokerReply,
		DeliveryDT: e.currentDT,
		Source:     kernel.ExchangeRef(e.id),
		Dest:       kernel.BrokerRef(brokerID),
		Reply:      &reply,
	}
}

// broadcastToBrokers returns one brokerMsg per connected broker, in
// connection order, all carrying the same notification reply.
func (e *Exchange) broadcastToBrokers(reply domain.ExchangeReply) []*kernel.Message {
	out := make([]*kernel.Message, 0, len(e.brokerOrder))
	for _, brokerID := range e.brokerOrder {
		out = append(out, e.brokerMsg(brokerID, reply))
	}
	return out
}

func (e *Exchange) tryOpen() []*kernel.Message {
	if e.isOpen {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:       domain.ReplyCannotOpenExchange,
			OpenReason: domain.OpenAlreadyOpen,
		})}
	}
	e.isOpen = true
	notification := domain.ExchangeEventNotification{Kind: domain.NotifyExchangeOpen}
	out := []*kernel.Message{e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &notification})}
	out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &notification})...)
	return out
}

func (e *Exchange) tryClose() []*kernel.Message {
	if !e.isOpen {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:        domain.ReplyCannotCloseExchange,
			CloseReason: domain.CloseAlreadyClosed,
		})}
	}
	e.isOpen = false

	// Cancellations go out in internal-id order, not map iteration order.
	sortedKeys := func(ids map[submittedKey]domain.OrderID) []submittedKey {
		keys := make([]submittedKey, 0, len(ids))
		for key := range ids {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return ids[keys[i]] < ids[keys[j]] })
		return keys
	}

	closedNotification := domain.ExchangeEventNotification{Kind: domain.NotifyExchangeClosed}
	var out []*kernel.Message
	for _, brokerID := range e.brokerOrder {
		out = append(out, e.brokerMsg(brokerID, domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &closedNotification}))
		for _, key := range sortedKeys(e.brokerToOrderID[brokerID]) {
			out = append(out, e.brokerMsg(brokerID, domain.ExchangeReply{
				Kind:               domain.ReplyOrderCancelled,
				TradedPair:         key.tradedPair,
				OrderID:            key.orderID,
				CancellationReason: domain.CancellationExchangeClosed,
			}))
		}
	}
	out = append(out, e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &closedNotification}))
	for _, key := range sortedKeys(e.replayOrderIDs) {
		out = append(out, e.replayMsg(domain.ExchangeReply{
			Kind:               domain.ReplyOrderCancelled,
			TradedPair:         key.tradedPair,
			OrderID:            key.orderID,
			CancellationReason: domain.CancellationExchangeClosed,
		}))
	}

	for brokerID := range e.brokerToOrderID {
		e.brokerToOrderID[brokerID] = make(map[submittedKey]domain.OrderID)
	}
	e.replayOrderIDs = make(map[submittedKey]domain.OrderID)
	e.internalToSubmitted = make(map[domain.OrderID]origin)
	for _, entry := range e.orderBooks {
		entry.book.Clear()
	}
	e.nextOrderID = 0
	return out
}

func (e *Exchange) tryStartTrades(tradedPair domain.TradedPair, priceStep domain.PriceStep) []*kernel.Message {
	if !e.isOpen {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:        domain.ReplyCannotStartTrades,
			TradedPair:  tradedPair,
			StartReason: domain.StartExchangeClosed,
		})}
	}
	if _, exists := e.orderBooks[tradedPair]; exists {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:        domain.ReplyCannotStartTrades,
			TradedPair:  tradedPair,
			StartReason: domain.StartAlreadyStarted,
		})}
	}
	e.orderBooks[tradedPair] = &bookEntry{book: orderbook.New(), priceStep: priceStep}

	notification := domain.ExchangeEventNotification{Kind: domain.NotifyTradesStarted, TradedPair: tradedPair, PriceStep: priceStep}
	out := []*kernel.Message{e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &notification})}
	out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &notification})...)
	return out
}

func (e *Exchange) tryStopTrades(tradedPair domain.TradedPair) []*kernel.Message {
	if !e.isOpen {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:       domain.ReplyCannotStopTrades,
			TradedPair: tradedPair,
		})}
	}
	entry, exists := e.orderBooks[tradedPair]
	if !exists {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:       domain.ReplyCannotStopTrades,
			TradedPair: tradedPair,
		})}
	}
	ids := entry.book.GetAllIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	delete(e.orderBooks, tradedPair)

	var out []*kernel.Message
	for _, internalID := range ids {
		o, ok := e.internalToSubmitted[internalID]
		if !ok {
			panic(fmt.Sprintf("exchange: cannot find limit order with internal ID %d", internalID))
		}
		reply := domain.ExchangeReply{
			Kind:               domain.ReplyOrderCancelled,
			TradedPair:         tradedPair,
			OrderID:            o.submittedOrderID,
			CancellationReason: domain.CancellationTradesStopped,
		}
		if o.fromBroker {
			out = append(out, e.brokerMsg(o.brokerID, reply))
		} else {
			out = append(out, e.replayMsg(reply))
		}
	}

	stoppedNotification := domain.ExchangeEventNotification{Kind: domain.NotifyTradesStopped, TradedPair: tradedPair}
	out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &stoppedNotification})...)
	out = append(out, e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &stoppedNotification}))
	return out
}

func (e *Exchange) tryBroadcastObState(tradedPair domain.TradedPair, maxLevels int) []*kernel.Message {
	if !e.isOpen {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:            domain.ReplyCannotBroadcastObState,
			TradedPair:      tradedPair,
			BroadcastReason: domain.BroadcastExchangeClosed,
		})}
	}
	entry, exists := e.orderBooks[tradedPair]
	if !exists {
		return []*kernel.Message{e.replayMsg(domain.ExchangeReply{
			Kind:            domain.ReplyCannotBroadcastObState,
			TradedPair:      tradedPair,
			BroadcastReason: domain.BroadcastNoSuchTradedPair,
		})}
	}

	// A single shared snapshot pointer is reused across every enqueued
	// message instead of copied per recipient (SPEC_FULL.md Design Notes).
	snapshot := &domain.ObSnapshot{TradedPair: tradedPair, State: entry.book.GetObState(maxLevels)}
	notification := domain.ExchangeEventNotification{Kind: domain.NotifyObSnapshot, TradedPair: tradedPair, Snapshot: snapshot}

	out := []*kernel.Message{e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &notification})}
	out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &notification})...)
	return out
}

func (e *Exchange) tryCancelLimitOrder(req domain.OrderRequest, isReplay bool, brokerID domain.BrokerID) []*kernel.Message {
	originReply := func(reason domain.InabilityToCancelReason) []*kernel.Message {
		reply := domain.ExchangeReply{Kind: domain.ReplyCannotCancelOrder, TradedPair: req.TradedPair, OrderID: req.OrderID, CancelReason: reason}
		if isReplay {
			return []*kernel.Message{e.replayMsg(reply)}
		}
		return []*kernel.Message{e.brokerMsg(brokerID, reply)}
	}

	if !e.isOpen {
		return originReply(domain.CancelExchangeClosed)
	}

	key := submittedKey{tradedPair: req.TradedPair, orderID: req.OrderID}
	var internalID domain.OrderID
	var found bool
	if isReplay {
		internalID, found = e.replayOrderIDs[key]
	} else {
		orderIDMap, connected := e.brokerToOrderID[brokerID]
		if !connected {
			reply := domain.ExchangeReply{Kind: domain.ReplyCannotCancelOrder, TradedPair: req.TradedPair, OrderID: req.OrderID, CancelReason: domain.CancelBrokerNotConnectedToExchange}
			return []*kernel.Message{e.brokerMsg(brokerID, reply)}
		}
		internalID, found = orderIDMap[key]
	}
	if !found {
		return originReply(domain.CancelOrderHasNotBeenSubmitted)
	}

	entry, exists := e.orderBooks[req.TradedPair]
	if !exists {
		return originReply(domain.CancelNoSuchTradedPair)
	}

	ok, side, price, remaining, _, _ := entry.book.CancelLimitOrder(internalID)
	if !ok {
		return originReply(domain.CancelOrderAlreadyExecuted)
	}
	delete(e.internalToSubmitted, internalID)

	cancelledReply := domain.ExchangeReply{Kind: domain.ReplyOrderCancelled, TradedPair: req.TradedPair, OrderID: req.OrderID, CancellationReason: domain.CancellationBrokerRequested}
	cancelNotification := domain.ExchangeEventNotification{
		Kind:       domain.NotifyOrderCancelled,
		TradedPair: req.TradedPair,
		Order:      &domain.LimitOrderEventInfo{TradedPair: req.TradedPair, OrderID: req.OrderID, Side: side, Price: price, Size: remaining},
	}

	var out []*kernel.Message
	if isReplay {
		out = append(out, e.replayMsg(cancelledReply))
	} else {
		out = append(out, e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: req.TradedPair, Notification: &cancelNotification}))
		out = append(out, e.brokerMsg(brokerID, cancelledReply))
	}
	out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: req.TradedPair, Notification: &cancelNotification})...)
	return out
}

func (e *Exchange) tryPlaceLimitOrder(req domain.OrderRequest, isReplay bool, brokerID domain.BrokerID) []*kernel.Message {
	discard := func(reason domain.PlacementDiscardingReason) []*kernel.Message {
		reply := domain.ExchangeReply{Kind: domain.ReplyOrderPlacementDiscarded, TradedPair: req.TradedPair, OrderID: req.OrderID, PlacementReason: reason}
		if isReplay {
			return []*kernel.Message{e.replayMsg(reply)}
		}
		return []*kernel.Message{e.brokerMsg(brokerID, reply)}
	}

	if !e.isOpen {
		return discard(domain.PlacementExchangeClosed)
	}
	if req.Size == 0 {
		return discard(domain.PlacementZeroSize)
	}

	key := submittedKey{tradedPair: req.TradedPair, orderID: req.OrderID}
	var orderIDMap map[submittedKey]domain.OrderID
	if isReplay {
		orderIDMap = e.replayOrderIDs
	} else {
		var connected bool
		orderIDMap, connected = e.brokerToOrderID[brokerID]
		if !connected {
			reply := domain.ExchangeReply{Kind: domain.ReplyOrderPlacementDiscarded, TradedPair: req.TradedPair, OrderID: req.OrderID, PlacementReason: domain.PlacementBrokerNotConnectedToExchange}
			return []*kernel.Message{e.brokerMsg(brokerID, reply)}
		}
	}
	if _, exists := orderIDMap[key]; exists {
		return discard(domain.PlacementOrderWithSuchIDAlreadySubmitted)
	}

	entry, exists := e.orderBooks[req.TradedPair]
	if !exists {
		return discard(domain.PlacementNoSuchTradedPair)
	}

	internalID := e.nextOrderID
	e.nextOrderID++
	e.internalToSubmitted[internalID] = origin{submittedOrderID: req.OrderID, brokerID: brokerID, fromBroker: !isReplay}
	orderIDMap[key] = internalID

	events := entry.book.InsertLimitOrder(internalID, req.Side, req.Price, req.Size, req.IsDummy, e.currentDT)

	var out []*kernel.Message
	remaining := req.Size
	for _, ev := range events {
		out = e.interpretObEvent(out, req.IsDummy, isReplay, req.Side, &remaining, ev, req.TradedPair, req.OrderID, brokerID)
	}

	accepted := domain.ExchangeReply{Kind: domain.ReplyOrderAccepted, TradedPair: req.TradedPair, OrderID: req.OrderID}
	if isReplay {
		out = append(out, e.replayMsg(accepted))
	} else {
		out = append(out, e.brokerMsg(brokerID, accepted))
	}
	return out
}

func (e *Exchange) tryPlaceMarketOrder(req domain.OrderRequest, isReplay bool, brokerID domain.BrokerID) []*kernel.Message {
	discard := func(reason domain.PlacementDiscardingReason) []*kernel.Message {
		reply := domain.ExchangeReply{Kind: domain.ReplyOrderPlacementDiscarded, TradedPair: req.TradedPair, OrderID: req.OrderID, PlacementReason: reason}
		if isReplay {
			return []*kernel.Message{e.replayMsg(reply)}
		}
		return []*kernel.Message{e.brokerMsg(brokerID, reply)}
	}

	if !e.isOpen {
		return discard(domain.PlacementExchangeClosed)
	}
	if req.Size == 0 {
		return discard(domain.PlacementZeroSize)
	}

	key := submittedKey{tradedPair: req.TradedPair, orderID: req.OrderID}
	var orderIDMap map[submittedKey]domain.OrderID
	if isReplay {
		orderIDMap = e.replayOrderIDs
	} else {
		var connected bool
		orderIDMap, connected = e.brokerToOrderID[brokerID]
		if !connected {
			reply := domain.ExchangeReply{Kind: domain.ReplyOrderPlacementDiscarded, TradedPair: req.TradedPair, OrderID: req.OrderID, PlacementReason: domain.PlacementBrokerNotConnectedToExchange}
			return []*kernel.Message{e.brokerMsg(brokerID, reply)}
		}
	}
	if _, exists := orderIDMap[key]; exists {
		return discard(domain.PlacementOrderWithSuchIDAlreadySubmitted)
	}

	entry, exists := e.orderBooks[req.TradedPair]
	if !exists {
		return discard(domain.PlacementNoSuchTradedPair)
	}

	internalID := e.nextOrderID
	e.nextOrderID++
	e.internalToSubmitted[internalID] = origin{submittedOrderID: req.OrderID, brokerID: brokerID, fromBroker: !isReplay}
	orderIDMap[key] = internalID

	events := entry.book.InsertMarketOrder(req.Side, req.Size, req.IsDummy)

	var out []*kernel.Message
	remaining := req.Size
	for _, ev := range events {
		out = e.interpretObEvent(out, req.IsDummy, isReplay, req.Side, &remaining, ev, req.TradedPair, req.OrderID, brokerID)
	}

	if remaining != 0 {
		notFullyExecuted := domain.ExchangeReply{
			Kind:       domain.ReplyMarketOrderNotFullyExecuted,
			TradedPair: req.TradedPair,
			OrderID:    req.OrderID,
			Size:       remaining,
		}
		if isReplay {
			out = append(out, e.replayMsg(notFullyExecuted))
		} else {
			out = append(out, e.brokerMsg(brokerID, notFullyExecuted))
		}
	}
	return out
}

// interpretObEvent translates one OrderBookEvent into the replies and
// notifications it produces, appending them to out and returning the
// extended slice. Grounded on concrete.rs's interpret_ob_event: an Old*
// event always resolves through internalToSubmitted since it names a
// previously-resting order; a New* event names the incoming order itself,
// whose submitted id the caller already knows.
func (e *Exchange) interpretObEvent(
	out []*kernel.Message,
	isDummy, isReplay bool,
	aggressorSide domain.Side,
	remainingSize *domain.Size,
	event domain.OrderBookEvent,
	tradedPair domain.TradedPair,
	submittedOrderID domain.OrderID,
	brokerID domain.BrokerID,
) []*kernel.Message {
	switch event.Kind {
	case domain.OldOrderExecuted, domain.OldOrderPartiallyExecuted:
		o, ok := e.internalToSubmitted[event.OrderID]
		if !ok {
			panic(fmt.Sprintf("exchange: cannot find limit order with internal ID %d", event.OrderID))
		}
		kind := domain.ReplyOrderExecuted
		if event.Kind == domain.OldOrderPartiallyExecuted {
			kind = domain.ReplyOrderPartiallyExecuted
		}
		reply := domain.ExchangeReply{Kind: kind, TradedPair: tradedPair, OrderID: o.submittedOrderID, Price: event.Price, Size: event.Size}
		if o.fromBroker {
			out = append(out, e.brokerMsg(o.brokerID, reply))
		} else {
			out = append(out, e.replayMsg(reply))
		}

	case domain.NewOrderExecuted, domain.NewOrderPartiallyExecuted:
		*remainingSize -= event.Size
		kind := domain.ReplyOrderExecuted
		if event.Kind == domain.NewOrderPartiallyExecuted {
			kind = domain.ReplyOrderPartiallyExecuted
		}
		reply := domain.ExchangeReply{Kind: kind, TradedPair: tradedPair, OrderID: submittedOrderID, Price: event.Price, Size: event.Size}
		var selfMsg *kernel.Message
		if isReplay {
			selfMsg = e.replayMsg(reply)
		} else {
			selfMsg = e.brokerMsg(brokerID, reply)
		}
		if isDummy {
			out = append(out, selfMsg)
			return out
		}

		tradeNotification := domain.ExchangeEventNotification{
			Kind:       domain.NotifyTradeExecuted,
			TradedPair: tradedPair,
			Trade:      &domain.TradeInfo{TradedPair: tradedPair, Price: event.Price, Size: event.Size, AggressorSide: aggressorSide},
		}
		out = append(out, selfMsg)
		if !isReplay {
			out = append(out, e.replayMsg(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &tradeNotification}))
		}
		out = append(out, e.broadcastToBrokers(domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: tradedPair, Notification: &tradeNotification})...)
	}
	return out
}
