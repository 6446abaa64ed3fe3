// Package trader implements the reference Trader agent: a simple
// post-at-best market maker that requotes on a timer and cancels stale
// orders, generalized from the teacher's signal-driven strategy to this
// core's notification/reply contract (spec.md §4.5 names no required
// policy — only the wakeup/reply shapes a trader may use).
package trader

import (
	"fmt"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
	"github.com/andrewsonin/simkernel/internal/latency"
)

// Strategy parameterizes the reference Agent. Grounded on the teacher's
// internal/trader/agent.go Strategy (ReQuoteIntervalNs, CancelTimeoutNs,
// TargetQty), dropping CrossThreshold since this core has no external
// signal feed to cross on — the reference agent only posts and maintains
// resting quotes.
type Strategy struct {
	RequoteIntervalNs int64
	CancelTimeoutNs   int64
	TargetSize        domain.Size
}

// DefaultStrategy mirrors the teacher's NewStrategy defaults.
func DefaultStrategy() Strategy {
	return Strategy{
		RequoteIntervalNs: latency.MsToNs(100),
		CancelTimeoutNs:   latency.MsToNs(500),
		TargetSize:        5,
	}
}

type restingOrder struct {
	side      domain.Side
	remaining domain.Size
	placedAt  domain.DateTime
}

// Agent is the reference Trader: it posts a bid and an ask at the best
// available price on its traded pair once it has seen a snapshot, cancels
// any quote resting longer than Strategy.CancelTimeoutNs, and requotes on
// its own RequoteIntervalNs timer.
type Agent struct {
	id         domain.TraderID
	brokerID   domain.BrokerID
	exchangeID domain.ExchangeID
	tradedPair domain.TradedPair
	strategy   Strategy

	currentDT domain.DateTime
	nextID    domain.OrderID

	bestBid, bestAsk domain.Price
	haveBook         bool

	// orderOrder is activeOrders' insertion order, kept for the same
	// deterministic-iteration reason as exchange.go's brokerOrder.
	orderOrder   []domain.OrderID
	activeOrders map[domain.OrderID]restingOrder
}

// NewAgent creates an Agent quoting tradedPair via brokerID against
// exchangeID, with idBase as the first order id it allocates (so multiple
// agents sharing a broker don't collide).
func NewAgent(id domain.TraderID, brokerID domain.BrokerID, exchangeID domain.ExchangeID, tradedPair domain.TradedPair, strategy Strategy, idBase domain.OrderID) *Agent {
	return &Agent{
		id:           id,
		brokerID:     brokerID,
		exchangeID:   exchangeID,
		tradedPair:   tradedPair,
		strategy:     strategy,
		nextID:       idBase,
		activeOrders: make(map[domain.OrderID]restingOrder),
	}
}

func (a *Agent) allocateID() domain.OrderID {
	id := a.nextID
	a.nextID++
	return id
}

// Handle is this Agent's kernel.Handler.
func (a *Agent) Handle(msg *kernel.Message) []*kernel.Message {
	a.currentDT = msg.DeliveryDT

	switch msg.Kind {
	case kernel.BrokerToTraderReply:
		return a.handleReply(*msg.Reply)
	case kernel.TraderSelfWakeup:
		return a.handleWakeup(*msg.TraderWakeup)
	default:
		panic(fmt.Sprintf("trader: unexpected message kind %v", msg.Kind))
	}
}

func (a *Agent) requestMsg(req domain.OrderRequest) *kernel.Message {
	req.ExchangeID = a.exchangeID
	return &kernel.Message{
		Kind:       kernel.TraderToBrokerRequest,
		DeliveryDT: a.currentDT,
		Source:     kernel.TraderRef(a.id),
		Dest:       kernel.BrokerRef(a.brokerID),
		OrderReq:   &req,
	}
}

func (a *Agent) wakeupMsg(dt domain.DateTime, w domain.TraderWakeup) *kernel.Message {
	ref := kernel.TraderRef(a.id)
	return &kernel.Message{
		Kind:         kernel.TraderSelfWakeup,
		DeliveryDT:   dt,
		Source:       ref,
		Dest:         ref,
		TraderWakeup: &w,
	}
}

func (a *Agent) handleReply(reply domain.ExchangeReply) []*kernel.Message {
	switch reply.Kind {
	case domain.ReplyNotification:
		return a.handleNotification(*reply.Notification)
	case domain.ReplyOrderAccepted:
		return nil
	case domain.ReplyOrderPlacementDiscarded:
		return nil
	case domain.ReplyOrderPartiallyExecuted:
		if o, ok := a.activeOrders[reply.OrderID]; ok {
			o.remaining -= reply.Size
			a.activeOrders[reply.OrderID] = o
		}
		return nil
	case domain.ReplyOrderExecuted, domain.ReplyOrderCancelled:
		a.forgetOrder(reply.OrderID)
		return nil
	case domain.ReplyMarketOrderNotFullyExecuted, domain.ReplyCannotCancelOrder:
		return nil
	default:
		return nil
	}
}

func (a *Agent) forgetOrder(id domain.OrderID) {
	if _, ok := a.activeOrders[id]; !ok {
		return
	}
	delete(a.activeOrders, id)
	for i, existing := range a.orderOrder {
		if existing == id {
			a.orderOrder = append(a.orderOrder[:i], a.orderOrder[i+1:]...)
			break
		}
	}
}

func (a *Agent) handleNotification(n domain.ExchangeEventNotification) []*kernel.Message {
	if n.Kind != domain.NotifyObSnapshot || n.Snapshot == nil {
		return nil
	}
	first := !a.haveBook
	a.haveBook = true
	a.bestBid, a.bestAsk = 0, 0
	if len(n.Snapshot.State.Bids) > 0 {
		a.bestBid = n.Snapshot.State.Bids[0].Price
	}
	if len(n.Snapshot.State.Asks) > 0 {
		a.bestAsk = n.Snapshot.State.Asks[0].Price
	}
	if !first {
		return nil
	}
	out := a.requote()
	out = append(out, a.wakeupMsg(a.currentDT+domain.DateTime(a.strategy.RequoteIntervalNs), domain.TraderWakeup{Kind: domain.WakeupRequote}))
	return out
}

func (a *Agent) handleWakeup(w domain.TraderWakeup) []*kernel.Message {
	switch w.Kind {
	case domain.WakeupRequote:
		out := a.cancelStale()
		out = append(out, a.requote()...)
		out = append(out, a.wakeupMsg(a.currentDT+domain.DateTime(a.strategy.RequoteIntervalNs), domain.TraderWakeup{Kind: domain.WakeupRequote}))
		return out
	case domain.WakeupCheckStaleOrder:
		return a.cancelStale()
	default:
		panic(fmt.Sprintf("trader: unknown wakeup kind %v", w.Kind))
	}
}

func (a *Agent) cancelStale() []*kernel.Message {
	var out []*kernel.Message
	for _, id := range append([]domain.OrderID(nil), a.orderOrder...) {
		o := a.activeOrders[id]
		if a.currentDT-o.placedAt <= domain.DateTime(a.strategy.CancelTimeoutNs) {
			continue
		}
		out = append(out, a.requestMsg(domain.OrderRequest{
			Kind:       domain.ReqCancelLimit,
			TradedPair: a.tradedPair,
			OrderID:    id,
		}))
	}
	return out
}

// requote posts a fresh bid/ask at the current best price on any side it
// doesn't already hold a live order on.
func (a *Agent) requote() []*kernel.Message {
	if !a.haveBook {
		return nil
	}
	var out []*kernel.Message
	hasBid, hasAsk := false, false
	for _, id := range a.orderOrder {
		switch a.activeOrders[id].side {
		case domain.Buy:
			hasBid = true
		case domain.Sell:
			hasAsk = true
		}
	}
	if !hasBid && a.bestBid > 0 {
		out = append(out, a.place(domain.Buy, a.bestBid))
	}
	if !hasAsk && a.bestAsk > 0 {
		out = append(out, a.place(domain.Sell, a.bestAsk))
	}
	return out
}

func (a *Agent) place(side domain.Side, price domain.Price) *kernel.Message {
	id := a.allocateID()
	a.activeOrders[id] = restingOrder{side: side, remaining: a.strategy.TargetSize, placedAt: a.currentDT}
	a.orderOrder = append(a.orderOrder, id)
	return a.requestMsg(domain.OrderRequest{
		Kind:       domain.ReqPlaceLimit,
		TradedPair: a.tradedPair,
		OrderID:    id,
		Side:       side,
		Price:      price,
		Size:       a.strategy.TargetSize,
	})
}
