// Package replay implements the Replay agent: the sole source of exchange
// lifecycle events (open/close, start/stop trades) and historical order
// flow, and the scheduler of out-of-band order book snapshot broadcasts.
// Grounded on spec.md §4.4 and
// original_source/src/replay/concrete.rs (OneTickReplay).
package replay

import (
	"fmt"
	"math/rand"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
	"github.com/rs/zerolog/log"
)

// ExchangeSession schedules one exchange's open and close, in absolute
// datetime.
type ExchangeSession struct {
	ExchangeID domain.ExchangeID
	OpenDT     domain.DateTime
	CloseDT    domain.DateTime
}

// TradedPairLifetime schedules one traded pair's trading session at one
// exchange. StopDT is nil if the pair trades for the rest of the session
// once started.
type TradedPairLifetime struct {
	ExchangeID domain.ExchangeID
	TradedPair domain.TradedPair
	PriceStep  domain.PriceStep
	StartDT    domain.DateTime
	StopDT     *domain.DateTime
}

// PairStream binds a HistoryStream to the venue and instrument its entries
// are destined for.
type PairStream struct {
	ExchangeID domain.ExchangeID
	TradedPair domain.TradedPair
	Stream     HistoryStream
}

// ObSnapshotDelayScheduler decides when the next out-of-band snapshot
// broadcast is due for a traded pair, or that none is (ok=false). Grounded
// on the original's GetNextObSnapshotDelay trait.
type ObSnapshotDelayScheduler interface {
	NextDelay(exchangeID domain.ExchangeID, tradedPair domain.TradedPair, rng *rand.Rand, currentDT domain.DateTime) (delayNs int64, ok bool)
}

type pairKey struct {
	exchangeID domain.ExchangeID
	tradedPair domain.TradedPair
}

// Replay is the single Replay agent driving one simulation run.
type Replay struct {
	currentDT domain.DateTime
	rng       *rand.Rand
	obDelay   ObSnapshotDelayScheduler
	maxLevels int

	streams      []PairStream
	pendingEntry map[int]domain.HistoryEntry

	activePairOrder []pairKey
	activePairs     map[pairKey]bool
}

// New creates a Replay. maxLevels bounds the depth of every scheduled
// snapshot broadcast.
func New(obDelay ObSnapshotDelayScheduler, rng *rand.Rand, streams []PairStream, maxLevels int) *Replay {
	return &Replay{
		obDelay:      obDelay,
		rng:          rng,
		maxLevels:    maxLevels,
		streams:      streams,
		pendingEntry: make(map[int]domain.HistoryEntry),
		activePairs:  make(map[pairKey]bool),
	}
}

// Seed produces the initial batch of messages to schedule into the kernel
// before a run starts: every exchange's open/close, every traded pair's
// start/stop, and one self-wakeup per history stream for its first entry.
func (r *Replay) Seed(sessions []ExchangeSession, pairs []TradedPairLifetime) []*kernel.Message {
	var out []*kernel.Message
	for _, s := range sessions {
		out = append(out,
			r.lifecycleMsg(s.ExchangeID, s.OpenDT, domain.LifecycleRequest{Kind: domain.ReqExchangeOpen}),
			r.lifecycleMsg(s.ExchangeID, s.CloseDT, domain.LifecycleRequest{Kind: domain.ReqExchangeClosed}),
		)
	}
	for _, p := range pairs {
		out = append(out, r.lifecycleMsg(p.ExchangeID, p.StartDT, domain.LifecycleRequest{
			Kind: domain.ReqStartTrades, TradedPair: p.TradedPair, PriceStep: p.PriceStep,
		}))
		if p.StopDT != nil {
			out = append(out, r.lifecycleMsg(p.ExchangeID, *p.StopDT, domain.LifecycleRequest{
				Kind: domain.ReqStopTrades, TradedPair: p.TradedPair,
			}))
		}
	}
	for i, stream := range r.streams {
		entry, ok := stream.Stream.Next()
		if !ok {
			continue
		}
		r.pendingEntry[i] = entry
		out = append(out, r.wakeupMsg(entry.DateTime, domain.ReplayWakeup{Kind: domain.WakeupNextHistoryEntry, StreamIndex: i}))
	}
	return out
}

// Handle is this Replay's kernel.Handler.
func (r *Replay) Handle(msg *kernel.Message) []*kernel.Message {
	r.currentDT = msg.DeliveryDT

	switch msg.Kind {
	case kernel.ExchangeToReplayReply:
		return r.processExchangeReply(msg.Source.ExchangeID, *msg.Reply)
	case kernel.ReplaySelfWakeup:
		return r.processWakeup(*msg.ReplayWakeup)
	default:
		panic(fmt.Sprintf("replay: unexpected message kind %v", msg.Kind))
	}
}

func (r *Replay) lifecycleMsg(exchangeID domain.ExchangeID, dt domain.DateTime, req domain.LifecycleRequest) *kernel.Message {
	return &kernel.Message{
		Kind:         kernel.ReplayToExchangeRequest,
		DeliveryDT:   dt,
		Source:       kernel.ReplayRef(),
		Dest:         kernel.ExchangeRef(exchangeID),
		LifecycleReq: &req,
	}
}

func (r *Replay) orderMsg(exchangeID domain.ExchangeID, req domain.OrderRequest) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.ReplayToExchangeRequest,
		DeliveryDT: r.currentDT,
		Source:     kernel.ReplayRef(),
		Dest:       kernel.ExchangeRef(exchangeID),
		OrderReq:   &req,
	}
}

func (r *Replay) wakeupMsg(dt domain.DateTime, w domain.ReplayWakeup) *kernel.Message {
	return &kernel.Message{
		Kind:         kernel.ReplaySelfWakeup,
		DeliveryDT:   dt,
		Source:       kernel.ReplayRef(),
		Dest:         kernel.ReplayRef(),
		ReplayWakeup: &w,
	}
}

func (r *Replay) processWakeup(w domain.ReplayWakeup) []*kernel.Message {
	switch w.Kind {
	case domain.WakeupBroadcastObState:
		req := domain.LifecycleRequest{Kind: domain.ReqBroadcastObState, TradedPair: w.TradedPair, MaxLevels: w.MaxLevels}
		return []*kernel.Message{r.lifecycleMsg(w.ExchangeID, r.currentDT, req)}
	case domain.WakeupNextHistoryEntry:
		return r.handleNextHistoryEntry(w.StreamIndex)
	default:
		panic(fmt.Sprintf("replay: unknown wakeup kind %v", w.Kind))
	}
}

// handleNextHistoryEntry emits the due entry's request and, if the stream
// has more, pulls the following entry now and schedules its wakeup — the
// original's Iterator::next pulls the next tick immediately after
// returning the current one, not after any downstream reply.
func (r *Replay) handleNextHistoryEntry(streamIndex int) []*kernel.Message {
	entry, ok := r.pendingEntry[streamIndex]
	if !ok {
		// The stream was cleared (TradesStopped) after this wakeup was
		// already scheduled; treat as a stale, harmless no-op.
		return nil
	}
	delete(r.pendingEntry, streamIndex)
	stream := r.streams[streamIndex]

	req := domain.OrderRequest{TradedPair: stream.TradedPair, OrderID: entry.OrderID, Side: entry.Side, Price: entry.Price, Size: entry.Size}
	switch entry.Kind {
	case domain.HistoryPlaceLimit:
		req.Kind = domain.ReqPlaceLimit
	case domain.HistoryPlaceMarket:
		req.Kind = domain.ReqPlaceMarket
	case domain.HistoryCancel:
		req.Kind = domain.ReqCancelLimit
	default:
		panic(fmt.Sprintf("replay: unknown history entry kind %v", entry.Kind))
	}
	out := []*kernel.Message{r.orderMsg(stream.ExchangeID, req)}

	if next, ok := stream.Stream.Next(); ok {
		r.pendingEntry[streamIndex] = next
		out = append(out, r.wakeupMsg(next.DateTime, domain.ReplayWakeup{Kind: domain.WakeupNextHistoryEntry, StreamIndex: streamIndex}))
	}
	return out
}

func (r *Replay) scheduleObSnapshot(exchangeID domain.ExchangeID, tradedPair domain.TradedPair) []*kernel.Message {
	delayNs, ok := r.obDelay.NextDelay(exchangeID, tradedPair, r.rng, r.currentDT)
	if !ok {
		return nil
	}
	wakeup := domain.ReplayWakeup{Kind: domain.WakeupBroadcastObState, ExchangeID: exchangeID, TradedPair: tradedPair, MaxLevels: r.maxLevels}
	return []*kernel.Message{r.wakeupMsg(r.currentDT+domain.DateTime(delayNs), wakeup)}
}

// processExchangeReply routes a reply the Exchange sent in response to a
// Replay-issued request: lifecycle notifications drive snapshot scheduling
// and session bookkeeping, CannotCancelOrder is logged and otherwise
// ignored (historical data occasionally targets an order the book no
// longer holds), CannotBroadcastObState is ignored, and every other failure
// reply (a rejected placement or session open/close/start/stop) is a
// Replay-originated request being rejected — a data or wiring bug, so it is
// fatal.
func (r *Replay) processExchangeReply(exchangeID domain.ExchangeID, reply domain.ExchangeReply) []*kernel.Message {
	switch reply.Kind {
	case domain.ReplyNotification:
		return r.handleNotification(exchangeID, *reply.Notification)
	case domain.ReplyCannotCancelOrder:
		log.Warn().
			Str("exchange", string(exchangeID)).
			Uint64("order_id", uint64(reply.OrderID)).
			Str("reason", reply.CancelReason.String()).
			Msg("replay: cannot cancel order from historical data")
		return nil
	case domain.ReplyOrderPlacementDiscarded, domain.ReplyCannotOpenExchange, domain.ReplyCannotStartTrades,
		domain.ReplyCannotCloseExchange, domain.ReplyCannotStopTrades:
		panic(fmt.Sprintf("replay: exchange %q rejected a replay-issued request: %+v", exchangeID, reply))
	default:
		return nil
	}
}

func (r *Replay) handleNotification(exchangeID domain.ExchangeID, n domain.ExchangeEventNotification) []*kernel.Message {
	switch n.Kind {
	case domain.NotifyExchangeOpen:
		var out []*kernel.Message
		for _, key := range r.activePairOrder {
			if key.exchangeID != exchangeID {
				continue
			}
			out = append(out, r.scheduleObSnapshot(key.exchangeID, key.tradedPair)...)
		}
		return out

	case domain.NotifyTradesStarted:
		key := pairKey{exchangeID: exchangeID, tradedPair: n.TradedPair}
		if r.activePairs[key] {
			panic(fmt.Sprintf("replay: trades for %+v at %q already started", n.TradedPair, exchangeID))
		}
		r.activePairs[key] = true
		r.activePairOrder = append(r.activePairOrder, key)
		return r.scheduleObSnapshot(exchangeID, n.TradedPair)

	case domain.NotifyObSnapshot:
		return r.scheduleObSnapshot(exchangeID, n.Snapshot.TradedPair)

	case domain.NotifyTradesStopped:
		key := pairKey{exchangeID: exchangeID, tradedPair: n.TradedPair}
		if !r.activePairs[key] {
			panic(fmt.Sprintf("replay: trades for %+v at %q already stopped or never started", n.TradedPair, exchangeID))
		}
		delete(r.activePairs, key)
		for i, k := range r.activePairOrder {
			if k == key {
				r.activePairOrder = append(r.activePairOrder[:i], r.activePairOrder[i+1:]...)
				break
			}
		}
		for i, stream := range r.streams {
			if stream.ExchangeID == exchangeID && stream.TradedPair == n.TradedPair {
				stream.Stream.Clear()
				delete(r.pendingEntry, i)
			}
		}
		return nil

	default:
		return nil
	}
}
