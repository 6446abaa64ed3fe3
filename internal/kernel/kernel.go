// Package kernel implements the deterministic, single-threaded discrete-
// event dispatch loop: a priority queue of Messages ordered by
// (DeliveryDT, SeqNo), per-edge latency injection, and routing to whichever
// agent (Exchange, Broker, Trader, or Replay) a Message targets.
package kernel

import (
	"container/heap"
	"fmt"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/latency"
)

// Handler processes one delivered Message and returns any new Messages it
// produced as a result (replies, forwarded requests, notifications, or a
// rescheduled self-wakeup). It must not block and must not itself call back
// into the Kernel — cooperative scheduling only (spec.md §5).
type Handler func(msg *Message) []*Message

// Instrumentation receives kernel-level observations. Implemented by
// internal/telemetry; nil is a valid no-op default so the kernel never
// depends on the telemetry package directly.
type Instrumentation interface {
	ObserveDispatch(kind MessageKind, queueDepth int)
}

// Kernel is the simulation's single-threaded event dispatcher. Grounded on
// the teacher's internal/engine/eventloop.go (EventLoop: min-heap +
// handler-returns-new-events), generalized from one fixed handler to
// per-agent routing since this core has many addressable participants
// instead of the teacher's fixed fast/slow trader pair.
type Kernel struct {
	queue messageHeap
	seqNo uint64

	exchanges map[domain.ExchangeID]Handler
	brokers   map[domain.BrokerID]Handler
	traders   map[domain.TraderID]Handler
	replay    Handler

	gen   *latency.Generator
	instr Instrumentation

	CurrentDT       domain.DateTime
	EventsProcessed uint64
}

// New creates an empty Kernel. gen may be nil, in which case no latency is
// ever applied (every message delivers instantaneously) — useful for unit
// tests that want to isolate routing from timing.
func New(gen *latency.Generator, instr Instrumentation) *Kernel {
	k := &Kernel{
		exchanges: make(map[domain.ExchangeID]Handler),
		brokers:   make(map[domain.BrokerID]Handler),
		traders:   make(map[domain.TraderID]Handler),
		gen:       gen,
		instr:     instr,
	}
	heap.Init(&k.queue)
	return k
}

func (k *Kernel) RegisterExchange(id domain.ExchangeID, h Handler) { k.exchanges[id] = h }
func (k *Kernel) RegisterBroker(id domain.BrokerID, h Handler)     { k.brokers[id] = h }
func (k *Kernel) RegisterTrader(id domain.TraderID, h Handler)     { k.traders[id] = h }
func (k *Kernel) RegisterReplay(h Handler)                         { k.replay = h }

// Schedule enqueues msg, applying per-edge latency to its DeliveryDT (which
// must be set to the decision time the handler emitted it at) and assigning
// the next sequence number for deterministic tie-breaking.
func (k *Kernel) Schedule(msg *Message) {
	msg.DeliveryDT = k.applyLatency(msg)
	k.seqNo++
	msg.SeqNo = k.seqNo
	heap.Push(&k.queue, msg)
}

// applyLatency returns msg's adjusted delivery time. Self-wakeups and the
// Replay↔Exchange edge carry no latency (spec.md §4.6): Replay and Exchange
// are treated as co-located, and a self-wakeup is simply a timer, not a
// message crossing any network edge. Every other edge samples outgoing
// latency from the sender's model; only the Exchange→Broker and
// Broker→Trader edges also sample incoming latency from the receiver's
// model.
func (k *Kernel) applyLatency(msg *Message) domain.DateTime {
	if k.gen == nil {
		return msg.DeliveryDT
	}
	switch msg.Kind {
	case ReplayToExchangeRequest, ExchangeToReplayReply,
		TraderSelfWakeup, ReplaySelfWakeup, BrokerSelfWakeup, ExchangeSelfWakeup:
		return msg.DeliveryDT
	default:
		afterOutgoing := k.gen.OutgoingLatency(peerID(msg.Source), msg.DeliveryDT)
		if msg.Kind == ExchangeToBrokerReply || msg.Kind == BrokerToTraderReply {
			return k.gen.IncomingLatency(peerID(msg.Dest), afterOutgoing)
		}
		return afterOutgoing
	}
}

func peerID(ref AgentRef) latency.PeerID {
	switch ref.Kind {
	case AgentExchange:
		return latency.PeerID(ref.ExchangeID)
	case AgentBroker:
		return latency.PeerID(ref.BrokerID)
	case AgentTrader:
		return latency.PeerID(ref.TraderID)
	case AgentReplay:
		return latency.PeerID("replay")
	default:
		return ""
	}
}

// Run drains the queue, delivering every message in (DeliveryDT, SeqNo)
// order until none remain.
func (k *Kernel) Run() {
	for k.queue.Len() > 0 {
		k.step()
	}
}

// RunUntil drains the queue up to and including maxDT. Returns true if
// messages remain undelivered past maxDT.
func (k *Kernel) RunUntil(maxDT domain.DateTime) bool {
	for k.queue.Len() > 0 {
		if k.queue[0].DeliveryDT > maxDT {
			return true
		}
		k.step()
	}
	return false
}

func (k *Kernel) step() {
	msg := heap.Pop(&k.queue).(*Message)
	k.CurrentDT = msg.DeliveryDT
	k.EventsProcessed++
	if k.instr != nil {
		k.instr.ObserveDispatch(msg.Kind, k.queue.Len())
	}

	for _, m := range k.dispatch(msg) {
		k.Schedule(m)
	}
}

func (k *Kernel) dispatch(msg *Message) []*Message {
	switch msg.Dest.Kind {
	case AgentExchange:
		h, ok := k.exchanges[msg.Dest.ExchangeID]
		if !ok {
			panic(fmt.Sprintf("kernel: no handler registered for exchange %q", msg.Dest.ExchangeID))
		}
		return h(msg)
	case AgentBroker:
		h, ok := k.brokers[msg.Dest.BrokerID]
		if !ok {
			panic(fmt.Sprintf("kernel: no handler registered for broker %q", msg.Dest.BrokerID))
		}
		return h(msg)
	case AgentTrader:
		h, ok := k.traders[msg.Dest.TraderID]
		if !ok {
			panic(fmt.Sprintf("kernel: no handler registered for trader %q", msg.Dest.TraderID))
		}
		return h(msg)
	case AgentReplay:
		if k.replay == nil {
			panic("kernel: no handler registered for replay")
		}
		return k.replay(msg)
	default:
		panic(fmt.Sprintf("kernel: unknown destination agent kind %d", msg.Dest.Kind))
	}
}

// Pending returns the number of messages still queued.
func (k *Kernel) Pending() int {
	return k.queue.Len()
}
