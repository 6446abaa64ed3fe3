// Package latency implements the configurable latency + jitter model used
// to delay message delivery between simulation participants.
package latency

import (
	"fmt"
	"math/rand"

	"github.com/andrewsonin/simkernel/internal/domain"
)

// PeerID identifies one endpoint of a latency-bearing edge — an exchange, a
// broker or a trader — for the purpose of looking up its latency model.
// All three are opaque string-keyed identifiers (domain.ExchangeID,
// domain.BrokerID, domain.TraderID); PeerID lets one Generator serve any of
// them without the kernel needing near-identical generator types.
type PeerID string

// Model samples a non-negative delay: a fixed base plus uniform jitter in
// [0, JitterNs). Grounded on the teacher's internal/latency/model.go, kept
// as a single-responsibility sampler rather than folded into Generator so
// that outgoing and incoming edges of the same peer can use independent
// parameters and independent RNG streams.
type Model struct {
	BaseNs   int64
	JitterNs int64
	rng      *rand.Rand
}

// NewModel creates a latency model with the given parameters and seed.
func NewModel(baseNs, jitterNs, seed int64) *Model {
	if baseNs < 0 || jitterNs < 0 {
		panic(fmt.Sprintf("latency: negative parameter base=%d jitter=%d", baseNs, jitterNs))
	}
	return &Model{
		BaseNs:   baseNs,
		JitterNs: jitterNs,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// sample draws one delay in nanoseconds.
func (m *Model) sample() int64 {
	jitter := int64(0)
	if m.JitterNs > 0 {
		jitter = m.rng.Int63n(m.JitterNs)
	}
	return m.BaseNs + jitter
}

// MsToNs converts milliseconds to nanoseconds.
func MsToNs(ms int64) int64 {
	return ms * 1_000_000
}

// Generator is the kernel-facing LatencyGenerator contract: outgoing
// latency is sampled from the sender's model, incoming latency from the
// receiver's model — this asymmetry matters only on the Exchange→Broker and
// Broker→Trader edges, the only two edges where spec.md §4.6 applies both
// legs; every other edge (Replay↔Exchange, self-wakeups) carries no
// latency at all and never calls into a Generator.
type Generator struct {
	outgoing        map[PeerID]*Model
	incoming        map[PeerID]*Model
	defaultOutgoing *Model
	defaultIncoming *Model
}

// NewGenerator creates a Generator falling back to the given default models
// for any peer without an explicit override.
func NewGenerator(defaultOutgoing, defaultIncoming *Model) *Generator {
	return &Generator{
		outgoing:        make(map[PeerID]*Model),
		incoming:        make(map[PeerID]*Model),
		defaultOutgoing: defaultOutgoing,
		defaultIncoming: defaultIncoming,
	}
}

// SetPeerOutgoing overrides the outgoing-edge model for one peer.
func (g *Generator) SetPeerOutgoing(peer PeerID, m *Model) {
	g.outgoing[peer] = m
}

// SetPeerIncoming overrides the incoming-edge model for one peer.
func (g *Generator) SetPeerIncoming(peer PeerID, m *Model) {
	g.incoming[peer] = m
}

// OutgoingLatency returns the arrival time of a message leaving peer at
// datetime at, sampled from the sender's outgoing model.
func (g *Generator) OutgoingLatency(peer PeerID, at domain.DateTime) domain.DateTime {
	return at.Add(g.modelFor(g.outgoing, peer, g.defaultOutgoing).sample())
}

// IncomingLatency returns the arrival time of a message reaching peer,
// sampled from the receiver's incoming model.
func (g *Generator) IncomingLatency(peer PeerID, at domain.DateTime) domain.DateTime {
	return at.Add(g.modelFor(g.incoming, peer, g.defaultIncoming).sample())
}

func (g *Generator) modelFor(byPeer map[PeerID]*Model, peer PeerID, fallback *Model) *Model {
	if m, ok := byPeer[peer]; ok {
		return m
	}
	return fallback
}
