package replay

import (
	"math/rand"
	"sort"

	"github.com/andrewsonin/simkernel/internal/domain"
)

// HistoryStream yields one traded pair's historical order flow in
// non-decreasing datetime order (spec.md §6). Next returns ok=false once
// exhausted; a Replay clears (discards the remainder of) a stream when its
// traded pair's trading session stops.
type HistoryStream interface {
	Next() (domain.HistoryEntry, bool)
	// Clear discards any remaining entries, as if the stream were exhausted.
	Clear()
}

// GeneratorParams controls SyntheticStream's background order flow. It plays
// the same role as the teacher's scenario.Config for its order generators,
// narrowed to the fields a single traded pair's synthetic flow needs.
type GeneratorParams struct {
	Seed            int64
	Duration        int64 // ns from the stream's first entry
	OrderIntervalNs int64
	MinOrderSize    domain.Size
	MaxOrderSize    domain.Size
	InitialMidPrice domain.Price
	InitialSpread   domain.Price
	PriceTickSize   domain.Price
	MaxPriceLevels  int
	CancelRate      float64 // probability a tick is a cancel of a prior resting order
	MarketOrderRate float64 // probability a (non-cancel) tick is a market order
}

// SyntheticStream is an in-memory HistoryStream generator: it pre-generates
// a full, sorted sequence of entries from a seeded *rand.Rand at
// construction time and then streams them out one at a time. Grounded on
// the teacher's internal/scenario/generator.go (backgroundGen: pre-generate
// + sort.SliceStable by timestamp, then read back sequentially).
type SyntheticStream struct {
	entries []domain.HistoryEntry
	cursor  int
}

// NewSyntheticStream builds a SyntheticStream: an initial resting book of
// limit orders at MaxPriceLevels on each side, followed by a steady stream
// of limit/market/cancel ticks at OrderIntervalNs cadence, jittered and
// reordered into non-decreasing datetime order.
func NewSyntheticStream(p GeneratorParams) *SyntheticStream {
	rng := rand.New(rand.NewSource(p.Seed))
	nextID := domain.OrderID(0)
	newID := func() domain.OrderID {
		id := nextID
		nextID++
		return id
	}
	randSize := func() domain.Size {
		if p.MaxOrderSize <= p.MinOrderSize {
			return p.MinOrderSize
		}
		return p.MinOrderSize + domain.Size(rng.Int63n(int64(p.MaxOrderSize-p.MinOrderSize)+1))
	}
	randSide := func() domain.Side {
		if rng.Float64() < 0.5 {
			return domain.Buy
		}
		return domain.Sell
	}

	var entries []domain.HistoryEntry

	halfSpread := p.InitialSpread / 2
	bestBid := p.InitialMidPrice - halfSpread
	bestAsk := p.InitialMidPrice + halfSpread
	for lvl := 0; lvl < p.MaxPriceLevels; lvl++ {
		bidPrice := bestBid - domain.Price(lvl)*p.PriceTickSize
		askPrice := bestAsk + domain.Price(lvl)*p.PriceTickSize
		entries = append(entries,
			domain.HistoryEntry{DateTime: 0, Kind: domain.HistoryPlaceLimit, OrderID: newID(), Side: domain.Buy, Price: bidPrice, Size: randSize()},
			domain.HistoryEntry{DateTime: 0, Kind: domain.HistoryPlaceLimit, OrderID: newID(), Side: domain.Sell, Price: askPrice, Size: randSize()},
		)
	}

	var restingIDs []domain.OrderID
	if p.OrderIntervalNs > 0 {
		for t := p.OrderIntervalNs; t < p.Duration; t += p.OrderIntervalNs {
			jitter := rng.Int63n(p.OrderIntervalNs/2 + 1)
			dt := domain.DateTime(t + jitter)

			roll := rng.Float64()
			switch {
			case roll < p.CancelRate && len(restingIDs) > 0:
				idx := rng.Intn(len(restingIDs))
				cancelID := restingIDs[idx]
				restingIDs = append(restingIDs[:idx], restingIDs[idx+1:]...)
				entries = append(entries, domain.HistoryEntry{DateTime: dt, Kind: domain.HistoryCancel, OrderID: cancelID})
			case roll < p.CancelRate+p.MarketOrderRate:
				entries = append(entries, domain.HistoryEntry{
					DateTime: dt, Kind: domain.HistoryPlaceMarket, OrderID: newID(), Side: randSide(), Size: randSize(),
				})
			default:
				side := randSide()
				offset := domain.Price(rng.Int63n(int64(p.MaxPriceLevels))) * p.PriceTickSize
				var price domain.Price
				if side == domain.Buy {
					price = p.InitialMidPrice - halfSpread - offset
				} else {
					price = p.InitialMidPrice + halfSpread + offset
				}
				id := newID()
				entries = append(entries, domain.HistoryEntry{DateTime: dt, Kind: domain.HistoryPlaceLimit, OrderID: id, Side: side, Price: price, Size: randSize()})
				restingIDs = append(restingIDs, id)
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DateTime < entries[j].DateTime })
	return &SyntheticStream{entries: entries}
}

func (s *SyntheticStream) Next() (domain.HistoryEntry, bool) {
	if s.cursor >= len(s.entries) {
		return domain.HistoryEntry{}, false
	}
	entry := s.entries[s.cursor]
	s.cursor++
	return entry, true
}

func (s *SyntheticStream) Clear() {
	s.cursor = len(s.entries)
}
