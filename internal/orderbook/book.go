// Package orderbook implements a single-instrument limit order book with
// price-time priority matching, including support for "dummy" resting
// orders used to seed synthetic or historical depth without those orders
// ever originating real trades.
package orderbook

import (
	"fmt"
	"sort"

	"github.com/andrewsonin/simkernel/internal/domain"
)

// priceLevel holds all resting orders at a single price, in FIFO order.
type priceLevel struct {
	Price  domain.Price
	Orders []*domain.LimitOrder
}

func (pl *priceLevel) totalSize() domain.Size {
	var total domain.Size
	for _, o := range pl.Orders {
		total += o.RemainingSize
	}
	return total
}

// location records where a live order currently rests, for O(1) cancel.
type location struct {
	side  domain.Side
	price domain.Price
}

// Book is a single-instrument limit order book (spec.md §4.1).
type Book struct {
	bids []*priceLevel // descending by price: bids[0] is best bid
	asks []*priceLevel // ascending by price: asks[0] is best ask

	orderIndex map[domain.OrderID]location
}

// New creates an empty order book.
func New() *Book {
	return &Book{
		orderIndex: make(map[domain.OrderID]location),
	}
}

// InsertLimitOrder matches the incoming order against the opposite side and,
// if any size remains, rests it on the book. A dummy incoming order never
// matches — it is depth-probing, non-impacting liquidity and always rests
// in full, regardless of whether it crosses the spread. A real incoming
// order walks the opposite side in price-time priority as usual, but a
// dummy resting order it crosses is transparent to it: the dummy's own
// size is decremented (and the dummy removed once exhausted) while the
// incoming order's remaining size passes through unreduced, continuing on
// to the next resting order as if the dummy were not there (spec.md §4.1
// "Dummy-aggressor rule"). The returned events describe every size change
// the call produced, in the order they occurred.
func (b *Book) InsertLimitOrder(
	id domain.OrderID, side domain.Side, price domain.Price, size domain.Size,
	isDummy bool, submissionDT domain.DateTime,
) []domain.OrderBookEvent {
	resting := &domain.LimitOrder{
		ID:            id,
		Side:          side,
		Price:         price,
		RemainingSize: size,
		IsDummy:       isDummy,
		SubmissionDT:  submissionDT,
	}

	var events []domain.OrderBookEvent
	if !isDummy {
		incoming := &incomingOrder{side: side, remaining: size, hasLimitPrice: true, limitPrice: price}
		events = b.match(incoming)
		resting.RemainingSize = incoming.remaining
	}

	if resting.RemainingSize > 0 {
		b.insert(resting)
	}
	return events
}

// InsertMarketOrder matches the incoming order against the opposite side
// until either it is fully filled or the opposite side is exhausted; any
// unfilled remainder is discarded without resting (spec.md §4.1). A dummy
// market order never matches and always evaporates: it is a no-op.
func (b *Book) InsertMarketOrder(side domain.Side, size domain.Size, isDummy bool) []domain.OrderBookEvent {
	if isDummy {
		return nil
	}
	incoming := &incomingOrder{side: side, remaining: size}
	return b.match(incoming)
}

// CancelLimitOrder removes a live order from the book, using orderIndex to
// find its side and price, then scanning that side's levels. It reports
// whether the order was found live; ok is false for an unknown or already-
// fully-executed id, which the caller (Exchange) translates into the
// appropriate InabilityToCancelReason. isDummy and submissionDT are the
// cancelled order's own fields, so a caller can observe is_dummy=true on a
// cancelled dummy order (spec.md §4.1's cancel_limit_order contract, where
// the returned order carries is_dummy and submission_dt).
func (b *Book) CancelLimitOrder(id domain.OrderID) (ok bool, side domain.Side, price domain.Price, remaining domain.Size, isDummy bool, submissionDT domain.DateTime) {
	loc, found := b.orderIndex[id]
	if !found {
		return false, 0, 0, 0, false, 0
	}
	levels := b.levelsFor(loc.side)
	for i, level := range *levels {
		if level.Price != loc.price {
			continue
		}
		for j, o := range level.Orders {
			if o.ID != id {
				continue
			}
			remaining = o.RemainingSize
			isDummy = o.IsDummy
			submissionDT = o.SubmissionDT
			level.Orders = append(level.Orders[:j], level.Orders[j+1:]...)
			if len(level.Orders) == 0 {
				*levels = append((*levels)[:i], (*levels)[i+1:]...)
			}
			delete(b.orderIndex, id)
			return true, loc.side, loc.price, remaining, isDummy, submissionDT
		}
	}
	// orderIndex said it was here; absence would be an invariant violation.
	panic(fmt.Sprintf("orderbook: order %d indexed at price %d/%v but not found in level", id, loc.price, loc.side))
}

// GetAllIDs returns every live order id currently on the book, in no
// particular order.
func (b *Book) GetAllIDs() []domain.OrderID {
	ids := make([]domain.OrderID, 0, len(b.orderIndex))
	for id := range b.orderIndex {
		ids = append(ids, id)
	}
	return ids
}

// Clear removes every resting order, as on exchange close (spec.md §4.2).
func (b *Book) Clear() {
	b.bids = nil
	b.asks = nil
	b.orderIndex = make(map[domain.OrderID]location)
}

// GetObSide returns every real resting order's visible footprint as
// ordered non-empty levels for one side, at most maxLevels deep (maxLevels
// <= 0 means unbounded). Dummy orders are excluded: they exist only to
// probe or seed depth for the matching engine and are hidden from
// snapshots (spec.md §4.1 "snapshots non-empty levels, hiding dummy
// liquidity"; ground truth order_book.rs's get_ob_side filters
// `!order.is_dummy`). A level that holds only dummy orders contributes no
// entry to the result, and maxLevels counts only levels that remain
// non-empty after that filter.
func (b *Book) GetObSide(side domain.Side, maxLevels int) []domain.ObLevel {
	levels := b.levelsFor(side)
	out := make([]domain.ObLevel, 0, len(*levels))
	for _, level := range *levels {
		if maxLevels > 0 && len(out) >= maxLevels {
			break
		}
		var orders []domain.ObLevelOrder
		for _, o := range level.Orders {
			if o.IsDummy {
				continue
			}
			orders = append(orders, domain.ObLevelOrder{Size: o.RemainingSize, SubmissionDT: o.SubmissionDT})
		}
		if len(orders) == 0 {
			continue
		}
		out = append(out, domain.ObLevel{Price: level.Price, Orders: orders})
	}
	return out
}

// GetObState returns a full snapshot, at most maxLevels deep per side
// (maxLevels <= 0 means unbounded).
func (b *Book) GetObState(maxLevels int) domain.ObState {
	return domain.ObState{
		Bids: b.GetObSide(domain.Buy, maxLevels),
		Asks: b.GetObSide(domain.Sell, maxLevels),
	}
}

// BestBid and BestAsk report the top of book, with ok=false if that side is
// empty.
func (b *Book) BestBid() (price domain.Price, ok bool) {
	if len(b.bids) == 0 {
		return 0, false
	}
	return b.bids[0].Price, true
}

func (b *Book) BestAsk() (price domain.Price, ok bool) {
	if len(b.asks) == 0 {
		return 0, false
	}
	return b.asks[0].Price, true
}

func (b *Book) levelsFor(side domain.Side) *[]*priceLevel {
	if side == domain.Buy {
		return &b.bids
	}
	return &b.asks
}

// incomingOrder is the aggressor side of a match: never itself stored on
// the book. A market order carries no limit price and crosses any resting
// price.
type incomingOrder struct {
	side          domain.Side
	remaining     domain.Size
	hasLimitPrice bool
	limitPrice    domain.Price
}

func (o *incomingOrder) crosses(restingPrice domain.Price) bool {
	if !o.hasLimitPrice {
		return true
	}
	if o.side == domain.Buy {
		return o.limitPrice >= restingPrice
	}
	return o.limitPrice <= restingPrice
}

// match walks the opposite side in price-time priority, filling incoming
// against resting orders; this function is only ever invoked for a real
// incoming order (InsertLimitOrder/InsertMarketOrder short-circuit dummy
// incoming orders before calling it). A resting dummy order absorbs the
// fill on its own book (reduced or removed exactly as a real resting order
// would be, emitting the matching Old*Executed event), but the incoming
// order's own remaining size is left untouched and no New*Executed event
// is emitted for that encounter: the dummy is invisible to the aggressor,
// which simply continues on to whatever rests behind it (ground truth
// order_book.rs's match_real_with_level!, is_dummy branch).
func (b *Book) match(incoming *incomingOrder) []domain.OrderBookEvent {
	var events []domain.OrderBookEvent
	levels := b.levelsFor(incoming.side.Opposite())

	for li := 0; incoming.remaining > 0 && li < len(*levels); {
		level := (*levels)[li]
		if !incoming.crosses(level.Price) {
			break
		}

		i := 0
		for i < len(level.Orders) && incoming.remaining > 0 {
			resting := level.Orders[i]
			fill := minSize(incoming.remaining, resting.RemainingSize)
			resting.RemainingSize -= fill

			if resting.RemainingSize == 0 {
				events = append(events, domain.OrderBookEvent{Kind: domain.OldOrderExecuted, OrderID: resting.ID, Size: fill, Price: level.Price})
			} else {
				events = append(events, domain.OrderBookEvent{Kind: domain.OldOrderPartiallyExecuted, OrderID: resting.ID, Size: fill, Price: level.Price})
			}

			if !resting.IsDummy {
				incoming.remaining -= fill
				if incoming.remaining == 0 {
					events = append(events, domain.OrderBookEvent{Kind: domain.NewOrderExecuted, Size: fill, Price: level.Price})
				} else {
					events = append(events, domain.OrderBookEvent{Kind: domain.NewOrderPartiallyExecuted, Size: fill, Price: level.Price})
				}
			}

			if resting.RemainingSize == 0 {
				delete(b.orderIndex, resting.ID)
				level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			} else {
				i++
			}
		}

		if len(level.Orders) == 0 {
			*levels = append((*levels)[:li], (*levels)[li+1:]...)
		} else {
			li++
		}
	}

	return events
}

func (b *Book) insert(order *domain.LimitOrder) {
	b.orderIndex[order.ID] = location{side: order.Side, price: order.Price}
	levels := b.levelsFor(order.Side)
	descending := order.Side == domain.Buy

	idx := sort.Search(len(*levels), func(i int) bool {
		if descending {
			return (*levels)[i].Price <= order.Price
		}
		return (*levels)[i].Price >= order.Price
	})

	if idx < len(*levels) && (*levels)[idx].Price == order.Price {
		(*levels)[idx].Orders = append((*levels)[idx].Orders, order)
		return
	}

	newLevel := &priceLevel{Price: order.Price, Orders: []*domain.LimitOrder{order}}
	*levels = append(*levels, nil)
	copy((*levels)[idx+1:], (*levels)[idx:])
	(*levels)[idx] = newLevel
}

// AssertInvariants checks book-level invariants. Panics on violation: these
// are programmer-error conditions, never recoverable at runtime (spec.md §7
// "invariant violations panic"). A dummy order rests without matching, so
// the crossed-book check compares only the best real bid and ask.
func (b *Book) AssertInvariants() {
	for i := 1; i < len(b.bids); i++ {
		if b.bids[i].Price >= b.bids[i-1].Price {
			panic(fmt.Sprintf("orderbook: bid levels not strictly descending at index %d", i))
		}
	}
	for i := 1; i < len(b.asks); i++ {
		if b.asks[i].Price <= b.asks[i-1].Price {
			panic(fmt.Sprintf("orderbook: ask levels not strictly ascending at index %d", i))
		}
	}
	realTop := func(levels []*priceLevel) (domain.Price, bool) {
		for _, level := range levels {
			for _, o := range level.Orders {
				if !o.IsDummy {
					return level.Price, true
				}
			}
		}
		return 0, false
	}
	bestBid, hasBid := realTop(b.bids)
	bestAsk, hasAsk := realTop(b.asks)
	if hasBid && hasAsk && bestBid >= bestAsk {
		panic(fmt.Sprintf("orderbook: crossed book, best bid %d >= best ask %d", bestBid, bestAsk))
	}
	count := 0
	for _, level := range append(append([]*priceLevel{}, b.bids...), b.asks...) {
		if len(level.Orders) == 0 {
			panic(fmt.Sprintf("orderbook: empty level at price %d", level.Price))
		}
		for _, o := range level.Orders {
			if o.RemainingSize <= 0 {
				panic(fmt.Sprintf("orderbook: non-positive remaining size on resting order %d", o.ID))
			}
		}
		count += len(level.Orders)
	}
	if count != len(b.orderIndex) {
		panic(fmt.Sprintf("orderbook: orderIndex size %d != resting order count %d", len(b.orderIndex), count))
	}
}

func minSize(a, b domain.Size) domain.Size {
	if a < b {
		return a
	}
	return b
}
