// Package metrics collects per-trader execution quality metrics from a
// stream of delivered kernel messages.
package metrics

import (
	"io"
	"sort"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/eventlog"
	"github.com/andrewsonin/simkernel/internal/kernel"
)

// TraderKey identifies a trader by the broker it trades through, since
// trader IDs are only unique within one broker's roster.
type TraderKey struct {
	BrokerID domain.BrokerID `json:"broker_id"`
	TraderID domain.TraderID `json:"trader_id"`
}

// TraderMetrics holds computed metrics for a single trader. Generalized
// from the teacher's fast/slow-trader TraderMetrics (same order-count,
// fill-rate, exec-price, slippage, and time-to-fill fields); queue-position
// and adverse-selection tracking are dropped since this core's broker hop
// carries no queue-position field on ExchangeReply to recover them from
// (see DESIGN.md).
type TraderMetrics struct {
	TraderKey

	OrdersSent   int `json:"orders_sent"`
	LimitOrders  int `json:"limit_orders"`
	MarketOrders int `json:"market_orders"`
	CancelsSent  int `json:"cancels_sent"`

	TotalFills     int     `json:"total_fills"`
	TotalQtyFilled int64   `json:"total_qty_filled"`
	FillRate       float64 `json:"fill_rate"` // filled executable orders / executable orders

	CanceledBeforeFill int `json:"canceled_before_fill"` // orders canceled without any fill

	AvgExecPrice float64 `json:"avg_exec_price"` // in price-step units
	AvgSlippage  float64 `json:"avg_slippage"`   // vs mid at placement, in price-step units
	SlippageBps  float64 `json:"slippage_bps"`

	// AvgTimeToFillNs holds milliseconds, the same unit as TimeToFillDist.
	AvgTimeToFillNs float64   `json:"avg_time_to_fill_ns"`
	TimeToFillDist  []float64 `json:"time_to_fill_dist"` // ms, sorted

	SlippageValues []float64 `json:"slippage_values,omitempty"`
}

// Collector accumulates metrics from delivered messages.
type Collector struct {
	traders    map[TraderKey]*traderAccum
	bboHistory map[domain.TradedPair][]bboSnapshot
}

type traderAccum struct {
	key          TraderKey
	ordersSent   int
	limitOrders  int
	marketOrders int
	cancelsSent  int

	orderPlaced   map[domain.OrderID]placedInfo
	filledOrders  map[domain.OrderID]bool
	cancelTargets []domain.OrderID

	fills []fillInfo
}

type placedInfo struct {
	tradedPair domain.TradedPair
	side       domain.Side
	placedAt   domain.DateTime
	midAtPlace float64
}

type fillInfo struct {
	price      domain.Price
	qty        domain.Size
	placedAt   domain.DateTime
	filledAt   domain.DateTime
	midAtPlace float64
	side       domain.Side
}

type bboSnapshot struct {
	dt  domain.DateTime
	mid float64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		traders:    make(map[TraderKey]*traderAccum),
		bboHistory: make(map[domain.TradedPair][]bboSnapshot),
	}
}

func (c *Collector) getAccum(key TraderKey) *traderAccum {
	if a, ok := c.traders[key]; ok {
		return a
	}
	a := &traderAccum{
		key:          key,
		orderPlaced:  make(map[domain.OrderID]placedInfo),
		filledOrders: make(map[domain.OrderID]bool),
	}
	c.traders[key] = a
	return a
}

// ProcessMessage ingests a single delivered kernel message. Only the two
// trader-facing hops carry data worth collecting: a trader's own requests
// to its broker, and the broker's replies back.
func (c *Collector) ProcessMessage(msg *kernel.Message) {
	switch msg.Kind {
	case kernel.TraderToBrokerRequest:
		c.processRequest(msg)
	case kernel.BrokerToTraderReply:
		c.processReply(msg)
	}
}

func (c *Collector) processRequest(msg *kernel.Message) {
	req := msg.OrderReq
	if req == nil {
		return
	}
	key := TraderKey{BrokerID: msg.Dest.BrokerID, TraderID: msg.Source.TraderID}
	a := c.getAccum(key)
	a.ordersSent++

	switch req.Kind {
	case domain.ReqPlaceLimit:
		a.limitOrders++
		a.orderPlaced[req.OrderID] = placedInfo{
			tradedPair: req.TradedPair,
			side:       req.Side,
			placedAt:   msg.DeliveryDT,
			midAtPlace: c.midAt(req.TradedPair, msg.DeliveryDT),
		}
	case domain.ReqPlaceMarket:
		a.marketOrders++
		a.orderPlaced[req.OrderID] = placedInfo{
			tradedPair: req.TradedPair,
			side:       req.Side,
			placedAt:   msg.DeliveryDT,
			midAtPlace: c.midAt(req.TradedPair, msg.DeliveryDT),
		}
	case domain.ReqCancelLimit:
		a.cancelsSent++
		a.cancelTargets = append(a.cancelTargets, req.OrderID)
	}
}

func (c *Collector) processReply(msg *kernel.Message) {
	reply := msg.Reply
	if reply == nil {
		return
	}
	if reply.Kind == domain.ReplyNotification {
		c.processNotification(msg.DeliveryDT, reply.Notification)
		return
	}

	key := TraderKey{BrokerID: msg.Source.BrokerID, TraderID: msg.Dest.TraderID}
	a := c.getAccum(key)

	switch reply.Kind {
	case domain.ReplyOrderPartiallyExecuted, domain.ReplyOrderExecuted:
		a.filledOrders[reply.OrderID] = true
		info := a.orderPlaced[reply.OrderID]
		a.fills = append(a.fills, fillInfo{
			price:      reply.Price,
			qty:        reply.Size,
			placedAt:   info.placedAt,
			filledAt:   msg.DeliveryDT,
			midAtPlace: info.midAtPlace,
			side:       info.side,
		})
	}
}

func (c *Collector) processNotification(dt domain.DateTime, n *domain.ExchangeEventNotification) {
	if n == nil || n.Kind != domain.NotifyObSnapshot || n.Snapshot == nil {
		return
	}
	var bid, ask float64
	if len(n.Snapshot.State.Bids) > 0 {
		bid = float64(n.Snapshot.State.Bids[0].Price)
	}
	if len(n.Snapshot.State.Asks) > 0 {
		ask = float64(n.Snapshot.State.Asks[0].Price)
	}
	mid := (bid + ask) / 2
	pair := n.Snapshot.TradedPair
	c.bboHistory[pair] = append(c.bboHistory[pair], bboSnapshot{dt: dt, mid: mid})
}

// midAt returns the mid price-step count in effect for pair at dt, by
// searching that pair's BBO history. Assumes messages are processed in
// non-decreasing DeliveryDT order, which the kernel's own dispatch loop
// guarantees (spec.md §4.6), so history is already sorted by dt.
func (c *Collector) midAt(pair domain.TradedPair, dt domain.DateTime) float64 {
	hist := c.bboHistory[pair]
	if len(hist) == 0 {
		return 0
	}
	idx := sort.Search(len(hist), func(i int) bool { return hist[i].dt > dt })
	if idx == 0 {
		return 0
	}
	return hist[idx-1].mid
}

// Compute calculates final metrics for every tracked trader.
func (c *Collector) Compute() map[TraderKey]*TraderMetrics {
	result := make(map[TraderKey]*TraderMetrics, len(c.traders))

	for key, a := range c.traders {
		m := &TraderMetrics{
			TraderKey:    key,
			OrdersSent:   a.ordersSent,
			LimitOrders:  a.limitOrders,
			MarketOrders: a.marketOrders,
			CancelsSent:  a.cancelsSent,
			TotalFills:   len(a.fills),
		}

		if len(a.orderPlaced) > 0 {
			filled := 0
			for orderID := range a.orderPlaced {
				if a.filledOrders[orderID] {
					filled++
				}
			}
			m.FillRate = float64(filled) / float64(len(a.orderPlaced))
		}

		var totalPrice, totalSlippage, totalTimeToFill float64
		var totalQty int64
		for _, fill := range a.fills {
			qty := int64(fill.qty)
			totalQty += qty
			totalPrice += float64(fill.price) * float64(qty)

			if fill.midAtPlace > 0 {
				var slippage float64
				if fill.side == domain.Buy {
					slippage = float64(fill.price) - fill.midAtPlace
				} else {
					slippage = fill.midAtPlace - float64(fill.price)
				}
				totalSlippage += slippage * float64(qty)
				m.SlippageValues = append(m.SlippageValues, slippage)
			}

			if fill.filledAt >= fill.placedAt {
				ttf := float64(fill.filledAt-fill.placedAt) / 1e6 // ns -> ms
				totalTimeToFill += ttf
				m.TimeToFillDist = append(m.TimeToFillDist, ttf)
			}
		}

		m.TotalQtyFilled = totalQty
		if totalQty > 0 {
			m.AvgExecPrice = totalPrice / float64(totalQty)
			m.AvgSlippage = totalSlippage / float64(totalQty)
			if m.AvgExecPrice > 0 {
				m.SlippageBps = (m.AvgSlippage / m.AvgExecPrice) * 10000
			}
		}
		if len(a.fills) > 0 {
			m.AvgTimeToFillNs = totalTimeToFill / float64(len(a.fills))
		}

		for _, canceledID := range a.cancelTargets {
			if !a.filledOrders[canceledID] {
				m.CanceledBeforeFill++
			}
		}

		sort.Float64s(m.TimeToFillDist)
		result[key] = m
	}

	return result
}

// ComputeFromLog reads an event log and computes metrics.
func ComputeFromLog(logPath string) (map[TraderKey]*TraderMetrics, error) {
	reader, err := eventlog.NewReader(logPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	c := NewCollector()
	for {
		msg, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		c.ProcessMessage(msg)
	}

	return c.Compute(), nil
}

// ComputeFromMessages computes metrics directly from an in-memory message
// stream, e.g. one a Runner collected during a just-completed run.
func ComputeFromMessages(msgs []*kernel.Message) map[TraderKey]*TraderMetrics {
	c := NewCollector()
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		c.ProcessMessage(msg)
	}
	return c.Compute()
}
