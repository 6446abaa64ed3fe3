package metrics

import (
	"testing"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
)

var pair = domain.NewSpotPair("ABC")

func placeMsg(traderID domain.TraderID, brokerID domain.BrokerID, orderID domain.OrderID, side domain.Side, dt domain.DateTime) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.TraderToBrokerRequest,
		DeliveryDT: dt,
		Source:     kernel.TraderRef(traderID),
		Dest:       kernel.BrokerRef(brokerID),
		OrderReq: &domain.OrderRequest{
			Kind:       domain.ReqPlaceLimit,
			TradedPair: pair,
			OrderID:    orderID,
			Side:       side,
			Price:      100,
			Size:       10,
		},
	}
}

func fillMsg(traderID domain.TraderID, brokerID domain.BrokerID, orderID domain.OrderID, kind domain.ExchangeReplyKind, price domain.Price, size domain.Size, dt domain.DateTime) *kernel.Message {
	return &kernel.Message{
		Kind:       kernel.BrokerToTraderReply,
		DeliveryDT: dt,
		Source:     kernel.BrokerRef(brokerID),
		Dest:       kernel.TraderRef(traderID),
		Reply: &domain.ExchangeReply{
			Kind:       kind,
			TradedPair: pair,
			OrderID:    orderID,
			Price:      price,
			Size:       size,
		},
	}
}

func TestFillRateCountsFilledOrderOnceWithPartialFills(t *testing.T) {
	msgs := []*kernel.Message{
		placeMsg("fast", "br1", 1, domain.Buy, 90),
		fillMsg("fast", "br1", 1, domain.ReplyOrderPartiallyExecuted, 100, 4, 110),
		fillMsg("fast", "br1", 1, domain.ReplyOrderExecuted, 100, 6, 120),
	}

	result := ComputeFromMessages(msgs)
	fast := result[TraderKey{BrokerID: "br1", TraderID: "fast"}]
	if fast == nil {
		t.Fatal("expected metrics for fast trader")
	}
	if fast.OrdersSent != 1 {
		t.Errorf("expected 1 order sent, got %d", fast.OrdersSent)
	}
	if fast.FillRate != 1.0 {
		t.Errorf("expected fill rate 1.0 (one order, fully filled), got %f", fast.FillRate)
	}
	if fast.TotalFills != 2 {
		t.Errorf("expected 2 fill events, got %d", fast.TotalFills)
	}
	if fast.TotalQtyFilled != 10 {
		t.Errorf("expected total qty filled 10, got %d", fast.TotalQtyFilled)
	}
}

func TestCanceledBeforeFillCountsUnfilledCancelTargets(t *testing.T) {
	msgs := []*kernel.Message{
		placeMsg("slow", "br1", 1, domain.Sell, 50),
		{
			Kind:       kernel.TraderToBrokerRequest,
			DeliveryDT: 60,
			Source:     kernel.TraderRef("slow"),
			Dest:       kernel.BrokerRef("br1"),
			OrderReq:   &domain.OrderRequest{Kind: domain.ReqCancelLimit, TradedPair: pair, OrderID: 1},
		},
	}

	result := ComputeFromMessages(msgs)
	slow := result[TraderKey{BrokerID: "br1", TraderID: "slow"}]
	if slow.CancelsSent != 1 {
		t.Errorf("expected 1 cancel sent, got %d", slow.CancelsSent)
	}
	if slow.CanceledBeforeFill != 1 {
		t.Errorf("expected 1 cancel-before-fill, got %d", slow.CanceledBeforeFill)
	}
}

func TestTradersKeyedByBrokerAndTrader(t *testing.T) {
	msgs := []*kernel.Message{
		placeMsg("t1", "br1", 1, domain.Buy, 0),
		placeMsg("t1", "br2", 1, domain.Buy, 0),
	}

	result := ComputeFromMessages(msgs)
	if len(result) != 2 {
		t.Fatalf("expected 2 distinct trader keys (same trader id, different brokers), got %d", len(result))
	}
}

func TestSlippageMeasuredAgainstMidAtPlacement(t *testing.T) {
	msgs := []*kernel.Message{
		{
			Kind:       kernel.BrokerToTraderReply,
			DeliveryDT: 0,
			Source:     kernel.BrokerRef("br1"),
			Dest:       kernel.TraderRef("fast"),
			Reply: &domain.ExchangeReply{
				Kind:       domain.ReplyNotification,
				TradedPair: pair,
				Notification: &domain.ExchangeEventNotification{
					Kind:       domain.NotifyObSnapshot,
					TradedPair: pair,
					Snapshot: &domain.ObSnapshot{
						TradedPair: pair,
						State: domain.ObState{
							Bids: []domain.ObLevel{{Price: 99}},
							Asks: []domain.ObLevel{{Price: 101}},
						},
					},
				},
			},
		},
		placeMsg("fast", "br1", 1, domain.Buy, 10),
		fillMsg("fast", "br1", 1, domain.ReplyOrderExecuted, 102, 10, 20),
	}

	result := ComputeFromMessages(msgs)
	fast := result[TraderKey{BrokerID: "br1", TraderID: "fast"}]
	if len(fast.SlippageValues) != 1 || fast.SlippageValues[0] != 2 {
		t.Fatalf("expected one slippage sample of 2 (102 exec - 100 mid), got %+v", fast.SlippageValues)
	}
}
