package broker

import (
	"testing"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
)

var pair = domain.NewSpotPair("ABC")

func traderReq(traderID domain.TraderID, brokerID domain.BrokerID, req domain.OrderRequest) *kernel.Message {
	return &kernel.Message{
		Kind:     kernel.TraderToBrokerRequest,
		Source:   kernel.TraderRef(traderID),
		Dest:     kernel.BrokerRef(brokerID),
		OrderReq: &req,
	}
}

func exchangeReply(brokerID domain.BrokerID, exchangeID domain.ExchangeID, reply domain.ExchangeReply) *kernel.Message {
	return &kernel.Message{
		Kind:   kernel.ExchangeToBrokerReply,
		Source: kernel.ExchangeRef(exchangeID),
		Dest:   kernel.BrokerRef(brokerID),
		Reply:  &reply,
	}
}

func TestPlacementRejectedWhenExchangeNotConnected(t *testing.T) {
	b := New("br1")
	req := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, ExchangeID: "ex1", Side: domain.Buy, Price: 100, Size: 10}
	msgs := b.Handle(traderReq("t1", "br1", req))

	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyOrderPlacementDiscarded {
		t.Fatalf("expected single discard reply, got %+v", msgs)
	}
	if msgs[0].Reply.PlacementReason != domain.PlacementBrokerNotConnectedToExchange {
		t.Errorf("expected BrokerNotConnectedToExchange, got %v", msgs[0].Reply.PlacementReason)
	}
	if msgs[0].Dest.Kind != kernel.AgentTrader || msgs[0].Dest.TraderID != "t1" {
		t.Errorf("expected reply routed back to t1, got %+v", msgs[0].Dest)
	}
}

func TestPlacementForwardedWithRemappedID(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")

	req := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 7, ExchangeID: "ex1", Side: domain.Buy, Price: 100, Size: 10}
	msgs := b.Handle(traderReq("t1", "br1", req))

	if len(msgs) != 1 || msgs[0].Kind != kernel.BrokerToExchangeRequest {
		t.Fatalf("expected single forwarded request, got %+v", msgs)
	}
	if msgs[0].Dest.ExchangeID != "ex1" {
		t.Errorf("expected forwarded to ex1, got %+v", msgs[0].Dest)
	}
	if msgs[0].OrderReq.OrderID == 7 {
		t.Error("expected trader-scoped order id to be remapped to an internal id")
	}
}

func TestCancelUnknownOrderFails(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")

	cancel := domain.OrderRequest{Kind: domain.ReqCancelLimit, TradedPair: pair, OrderID: 99, ExchangeID: "ex1"}
	msgs := b.Handle(traderReq("t1", "br1", cancel))

	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyCannotCancelOrder {
		t.Fatalf("expected CannotCancelOrder, got %+v", msgs)
	}
	if msgs[0].Reply.CancelReason != domain.CancelOrderHasNotBeenSubmitted {
		t.Errorf("expected OrderHasNotBeenSubmitted, got %v", msgs[0].Reply.CancelReason)
	}
}

func TestCancelKnownOrderForwardsInternalID(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 7, ExchangeID: "ex1", Side: domain.Buy, Price: 100, Size: 10}
	placed := b.Handle(traderReq("t1", "br1", place))
	internalID := placed[0].OrderReq.OrderID

	cancel := domain.OrderRequest{Kind: domain.ReqCancelLimit, TradedPair: pair, OrderID: 7, ExchangeID: "ex1"}
	msgs := b.Handle(traderReq("t1", "br1", cancel))

	if len(msgs) != 1 || msgs[0].Kind != kernel.BrokerToExchangeRequest {
		t.Fatalf("expected single forwarded cancel, got %+v", msgs)
	}
	if msgs[0].OrderReq.OrderID != internalID {
		t.Errorf("expected cancel to target internal id %d, got %d", internalID, msgs[0].OrderReq.OrderID)
	}
}

func TestExchangeReplyTranslatedBackToTraderOrderID(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 7, ExchangeID: "ex1", Side: domain.Buy, Price: 100, Size: 10}
	placed := b.Handle(traderReq("t1", "br1", place))
	internalID := placed[0].OrderReq.OrderID

	reply := domain.ExchangeReply{Kind: domain.ReplyOrderAccepted, TradedPair: pair, OrderID: internalID}
	msgs := b.Handle(exchangeReply("br1", "ex1", reply))

	if len(msgs) != 1 || msgs[0].Kind != kernel.BrokerToTraderReply {
		t.Fatalf("expected single trader-directed reply, got %+v", msgs)
	}
	if msgs[0].Dest.TraderID != "t1" {
		t.Errorf("expected reply routed to t1, got %+v", msgs[0].Dest)
	}
	if msgs[0].Reply.OrderID != 7 {
		t.Errorf("expected order id translated back to 7, got %d", msgs[0].Reply.OrderID)
	}
}

func TestUnknownExchangeReplyOrderIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unrecognized internal order id")
		}
	}()
	b := New("br1")
	b.ConnectExchange("ex1")
	reply := domain.ExchangeReply{Kind: domain.ReplyOrderAccepted, TradedPair: pair, OrderID: 123}
	b.Handle(exchangeReply("br1", "ex1", reply))
}

func TestLifecycleNotificationFansOutUnconditionally(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")
	b.RegisterTrader("t1", nil)
	b.RegisterTrader("t2", nil)

	notification := domain.ExchangeEventNotification{Kind: domain.NotifyExchangeOpen}
	reply := domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &notification}
	msgs := b.Handle(exchangeReply("br1", "ex1", reply))

	if len(msgs) != 2 {
		t.Fatalf("expected lifecycle notification fanned out to both traders, got %d messages", len(msgs))
	}
}

func TestTradeNotificationGatedBySubscription(t *testing.T) {
	b := New("br1")
	b.ConnectExchange("ex1")
	b.RegisterTrader("t1", []TraderSubscription{{ExchangeID: "ex1", TradedPair: pair, Flags: domain.SubTrades}})
	b.RegisterTrader("t2", []TraderSubscription{{ExchangeID: "ex1", TradedPair: pair, Flags: domain.SubObSnapshots}})

	trade := domain.TradeInfo{TradedPair: pair, Price: 100, Size: 10, AggressorSide: domain.Buy}
	notification := domain.ExchangeEventNotification{Kind: domain.NotifyTradeExecuted, TradedPair: pair, Trade: &trade}
	reply := domain.ExchangeReply{Kind: domain.ReplyNotification, TradedPair: pair, Notification: &notification}
	msgs := b.Handle(exchangeReply("br1", "ex1", reply))

	if len(msgs) != 1 || msgs[0].Dest.TraderID != "t1" {
		t.Fatalf("expected trade notification only to the subscribed trader, got %+v", msgs)
	}
}

func TestRegisterTraderPanicsOnUnconnectedExchange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for subscription against an unconnected exchange")
		}
	}()
	b := New("br1")
	b.RegisterTrader("t1", []TraderSubscription{{ExchangeID: "ex1", TradedPair: pair, Flags: domain.SubTrades}})
}
