package exchange

import (
	"testing"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
	"github.com/shopspring/decimal"
)

var pair = domain.NewSpotPair("ABC")

func openAndStart(t *testing.T, e *Exchange, pair domain.TradedPair) {
	t.Helper()
	if msgs := e.tryOpen(); len(msgs) == 0 {
		t.Fatal("tryOpen produced no messages")
	}
	step := domain.NewPriceStep(decimal.NewFromInt(1))
	if msgs := e.tryStartTrades(pair, step); len(msgs) == 0 {
		t.Fatal("tryStartTrades produced no messages")
	}
}

func replyKinds(msgs []*kernel.Message) []domain.ExchangeReplyKind {
	out := make([]domain.ExchangeReplyKind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Reply.Kind
	}
	return out
}

func TestOpenTwiceIsRejected(t *testing.T) {
	e := New("ex1")
	e.tryOpen()
	msgs := e.tryOpen()
	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyCannotOpenExchange {
		t.Fatalf("expected single CannotOpenExchange reply, got %v", replyKinds(msgs))
	}
	if msgs[0].Reply.OpenReason != domain.OpenAlreadyOpen {
		t.Errorf("expected OpenAlreadyOpen, got %v", msgs[0].Reply.OpenReason)
	}
}

func TestPlaceLimitOrderRejectedWhenClosed(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	req := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	msgs := e.Handle(&kernel.Message{
		Kind:     kernel.BrokerToExchangeRequest,
		Source:   kernel.BrokerRef("br1"),
		Dest:     kernel.ExchangeRef("ex1"),
		OrderReq: &req,
	})
	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyOrderPlacementDiscarded {
		t.Fatalf("expected single discard reply, got %v", replyKinds(msgs))
	}
	if msgs[0].Reply.PlacementReason != domain.PlacementExchangeClosed {
		t.Errorf("expected PlacementExchangeClosed, got %v", msgs[0].Reply.PlacementReason)
	}
}

func TestPlaceLimitOrderAcceptedAndRests(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	openAndStart(t, e, pair)

	req := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	msgs := e.Handle(&kernel.Message{
		Kind:     kernel.BrokerToExchangeRequest,
		Source:   kernel.BrokerRef("br1"),
		Dest:     kernel.ExchangeRef("ex1"),
		OrderReq: &req,
	})
	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyOrderAccepted {
		t.Fatalf("expected single OrderAccepted reply, got %v", replyKinds(msgs))
	}
	if msgs[0].Dest.Kind != kernel.AgentBroker || msgs[0].Dest.BrokerID != "br1" {
		t.Errorf("expected reply routed to br1, got %+v", msgs[0].Dest)
	}
}

func TestCrossingOrderProducesTradeAndBroadcast(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	e.ConnectBroker("br2")
	openAndStart(t, e, pair)

	sell := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Sell, Price: 100, Size: 10}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &sell})

	buy := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	msgs := e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br2"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &buy})

	var sawExecutedToSeller, sawExecutedToBuyer, sawTradeBroadcastBr1, sawTradeBroadcastBr2 bool
	for _, m := range msgs {
		if m.Reply.Kind == domain.ReplyOrderExecuted && m.Dest.Kind == kernel.AgentBroker && m.Dest.BrokerID == "br1" {
			sawExecutedToSeller = true
		}
		if m.Reply.Kind == domain.ReplyOrderExecuted && m.Dest.Kind == kernel.AgentBroker && m.Dest.BrokerID == "br2" {
			sawExecutedToBuyer = true
		}
		if m.Reply.Kind == domain.ReplyNotification && m.Reply.Notification.Kind == domain.NotifyTradeExecuted {
			if m.Dest.BrokerID == "br1" {
				sawTradeBroadcastBr1 = true
			}
			if m.Dest.BrokerID == "br2" {
				sawTradeBroadcastBr2 = true
			}
		}
	}
	if !sawExecutedToSeller {
		t.Error("expected OrderExecuted reply routed to resting seller's broker")
	}
	if !sawExecutedToBuyer {
		t.Error("expected OrderExecuted reply routed to aggressing buyer's broker")
	}
	if !sawTradeBroadcastBr1 || !sawTradeBroadcastBr2 {
		t.Error("expected TradeExecuted notification broadcast to every connected broker")
	}
}

func TestDummyOrderProducesNoNotifications(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	e.ConnectBroker("br2")
	openAndStart(t, e, pair)

	sell := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Sell, Price: 100, Size: 10}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &sell})

	dummyBuy := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10, IsDummy: true}
	msgs := e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br2"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &dummyBuy})

	for _, m := range msgs {
		if m.Reply.Kind == domain.ReplyNotification && m.Reply.Notification.Kind == domain.NotifyTradeExecuted {
			t.Fatal("dummy aggressor must not produce a TradeExecuted broadcast")
		}
	}
	// Dummy always rests in full regardless of crossing, so it receives only
	// its own OrderAccepted reply (no fill, since it never matches).
	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyOrderAccepted {
		t.Fatalf("expected dummy order to simply rest and be accepted, got %v", replyKinds(msgs))
	}
}

func TestCancelUnknownOrderFails(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	openAndStart(t, e, pair)

	cancel := domain.OrderRequest{Kind: domain.ReqCancelLimit, TradedPair: pair, OrderID: 99}
	msgs := e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &cancel})
	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyCannotCancelOrder {
		t.Fatalf("expected CannotCancelOrder, got %v", replyKinds(msgs))
	}
	if msgs[0].Reply.CancelReason != domain.CancelOrderHasNotBeenSubmitted {
		t.Errorf("expected OrderHasNotBeenSubmitted, got %v", msgs[0].Reply.CancelReason)
	}
}

func TestCancelLiveOrderSucceedsAndBroadcasts(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	e.ConnectBroker("br2")
	openAndStart(t, e, pair)

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &place})

	cancel := domain.OrderRequest{Kind: domain.ReqCancelLimit, TradedPair: pair, OrderID: 1}
	msgs := e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &cancel})

	var sawCancelledReply, sawBr2Broadcast bool
	for _, m := range msgs {
		if m.Reply.Kind == domain.ReplyOrderCancelled && m.Dest.BrokerID == "br1" {
			sawCancelledReply = true
		}
		if m.Reply.Kind == domain.ReplyNotification && m.Reply.Notification.Kind == domain.NotifyOrderCancelled && m.Dest.BrokerID == "br2" {
			sawBr2Broadcast = true
		}
	}
	if !sawCancelledReply {
		t.Error("expected OrderCancelled reply to the cancelling broker")
	}
	if !sawBr2Broadcast {
		t.Error("expected OrderCancelled notification broadcast to the other broker")
	}
}

func TestMarketOrderNotFullyExecutedWhenBookThin(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	e.ConnectBroker("br2")
	openAndStart(t, e, pair)

	sell := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Sell, Price: 100, Size: 5}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &sell})

	marketBuy := domain.OrderRequest{Kind: domain.ReqPlaceMarket, TradedPair: pair, OrderID: 1, Side: domain.Buy, Size: 20}
	msgs := e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br2"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &marketBuy})

	var notFullyExecuted *domain.ExchangeReply
	for _, m := range msgs {
		if m.Reply.Kind == domain.ReplyMarketOrderNotFullyExecuted {
			notFullyExecuted = m.Reply
		}
	}
	if notFullyExecuted == nil {
		t.Fatal("expected a MarketOrderNotFullyExecuted reply")
	}
	if notFullyExecuted.Size != 15 {
		t.Errorf("expected remaining size 15, got %d", notFullyExecuted.Size)
	}
}

func TestReplayPlacedOrderRoutesRepliesToReplay(t *testing.T) {
	e := New("ex1")
	openAndStart(t, e, pair)

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	msgs := e.Handle(&kernel.Message{Kind: kernel.ReplayToExchangeRequest, Source: kernel.ReplayRef(), Dest: kernel.ExchangeRef("ex1"), OrderReq: &place})

	if len(msgs) != 1 || msgs[0].Dest.Kind != kernel.AgentReplay {
		t.Fatalf("expected single reply routed to replay, got %+v", msgs)
	}
}

func TestStopTradesCancelsRestingOrders(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	openAndStart(t, e, pair)

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &place})

	lifecycle := domain.LifecycleRequest{Kind: domain.ReqStopTrades, TradedPair: pair}
	msgs := e.Handle(&kernel.Message{Kind: kernel.ReplayToExchangeRequest, Source: kernel.ReplayRef(), Dest: kernel.ExchangeRef("ex1"), LifecycleReq: &lifecycle})

	var sawCancelled bool
	for _, m := range msgs {
		if m.Reply.Kind == domain.ReplyOrderCancelled && m.Dest.BrokerID == "br1" {
			sawCancelled = true
			if m.Reply.CancellationReason != domain.CancellationTradesStopped {
				t.Errorf("expected CancellationTradesStopped, got %v", m.Reply.CancellationReason)
			}
		}
	}
	if !sawCancelled {
		t.Error("expected resting order to be cancelled when trades stop")
	}
}

func TestCloseExchangeClearsBooksAndResetsIDs(t *testing.T) {
	e := New("ex1")
	e.ConnectBroker("br1")
	openAndStart(t, e, pair)

	place := domain.OrderRequest{Kind: domain.ReqPlaceLimit, TradedPair: pair, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10}
	e.Handle(&kernel.Message{Kind: kernel.BrokerToExchangeRequest, Source: kernel.BrokerRef("br1"), Dest: kernel.ExchangeRef("ex1"), OrderReq: &place})

	lifecycle := domain.LifecycleRequest{Kind: domain.ReqExchangeClosed}
	msgs := e.Handle(&kernel.Message{Kind: kernel.ReplayToExchangeRequest, Source: kernel.ReplayRef(), Dest: kernel.ExchangeRef("ex1"), LifecycleReq: &lifecycle})

	if len(msgs) == 0 {
		t.Fatal("expected close to emit notifications")
	}
	if e.isOpen {
		t.Error("expected exchange closed")
	}
	if entry, ok := e.orderBooks[pair]; !ok || len(entry.book.GetAllIDs()) != 0 {
		t.Error("expected order books cleared on close")
	}
	if e.nextOrderID != 0 {
		t.Error("expected internal id counter reset on close")
	}
}

func TestBroadcastObStateWhenNoSuchTradedPair(t *testing.T) {
	e := New("ex1")
	e.tryOpen()

	lifecycle := domain.LifecycleRequest{Kind: domain.ReqBroadcastObState, TradedPair: pair}
	msgs := e.Handle(&kernel.Message{Kind: kernel.ReplayToExchangeRequest, Source: kernel.ReplayRef(), Dest: kernel.ExchangeRef("ex1"), LifecycleReq: &lifecycle})

	if len(msgs) != 1 || msgs[0].Reply.Kind != domain.ReplyCannotBroadcastObState {
		t.Fatalf("expected CannotBroadcastObState, got %v", replyKinds(msgs))
	}
	if msgs[0].Reply.BroadcastReason != domain.BroadcastNoSuchTradedPair {
		t.Errorf("expected NoSuchTradedPair, got %v", msgs[0].Reply.BroadcastReason)
	}
}
