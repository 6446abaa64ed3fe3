package replay

import (
	"math/rand"
	"testing"

	"github.com/andrewsonin/simkernel/internal/domain"
	"github.com/andrewsonin/simkernel/internal/kernel"
)

var pair = domain.NewSpotPair("ABC")

// fakeStream is a hand-fed HistoryStream for deterministic test control.
type fakeStream struct {
	entries []domain.HistoryEntry
	cursor  int
	cleared bool
}

func (f *fakeStream) Next() (domain.HistoryEntry, bool) {
	if f.cleared || f.cursor >= len(f.entries) {
		return domain.HistoryEntry{}, false
	}
	e := f.entries[f.cursor]
	f.cursor++
	return e, true
}

func (f *fakeStream) Clear() { f.cleared = true }

func TestSeedSchedulesLifecycleAndFirstHistoryWakeup(t *testing.T) {
	stream := &fakeStream{entries: []domain.HistoryEntry{
		{DateTime: 50, Kind: domain.HistoryPlaceLimit, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10},
	}}
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), []PairStream{
		{ExchangeID: "ex1", TradedPair: pair, Stream: stream},
	}, 10)

	msgs := r.Seed(
		[]ExchangeSession{{ExchangeID: "ex1", OpenDT: 0, CloseDT: 1000}},
		[]TradedPairLifetime{{ExchangeID: "ex1", TradedPair: pair, PriceStep: domain.PriceStep{}, StartDT: 10}},
	)

	var sawOpen, sawClose, sawStart, sawWakeup bool
	for _, m := range msgs {
		switch {
		case m.Kind == kernel.ReplayToExchangeRequest && m.LifecycleReq != nil && m.LifecycleReq.Kind == domain.ReqExchangeOpen:
			sawOpen = true
		case m.Kind == kernel.ReplayToExchangeRequest && m.LifecycleReq != nil && m.LifecycleReq.Kind == domain.ReqExchangeClosed:
			sawClose = true
		case m.Kind == kernel.ReplayToExchangeRequest && m.LifecycleReq != nil && m.LifecycleReq.Kind == domain.ReqStartTrades:
			sawStart = true
		case m.Kind == kernel.ReplaySelfWakeup:
			sawWakeup = true
			if m.DeliveryDT != 50 {
				t.Errorf("expected wakeup scheduled at entry datetime 50, got %d", m.DeliveryDT)
			}
		}
	}
	if !sawOpen || !sawClose || !sawStart || !sawWakeup {
		t.Fatalf("missing expected seed messages: open=%v close=%v start=%v wakeup=%v", sawOpen, sawClose, sawStart, sawWakeup)
	}
}

func TestHistoryWakeupEmitsRequestAndReschedules(t *testing.T) {
	stream := &fakeStream{entries: []domain.HistoryEntry{
		{DateTime: 50, Kind: domain.HistoryPlaceLimit, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10},
		{DateTime: 80, Kind: domain.HistoryPlaceMarket, OrderID: 2, Side: domain.Sell, Size: 5},
	}}
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), []PairStream{
		{ExchangeID: "ex1", TradedPair: pair, Stream: stream},
	}, 10)
	r.Seed(nil, nil)

	msgs := r.Handle(&kernel.Message{
		Kind:         kernel.ReplaySelfWakeup,
		DeliveryDT:   50,
		Source:       kernel.ReplayRef(),
		Dest:         kernel.ReplayRef(),
		ReplayWakeup: &domain.ReplayWakeup{Kind: domain.WakeupNextHistoryEntry, StreamIndex: 0},
	})

	var sawRequest, sawNextWakeup bool
	for _, m := range msgs {
		if m.Kind == kernel.ReplayToExchangeRequest && m.OrderReq != nil && m.OrderReq.OrderID == 1 {
			sawRequest = true
			if m.OrderReq.Kind != domain.ReqPlaceLimit {
				t.Errorf("expected ReqPlaceLimit, got %v", m.OrderReq.Kind)
			}
		}
		if m.Kind == kernel.ReplaySelfWakeup && m.DeliveryDT == 80 {
			sawNextWakeup = true
		}
	}
	if !sawRequest || !sawNextWakeup {
		t.Fatalf("expected both the due request and the next wakeup, got %+v", msgs)
	}
}

func TestStaleWakeupAfterClearIsNoOp(t *testing.T) {
	stream := &fakeStream{entries: []domain.HistoryEntry{
		{DateTime: 50, Kind: domain.HistoryPlaceLimit, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10},
	}}
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), []PairStream{
		{ExchangeID: "ex1", TradedPair: pair, Stream: stream},
	}, 10)
	r.Seed(nil, nil)
	delete(r.pendingEntry, 0)

	msgs := r.Handle(&kernel.Message{
		Kind:         kernel.ReplaySelfWakeup,
		DeliveryDT:   50,
		Source:       kernel.ReplayRef(),
		Dest:         kernel.ReplayRef(),
		ReplayWakeup: &domain.ReplayWakeup{Kind: domain.WakeupNextHistoryEntry, StreamIndex: 0},
	})
	if len(msgs) != 0 {
		t.Fatalf("expected stale wakeup to be a no-op, got %+v", msgs)
	}
}

func TestTradesStartedSchedulesSnapshotAndTwiceStartedPanics(t *testing.T) {
	r := New(PeriodicObSnapshotDelay{Period: 100}, rand.New(rand.NewSource(1)), nil, 10)

	notification := domain.ExchangeEventNotification{Kind: domain.NotifyTradesStarted, TradedPair: pair}
	msgs := r.Handle(&kernel.Message{
		Kind:   kernel.ExchangeToReplayReply,
		Source: kernel.ExchangeRef("ex1"),
		Dest:   kernel.ReplayRef(),
		Reply:  &domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &notification},
	})
	if len(msgs) != 1 || msgs[0].Kind != kernel.ReplaySelfWakeup {
		t.Fatalf("expected a snapshot wakeup scheduled, got %+v", msgs)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double TradesStarted")
		}
	}()
	r.Handle(&kernel.Message{
		Kind:   kernel.ExchangeToReplayReply,
		Source: kernel.ExchangeRef("ex1"),
		Dest:   kernel.ReplayRef(),
		Reply:  &domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &notification},
	})
}

func TestTradesStoppedClearsStream(t *testing.T) {
	stream := &fakeStream{entries: []domain.HistoryEntry{
		{DateTime: 50, Kind: domain.HistoryPlaceLimit, OrderID: 1, Side: domain.Buy, Price: 100, Size: 10},
	}}
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), []PairStream{
		{ExchangeID: "ex1", TradedPair: pair, Stream: stream},
	}, 10)

	started := domain.ExchangeEventNotification{Kind: domain.NotifyTradesStarted, TradedPair: pair}
	r.Handle(&kernel.Message{
		Kind: kernel.ExchangeToReplayReply, Source: kernel.ExchangeRef("ex1"), Dest: kernel.ReplayRef(),
		Reply: &domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &started},
	})

	stopped := domain.ExchangeEventNotification{Kind: domain.NotifyTradesStopped, TradedPair: pair}
	r.Handle(&kernel.Message{
		Kind: kernel.ExchangeToReplayReply, Source: kernel.ExchangeRef("ex1"), Dest: kernel.ReplayRef(),
		Reply: &domain.ExchangeReply{Kind: domain.ReplyNotification, Notification: &stopped},
	})

	if !stream.cleared {
		t.Error("expected stream to be cleared when trades stop")
	}
}

func TestFatalReplyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on a rejected replay-issued request")
		}
	}()
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), nil, 10)
	r.Handle(&kernel.Message{
		Kind: kernel.ExchangeToReplayReply, Source: kernel.ExchangeRef("ex1"), Dest: kernel.ReplayRef(),
		Reply: &domain.ExchangeReply{Kind: domain.ReplyCannotOpenExchange},
	})
}

func TestCannotCancelOrderIsLoggedNotFatal(t *testing.T) {
	r := New(PeriodicObSnapshotDelay{Period: 0}, rand.New(rand.NewSource(1)), nil, 10)
	msgs := r.Handle(&kernel.Message{
		Kind: kernel.ExchangeToReplayReply, Source: kernel.ExchangeRef("ex1"), Dest: kernel.ReplayRef(),
		Reply: &domain.ExchangeReply{Kind: domain.ReplyCannotCancelOrder, CancelReason: domain.CancelOrderHasNotBeenSubmitted},
	})
	if len(msgs) != 0 {
		t.Fatalf("expected no messages produced, got %+v", msgs)
	}
}
