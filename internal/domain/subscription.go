package domain

// SubscriptionFlags is a bitset controlling which exchange notifications a
// trader receives through its broker (spec.md §4.3, glossary "Subscription
// flags"). Go has no bitflags-derive macro; bit constants plus methods is
// the idiomatic stand-in, matching how the teacher renders its own enums.
type SubscriptionFlags uint8

const (
	SubTrades                SubscriptionFlags = 1 << iota // TRADES
	SubNewLimitOrders                                       // NEW_LIMIT_ORDERS
	SubCancelledLimitOrders                                  // CANCELLED_LIMIT_ORDERS
	SubObSnapshots                                           // OB_SNAPSHOTS
)

// Has reports whether all bits in want are set in f.
func (f SubscriptionFlags) Has(want SubscriptionFlags) bool {
	return f&want == want
}

// With returns f with the given flags added.
func (f SubscriptionFlags) With(flags SubscriptionFlags) SubscriptionFlags {
	return f | flags
}

func (f SubscriptionFlags) String() string {
	if f == 0 {
		return "NONE"
	}
	s := ""
	add := func(flag SubscriptionFlags, name string) {
		if f.Has(flag) {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	add(SubTrades, "TRADES")
	add(SubNewLimitOrders, "NEW_LIMIT_ORDERS")
	add(SubCancelledLimitOrders, "CANCELLED_LIMIT_ORDERS")
	add(SubObSnapshots, "OB_SNAPSHOTS")
	return s
}
