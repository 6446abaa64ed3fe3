package replay

import (
	"math/rand"

	"github.com/andrewsonin/simkernel/internal/domain"
)

// PeriodicObSnapshotDelay broadcasts a snapshot every Period ns,
// unconditionally — the simplest ObSnapshotDelayScheduler, and the
// reference one wired into internal/sim/runner.go. A run can provide its
// own ObSnapshotDelayScheduler (e.g. jittered, or stopping after N
// broadcasts) without touching Replay itself.
type PeriodicObSnapshotDelay struct {
	Period int64
}

func (p PeriodicObSnapshotDelay) NextDelay(domain.ExchangeID, domain.TradedPair, *rand.Rand, domain.DateTime) (int64, bool) {
	if p.Period <= 0 {
		return 0, false
	}
	return p.Period, true
}
