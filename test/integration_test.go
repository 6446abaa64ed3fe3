package test

import (
	"math"
	"testing"

	"github.com/andrewsonin/simkernel/internal/metrics"
	"github.com/andrewsonin/simkernel/internal/scenario"
	"github.com/andrewsonin/simkernel/internal/sim"
)

var (
	fastKey = metrics.TraderKey{BrokerID: "br1", TraderID: "fast"}
	slowKey = metrics.TraderKey{BrokerID: "br1", TraderID: "slow"}
)

// TestIntegrationAllScenarios runs all scenarios end-to-end and checks
// that the simulation produces meaningful results.
func TestIntegrationAllScenarios(t *testing.T) {
	for _, name := range []string{"calm", "thin", "spike"} {
		t.Run(name, func(t *testing.T) {
			cfg := scenario.GetConfig(name, 42)
			dir := t.TempDir()

			runner, err := sim.NewRunner(cfg, dir, nil)
			if err != nil {
				t.Fatal(err)
			}

			result, err := runner.Run()
			if err != nil {
				t.Fatal(err)
			}

			if result.EventCount == 0 {
				t.Error("no events processed")
			}

			m, err := metrics.ComputeFromLog(result.LogPath)
			if err != nil {
				t.Fatal(err)
			}

			fast, ok := m[fastKey]
			if !ok {
				t.Fatal("no metrics for fast trader")
			}
			slow, ok := m[slowKey]
			if !ok {
				t.Fatal("no metrics for slow trader")
			}

			if fast.OrdersSent == 0 {
				t.Error("fast trader sent no orders")
			}
			if slow.OrdersSent == 0 {
				t.Error("slow trader sent no orders")
			}

			if fast.TotalFills == 0 {
				t.Error("fast trader has no fills")
			}
			if slow.TotalFills == 0 {
				t.Error("slow trader has no fills")
			}

			t.Logf("  Events: %d", result.EventCount)
			t.Logf("  Fast fills: %d (rate %.1f%%), Slow fills: %d (rate %.1f%%)",
				fast.TotalFills, fast.FillRate*100,
				slow.TotalFills, slow.FillRate*100)
			t.Logf("  Fast TTF: %.2f ms, Slow TTF: %.2f ms",
				fast.AvgTimeToFillNs, slow.AvgTimeToFillNs)
		})
	}
}

// TestLatencyImpactEvidence verifies that latency differences between
// traders produce measurable outcome differences.
func TestLatencyImpactEvidence(t *testing.T) {
	measurableDiffs := 0

	for _, name := range []string{"calm", "thin", "spike"} {
		t.Run(name, func(t *testing.T) {
			cfg := scenario.GetConfig(name, 42)
			dir := t.TempDir()

			runner, err := sim.NewRunner(cfg, dir, nil)
			if err != nil {
				t.Fatal(err)
			}

			result, err := runner.Run()
			if err != nil {
				t.Fatal(err)
			}

			m, err := metrics.ComputeFromLog(result.LogPath)
			if err != nil {
				t.Fatal(err)
			}

			fast := m[fastKey]
			slow := m[slowKey]
			if fast == nil || slow == nil {
				t.Fatal("missing trader metrics")
			}

			fillRateDeltaPP := (fast.FillRate - slow.FillRate) * 100
			slippageDeltaBps := fast.SlippageBps - slow.SlippageBps

			t.Logf("  Fill-rate delta: %.2f pp (fast - slow)", fillRateDeltaPP)
			t.Logf("  Slippage delta: %.2f bps (fast - slow)", slippageDeltaBps)

			// Moderate materiality threshold:
			// |fill-rate delta| >= 5 pp OR |slippage delta| >= 0.5 bps.
			if math.Abs(fillRateDeltaPP) >= 5 || math.Abs(slippageDeltaBps) >= 0.5 {
				measurableDiffs++
			}
		})
	}

	if measurableDiffs < 2 {
		t.Errorf("expected measurable latency impact in at least 2 scenarios, got %d", measurableDiffs)
	}
}
