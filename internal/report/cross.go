// Package report — cross-scenario consolidated comparison.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andrewsonin/simkernel/internal/metrics"
	"github.com/andrewsonin/simkernel/internal/scenario"
)

// ScenarioResult bundles a config with its computed metrics.
type ScenarioResult struct {
	Config  *scenario.Config
	Metrics map[metrics.TraderKey]*metrics.TraderMetrics
	RunDir  string
}

// CrossReport generates a consolidated report comparing metrics across
// scenarios. Generalized from the teacher's fixed fast/slow cross-scenario
// report (internal/report/cross.go) to an arbitrary trader roster per
// scenario: rather than a fast-minus-slow delta, each scenario is
// summarized by its roster-wide average and by the spread between its
// lowest- and highest-latency trader.
type CrossReport struct {
	results []ScenarioResult
	outDir  string
}

// NewCrossReport creates a cross-scenario report.
func NewCrossReport(results []ScenarioResult, outDir string) *CrossReport {
	return &CrossReport{results: results, outDir: outDir}
}

// Generate writes the consolidated report.
func (cr *CrossReport) Generate() error {
	if err := os.MkdirAll(cr.outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	content := cr.renderMarkdown()
	reportPath := filepath.Join(cr.outDir, "cross-scenario-report.md")
	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write cross report: %w", err)
	}

	dataPath := filepath.Join(cr.outDir, "cross-scenario-metrics.json")
	data, err := json.MarshalIndent(cr.buildSummary(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cross summary: %w", err)
	}
	return os.WriteFile(dataPath, data, 0644)
}

type scenarioSummary struct {
	Scenario string                             `json:"scenario"`
	Traders  map[string]*metrics.TraderMetrics `json:"traders"`
}

func (cr *CrossReport) buildSummary() []scenarioSummary {
	var summaries []scenarioSummary
	for _, r := range cr.results {
		traders := make(map[string]*metrics.TraderMetrics, len(r.Metrics))
		for k, m := range r.Metrics {
			traders[fmt.Sprintf("%s/%s", k.BrokerID, k.TraderID)] = m
		}
		summaries = append(summaries, scenarioSummary{Scenario: r.Config.Name, Traders: traders})
	}
	return summaries
}

// scenarioStats aggregates one scenario's roster into roster-wide averages
// plus the spread between its lowest- and highest-latency trader.
type scenarioStats struct {
	name          string
	avgFillRate   float64
	avgSlippage   float64
	avgTTF        float64
	totalFills    int
	totalQty      int64
	fastestKey    metrics.TraderKey
	slowestKey    metrics.TraderKey
	fillRateDelta float64 // fastest - slowest
	slippageDelta float64
	ttfDelta      float64
}

func (cr *CrossReport) computeStats(r ScenarioResult) (scenarioStats, bool) {
	if len(r.Metrics) == 0 {
		return scenarioStats{}, false
	}

	type latencyKey struct {
		key     metrics.TraderKey
		latency int64
		m       *metrics.TraderMetrics
	}
	var rows []latencyKey
	for k, m := range r.Metrics {
		var lat int64
		for _, t := range r.Config.Traders {
			if t.BrokerID == string(k.BrokerID) && t.ID == string(k.TraderID) {
				lat = t.BaseLatencyMs
				break
			}
		}
		rows = append(rows, latencyKey{key: k, latency: lat, m: m})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].latency != rows[j].latency {
			return rows[i].latency < rows[j].latency
		}
		return rows[i].key.TraderID < rows[j].key.TraderID
	})

	stats := scenarioStats{name: r.Config.Name}
	for _, row := range rows {
		stats.avgFillRate += row.m.FillRate
		stats.avgSlippage += row.m.SlippageBps
		stats.avgTTF += row.m.AvgTimeToFillNs
		stats.totalFills += row.m.TotalFills
		stats.totalQty += row.m.TotalQtyFilled
	}
	n := float64(len(rows))
	stats.avgFillRate = stats.avgFillRate / n * 100
	stats.avgSlippage /= n
	stats.avgTTF /= n

	fastest, slowest := rows[0], rows[len(rows)-1]
	stats.fastestKey = fastest.key
	stats.slowestKey = slowest.key
	stats.fillRateDelta = (fastest.m.FillRate - slowest.m.FillRate) * 100
	stats.slippageDelta = fastest.m.SlippageBps - slowest.m.SlippageBps
	stats.ttfDelta = fastest.m.AvgTimeToFillNs - slowest.m.AvgTimeToFillNs

	return stats, true
}

func (cr *CrossReport) renderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Cross-Scenario Execution Quality Comparison\n\n")
	sb.WriteString("This report consolidates results from multiple market scenarios to show how latency advantages vary with market conditions.\n\n")

	var stats []scenarioStats
	for _, r := range cr.results {
		if s, ok := cr.computeStats(r); ok {
			stats = append(stats, s)
		}
	}

	sb.WriteString("## Roster-Wide Averages\n\n")
	sb.WriteString("| Scenario | Avg Fill Rate (%) | Avg Slippage (bps) | Avg TTF (ms) | Total Fills | Total Qty |\n")
	sb.WriteString("|----------|--------------------|--------------------|--------------|-------------|-----------|\n")
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("| %s | %.1f | %.2f | %.1f | %d | %d |\n",
			s.name, s.avgFillRate, s.avgSlippage, s.avgTTF, s.totalFills, s.totalQty))
	}
	sb.WriteString("\n")

	sb.WriteString("## Latency Spread (Fastest Trader − Slowest Trader)\n\n")
	sb.WriteString("| Scenario | Fastest | Slowest | Fill Rate Δ (pp) | Slippage Δ (bps) | TTF Δ (ms) |\n")
	sb.WriteString("|----------|---------|---------|-------------------|-------------------|------------|\n")
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("| %s | %s/%s | %s/%s | %+.1f | %+.2f | %+.1f |\n",
			s.name, s.fastestKey.BrokerID, s.fastestKey.TraderID,
			s.slowestKey.BrokerID, s.slowestKey.TraderID,
			s.fillRateDelta, s.slippageDelta, s.ttfDelta))
	}
	sb.WriteString("\n")

	sb.WriteString("## Cross-Scenario Analysis\n\n")
	sb.WriteString(cr.generateCrossAnalysis(stats))

	return sb.String()
}

func (cr *CrossReport) generateCrossAnalysis(stats []scenarioStats) string {
	var sb strings.Builder

	if len(stats) == 0 {
		sb.WriteString("No scenario data available for comparison.\n")
		return sb.String()
	}

	sb.WriteString("### Where Latency Matters Most\n\n")

	maxFill := stats[0]
	for _, s := range stats[1:] {
		if abs(s.fillRateDelta) > abs(maxFill.fillRateDelta) {
			maxFill = s
		}
	}
	sb.WriteString(fmt.Sprintf("- **Fill Rate**: The largest latency-driven gap appears in **%s** (%+.1f pp between fastest and slowest trader), ",
		maxFill.name, maxFill.fillRateDelta))
	sb.WriteString("indicating this market regime amplifies the latency advantage most for execution likelihood.\n")

	maxSlip := stats[0]
	for _, s := range stats[1:] {
		if abs(s.slippageDelta) > abs(maxSlip.slippageDelta) {
			maxSlip = s
		}
	}
	sb.WriteString(fmt.Sprintf("- **Slippage**: The **%s** scenario shows the widest slippage gap (%+.2f bps), ",
		maxSlip.name, maxSlip.slippageDelta))
	sb.WriteString("suggesting execution price quality diverges most under these conditions.\n")

	sb.WriteString("\n### Key Takeaways\n\n")
	sb.WriteString("1. Latency advantages compound: faster arrival → better queue position → higher fill rate → less slippage.\n")
	sb.WriteString("2. Thin or volatile markets amplify the gap because liquidity is scarce and replenished slowly.\n")
	sb.WriteString("3. In calm, deep markets the advantage exists but is smaller in magnitude — depth buffers the impact.\n")

	return sb.String()
}

// PrintCrossSummary prints a condensed cross-scenario summary to stdout.
func PrintCrossSummary(results []ScenarioResult) {
	fmt.Println("\n=== Cross-Scenario Comparison ===")
	fmt.Println()
	fmt.Printf("  %-12s %14s %14s %14s\n", "Scenario", "Fill Rate(%)", "Slip(bps)", "Avg TTF(ms)")
	fmt.Printf("  %-12s %14s %14s %14s\n",
		strings.Repeat("-", 12), strings.Repeat("-", 14), strings.Repeat("-", 14), strings.Repeat("-", 14))

	cr := &CrossReport{results: results}
	for _, r := range results {
		s, ok := cr.computeStats(r)
		if !ok {
			continue
		}
		fmt.Printf("  %-12s %14.1f %14.2f %14.1f\n", s.name, s.avgFillRate, s.avgSlippage, s.avgTTF)
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
