// Package report generates the per-run execution quality report.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andrewsonin/simkernel/internal/metrics"
	"github.com/andrewsonin/simkernel/internal/scenario"
)

// Report generates and writes the execution-quality report for a run.
// Generalized from the teacher's fixed fast/slow two-trader report
// (internal/report/report.go) to an arbitrary trader roster, keyed by
// metrics.TraderKey.
type Report struct {
	config  *scenario.Config
	traders []*metrics.TraderMetrics // sorted by (BrokerID, TraderID) for determinism
	outDir  string
}

// NewReport creates a report generator from a completed run's config and
// computed metrics.
func NewReport(cfg *scenario.Config, metricsMap map[metrics.TraderKey]*metrics.TraderMetrics, outDir string) *Report {
	traders := make([]*metrics.TraderMetrics, 0, len(metricsMap))
	for _, m := range metricsMap {
		traders = append(traders, m)
	}
	sort.Slice(traders, func(i, j int) bool {
		if traders[i].BrokerID != traders[j].BrokerID {
			return traders[i].BrokerID < traders[j].BrokerID
		}
		return traders[i].TraderID < traders[j].TraderID
	})
	return &Report{config: cfg, traders: traders, outDir: outDir}
}

// Generate produces the full report: metrics.json, report.md, plots.txt.
func (r *Report) Generate() error {
	metricsPath := filepath.Join(r.outDir, "metrics.json")
	metricsData, err := json.MarshalIndent(r.traders, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(metricsPath, metricsData, 0644); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	reportPath := filepath.Join(r.outDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(r.renderMarkdown()), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	plotPath := filepath.Join(r.outDir, "plots.txt")
	if err := os.WriteFile(plotPath, []byte(r.renderPlots()), 0644); err != nil {
		return fmt.Errorf("write plots: %w", err)
	}

	return nil
}

func (r *Report) traderConfig(key metrics.TraderKey) *scenario.TraderConfig {
	for i := range r.config.Traders {
		t := &r.config.Traders[i]
		if t.BrokerID == string(key.BrokerID) && t.ID == string(key.TraderID) {
			return t
		}
	}
	return nil
}

func (r *Report) renderMarkdown() string {
	var sb strings.Builder

	sb.WriteString("# Execution Quality Report\n\n")
	sb.WriteString(fmt.Sprintf("**Scenario:** %s | **Seed:** %d\n\n", r.config.Name, r.config.Seed))

	sb.WriteString("## Latency Configuration\n\n")
	sb.WriteString("| Trader | Broker | Base Latency (ms) | Jitter (ms) |\n")
	sb.WriteString("|--------|--------|-------------------|-------------|\n")
	for _, t := range r.config.Traders {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", t.ID, t.BrokerID, t.BaseLatencyMs, t.JitterMs))
	}
	sb.WriteString("\n")

	sb.WriteString("## Execution Metrics\n\n")
	sb.WriteString("| Trader | Orders Sent | Fills | Qty Filled | Fill Rate (%) | Avg Exec Price | Slippage (bps) | Avg TTF (ms) | Canceled w/o Fill |\n")
	sb.WriteString("|--------|-------------|-------|------------|---------------|-----------------|-----------------|--------------|--------------------|\n")
	for _, m := range r.traders {
		sb.WriteString(fmt.Sprintf("| %s/%s | %d | %d | %d | %.2f | %.4f | %.2f | %.2f | %d |\n",
			m.BrokerID, m.TraderID, m.OrdersSent, m.TotalFills, m.TotalQtyFilled,
			m.FillRate*100, m.AvgExecPrice, m.SlippageBps, m.AvgTimeToFillNs, m.CanceledBeforeFill))
	}
	sb.WriteString("\n")

	sb.WriteString("## Time-to-Fill Distribution (ms)\n\n")
	sb.WriteString("| Trader | P25 | P50 | P75 | P90 | P99 |\n")
	sb.WriteString("|--------|-----|-----|-----|-----|-----|\n")
	for _, m := range r.traders {
		sb.WriteString(fmt.Sprintf("| %s/%s | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
			m.BrokerID, m.TraderID,
			percentile(m.TimeToFillDist, 0.25), percentile(m.TimeToFillDist, 0.50),
			percentile(m.TimeToFillDist, 0.75), percentile(m.TimeToFillDist, 0.90),
			percentile(m.TimeToFillDist, 0.99)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Latency Ranking\n\n")
	sb.WriteString(r.latencyRanking())

	return sb.String()
}

// latencyRanking orders traders by configured base latency and reports
// whether fill rate and slippage improve in that same order, the
// data-driven replacement for the teacher's hardcoded two-trader
// fast-vs-slow narrative.
func (r *Report) latencyRanking() string {
	if len(r.traders) == 0 {
		return "No trader metrics available.\n"
	}

	type ranked struct {
		key     metrics.TraderKey
		latency int64
		m       *metrics.TraderMetrics
	}
	var rows []ranked
	for _, m := range r.traders {
		tc := r.traderConfig(m.TraderKey)
		var lat int64
		if tc != nil {
			lat = tc.BaseLatencyMs
		}
		rows = append(rows, ranked{key: m.TraderKey, latency: lat, m: m})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].latency < rows[j].latency })

	var sb strings.Builder
	sb.WriteString("| Rank | Trader | Base Latency (ms) | Fill Rate (%) | Slippage (bps) |\n")
	sb.WriteString("|------|--------|--------------------|-----------------|-----------------|\n")
	for i, row := range rows {
		sb.WriteString(fmt.Sprintf("| %d | %s/%s | %d | %.2f | %.2f |\n",
			i+1, row.key.BrokerID, row.key.TraderID, row.latency, row.m.FillRate*100, row.m.SlippageBps))
	}
	sb.WriteString("\n")

	if len(rows) >= 2 {
		fastest, slowest := rows[0], rows[len(rows)-1]
		fillDelta := (fastest.m.FillRate - slowest.m.FillRate) * 100
		slipDelta := fastest.m.SlippageBps - slowest.m.SlippageBps
		sb.WriteString(fmt.Sprintf(
			"Lowest-latency trader (%s/%s, %d ms) vs. highest-latency trader (%s/%s, %d ms): "+
				"fill rate delta %+.1f pp, slippage delta %+.2f bps.\n",
			fastest.key.BrokerID, fastest.key.TraderID, fastest.latency,
			slowest.key.BrokerID, slowest.key.TraderID, slowest.latency,
			fillDelta, slipDelta))
	}

	return sb.String()
}

func (r *Report) renderPlots() string {
	var sb strings.Builder

	sb.WriteString("=== Slippage Distribution (ASCII Histogram) ===\n\n")
	for _, m := range r.traders {
		if len(m.SlippageValues) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s/%s:\n", m.BrokerID, m.TraderID))
		sb.WriteString(asciiHistogram(m.SlippageValues, 20))
		sb.WriteString("\n")
	}

	sb.WriteString("=== Time-to-Fill CDF (ASCII) ===\n\n")
	for _, m := range r.traders {
		if len(m.TimeToFillDist) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s/%s:\n", m.BrokerID, m.TraderID))
		sb.WriteString(asciiCDF(m.TimeToFillDist))
		sb.WriteString("\n")
	}

	return sb.String()
}

// asciiHistogram draws a simple text histogram.
func asciiHistogram(values []float64, bins int) string {
	if len(values) == 0 {
		return "  (no data)\n"
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	if minV == maxV {
		return fmt.Sprintf("  all values = %.4f\n", minV)
	}

	binWidth := (maxV - minV) / float64(bins)
	counts := make([]int, bins)
	maxCount := 0

	for _, v := range values {
		idx := int((v - minV) / binWidth)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
		if counts[idx] > maxCount {
			maxCount = counts[idx]
		}
	}

	var sb strings.Builder
	barMax := 40
	for i, c := range counts {
		lo := minV + float64(i)*binWidth
		hi := lo + binWidth
		barLen := 0
		if maxCount > 0 {
			barLen = c * barMax / maxCount
		}
		bar := strings.Repeat("█", barLen)
		sb.WriteString(fmt.Sprintf("  %+8.4f to %+8.4f | %s (%d)\n", lo, hi, bar, c))
	}
	return sb.String()
}

// asciiCDF draws a simple text CDF.
func asciiCDF(sorted []float64) string {
	if len(sorted) == 0 {
		return "  (no data)\n"
	}

	var sb strings.Builder
	steps := 10
	for i := 1; i <= steps; i++ {
		p := float64(i) / float64(steps)
		val := percentile(sorted, p)
		barLen := int(p * 40)
		bar := strings.Repeat("▓", barLen)
		sb.WriteString(fmt.Sprintf("  P%3.0f: %8.2f ms | %s\n", p*100, val, bar))
	}
	return sb.String()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := int(math.Ceil(idx))
	if lower == upper || upper >= len(sorted) {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// PrintSummary writes a brief per-trader summary table to stdout.
func PrintSummary(cfg *scenario.Config, m map[metrics.TraderKey]*metrics.TraderMetrics) {
	if len(m) == 0 {
		fmt.Println("  No trader metrics available.")
		return
	}

	keys := make([]metrics.TraderKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].BrokerID != keys[j].BrokerID {
			return keys[i].BrokerID < keys[j].BrokerID
		}
		return keys[i].TraderID < keys[j].TraderID
	})

	fmt.Printf("  %-20s %12s %12s %12s %12s\n", "Trader", "Fill %", "Avg Price", "Slip(bps)", "Avg TTF(ms)")
	fmt.Printf("  %-20s %12s %12s %12s %12s\n",
		strings.Repeat("-", 20), strings.Repeat("-", 12), strings.Repeat("-", 12), strings.Repeat("-", 12), strings.Repeat("-", 12))

	for _, k := range keys {
		tm := m[k]
		fmt.Printf("  %-20s %12.2f %12.4f %12.2f %12.2f\n",
			fmt.Sprintf("%s/%s", k.BrokerID, k.TraderID),
			tm.FillRate*100, tm.AvgExecPrice, tm.SlippageBps, tm.AvgTimeToFillNs)
	}
}
