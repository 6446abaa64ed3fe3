// Command simkernel drives the simulator from the command line: run a
// scenario, print or regenerate its report, sweep the built-in scenarios for
// a cross-scenario comparison, or verify that replaying a logged run
// reproduces its recorded event log hash.
package main

import (
	"crypto/sha256"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/andrewsonin/simkernel/internal/metrics"
	"github.com/andrewsonin/simkernel/internal/report"
	"github.com/andrewsonin/simkernel/internal/scenario"
	"github.com/andrewsonin/simkernel/internal/sim"
	"github.com/andrewsonin/simkernel/internal/telemetry"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "demo":
		err = cmdDemo(os.Args[2:])
	case "replay":
		err = cmdReplay(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`simkernel — deterministic discrete-event execution fairness simulator

Usage:
  simkernel run --scenario=<name|path> --seed=<n> [--out=<dir>] [--metrics-addr=<host:port>]
  simkernel report --last-run | --run-dir=<dir>
  simkernel demo --seed=<n> [--out=<dir>]
  simkernel replay --run-dir=<dir>

Commands:
  run      Execute one scenario to completion, writing its event log, config
           snapshot and execution-quality report under --out.
  report   Re-print a previously completed run's report and plots.
  demo     Run calm/thin/spike back to back and print a cross-scenario
           comparison.
  replay   Reload a completed run's config, re-execute it, and confirm the
           recomputed event log hash matches the one recorded at run time.

Built-in scenario names for --scenario: calm, thin, spike. A path to a YAML
manifest is also accepted.`)
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scenarioName := fs.String("scenario", "calm", "built-in scenario name or path to a YAML manifest")
	seed := fs.Int64("seed", 1, "random seed")
	outDir := fs.String("out", "runs", "base directory for run output")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address for the duration of the run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadScenario(*scenarioName, *seed)
	if err != nil {
		return err
	}

	var instr *telemetry.Metrics
	if *metricsAddr != "" {
		instr = telemetry.New()
		srv := &http.Server{Addr: *metricsAddr, Handler: instr.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
		log.Info().Str("addr", *metricsAddr).Msg("serving metrics")
	}

	runner, err := sim.NewRunner(cfg, *outDir, instr)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	log.Info().Str("scenario", cfg.Name).Int64("seed", cfg.Seed).Msg("starting run")
	result, err := runner.Run()
	if err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}
	log.Info().
		Str("run_id", result.RunID).
		Uint64("events", result.EventCount).
		Dur("wall", result.Duration).
		Str("log_hash", result.LogHash).
		Msg("run complete")

	fmt.Println()
	fmt.Printf("=== %s (seed %d) ===\n", cfg.Name, cfg.Seed)
	fmt.Printf("run id:   %s\n", result.RunID)
	fmt.Printf("events:   %d\n", result.EventCount)
	fmt.Printf("log hash: %s\n", result.LogHash)
	fmt.Printf("output:   %s\n\n", result.OutputDir)
	report.PrintSummary(cfg, result.Metrics)

	rep := report.NewReport(cfg, result.Metrics, result.OutputDir)
	if err := rep.Generate(); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Printf("\nreport written to %s\n", filepath.Join(result.OutputDir, "report.md"))
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	lastRun := fs.Bool("last-run", false, "use the most recently completed run")
	runDir := fs.String("run-dir", "", "path to a run's output directory")
	runID := fs.String("run-id", "", "unused placeholder for a run id lookup; prefer --run-dir")
	baseDir := fs.String("out", "runs", "base directory runs are written under")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := *runDir
	if *lastRun {
		pointer := filepath.Join(*baseDir, "last-run")
		data, err := os.ReadFile(pointer)
		if err != nil {
			return fmt.Errorf("read last-run pointer: %w", err)
		}
		dir = string(data)
	}
	if dir == "" {
		return fmt.Errorf("one of --last-run or --run-dir is required (--run-id %q not resolvable without a run index)", *runID)
	}

	reportPath := filepath.Join(dir, "report.md")
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}
	fmt.Println(string(data))

	plotPath := filepath.Join(dir, "plots.txt")
	if plots, err := os.ReadFile(plotPath); err == nil {
		fmt.Println(string(plots))
	}
	return nil
}

func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	seed := fs.Int64("seed", 1, "random seed shared across all demo scenarios")
	outDir := fs.String("out", "runs", "base directory for run output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var results []report.ScenarioResult
	for _, name := range []string{"calm", "thin", "spike"} {
		cfg := scenario.GetConfig(name, *seed)
		runner, err := sim.NewRunner(cfg, *outDir, nil)
		if err != nil {
			return fmt.Errorf("create runner for %s: %w", name, err)
		}
		log.Info().Str("scenario", name).Msg("starting run")
		result, err := runner.Run()
		if err != nil {
			return fmt.Errorf("run %s: %w", name, err)
		}
		rep := report.NewReport(cfg, result.Metrics, result.OutputDir)
		if err := rep.Generate(); err != nil {
			return fmt.Errorf("generate report for %s: %w", name, err)
		}
		results = append(results, report.ScenarioResult{Config: cfg, Metrics: result.Metrics, RunDir: result.OutputDir})
	}

	report.PrintCrossSummary(results)
	cr := report.NewCrossReport(results, *outDir)
	if err := cr.Generate(); err != nil {
		return fmt.Errorf("generate cross report: %w", err)
	}
	fmt.Printf("\ncross-scenario report written under %s\n", *outDir)
	return nil
}

func cmdReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	runDir := fs.String("run-dir", "", "path to a run's output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runDir == "" {
		return fmt.Errorf("--run-dir is required")
	}

	cfgPath := filepath.Join(*runDir, "config.json")
	cfg, err := loadConfigJSON(cfgPath)
	if err != nil {
		return fmt.Errorf("load recorded config: %w", err)
	}

	recordedLogPath := filepath.Join(*runDir, "events.jsonl")
	recordedHash, err := hashFile(recordedLogPath)
	if err != nil {
		return fmt.Errorf("hash recorded log: %w", err)
	}

	recordedMetrics, err := metrics.ComputeFromLog(recordedLogPath)
	if err != nil {
		return fmt.Errorf("compute metrics from recorded log: %w", err)
	}

	replayDir, err := os.MkdirTemp("", "simkernel-replay-")
	if err != nil {
		return fmt.Errorf("create replay scratch dir: %w", err)
	}
	defer os.RemoveAll(replayDir)

	runner, err := sim.NewRunner(cfg, replayDir, nil)
	if err != nil {
		return fmt.Errorf("create replay runner: %w", err)
	}
	result, err := runner.Run()
	if err != nil {
		return fmt.Errorf("re-run scenario: %w", err)
	}

	fmt.Printf("recorded log hash: %s\n", recordedHash)
	fmt.Printf("replay  log hash: %s\n", result.LogHash)
	if recordedHash != result.LogHash {
		fmt.Println("MISMATCH: replay did not reproduce the recorded event log")
		return fmt.Errorf("deterministic replay verification failed for %s", *runDir)
	}
	fmt.Println("MATCH: replay reproduced the recorded event log exactly")

	mismatches := compareMetrics(recordedMetrics, result.Metrics)
	if len(mismatches) > 0 {
		for _, m := range mismatches {
			fmt.Println("  " + m)
		}
		return fmt.Errorf("recomputed metrics diverge from the recorded run")
	}
	return nil
}

func loadScenario(nameOrPath string, seed int64) (*scenario.Config, error) {
	if cfg := scenario.GetConfig(nameOrPath, seed); cfg != nil {
		return cfg, nil
	}
	cfg, err := scenario.Load(nameOrPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario %q: %w", nameOrPath, err)
	}
	return cfg, nil
}

func loadConfigJSON(path string) (*scenario.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &scenario.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// hashFile mirrors internal/sim.Runner's own log hashing so replay
// verification compares like with like.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h), nil
}

// compareMetrics reports any trader whose recomputed metrics diverge from
// the recorded run's, by fill count and total quantity filled — the two
// figures a non-deterministic replay would disturb first.
func compareMetrics(recorded, replayed map[metrics.TraderKey]*metrics.TraderMetrics) []string {
	var mismatches []string
	for key, want := range recorded {
		got, ok := replayed[key]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("trader %s/%s missing from replay", key.BrokerID, key.TraderID))
			continue
		}
		if want.TotalFills != got.TotalFills || want.TotalQtyFilled != got.TotalQtyFilled {
			mismatches = append(mismatches, fmt.Sprintf(
				"trader %s/%s: recorded fills=%d qty=%d, replay fills=%d qty=%d",
				key.BrokerID, key.TraderID, want.TotalFills, want.TotalQtyFilled, got.TotalFills, got.TotalQtyFilled))
		}
	}
	return mismatches
}
