// Command kigalisim runs a kigaliscript program against the simulation
// engine and writes results as CSV (§6.2). It demonstrates the
// concurrency model described in §5: each trial gets its own
// independent Engine instance — no shared mutable state — dispatched
// across a small worker pool.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/example/kigalisim/internal/config"
	"github.com/example/kigalisim/internal/csvio"
	"github.com/example/kigalisim/internal/engine"
	"github.com/example/kigalisim/internal/kigaliscript"
	"github.com/example/kigalisim/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: kigalisim <run|validate> [args]")
		os.Exit(1)
	}

	cfg := config.MustLoad()
	logger := logging.New(logging.Config{
		Level:     mustParseLevel(cfg.LogLevel),
		Format:    logging.Format(cfg.LogFormat),
		Output:    os.Stderr,
		AddSource: cfg.LogSource,
	})

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(logger, cfg, os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	scriptPath := fs.String("script", "", "path to a kigaliscript YAML fixture")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scriptPath == "" {
		return fmt.Errorf("validate: -script is required")
	}

	prog, err := kigaliscript.LoadFile(*scriptPath)
	if err != nil {
		return err
	}
	fmt.Printf("OK: %d operations, years %d-%d, %d trial(s)\n", len(prog.Operations), prog.StartYear, prog.EndYear, trialCount(prog))
	return nil
}

func runCommand(logger *slog.Logger, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scriptPath := fs.String("script", "", "path to a kigaliscript YAML fixture")
	outPath := fs.String("out", "", "CSV output path (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scriptPath == "" {
		return fmt.Errorf("run: -script is required")
	}

	prog, err := kigaliscript.LoadFile(*scriptPath)
	if err != nil {
		return err
	}

	results, err := runTrials(logger, cfg, prog)
	if err != nil {
		return err
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csvio.NewWriter(out)
	for _, r := range results {
		if err := w.WriteResult(prog.ScenarioName, r.trial, r.result); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return w.Flush()
}

type trialResult struct {
	trial  int
	result engine.EngineResult
}

// runTrials executes each trial's program against its own Engine
// instance on a worker pool sized max(2, cores-1) (§5): the core is
// single-threaded and non-reentrant per instance, so parallelism comes
// from running N independent instances rather than sharing one.
func runTrials(logger *slog.Logger, cfg config.Config, prog kigaliscript.Program) ([]trialResult, error) {
	trials := trialCount(prog)
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = max(2, runtime.NumCPU()-1)
	}

	jobs := make(chan int)
	errCh := make(chan error, trials)

	var mu sync.Mutex
	var out []trialResult

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workerLogger := logger.With("worker", workerID)
			for trial := range jobs {
				rows, err := runOneTrials(workerLogger, prog, trial)
				if err != nil {
					errCh <- fmt.Errorf("trial %d: %w", trial, err)
					continue
				}
				mu.Lock()
				out = append(out, rows...)
				mu.Unlock()
			}
		}(i)
	}

	for t := 0; t < trials; t++ {
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		return nil, err
	}
	return out, nil
}

// runOneTrials applies the whole program to a fresh Engine and returns
// the final-year result for every substance it touched. A fuller
// per-year export would interleave result capture into the script
// itself; this CLI reports the end state reached after the last
// incrementYear.
func runOneTrials(logger *slog.Logger, prog kigaliscript.Program, trial int) ([]trialResult, error) {
	e := engine.NewEngine(prog.StartYear, prog.EndYear, engine.WithLogger(logger))
	if err := prog.Apply(e); err != nil {
		return nil, err
	}

	out := make([]trialResult, 0, len(e.Substances()))
	for _, sub := range e.Substances() {
		r, err := e.Results(sub.App, sub.Substance)
		if err != nil {
			return nil, err
		}
		r.TrialNumber = trial
		r.ScenarioName = prog.ScenarioName
		out = append(out, trialResult{trial: trial, result: r})
	}
	return out, nil
}

func trialCount(prog kigaliscript.Program) int {
	if prog.Trials <= 0 {
		return 1
	}
	return prog.Trials
}

func mustParseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
