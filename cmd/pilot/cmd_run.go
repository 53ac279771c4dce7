package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"promptpilot/internal/agent"
	"promptpilot/internal/metrics"
)

var showMetrics bool

var runCmd = &cobra.Command{
	Use:   "run [request...]",
	Short: "Process one request through the pipeline",
	Long: `Runs a single request end to end: plan, synthesize, execute with
retry and recovery, quality-check, and record the outcome.

Example:
  pilot run "explain what this regex does: ^a+b*$"
  pilot run -s mysession -l go "review this function for bugs"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print operation metrics after the run")
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	primary, fallback, err := buildClients(ctx, cfg)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	a, err := agent.New(cfg.Agent, agent.Deps{
		Client:   primary,
		Fallback: fallback,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.StartSession(sessionID)

	request := joinArgs(args)
	logger.Debug("processing request",
		zap.String("session", sessionID),
		zap.Int("request_len", len(request)))

	res := a.Process(ctx, request, agent.RequestContext{
		SessionID: sessionID,
		Language:  language,
	})

	printResult(res)
	if showMetrics {
		printMetrics(recorder.Stats())
	}

	// Failures surface through the exit code after cleanup hooks run;
	// exiting here would skip Close and the post-run logger sync.
	if !res.Success {
		exitCode = 1
	}
	return nil
}

func printResult(res *agent.Result) {
	if res.Success {
		fmt.Println(res.Response)
	} else {
		fmt.Fprintln(os.Stderr, "request failed:", res.Error)
		if res.Response != "" {
			fmt.Fprintln(os.Stderr, res.Response)
		}
	}

	fmt.Fprintf(os.Stderr, "\n--- %s in %s, %d attempt(s)",
		outcomeWord(res.Success), res.Metadata.Duration.Round(time.Millisecond), res.Metadata.Attempts)
	if res.Metadata.QualityScore != nil {
		fmt.Fprintf(os.Stderr, ", quality %.0f", *res.Metadata.QualityScore)
	}
	if res.Metadata.ErrorRecoveryUsed {
		fmt.Fprintf(os.Stderr, ", recovered")
	}
	fmt.Fprintln(os.Stderr)

	for _, adaptation := range res.Metadata.AdaptationsApplied {
		fmt.Fprintln(os.Stderr, "  adaptation:", adaptation)
	}
	if res.QualityReport != nil {
		for _, rec := range res.QualityReport.Recommendations {
			fmt.Fprintln(os.Stderr, "  note:", rec)
		}
	}
}

func outcomeWord(success bool) string {
	if success {
		return "ok"
	}
	return "failed"
}

func printMetrics(snap metrics.Snapshot) {
	fmt.Fprintf(os.Stderr, "\noperations: %d total, %d failed, avg %s\n",
		snap.Total.Count, snap.Total.Failures, snap.Total.Avg().Round(time.Millisecond))
	for op, stats := range snap.ByOperation {
		fmt.Fprintf(os.Stderr, "  %-10s count=%d failures=%d avg=%s max=%s\n",
			op, stats.Count, stats.Failures, stats.Avg().Round(time.Millisecond), stats.MaxDuration.Round(time.Millisecond))
	}
}
