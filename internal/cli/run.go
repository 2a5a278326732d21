package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/health"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/runner"
	"github.com/arbiterhq/arbiter/internal/store"
	"github.com/arbiterhq/arbiter/internal/webhook"
)

var (
	runVariant string
	runIsURL   bool
	runTimeout time.Duration
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Analyze a single input without the HTTP surface",
	Long: `Run executes one fact-verification analysis locally and prints the
result as JSON. The input is free text, or a URL with --url.

Example:
  arbiter run "The new vaccine reduces transmission by 80 percent"
  arbiter run --url https://example.com/article
  arbiter run --variant monolithic_canonical "GDP grew 3% last year"`,
	Args: cobra.ExactArgs(1),
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runVariant, "variant", string(model.VariantOrchestrated), "pipeline variant (orchestrated, monolithic_canonical, monolithic_dynamic)")
	runCmd.Flags().BoolVar(&runIsURL, "url", false, "treat the input as a URL to fetch")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 5*time.Minute, "overall analysis timeout")
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	emitter := webhook.NewEmitter(cfg.Webhook.URL, cfg.Webhook.Secret,
		time.Duration(cfg.Webhook.Timeout)*time.Second, logger)
	tracker := health.NewTracker(logger, webhook.NewNotifier(emitter, logger))

	strategies, err := buildStrategies(cfg, tracker, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	mem := store.NewMemory()
	r, err := runner.New(strategies, mem, logger)
	if err != nil {
		return err
	}

	inputType := model.InputText
	if runIsURL {
		inputType = model.InputURL
	}
	job := model.Job{
		ID:              uuid.NewString(),
		InputType:       inputType,
		InputValue:      args[0],
		PipelineVariant: model.PipelineVariant(runVariant),
		Status:          model.JobPending,
		EnqueuedAt:      time.Now(),
	}
	mem.Put(job)

	report := func(progress int, level model.LogLevel, message string) {
		if verbose {
			fmt.Fprintf(os.Stderr, "[%3d%%] %-5s %s\n", progress, level, message)
		}
	}

	if err := r.Execute(ctx, &job, report); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	result := mem.Result(job.ID)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
