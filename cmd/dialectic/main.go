// dialectic runs multi-model deliberation pipelines: thesis,
// antithesis, and synthesis stages planned as jobs and executed
// against configured AI providers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dialectic/internal/config"
	"dialectic/internal/logging"
	"dialectic/internal/pipeline"
	"dialectic/internal/provider"
	"dialectic/internal/store"
	"dialectic/internal/types"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dialectic",
	Short: "dialectic - multi-model deliberation pipeline",
	Long: `dialectic orchestrates structured deliberation across AI models.

Each session moves through stages: every model drafts a thesis, models
critique each other's theses as antitheses, and pairwise synthesis jobs
reconcile each thesis with its strongest critique. Stages are planned
as jobs, executed against provider APIs, and every artifact lands at a
deterministic canonical path.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logging.Initialize(cfg.Workspace); err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// planCmd enqueues a plan job for one stage
var planCmd = &cobra.Command{
	Use:   "plan [stage]",
	Short: "Enqueue a plan job for a pipeline stage",
	Long: `Enqueues a plan job that will fan out into execute jobs when the
worker runs. Simple stages need --model; strategy stages derive the
producing model per job from the stage inputs.

Example:
  dialectic plan thesis --project p1 --session s1 --model gpt-x --output thesis
  dialectic plan synthesis --project p1 --session s1 --strategy pairwise_by_origin --output synthesis`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

// workCmd drains the job queue
var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Process queued jobs until the queue is drained",
	RunE:  runWork,
}

// modelsCmd lists models per configured provider
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available from configured providers",
	RunE:  runModels,
}

// statusCmd reports one job's stored status
var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the stored status of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

// initCmd writes a starter config
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .dialectic/config.json",
	RunE:  runInit,
}

var (
	planProject   string
	planSession   string
	planIteration int
	planStrategy  string
	planModel     string
	planOutput    string
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to config file")

	planCmd.Flags().StringVar(&planProject, "project", "", "project id (required)")
	planCmd.Flags().StringVar(&planSession, "session", "", "session id (required)")
	planCmd.Flags().IntVar(&planIteration, "iteration", 1, "iteration number")
	planCmd.Flags().StringVar(&planStrategy, "strategy", "", "planning strategy for fan-out stages")
	planCmd.Flags().StringVar(&planModel, "model", "", "producing model slug for simple stages")
	planCmd.Flags().StringVar(&planOutput, "output", "", "contribution type to produce (required)")
	_ = planCmd.MarkFlagRequired("project")
	_ = planCmd.MarkFlagRequired("session")
	_ = planCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(planCmd, workCmd, modelsCmd, statusCmd, initCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	stage := args[0]
	if planStrategy == "" && planModel == "" {
		return fmt.Errorf("stage %q needs either --model or --strategy", stage)
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	job := pipeline.NewPlanJob(types.PlanPayload{
		ProjectID:  planProject,
		SessionID:  planSession,
		StageSlug:  stage,
		Iteration:  planIteration,
		Strategy:   planStrategy,
		ModelSlug:  planModel,
		OutputType: types.ContributionType(planOutput),
	})
	if err := db.Enqueue(cmd.Context(), job); err != nil {
		return err
	}

	logger.Info("Plan job enqueued",
		zap.String("job_id", job.ID),
		zap.String("stage", stage),
		zap.String("strategy", planStrategy))
	fmt.Printf("Enqueued plan job %s for stage %s\n", job.ID, stage)
	return nil
}

func runWork(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := store.NewFileStore(cfg.StorePath)
	if err != nil {
		return err
	}

	worker := pipeline.NewWorker(
		db,
		pipeline.NewProcessor(db),
		pipeline.NewIsolator(db),
		files,
		db,
		adapterResolver(),
	)

	logger.Info("Worker starting", zap.Int("concurrency", cfg.Concurrency))
	if err := worker.Run(cmd.Context(), cfg.Concurrency); err != nil {
		return err
	}
	logger.Info("Queue drained")
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	for name, pcfg := range cfg.Providers {
		adapter, err := provider.NewAdapter(provider.Provider(name), provider.Options{
			APIKey:  pcfg.APIKey,
			BaseURL: pcfg.BaseURL,
			Timeout: pcfg.RequestTimeout(),
		})
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			continue
		}
		models, err := adapter.ListModels(cmd.Context())
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			continue
		}
		fmt.Printf("%s:\n", name)
		for _, m := range models {
			fmt.Printf("  %s\n", m.ID)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	status, lastError, err := db.JobStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", args[0], status)
	if lastError != "" {
		fmt.Printf("  last error: %s\n", lastError)
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	starter := config.Default()
	starter.Models["gpt-x"] = types.ModelConfig{
		Provider:            "openai",
		APIIdentifier:       "gpt-4o",
		ContextWindowTokens: 128000,
	}
	starter.Providers["openai"] = config.ProviderConfig{Timeout: "120s"}
	if err := starter.Save(configPath); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configPath)
	return nil
}

// adapterResolver maps a job's model slug onto a configured provider
// adapter.
func adapterResolver() pipeline.AdapterResolver {
	return func(modelSlug string) (types.ModelAdapter, types.ModelConfig, error) {
		model, err := cfg.Model(modelSlug)
		if err != nil {
			return nil, types.ModelConfig{}, err
		}
		pcfg, err := cfg.Provider(model.Provider)
		if err != nil && model.Provider != string(provider.ProviderDummy) {
			return nil, types.ModelConfig{}, err
		}
		adapter, err := provider.NewAdapter(provider.Provider(model.Provider), provider.Options{
			APIKey:  pcfg.APIKey,
			BaseURL: pcfg.BaseURL,
			Timeout: pcfg.RequestTimeout(),
			Model:   model,
		})
		if err != nil {
			return nil, types.ModelConfig{}, err
		}
		return adapter, model, nil
	}
}
