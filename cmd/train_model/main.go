package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tabpredict/artifact"
	"tabpredict/config"
	"tabpredict/db"
	"tabpredict/logging"
	"tabpredict/ml"
)

type options struct {
	configPath string
	task       string
	insurance  string
	diabetes   string
	modelsDir  string
	reportsDir string
	seed       int64
	trees      int
	noClean    bool
	noRegistry bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "train_model",
		Short: "Train the insurance and diabetes models and write their artifacts",
		Long: `train_model fits the insurance charges regressor and the diabetes risk
classifier from CSV files, then writes the served pipelines, the diabetes
decision threshold and the feature importance reports.

Example:
  train_model --task all
  train_model --task diabetes --config config.yaml --seed 7`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVarP(&opts.task, "task", "t", "all", "task to train: all, insurance or diabetes")
	f.StringVar(&opts.insurance, "insurance-data", "", "insurance CSV (overrides config)")
	f.StringVar(&opts.diabetes, "diabetes-data", "", "diabetes CSV (overrides config)")
	f.StringVar(&opts.modelsDir, "models-dir", "", "artifact directory (overrides config)")
	f.StringVar(&opts.reportsDir, "reports-dir", "", "report directory (overrides config)")
	f.Int64Var(&opts.seed, "seed", 0, "random seed (overrides config)")
	f.IntVar(&opts.trees, "trees", 0, "trees in the diagnostic forest (overrides config)")
	f.BoolVar(&opts.noClean, "no-clean", false, "skip row cleaning rules")
	f.BoolVar(&opts.noRegistry, "no-registry", false, "do not record the run in the training database")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	tasks, err := selectTasks(opts.task)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Database.Path != "" && !opts.noRegistry {
		if err := db.InitDB(cfg.Database.Path); err != nil {
			return fmt.Errorf("open training registry: %w", err)
		}
		defer db.Close()
	}

	t := &trainer{
		cfg:    cfg,
		store:  artifact.NewStore(cfg.Artifacts.ModelsDir, cfg.Artifacts.ReportsDir, logger),
		logger: logger,
	}
	if err := t.runAll(tasks); err != nil {
		logger.Error("training finished with failures", zap.Error(err))
		return err
	}
	logger.Info("training finished", zap.Strings("tasks", tasks))
	return nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config, opts *options) {
	if opts.insurance != "" {
		cfg.Data.Insurance = opts.insurance
	}
	if opts.diabetes != "" {
		cfg.Data.Diabetes = opts.diabetes
	}
	if opts.modelsDir != "" {
		cfg.Artifacts.ModelsDir = opts.modelsDir
	}
	if opts.reportsDir != "" {
		cfg.Artifacts.ReportsDir = opts.reportsDir
	}
	if cmd.Flags().Changed("seed") {
		cfg.Training.Seed = opts.seed
	}
	if opts.trees > 0 {
		cfg.Training.Trees = opts.trees
	}
	if opts.noClean {
		cfg.Data.Clean = false
	}
}

func selectTasks(task string) ([]string, error) {
	switch task {
	case "all", "":
		return []string{ml.TaskInsurance, ml.TaskDiabetes}, nil
	case ml.TaskInsurance, ml.TaskDiabetes:
		return []string{task}, nil
	default:
		return nil, fmt.Errorf("unknown task %q (want all, insurance or diabetes)", task)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
