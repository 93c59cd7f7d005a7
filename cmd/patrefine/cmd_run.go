package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/dataset"
	"github.com/snow-ghost/patrefine/worker"
)

var (
	datasetPath string
	onlyModels  []string
	concurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and refine every model of a dataset",
	Long: `Run the generate, verify and refine loop for each target model in a dataset file.

Budget exhaustion is reported per model in the JSON output and is not an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if concurrency > 0 {
			cfg.Concurrency = concurrency
		}

		models, err := dataset.Load(datasetPath)
		if err != nil {
			return err
		}
		models, err = selectModels(models, onlyModels)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		reports, runErr := worker.RunBatch(ctx, a.controller, models, cfg.Concurrency)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&datasetPath, "dataset", "", "dataset JSON file with target models")
	runCmd.Flags().StringSliceVar(&onlyModels, "only", nil, "run only the named models")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 0, "models refined in parallel (overrides CONCURRENCY)")
	_ = runCmd.MarkFlagRequired("dataset")
}

// selectModels keeps the named models in dataset order. Every name must exist.
func selectModels(models []core.TargetModel, names []string) ([]core.TargetModel, error) {
	if len(names) == 0 {
		return models, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []core.TargetModel
	for _, m := range models {
		if wanted[m.Name] {
			out = append(out, m)
			delete(wanted, m.Name)
		}
	}
	for n := range wanted {
		return nil, fmt.Errorf("model %q not found in dataset", n)
	}
	return out, nil
}
