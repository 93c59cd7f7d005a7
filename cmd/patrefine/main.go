// Command patrefine generates PAT models with a language model, verifies them with the
// PAT checker and refines them until every assertion has its desired verdict.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/patrefine/worker"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	workDir    string
)

var rootCmd = &cobra.Command{
	Use:   "patrefine",
	Short: "Generate, verify and refine PAT models",
	Long: `patrefine turns structured system descriptions into PAT (CSP#) models.

Each model is generated by a language model, split into one checker input per
assertion, verified with the PAT console and refined from the counterexample
traces until every assertion has its desired verdict or the budgets run out.

Configuration comes from environment variables, optionally overlaid by a YAML
file given with --config or PATREFINE_CONFIG.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (overrides PATREFINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "directory for generated artifacts")

	rootCmd.AddCommand(runCmd, verifyCmd, serveCmd, kbCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

// loadConfig applies the persistent flags on top of the environment.
func loadConfig() (*worker.Config, error) {
	if configPath != "" {
		if err := os.Setenv("PATREFINE_CONFIG", configPath); err != nil {
			return nil, err
		}
	}
	cfg, err := worker.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
