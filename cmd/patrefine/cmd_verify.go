package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/patrefine/dataset"
)

var (
	verifyModelPath string
	verifyCodePath  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify existing code against a target model",
	Long:  `Split, check and classify a PAT file once, without generating anything, and print the outcome.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		models, err := dataset.Load(verifyModelPath)
		if err != nil {
			return err
		}
		if len(models) != 1 {
			return fmt.Errorf("expected one target model in %s, got %d", verifyModelPath, len(models))
		}
		code, err := os.ReadFile(verifyCodePath)
		if err != nil {
			return fmt.Errorf("failed to read code: %w", err)
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		res, err := a.controller.VerifyOnce(ctx, models[0], string(code))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyModelPath, "model", "", "dataset JSON file holding one target model")
	verifyCmd.Flags().StringVar(&verifyCodePath, "code", "", "PAT source file to verify")
	_ = verifyCmd.MarkFlagRequired("model")
	_ = verifyCmd.MarkFlagRequired("code")
}
