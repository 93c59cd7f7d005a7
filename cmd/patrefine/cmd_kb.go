package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/patrefine/core"
	kbfs "github.com/snow-ghost/patrefine/kb/fs"
	kbsqlite "github.com/snow-ghost/patrefine/kb/sqlite"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect and migrate the verified-artifact knowledge base",
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every verified artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kb, closeKB, err := openKnowledgeBase(cfg.KBBackend, cfg.KBPath)
		if err != nil {
			return err
		}
		defer closeKB()

		entries, err := kb.List(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var kbMigrateCmd = &cobra.Command{
	Use:   "migrate <database-algorithm.json> <kb.db>",
	Short: "Copy a JSON knowledge base into SQLite",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst, closeDst, err := openKnowledgeBase("sqlite", args[1])
		if err != nil {
			return err
		}
		defer closeDst()

		n, err := kbfs.Migrate(cmd.Context(), kbfs.NewKnowledgeBaseFS(args[0]), dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d verified artifacts\n", n)
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbListCmd, kbMigrateCmd)
}

func openKnowledgeBase(backend, path string) (core.KnowledgeBase, func() error, error) {
	switch backend {
	case "sqlite":
		kb, err := kbsqlite.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return kb, kb.Close, nil
	case "json":
		return kbfs.NewKnowledgeBaseFS(path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported kb backend %q", backend)
	}
}
