package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/store"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the videos table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready (%s)\n", cfg.Store.Table, cfg.Store.Driver)
			return nil
		},
	}
}

func newImportCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Upsert previously written result files into the table",
		Long: `Reads every *.json record in dir (default: <output dir>/results) and
upserts it. Files that cannot be decoded are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Join(cfg.Audit.LocalDir, store.ResultsFolder)
			if len(args) == 1 {
				dir = args[0]
			}

			s, err := requireStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := store.ImportDir(cmd.Context(), s, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d files from %s (%d failed)\n",
				res.Imported, res.Files, dir, res.Failed)
			return nil
		},
	}
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the store connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := requireStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Ping(cmd.Context()); err != nil {
				return err
			}
			n, err := s.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected to %s: %d records in %s\n", cfg.Store.Driver, n, cfg.Store.Table)
			return nil
		},
	}
}

func newSetupCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the table and the local output folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			if s != nil {
				defer s.Close()
				fmt.Fprintf(cmd.OutOrStdout(), "table %s ready (%s)\n", cfg.Store.Table, cfg.Store.Driver)
			}

			if err := buildAuditor(cfg.Audit).EnsureFolders(); err != nil {
				return err
			}
			if cfg.Audit.LocalDir != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "output folders ready under %s\n", cfg.Audit.LocalDir)
			}
			return nil
		},
	}
}
