package main

import (
	"context"
	"fmt"

	"bookable/internal/config"
	"bookable/internal/snapshot"

	"github.com/spf13/cobra"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		file   string
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load resources.yaml into the SQLite snapshot store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Resources.Path
			}
			if dbPath == "" {
				dbPath = cfg.Snapshot.SQLitePath
			}

			catalog, err := config.LoadResources(file)
			if err != nil {
				return err
			}

			store, err := snapshot.NewStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SaveAll(context.Background(), catalog.Resources()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d resources into %s\n", catalog.Len(), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "resources file (default resources.path from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path (default snapshot.sqlite_path from config)")
	return cmd
}
