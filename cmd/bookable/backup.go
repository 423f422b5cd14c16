package main

import (
	"context"
	"fmt"

	"bookable/internal/config"
	"bookable/internal/snapshot"

	"github.com/spf13/cobra"
)

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the SQLite snapshot store and prune expired copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			if cfg.Snapshot.Driver != config.DriverSQLite {
				return fmt.Errorf("backup needs snapshot.driver %s", config.DriverSQLite)
			}

			store, err := snapshot.NewStore(cfg.Snapshot.SQLitePath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := snapshot.NewBackupService(store, cfg.Snapshot.Backup, logger)
			path, err := svc.Backup(context.Background())
			if err != nil {
				return err
			}
			removed, err := svc.Cleanup()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s, %d expired copies removed\n", path, removed)
			return nil
		},
	}
}
