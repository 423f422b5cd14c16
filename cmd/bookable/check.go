package main

import (
	"context"
	"fmt"
	"time"

	"bookable/internal/interval"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		resource   string
		start      string
		end        string
		skipLength bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate one candidate range against a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			ctx := context.Background()

			src, err := loadSource(ctx, cfg, logger)
			if err != nil {
				return err
			}
			svc := newService(src, nil, nil, cfg, logger)

			var r interval.Range
			if r.Start, err = time.ParseInLocation(time.RFC3339, start, cfg.Location()); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if r.End, err = time.ParseInLocation(time.RFC3339, end, cfg.Location()); err != nil {
				return fmt.Errorf("end: %w", err)
			}

			res, err := svc.Check(ctx, resource, r, skipLength)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r, res.Reason)
			if !res.Reservable {
				return fmt.Errorf("range not reservable: %s", res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&resource, "resource", "r", "", "resource id")
	cmd.Flags().StringVar(&start, "start", "", "range start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "range end, RFC3339")
	cmd.Flags().BoolVar(&skipLength, "skip-length-check", false, "ignore min and max duration")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
