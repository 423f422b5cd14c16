package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"bookable/internal/interval"
	"bookable/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		resource string
		from     string
		to       string
		minutes  int
		out      string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the open slots of a resource to an xlsx workbook",
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

			today := interval.DayIn(time.Now(), cfg.Location())
			req := report.Request{Resource: resource, From: today, Duration: time.Duration(minutes) * time.Minute}
			if from != "" {
				if req.From, err = interval.ParseDay(from); err != nil {
					return err
				}
			}
			req.To = req.From.AddDays(6)
			if to != "" {
				if req.To, err = interval.ParseDay(to); err != nil {
					return err
				}
			}
			if out == "" {
				out = req.Filename()
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := report.NewExporter(svc, logger).Export(ctx, req, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(out)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d slots to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&resource, "resource", "r", "", "resource id")
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default a week from the first day)")
	cmd.Flags().IntVarP(&minutes, "duration", "d", 60, "reservation length in minutes")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}
