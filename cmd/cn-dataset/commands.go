package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/cn-dataset/internal/announcement"
	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	"github.com/ahmethakanbesel/cn-dataset/internal/manifest"
	"github.com/ahmethakanbesel/cn-dataset/internal/run"
)

func pricesCmd() *cobra.Command {
	var t manifest.Task
	cmd := &cobra.Command{
		Use:     "prices",
		Short:   "Download historical K-line bars for one security",
		Example: "  cn-dataset prices --code sh.600519 --start 2020-01-01 --end 2024-12-31 --adjust qfq",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t.Kind = manifest.KindPrices
			return runTask(cmd.Context(), t)
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.Code, "code", "", "exchange-prefixed security code, e.g. sh.600519")
	f.StringVar(&t.Start, "start", "", "first date, YYYY-MM-DD")
	f.StringVar(&t.End, "end", "", "last date, YYYY-MM-DD (default today)")
	f.StringVar(&t.Frequency, "frequency", "d", "bar frequency: d, w or m")
	f.StringVar(&t.Adjust, "adjust", "3", "price adjustment: 1/hfq, 2/qfq or 3/none")
	f.StringVarP(&t.Output, "output", "o", "", "CSV path (default {code}_{start}_to_{end}.csv)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func announcementsCmd() *cobra.Command {
	var t manifest.Task
	cmd := &cobra.Command{
		Use:     "announcements",
		Short:   "Search exchange announcements and save document links",
		Example: "  cn-dataset announcements --code 600519 --keyword 年报",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t.Kind = manifest.KindAnnouncements
			return runTask(cmd.Context(), t)
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.Code, "code", "", "six-digit security code")
	f.StringVar(&t.Keyword, "keyword", "年报", "search keyword")
	f.IntVar(&t.Page, "page", 1, "result page number")
	f.StringVarP(&t.Output, "output", "o", "", "CSV path (default announcements.csv)")
	f.StringVar(&t.DownloadDir, "download-dir", "", "also download every document into this directory")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func runCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every task of a manifest in order (the built-in batch when none is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := manifest.Default()
			if path != "" {
				var err error
				if m, err = manifest.Load(path); err != nil {
					return apperror.New(apperror.BadRequest, err.Error())
				}
			}
			for i, t := range m.Tasks {
				slog.Info("running task", "index", i, "kind", t.Kind, "code", t.Code)
				err := runTask(cmd.Context(), t)
				if apperror.Is(err, apperror.SessionRejected) {
					slog.Warn("price session rejected, continuing", "code", t.Code)
					continue
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "manifest", "m", "", "YAML task file")
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		req run.ListRunsRequest
		id  int64
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run log, or show one with --id (requires DB_PATH)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cli.db == nil {
				return apperror.New(apperror.BadRequest, "DB_PATH is not set")
			}

			var runs []run.Run
			if cmd.Flags().Changed("id") {
				r, err := cli.runs.Get(cmd.Context(), run.GetRunRequest{ID: id})
				if err != nil {
					return err
				}
				runs = []run.Run{*r}
			} else {
				var err error
				if runs, err = cli.runs.List(cmd.Context(), req); err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPIPELINE\tSYMBOL\tQUERY\tSTATUS\tRECORDS\tOUTPUT\tUPDATED\tERROR")
			for _, r := range runs {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.ID, r.Pipeline, r.Symbol, r.Query, r.Status, r.RecordsCount, r.OutputPath,
					r.UpdatedAt.Local().Format(time.DateTime), r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "show a single run")
	cmd.Flags().StringVar(&req.Pipeline, "pipeline", "", "filter by pipeline: prices or announcements")
	cmd.Flags().StringVar(&req.Symbol, "symbol", "", "filter by security code")
	return cmd
}

func runTask(ctx context.Context, t manifest.Task) error {
	switch t.Kind {
	case manifest.KindPrices:
		req, err := t.PriceRequest()
		if err != nil {
			return apperror.New(apperror.BadRequest, err.Error())
		}
		tbl, err := cli.prices.Fetch(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bars\n", t.Code, tbl.Len())
	case manifest.KindAnnouncements:
		tbl, err := cli.announcements.Fetch(ctx, t.AnnouncementRequest())
		if err != nil {
			return err
		}
		recs, err := announcement.Records(tbl)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d announcements\n", t.Code, len(recs))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, r := range recs {
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\n", r.Time.Local().Format(time.DateOnly), r.Title, r.URL)
		}
		return w.Flush()
	default:
		return apperror.New(apperror.BadRequest, "unknown task kind "+t.Kind)
	}
	return nil
}
