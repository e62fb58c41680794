package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/cn-dataset/internal/announcement"
	"github.com/ahmethakanbesel/cn-dataset/internal/apperror"
	"github.com/ahmethakanbesel/cn-dataset/internal/baostock"
	"github.com/ahmethakanbesel/cn-dataset/internal/cninfo"
	"github.com/ahmethakanbesel/cn-dataset/internal/config"
	"github.com/ahmethakanbesel/cn-dataset/internal/platform/sqlite"
	"github.com/ahmethakanbesel/cn-dataset/internal/price"
	runrepo "github.com/ahmethakanbesel/cn-dataset/internal/repository/run"
	"github.com/ahmethakanbesel/cn-dataset/internal/run"
	"github.com/ahmethakanbesel/cn-dataset/internal/tradingday"
)

// app holds the services shared by every subcommand.
type app struct {
	cfg           config.Config
	db            *sqlite.DB
	runs          *run.Service
	prices        *price.Service
	announcements *announcement.Service
}

var (
	cli         app
	downloadRPS float64
)

var rootCmd = &cobra.Command{
	Use:           "cn-dataset",
	Short:         "Download China A-share prices and exchange announcements to CSV",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return cli.init(cmd.Context())
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cli.close()
	},
}

func init() {
	rootCmd.PersistentFlags().Float64Var(&downloadRPS, "download-rate", 2, "maximum document downloads started per second (0 = unlimited)")
	rootCmd.AddCommand(pricesCmd(), announcementsCmd(), runCmd(), runsCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		cli.close()
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		return ae.ExitCode()
	}
	return 1
}

func (a *app) init(ctx context.Context) error {
	a.cfg = config.Load()
	setupLogger(a.cfg.LogLevel)

	if a.cfg.DBPath != "" {
		db, err := sqlite.Open(a.cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open run log: %w", err)
		}
		a.db = db
		a.runs = run.NewService(runrepo.NewRepository(db.DB))

		// Runs left running by a killed process can never finish.
		if err := a.runs.FailInterrupted(ctx); err != nil {
			slog.Error("failed to close interrupted runs", "error", err)
		}
	}

	bs := baostock.New(baostock.WithAddr(a.cfg.BaostockAddr))
	a.prices = price.NewService(price.NewBaostockProvider(bs), a.runs, a.cfg.OutputDir)
	a.prices.SetSessionCounter(tradingday.Counter{})

	search := cninfo.New(
		cninfo.WithTimeout(a.cfg.HTTPTimeout),
		cninfo.WithSearchEndpoint(a.cfg.CninfoSearchURL),
	)
	a.announcements = announcement.NewService(search, a.runs, a.cfg.CninfoStaticURL, a.cfg.OutputDir)
	a.announcements.SetDownloader(announcement.NewDownloader(
		&http.Client{Timeout: 2 * time.Minute},
		a.cfg.Workers,
		downloadRPS,
	))
	return nil
}

func (a *app) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close run log", "error", err)
	}
	a.db = nil
}

func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
