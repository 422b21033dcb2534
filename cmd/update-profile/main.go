// Command update-profile scores one speedrun.com profile, saves it to the
// leaderboard and prints the update report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/Avasam/Global-speedrunning-leaderboard/internal/app"
	"github.com/Avasam/Global-speedrunning-leaderboard/internal/config"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
)

const defaultTimeout = 30 * time.Minute

var errUsage = errors.New("usage: update-profile -profile <name or id> [-timeout 30m]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("update-profile", flag.ContinueOnError)
	profile := fs.String("profile", "", "speedrun.com user name or id")
	timeout := fs.Duration("timeout", defaultTimeout, "overall deadline for the update")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *profile == "" {
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFile(cfg.LogFile)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	svc, err := app.FromConfig(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Stop(context.Background()) }()

	report, err := svc.UpdateProfile(ctx, *profile)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, report.Text)
	if report.Outcome == app.OutcomeFailed {
		return app.ErrUpdateFailed
	}
	return nil
}
