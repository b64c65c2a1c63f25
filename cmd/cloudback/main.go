package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"cloudback/internal/backup"
)

func main() {
	cmd := &cli.Command{
		Name:    "cloudback",
		Usage:   "Archive local databases and ship them to cloud storage",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to configuration ini file",
				Value: "cloudback.ini",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be backed up and pruned without touching anything",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return backup.Run(ctx, cmd.String("config"), cmd.Bool("dry-run"))
		},
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run the CLI with cancellable context
	if err := cmd.Run(ctx, os.Args); err != nil {
		// Check if error is due to context cancellation (user interrupt)
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\n⚠ Backup interrupted by user")
			os.Exit(130) // Standard exit code for SIGINT
		}
		slog.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
