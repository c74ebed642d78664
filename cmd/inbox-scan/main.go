// Command inbox-scan scans the reply mailbox since the persisted watermark,
// classifies each new message as unsubscribe, bounce, or other, and feeds
// unsubscribes into the suppression store. It runs independently of the
// campaign runner and never touches rate-limit state.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/inbox"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/suppression"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger.SetLevel(logger.ParseLevel(*logLevel))

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: loading config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if err := cfg.ValidateInbox(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := suppression.NewStore(cfg.State.SuppressionPath(), cfg.State.AuditPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: opening suppression store: %v\n", err)
		os.Exit(1)
	}

	wm := inbox.LoadWatermark(cfg.State.WatermarkPath())

	ingester := inbox.NewIngester(inbox.Options{
		Host:            cfg.IMAP.Host,
		Port:            cfg.IMAP.Port,
		Username:        cfg.IMAP.Username,
		Password:        cfg.IMAP.Password,
		Folder:          cfg.IMAP.Folder,
		TLS:             cfg.IMAP.TLS,
		Timeout:         cfg.IMAP.Timeout(),
		SuppressBounces: cfg.IMAP.SuppressBounces,
	}, store, wm)

	summary, err := ingester.Scan(ctx)

	fmt.Println("=========================================================")
	fmt.Println(" MAILBOX SCAN SUMMARY")
	fmt.Println("=========================================================")
	fmt.Printf("  Scanned:       %d\n", summary.Scanned)
	fmt.Printf("  Unsubscribes:  %d\n", summary.Unsubscribes)
	fmt.Printf("  Bounces:       %d\n", summary.Bounces)
	fmt.Printf("  Other:         %d\n", summary.Other)
	fmt.Printf("  Suppression:   %d addresses\n", store.Count())
	fmt.Println("=========================================================")

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}
