// Command outreach runs one email campaign: it loads the contact list and
// template, applies suppression and rate-limit checks per contact, sends
// over SMTP (or to the dry-run sink), and records one outcome per contact.
//
// Exit status is zero when the run completed, even with skipped or failed
// contacts; non-zero only on setup-level failure (unreadable config,
// contacts, or template) before any send.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/outreach/internal/campaign"
	"github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/delivery"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/ratelimit"
	"github.com/ignite/outreach/internal/suppression"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML configuration")
	contactsPath := flag.String("contacts", "", "path to CSV contact list")
	templatePath := flag.String("template", "", "path to message template")
	campaignID := flag.String("campaign", "", "campaign ID tagging outcomes (default: random UUID)")
	dryRun := flag.Bool("dry-run", false, "render and record sends without network transport")
	suppressAddr := flag.String("suppress", "", "manually suppress this address and exit")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger.SetLevel(logger.ParseLevel(*logLevel))

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: loading config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := suppression.NewStore(cfg.State.SuppressionPath(), cfg.State.AuditPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: opening suppression store: %v\n", err)
		os.Exit(1)
	}

	if *suppressAddr != "" {
		if err := store.Add(ctx, *suppressAddr, suppression.ReasonManual); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: suppressing %s: %v\n", *suppressAddr, err)
			os.Exit(1)
		}
		fmt.Printf("Suppressed %s (manual). Set now holds %d addresses.\n",
			suppression.Normalize(*suppressAddr), store.Count())
		return
	}

	if *contactsPath == "" || *templatePath == "" {
		fmt.Fprintln(os.Stderr, "FATAL: -contacts and -template are required")
		flag.Usage()
		os.Exit(1)
	}
	if !*dryRun {
		if err := cfg.ValidateSend(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: config: %v\n", err)
			os.Exit(1)
		}
	}

	contacts, err := campaign.LoadContacts(*contactsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: loading contacts %s: %v\n", *contactsPath, err)
		os.Exit(1)
	}
	tmpl, err := campaign.LoadTemplate(*templatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: loading template %s: %v\n", *templatePath, err)
		os.Exit(1)
	}

	limiter, err := ratelimit.New(cfg.State.RateLimitPath(), ratelimit.Policy{
		DailyLimit:     cfg.Policy.DailyLimit,
		PerDomainLimit: cfg.Policy.PerDomainLimit,
		MinInterval:    cfg.Policy.MinInterval(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: opening rate limiter: %v\n", err)
		os.Exit(1)
	}

	var backend delivery.Backend
	if *dryRun {
		backend = delivery.NewDryRunBackend(cfg.State.DryRunDir)
	} else {
		backend = delivery.NewSMTPBackend(cfg.SMTP.Host, cfg.SMTP.Port,
			cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From, cfg.SMTP.Timeout())
	}

	runner := campaign.NewRunner(campaign.Options{
		CampaignID:  *campaignID,
		From:        cfg.SMTP.From,
		PacingDelay: cfg.Policy.PacingDelay(),
		Live:        !*dryRun,
	}, store, limiter, backend, campaign.NewOutcomeLog(cfg.State.OutcomePath()))

	fmt.Println("=========================================================")
	fmt.Println(" Outreach Campaign Run")
	fmt.Println("=========================================================")
	fmt.Printf("Campaign ID:        %s\n", runner.CampaignID())
	fmt.Printf("Contacts:           %d\n", len(contacts))
	fmt.Printf("Placeholders:       %v\n", tmpl.Placeholders())
	fmt.Printf("Suppression set:    %d addresses\n", store.Count())
	fmt.Printf("Backend:            %s\n", backend.Name())
	fmt.Printf("Daily limit:        %d  (per-domain %d, min interval %s)\n",
		cfg.Policy.DailyLimit, cfg.Policy.PerDomainLimit, cfg.Policy.MinInterval())
	fmt.Println("---------------------------------------------------------")

	summary, runErr := runner.Run(ctx, contacts, tmpl)

	fmt.Println("=========================================================")
	fmt.Println(" RUN SUMMARY")
	fmt.Println("=========================================================")
	fmt.Printf("  Sent:     %d\n", summary.Sent)
	fmt.Printf("  Skipped:  %d\n", summary.Skipped)
	fmt.Printf("  Failed:   %d\n", summary.Failed)
	if runErr != nil {
		fmt.Printf("  Stopped early: %v\n", runErr)
	}
	fmt.Println("=========================================================")

	// A completed run exits zero regardless of per-contact outcomes; only
	// the contacts never reached make this a partial run, and even then
	// every processed contact's outcome is already on disk.
}
