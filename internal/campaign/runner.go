package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach/internal/delivery"
	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/ratelimit"
	"github.com/ignite/outreach/internal/suppression"
)

// Options parameterizes one campaign run. One runner replaces the
// per-feature-combination script variants: suppression and rate limiting
// are always consulted, and dry-run is a backend choice, not a code path.
type Options struct {
	// CampaignID tags every outcome. Empty means a random UUID.
	CampaignID string
	// From is the sender address on every message.
	From string
	// PacingDelay is the courtesy delay between live send attempts.
	// Distinct from the rate limiter's minimum interval, which is policy.
	PacingDelay time.Duration
	// Live indicates a network backend: pacing applies between sends.
	Live bool
}

// Summary is the aggregate result of a run.
type Summary struct {
	Sent    int
	Skipped int
	Failed  int
}

// Runner drives the per-contact state machine
// Pending → {Suppressed, LimitDenied, Sending → {Sent, Failed}}.
type Runner struct {
	opts     Options
	store    *suppression.Store
	limiter  *ratelimit.Limiter
	backend  delivery.Backend
	outcomes *OutcomeLog

	// now is swappable for tests.
	now func() time.Time
}

// NewRunner wires a runner from its collaborators.
func NewRunner(opts Options, store *suppression.Store, limiter *ratelimit.Limiter, backend delivery.Backend, outcomes *OutcomeLog) *Runner {
	if opts.CampaignID == "" {
		opts.CampaignID = uuid.New().String()
	}
	return &Runner{
		opts:     opts,
		store:    store,
		limiter:  limiter,
		backend:  backend,
		outcomes: outcomes,
		now:      time.Now,
	}
}

// CampaignID returns the ID tagging this run's outcomes.
func (r *Runner) CampaignID() string { return r.opts.CampaignID }

// Run processes contacts in list order. One contact failing never aborts
// the run; the two exceptions are context cancellation (honored between
// contacts, never mid-send) and an authentication rejection from the
// backend, which would fail every remaining contact identically.
func (r *Runner) Run(ctx context.Context, contacts []Contact, tmpl *Template) (Summary, error) {
	var summary Summary

	r.limiter.LoadOrReset(r.now())
	logger.Info("campaign run starting", "campaign_id", r.opts.CampaignID,
		"contacts", len(contacts), "backend", r.backend.Name())

	for i, contact := range contacts {
		if err := ctx.Err(); err != nil {
			logger.Warn("run stopped before completion", "campaign_id", r.opts.CampaignID,
				"processed", i, "remaining", len(contacts)-i)
			return summary, err
		}

		sent, err := r.processContact(ctx, contact, tmpl, &summary)
		if err != nil {
			return summary, err
		}

		// Courtesy pacing between live send attempts only; skipped
		// contacts cost nothing and dry runs have no remote to pace.
		if sent && r.opts.Live && i < len(contacts)-1 {
			if err := sleepCtx(ctx, r.opts.PacingDelay); err != nil {
				return summary, err
			}
		}
	}

	logger.Info("campaign run complete", "campaign_id", r.opts.CampaignID,
		"sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// processContact takes one contact to a terminal state. The bool reports
// whether a send was attempted (for pacing); a non-nil error aborts the
// run.
func (r *Runner) processContact(ctx context.Context, contact Contact, tmpl *Template, summary *Summary) (bool, error) {
	subject, body := tmpl.Render(contact)

	if r.store.IsSuppressed(contact.Email) {
		summary.Skipped++
		logger.Info("contact suppressed, skipping", "email", contact.Email)
		r.record(Outcome{
			Email:      suppression.Normalize(contact.Email),
			CampaignID: r.opts.CampaignID,
			Status:     StatusSkipped,
			SkipReason: SkipSuppressed,
		})
		return false, nil
	}

	decision := r.limiter.CheckAdmission(contact.Email, contact.Domain(), r.now())
	if !decision.Allowed {
		summary.Skipped++
		logger.Info("send denied by rate limit", "email", contact.Email,
			"reason", string(decision.Reason), "detail", decision.Detail)
		r.record(Outcome{
			Email:      suppression.Normalize(contact.Email),
			CampaignID: r.opts.CampaignID,
			Status:     StatusSkipped,
			SkipReason: skipReasonFor(decision.Reason),
		})
		return false, nil
	}

	err := r.backend.Send(ctx, &delivery.Message{
		To:       contact.Email,
		From:     r.opts.From,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		summary.Failed++
		logger.Error("send failed", "email", contact.Email, "error", err)
		r.record(Outcome{
			Email:       suppression.Normalize(contact.Email),
			CampaignID:  r.opts.CampaignID,
			Status:      StatusFailed,
			ErrorDetail: err.Error(),
		})
		if errors.Is(err, delivery.ErrAuth) {
			return true, fmt.Errorf("aborting run: %w", err)
		}
		// Failed sends never consume rate-limit budget.
		return true, nil
	}

	summary.Sent++
	r.record(Outcome{
		Email:      suppression.Normalize(contact.Email),
		CampaignID: r.opts.CampaignID,
		Status:     StatusSent,
	})

	// Only confirmed sends consume budget.
	if err := r.limiter.RecordSend(ctx, contact.Email, contact.Domain(), r.now()); err != nil {
		logger.Error("recording send against rate limit failed", "email", contact.Email, "error", err)
	}

	return true, nil
}

// record appends an outcome; an unrecordable outcome is an ERROR, not a
// run abort, so the remaining contacts still get processed.
func (r *Runner) record(o Outcome) {
	if err := r.outcomes.Append(o); err != nil {
		logger.Error("outcome append failed", "email", o.Email, "status", string(o.Status), "error", err)
	}
}

// sleepCtx waits for d, returning early with the context's error when the
// run is stopped.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
