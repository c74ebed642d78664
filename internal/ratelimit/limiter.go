// Package ratelimit enforces the per-day sending budget: a daily total, a
// per-domain total, and a minimum gap between consecutive sends. The window
// is scoped to one calendar day and persisted as a JSON file shared across
// runs; a window from an earlier date is discarded, never carried over.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ignite/outreach/internal/pkg/filelock"
	"github.com/ignite/outreach/internal/pkg/fsutil"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// Reason identifies which limit denied an admission.
type Reason string

const (
	ReasonDailyLimit  Reason = "daily_limit"
	ReasonDomainLimit Reason = "domain_limit"
	ReasonRateDelay   Reason = "rate_delay"
)

// Policy holds the compliance thresholds evaluated on every admission.
type Policy struct {
	DailyLimit     int
	PerDomainLimit int
	MinInterval    time.Duration
}

// Window is one calendar day of sending counters. The last_updated stamp
// doubles as the last-send time: RecordSend is the only mutation that
// persists the window.
type Window struct {
	Date         string         `json:"date"`
	TotalSent    int            `json:"total_sent"`
	DomainCounts map[string]int `json:"domain_counts"`
	LastUpdated  string         `json:"last_updated"`
}

// LastSend parses the window's last-send time. The zero time means no send
// has happened in this window yet.
func (w *Window) LastSend() time.Time {
	if w.LastUpdated == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, w.LastUpdated)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

const dateLayout = "2006-01-02"

// Limiter decides admission for send attempts and records confirmed sends.
// CheckAdmission followed by RecordSend is not atomic across processes; the
// file lock narrows that race but single-writer operation is the deployment
// model (see DESIGN.md).
type Limiter struct {
	path   string
	policy Policy
	lock   filelock.Locker

	mu  sync.Mutex
	win *Window
}

// New creates a limiter over the window file at path.
func New(path string, policy Policy) (*Limiter, error) {
	lock, err := filelock.New(path)
	if err != nil {
		return nil, err
	}
	return &Limiter{path: path, policy: policy, lock: lock}, nil
}

// LoadOrReset loads the persisted window, zeroing it when its date is not
// now's date. The reset window is not persisted until the first send.
func (l *Limiter) LoadOrReset(now time.Time) *Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.win = l.readOrReset(now)
	return l.win
}

// CheckAdmission evaluates, in contract order, (a) the daily total, (b) the
// per-domain total, (c) the elapsed time since the last send. The first
// failing check is the denial reason reported to operators.
func (l *Limiter) CheckAdmission(email, domain string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	win := l.currentWindow(now)

	if win.TotalSent >= l.policy.DailyLimit {
		return Decision{
			Reason: ReasonDailyLimit,
			Detail: fmt.Sprintf("daily limit reached (%d/%d)", win.TotalSent, l.policy.DailyLimit),
		}
	}
	if win.DomainCounts[domain] >= l.policy.PerDomainLimit {
		return Decision{
			Reason: ReasonDomainLimit,
			Detail: fmt.Sprintf("domain limit reached for %s (%d/%d)", domain, win.DomainCounts[domain], l.policy.PerDomainLimit),
		}
	}
	if last := win.LastSend(); !last.IsZero() {
		if elapsed := now.Sub(last); elapsed < l.policy.MinInterval {
			return Decision{
				Reason: ReasonRateDelay,
				Detail: fmt.Sprintf("only %s since last send, minimum interval %s", elapsed.Round(time.Second), l.policy.MinInterval),
			}
		}
	}

	return Decision{Allowed: true}
}

// RecordSend increments the counters for a confirmed successful send and
// persists immediately. Failed sends must never reach here: they do not
// consume budget. The whole cycle runs under the file lock with a fresh
// read so counters from an interleaved process are not overwritten.
func (l *Limiter) RecordSend(ctx context.Context, email, domain string, now time.Time) error {
	return filelock.With(ctx, l.lock, func() error {
		l.mu.Lock()
		defer l.mu.Unlock()

		win := l.readOrReset(now)
		win.TotalSent++
		win.DomainCounts[domain]++
		win.LastUpdated = now.UTC().Format(time.RFC3339)

		if err := fsutil.WriteJSONAtomic(l.path, win); err != nil {
			return fmt.Errorf("persisting rate limit window: %w", err)
		}
		l.win = win

		logger.Debug("send recorded", "email", email, "domain", domain,
			"total_sent", win.TotalSent, "domain_sent", win.DomainCounts[domain])
		return nil
	})
}

// currentWindow returns the in-memory window, loading or rolling it over
// when missing or stale. Caller holds l.mu.
func (l *Limiter) currentWindow(now time.Time) *Window {
	if l.win == nil || l.win.Date != now.Format(dateLayout) {
		l.win = l.readOrReset(now)
	}
	return l.win
}

// readOrReset reads the window file fresh from disk, applying the stale-
// window reset and the corrupt-file policy. Caller holds l.mu.
func (l *Limiter) readOrReset(now time.Time) *Window {
	today := now.Format(dateLayout)
	zero := &Window{Date: today, DomainCounts: make(map[string]int)}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return zero
	}
	if err != nil {
		logger.Warn("rate limit file unreadable, starting from ZERO window", "path", l.path, "error", err)
		return zero
	}

	var win Window
	if err := json.Unmarshal(data, &win); err != nil {
		logger.Warn("rate limit file corrupt, starting from ZERO window", "path", l.path, "error", err)
		return zero
	}
	if win.Date != today {
		logger.Info("rate limit window rolled over", "old_date", win.Date, "date", today)
		return zero
	}
	if win.DomainCounts == nil {
		win.DomainCounts = make(map[string]int)
	}

	// total_sent must equal the sum of the domain counts; repair drift
	// from hand-edited files loudly.
	sum := 0
	for _, n := range win.DomainCounts {
		sum += n
	}
	if sum != win.TotalSent {
		logger.Warn("rate limit counters inconsistent, repairing from domain counts",
			"total_sent", win.TotalSent, "domain_sum", sum)
		win.TotalSent = sum
	}

	return &win
}
