package campaign

import (
	"time"

	"github.com/ignite/outreach/internal/pkg/fsutil"
	"github.com/ignite/outreach/internal/ratelimit"
)

// Status is the terminal state of one (contact, campaign) attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SkipReason explains a skipped outcome.
type SkipReason string

const (
	SkipSuppressed  SkipReason = "suppressed"
	SkipDailyLimit  SkipReason = "daily_limit"
	SkipDomainLimit SkipReason = "domain_limit"
	SkipRateDelay   SkipReason = "rate_delay"
)

// skipReasonFor maps a rate-limiter denial onto the outcome vocabulary.
func skipReasonFor(r ratelimit.Reason) SkipReason {
	switch r {
	case ratelimit.ReasonDailyLimit:
		return SkipDailyLimit
	case ratelimit.ReasonDomainLimit:
		return SkipDomainLimit
	default:
		return SkipRateDelay
	}
}

// Outcome is one delivery outcome, appended to the durable log and never
// mutated after creation.
type Outcome struct {
	Email       string     `json:"email"`
	CampaignID  string     `json:"campaign_id"`
	Status      Status     `json:"status"`
	SkipReason  SkipReason `json:"skip_reason,omitempty"`
	Timestamp   string     `json:"timestamp"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// OutcomeLog is the append-only NDJSON delivery outcome log.
type OutcomeLog struct {
	path string
}

// NewOutcomeLog opens the log at path, creating it on first append.
func NewOutcomeLog(path string) *OutcomeLog {
	return &OutcomeLog{path: path}
}

// Append writes one outcome record.
func (l *OutcomeLog) Append(o Outcome) error {
	if o.Timestamp == "" {
		o.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return fsutil.AppendJSONLine(l.path, o)
}
