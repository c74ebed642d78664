package inbox

import (
	"regexp"
	"strings"
)

// Classification is what a scanned reply turned out to be.
type Classification string

const (
	ClassUnsubscribe Classification = "unsubscribe"
	ClassBounce      Classification = "bounce"
	ClassOther       Classification = "other"
)

// unsubscribePhrases are matched case-insensitively against subject and
// body. Deliberately broad: a false unsubscribe only costs one recipient,
// a missed one risks a spam complaint.
var unsubscribePhrases = []string{
	"unsubscribe",
	"opt out",
	"opt-out",
	"remove me",
	"take me off",
	"stop emailing",
	"stop contacting",
	"no longer wish to receive",
	"do not contact",
	"don't contact me",
}

var bouncePhrases = []string{
	"undeliverable",
	"undelivered mail",
	"delivery status notification",
	"delivery has failed",
	"mail delivery failed",
	"returned mail",
	"mailer-daemon",
	"mailbox unavailable",
	"mailbox is full",
	"user unknown",
	"address not found",
	"recipient address rejected",
	"permanent error",
}

// Classify matches a reply against the unsubscribe and bounce phrase sets.
// Unsubscribe takes precedence when both match: a human asking to stop
// always outranks machine-generated bounce wording quoted in the same
// thread.
func Classify(subject, body string) Classification {
	text := strings.ToLower(subject + "\n" + body)

	for _, phrase := range unsubscribePhrases {
		if strings.Contains(text, phrase) {
			return ClassUnsubscribe
		}
	}
	for _, phrase := range bouncePhrases {
		if strings.Contains(text, phrase) {
			return ClassBounce
		}
	}
	return ClassOther
}

var finalRecipientRe = regexp.MustCompile(`(?i)final-recipient:\s*rfc822;\s*([^\s<>]+@[^\s<>;]+)`)

var anyAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// bouncedRecipient digs the failed address out of a bounce body: the DSN
// Final-Recipient field when present, otherwise the first address that is
// not the reporting daemon's.
func bouncedRecipient(body, daemonAddr string) string {
	if m := finalRecipientRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	daemon := strings.ToLower(daemonAddr)
	for _, addr := range anyAddressRe.FindAllString(body, -1) {
		if strings.ToLower(addr) != daemon {
			return addr
		}
	}
	return ""
}
