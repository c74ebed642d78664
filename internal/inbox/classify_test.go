package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    Classification
	}{
		{"explicit unsubscribe", "Re: Quick question", "Please unsubscribe me from this list.", ClassUnsubscribe},
		{"opt out wording", "no more", "I want to OPT OUT of these emails", ClassUnsubscribe},
		{"remove me", "", "remove me from your list please", ClassUnsubscribe},
		{"bounce dsn subject", "Delivery Status Notification (Failure)", "", ClassBounce},
		{"bounce undeliverable", "Undeliverable: Hello", "the message could not be delivered", ClassBounce},
		{"bounce mailer daemon body", "Returned mail", "MAILER-DAEMON reports user unknown", ClassBounce},
		{"ordinary reply", "Re: Hello", "Thanks, let's talk next week.", ClassOther},
		{"empty", "", "", ClassOther},
		{"case insensitive", "UNSUBSCRIBE", "", ClassUnsubscribe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.subject, tt.body))
		})
	}
}

func TestUnsubscribeTakesPrecedenceOverBounce(t *testing.T) {
	// A human reply quoting bounce wording is still a human asking out.
	got := Classify("Re: Undeliverable", "Your message bounced once but please just unsubscribe me.")
	assert.Equal(t, ClassUnsubscribe, got)
}

func TestBouncedRecipient(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		daemon string
		want   string
	}{
		{
			name:   "dsn final-recipient field",
			body:   "Reporting-MTA: dns; mx.example.com\nFinal-Recipient: rfc822; gone@example.com\nAction: failed",
			daemon: "mailer-daemon@mx.example.com",
			want:   "gone@example.com",
		},
		{
			name:   "first non-daemon address in body",
			body:   "Delivery to lost@target.net failed permanently. Contact mailer-daemon@mx.example.com.",
			daemon: "mailer-daemon@mx.example.com",
			want:   "lost@target.net",
		},
		{
			name:   "only the daemon address present",
			body:   "see mailer-daemon@mx.example.com",
			daemon: "mailer-daemon@mx.example.com",
			want:   "",
		},
		{
			name:   "no addresses",
			body:   "delivery failed",
			daemon: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bouncedRecipient(tt.body, tt.daemon))
		})
	}
}
