// Package delivery abstracts "actually send a message" behind a Backend so
// the campaign runner is indifferent to live SMTP versus the local dry-run
// sink.
package delivery

import (
	"context"
	"errors"
)

// Sentinel errors for transport failures. Callers classify with errors.Is:
// ErrAuth is fatal for the whole run, ErrTransport is retryable by
// re-running later, ErrProtocol fails only the message that hit it.
var (
	ErrAuth      = errors.New("smtp authentication rejected")
	ErrTransport = errors.New("smtp transport failure")
	ErrProtocol  = errors.New("message rejected by remote")
)

// Message is one fully rendered outbound email.
type Message struct {
	To       string
	From     string
	Subject  string
	TextBody string
}

// Backend sends a single message.
type Backend interface {
	Send(ctx context.Context, msg *Message) error
	Name() string
}
