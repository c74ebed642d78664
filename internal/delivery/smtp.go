package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/ignite/outreach/internal/pkg/logger"
	gomail "gopkg.in/gomail.v2"
)

// SMTPBackend delivers messages over SMTP with mandatory encryption in
// transit (STARTTLS on submission ports, implicit TLS on 465). One dial per
// message: sends are minutes apart under pacing, so a held-open session
// would only hit server idle timeouts.
type SMTPBackend struct {
	host    string
	port    int
	from    string
	dialer  *gomail.Dialer
	timeout time.Duration
}

// NewSMTPBackend configures a live backend. The timeout bounds the whole
// dial-auth-send cycle; expiry surfaces as ErrTransport, never a hang.
func NewSMTPBackend(host string, port int, username, password, from string, timeout time.Duration) *SMTPBackend {
	d := gomail.NewDialer(host, port, username, password)
	d.TLSConfig = &tls.Config{ServerName: host}
	d.SSL = port == 465

	return &SMTPBackend{
		host:    host,
		port:    port,
		from:    from,
		dialer:  d,
		timeout: timeout,
	}
}

// Name identifies the backend in outcome logs.
func (b *SMTPBackend) Name() string { return "smtp" }

// Send delivers one message, classifying failures into the package's
// sentinel errors.
func (b *SMTPBackend) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)

	sendCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	// gomail has no deadline support, so the send runs in a goroutine and
	// the timeout abandons it. The outcome for a timed-out contact is
	// recorded as failed; the in-flight session is left to the OS.
	done := make(chan error, 1)
	go func() {
		done <- b.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return classify(err)
		}
		logger.Debug("message accepted by remote", "recipient", msg.To, "host", b.host)
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("%w: send to %s timed out after %s", ErrTransport, b.host, b.timeout)
	}
}

// classify maps raw gomail/net errors onto the sentinel taxonomy.
func classify(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	// gomail flattens some auth failures into plain strings.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "auth") || strings.Contains(lower, "username") {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
