package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/suppression"
)

// Sentinel errors for mailbox access. Ingestion failures never block the
// campaign runner, which shares only the suppression file with this path.
var (
	ErrAuth       = errors.New("imap authentication rejected")
	ErrConnection = errors.New("imap connection failure")
)

// Options configures a mailbox scan.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	TLS      bool
	Timeout  time.Duration
	// SuppressBounces also feeds bounce-classified senders' failed
	// recipients into the suppression store. Off by default: bounces are
	// always classified and counted either way.
	SuppressBounces bool
}

// Reply is one classified mailbox message.
type Reply struct {
	MessageUID   string         `json:"message_uid"`
	FromAddress  string         `json:"from_address"`
	Subject      string         `json:"subject"`
	ClassifiedAs Classification `json:"classified_as"`
	Timestamp    string         `json:"timestamp"`
}

// ScanSummary aggregates one scan.
type ScanSummary struct {
	Scanned      int
	Unsubscribes int
	Bounces      int
	Other        int
}

// Ingester scans the mailbox since the watermark and feeds unsubscribes
// into the suppression store.
type Ingester struct {
	opts  Options
	store *suppression.Store
	wm    *Watermark
}

// NewIngester wires an ingester from its collaborators.
func NewIngester(opts Options, store *suppression.Store, wm *Watermark) *Ingester {
	if opts.Folder == "" {
		opts.Folder = "INBOX"
	}
	return &Ingester{opts: opts, store: store, wm: wm}
}

type scanResult struct {
	summary ScanSummary
	err     error
}

// Scan runs one pass over the mailbox. The configured timeout bounds the
// whole scan; expiry surfaces as ErrConnection, never a silent hang. The
// watermark is flushed after the scan and best-effort on abort.
func (ing *Ingester) Scan(ctx context.Context) (ScanSummary, error) {
	if ing.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ing.opts.Timeout)
		defer cancel()
	}

	// The IMAP client has no deadline support, so the scan runs in a
	// goroutine and expiry abandons it after a best-effort watermark
	// flush.
	done := make(chan scanResult, 1)
	go func() {
		summary, err := ing.scan(ctx)
		done <- scanResult{summary, err}
	}()

	select {
	case res := <-done:
		if err := ing.wm.Flush(); err != nil {
			logger.Error("watermark flush failed", "error", err)
		}
		return res.summary, res.err
	case <-ctx.Done():
		if err := ing.wm.Flush(); err != nil {
			logger.Error("watermark flush failed", "error", err)
		}
		return ScanSummary{}, fmt.Errorf("%w: scan timed out: %v", ErrConnection, ctx.Err())
	}
}

func (ing *Ingester) scan(ctx context.Context) (ScanSummary, error) {
	var summary ScanSummary

	addr := fmt.Sprintf("%s:%d", ing.opts.Host, ing.opts.Port)

	var client *imapclient.Client
	var err error
	if ing.opts.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return summary, fmt.Errorf("%w: dialing %s: %v", ErrConnection, addr, err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := client.Login(ing.opts.Username, ing.opts.Password).Wait(); err != nil {
		return summary, fmt.Errorf("%w: login as %s: %v", ErrAuth, ing.opts.Username, err)
	}

	if _, err := client.Select(ing.opts.Folder, nil).Wait(); err != nil {
		return summary, fmt.Errorf("%w: selecting %s: %v", ErrConnection, ing.opts.Folder, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return summary, fmt.Errorf("%w: listing messages: %v", ErrConnection, err)
	}

	uids := searchData.AllUIDs()
	logger.Info("mailbox scan starting", "folder", ing.opts.Folder,
		"messages", len(uids), "watermarked", ing.wm.Len())

	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("%w: %v", ErrConnection, err)
		}

		uidStr := strconv.FormatUint(uint64(uid), 10)
		if ing.wm.Contains(uidStr) {
			continue
		}

		reply, err := ing.fetchOne(client, uid)
		if err != nil {
			// One unfetchable message stays out of the watermark and is
			// retried next run; the scan keeps going.
			logger.Warn("fetching message failed", "uid", uidStr, "error", err)
			continue
		}

		ing.handle(ctx, reply)
		ing.wm.Add(uidStr)

		summary.Scanned++
		switch reply.ClassifiedAs {
		case ClassUnsubscribe:
			summary.Unsubscribes++
		case ClassBounce:
			summary.Bounces++
		default:
			summary.Other++
		}
	}

	logger.Info("mailbox scan complete", "scanned", summary.Scanned,
		"unsubscribes", summary.Unsubscribes, "bounces", summary.Bounces, "other", summary.Other)
	return summary, nil
}

// fetchOne retrieves and classifies a single message.
func (ing *Ingester) fetchOne(client *imapclient.Client, uid imap.UID) (Reply, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return Reply{}, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return Reply{}, fmt.Errorf("collecting message: %w", err)
	}
	if err := fetchCmd.Close(); err != nil {
		return Reply{}, fmt.Errorf("closing fetch: %w", err)
	}

	reply := Reply{
		MessageUID: strconv.FormatUint(uint64(uid), 10),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if buf.Envelope != nil {
		reply.Subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			reply.FromAddress = buf.Envelope.From[0].Addr()
		}
	}

	body := extractTextBody(buf.FindBodySection(bodySection))
	reply.ClassifiedAs = Classify(reply.Subject, body)
	if reply.ClassifiedAs == ClassBounce {
		if failed := bouncedRecipient(body, reply.FromAddress); failed != "" {
			// For bounces the interesting address is the one that
			// failed, not the reporting daemon.
			reply.FromAddress = failed
		}
	}

	return reply, nil
}

// handle applies the suppression feedback for one classified reply.
func (ing *Ingester) handle(ctx context.Context, reply Reply) {
	logger.Debug("reply classified", "uid", reply.MessageUID,
		"from", reply.FromAddress, "classified_as", string(reply.ClassifiedAs))

	switch reply.ClassifiedAs {
	case ClassUnsubscribe:
		if reply.FromAddress == "" {
			logger.Warn("unsubscribe reply without sender address", "uid", reply.MessageUID)
			return
		}
		if err := ing.store.Add(ctx, reply.FromAddress, suppression.ReasonUnsubscribe); err != nil {
			logger.Error("suppressing unsubscribe failed", "email", reply.FromAddress, "error", err)
		}
	case ClassBounce:
		if !ing.opts.SuppressBounces || reply.FromAddress == "" {
			return
		}
		if err := ing.store.Add(ctx, reply.FromAddress, suppression.ReasonBounce); err != nil {
			logger.Error("suppressing bounce failed", "email", reply.FromAddress, "error", err)
		}
	}
}

var htmlTagRe = regexp.MustCompile("<[^>]*>")

// extractTextBody pulls a plain-text body out of a raw RFC 5322 message,
// falling back to the HTML part with tags stripped, then to the raw bytes.
func extractTextBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	if htmlBody != "" {
		return htmlTagRe.ReplaceAllString(htmlBody, " ")
	}
	return string(raw)
}
