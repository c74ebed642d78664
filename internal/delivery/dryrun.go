package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ignite/outreach/internal/pkg/logger"
)

// DryRunBackend never opens a network connection. It writes each fully
// rendered message (headers plus body) to one file per recipient under the
// sink directory and reports success unconditionally.
type DryRunBackend struct {
	dir string
}

// NewDryRunBackend creates a dry-run sink rooted at dir.
func NewDryRunBackend(dir string) *DryRunBackend {
	return &DryRunBackend{dir: dir}
}

// Name identifies the backend in outcome logs.
func (b *DryRunBackend) Name() string { return "dry-run" }

// Send writes the message to the sink.
func (b *DryRunBackend) Send(_ context.Context, msg *Message) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("creating dry-run sink %s: %w", b.dir, err)
	}

	path := filepath.Join(b.dir, sinkFilename(msg.To))
	content := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\n\n%s\n",
		msg.From, msg.To, msg.Subject, msg.TextBody)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing dry-run message: %w", err)
	}

	logger.Info("dry-run message written", "recipient", msg.To, "path", path)
	return nil
}

// sinkFilename keys the sink by recipient while staying filesystem-safe.
func sinkFilename(recipient string) string {
	safe := strings.NewReplacer("@", "_at_", "/", "_", "\\", "_", ":", "_").Replace(recipient)
	return safe + ".eml"
}
