// Package suppression maintains the persistent set of addresses that must
// never be contacted again. The set is shared between the campaign runner
// and the inbox scanner through a single JSON file; every mutation is a
// locked read-modify-write-persist cycle so interleaved processes see each
// other's additions.
package suppression

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/outreach/internal/pkg/filelock"
	"github.com/ignite/outreach/internal/pkg/fsutil"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// Reason records why an address was suppressed.
type Reason string

const (
	ReasonUnsubscribe Reason = "unsubscribe"
	ReasonBounce      Reason = "bounce"
	ReasonManual      Reason = "manual"
)

// fileFormat is the fixed on-disk shape of the suppression set.
// count must equal len(suppressed_emails) after every write.
type fileFormat struct {
	SuppressedEmails []string `json:"suppressed_emails"`
	LastUpdated      string   `json:"last_updated"`
	Count            int      `json:"count"`
}

// auditRecord is one NDJSON line in the append-only audit log.
type auditRecord struct {
	Email     string `json:"email"`
	Reason    Reason `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// Store is the persistent suppression set. Safe for concurrent use within
// one process; cross-process safety comes from the advisory file lock taken
// around every mutation.
type Store struct {
	path      string
	auditPath string
	lock      filelock.Locker

	mu     sync.RWMutex
	emails map[string]struct{}
}

// NewStore opens (or initializes) the suppression set at path. A corrupt
// or unreadable file degrades to an empty set with a loud warning rather
// than failing the run: suppressing everyone or crashing are both worse
// than starting empty and logging exactly what happened.
func NewStore(path, auditPath string) (*Store, error) {
	lock, err := filelock.New(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:      path,
		auditPath: auditPath,
		lock:      lock,
		emails:    make(map[string]struct{}),
	}
	s.loadLocked()
	return s, nil
}

// Normalize lowercases and trims an address; the suppression set is keyed
// case-insensitively.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsSuppressed reports whether the address is in the set.
func (s *Store) IsSuppressed(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emails[Normalize(email)]
	return ok
}

// Count returns the number of suppressed addresses.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}

// Add inserts the address, persists the full set atomically, and appends
// an audit record. Re-adding an existing address is idempotent for the set
// file; the audit log still records the new reason (latest wins).
func (s *Store) Add(ctx context.Context, email string, reason Reason) error {
	normalized := Normalize(email)
	if normalized == "" {
		return nil
	}

	return filelock.With(ctx, s.lock, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Merge in additions from other processes before rewriting.
		s.mergeFromDisk()
		s.emails[normalized] = struct{}{}

		if err := s.persist(); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := fsutil.AppendJSONLine(s.auditPath, auditRecord{
			Email:     normalized,
			Reason:    reason,
			Timestamp: now.Format(time.RFC3339),
		}); err != nil {
			// The set write already succeeded; a lost audit line is
			// reported but does not undo the suppression.
			logger.Warn("suppression audit append failed", "error", err)
		}

		logger.Info("address suppressed", "email", normalized, "reason", string(reason), "total", len(s.emails))
		return nil
	})
}

// Reload discards the in-memory set and re-reads the file. Callers use it
// at process start when another process may have written in between.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = make(map[string]struct{})
	s.loadLocked()
}

// loadLocked reads the set file into memory. Caller holds no lock on first
// construction; Reload holds s.mu.
func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		logger.Warn("suppression file unreadable, treating as EMPTY set", "path", s.path, "error", err)
		return
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("suppression file corrupt, treating as EMPTY set", "path", s.path, "error", err)
		return
	}

	for _, e := range f.SuppressedEmails {
		s.emails[Normalize(e)] = struct{}{}
	}
	if f.Count != len(f.SuppressedEmails) {
		logger.Warn("suppression file count mismatch", "path", s.path, "count", f.Count, "entries", len(f.SuppressedEmails))
	}
}

// mergeFromDisk folds the current file contents into the in-memory set.
// Runs under both the file lock and s.mu.
func (s *Store) mergeFromDisk() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return
	}
	for _, e := range f.SuppressedEmails {
		s.emails[Normalize(e)] = struct{}{}
	}
}

// persist writes the full set atomically. Runs under s.mu.
func (s *Store) persist() error {
	emails := make([]string, 0, len(s.emails))
	for e := range s.emails {
		emails = append(emails, e)
	}
	sort.Strings(emails)

	return fsutil.WriteJSONAtomic(s.path, fileFormat{
		SuppressedEmails: emails,
		LastUpdated:      time.Now().UTC().Format(time.RFC3339),
		Count:            len(emails),
	})
}
