// Package inbox scans the reply mailbox for unsubscribe and bounce
// messages and feeds detected unsubscribes back into the suppression
// store. It runs as its own process and never touches rate-limit state.
package inbox

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/ignite/outreach/internal/pkg/fsutil"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// Watermark is the persisted set of already-processed message identifiers.
// Once an identifier is recorded it is never reprocessed, across restarts
// included. Losing a flush only re-processes a few messages, which is
// harmless because suppression adds are idempotent.
type Watermark struct {
	path string

	mu   sync.Mutex
	uids map[string]struct{}
}

// LoadWatermark reads the watermark file (a JSON array of identifiers).
// A corrupt file degrades to an empty watermark with a warning, which at
// worst re-processes old messages.
func LoadWatermark(path string) *Watermark {
	w := &Watermark{path: path, uids: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return w
	}
	if err != nil {
		logger.Warn("watermark unreadable, re-scanning from scratch", "path", path, "error", err)
		return w
	}

	var uids []string
	if err := json.Unmarshal(data, &uids); err != nil {
		logger.Warn("watermark corrupt, re-scanning from scratch", "path", path, "error", err)
		return w
	}
	for _, uid := range uids {
		w.uids[uid] = struct{}{}
	}
	return w
}

// Contains reports whether the identifier was already processed.
func (w *Watermark) Contains(uid string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.uids[uid]
	return ok
}

// Add marks an identifier as processed in memory. Flush persists.
func (w *Watermark) Add(uid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.uids[uid] = struct{}{}
}

// Len returns the number of processed identifiers.
func (w *Watermark) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.uids)
}

// Flush writes the watermark atomically.
func (w *Watermark) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	uids := make([]string, 0, len(w.uids))
	for uid := range w.uids {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return fsutil.WriteJSONAtomic(w.path, uids)
}
