package inbox

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach/internal/suppression"
)

func newTestIngester(t *testing.T, opts Options) (*Ingester, *suppression.Store, *Watermark) {
	t.Helper()
	dir := t.TempDir()
	store, err := suppression.NewStore(
		filepath.Join(dir, "suppression.json"), filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	wm := LoadWatermark(filepath.Join(dir, "watermark.json"))
	return NewIngester(opts, store, wm), store, wm
}

func TestHandleUnsubscribeFeedsSuppression(t *testing.T) {
	ing, store, _ := newTestIngester(t, Options{})
	ctx := context.Background()

	ing.handle(ctx, Reply{
		MessageUID:   "11",
		FromAddress:  "Alice@Example.com",
		Subject:      "please stop",
		ClassifiedAs: ClassUnsubscribe,
	})

	assert.True(t, store.IsSuppressed("alice@example.com"))
	assert.Equal(t, 1, store.Count())
}

func TestHandleUnsubscribeIsIdempotent(t *testing.T) {
	// Re-processing a message after a lost watermark flush must not grow
	// the suppression set.
	ing, store, _ := newTestIngester(t, Options{})
	ctx := context.Background()

	reply := Reply{MessageUID: "12", FromAddress: "bob@x.com", ClassifiedAs: ClassUnsubscribe}
	ing.handle(ctx, reply)
	ing.handle(ctx, reply)

	assert.Equal(t, 1, store.Count())
}

func TestHandleBounceRespectsSuppressBouncesFlag(t *testing.T) {
	t.Run("off by default", func(t *testing.T) {
		ing, store, _ := newTestIngester(t, Options{})
		ing.handle(context.Background(), Reply{
			MessageUID: "13", FromAddress: "gone@x.com", ClassifiedAs: ClassBounce,
		})
		assert.Equal(t, 0, store.Count())
	})

	t.Run("suppresses when enabled", func(t *testing.T) {
		ing, store, _ := newTestIngester(t, Options{SuppressBounces: true})
		ing.handle(context.Background(), Reply{
			MessageUID: "14", FromAddress: "gone@x.com", ClassifiedAs: ClassBounce,
		})
		assert.True(t, store.IsSuppressed("gone@x.com"))
	})
}

func TestHandleOtherTouchesNothing(t *testing.T) {
	ing, store, _ := newTestIngester(t, Options{SuppressBounces: true})
	ing.handle(context.Background(), Reply{
		MessageUID: "15", FromAddress: "friendly@x.com", ClassifiedAs: ClassOther,
	})
	assert.Equal(t, 0, store.Count())
}

func TestExtractTextBody(t *testing.T) {
	t.Run("plain message falls through raw", func(t *testing.T) {
		raw := "Subject: hi\r\n\r\nplain words here"
		assert.Contains(t, extractTextBody([]byte(raw)), "plain words here")
	})

	t.Run("multipart prefers text/plain", func(t *testing.T) {
		raw := "Mime-Version: 1.0\r\n" +
			"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
			"\r\n" +
			"--BOUND\r\n" +
			"Content-Type: text/plain\r\n" +
			"\r\n" +
			"the plain part\r\n" +
			"--BOUND\r\n" +
			"Content-Type: text/html\r\n" +
			"\r\n" +
			"<p>the html part</p>\r\n" +
			"--BOUND--\r\n"
		assert.Contains(t, extractTextBody([]byte(raw)), "the plain part")
	})

	t.Run("html-only message strips tags", func(t *testing.T) {
		raw := "Mime-Version: 1.0\r\n" +
			"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
			"\r\n" +
			"--BOUND\r\n" +
			"Content-Type: text/html\r\n" +
			"\r\n" +
			"<p>please <b>unsubscribe</b> me</p>\r\n" +
			"--BOUND--\r\n"
		got := extractTextBody([]byte(raw))
		assert.Contains(t, got, "unsubscribe")
		assert.NotContains(t, got, "<b>")
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, extractTextBody(nil))
	})
}

func TestWatermarkedMessagesAreSkipped(t *testing.T) {
	// Scan-level idempotence reduces to the watermark check: a UID in the
	// watermark is never fetched, classified, or handled again.
	_, store, wm := newTestIngester(t, Options{})
	wm.Add("20")
	wm.Add("21")

	assert.True(t, wm.Contains("20"))
	assert.True(t, wm.Contains("21"))
	assert.Equal(t, 0, store.Count())
}
