// internal/deck/loader_test.go
package deck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeck = `{"black":["Q1"],"white":["A1","A2"]}`

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func writeDeck(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeDeck(t, dir, "base.json", sampleDeck)
	l := NewLoader(dir, "base.json", quietLogger())

	for _, locator := range []string{"base.json", "/decks/base.json", ""} {
		d, err := l.Load(context.Background(), locator)
		require.NoError(t, err, "locator %q", locator)
		assert.Equal(t, []string{"Q1"}, d.Black)
		assert.Equal(t, []string{"A1", "A2"}, d.White)
	}
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader(t.TempDir(), "", quietLogger())

	_, err := l.Load(context.Background(), "nope.json")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = l.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadStaysInsideDir(t *testing.T) {
	root := t.TempDir()
	decks := filepath.Join(root, "decks")
	require.NoError(t, os.Mkdir(decks, 0o755))
	writeDeck(t, root, "secret.json", sampleDeck)
	l := NewLoader(decks, "", quietLogger())

	_, err := l.Load(context.Background(), "../secret.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRejectsBadDecks(t *testing.T) {
	dir := t.TempDir()
	writeDeck(t, dir, "broken.json", `{"black": [`)
	writeDeck(t, dir, "empty.json", `{}`)
	l := NewLoader(dir, "", quietLogger())

	_, err := l.Load(context.Background(), "broken.json")
	assert.Error(t, err)
	_, err = l.Load(context.Background(), "empty.json")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/custom.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDeck))
	}))
	defer srv.Close()
	l := NewLoader(t.TempDir(), "", quietLogger())
	l.AllowedHosts = []string{"127.0.0.1"}

	d, err := l.Load(context.Background(), srv.URL+"/custom.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, d.Black)

	_, err = l.Load(context.Background(), srv.URL+"/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	l := NewLoader(t.TempDir(), "", quietLogger())
	l.AllowedHosts = []string{"*"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := l.Load(ctx, srv.URL+"/slow.json")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadYAMLDecks(t *testing.T) {
	dir := t.TempDir()
	writeDeck(t, dir, "party.yaml", "black:\n  - Q1\nwhite:\n  - A1\n  - A2\n")
	l := NewLoader(dir, "", quietLogger())
	l.AllowedHosts = []string{"127.0.0.1"}

	d, err := l.Load(context.Background(), "party.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, d.Black)
	assert.Equal(t, []string{"A1", "A2"}, d.White)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte("black: [Q9]\nwhite: [A9]\n"))
	}))
	defer srv.Close()

	d, err = l.Load(context.Background(), srv.URL+"/deck")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q9"}, d.Black)
}

func TestLoadRefusesUnlistedHosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/moved.json" {
			http.Redirect(w, r, "http://decks.example.invalid/deck.json", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(sampleDeck))
	}))
	defer srv.Close()

	l := NewLoader(t.TempDir(), "", quietLogger())
	_, err := l.Load(context.Background(), srv.URL+"/deck.json")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Zero(t, hits.Load(), "no request leaves without an allowed host")

	l.AllowedHosts = []string{"decks.example.org"}
	_, err = l.Load(context.Background(), srv.URL+"/deck.json")
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	l.AllowedHosts = []string{"127.0.0.1"}
	_, err = l.Load(context.Background(), srv.URL+"/moved.json")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.EqualValues(t, 1, hits.Load())

	// Local decks are unaffected.
	dir := t.TempDir()
	writeDeck(t, dir, "base.json", sampleDeck)
	_, err = NewLoader(dir, "", quietLogger()).Load(context.Background(), "base.json")
	assert.NoError(t, err)
}

func TestIsYAML(t *testing.T) {
	assert.True(t, isYAML("a.yml", ""))
	assert.True(t, isYAML("/x/a.YAML", "application/json"))
	assert.False(t, isYAML("a.json", "text/yaml"))
	assert.True(t, isYAML("/deck", "text/yaml; charset=utf-8"))
	assert.False(t, isYAML("/deck", "application/json"))
}
