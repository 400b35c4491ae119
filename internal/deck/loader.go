// internal/deck/loader.go
package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// maxDeckBytes caps how much of a remote deck is read.
const maxDeckBytes = 8 << 20

var (
	// ErrNotFound is returned when a locator names no readable deck.
	ErrNotFound = errors.New("deck not found")
	// ErrInvalid is returned for decks that parse but hold no cards.
	ErrInvalid = errors.New("deck has no cards")
	// ErrHostNotAllowed is returned for remote decks outside AllowedHosts.
	ErrHostNotAllowed = errors.New("deck host not allowed")
)

// Loader resolves a deck locator to card data.
type Loader interface {
	Load(ctx context.Context, locator string) (*models.Deck, error)
}

// FileHTTPLoader reads local decks from Dir and fetches http(s) locators with Client.
// Remote decks are only fetched from AllowedHosts; an empty list refuses them
// all and "*" admits any host.
type FileHTTPLoader struct {
	Dir          string
	DefaultDeck  string
	AllowedHosts []string
	Client       *http.Client
	logger       *logrus.Logger
}

// NewLoader builds a loader serving decks from dir. defaultDeck is used for
// an empty locator and is itself resolved like any other locator.
func NewLoader(dir, defaultDeck string, logger *logrus.Logger) *FileHTTPLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &FileHTTPLoader{
		Dir:         dir,
		DefaultDeck: defaultDeck,
		logger:      logger,
	}
	l.Client = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return l.checkHost(req.URL)
		},
	}
	return l
}

func (l *FileHTTPLoader) checkHost(u *url.URL) error {
	host := u.Hostname()
	for _, allowed := range l.AllowedHosts {
		if allowed == "*" || strings.EqualFold(allowed, host) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", host, ErrHostNotAllowed)
}

// Load resolves locator. Decks are JSON, or YAML when the name ends in .yaml
// or .yml. Absolute http(s) URLs are fetched; anything else is
// a path under Dir, with a leading "/decks/" stripped so the URLs the static
// handler serves can be handed back as locators.
func (l *FileHTTPLoader) Load(ctx context.Context, locator string) (*models.Deck, error) {
	if locator == "" {
		locator = l.DefaultDeck
	}
	if locator == "" {
		return nil, fmt.Errorf("no deck locator and no default deck: %w", ErrNotFound)
	}

	var (
		d   *models.Deck
		err error
	)
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		d, err = l.fetch(ctx, locator)
	} else {
		d, err = l.readFile(locator)
	}
	if err != nil {
		return nil, err
	}
	if len(d.Black) == 0 && len(d.White) == 0 {
		return nil, fmt.Errorf("%s: %w", locator, ErrInvalid)
	}
	l.logger.Debugf("Loaded deck %s (%d black, %d white)", locator, len(d.Black), len(d.White))
	return d, nil
}

func (l *FileHTTPLoader) readFile(locator string) (*models.Deck, error) {
	name := strings.TrimPrefix(locator, "/decks/")
	// Clean against a rooted path so ".." cannot climb out of Dir.
	name = filepath.Clean("/" + filepath.FromSlash(name))
	f, err := os.Open(filepath.Join(l.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", locator, ErrNotFound)
		}
		return nil, fmt.Errorf("open deck %s: %w", locator, err)
	}
	defer f.Close()
	return decode(f, locator, isYAML(name, ""))
}

func (l *FileHTTPLoader) fetch(ctx context.Context, rawURL string) (*models.Deck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build deck request: %w", err)
	}
	if err := l.checkHost(req.URL); err != nil {
		l.logger.Warnf("Refused remote deck %s: %v", rawURL, err)
		return nil, err
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch deck %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch deck %s: unexpected status %s", rawURL, resp.Status)
	}
	return decode(io.LimitReader(resp.Body, maxDeckBytes), rawURL, isYAML(req.URL.Path, resp.Header.Get("Content-Type")))
}

// isYAML reports whether a deck is YAML, going by the file extension first
// and the response content type second. Everything else is read as JSON.
func isYAML(name, contentType string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return true
	case ".json":
		return false
	}
	return strings.Contains(contentType, "yaml")
}

func decode(r io.Reader, locator string, yamlDeck bool) (*models.Deck, error) {
	var d models.Deck
	var err error
	if yamlDeck {
		err = yaml.NewDecoder(r).Decode(&d)
	} else {
		err = json.NewDecoder(r).Decode(&d)
	}
	if err != nil {
		return nil, fmt.Errorf("decode deck %s: %w", locator, err)
	}
	return &d, nil
}
