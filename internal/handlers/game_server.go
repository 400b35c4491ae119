// internal/handlers/game_server.go
package handlers

import (
	"net/http"
	"time"

	"github.com/jason-s-yu/partycards/internal/deck"
	"github.com/jason-s-yu/partycards/internal/middleware"
	"github.com/jason-s-yu/partycards/internal/session"
	"github.com/sirupsen/logrus"
)

// GameServer holds what the HTTP routes share: the session manager that owns
// every room, the deck loader and the feedback store.
type GameServer struct {
	Logger   *logrus.Logger
	Manager  *session.Manager
	Decks    deck.Loader
	Feedback FeedbackStore

	StaticDir   string
	DecksDir    string
	DefaultDeck string
	AnalyticsID string
	DeckTimeout time.Duration
}

// Routes builds the HTTP surface. Every route is wrapped in request logging;
// pages and assets are gzipped.
func (gs *GameServer) Routes() http.Handler {
	feedback := gs.Feedback
	if feedback == nil {
		feedback = LogFeedbackStore{Logger: gs.Logger}
	}
	deckTimeout := gs.DeckTimeout
	if deckTimeout <= 0 {
		deckTimeout = 10 * time.Second
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", PlayWSHandler(gs.Logger, gs.Manager, gs.Decks, deckTimeout))
	mux.Handle("/play", CompressHandler(gs.Logger, PlayHandler(gs.Logger, gs.Manager, gs.StaticDir, gs.AnalyticsID, gs.DefaultDeck)))
	mux.Handle("/static/", CompressHandler(gs.Logger, StaticHandler("/static/", gs.StaticDir)))
	mux.Handle("/decks/", CompressHandler(gs.Logger, StaticHandler("/decks/", gs.DecksDir)))
	mux.Handle("/feedback", FeedbackHandler(gs.Logger, feedback))
	mux.Handle("/healthz", HealthHandler(gs.Logger, gs.Manager))
	mux.HandleFunc("/", NotFoundHandler)

	return middleware.LogMiddleware(gs.Logger)(mux)
}
