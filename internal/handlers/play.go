// internal/handlers/play.go
package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jason-s-yu/partycards/internal/session"
	"github.com/sirupsen/logrus"
)

// IndexTemplate is the game page inside the static directory.
const IndexTemplate = "index.html"

// pageData is what the game page template can reference.
type pageData struct {
	GameID       string
	AnalyticsID  string
	DefaultDeck  string
	WebSocketURL string
}

// PlayHandler serves the game page. Without a gameId it picks a fresh room id
// and redirects back to itself with the id appended to the query string.
func PlayHandler(logger *logrus.Logger, mgr *session.Manager, staticDir, analyticsID, defaultDeck string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		gameID := r.URL.Query().Get("gameId")
		if gameID == "" {
			id, err := mgr.GenerateID(r.Context())
			if err != nil {
				logger.Warnf("Could not generate a room id: %v", err)
				http.Error(w, "server unavailable", http.StatusServiceUnavailable)
				return
			}
			target := r.URL.RequestURI()
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			http.Redirect(w, r, target+sep+"gameId="+id, http.StatusFound)
			return
		}

		// Parsed per request so edits to the page show up without a restart.
		tmpl, err := template.ParseFiles(filepath.Join(staticDir, IndexTemplate))
		if err != nil {
			logger.Errorf("Failed to load game page: %v", err)
			http.Error(w, "game page unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = tmpl.Execute(w, pageData{
			GameID:       gameID,
			AnalyticsID:  analyticsID,
			DefaultDeck:  defaultDeck,
			WebSocketURL: "/ws?gameId=" + gameID,
		})
		if err != nil {
			logger.Warnf("Failed to render game page: %v", err)
		}
	}
}

// StaticHandler serves files from dir under prefix.
func StaticHandler(prefix, dir string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
}

// NotFoundHandler answers everything no other route claims.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "404 File Not Found", http.StatusNotFound)
}

// HealthHandler reports liveness together with the active room count.
func HealthHandler(logger *logrus.Logger, mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := mgr.Stats(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"rooms":  stats.Rooms,
		}); err != nil {
			logger.Warnf("Failed to write health response: %v", err)
		}
	}
}
