// internal/handlers/feedback.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	maxFeedbackBody    = 16 << 10
	maxFeedbackMessage = 4000
	maxFeedbackName    = 100
)

// FeedbackStore persists player feedback.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb *models.Feedback) error
}

// LogFeedbackStore writes feedback to the log when no database is configured.
type LogFeedbackStore struct {
	Logger *logrus.Logger
}

func (s LogFeedbackStore) SaveFeedback(_ context.Context, fb *models.Feedback) error {
	s.Logger.WithFields(logrus.Fields{
		"feedback_id": fb.ID,
		"game":        fb.GameID,
		"name":        fb.Name,
		"user_agent":  fb.UserAgent,
	}).Infof("Feedback: %s", fb.Message)
	return nil
}

type feedbackRequest struct {
	GameID  string `json:"gameId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// FeedbackHandler accepts POST /feedback with a JSON body of gameId, name and message.
func FeedbackHandler(logger *logrus.Logger, store FeedbackStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req feedbackRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody))
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		req.Name = strings.TrimSpace(req.Name)
		switch {
		case req.Message == "":
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		case len(req.Message) > maxFeedbackMessage:
			http.Error(w, "message is too long", http.StatusRequestEntityTooLarge)
			return
		case len(req.Name) > maxFeedbackName:
			http.Error(w, "name is too long", http.StatusBadRequest)
			return
		}

		fb := &models.Feedback{
			ID:        uuid.New(),
			GameID:    req.GameID,
			Name:      req.Name,
			Message:   req.Message,
			UserAgent: r.UserAgent(),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.SaveFeedback(r.Context(), fb); err != nil {
			logger.Errorf("Failed to save feedback: %v", err)
			http.Error(w, "could not save feedback", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fb.ID.String()})
	}
}
