// internal/game/game_store.go
package game

import (
	"crypto/rand"
	"sort"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
)

// IDLength is the length of a generated room id.
const IDLength = 16

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GameStore is the registry of active rooms keyed by id.
//
// It takes no lock: it is owned by the session manager's event loop and must
// only be used from tasks running there.
type GameStore struct {
	games  map[string]*Game
	logger *logrus.Logger
}

// NewGameStore returns an empty registry.
func NewGameStore(logger *logrus.Logger) *GameStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameStore{
		games:  make(map[string]*Game),
		logger: logger,
	}
}

// CreateOrGet returns the room registered under id, constructing and
// registering it first if needed. On the get path lockIDs, deck and rules
// are ignored: the first writer wins. created reports which path was taken.
func (s *GameStore) CreateOrGet(id string, lockIDs []string, deck *models.Deck, rules HouseRules) (g *Game, created bool) {
	if g, ok := s.games[id]; ok {
		return g, false
	}
	g = NewGame(id, lockIDs, deck, rules, s.logger)
	s.games[id] = g
	s.logger.WithField("game", id).Infof("GameStore: added game, %d active", len(s.games))
	return g, true
}

// GetGame retrieves a room if it exists.
func (s *GameStore) GetGame(id string) (*Game, bool) {
	g, ok := s.games[id]
	return g, ok
}

// DeleteGame removes a room from the registry.
func (s *GameStore) DeleteGame(id string) {
	if _, ok := s.games[id]; !ok {
		s.logger.WithField("game", id).Warn("GameStore: attempted to delete non-existent game")
		return
	}
	delete(s.games, id)
	s.logger.WithField("game", id).Infof("GameStore: deleted game, %d active", len(s.games))
}

// Len returns the number of active rooms.
func (s *GameStore) Len() int {
	return len(s.games)
}

// IDs lists the active room ids in sorted order.
func (s *GameStore) IDs() []string {
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GenerateID returns a random id that no active room uses. The id is not
// reserved; a room only claims it when a client joins with it.
func (s *GameStore) GenerateID() string {
	for {
		id := randomID()
		if _, taken := s.games[id]; !taken {
			return id
		}
	}
}

// randomID draws IDLength symbols uniformly from idAlphabet.
func randomID() string {
	const limit = 256 - 256%len(idAlphabet) // reject bytes that would bias the modulo
	out := make([]byte, 0, IDLength)
	buf := make([]byte, IDLength*2)
	for len(out) < IDLength {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == IDLength {
				break
			}
		}
	}
	return string(out)
}
