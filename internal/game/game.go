// internal/game/game.go
package game

import (
	"errors"
	"math/rand"
	"time"

	"github.com/jason-s-yu/partycards/internal/models"
	"github.com/sirupsen/logrus"
)

// State is the phase of a room's turn state machine.
type State string

const (
	StateLobby       State = "Lobby"
	StateDealing     State = "Dealing"
	StateRoundActive State = "RoundActive"
	StateSubmitting  State = "Submitting"
	StatePresenting  State = "Presenting"
	StateJudging     State = "Judging"
)

var (
	ErrBadPhase          = errors.New("action not allowed in the current game state")
	ErrUnknownPlayer     = errors.New("player is not at the table")
	ErrInvalidPlayer     = errors.New("player id and display name are required")
	ErrAlreadySeated     = errors.New("player is already at the table")
	ErrNotSeated         = errors.New("connection has no player at the table")
	ErrLocked            = errors.New("game is locked")
	ErrTableFull         = errors.New("game is full")
	ErrIsCzar            = errors.New("the czar does not submit cards")
	ErrAlreadySubmitted  = errors.New("player already submitted this round")
	ErrBadSelection      = errors.New("invalid card selection")
	ErrNoSubmission      = errors.New("player has no submission this round")
	ErrNoKickVote        = errors.New("no kick vote is open for that player")
	ErrNotCzar           = errors.New("only the czar can do that")
	ErrInvalidTransform  = errors.New("object transform needs a name")
)

// OnActionFunc receives every state-changing action for the room event log.
type OnActionFunc func(actorID, actionType string, payload map[string]interface{})

// Game holds the entire state for a single room in memory.
//
// A Game is not safe for concurrent use. Every method must run on the
// session manager's event loop, which is the only goroutine that touches
// rooms and the registry.
type Game struct {
	ID      string
	LockIDs []string
	Deck    *models.Deck
	Rules   HouseRules

	State     State
	TurnOrder []*Player
	// Czar indexes TurnOrder. After departures it may point past the end;
	// readers must bounds-check.
	Czar             int
	CurrentBlackCard int
	Round            int
	// Submissions is nil until the first card selection of a round.
	Submissions map[string][]string
	Objects     map[string]models.Transform

	blackOrder   []int
	blackPos     int
	whitePile    []string
	whiteDiscard []string

	pendingJoins map[string]Client
	kickVotes    map[string]map[string]bool

	// czarVacated is set when the czar's seat empties; the next deal hands the
	// role to whoever now sits at Czar instead of advancing past them.
	czarVacated bool

	actionIndex int
	rng         *rand.Rand
	log         *logrus.Entry

	// BroadcastFn sends an event to every connection subscribed to the room,
	// skipping except when it is non-nil. If nil, no broadcast is done.
	BroadcastFn func(ev Event, except Client)

	// OnAction is invoked for each recorded action. Optional.
	OnAction OnActionFunc
}

// NewGame builds an empty room in the Lobby state bound to deck.
func NewGame(id string, lockIDs []string, deck *models.Deck, rules HouseRules, logger *logrus.Logger) *Game {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if deck == nil {
		deck = &models.Deck{}
	}
	g := &Game{
		ID:               id,
		LockIDs:          append([]string(nil), lockIDs...),
		Deck:             deck,
		Rules:            rules,
		State:            StateLobby,
		TurnOrder:        []*Player{},
		CurrentBlackCard: -1,
		Objects:          make(map[string]models.Transform),
		pendingJoins:     make(map[string]Client),
		kickVotes:        make(map[string]map[string]bool),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		log:              logger.WithField("game", id),
	}
	g.whitePile = append([]string(nil), deck.White...)
	g.shuffleWhites(g.whitePile)
	return g
}

// Locked reports whether the room was created with an allow-list.
func (g *Game) Locked() bool {
	return len(g.LockIDs) > 0
}

// BlackCard returns the active black card text, or nil before the first deal.
func (g *Game) BlackCard() *string {
	card, ok := g.Deck.BlackCard(g.CurrentBlackCard)
	if !ok {
		return nil
	}
	return &card
}

// CzarPlayer returns the current judge, or nil if Czar is out of range.
func (g *Game) CzarPlayer() *Player {
	if g.Czar < 0 || g.Czar >= len(g.TurnOrder) {
		return nil
	}
	return g.TurnOrder[g.Czar]
}

// CzarID returns the current judge's id, or nil when there is none.
func (g *Game) CzarID() *string {
	p := g.CzarPlayer()
	if p == nil {
		return nil
	}
	id := p.ID
	return &id
}

// fireEvent broadcasts an event to the whole room.
func (g *Game) fireEvent(ev Event) {
	g.fireEventExcept(nil, ev)
}

// fireEventExcept broadcasts an event to the room, skipping one connection.
func (g *Game) fireEventExcept(except Client, ev Event) {
	if g.BroadcastFn == nil {
		g.log.Warnf("BroadcastFn is nil, cannot broadcast event type %s", ev.Type)
		return
	}
	g.BroadcastFn(ev, except)
}

// logAction forwards an action to OnAction with a monotonically increasing index.
func (g *Game) logAction(actorID, actionType string, payload map[string]interface{}) {
	g.actionIndex++
	if g.OnAction == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["action_index"] = g.actionIndex
	g.OnAction(actorID, actionType, payload)
}

// playerIndex returns the TurnOrder index of id, or -1.
func (g *Game) playerIndex(id string) int {
	for i, p := range g.TurnOrder {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// getPlayerByID finds a seated player.
func (g *Game) getPlayerByID(id string) *Player {
	if i := g.playerIndex(id); i >= 0 {
		return g.TurnOrder[i]
	}
	return nil
}

func (g *Game) shuffleWhites(cards []string) {
	g.rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
}

// drawWhite takes the top of the white pile, recycling discards when it runs out.
func (g *Game) drawWhite() (string, bool) {
	if len(g.whitePile) == 0 {
		if len(g.whiteDiscard) == 0 {
			return "", false
		}
		g.whitePile = g.whiteDiscard
		g.whiteDiscard = nil
		g.shuffleWhites(g.whitePile)
		g.log.Debug("Reshuffled white discard into the draw pile")
	}
	last := len(g.whitePile) - 1
	card := g.whitePile[last]
	g.whitePile = g.whitePile[:last]
	return card, true
}

// nextBlackCard advances to the next black card of a shuffled cycle.
func (g *Game) nextBlackCard() int {
	if len(g.Deck.Black) == 0 {
		return -1
	}
	if g.blackPos >= len(g.blackOrder) {
		g.blackOrder = g.rng.Perm(len(g.Deck.Black))
		g.blackPos = 0
	}
	idx := g.blackOrder[g.blackPos]
	g.blackPos++
	return idx
}
