// internal/session/messages.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/jason-s-yu/partycards/internal/models"
)

var (
	// ErrUnknownEvent is returned by Decode for event names outside the protocol.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned by Decode when a known event has bad arguments.
	ErrMalformed = errors.New("malformed event")
)

// Message is a decoded inbound event.
type Message interface {
	EventName() string
}

type (
	JoinRequestMessage struct{ ID, DisplayName string }
	JoinDeniedMessage  struct{ ID, DisplayName, Message string }
	JoinMessage        struct{ ID, DisplayName string }
	LeaveMessage       struct{ ID, DisplayName, Message, Reason string }
	KickRequestMessage struct{ ID, DisplayName string }
	KickResponseMessage struct {
		ID, DisplayName string
		Approve         bool
	}
	DealCardsMessage     struct{}
	RoundStartMessage    struct{}
	CardSelectionMessage struct {
		PlayerID    string
		HandIndexes []int
	}
	PresentSubmissionMessage struct{ PlayerID string }
	WinnerSelectionMessage   struct{ PlayerID string }
	ObjectUpdateMessage      struct{ Transform models.Transform }
	ReloadMessage            struct{}
	ErrorMessage             struct{ Message string }
)

func (JoinRequestMessage) EventName() string       { return string(game.EventPlayerJoinRequest) }
func (JoinDeniedMessage) EventName() string        { return string(game.EventPlayerJoinDenied) }
func (JoinMessage) EventName() string              { return string(game.EventPlayerJoin) }
func (LeaveMessage) EventName() string             { return string(game.EventPlayerLeave) }
func (KickRequestMessage) EventName() string       { return string(game.EventPlayerKickRequest) }
func (KickResponseMessage) EventName() string      { return string(game.EventPlayerKickResponse) }
func (DealCardsMessage) EventName() string         { return string(game.EventDealCards) }
func (RoundStartMessage) EventName() string        { return string(game.EventRoundStart) }
func (CardSelectionMessage) EventName() string     { return string(game.EventCardSelection) }
func (PresentSubmissionMessage) EventName() string { return string(game.EventPresentSubmission) }
func (WinnerSelectionMessage) EventName() string   { return string(game.EventWinnerSelection) }
func (ObjectUpdateMessage) EventName() string      { return string(game.EventObjectUpdate) }
func (ReloadMessage) EventName() string            { return string(game.EventReload) }
func (ErrorMessage) EventName() string             { return string(game.EventError) }

// envelope is the wire frame shared by both directions.
type envelope struct {
	Type string            `json:"type"`
	Args []json.RawMessage `json:"args"`
}

// Decode parses one inbound frame into its typed message.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var (
		msg Message
		err error
	)
	switch game.EventType(env.Type) {
	case game.EventPlayerJoinRequest:
		var m JoinRequestMessage
		err = decodeArgs(env.Args, 2, &m.ID, &m.DisplayName)
		msg = m
	case game.EventPlayerJoinDenied:
		var m JoinDeniedMessage
		err = decodeArgs(env.Args, 1, &m.ID, &m.DisplayName, &m.Message)
		msg = m
	case game.EventPlayerJoin:
		var m JoinMessage
		err = decodeArgs(env.Args, 2, &m.ID, &m.DisplayName)
		msg = m
	case game.EventPlayerLeave:
		var m LeaveMessage
		err = decodeArgs(env.Args, 1, &m.ID, &m.DisplayName, &m.Message, &m.Reason)
		msg = m
	case game.EventPlayerKickRequest:
		var m KickRequestMessage
		err = decodeArgs(env.Args, 1, &m.ID, &m.DisplayName)
		msg = m
	case game.EventPlayerKickResponse:
		var m KickResponseMessage
		err = decodeArgs(env.Args, 3, &m.ID, &m.DisplayName, &m.Approve)
		msg = m
	case game.EventDealCards:
		msg = DealCardsMessage{}
	case game.EventRoundStart:
		msg = RoundStartMessage{}
	case game.EventCardSelection:
		var m CardSelectionMessage
		err = decodeArgs(env.Args, 2, &m.PlayerID, &m.HandIndexes)
		msg = m
	case game.EventPresentSubmission:
		var m PresentSubmissionMessage
		err = decodeArgs(env.Args, 1, &m.PlayerID)
		msg = m
	case game.EventWinnerSelection:
		var m WinnerSelectionMessage
		err = decodeArgs(env.Args, 1, &m.PlayerID)
		msg = m
	case game.EventObjectUpdate:
		var m ObjectUpdateMessage
		err = decodeArgs(env.Args, 1, &m.Transform)
		msg = m
	case game.EventReload:
		msg = ReloadMessage{}
	case game.EventError:
		var m ErrorMessage
		// Clients report arbitrary values here; keep the raw text when it is not a string.
		if len(env.Args) > 0 && json.Unmarshal(env.Args[0], &m.Message) != nil {
			m.Message = string(env.Args[0])
		}
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

// decodeArgs fills dst from positional args. The first required args must be
// present and non-null; later ones keep their zero value when missing.
func decodeArgs(args []json.RawMessage, required int, dst ...interface{}) error {
	if len(args) < required {
		return fmt.Errorf("want at least %d args, got %d", required, len(args))
	}
	for i, d := range dst {
		if i >= len(args) {
			break
		}
		if string(args[i]) == "null" {
			if i < required {
				return fmt.Errorf("arg %d is null", i)
			}
			continue
		}
		if err := json.Unmarshal(args[i], d); err != nil {
			return fmt.Errorf("arg %d: %w", i, err)
		}
	}
	return nil
}

// JoinParams are the handshake parameters carried in the connection URL.
type JoinParams struct {
	GameID  string
	LockIDs []string
	DeckURL string
}

// ParseJoinParams reads gameId, lockIds (comma separated) and deckUrl.
func ParseJoinParams(q url.Values) JoinParams {
	p := JoinParams{
		GameID:  q.Get("gameId"),
		DeckURL: q.Get("deckUrl"),
	}
	if raw := q.Get("lockIds"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				p.LockIDs = append(p.LockIDs, id)
			}
		}
	}
	return p
}
