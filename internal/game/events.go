// internal/game/events.go
package game

// EventType names an outbound event. The names are part of the wire contract
// shared with the browser client and must not change.
type EventType string

const (
	EventInit               EventType = "init"
	EventError              EventType = "error"
	EventReload             EventType = "reload"
	EventPlayerJoinRequest  EventType = "playerJoinRequest"
	EventPlayerJoinDenied   EventType = "playerJoinDenied"
	EventPlayerJoin         EventType = "playerJoin"
	EventPlayerLeave        EventType = "playerLeave"
	EventPlayerKickRequest  EventType = "playerKickRequest"
	EventPlayerKickResponse EventType = "playerKickResponse"
	EventDealCards          EventType = "dealCards"
	EventHand               EventType = "hand"
	EventRoundStart         EventType = "roundStart"
	EventCardSelection      EventType = "cardSelection"
	EventPresentSubmission  EventType = "presentSubmission"
	EventWinnerSelection    EventType = "winnerSelection"
	EventObjectUpdate       EventType = "objectUpdate"
)

// Event is an outbound message: a name plus positional arguments, encoded as
// {"type": "...", "args": [...]}.
//
// Args are marshalled on the connection's writer goroutine, so they must never
// alias mutable room state. Handlers build copies before firing.
type Event struct {
	Type EventType     `json:"type"`
	Args []interface{} `json:"args"`
}

// NewEvent builds an Event, normalising a missing argument list to [].
func NewEvent(t EventType, args ...interface{}) Event {
	if args == nil {
		args = []interface{}{}
	}
	return Event{Type: t, Args: args}
}

// ErrorEvent is the unicast error notification sent to a single client.
func ErrorEvent(msg string) Event {
	return NewEvent(EventError, msg)
}

// Client is the connection handle every handler is invoked with. It stands in
// for the emitting socket: handlers use it to find the room, to check the
// cached lock list and to answer the sender directly.
type Client interface {
	ID() string
	GameID() string
	LockIDs() []string
	Send(ev Event)
}
