// internal/game/snapshot.go
package game

// Snapshot is the state handed to a connection when it joins a room.
type Snapshot struct {
	TurnOrder   []PublicPlayer
	State       State
	BlackCard   *string
	CzarID      *string
	Submissions map[string][]string
}

// Snapshot copies the room state a late joiner needs. Nothing in the result
// aliases the room, so it can be marshalled off the event loop.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		TurnOrder:   g.CleanTurnOrder(),
		State:       g.State,
		BlackCard:   g.BlackCard(),
		CzarID:      g.CzarID(),
		Submissions: copySubmissions(g.Submissions),
	}
}

// Event renders the snapshot as the positional init event:
// init(turnOrder, state, blackCard, czarIdOrNull, submissionsOrNull).
func (s Snapshot) Event() Event {
	var submissions interface{}
	if s.Submissions != nil {
		submissions = s.Submissions
	}
	var blackCard, czarID interface{}
	if s.BlackCard != nil {
		blackCard = *s.BlackCard
	}
	if s.CzarID != nil {
		czarID = *s.CzarID
	}
	return NewEvent(EventInit, s.TurnOrder, s.State, blackCard, czarID, submissions)
}

func copySubmissions(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for id, cards := range in {
		out[id] = append([]string(nil), cards...)
	}
	return out
}
