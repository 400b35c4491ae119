// internal/game/player.go
package game

// Player is a seat at the table. Hand is secret to the player's own
// connection; everything else is public.
type Player struct {
	ID          string
	DisplayName string
	Hand        []string
	Wins        []string

	// Client is the connection that asked for this seat, if it is still known.
	Client Client
}

// PublicPlayer is the redacted view of a Player sent to every client.
type PublicPlayer struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	HandSize    int      `json:"handSize"`
	Wins        []string `json:"wins"`
}

func (p *Player) public() PublicPlayer {
	return PublicPlayer{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		HandSize:    len(p.Hand),
		Wins:        append([]string{}, p.Wins...),
	}
}

// CleanTurnOrder returns the turn order with hidden per-player state removed.
func (g *Game) CleanTurnOrder() []PublicPlayer {
	out := make([]PublicPlayer, 0, len(g.TurnOrder))
	for _, p := range g.TurnOrder {
		out = append(out, p.public())
	}
	return out
}
