// internal/game/rules.go
package game

import "fmt"

// HouseRules are the per-room table limits fixed at room creation.
type HouseRules struct {
	HandSize   int `json:"handSize"`   // white cards each seated player holds after a deal
	MaxPlayers int `json:"maxPlayers"` // seats at the table; further join requests are denied
}

// DefaultHouseRules mirrors the table the browser client is laid out for.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		HandSize:   10,
		MaxPlayers: 12,
	}
}

// Validate reports rules a room cannot be played with.
func (r HouseRules) Validate() error {
	if r.HandSize < 1 {
		return fmt.Errorf("hand size must be positive, got %d", r.HandSize)
	}
	if r.MaxPlayers < 1 {
		return fmt.Errorf("max players must be positive, got %d", r.MaxPlayers)
	}
	return nil
}
