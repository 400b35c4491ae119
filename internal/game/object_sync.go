// internal/game/object_sync.go
package game

import "github.com/jason-s-yu/partycards/internal/models"

// UpdateTransform stores the latest placement of a shared scene object and
// relays it to everyone in the room except the sender, who already has it.
func (g *Game) UpdateTransform(sender Client, t models.Transform) error {
	if t.Name == "" {
		return ErrInvalidTransform
	}
	g.Objects[t.Name] = t
	g.fireEventExcept(sender, NewEvent(EventObjectUpdate, t))
	return nil
}
