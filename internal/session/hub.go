// internal/session/hub.go
package session

import "github.com/jason-s-yu/partycards/internal/game"

// GroupName is the broadcast group of a room.
func GroupName(gameID string) string {
	return gameID + "_clients"
}

// Hub tracks broadcast group membership. Like the registry it is owned by
// the manager loop and takes no lock.
type Hub struct {
	groups map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Conn]struct{})}
}

// Subscribe adds c to group.
func (h *Hub) Subscribe(group string, c *Conn) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Conn]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// Unsubscribe removes c from group. A group with no members is dropped.
func (h *Hub) Unsubscribe(group string, c *Conn) {
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// Empty reports whether group is absent or has no members.
func (h *Hub) Empty(group string) bool {
	return len(h.groups[group]) == 0
}

// Len returns the number of members of group.
func (h *Hub) Len(group string) int {
	return len(h.groups[group])
}

// Broadcast queues ev on every member of group except the given client.
func (h *Hub) Broadcast(group string, ev game.Event, except game.Client) {
	for c := range h.groups[group] {
		if except != nil && c.ID() == except.ID() {
			continue
		}
		c.Send(ev)
	}
}
