// internal/game/roster.go
package game

import (
	"fmt"
	"slices"
)

// PlayerForClient returns the seated player bound to c, or nil.
func (g *Game) PlayerForClient(c Client) *Player {
	if c == nil {
		return nil
	}
	for _, p := range g.TurnOrder {
		if p.Client != nil && p.Client.ID() == c.ID() {
			return p
		}
	}
	return nil
}

// JoinRequest asks for a seat. An empty table seats the requester at once;
// otherwise the request is broadcast so a seated player can approve it with
// Join or refuse it with JoinDenied. Refusals decided here are sent to the
// requester only.
func (g *Game) JoinRequest(sender Client, id, displayName string) error {
	if id == "" || displayName == "" {
		return ErrInvalidPlayer
	}

	if reason := g.denyReason(sender, id); reason != "" {
		g.log.Infof("Join request from %s (%s) denied: %s", displayName, id, reason)
		sender.Send(NewEvent(EventPlayerJoinDenied, id, displayName, reason))
		return nil
	}

	if len(g.TurnOrder) == 0 {
		g.commitJoin(sender, id, displayName)
		return nil
	}

	g.pendingJoins[id] = sender
	g.fireEvent(NewEvent(EventPlayerJoinRequest, id, displayName))
	return nil
}

// denyReason returns a user-facing reason the requester may not sit, or "".
// The lock list comes from the requester's connection, which caches it at
// handshake time.
func (g *Game) denyReason(sender Client, id string) string {
	if lock := sender.LockIDs(); len(lock) > 0 && !slices.Contains(lock, id) {
		return "This game is locked."
	}
	if g.playerIndex(id) >= 0 {
		return "You are already in this game."
	}
	if g.PlayerForClient(sender) != nil {
		return "This connection already has a seat."
	}
	if len(g.TurnOrder) >= g.Rules.MaxPlayers {
		return "This game is full."
	}
	return ""
}

// JoinDenied relays a seated player's refusal of a pending request.
func (g *Game) JoinDenied(sender Client, id, displayName, message string) error {
	if _, ok := g.pendingJoins[id]; !ok {
		return ErrUnknownPlayer
	}
	delete(g.pendingJoins, id)
	if message == "" {
		message = "Your request to join was denied."
	}
	g.fireEvent(NewEvent(EventPlayerJoinDenied, id, displayName, message))
	return nil
}

// Join commits a seat. The pending request's connection is bound to the new
// player; without a pending request the sender is seating itself.
func (g *Game) Join(sender Client, id, displayName string) error {
	if id == "" || displayName == "" {
		return ErrInvalidPlayer
	}
	if g.playerIndex(id) >= 0 {
		return ErrAlreadySeated
	}

	client, pending := g.pendingJoins[id]
	if !pending {
		client = sender
	}
	if lock := client.LockIDs(); len(lock) > 0 && !slices.Contains(lock, id) {
		return ErrLocked
	}
	if len(g.TurnOrder) >= g.Rules.MaxPlayers {
		return ErrTableFull
	}
	if g.PlayerForClient(client) != nil {
		return ErrAlreadySeated
	}

	g.commitJoin(client, id, displayName)
	return nil
}

func (g *Game) commitJoin(client Client, id, displayName string) {
	delete(g.pendingJoins, id)
	p := &Player{
		ID:          id,
		DisplayName: displayName,
		Hand:        []string{},
		Wins:        []string{},
		Client:      client,
	}
	g.TurnOrder = append(g.TurnOrder, p)
	g.log.Infof("Player %s (%s) joined, %d at the table", displayName, id, len(g.TurnOrder))

	g.fireEvent(NewEvent(EventPlayerJoin, id, displayName, g.CleanTurnOrder()))
	g.logAction(id, string(EventPlayerJoin), map[string]interface{}{"display_name": displayName})
}

// Leave removes a player from the table. reason is a short machine code such
// as "disconnect" or "kick"; message is shown to the remaining players.
func (g *Game) Leave(sender Client, id, displayName, message, reason string) error {
	idx := g.playerIndex(id)
	if idx < 0 {
		return ErrUnknownPlayer
	}
	p := g.TurnOrder[idx]
	if displayName == "" {
		displayName = p.DisplayName
	}
	if message == "" {
		message = fmt.Sprintf("%s has left the game.", displayName)
	}

	g.TurnOrder = append(g.TurnOrder[:idx], g.TurnOrder[idx+1:]...)
	// Seats after the leaver shift down by one. When the czar itself leaves
	// the index now names the next player, or points past the end.
	czarLeft := g.Round > 0 && idx == g.Czar
	if idx < g.Czar {
		g.Czar--
	}
	if czarLeft {
		g.czarVacated = true
	}

	g.whiteDiscard = append(g.whiteDiscard, p.Hand...)
	if cards, ok := g.Submissions[id]; ok {
		g.whiteDiscard = append(g.whiteDiscard, cards...)
		delete(g.Submissions, id)
	}
	delete(g.pendingJoins, id)
	delete(g.kickVotes, id)
	for _, votes := range g.kickVotes {
		delete(votes, id)
	}

	if len(g.TurnOrder) == 0 {
		g.State = StateLobby
		g.Czar = 0
		g.czarVacated = false
		g.Submissions = nil
	}
	g.settleRound(czarLeft)

	g.log.Infof("Player %s (%s) left: %s", displayName, id, reason)
	g.fireEvent(NewEvent(EventPlayerLeave, id, displayName, message, reason, g.CleanTurnOrder()))
	g.logAction(id, string(EventPlayerLeave), map[string]interface{}{"reason": reason})

	// A departure can settle an open vote on someone else.
	for target := range g.kickVotes {
		g.evaluateKick(target)
	}
	return nil
}

// ForgetClient drops pending join requests made from c, so a request whose
// connection has gone can no longer be approved into a seat.
func (g *Game) ForgetClient(c Client) {
	for id, requester := range g.pendingJoins {
		if requester != nil && requester.ID() == c.ID() {
			delete(g.pendingJoins, id)
			g.log.Debugf("Dropped pending join for %s, requester disconnected", id)
		}
	}
}

// KickRequest opens a vote to remove a player. The requester's vote counts
// as approval.
func (g *Game) KickRequest(sender Client, id, displayName string) error {
	target := g.getPlayerByID(id)
	if target == nil {
		return ErrUnknownPlayer
	}
	voter := g.PlayerForClient(sender)
	if voter == nil {
		return ErrNotSeated
	}
	if voter.ID == id {
		return ErrBadSelection
	}
	if displayName == "" {
		displayName = target.DisplayName
	}

	g.kickVotes[id] = map[string]bool{voter.ID: true}
	g.fireEvent(NewEvent(EventPlayerKickRequest, id, displayName, voter.ID))
	g.evaluateKick(id)
	return nil
}

// KickResponse records one seated player's vote on an open kick.
func (g *Game) KickResponse(sender Client, id, displayName string, approve bool) error {
	votes, ok := g.kickVotes[id]
	if !ok {
		return ErrNoKickVote
	}
	voter := g.PlayerForClient(sender)
	if voter == nil {
		return ErrNotSeated
	}
	if voter.ID == id {
		return ErrBadSelection
	}
	votes[voter.ID] = approve
	g.evaluateKick(id)
	return nil
}

// evaluateKick settles a vote once a strict majority of the other seated
// players approves, or once everyone has voted without one.
func (g *Game) evaluateKick(id string) {
	votes, ok := g.kickVotes[id]
	if !ok {
		return
	}
	target := g.getPlayerByID(id)
	if target == nil {
		delete(g.kickVotes, id)
		return
	}

	eligible := len(g.TurnOrder) - 1
	yes := 0
	for _, v := range votes {
		if v {
			yes++
		}
	}

	switch {
	case yes*2 > eligible:
		delete(g.kickVotes, id)
		_ = g.Leave(nil, id, target.DisplayName, fmt.Sprintf("%s was kicked.", target.DisplayName), "kick")
	case len(votes) >= eligible:
		delete(g.kickVotes, id)
		g.fireEvent(NewEvent(EventPlayerKickResponse, id, target.DisplayName, false))
	}
}
