// internal/game/turns.go
package game

// DealCards starts a round: clears the previous submissions, draws the next
// black card, passes the czar role along and refills every hand.
// Allowed from the lobby and after a winner has been picked.
func (g *Game) DealCards(sender Client) error {
	if g.State != StateLobby && g.State != StateJudging {
		return ErrBadPhase
	}

	for _, cards := range g.Submissions {
		g.whiteDiscard = append(g.whiteDiscard, cards...)
	}
	g.Submissions = nil

	g.CurrentBlackCard = g.nextBlackCard()
	switch {
	case g.Round == 0 || len(g.TurnOrder) == 0:
		g.Czar = 0
	case g.czarVacated:
		g.Czar %= len(g.TurnOrder)
	default:
		g.Czar = (g.Czar + 1) % len(g.TurnOrder)
	}
	g.czarVacated = false
	g.Round++

	for _, p := range g.TurnOrder {
		for len(p.Hand) < g.Rules.HandSize {
			card, ok := g.drawWhite()
			if !ok {
				g.log.Warn("White cards exhausted while dealing")
				break
			}
			p.Hand = append(p.Hand, card)
		}
	}

	g.State = StateDealing

	var blackCard, czarID interface{}
	if c := g.BlackCard(); c != nil {
		blackCard = *c
	}
	if id := g.CzarID(); id != nil {
		czarID = *id
	}
	g.fireEvent(NewEvent(EventDealCards, blackCard, czarID, g.CleanTurnOrder()))
	for _, p := range g.TurnOrder {
		if p.Client != nil {
			p.Client.Send(NewEvent(EventHand, append([]string(nil), p.Hand...)))
		}
	}

	g.log.Debugf("Dealt round %d, black card %d", g.Round, g.CurrentBlackCard)
	g.logAction(actorID(g, sender), string(EventDealCards), map[string]interface{}{
		"round":      g.Round,
		"black_card": g.CurrentBlackCard,
	})
	return nil
}

// RoundStart opens the round for submissions once the deal has been shown.
func (g *Game) RoundStart(sender Client) error {
	if g.State != StateDealing {
		return ErrBadPhase
	}
	g.State = StateRoundActive
	g.fireEvent(NewEvent(EventRoundStart))
	g.logAction(actorID(g, sender), string(EventRoundStart), nil)
	return nil
}

// CardSelection records a player's submission for the round. handIndexes
// name cards in the player's hand, in the order they are played.
// Submissions from different players commute.
func (g *Game) CardSelection(sender Client, playerID string, handIndexes []int) error {
	if g.State != StateRoundActive && g.State != StateSubmitting {
		return ErrBadPhase
	}
	p := g.getPlayerByID(playerID)
	if p == nil {
		return ErrUnknownPlayer
	}
	if czar := g.CzarPlayer(); czar != nil && czar.ID == playerID {
		return ErrIsCzar
	}
	if _, done := g.Submissions[playerID]; done {
		return ErrAlreadySubmitted
	}
	if !validSelection(handIndexes, len(p.Hand)) {
		return ErrBadSelection
	}

	cards := make([]string, 0, len(handIndexes))
	taken := make(map[int]bool, len(handIndexes))
	for _, i := range handIndexes {
		cards = append(cards, p.Hand[i])
		taken[i] = true
	}
	rest := make([]string, 0, len(p.Hand)-len(taken))
	for i, c := range p.Hand {
		if !taken[i] {
			rest = append(rest, c)
		}
	}
	p.Hand = rest

	if g.Submissions == nil {
		g.Submissions = make(map[string][]string)
	}
	g.Submissions[playerID] = cards
	g.State = StateSubmitting

	g.fireEvent(NewEvent(EventCardSelection, playerID))
	if p.Client != nil {
		p.Client.Send(NewEvent(EventHand, append([]string(nil), p.Hand...)))
	}
	g.logAction(playerID, string(EventCardSelection), map[string]interface{}{"count": len(cards)})
	return nil
}

func validSelection(idx []int, handSize int) bool {
	if len(idx) == 0 {
		return false
	}
	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		if i < 0 || i >= handSize || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

// PresentSubmission reveals one player's submission to the whole room.
func (g *Game) PresentSubmission(sender Client, playerID string) error {
	if g.State != StateSubmitting && g.State != StatePresenting {
		return ErrBadPhase
	}
	if !g.isCzar(sender) {
		return ErrNotCzar
	}
	cards, ok := g.Submissions[playerID]
	if !ok {
		return ErrNoSubmission
	}
	g.State = StatePresenting
	g.fireEvent(NewEvent(EventPresentSubmission, playerID, append([]string(nil), cards...)))
	g.logAction(actorID(g, sender), string(EventPresentSubmission), map[string]interface{}{"player_id": playerID})
	return nil
}

// WinnerSelection awards the black card to the chosen submission.
func (g *Game) WinnerSelection(sender Client, playerID string) error {
	if g.State != StatePresenting {
		return ErrBadPhase
	}
	if !g.isCzar(sender) {
		return ErrNotCzar
	}
	cards, ok := g.Submissions[playerID]
	if !ok {
		return ErrNoSubmission
	}
	winner := g.getPlayerByID(playerID)
	if winner == nil {
		return ErrUnknownPlayer
	}

	var blackCard interface{}
	if c := g.BlackCard(); c != nil {
		winner.Wins = append(winner.Wins, *c)
		blackCard = *c
	}
	g.State = StateJudging

	g.log.Infof("Round %d won by %s (%s)", g.Round, winner.DisplayName, winner.ID)
	g.fireEvent(NewEvent(EventWinnerSelection, playerID, winner.DisplayName, append([]string(nil), cards...), blackCard))
	g.logAction(actorID(g, sender), string(EventWinnerSelection), map[string]interface{}{
		"winner_id": playerID,
		"round":     g.Round,
	})
	return nil
}

// isCzar reports whether sender holds the czar's seat.
func (g *Game) isCzar(sender Client) bool {
	czar := g.CzarPlayer()
	return czar != nil && g.PlayerForClient(sender) == czar
}

func (g *Game) roundInProgress() bool {
	switch g.State {
	case StateDealing, StateRoundActive, StateSubmitting, StatePresenting:
		return true
	}
	return false
}

// settleRound keeps a round playable after a departure. A round that can no
// longer be judged is abandoned and the room waits for the next deal.
func (g *Game) settleRound(czarLeft bool) {
	if !g.roundInProgress() {
		return
	}
	switch {
	case czarLeft, len(g.TurnOrder) < 2, g.State == StatePresenting && len(g.Submissions) == 0:
		g.abandonRound()
	case g.State == StateSubmitting && len(g.Submissions) == 0:
		g.State = StateRoundActive
	}
}

// abandonRound returns submitted cards to their players and drops back to
// Lobby, where dealCards is accepted.
func (g *Game) abandonRound() {
	for id, cards := range g.Submissions {
		p := g.getPlayerByID(id)
		if p == nil {
			g.whiteDiscard = append(g.whiteDiscard, cards...)
			continue
		}
		p.Hand = append(p.Hand, cards...)
		if p.Client != nil {
			p.Client.Send(NewEvent(EventHand, append([]string(nil), p.Hand...)))
		}
	}
	g.Submissions = nil
	g.State = StateLobby
	g.log.Infof("Round %d abandoned after a departure", g.Round)
}

// actorID names who triggered an action for the event log: the sender's
// seated player if any, else the raw connection id.
func actorID(g *Game, sender Client) string {
	if p := g.PlayerForClient(sender); p != nil {
		return p.ID
	}
	if sender != nil {
		return sender.ID()
	}
	return ""
}
