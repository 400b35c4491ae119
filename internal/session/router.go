// internal/session/router.go
package session

import "github.com/jason-s-yu/partycards/internal/game"

// route hands one inbound message to its handler. It runs on the loop.
// Handler errors are answered to the sender only; the connection stays open.
func (m *Manager) route(c *Conn, msg Message) {
	log := c.log.WithField("event", msg.EventName())
	if !c.joined {
		log.Debug("Ignoring event from a connection that has not joined a room")
		return
	}
	log = log.WithField("game", c.gameID)

	switch msg := msg.(type) {
	case ErrorMessage:
		log.Warnf("Client reported an error: %s", msg.Message)
		return
	case ReloadMessage:
		log.Info("Reloading all players")
		m.hub.Broadcast(GroupName(c.gameID), game.NewEvent(game.EventReload), nil)
		return
	}

	g, ok := m.store.GetGame(c.gameID)
	if !ok {
		log.Debug("Room no longer exists, dropping event")
		return
	}

	var err error
	switch msg := msg.(type) {
	case JoinRequestMessage:
		err = g.JoinRequest(c, msg.ID, msg.DisplayName)
	case JoinDeniedMessage:
		err = g.JoinDenied(c, msg.ID, msg.DisplayName, msg.Message)
	case JoinMessage:
		err = g.Join(c, msg.ID, msg.DisplayName)
	case LeaveMessage:
		err = g.Leave(c, msg.ID, msg.DisplayName, msg.Message, msg.Reason)
	case KickRequestMessage:
		err = g.KickRequest(c, msg.ID, msg.DisplayName)
	case KickResponseMessage:
		err = g.KickResponse(c, msg.ID, msg.DisplayName, msg.Approve)
	case DealCardsMessage:
		err = g.DealCards(c)
	case RoundStartMessage:
		err = g.RoundStart(c)
	case CardSelectionMessage:
		err = g.CardSelection(c, msg.PlayerID, msg.HandIndexes)
	case PresentSubmissionMessage:
		err = g.PresentSubmission(c, msg.PlayerID)
	case WinnerSelectionMessage:
		err = g.WinnerSelection(c, msg.PlayerID)
	case ObjectUpdateMessage:
		err = g.UpdateTransform(c, msg.Transform)
	default:
		log.Warnf("No handler for message %T", msg)
		return
	}

	if err != nil {
		log.Infof("Rejected: %v", err)
		c.Send(game.ErrorEvent(err.Error()))
	}
}
