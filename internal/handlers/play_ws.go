// internal/handlers/play_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/partycards/internal/deck"
	"github.com/jason-s-yu/partycards/internal/game"
	"github.com/jason-s-yu/partycards/internal/middleware"
	"github.com/jason-s-yu/partycards/internal/session"
	"github.com/sirupsen/logrus"
)

const (
	// Subprotocol is offered to clients that ask for one; it is not required.
	Subprotocol = "partycards"

	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
	leaveTimeout = 5 * time.Second
	readLimit    = 64 << 10
)

// PlayWSHandler accepts a game connection. The handshake parameters come from
// the query string: gameId (required), lockIds and deckUrl (optional).
//
// The connection reads frames from the moment it is accepted. Frames that
// arrive before the deck has loaded and the room has been joined are ignored.
func PlayWSHandler(logger *logrus.Logger, mgr *session.Manager, loader deck.Loader, deckTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := session.ParseJoinParams(r.URL.Query())

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")
		c.SetReadLimit(readLimit)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := session.NewConn(r.RemoteAddr, logger)
		go writePump(ctx, c, conn)

		if params.GameID == "" {
			conn.Send(game.ErrorEvent("No gameId specified"))
		} else {
			go joinRoom(ctx, cancel, c, conn, mgr, loader, params, deckTimeout)
		}

		readErr := readPump(ctx, c, conn, mgr)

		// Runs even if the request context is gone: the room must learn about the leave.
		leaveCtx, leaveCancel := context.WithTimeout(context.Background(), leaveTimeout)
		if err := mgr.Disconnect(leaveCtx, conn); err != nil {
			conn.Logger().Warnf("Disconnect cleanup failed: %v", err)
		}
		leaveCancel()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// joinRoom loads the deck and attaches the connection to its room. It runs on
// its own goroutine so a slow deck fetch never stalls the read pump.
func joinRoom(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *session.Conn, mgr *session.Manager, loader deck.Loader, params session.JoinParams, deckTimeout time.Duration) {
	log := conn.Logger().WithField("game", params.GameID)

	loadCtx, loadCancel := context.WithTimeout(ctx, deckTimeout)
	d, err := loader.Load(loadCtx, params.DeckURL)
	loadCancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warnf("Could not load deck %q: %v", params.DeckURL, err)
		conn.Send(game.ErrorEvent(fmt.Sprintf("Could not load deck: %v", err)))
		return
	}

	err = mgr.Join(ctx, conn, params, d)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrStopped):
		log.Warn("Server is shutting down, refusing join")
		c.Close(ShuttingDownError, "server is shutting down")
		cancel()
	case errors.Is(err, session.ErrConnClosed), ctx.Err() != nil:
		log.Debug("Connection closed while joining")
	default:
		log.Errorf("Join failed: %v", err)
	}
}

// readPump decodes frames and dispatches them until the socket closes. It
// returns the read error that ended it, or nil if ctx was cancelled.
func readPump(ctx context.Context, c *websocket.Conn, conn *session.Conn, mgr *session.Manager) error {
	log := conn.Logger()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				log.Debug("WebSocket closed normally")
			case ctx.Err() != nil:
				return nil
			default:
				log.Infof("Read error: %v (CloseStatus: %d)", err, status)
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("Received non-text message type %d, ignoring", typ)
			continue
		}

		msg, err := session.Decode(data)
		if err != nil {
			if errors.Is(err, session.ErrUnknownEvent) {
				log.Warnf("Ignoring %v", err)
				continue
			}
			log.Warnf("Bad message: %v", err)
			conn.Send(game.ErrorEvent(err.Error()))
			continue
		}

		if err := mgr.Dispatch(ctx, conn, msg); err != nil {
			if errors.Is(err, session.ErrStopped) {
				c.Close(ShuttingDownError, "server is shutting down")
			}
			return err
		}
	}
}

// writePump drains the connection's outbound queue onto the socket and keeps
// it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *session.Conn) {
	log := conn.Logger()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Errorf("Failed to marshal outgoing '%s': %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("Failed to write to websocket: %v", err)
				// Closing unblocks the read pump, which runs the leave cascade.
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("Ping failed: %v, assuming disconnect", err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
