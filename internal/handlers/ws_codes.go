// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the game handler, in the 3000-3999
// range reserved for applications.
const (
	ShuttingDownError websocket.StatusCode = 3000 // Session manager stopped; reconnect later.
)
