package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	ws "visionbridge/internal/service/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket. The viewer socket
// drives the camera, so only same-origin pages and non-browser clients
// without an Origin header may connect.
var Upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ViewWebsocketHandler registers a viewer in the hub and executes the
// commands it sends. Snapshots and replies share the client's write pump.
func ViewWebsocketHandler(ctrl Controller, hub *ws.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		client := ws.NewClient(connection)
		hub.Register(client)
		defer hub.Unregister(client)
		go client.WritePump()

		logger.Info("Viewer connected")

		for {
			_, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected: %v", err)
				}
				return
			}

			var cmd dto.Command
			var result dto.CommandResult
			if err := json.Unmarshal(data, &cmd); err != nil {
				result = dto.CommandResult{Error: "invalid command: " + err.Error()}
			} else {
				result, err = Execute(r.Context(), ctrl, cmd)
				if err != nil {
					logger.Warning("Viewer command %s: %v", cmd.Command, err)
				}
			}
			result.Type = dto.MessageTypeResult

			reply, err := json.Marshal(result)
			if err != nil {
				logger.Error("Error encoding command reply: %v", err)
				continue
			}
			if !client.Reply(reply) {
				logger.Warning("Viewer reply dropped for command %s", cmd.Command)
			}
		}
	}
}
