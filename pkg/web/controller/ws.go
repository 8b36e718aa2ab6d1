// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package controller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/util/safego"
)

var statusUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketController mirrors the SSE status stream over WebSocket for
// clients behind proxies that mishandle event streams.
type WebSocketController struct {
	*basicController
	deps *Dependencies
}

func NewWebSocketController(ctx *gin.Context, deps *Dependencies) *WebSocketController {
	return &WebSocketController{basicController: newBasicController(ctx), deps: deps}
}

// StreamServerStatus upgrades the connection and pushes the same
// payloads as the SSE stream, one JSON message per update.
func (c *WebSocketController) StreamServerStatus() {
	interval := c.QueryUint32("interval", defaultStreamIntervalSeconds)
	if interval < minStreamIntervalSeconds {
		interval = minStreamIntervalSeconds
	}
	if interval > maxStreamIntervalSeconds {
		interval = maxStreamIntervalSeconds
	}

	clientID := c.ctx.Query("client_id")
	if clientID == "" {
		clientID = fmt.Sprintf("ws_%s", uuid.NewString()[:8])
	}

	state := &streamState{
		clientID:        clientID,
		connectedAt:     time.Now(),
		intervalSeconds: interval,
		detailed:        c.QueryBool("detailed", true),
		filter:          c.QueryList("metrics", streamableMetrics),
	}

	conn, err := statusUpgrader.Upgrade(c.ctx.Writer, c.ctx.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed for client %s: %v", clientID, err)
		return
	}
	defer conn.Close()

	log.Info("new websocket connection: client_id=%s, interval=%ds", clientID, interval)

	// Reader drains control frames and unblocks on close.
	closed := make(chan struct{})
	safego.Go(func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	pingTicker := time.NewTicker(streamPingInterval)
	defer pingTicker.Stop()

	if !c.writeEvent(conn, state) {
		return
	}

	done := c.ctx.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case <-closed:
			log.Info("websocket client %s disconnected after %d events", clientID, state.eventsSent)
			return
		case <-pingTicker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-ticker.C:
			if !c.writeEvent(conn, state) {
				return
			}
		}
	}
}

func (c *WebSocketController) writeEvent(conn *websocket.Conn, state *streamState) bool {
	event := buildStreamEvent(c.ctx.Request.Context(), c.deps, state)
	if err := conn.WriteJSON(event); err != nil {
		log.Error("websocket write for client %s failed: %v", state.clientID, err)
		return false
	}
	state.sequence++
	state.eventsSent++
	return true
}
