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
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

const (
	defaultStreamIntervalSeconds = 5
	minStreamIntervalSeconds     = 1
	maxStreamIntervalSeconds     = 60
	streamPingInterval           = 30 * time.Second
)

var streamableMetrics = []string{"memory", "cpu", "network"}

// StreamController serves the SSE metrics stream endpoints.
type StreamController struct {
	*basicController
	deps *Dependencies
}

func NewStreamController(ctx *gin.Context, deps *Dependencies) *StreamController {
	return &StreamController{basicController: newBasicController(ctx), deps: deps}
}

// streamState tracks one SSE client's session.
type streamState struct {
	clientID        string
	connectedAt     time.Time
	eventsSent      uint64
	sequence        uint64
	intervalSeconds uint32
	detailed        bool
	filter          []string
}

func (s *streamState) connectionInfo() model.ConnectionInfo {
	return model.ConnectionInfo{
		ClientID:                  s.clientID,
		ConnectionDurationSeconds: uint64(time.Since(s.connectedAt).Seconds()),
		EventsSent:                s.eventsSent,
		UpdateIntervalSeconds:     s.intervalSeconds,
	}
}

// StreamServerStatus pushes metrics updates over SSE until the client
// disconnects. Query parameters: interval (1-60s, default 5), detailed,
// client_id, metrics (comma-separated subset of memory,cpu,network).
func (c *StreamController) StreamServerStatus() {
	interval := c.QueryUint32("interval", defaultStreamIntervalSeconds)
	if interval < minStreamIntervalSeconds {
		interval = minStreamIntervalSeconds
	}
	if interval > maxStreamIntervalSeconds {
		interval = maxStreamIntervalSeconds
	}

	clientID := c.ctx.Query("client_id")
	if clientID == "" {
		clientID = fmt.Sprintf("client_%s", uuid.NewString()[:8])
	}

	state := &streamState{
		clientID:        clientID,
		connectedAt:     time.Now(),
		intervalSeconds: interval,
		detailed:        c.QueryBool("detailed", true),
		filter:          c.QueryList("metrics", streamableMetrics),
	}

	log.Info("new SSE connection: client_id=%s, interval=%ds, detailed=%v, filter=%v",
		state.clientID, state.intervalSeconds, state.detailed, state.filter)

	c.setupSSEResponse()

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	pingTicker := time.NewTicker(streamPingInterval)
	defer pingTicker.Stop()

	// First update goes out immediately so clients don't wait a full
	// interval for data.
	c.emitStatusEvent(state)

	done := c.ctx.Request.Context().Done()
	for {
		select {
		case <-done:
			log.Info("SSE client %s disconnected after %d events", state.clientID, state.eventsSent)
			return
		case <-pingTicker.C:
			if err := c.writeSSEEvent(string(model.StreamEventPing), state.sequence, gin.H{
				"event_type": model.StreamEventPing,
				"timestamp":  time.Now().UTC(),
			}); err != nil {
				return
			}
		case <-ticker.C:
			if !c.emitStatusEvent(state) {
				return
			}
		}
	}
}

// emitStatusEvent collects, shapes and writes one update. Returns false
// when the client connection is no longer writable.
func (c *StreamController) emitStatusEvent(state *streamState) bool {
	event := buildStreamEvent(c.ctx.Request.Context(), c.deps, state)
	if err := c.writeSSEEvent(string(event.EventType), event.Sequence, event); err != nil {
		return false
	}
	state.sequence++
	state.eventsSent++
	return true
}

// buildStreamEvent produces the next stream payload for one client.
// Collection failures degrade to an error event carrying minimal data;
// the stream never terminates on a bad sample.
func buildStreamEvent(ctx context.Context, deps *Dependencies, state *streamState) model.StreamEvent {
	event := model.StreamEvent{
		EventType:      model.StreamEventStatusUpdate,
		Sequence:       state.sequence,
		Timestamp:      time.Now().UTC(),
		ConnectionInfo: state.connectionInfo(),
	}

	cacheKey := fmt.Sprintf("sse_%s", state.clientID)
	lookup, err := deps.Cache.Get(ctx, cacheKey, false)
	if err != nil {
		log.Error("failed to collect metrics for stream client %s: %v", state.clientID, err)
		event.EventType = model.StreamEventError
		event.Data = minimalStatus(deps)
		return event
	}

	for _, warning := range lookup.Result.Warnings {
		log.Warn("partial metrics for stream client %s: %s", state.clientID, warning.Error())
	}

	snapshot := shapeSnapshot(*lookup.Result.Snapshot, state)
	data, dataErr := model.NewStatusData(snapshot, deps.CollectionIntervalSeconds, deps.ServerInfo)
	if dataErr != nil {
		log.Warn("failed to build status data for stream client %s: %v", state.clientID, dataErr)
		event.EventType = model.StreamEventError
		event.Data = minimalStatus(deps)
		return event
	}

	event.Data = data
	return event
}

// shapeSnapshot applies the client's metrics filter and detail level.
// Sections not named in the filter are zeroed rather than omitted so the
// payload shape stays stable.
func shapeSnapshot(snapshot metrics.Snapshot, state *streamState) metrics.Snapshot {
	if len(state.filter) > 0 {
		if !containsString(state.filter, "memory") {
			snapshot.Memory = metrics.MemoryMetrics{}
		}
		if !containsString(state.filter, "cpu") {
			snapshot.CPU = metrics.DefaultCPUMetrics()
		}
		if !containsString(state.filter, "network") {
			snapshot.Network = metrics.NetworkMetrics{}
		}
	}
	if !state.detailed {
		snapshot = model.Simplify(snapshot)
	}
	return snapshot
}

func minimalStatus(deps *Dependencies) model.StatusData {
	return model.StatusData{
		ServerMetrics: metrics.Snapshot{
			Timestamp: time.Now().UTC(),
			CPU:       metrics.DefaultCPUMetrics(),
		},
		CollectionIntervalSeconds: defaultStreamIntervalSeconds,
		ServerInfo:                deps.ServerInfo,
	}
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// GetStreamInfo documents the stream endpoint for clients.
func (c *StreamController) GetStreamInfo() {
	c.RespondSuccess(gin.H{
		"endpoint":    "/api/server-status-stream",
		"description": "Server-Sent Events stream for real-time server metrics",
		"parameters": gin.H{
			"interval":  "Update interval in seconds (1-60, default: 5)",
			"detailed":  "Include detailed metrics (default: true)",
			"client_id": "Client identifier for connection tracking (optional)",
			"metrics":   "Comma-separated metric types: memory,cpu,network (default: all)",
		},
		"events": gin.H{
			"status-update": "Regular metrics update event",
			"error":         "Degraded update carrying minimal data",
			"ping":          "Keep-alive ping event",
		},
		"headers":     sseHeaders,
		"example_url": "/api/server-status-stream?interval=10&detailed=false&metrics=memory,cpu",
		"api_version": model.APIVersion,
	})
}
