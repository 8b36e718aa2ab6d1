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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

// TimeBroadcastInterval is how often the shared time event goes out.
const TimeBroadcastInterval = 10 * time.Second

// TimeStreamController serves the shared time broadcast and the
// service-level status endpoints.
type TimeStreamController struct {
	*basicController
	deps *Dependencies
}

func NewTimeStreamController(ctx *gin.Context, deps *Dependencies) *TimeStreamController {
	return &TimeStreamController{basicController: newBasicController(ctx), deps: deps}
}

// StreamTime forwards the shared time broadcast to this client over
// SSE. A subscriber that falls behind gets a connection-lagged event
// with the number of missed updates instead of being dropped.
func (c *TimeStreamController) StreamTime() {
	id, events, cancel := c.deps.TimeEvents.Subscribe()
	defer cancel()

	log.Info("new SSE time stream connection %s", id)
	c.setupSSEResponse()

	pingTicker := time.NewTicker(streamPingInterval)
	defer pingTicker.Stop()

	var sequence uint64
	done := c.ctx.Request.Context().Done()
	for {
		select {
		case <-done:
			log.Info("time stream connection %s closed", id)
			return
		case <-pingTicker.C:
			if err := c.writeSSEEvent(string(model.StreamEventPing), sequence, gin.H{
				"event_type": model.StreamEventPing,
				"timestamp":  time.Now().UTC(),
			}); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if msg.Lagged {
				log.Warn("time stream connection %s lagged, missed %d events", id, msg.Missed)
				if err := c.writeSSEEvent("connection-lagged", sequence, gin.H{
					"missed_events": msg.Missed,
				}); err != nil {
					return
				}
				sequence++
				continue
			}
			if err := c.writeSSEEvent("time-update", sequence, msg.Payload); err != nil {
				return
			}
			sequence++
		}
	}
}

// ServiceHealth reports whether the streaming services are up.
func (c *TimeStreamController) ServiceHealth() {
	cacheStats := c.deps.Cache.Stats()

	c.RespondSuccess(gin.H{
		"status":    "ok",
		"service":   "statusd",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"components": gin.H{
			"sse_service": gin.H{
				"healthy":            true,
				"active_connections": c.deps.TimeEvents.SubscriberCount(),
			},
			"metrics_cache": gin.H{
				"healthy":            true,
				"entries":            cacheStats.Entries,
				"background_refresh": cacheStats.BackgroundActive,
			},
		},
	})
}

// ServiceStatus reports detailed service information.
func (c *TimeStreamController) ServiceStatus() {
	c.RespondSuccess(gin.H{
		"service":        "statusd",
		"version":        c.deps.ServerInfo.Version,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": uint64(c.deps.ServerInfo.Age().Seconds()),
		"sse": gin.H{
			"healthy":                    true,
			"active_connections":         c.deps.TimeEvents.SubscriberCount(),
			"broadcast_interval_seconds": uint32(TimeBroadcastInterval.Seconds()),
		},
		"cache": c.deps.Cache.Stats(),
	})
}

// ManualTimeBroadcast pushes a time event to all subscribers outside
// the regular schedule.
func (c *TimeStreamController) ManualTimeBroadcast() {
	event := model.NewTimeEvent()
	c.deps.TimeEvents.Publish(event)
	log.Info("manual time broadcast at %s", event.FormattedTime)

	c.RespondSuccess(gin.H{
		"message":            "Time event broadcast to all subscribers",
		"active_connections": c.deps.TimeEvents.SubscriberCount(),
		"timestamp":          event.Timestamp.Format(time.RFC3339),
	})
}
