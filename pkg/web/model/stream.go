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

package model

import "time"

type StreamEventType string

const (
	StreamEventStatusUpdate StreamEventType = "status-update"
	StreamEventError        StreamEventType = "error"
	StreamEventPing         StreamEventType = "ping"
	StreamEventLagged       StreamEventType = "lagged"
)

// StreamEvent is the payload pushed to streaming clients on each tick.
type StreamEvent struct {
	EventType      StreamEventType `json:"event_type"`
	Data           StatusData      `json:"data"`
	Sequence       uint64          `json:"sequence"`
	Timestamp      time.Time       `json:"timestamp"`
	ConnectionInfo ConnectionInfo  `json:"connection_info"`
}

// ConnectionInfo describes a streaming client's session.
type ConnectionInfo struct {
	ClientID                  string `json:"client_id"`
	ConnectionDurationSeconds uint64 `json:"connection_duration_seconds"`
	EventsSent                uint64 `json:"events_sent"`
	UpdateIntervalSeconds     uint32 `json:"update_interval_seconds"`
}

// TimeEvent is the payload of the shared time broadcast.
type TimeEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	FormattedTime string    `json:"formatted_time"`
	Missed        uint64    `json:"missed,omitempty"`
}

// NewTimeEvent captures the current time formatted as DD/MM/YYYY HH:MM:SS.
func NewTimeEvent() TimeEvent {
	return TimeEventAt(time.Now().UTC())
}

func TimeEventAt(timestamp time.Time) TimeEvent {
	return TimeEvent{
		Timestamp:     timestamp,
		FormattedTime: timestamp.Format("02/01/2006 15:04:05"),
	}
}
