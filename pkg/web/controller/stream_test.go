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
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

func TestSSEResponseHeaders(t *testing.T) {
	ctx, w := newTestContext("GET", "/api/server-status-stream", nil)
	ctrl := NewStreamController(ctx, newTestDeps(&stubCollector{cpuUsage: 25}))

	ctrl.setupSSEResponse()

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}

func TestEmitStatusEventFrame(t *testing.T) {
	ctx, w := newTestContext("GET", "/api/server-status-stream", nil)
	ctrl := NewStreamController(ctx, newTestDeps(&stubCollector{cpuUsage: 25}))

	state := &streamState{
		clientID:        "client_test",
		connectedAt:     time.Now(),
		intervalSeconds: 5,
		detailed:        true,
	}
	require.True(t, ctrl.emitStatusEvent(state))

	body := w.Body.String()
	assert.Contains(t, body, "event:status-update")
	assert.Contains(t, body, "id:0")
	assert.Contains(t, body, `"client_id":"client_test"`)
	assert.Equal(t, uint64(1), state.sequence)
	assert.Equal(t, uint64(1), state.eventsSent)
}

func TestBuildStreamEventSequence(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})
	state := &streamState{clientID: "client_seq", connectedAt: time.Now(), intervalSeconds: 5, detailed: true}

	first := buildStreamEvent(context.Background(), deps, state)
	state.sequence++
	state.eventsSent++
	second := buildStreamEvent(context.Background(), deps, state)

	assert.Equal(t, model.StreamEventStatusUpdate, first.EventType)
	assert.Equal(t, uint64(0), first.Sequence)
	assert.Equal(t, uint64(1), second.Sequence)
	assert.Equal(t, uint64(1), second.ConnectionInfo.EventsSent)
	assert.Equal(t, "client_seq", second.ConnectionInfo.ClientID)
}

func TestBuildStreamEventCollectionFailure(t *testing.T) {
	deps := newTestDeps(&stubCollector{err: metrics.SystemUnavailable("gone")})
	state := &streamState{clientID: "client_err", connectedAt: time.Now(), intervalSeconds: 5, detailed: true}

	event := buildStreamEvent(context.Background(), deps, state)

	assert.Equal(t, model.StreamEventError, event.EventType)
	// Minimal data keeps the payload shape intact.
	assert.Equal(t, uint32(1), event.Data.ServerMetrics.CPU.CoreCount)
	assert.Zero(t, event.Data.ServerMetrics.Memory.TotalBytes)
	assert.Equal(t, "test-server", event.Data.ServerInfo.Hostname)
}

func TestShapeSnapshotFilter(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})
	lookup, err := deps.Cache.Get(context.Background(), "shape", false)
	require.NoError(t, err)

	state := &streamState{detailed: true, filter: []string{"cpu"}}
	shaped := shapeSnapshot(*lookup.Result.Snapshot, state)

	assert.Equal(t, float32(25), shaped.CPU.UsagePercentage)
	assert.Zero(t, shaped.Memory.TotalBytes)
	assert.Zero(t, shaped.Network.BytesSent)
}

func TestShapeSnapshotSimplified(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})
	lookup, err := deps.Cache.Get(context.Background(), "shape2", false)
	require.NoError(t, err)

	state := &streamState{detailed: false}
	shaped := shapeSnapshot(*lookup.Result.Snapshot, state)

	assert.Zero(t, shaped.CPU.LoadAverage.FiveMinute)
	assert.Zero(t, shaped.Network.PacketsSent)
	assert.Equal(t, uint64(1000), shaped.Memory.TotalBytes)
}

func TestGetStreamInfo(t *testing.T) {
	ctx, w := newTestContext("GET", "/api/server-status-stream/info", nil)
	NewStreamController(ctx, newTestDeps(&stubCollector{})).GetStreamInfo()

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/api/server-status-stream", body["endpoint"])
	assert.Equal(t, model.APIVersion, body["api_version"])
	assert.Contains(t, body, "parameters")
	assert.Contains(t, body, "events")
}
