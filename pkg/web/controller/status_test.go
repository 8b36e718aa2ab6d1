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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

func getServerStatus(deps *Dependencies, path string) *httptest.ResponseRecorder {
	ctx, w := newTestContext("GET", path, nil)
	NewStatusController(ctx, deps).GetServerStatus()
	return w
}

func TestGetServerStatus(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})
	w := getServerStatus(deps, "/api/server-status")

	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ServerStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, float32(25), resp.Data.ServerMetrics.CPU.UsagePercentage)
	assert.Equal(t, uint32(5), resp.Data.CollectionIntervalSeconds)
	assert.Equal(t, "test-server", resp.Data.ServerInfo.Hostname)
	assert.Equal(t, model.APIVersion, resp.Metadata.APIVersion)
	assert.False(t, resp.Metadata.Cached)
	assert.Empty(t, resp.Metadata.Warnings)
	require.NotNil(t, resp.Metadata.CollectionTimeMs)
}

func TestGetServerStatusCachedFlag(t *testing.T) {
	collector := &stubCollector{cpuUsage: 25}
	deps := newTestDeps(collector)

	first := getServerStatus(deps, "/api/server-status")
	require.Equal(t, http.StatusOK, first.Code)

	second := getServerStatus(deps, "/api/server-status")
	require.Equal(t, http.StatusOK, second.Code)

	var resp model.ServerStatusResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Metadata.Cached)
	assert.Equal(t, 1, collector.callCount())
}

func TestGetServerStatusForceRefresh(t *testing.T) {
	collector := &stubCollector{cpuUsage: 25}
	deps := newTestDeps(collector)

	getServerStatus(deps, "/api/server-status")
	w := getServerStatus(deps, "/api/server-status?force_refresh=true")

	var resp model.ServerStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Metadata.Cached)
	assert.Equal(t, 2, collector.callCount())
}

func TestGetServerStatusSimplified(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})
	w := getServerStatus(deps, "/api/server-status?detailed=false")

	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ServerStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, float32(0.5), resp.Data.ServerMetrics.CPU.LoadAverage.OneMinute)
	assert.Zero(t, resp.Data.ServerMetrics.CPU.LoadAverage.FiveMinute)
	assert.Zero(t, resp.Data.ServerMetrics.Network.PacketsSent)
	assert.Equal(t, uint64(200), resp.Data.ServerMetrics.Network.BytesReceived)
}

func TestGetServerStatusPartialDataWarnings(t *testing.T) {
	collector := &stubCollector{
		cpuUsage: 25,
		warnings: []*metrics.CollectionError{metrics.NetworkError("eth0", "link down")},
	}
	deps := newTestDeps(collector)

	w := getServerStatus(deps, "/api/server-status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ServerStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Metadata.Warnings, 1)
	assert.Contains(t, resp.Metadata.Warnings[0], "Partial data warning")
	assert.Contains(t, resp.Metadata.Warnings[0], "eth0")
}

func TestGetServerStatusErrorSeverityMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        *metrics.CollectionError
		wantStatus int
		wantType   string
	}{
		{"warning answers 200", metrics.TimeoutError(2000000000), http.StatusOK, "metrics_warning"},
		{"error answers 503", metrics.SystemUnavailable("procfs gone"), http.StatusServiceUnavailable, "metrics_error"},
		{"critical answers 500", &metrics.CollectionError{Kind: metrics.KindServiceNotInitialized}, http.StatusInternalServerError, "metrics_critical"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps(&stubCollector{err: tc.err})
			w := getServerStatus(deps, "/api/server-status")

			assert.Equal(t, tc.wantStatus, w.Code)

			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantType, resp.ErrorType)
			assert.Equal(t, model.APIVersion, resp.APIVersion)
			assert.Contains(t, resp.Error, "Metrics collection error")
			assert.Contains(t, resp.Details, "recoverable")
			assert.Contains(t, resp.Details, "severity")
		})
	}
}

func TestGetServerStatusInvalidServerInfo(t *testing.T) {
	deps := newTestDeps(&stubCollector{})
	deps.ServerInfo.Version = "not-a-version"

	w := getServerStatus(deps, "/api/server-status")

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.ErrorType)
}

func TestGetServerHealth(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 25})

	ctx, w := newTestContext("GET", "/api/server-status/health", nil)
	NewStatusController(ctx, deps).GetServerHealth()

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, model.APIVersion, body["api_version"])
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "metrics_service")
}

func TestGetServerHealthDegraded(t *testing.T) {
	deps := newTestDeps(&stubCollector{cpuUsage: 95, memUsage: 97})

	ctx, w := newTestContext("GET", "/api/server-status/health", nil)
	NewStatusController(ctx, deps).GetServerHealth()

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "critical", body["status"])
}

func TestGetServerHealthCollectionFailure(t *testing.T) {
	deps := newTestDeps(&stubCollector{err: metrics.SystemUnavailable("boom")})

	ctx, w := newTestContext("GET", "/api/server-status/health", nil)
	NewStatusController(ctx, deps).GetServerHealth()

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "critical", body["status"])
}

func TestGetServerHealthPartialData(t *testing.T) {
	deps := newTestDeps(&stubCollector{
		cpuUsage: 25,
		warnings: []*metrics.CollectionError{metrics.CPUError("missing")},
	})

	ctx, w := newTestContext("GET", "/api/server-status/health", nil)
	NewStatusController(ctx, deps).GetServerHealth()

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "warning", body["status"])
}
