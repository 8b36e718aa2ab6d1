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

package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alibaba/opensandbox/statusd/pkg/broadcast"
	"github.com/alibaba/opensandbox/statusd/pkg/cache"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/controller"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

type staticCollector struct {
	mu    sync.Mutex
	calls int
}

func (s *staticCollector) Collect(ctx context.Context) (metrics.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return metrics.Result{
		Snapshot: &metrics.Snapshot{
			Timestamp: time.Now().UTC(),
			Memory:    metrics.MemoryMetrics{TotalBytes: 1000, UsedBytes: 400, AvailableBytes: 600, UsagePercentage: 40},
			CPU:       metrics.CPUMetrics{UsagePercentage: 20, CoreCount: 4},
			Uptime:    metrics.Duration(time.Hour),
		},
	}, nil
}

func newTestRouter(token string) *gin.Engine {
	deps := &controller.Dependencies{
		Cache:      cache.New(&staticCollector{}, cache.DefaultConfig()),
		Collector:  &staticCollector{},
		TimeEvents: broadcast.NewBroadcaster[model.TimeEvent](),
		ServerInfo: model.ServerInfo{
			Hostname:    "router-test",
			Version:     "1.0.0",
			StartTime:   time.Now().UTC().Add(-time.Minute),
			Environment: "development",
			OSInfo:      metrics.FallbackOSInfo(),
		},
		CollectionIntervalSeconds: 5,
	}
	return NewRouter(token, deps)
}

func TestPingRoute(t *testing.T) {
	engine := newTestRouter("")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestServerStatusRoute(t *testing.T) {
	engine := newTestRouter("")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/server-status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"server_metrics"`)
	assert.Contains(t, w.Body.String(), `"metadata"`)
}

func TestAccessTokenMiddleware(t *testing.T) {
	engine := newTestRouter("secret")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/api/server-status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/server-status", nil)
	req.Header.Set(ApiAccessTokenHeader, "wrong")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/server-status", nil)
	req.Header.Set(ApiAccessTokenHeader, "secret")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRoutes(t *testing.T) {
	engine := newTestRouter("")

	for _, path := range []string{"/api/server-status/health", "/api/server-status-stream/info", "/api/health", "/api/status"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, "GET %s", path)
	}
}

// TestStatusStreamDeliversEvents drives the SSE endpoint over a real
// connection and reads the first frame.
func TestStatusStreamDeliversEvents(t *testing.T) {
	engine := newTestRouter("")
	server := httptest.NewServer(engine)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET",
		server.URL+"/api/server-status-stream?interval=1&client_id=router_test", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var sawEvent, sawData bool
	for i := 0; i < 20; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event:") {
			assert.Contains(t, line, "status-update")
			sawEvent = true
		}
		if strings.HasPrefix(line, "data:") {
			assert.Contains(t, line, `"client_id":"router_test"`)
			sawData = true
		}
		if sawEvent && sawData {
			break
		}
	}
	assert.True(t, sawEvent)
	assert.True(t, sawData)
}

func TestSecurityHeaders(t *testing.T) {
	engine := newTestRouter("")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/server-status", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}
