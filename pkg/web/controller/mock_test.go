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
	"sync"
	"time"

	"github.com/alibaba/opensandbox/statusd/pkg/broadcast"
	"github.com/alibaba/opensandbox/statusd/pkg/cache"
	"github.com/alibaba/opensandbox/statusd/pkg/metrics"
	"github.com/alibaba/opensandbox/statusd/pkg/web/model"
)

// stubCollector returns canned results for handler tests.
type stubCollector struct {
	mu       sync.Mutex
	calls    int
	err      error
	warnings []*metrics.CollectionError
	stats    metrics.CollectionStats
	cpuUsage float32
	memUsage float32
}

func (s *stubCollector) Collect(ctx context.Context) (metrics.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return metrics.Result{}, s.err
	}

	cpuUsage := s.cpuUsage
	memUsage := s.memUsage
	if memUsage == 0 {
		memUsage = 40
	}
	used := uint64(float32(1000) * memUsage / 100)
	return metrics.Result{
		Snapshot: &metrics.Snapshot{
			Timestamp: time.Now().UTC(),
			Memory: metrics.MemoryMetrics{
				TotalBytes: 1000, UsedBytes: used, AvailableBytes: 1000 - used, UsagePercentage: memUsage,
			},
			CPU: metrics.CPUMetrics{
				UsagePercentage: cpuUsage,
				CoreCount:       4,
				LoadAverage:     metrics.LoadAverage{OneMinute: 0.5, FiveMinute: 0.6, FifteenMinute: 0.7},
			},
			Uptime: metrics.Duration(2 * time.Hour),
			Network: metrics.NetworkMetrics{
				BytesSent: 100, BytesReceived: 200, PacketsSent: 10, PacketsReceived: 20, ActiveConnections: 3,
			},
		},
		Warnings: s.warnings,
	}, nil
}

func (s *stubCollector) Stats() metrics.CollectionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *stubCollector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestDeps(collector metrics.Collector) *Dependencies {
	return &Dependencies{
		Cache:      cache.New(collector, cache.DefaultConfig()),
		Collector:  collector,
		TimeEvents: broadcast.NewBroadcaster[model.TimeEvent](),
		ServerInfo: model.ServerInfo{
			Hostname:    "test-server",
			Version:     "1.0.0",
			StartTime:   time.Now().UTC().Add(-time.Hour),
			Environment: "development",
			OSInfo:      metrics.FallbackOSInfo(),
		},
		CollectionIntervalSeconds: 5,
	}
}
