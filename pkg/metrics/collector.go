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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/net"

	"github.com/alibaba/opensandbox/statusd/pkg/log"
)

// Collector produces metric snapshots. A returned Result may carry
// warnings when some sub-collections failed; the hard error path is
// reserved for attempts that produced no meaningful data at all.
type Collector interface {
	Collect(ctx context.Context) (Result, error)
}

// CollectionStats tracks collection performance for the health endpoint.
type CollectionStats struct {
	TotalCollections        uint64           `json:"total_collections"`
	SuccessfulCollections   uint64           `json:"successful_collections"`
	FailedCollections       uint64           `json:"failed_collections"`
	AverageCollectionTimeMs float64          `json:"average_collection_time_ms"`
	LastError               *CollectionError `json:"last_error,omitempty"`
}

// SystemCollector reads host metrics through gopsutil.
type SystemCollector struct {
	timeout time.Duration

	mu    sync.Mutex
	stats CollectionStats
}

const defaultCollectionTimeout = 2 * time.Second

func NewSystemCollector() *SystemCollector {
	return &SystemCollector{timeout: defaultCollectionTimeout}
}

// Collect gathers memory, CPU, network and uptime data. Sub-collection
// failures degrade to defaults and surface as warnings; the attempt fails
// outright only when neither memory nor CPU produced meaningful data.
func (c *SystemCollector) Collect(ctx context.Context) (Result, error) {
	start := time.Now()
	c.updateStats(func(s *CollectionStats) { s.TotalCollections++ })

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var warnings []*CollectionError
	collectionTime := time.Now().UTC()

	memory, err := c.collectMemory(ctx)
	if err != nil {
		warnings = append(warnings, err)
		memory = MemoryMetrics{}
	}

	cpuMetrics, cpuErr := c.collectCPU(ctx)
	if cpuErr != nil {
		warnings = append(warnings, cpuErr)
		cpuMetrics = DefaultCPUMetrics()
	}

	network, err := c.collectNetwork(ctx)
	if err != nil {
		warnings = append(warnings, err)
		network = NetworkMetrics{}
	}

	uptime, err := c.collectUptime(ctx)
	if err != nil {
		warnings = append(warnings, err)
		uptime = 0
	}

	meaningful := memory.TotalBytes > 0 || cpuErr == nil

	if len(warnings) > 1 && !meaningful {
		hard := MultipleErrors(warnings)
		c.recordFailure(hard)
		return Result{}, hard
	}

	snapshot := &Snapshot{
		Timestamp: collectionTime,
		Memory:    memory,
		CPU:       cpuMetrics,
		Uptime:    Duration(uptime),
		Network:   network,
	}

	elapsed := time.Since(start)
	c.updateStats(func(s *CollectionStats) {
		s.SuccessfulCollections++
		n := float64(s.SuccessfulCollections)
		s.AverageCollectionTimeMs = (s.AverageCollectionTimeMs*(n-1) + float64(elapsed.Milliseconds())) / n
	})

	log.Debug("collected metrics snapshot in %s with %d warnings", elapsed, len(warnings))
	return Result{Snapshot: snapshot, Warnings: warnings}, nil
}

func (c *SystemCollector) collectMemory(ctx context.Context) (MemoryMetrics, *CollectionError) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryMetrics{}, c.classify(ctx, err, MemoryError)
	}
	if vm.Total == 0 {
		return MemoryMetrics{}, MemoryError("total memory is zero")
	}

	used := vm.Used
	available := vm.Available
	// Some kernels report used+available slightly above total; clamp so
	// the accounting invariant holds.
	if used+available > vm.Total {
		available = vm.Total - used
	}

	m, convErr := NewMemoryMetrics(vm.Total, used, available)
	if convErr != nil {
		return MemoryMetrics{}, MemoryError(convErr.Error())
	}
	return m, nil
}

func (c *SystemCollector) collectCPU(ctx context.Context) (CPUMetrics, *CollectionError) {
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return CPUMetrics{}, c.classify(ctx, err, CPUError)
	}
	if cores == 0 {
		return CPUMetrics{}, CPUError("no CPUs detected")
	}

	// Zero interval compares against the previous reading instead of
	// blocking for a sample window.
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CPUMetrics{}, c.classify(ctx, err, CPUError)
	}
	var usage float32
	if len(percentages) > 0 {
		usage = float32(percentages[0])
	}

	loadAvg := LoadAverage{}
	if avg, err := load.AvgWithContext(ctx); err != nil {
		// Load averages are not available everywhere; not fatal.
		log.Debug("load average unavailable: %v", err)
	} else {
		loadAvg = LoadAverage{
			OneMinute:     float32(avg.Load1),
			FiveMinute:    float32(avg.Load5),
			FifteenMinute: float32(avg.Load15),
		}
	}

	return CPUMetrics{
		UsagePercentage: usage,
		CoreCount:       uint32(cores),
		LoadAverage:     loadAvg,
	}, nil
}

func (c *SystemCollector) collectNetwork(ctx context.Context) (NetworkMetrics, *CollectionError) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return NetworkMetrics{}, c.classify(ctx, err, func(reason string) *CollectionError {
			return NetworkError("all", reason)
		})
	}

	metrics := NetworkMetrics{}
	for _, counter := range counters {
		metrics.BytesSent = saturatingAdd(metrics.BytesSent, counter.BytesSent)
		metrics.BytesReceived = saturatingAdd(metrics.BytesReceived, counter.BytesRecv)
		metrics.PacketsSent = saturatingAdd(metrics.PacketsSent, counter.PacketsSent)
		metrics.PacketsReceived = saturatingAdd(metrics.PacketsReceived, counter.PacketsRecv)
	}

	if conns, err := net.ConnectionsWithContext(ctx, "tcp"); err != nil {
		log.Debug("connection enumeration unavailable: %v", err)
	} else {
		var established uint32
		for _, conn := range conns {
			if conn.Status == "ESTABLISHED" {
				established++
			}
		}
		metrics.ActiveConnections = established
	}

	return metrics, nil
}

func (c *SystemCollector) collectUptime(ctx context.Context) (time.Duration, *CollectionError) {
	seconds, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, c.classify(ctx, err, SystemUnavailable)
	}
	if seconds == 0 {
		return 0, SystemUnavailable("uptime not available")
	}
	return time.Duration(seconds) * time.Second, nil
}

// CollectOSInfo reads static operating system details. Falls back to
// placeholder values when detection or validation fails.
func (c *SystemCollector) CollectOSInfo(ctx context.Context) (OSInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return OSInfo{}, SystemUnavailable(fmt.Sprintf("host info: %v", err))
	}

	name := NormalizeOSName(info.OS, info.Platform)
	osInfo := OSInfo{
		Name:            name,
		Version:         orUnknown(info.PlatformVersion),
		Architecture:    orUnknown(info.KernelArch),
		KernelVersion:   orUnknown(info.KernelVersion),
		Distribution:    info.Platform,
		LongDescription: describeOS(name, info.Platform, info.PlatformVersion, info.KernelArch),
	}

	if err := osInfo.Validate(); err != nil {
		log.Warn("os info validation failed: %v, using fallback", err)
		return FallbackOSInfo(), nil
	}
	return osInfo, nil
}

func describeOS(name, distribution, version, arch string) string {
	if distribution != "" {
		return fmt.Sprintf("%s %s %s (%s)", name, distribution, orUnknown(version), orUnknown(arch))
	}
	return fmt.Sprintf("%s %s (%s)", name, orUnknown(version), orUnknown(arch))
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

// classify maps provider errors to the taxonomy, promoting context
// deadline hits to Timeout.
func (c *SystemCollector) classify(ctx context.Context, err error, fallback func(string) *CollectionError) *CollectionError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return TimeoutError(c.timeout)
	}
	return fallback(err.Error())
}

func (c *SystemCollector) recordFailure(err *CollectionError) {
	c.updateStats(func(s *CollectionStats) {
		s.FailedCollections++
		s.LastError = err
	})
}

// Stats returns a copy of the collection counters.
func (c *SystemCollector) Stats() CollectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *SystemCollector) updateStats(fn func(*CollectionStats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}
