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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Duration serializes a time.Duration as {"secs": u64, "nanos": u32}.
type Duration time.Duration

type durationJSON struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

func (d Duration) MarshalJSON() ([]byte, error) {
	td := time.Duration(d)
	return json.Marshal(durationJSON{
		Secs:  uint64(td / time.Second),
		Nanos: uint32(td % time.Second),
	})
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw durationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*d = Duration(time.Duration(raw.Secs)*time.Second + time.Duration(raw.Nanos))
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Snapshot is one immutable point-in-time metrics reading.
type Snapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Memory    MemoryMetrics  `json:"memory_usage"`
	CPU       CPUMetrics     `json:"cpu_usage"`
	Uptime    Duration       `json:"uptime"`
	Network   NetworkMetrics `json:"network_metrics"`
}

// MemoryMetrics holds RAM consumption data.
type MemoryMetrics struct {
	TotalBytes      uint64  `json:"total_bytes"`
	UsedBytes       uint64  `json:"used_bytes"`
	AvailableBytes  uint64  `json:"available_bytes"`
	UsagePercentage float32 `json:"usage_percentage"`
}

// CPUMetrics holds processor load data.
type CPUMetrics struct {
	UsagePercentage float32     `json:"usage_percentage"`
	CoreCount       uint32      `json:"core_count"`
	LoadAverage     LoadAverage `json:"load_average"`
}

// LoadAverage holds system load averages.
type LoadAverage struct {
	OneMinute     float32 `json:"one_minute"`
	FiveMinute    float32 `json:"five_minute"`
	FifteenMinute float32 `json:"fifteen_minute"`
}

// NetworkMetrics holds aggregated network activity counters.
type NetworkMetrics struct {
	BytesSent         uint64 `json:"bytes_sent"`
	BytesReceived     uint64 `json:"bytes_received"`
	PacketsSent       uint64 `json:"packets_sent"`
	PacketsReceived   uint64 `json:"packets_received"`
	ActiveConnections uint32 `json:"active_connections"`
}

// DefaultCPUMetrics returns the placeholder used when CPU collection fails.
func DefaultCPUMetrics() CPUMetrics {
	return CPUMetrics{CoreCount: 1}
}

// NewMemoryMetrics derives the usage percentage and validates the result.
func NewMemoryMetrics(totalBytes, usedBytes, availableBytes uint64) (MemoryMetrics, error) {
	var pct float32
	if totalBytes > 0 {
		pct = float32(float64(usedBytes) / float64(totalBytes) * 100.0)
	}
	m := MemoryMetrics{
		TotalBytes:      totalBytes,
		UsedBytes:       usedBytes,
		AvailableBytes:  availableBytes,
		UsagePercentage: pct,
	}
	if err := m.Validate(); err != nil {
		return MemoryMetrics{}, err
	}
	return m, nil
}

func (m MemoryMetrics) Validate() error {
	if sum := m.UsedBytes + m.AvailableBytes; sum > m.TotalBytes {
		return fmt.Errorf("memory usage inconsistent: used + available (%d) > total (%d)", sum, m.TotalBytes)
	}
	if m.UsagePercentage < 0 || m.UsagePercentage > 100 {
		return fmt.Errorf("memory percentage invalid: %.2f%% (must be 0-100%%)", m.UsagePercentage)
	}
	return nil
}

// IsCritical reports whether memory usage exceeds 90%.
func (m MemoryMetrics) IsCritical() bool {
	return m.UsagePercentage > 90.0
}

func (c CPUMetrics) Validate() error {
	// Usage may exceed 100% on multi-core hosts, never go negative.
	if c.UsagePercentage < 0 {
		return fmt.Errorf("cpu percentage invalid: %.2f%% (must be >= 0)", c.UsagePercentage)
	}
	if c.CoreCount == 0 {
		return fmt.Errorf("core count invalid: 0 (must be > 0)")
	}
	if c.LoadAverage.OneMinute < 0 || c.LoadAverage.FiveMinute < 0 || c.LoadAverage.FifteenMinute < 0 {
		return fmt.Errorf("load average invalid (must be >= 0)")
	}
	return nil
}

func (n NetworkMetrics) Validate() error {
	// Counters are unsigned; nothing to reject today, kept for symmetry
	// with the other sub-validators.
	return nil
}

// TotalBytes sums sent and received with saturating arithmetic.
func (n NetworkMetrics) TotalBytes() uint64 {
	return saturatingAdd(n.BytesSent, n.BytesReceived)
}

// TotalPackets sums sent and received with saturating arithmetic.
func (n NetworkMetrics) TotalPackets() uint64 {
	return saturatingAdd(n.PacketsSent, n.PacketsReceived)
}

func saturatingAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}

// Validate checks all sub-components against their business rules.
func (s *Snapshot) Validate() error {
	if err := s.Memory.Validate(); err != nil {
		return fmt.Errorf("memory validation failed: %w", err)
	}
	if err := s.CPU.Validate(); err != nil {
		return fmt.Errorf("cpu validation failed: %w", err)
	}
	if err := s.Network.Validate(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	return nil
}

// StaleAge returns the snapshot age when it exceeds the staleness window,
// zero otherwise. Staleness is a warning, not a validation failure.
func (s *Snapshot) StaleAge() time.Duration {
	if age := time.Since(s.Timestamp); age > 10*time.Second {
		return age
	}
	return 0
}

// OSInfo carries static operating system details.
type OSInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Architecture    string `json:"architecture"`
	KernelVersion   string `json:"kernel_version"`
	Distribution    string `json:"distribution,omitempty"`
	LongDescription string `json:"long_description"`
}

func (o OSInfo) Validate() error {
	for field, value := range map[string]string{
		"name":             o.Name,
		"version":          o.Version,
		"architecture":     o.Architecture,
		"kernel_version":   o.KernelVersion,
		"long_description": o.LongDescription,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("os info field %s must be non-empty", field)
		}
	}
	return nil
}

// FallbackOSInfo is used when OS detection or validation fails.
func FallbackOSInfo() OSInfo {
	return OSInfo{
		Name:            "Unknown",
		Version:         "Unknown",
		Architecture:    "Unknown",
		KernelVersion:   "Unknown",
		LongDescription: "Unknown operating system",
	}
}

// NormalizeOSName maps raw platform strings to standard identifiers.
func NormalizeOSName(rawName, distribution string) string {
	name := strings.ToLower(rawName)

	switch {
	case strings.Contains(name, "windows"):
		return "Windows"
	case strings.Contains(name, "macos"), strings.Contains(name, "darwin"), strings.Contains(name, "osx"):
		return "macOS"
	case strings.Contains(name, "freebsd"), strings.Contains(name, "openbsd"), strings.Contains(name, "netbsd"):
		return "FreeBSD"
	case strings.Contains(name, "linux"), distribution != "":
		return "Linux"
	}
	return rawName
}
